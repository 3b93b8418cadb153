// Package ratelimit paces page visits so a long catalogue walk does not hit
// the hosting service in a tight loop.
//
// The run loop calls Wait before every navigation:
//
//	limiter := ratelimit.New(cfg.RateLimit.PageVisitsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
