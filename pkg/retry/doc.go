// Package retry provides backoff and retry logic for transient browser
// failures, and the context-aware Wait used for every fixed settle delay.
//
// Only errors classified as navigation failures are retried by default:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return driver.Navigate(ctx, url)
//	}, retry.FromConfig(cfg.Retry, log))
package retry
