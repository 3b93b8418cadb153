package enumerator

import (
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
	"magistodl/pkg/models"
	"magistodl/pkg/site"
)

const rejectedLogLimit = 5

// Validator is the strict second pass over enumerated links. It is the
// correctness backstop for the over-inclusive extraction patterns.
type Validator struct {
	profile *site.Profile
	logger  logger.Logger
}

// NewValidator creates a Validator for the site profile
func NewValidator(p *site.Profile, log logger.Logger) *Validator {
	return &Validator{profile: p, logger: logger.ForComponent(log, "validator")}
}

// Validate keeps the links that look like individual resources, in order
// and without duplicates. It returns a validation error when none remain.
func (v *Validator) Validate(urls []string) ([]models.ResourceReference, error) {
	var valid []models.ResourceReference
	var rejected []string
	seen := make(map[string]bool, len(urls))

	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		if v.profile.IsResourceURL(u) {
			valid = append(valid, models.ResourceReference{URL: u})
		} else {
			rejected = append(rejected, u)
		}
	}

	if len(rejected) > 0 {
		fields := map[string]interface{}{"rejected": len(rejected)}
		for i, u := range rejected {
			if i >= rejectedLogLimit {
				break
			}
			v.logger.DebugWithFields("Rejected link", map[string]interface{}{"url": u})
		}
		v.logger.WarnWithFields("Filtered out links that are not individual resources", fields)
	}

	v.logger.InfoWithFields("Validated resource links", map[string]interface{}{
		"valid": len(valid),
	})
	if len(valid) == 0 {
		return nil, errs.New(errs.ErrorTypeValidation, "no valid resource links remain after validation", nil)
	}
	return valid, nil
}
