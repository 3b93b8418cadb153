package reconcile

import (
	"context"

	"magistodl/pkg/browser"
	"magistodl/pkg/logger"
)

// TitleReader reads the display title of the resource page currently open
type TitleReader interface {
	ReadTitle(ctx context.Context) (string, bool)
}

// PageTitleReader reads the title through an ordered selector list. The
// first non-empty text that is not boilerplate wins.
type PageTitleReader struct {
	driver    browser.Driver
	selectors []browser.Selector
	policy    Policy
	logger    logger.Logger
}

// NewPageTitleReader creates a PageTitleReader
func NewPageTitleReader(d browser.Driver, selectors []browser.Selector, policy Policy, log logger.Logger) *PageTitleReader {
	return &PageTitleReader{
		driver:    d,
		selectors: selectors,
		policy:    policy,
		logger:    logger.ForComponent(log, "title"),
	}
}

func (r *PageTitleReader) ReadTitle(ctx context.Context) (string, bool) {
	title, sel, ok := browser.FirstText(ctx, r.driver, r.selectors, func(text string) bool {
		return !r.policy.IsBoilerplate(text)
	})
	if !ok {
		r.logger.Warn("Could not find the resource title")
		return "", false
	}
	r.logger.DebugWithFields("Found resource title", map[string]interface{}{
		"title":    title,
		"selector": sel.String(),
	})
	return title, true
}
