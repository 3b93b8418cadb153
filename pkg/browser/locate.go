package browser

import (
	"context"
	"strings"
	"time"

	errs "magistodl/pkg/errors"
	"magistodl/pkg/retry"
)

// ProbeTimeout bounds a single selector probe inside FirstClickable so one
// slow selector cannot starve the ones after it.
var ProbeTimeout = 500 * time.Millisecond

// roundPause separates polling rounds when every probe returned at once.
const roundPause = 100 * time.Millisecond

// FindFirst evaluates the selectors in order and returns the first element
// found. Lookup errors count as "not found".
func FindFirst(ctx context.Context, d Driver, sels []Selector) (Element, Selector, bool) {
	for _, sel := range sels {
		if ctx.Err() != nil {
			return nil, Selector{}, false
		}
		els, err := d.FindAll(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		return els[0], sel, true
	}
	return nil, Selector{}, false
}

// WaitPresent polls the selectors in order until one matches an element,
// visible or not, or timeout elapses.
func WaitPresent(ctx context.Context, d Driver, sels []Selector, timeout time.Duration) (Element, Selector, error) {
	if len(sels) == 0 {
		return nil, Selector{}, ErrNotFound
	}
	deadline := time.Now().Add(timeout)
	for {
		if el, sel, ok := FindFirst(ctx, d, sels); ok {
			return el, sel, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, Selector{}, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, Selector{}, ErrTimeout
		}
		pause := roundPause
		if remaining < pause {
			pause = remaining
		}
		if err := retry.Wait(ctx, pause); err != nil {
			return nil, Selector{}, err
		}
	}
}

// FirstText returns the trimmed text of the first element, across the
// selectors in order, whose text satisfies accept.
func FirstText(ctx context.Context, d Driver, sels []Selector, accept func(string) bool) (string, Selector, bool) {
	for _, sel := range sels {
		els, err := d.FindAll(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		text, err := els[0].Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" && (accept == nil || accept(text)) {
			return text, sel, true
		}
	}
	return "", Selector{}, false
}

// FirstClickable polls the selectors in priority order until one yields a
// clickable element that exclude does not reject, or timeout elapses. It
// returns ErrTimeout when nothing qualifies. Only a dead browser or a
// cancelled context is reported as a different error.
func FirstClickable(ctx context.Context, d Driver, sels []Selector, timeout time.Duration, exclude func(Element) bool) (Element, Selector, error) {
	if len(sels) == 0 {
		return nil, Selector{}, ErrNotFound
	}

	deadline := time.Now().Add(timeout)
	for {
		roundStart := time.Now()
		for _, sel := range sels {
			if err := ctx.Err(); err != nil {
				return nil, Selector{}, err
			}

			probe := ProbeTimeout
			if remaining := time.Until(deadline); remaining < probe {
				probe = remaining
			}
			if probe <= 0 {
				probe = 10 * time.Millisecond
			}

			el, err := d.WaitUntilClickable(ctx, sel, probe)
			if err != nil {
				if errs.Is(err, errs.ErrorTypeBrowser) {
					return nil, Selector{}, err
				}
				continue
			}
			if exclude != nil && exclude(el) {
				continue
			}
			return el, sel, nil
		}

		if !time.Now().Before(deadline) {
			return nil, Selector{}, ErrTimeout
		}
		if time.Since(roundStart) < roundPause {
			pause := roundPause
			if remaining := time.Until(deadline); remaining < pause {
				pause = remaining
			}
			if err := retry.Wait(ctx, pause); err != nil {
				return nil, Selector{}, err
			}
		}
	}
}

// SameElement returns an exclude predicate rejecting handles to el's node.
func SameElement(el Element) func(Element) bool {
	if el == nil {
		return nil
	}
	id := el.ID()
	return func(other Element) bool {
		return other.ID() == id
	}
}
