package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
)

var (
	// ErrNotFound is returned when no element matches a selector.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timed out waiting for element")
)

// KeyEnter submits a form when sent to an input element.
const KeyEnter = kb.Enter

// SelectorKind distinguishes the query languages a Selector can be written in
type SelectorKind int

const (
	CSS SelectorKind = iota
	XPath
)

func (k SelectorKind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Selector is one locator strategy: a query expression plus its language
type Selector struct {
	Kind SelectorKind
	Expr string
}

// ByCSS returns a CSS selector
func ByCSS(expr string) Selector {
	return Selector{Kind: CSS, Expr: expr}
}

// ByXPath returns an XPath selector
func ByXPath(expr string) Selector {
	return Selector{Kind: XPath, Expr: expr}
}

// ParseSelector treats expressions starting with "/" or "(" as XPath and
// everything else as CSS.
func ParseSelector(expr string) Selector {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "(") {
		return ByXPath(trimmed)
	}
	return ByCSS(trimmed)
}

// ParseSelectors parses a list of expressions in order
func ParseSelectors(exprs ...string) []Selector {
	sels := make([]Selector, 0, len(exprs))
	for _, e := range exprs {
		sels = append(sels, ParseSelector(e))
	}
	return sels
}

func (s Selector) String() string {
	return s.Kind.String() + ":" + s.Expr
}

// Element is a handle to a DOM node on the current page
type Element interface {
	// ID identifies the node so two handles to the same node compare equal.
	ID() string
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, keys string) error
}

// Driver is the page-driving capability the downloader is built on. One
// Driver owns one browser tab and is used by a single goroutine.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	// WaitUntilClickable waits up to timeout for a visible, enabled match
	// and returns ErrTimeout if none appears.
	WaitUntilClickable(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
	CurrentURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	// HTML returns the serialized document of the current page.
	HTML(ctx context.Context) (string, error)
	ExecuteScript(ctx context.Context, js string, out interface{}) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
