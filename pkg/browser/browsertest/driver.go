// Package browsertest provides a scriptable in-memory browser.Driver.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"magistodl/pkg/browser"
)

// Page describes what the fake browser shows at one URL
type Page struct {
	URL string
	// FinalURL is reported by CurrentURL after navigating here, to model
	// redirects. Defaults to URL.
	FinalURL string
	Title    string
	HTML     string
	// Elements maps a selector expression to the nodes it matches.
	Elements map[string][]*Element
	// Heights are the successive document heights: index i is reported
	// after i scroll commands; the last value repeats.
	Heights     []int64
	NavigateErr error
}

// Add appends elements matched by the selector expression
func (p *Page) Add(expr string, els ...*Element) *Page {
	if p.Elements == nil {
		p.Elements = make(map[string][]*Element)
	}
	p.Elements[expr] = append(p.Elements[expr], els...)
	return p
}

// Remove drops every element matched by the selector expression
func (p *Page) Remove(expr string) {
	delete(p.Elements, expr)
}

// Element is a fake DOM node
type Element struct {
	Name  string
	Value string
	Attrs map[string]string
	// Hidden elements are found by FindAll but never clickable.
	Hidden  bool
	OnClick func() error
	OnKeys  func(keys string) error

	mu     sync.Mutex
	clicks int
	keys   []string
}

// NewElement returns a visible element with the given text
func NewElement(name, text string) *Element {
	return &Element{Name: name, Value: text}
}

// Link returns an anchor element pointing at href
func Link(href string) *Element {
	return &Element{Name: "a " + href, Attrs: map[string]string{"href": href}}
}

// Clicks returns how many times the element was clicked
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Keys returns everything typed into the element
func (e *Element) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.keys...)
}

// Driver is an in-memory browser.Driver
type Driver struct {
	mu       sync.Mutex
	pages    map[string]*Page
	current  *Page
	scrolls  int
	visits   []string
	closed   bool
	ScrollFn func(scrolls int)
}

var _ browser.Driver = (*Driver)(nil)

// New returns a driver showing a blank page
func New() *Driver {
	return &Driver{
		pages:   make(map[string]*Page),
		current: &Page{URL: "about:blank"},
	}
}

// AddPage registers a page and returns it for further scripting
func (d *Driver) AddPage(p *Page) *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.Elements == nil {
		p.Elements = make(map[string][]*Element)
	}
	d.pages[p.URL] = p
	return p
}

// Page returns the registered page for url
func (d *Driver) Page(url string) *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[url]
}

// Update runs fn while holding the driver lock, for scripting pages from
// another goroutine.
func (d *Driver) Update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Visits returns every URL navigated to, in order
func (d *Driver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visits...)
}

// Scrolls returns the scroll commands issued on the current page
func (d *Driver) Scrolls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolls
}

// Closed reports whether Close was called
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.visits = append(d.visits, url)
	p, ok := d.pages[url]
	if !ok {
		p = &Page{
			URL:   url,
			Title: "Page not found",
			HTML:  "<html><body><h1>404</h1><p>not found</p></body></html>",
		}
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	d.current = p
	d.scrolls = 0
	return nil
}

func (d *Driver) elements(expr string) []*Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Element(nil), d.current.Elements[expr]...)
}

func (d *Driver) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []browser.Element
	for _, e := range d.elements(sel.Expr) {
		out = append(out, e)
	}
	return out, nil
}

func (d *Driver) WaitUntilClickable(ctx context.Context, sel browser.Selector, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range d.elements(sel.Expr) {
		if !e.Hidden {
			return e, nil
		}
	}
	return nil, browser.ErrTimeout
}

func (d *Driver) ScrollToBottom(ctx context.Context) error {
	d.mu.Lock()
	d.scrolls++
	n := d.scrolls
	fn := d.ScrollFn
	d.mu.Unlock()

	if fn != nil {
		fn(n)
	}
	return ctx.Err()
}

func (d *Driver) ScrollHeight(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	heights := d.current.Heights
	if len(heights) == 0 {
		return 0, nil
	}
	i := d.scrolls
	if i >= len(heights) {
		i = len(heights) - 1
	}
	return heights[i], nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current.FinalURL != "" {
		return d.current.FinalURL, nil
	}
	return d.current.URL, nil
}

func (d *Driver) PageTitle(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Title, nil
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.HTML, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, js string, out interface{}) error {
	return nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG fake"), nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (e *Element) ID() string {
	return fmt.Sprintf("%p", e)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.Value, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	e.clicks++
	fn := e.OnClick
	e.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

func (e *Element) SendKeys(ctx context.Context, keys string) error {
	e.mu.Lock()
	e.keys = append(e.keys, keys)
	fn := e.OnKeys
	e.mu.Unlock()

	if fn != nil {
		return fn(keys)
	}
	return nil
}
