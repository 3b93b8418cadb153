package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"magistodl/pkg/config"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/logger"
)

// ChromeOptions configures the Chrome instance behind a ChromeDriver
type ChromeOptions struct {
	Headless          bool
	ExecPath          string
	UserDataDir       string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	// QueryTimeout bounds non-waiting DOM queries.
	QueryTimeout time.Duration
	// DownloadDir must be absolute.
	DownloadDir string
}

// OptionsFromConfig maps the browser section of the configuration
func OptionsFromConfig(bc config.BrowserConfig, downloadDir string) ChromeOptions {
	return ChromeOptions{
		Headless:          bc.Headless,
		ExecPath:          bc.ExecPath,
		UserDataDir:       bc.UserDataDir,
		UserAgent:         bc.UserAgent,
		WindowWidth:       bc.WindowWidth,
		WindowHeight:      bc.WindowHeight,
		NavigationTimeout: bc.NavigationTimeout,
		QueryTimeout:      10 * time.Second,
		DownloadDir:       downloadDir,
	}
}

// ChromeDriver drives a single Chrome tab through the DevTools protocol
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        ChromeOptions
	logger      logger.Logger
}

// NewChromeDriver launches Chrome, opens a tab and routes downloads into
// opts.DownloadDir.
func NewChromeDriver(ctx context.Context, opts ChromeOptions, log logger.Logger) (*ChromeDriver, error) {
	log = logger.ForComponent(log, "browser")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("start-maximized", !opts.Headless),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	d := &ChromeDriver{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      log,
	}

	chromedp.ListenTarget(tabCtx, d.onEvent)

	// The first Run starts the browser process.
	start := cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(opts.DownloadDir).
		WithEventsEnabled(true)
	if err := chromedp.Run(tabCtx, start); err != nil {
		cancel()
		allocCancel()
		return nil, errs.New(errs.ErrorTypeBrowser, "failed to start Chrome", err)
	}

	log.InfoWithFields("Chrome started", map[string]interface{}{
		"headless":     opts.Headless,
		"download_dir": opts.DownloadDir,
		"profile":      opts.UserDataDir,
	})
	return d, nil
}

func (d *ChromeDriver) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		d.logger.InfoWithFields("Browser download started", map[string]interface{}{
			"file": e.SuggestedFilename,
			"guid": e.GUID,
		})
	case *cdpbrowser.EventDownloadProgress:
		if e.State == cdpbrowser.DownloadProgressStateCompleted {
			d.logger.DebugWithFields("Browser download completed", map[string]interface{}{
				"guid":  e.GUID,
				"bytes": int64(e.ReceivedBytes),
			})
		}
	}
}

// run executes actions on the tab, bounded by timeout and by the caller's
// ctx. Failures after the tab itself has gone away are browser errors.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := d.ctx.Err(); err != nil {
		return errs.New(errs.ErrorTypeBrowser, "browser is no longer running", err)
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(d.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(d.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if d.ctx.Err() != nil {
		return errs.New(errs.ErrorTypeBrowser, "browser is no longer running", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	err := d.run(ctx, d.opts.NavigationTimeout, chromedp.Navigate(url))
	if err == nil || errs.Is(err, errs.ErrorTypeBrowser) || ctx.Err() != nil {
		return err
	}
	return errs.ForURL(errs.ErrorTypeNavigation, url, "page did not load", err)
}

func queryOption(sel Selector) chromedp.QueryOption {
	if sel.Kind == XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func (d *ChromeDriver) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, d.opts.QueryTimeout,
		chromedp.Nodes(sel.Expr, &nodes, queryOption(sel), chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, err
	}
	return d.wrap(nodes), nil
}

func (d *ChromeDriver) WaitUntilClickable(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	opt := chromedp.ByQuery
	if sel.Kind == XPath {
		opt = chromedp.BySearch
	}

	var nodes []*cdp.Node
	err := d.run(ctx, timeout,
		chromedp.WaitVisible(sel.Expr, opt),
		chromedp.WaitEnabled(sel.Expr, opt),
		chromedp.Nodes(sel.Expr, &nodes, opt),
	)
	if err != nil {
		if errs.Is(err, errs.ErrorTypeBrowser) || ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if len(nodes) == 0 {
		return nil, ErrTimeout
	}
	return &chromeElement{driver: d, node: nodes[0]}, nil
}

func (d *ChromeDriver) ScrollToBottom(ctx context.Context) error {
	return d.run(ctx, d.opts.QueryTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
	)
}

func (d *ChromeDriver) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	err := d.run(ctx, d.opts.QueryTimeout,
		chromedp.Evaluate(`document.body.scrollHeight`, &height),
	)
	return height, err
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, d.opts.QueryTimeout, chromedp.Location(&url))
	return url, err
}

func (d *ChromeDriver) PageTitle(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, d.opts.QueryTimeout, chromedp.Title(&title))
	return title, err
}

func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.opts.QueryTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *ChromeDriver) ExecuteScript(ctx context.Context, js string, out interface{}) error {
	return d.run(ctx, d.opts.QueryTimeout, chromedp.Evaluate(js, out))
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, d.opts.QueryTimeout, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Close shuts the tab and the browser process down
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}

func (d *ChromeDriver) wrap(nodes []*cdp.Node) []Element {
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{driver: d, node: n})
	}
	return els
}

type chromeElement struct {
	driver *ChromeDriver
	node   *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) ID() string {
	return fmt.Sprintf("%d", e.node.BackendNodeID)
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.driver.run(ctx, e.driver.opts.QueryTimeout,
		chromedp.TextContent(e.ids(), &text, chromedp.ByNodeID),
	)
	return strings.Join(strings.Fields(text), " "), err
}

// Attribute reads href through the DOM property so relative links come back
// resolved against the page.
func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if name == "href" {
		var href string
		err := e.driver.run(ctx, e.driver.opts.QueryTimeout,
			chromedp.JavascriptAttribute(e.ids(), "href", &href, chromedp.ByNodeID),
		)
		return href, err == nil && href != "", err
	}

	var value string
	var ok bool
	err := e.driver.run(ctx, e.driver.opts.QueryTimeout,
		chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID),
	)
	return value, ok, err
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.driver.run(ctx, e.driver.opts.QueryTimeout,
		chromedp.Click(e.ids(), chromedp.ByNodeID),
	)
}

func (e *chromeElement) SendKeys(ctx context.Context, keys string) error {
	return e.driver.run(ctx, e.driver.opts.QueryTimeout,
		chromedp.SendKeys(e.ids(), keys, chromedp.ByNodeID),
	)
}
