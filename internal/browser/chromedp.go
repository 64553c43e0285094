// Package browser launches headless Chrome sessions for the JavaScript-rendered
// club site. Every WithSession call starts its own browser process and kills it
// when the callback returns, so a wedged page never leaks into the next crawl.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

// DefaultUserAgent mimics a desktop Chrome install.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const staleAttr = "data-kbo-stale"

// Config controls the browser sessions.
type Config struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	// WaitTimeout caps every element wait that has no tighter deadline.
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1920
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1080
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

// Limiter throttles navigations per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Launcher implements crawler.Browser with chromedp.
type Launcher struct {
	cfg     Config
	limiter Limiter
	logger  *zap.Logger
}

// New creates a Launcher. limiter may be nil.
func New(cfg Config, limiter Limiter, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg.withDefaults(), limiter: limiter, logger: logger}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// WithSession starts a browser, hands fn a fresh tab and tears everything down when fn
// returns or panics. Launch failures are reported as crawler.ErrTransport.
func (l *Launcher) WithSession(ctx context.Context, fn func(crawler.Page) error) error {
	if err := ctx.Err(); err != nil {
		return crawler.TransportError("launch browser", err)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logger.Sugar().Debugf))
	defer cancelTab()
	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	// The first Run allocates the browser; it must not carry a deadline or the
	// browser dies with it.
	if err := chromedp.Run(tabCtx, l.setupAction()); err != nil {
		return crawler.TransportError("launch browser", err)
	}
	metrics.IncBrowserSessions()
	started := time.Now()
	defer func() {
		if err := chromedp.Cancel(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Debug("browser close failed", zap.Error(err))
		}
		metrics.DecBrowserSessions()
		l.logger.Debug("browser session closed", zap.Duration("lifetime", time.Since(started)))
	}()

	return fn(&session{tab: tabCtx, cfg: l.cfg, limiter: l.limiter, logger: l.logger})
}

func (l *Launcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(l.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		err := emulation.SetDeviceMetricsOverride(int64(l.cfg.WindowWidth), int64(l.cfg.WindowHeight), 1, false).Do(ctx)
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		return nil
	})
}

type session struct {
	tab     context.Context
	cfg     Config
	limiter Limiter
	logger  *zap.Logger
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	return classify(ctx, runCtx, err)
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, url); err != nil {
			return crawler.TransportError("navigate", err)
		}
	}
	runCtx, cancel := context.WithTimeout(s.tab, s.cfg.NavigationTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return crawler.TransportError("navigate "+url, err)
	}
	if resp != nil && resp.Status >= 400 {
		return crawler.TransportError("navigate "+url, fmt.Errorf("status %d", resp.Status))
	}
	s.logger.Debug("navigated", zap.String("url", url))
	return nil
}

func (s *session) WaitPresent(ctx context.Context, sel crawler.Selector) error {
	return s.run(ctx, s.cfg.WaitTimeout, chromedp.WaitReady(sel.Expr, queryOption(sel)))
}

func (s *session) WaitVisible(ctx context.Context, sel crawler.Selector) error {
	return s.run(ctx, s.cfg.WaitTimeout, chromedp.WaitVisible(sel.Expr, queryOption(sel)))
}

func (s *session) WaitAnyVisible(ctx context.Context, sels ...crawler.Selector) (int, error) {
	if len(sels) == 0 {
		return -1, errors.New("no selectors")
	}
	script, err := firstVisibleScript(sels)
	if err != nil {
		return -1, err
	}
	idx := -1
	err = s.poll(ctx, func(pollCtx context.Context) (bool, error) {
		if err := chromedp.Run(pollCtx, chromedp.Evaluate(script, &idx)); err != nil {
			return false, err
		}
		return idx >= 0, nil
	})
	if err != nil {
		return -1, err
	}
	return idx, nil
}

func (s *session) SelectValue(ctx context.Context, selectCSS, value, reloadCSS string) (bool, error) {
	script, err := selectScript(selectCSS, value, reloadCSS)
	if err != nil {
		return false, err
	}
	var outcome string
	if err := s.run(ctx, s.cfg.WaitTimeout, chromedp.Evaluate(script, &outcome)); err != nil {
		return false, err
	}
	if !s.selectChanged(outcome, selectCSS, value) {
		return false, nil
	}
	if reloadCSS == "" {
		return true, nil
	}
	reloaded, err := reloadedScript(reloadCSS)
	if err != nil {
		return true, err
	}
	err = s.poll(ctx, func(pollCtx context.Context) (bool, error) {
		var done bool
		if err := chromedp.Run(pollCtx, chromedp.Evaluate(reloaded, &done)); err != nil {
			return false, err
		}
		return done, nil
	})
	return true, err
}

// selectChanged reports whether the select script changed the value. A missing select
// or option is logged; an already-selected value is not.
func (s *session) selectChanged(outcome, selectCSS, value string) bool {
	switch outcome {
	case "changed":
		return true
	case "missing-option":
		s.logger.Warn("select has no such option", zap.String("select", selectCSS), zap.String("value", value))
	case "missing":
		s.logger.Warn("select not found", zap.String("select", selectCSS), zap.String("value", value))
	}
	return false
}

func (s *session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.WaitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// poll calls check every PollInterval until it reports true or the wait budget runs out.
// A failing check counts as "not yet": evaluating while a form submit tears down the
// page's execution context fails transiently. The last such error is reported once the
// budget is spent.
func (s *session) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	waitCtx, cancel := context.WithTimeout(s.tab, s.cfg.WaitTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		ok, err := check(waitCtx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return classify(ctx, waitCtx, err)
			}
			if lastErr == nil {
				s.logger.Debug("browser poll failed, retrying", zap.Error(err))
			}
			lastErr = err
		case ok:
			return nil
		}
		select {
		case <-waitCtx.Done():
			if lastErr == nil || ctx.Err() != nil {
				return classify(ctx, waitCtx, waitCtx.Err())
			}
			return fmt.Errorf("%w: %w", crawler.ErrWaitTimeout, lastErr)
		case <-ticker.C:
		}
	}
}

// classify maps context expiry during a browser call to crawler.ErrWaitTimeout.
// Cancellation by the caller is passed through unchanged.
func classify(parent, run context.Context, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", crawler.ErrWaitTimeout, err)
		}
		return fmt.Errorf("browser call canceled: %w", parent.Err())
	}
	if run.Err() != nil && errors.Is(run.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", crawler.ErrWaitTimeout, err)
	}
	return fmt.Errorf("browser call: %w", err)
}

func queryOption(sel crawler.Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

type jsSelector struct {
	Expr  string `json:"expr"`
	XPath bool   `json:"xpath"`
}

// firstVisibleScript evaluates to the index of the first selector with a rendered
// match, or -1.
func firstVisibleScript(sels []crawler.Selector) (string, error) {
	list := make([]jsSelector, len(sels))
	for i, s := range sels {
		list[i] = jsSelector{Expr: s.Expr, XPath: s.XPath}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const sels = %s;
  const visible = (el) => !!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length));
  for (let i = 0; i < sels.length; i++) {
    let nodes = [];
    if (sels[i].xpath) {
      const r = document.evaluate(sels[i].expr, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
      for (let j = 0; j < r.snapshotLength; j++) nodes.push(r.snapshotItem(j));
    } else {
      nodes = Array.from(document.querySelectorAll(sels[i].expr));
    }
    if (nodes.some(visible)) return i;
  }
  return -1;
})()`, encoded), nil
}

// selectScript changes a <select> and fires change. Before changing it tags the
// current reload targets so their replacement can be detected.
func selectScript(selectCSS, value, reloadCSS string) (string, error) {
	args, err := json.Marshal([]string{selectCSS, value, reloadCSS, staleAttr})
	if err != nil {
		return "", fmt.Errorf("encode select args: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const [sel, value, reload, attr] = %s;
  const el = document.querySelector(sel);
  if (!el) return "missing";
  if (el.value === value) return "same";
  if (!Array.from(el.options || []).some((o) => o.value === value)) return "missing-option";
  if (reload) document.querySelectorAll(reload).forEach((n) => n.setAttribute(attr, "1"));
  el.value = value;
  el.dispatchEvent(new Event("change", { bubbles: true }));
  return "changed";
})()`, args), nil
}

// reloadedScript is true once no tagged reload target remains and a fresh one exists.
func reloadedScript(reloadCSS string) (string, error) {
	args, err := json.Marshal([]string{reloadCSS, staleAttr})
	if err != nil {
		return "", fmt.Errorf("encode reload args: %w", err)
	}
	return fmt.Sprintf(`(() => {
  const [reload, attr] = %s;
  const nodes = Array.from(document.querySelectorAll(reload));
  return nodes.length > 0 && nodes.every((n) => !n.hasAttribute(attr));
})()`, args), nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

var _ crawler.Browser = (*Launcher)(nil)
