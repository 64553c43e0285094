// Package browsertest provides an in-memory crawler.Browser that serves fixture HTML.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// Browser serves pages keyed by URL. Waits succeed when the selector matches the
// current page's HTML and fail with crawler.ErrWaitTimeout otherwise.
type Browser struct {
	mu       sync.Mutex
	pages    map[string]string
	navErr   map[string]error
	launch   error
	sessions int
	open     int
	visits   []string
	selects  []string
}

// New creates a fake browser with the given URL to HTML fixtures.
func New(pages map[string]string) *Browser {
	if pages == nil {
		pages = map[string]string{}
	}
	return &Browser{pages: pages, navErr: map[string]error{}}
}

// SetPage adds or replaces a fixture.
func (b *Browser) SetPage(url, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = html
}

// FailNavigation makes Navigate to url return err.
func (b *Browser) FailNavigation(url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navErr[url] = err
}

// FailLaunch makes every WithSession call fail before fn runs.
func (b *Browser) FailLaunch(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.launch = err
}

// Sessions reports how many sessions were opened.
func (b *Browser) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

// Open reports how many sessions are still open.
func (b *Browser) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Visits lists navigated URLs in order.
func (b *Browser) Visits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

// Selects lists "selector=value" for every SelectValue that changed a control.
func (b *Browser) Selects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.selects...)
}

// WithSession implements crawler.Browser.
func (b *Browser) WithSession(ctx context.Context, fn func(crawler.Page) error) error {
	b.mu.Lock()
	if b.launch != nil {
		err := b.launch
		b.mu.Unlock()
		return crawler.TransportError("launch browser", err)
	}
	b.sessions++
	b.open++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.open--
		b.mu.Unlock()
	}()
	if err := ctx.Err(); err != nil {
		return crawler.TransportError("launch browser", err)
	}
	return fn(&page{browser: b})
}

type page struct {
	browser *Browser
	html    string
}

func (p *page) Navigate(_ context.Context, url string) error {
	b := p.browser
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visits = append(b.visits, url)
	if err, ok := b.navErr[url]; ok {
		return err
	}
	html, ok := b.pages[url]
	if !ok {
		return fmt.Errorf("no fixture for %s", url)
	}
	p.html = html
	return nil
}

func (p *page) WaitPresent(ctx context.Context, sel crawler.Selector) error {
	return p.WaitVisible(ctx, sel)
}

func (p *page) WaitVisible(ctx context.Context, sel crawler.Selector) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", crawler.ErrWaitTimeout, err)
	}
	ok, err := p.matches(sel)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", crawler.ErrWaitTimeout, sel.Expr)
	}
	return nil
}

func (p *page) WaitAnyVisible(ctx context.Context, sels ...crawler.Selector) (int, error) {
	for i, sel := range sels {
		if err := p.WaitVisible(ctx, sel); err == nil {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: none of %d selectors visible", crawler.ErrWaitTimeout, len(sels))
}

func (p *page) SelectValue(_ context.Context, selectCSS, value, _ string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return false, fmt.Errorf("parse fixture: %w", err)
	}
	sel := doc.Find(selectCSS).First()
	if sel.Length() == 0 {
		return false, nil
	}
	current := sel.Find("option[selected]").First().AttrOr("value", "")
	if current == value {
		return false, nil
	}
	p.browser.mu.Lock()
	p.browser.selects = append(p.browser.selects, selectCSS+"="+value)
	p.browser.mu.Unlock()
	return true, nil
}

func (p *page) HTML(_ context.Context) (string, error) {
	if p.html == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return p.html, nil
}

func (p *page) matches(sel crawler.Selector) (bool, error) {
	if sel.XPath {
		doc, err := htmlquery.Parse(strings.NewReader(p.html))
		if err != nil {
			return false, fmt.Errorf("parse fixture: %w", err)
		}
		node, err := htmlquery.Query(doc, sel.Expr)
		if err != nil {
			return false, fmt.Errorf("xpath %q: %w", sel.Expr, err)
		}
		return node != nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return false, fmt.Errorf("parse fixture: %w", err)
	}
	return doc.Find(sel.Expr).Length() > 0, nil
}
