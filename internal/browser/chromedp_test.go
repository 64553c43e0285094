package browser

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 1920, cfg.WindowWidth)
	assert.Equal(t, 1080, cfg.WindowHeight)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)

	custom := Config{UserAgent: "kbo-bot", WaitTimeout: time.Second}.withDefaults()
	assert.Equal(t, "kbo-bot", custom.UserAgent)
	assert.Equal(t, time.Second, custom.WaitTimeout)
}

func TestAllocatorOptionsIncludeExecPath(t *testing.T) {
	base := New(Config{}, nil, nil)
	withPath := New(Config{ExecPath: "/usr/bin/chromium"}, nil, nil)
	assert.Len(t, withPath.allocatorOptions(), len(base.allocatorOptions())+1)
}

func TestScriptsEmbedArgumentsAsJSON(t *testing.T) {
	script, err := firstVisibleScript([]crawler.Selector{
		crawler.CSS(".tbl-score td a.score-re"),
		crawler.XPath(`//h4[contains(text(), "롯데")]`),
	})
	require.NoError(t, err)
	assert.Contains(t, script, `{"expr":".tbl-score td a.score-re","xpath":false}`)
	assert.Contains(t, script, `"xpath":true`)
	assert.Contains(t, script, `\"롯데\"`)

	sel, err := selectScript("#month", "07", ".tbl-score")
	require.NoError(t, err)
	assert.Contains(t, sel, `["#month","07",".tbl-score","data-kbo-stale"]`)
	assert.Contains(t, sel, `"changed"`)

	reload, err := reloadedScript(".tbl-score")
	require.NoError(t, err)
	assert.True(t, strings.Contains(reload, `hasAttribute(attr)`))
}

func TestForwardCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func TestForwardCancelStop(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	stop()
	cancelParent()
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, child.Err())
}

func TestClassify(t *testing.T) {
	bg := context.Background()
	expired, cancel := context.WithTimeout(bg, -time.Second)
	defer cancel()

	err := classify(bg, expired, errors.New("boom"))
	assert.ErrorIs(t, err, crawler.ErrWaitTimeout)

	canceled, cancelNow := context.WithCancel(bg)
	cancelNow()
	err = classify(canceled, canceled, errors.New("boom"))
	assert.NotErrorIs(t, err, crawler.ErrWaitTimeout)
	assert.ErrorIs(t, err, context.Canceled)

	err = classify(bg, bg, errors.New("node not found"))
	assert.NotErrorIs(t, err, crawler.ErrWaitTimeout)
}

func testSession(wait time.Duration, logger *zap.Logger) *session {
	cfg := Config{WaitTimeout: wait, PollInterval: 5 * time.Millisecond}.withDefaults()
	return &session{tab: context.Background(), cfg: cfg, logger: logger}
}

func TestPollRidesOutTransientErrors(t *testing.T) {
	s := testSession(time.Second, zap.NewNop())
	calls := 0
	err := s.poll(context.Background(), func(context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("Execution context was destroyed")
		}
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPollReportsLastErrorAsWaitTimeout(t *testing.T) {
	s := testSession(30*time.Millisecond, zap.NewNop())
	err := s.poll(context.Background(), func(context.Context) (bool, error) {
		return false, errors.New("cannot find context with specified id")
	})
	require.ErrorIs(t, err, crawler.ErrWaitTimeout)
	assert.Contains(t, err.Error(), "cannot find context")

	err = s.poll(context.Background(), func(context.Context) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, crawler.ErrWaitTimeout)
}

func TestPollStopsOnCallerCancel(t *testing.T) {
	s := testSession(time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	err := s.poll(ctx, func(context.Context) (bool, error) {
		cancel()
		return false, errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, crawler.ErrWaitTimeout)
}

func TestSelectChangedWarnsWhenMissing(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := testSession(time.Second, zap.New(core))

	assert.True(t, s.selectChanged("changed", "#month", "07"))
	assert.False(t, s.selectChanged("same", "#month", "07"))
	assert.Equal(t, 0, logs.Len(), "an already-selected value is not a warning")

	assert.False(t, s.selectChanged("missing", "#year", "2025"))
	assert.False(t, s.selectChanged("missing-option", "#month", "13"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "select not found", logs.All()[0].Message)
	assert.Equal(t, "#year", logs.All()[0].ContextMap()["select"])
}

func TestWithSessionCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New(Config{}, nil, zap.NewNop()).WithSession(ctx, func(crawler.Page) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, crawler.ErrTransport)
	assert.False(t, called)
}

func TestWithSessionAgainstChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	if !chromeAvailable() {
		t.Skip("chrome not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const page = `data:text/html,<html><body><div id="root"><select id="month">` +
		`<option value="01" selected>01</option><option value="02">02</option></select>` +
		`<p class="tbl-score">x</p></div></body></html>`

	launcher := New(Config{WaitTimeout: 5 * time.Second}, nil, zap.NewNop())
	err := launcher.WithSession(ctx, func(p crawler.Page) error {
		if err := p.Navigate(ctx, page); err != nil {
			return err
		}
		if err := p.WaitPresent(ctx, crawler.CSS("#root")); err != nil {
			return err
		}
		idx, err := p.WaitAnyVisible(ctx, crawler.CSS(".missing"), crawler.CSS(".tbl-score"))
		if err != nil {
			return err
		}
		assert.Equal(t, 1, idx)
		changed, err := p.SelectValue(ctx, "#month", "01", "")
		if err != nil {
			return err
		}
		assert.False(t, changed)
		html, err := p.HTML(ctx)
		if err != nil {
			return err
		}
		assert.Contains(t, html, `id="month"`)
		return nil
	})
	require.NoError(t, err)
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
