package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Sentinel errors for the page-fetch failure class. Anything wrapping
// these fails the whole task; resolver-level misses never surface here.
var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrNavigationFailed  = errors.New("navigation failed")
	ErrSessionClosed     = errors.New("session closed")
)

// Launcher owns the browser exec allocator and mints page sessions.
// One launcher serves the whole process; each task gets its own
// session (tab) so a crash or anti-bot block stays isolated.
type Launcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// Options configures the launcher.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
}

// NewLauncher builds an exec allocator with the usual container-safe
// Chrome flags and verifies the browser binary actually starts, so a
// missing binary surfaces before any task is scheduled.
func NewLauncher(opts Options, logger *zap.Logger) (*Launcher, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	l := &Launcher{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  opts.NavigationTimeout,
		logger:   logger,
	}
	if err := l.verify(); err != nil {
		cancel()
		return nil, fmt.Errorf("browser launch check: %w", err)
	}
	return l, nil
}

func (l *Launcher) verify() error {
	ctx, cancel := chromedp.NewContext(l.allocCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, 30*time.Second)
	defer timeoutCancel()
	return chromedp.Run(ctx, chromedp.Navigate("about:blank"))
}

// NewSession opens a fresh tab.
func (l *Launcher) NewSession() *Session {
	ctx, cancel := chromedp.NewContext(l.allocCtx)
	return &Session{ctx: ctx, cancel: cancel, timeout: l.timeout}
}

// Close tears down the allocator and every session minted from it.
func (l *Launcher) Close() {
	l.cancel()
}

// Session is one automated-browser tab. It is disposable: a task uses
// it for its navigations and evaluations, then closes it. Close may be
// called from another goroutine to abort in-flight calls.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Navigate loads a URL and waits for the body to be visible. Timeouts
// and network failures come back wrapping ErrNavigationTimeout or
// ErrNavigationFailed.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel, err := s.opContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return fmt.Errorf("%w: %s: %v", ErrNavigationFailed, url, err)
	}
	return nil
}

// HTML snapshots the rendered document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	runCtx, cancel, err := s.opContext(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return html, nil
}

// Evaluate runs a script in the page and unmarshals its result into
// out. Promises are awaited, so async extraction snippets work too.
func (s *Session) Evaluate(ctx context.Context, script string, out interface{}) error {
	runCtx, cancel, err := s.opContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	return chromedp.Run(runCtx, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// scrollScript walks the page to the bottom in viewport-sized steps and
// returns to the top, forcing lazily loaded images to mount.
const scrollScript = `
(async () => {
	const step = window.innerHeight;
	let last = -1;
	while (window.scrollY + window.innerHeight < document.body.scrollHeight) {
		window.scrollBy(0, step);
		await new Promise(r => setTimeout(r, 250));
		if (window.scrollY === last) break;
		last = window.scrollY;
	}
	window.scrollTo(0, 0);
	return true;
})()
`

// ScrollToBottom performs the full-page lazy-load pass.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	var done bool
	return s.Evaluate(ctx, scrollScript, &done)
}

// Sleep waits in the context of the session, returning early if the
// session is closed underneath it.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	runCtx, cancel, err := s.opContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Sleep(d))
}

// Close disposes the tab and aborts any in-flight browser call.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrSessionClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }, nil
}
