package browser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/autobill/config"
)

// Options holds the fixed browser configuration. Every session launches the
// same way so portal behavior is deterministic across runs.
type Options struct {
	Headless    bool
	DownloadDir string
}

// Session is one live browser bound to one account. The handle is exclusively
// owned: no two components may drive the same session concurrently.
type Session struct {
	Account *config.Account
	Created time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *log.Logger
	downloadDir string

	mu      sync.Mutex
	dialogs chan string
	closed  bool
}

// Launch starts a browser with the fixed configuration and returns a session
// not yet bound to any page. The download directory is created if missing and
// wired into the browser so exports land there directly.
func Launch(account *config.Account, opts Options, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "[AUTOBILL] ", log.LstdFlags)
	}

	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	absDownload, err := filepath.Abs(opts.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute download path: %w", err)
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		// Vendor portals probe for automation; present as a plain browser.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Printf))

	s := &Session{
		Account:     account,
		Created:     time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
		downloadDir: absDownload,
		dialogs:     make(chan string, 8),
	}

	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(absDownload).
			WithEventsEnabled(true),
	); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to set download behavior: %w", err)
	}

	// Native JS dialogs are auto-accepted; the message is kept so callers can
	// distinguish login alerts from silence.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			s.recordDialog(e.Message)
			go chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
		}
	})

	logger.Printf("Browser launched for %s/%s. Download path: %s",
		account.Company, account.Kind, absDownload)
	return s, nil
}

func (s *Session) recordDialog(msg string) {
	s.logger.Printf("Dialog: %s", msg)
	select {
	case s.dialogs <- msg:
	default:
	}
}

// Run executes chromedp actions against this session's browser.
func (s *Session) Run(actions ...chromedp.Action) error {
	return chromedp.Run(s.ctx, actions...)
}

// Navigate loads a URL and waits for the document body.
func (s *Session) Navigate(url string) error {
	if err := s.Run(
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// DownloadDir is the directory this session's exports are written to.
func (s *Session) DownloadDir() string { return s.downloadDir }

// Logger returns the session's logger.
func (s *Session) Logger() *log.Logger { return s.logger }

// NextDialog waits up to timeout for a native JS dialog to open. The boolean
// is false when the window elapses quietly, which for login flows is the
// success case, not an error.
func (s *Session) NextDialog(timeout time.Duration) (string, bool) {
	select {
	case msg := <-s.dialogs:
		return msg, true
	case <-time.After(timeout):
		return "", false
	}
}

// DrainDialogs discards any dialog messages recorded so far.
func (s *Session) DrainDialogs() {
	for {
		select {
		case <-s.dialogs:
		default:
			return
		}
	}
}

// CurrentURL returns the top document's location.
func (s *Session) CurrentURL() (string, error) {
	var url string
	if err := s.Run(chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}
