package browser

import (
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ExpectPopup arms a watcher for the next page window this session opens.
// It must be called before the click that triggers the popup; the returned
// wait function delivers the popup as its own Session sharing the browser.
// Closing the popup session closes only that window.
func (s *Session) ExpectPopup() func(timeout time.Duration) (*Session, error) {
	ch := chromedp.WaitNewTarget(s.ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})

	return func(timeout time.Duration) (*Session, error) {
		select {
		case targetID := <-ch:
			pctx, pcancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(targetID))
			p := &Session{
				Account:     s.Account,
				Created:     time.Now(),
				ctx:         pctx,
				cancel:      pcancel,
				logger:      s.logger,
				downloadDir: s.downloadDir,
				dialogs:     make(chan string, 8),
			}
			chromedp.ListenTarget(pctx, func(ev interface{}) {
				if e, ok := ev.(*page.EventJavascriptDialogOpening); ok {
					p.recordDialog(e.Message)
					go chromedp.Run(pctx, page.HandleJavaScriptDialog(true))
				}
			})
			if err := chromedp.Run(pctx, chromedp.WaitReady("body")); err != nil {
				p.Close()
				return nil, fmt.Errorf("popup did not become ready: %w", err)
			}
			url, _ := p.CurrentURL()
			s.logger.Printf("Popup window opened: %s", url)
			return p, nil
		case <-time.After(timeout):
			return nil, fmt.Errorf("%w: no popup within %s", ErrPopupTimeout, timeout)
		}
	}
}
