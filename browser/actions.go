package browser

import (
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// DefaultMask matches the blocking loading overlays the vendor portals show
// during async operations.
const DefaultMask = ".ax-mask-body, .loading-mask, .loading-overlay"

const (
	pollInterval  = 250 * time.Millisecond
	clickBackoff  = 500 * time.Millisecond
	clickSettle   = 500 * time.Millisecond
	maskWaitShort = 2 * time.Second
)

// Scope is a selector context: the top document or one iframe. The portals
// nest their functional content inside iframes at portal-specific depths, so
// every primitive runs relative to a scope's document.
type Scope struct {
	sess *Session
	doc  string // JS expression for the scope's document
}

// Top returns the top-document scope.
func (s *Session) Top() *Scope {
	return &Scope{sess: s, doc: "document"}
}

// Frame returns the scope for iframe N of the top document, failing with
// ErrFrameNotFound when fewer than N+1 frames exist.
func (s *Session) Frame(index int) (*Scope, error) {
	var count int
	if err := s.Run(chromedp.Evaluate(`document.querySelectorAll('iframe').length`, &count)); err != nil {
		return nil, fmt.Errorf("failed to count frames: %w", err)
	}
	if count <= index {
		return nil, fmt.Errorf("%w: index %d of %d frames", ErrFrameNotFound, index, count)
	}
	doc := fmt.Sprintf(`document.querySelectorAll('iframe')[%d].contentWindow.document`, index)
	return &Scope{sess: s, doc: doc}, nil
}

// FrameBy returns the scope for the iframe matched by a CSS query, for
// portals that address their listing frame by src rather than position.
func (s *Session) FrameBy(query string) (*Scope, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%q) !== null`, query)
	if err := s.Run(chromedp.Evaluate(expr, &found)); err != nil {
		return nil, fmt.Errorf("failed to query frame %q: %w", query, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: query %q", ErrFrameNotFound, query)
	}
	doc := fmt.Sprintf(`document.querySelector(%q).contentWindow.document`, query)
	return &Scope{sess: s, doc: doc}, nil
}

func (sc *Scope) eval(expr string, res interface{}) error {
	return sc.sess.Run(chromedp.Evaluate(expr, res))
}

// Visible reports whether the first element matching sel is rendered.
func (sc *Scope) Visible(sel string) (bool, error) {
	expr := fmt.Sprintf(`(function() {
		var el = %s.querySelector(%q);
		return !!(el && el.offsetParent !== null);
	})()`, sc.doc, sel)
	var visible bool
	if err := sc.eval(expr, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// WaitVisible polls until sel is rendered or the timeout elapses.
func (sc *Scope) WaitVisible(sel string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if ok, err := sc.Visible(sel); err == nil && ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s not visible after %s", ErrElementNotInteractable, sel, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// WaitMaskClear waits for every currently-visible loading overlay to become
// invisible. A mask that never clears is logged and tolerated: absence of an
// overlay is the normal case, and the subsequent click decides success.
func (sc *Scope) WaitMaskClear(timeout time.Duration) {
	expr := fmt.Sprintf(`(function() {
		var masks = %s.querySelectorAll(%q);
		for (var i = 0; i < masks.length; i++) {
			if (masks[i].offsetParent !== null) return true;
		}
		return false;
	})()`, sc.doc, DefaultMask)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var masked bool
		if err := sc.eval(expr, &masked); err != nil || !masked {
			return
		}
		time.Sleep(pollInterval)
	}
	sc.sess.logger.Printf("Loading mask still visible after %s, proceeding", timeout)
}

func (sc *Scope) clickJS(sel string) (bool, error) {
	// Script-level click: the portals render click targets outside their
	// pointer-hit geometry, which breaks native clicks.
	expr := fmt.Sprintf(`(function() {
		var el = %s.querySelector(%q);
		if (!el) return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})()`, sc.doc, sel)
	var clicked bool
	if err := sc.eval(expr, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

// Click waits for sel then script-clicks it, retrying up to attempts times
// with a fixed backoff.
func (sc *Scope) Click(sel string, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		sc.WaitMaskClear(maskWaitShort)
		ok, err := sc.clickJS(sel)
		if err == nil && ok {
			time.Sleep(clickSettle)
			return nil
		}
		lastErr = err
		time.Sleep(clickBackoff)
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotInteractable, sel, lastErr)
	}
	return fmt.Errorf("%w: %s", ErrElementNotInteractable, sel)
}

// ClickByText script-clicks the first element of the given tag whose text
// contains substr. Used where portals generate element ids per render.
func (sc *Scope) ClickByText(tag, substr string, attempts int) error {
	expr := fmt.Sprintf(`(function() {
		var els = %s.querySelectorAll(%q);
		for (var i = 0; i < els.length; i++) {
			if (els[i].textContent.indexOf(%q) >= 0) {
				els[i].scrollIntoView({block: 'center'});
				els[i].click();
				return true;
			}
		}
		return false;
	})()`, sc.doc, tag, substr)

	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		sc.WaitMaskClear(maskWaitShort)
		var clicked bool
		if err := sc.eval(expr, &clicked); err == nil && clicked {
			time.Sleep(clickSettle)
			return nil
		}
		time.Sleep(clickBackoff)
	}
	return fmt.Errorf("%w: <%s> containing %q", ErrElementNotInteractable, tag, substr)
}

// SetValue writes a value into an input via script and dispatches a change
// event. The portals' date-pickers reject native keystrokes under headless,
// so the script path is primary; SetValueTyped is the fallback.
func (sc *Scope) SetValue(sel, value string) error {
	expr := fmt.Sprintf(`(function() {
		var el = %s.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, sc.doc, sel, value)
	var ok bool
	if err := sc.eval(expr, &ok); err != nil {
		return fmt.Errorf("failed to set value on %s: %w", sel, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotInteractable, sel)
	}
	return nil
}

// SetValueTyped clears the field and types the value with native keys. Only
// valid in the top scope, where chromedp can resolve the node.
func (sc *Scope) SetValueTyped(sel, value string) error {
	if sc.doc != "document" {
		return fmt.Errorf("%w: typed input only supported in top scope", ErrElementNotInteractable)
	}
	err := sc.sess.Run(
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Control+"a"),
		chromedp.KeyEvent(kb.Delete),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	)
	if err != nil {
		return fmt.Errorf("failed to type into %s: %w", sel, err)
	}
	return nil
}

// Text returns the trimmed text content of sel, or "" when absent.
func (sc *Scope) Text(sel string) (string, error) {
	expr := fmt.Sprintf(`(function() {
		var el = %s.querySelector(%q);
		return el ? el.textContent.trim() : "";
	})()`, sc.doc, sel)
	var text string
	if err := sc.eval(expr, &text); err != nil {
		return "", err
	}
	return text, nil
}

// Value returns the current value of an input element.
func (sc *Scope) Value(sel string) (string, error) {
	expr := fmt.Sprintf(`(function() {
		var el = %s.querySelector(%q);
		return el ? el.value : "";
	})()`, sc.doc, sel)
	var v string
	if err := sc.eval(expr, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Texts returns the trimmed text content of every element matching sel, in
// document order.
func (sc *Scope) Texts(sel string) ([]string, error) {
	expr := fmt.Sprintf(`(function() {
		var out = [];
		var els = %s.querySelectorAll(%q);
		for (var i = 0; i < els.length; i++) out.push(els[i].textContent.trim());
		return out;
	})()`, sc.doc, sel)
	var texts []string
	if err := sc.eval(expr, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

// Count returns how many elements match sel.
func (sc *Scope) Count(sel string) (int, error) {
	expr := fmt.Sprintf(`%s.querySelectorAll(%q).length`, sc.doc, sel)
	var n int
	if err := sc.eval(expr, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Dismiss probes briefly for a modal and clicks its accept control when
// found. The boolean distinguishes "dialog was there" from "nothing
// appeared"; the latter is a valid outcome, not an error.
func (sc *Scope) Dismiss(okSel string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := sc.Visible(okSel)
		if err != nil {
			return false, err
		}
		if ok {
			if _, err := sc.clickJS(okSel); err != nil {
				return true, err
			}
			time.Sleep(clickSettle)
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(pollInterval)
	}
}

// TextIfVisible waits up to timeout for sel to render and returns its text.
// Absence within the window reports found=false without error.
func (sc *Scope) TextIfVisible(sel string, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := sc.Visible(sel)
		if err != nil {
			return "", false, err
		}
		if ok {
			text, err := sc.Text(sel)
			return text, true, err
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		time.Sleep(pollInterval)
	}
}

// PressKeys sends native key events to the focused element, e.g. walking an
// autocomplete list with arrows. Top scope only.
func (sc *Scope) PressKeys(keys ...string) error {
	if sc.doc != "document" {
		return fmt.Errorf("%w: key events only supported in top scope", ErrElementNotInteractable)
	}
	actions := make([]chromedp.Action, 0, len(keys))
	for _, k := range keys {
		actions = append(actions, chromedp.KeyEvent(k))
	}
	return sc.sess.Run(actions...)
}

// IsTop reports whether this scope is the top document.
func (sc *Scope) IsTop() bool { return sc.doc == "document" }

// Session returns the owning session.
func (sc *Scope) Session() *Session { return sc.sess }
