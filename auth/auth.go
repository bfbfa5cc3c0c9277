// Package auth performs portal logins and hands live sessions to the
// collection and submission drivers.
package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autobill/browser"
	"github.com/autobill/config"
)

var (
	// ErrInvalidCredentials means the portal rejected the username or
	// password. Retrying without a credential change is pointless.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPortalUnreachable means the login page did not load or the login
	// flow broke before the portal could judge the credentials.
	ErrPortalUnreachable = errors.New("portal unreachable")
)

const (
	loginSettle    = 2 * time.Second
	successTimeout = 15 * time.Second
	dialogProbe    = 3 * time.Second
)

// Authenticator logs accounts into their portals. Successful keep-alive
// logins are registered so later phases can reuse the session.
type Authenticator struct {
	registry *browser.Registry
	opts     browser.Options
	logger   *log.Logger
}

func New(registry *browser.Registry, opts browser.Options, logger *log.Logger) *Authenticator {
	return &Authenticator{registry: registry, opts: opts, logger: logger}
}

// Login opens a fresh browser, signs the account in, and returns the live
// session. With keepAlive the session is also registered under the account's
// key; registration failure (key already held) closes the new session and
// surfaces browser.ErrSessionExists. On any login failure the browser is
// closed before returning.
func (a *Authenticator) Login(account *config.Account, keepAlive bool) (*browser.Session, error) {
	sess, err := browser.Launch(account, a.opts, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortalUnreachable, err)
	}

	if err := a.signIn(sess, account); err != nil {
		sess.Close()
		return nil, err
	}

	if keepAlive {
		if err := a.registry.Put(sess); err != nil {
			sess.Close()
			return nil, err
		}
		a.logger.Printf("Session registered for %s", account.Key())
	}
	return sess, nil
}

func (a *Authenticator) signIn(sess *browser.Session, account *config.Account) error {
	sel := account.Profile.Login()
	a.logger.Printf("Logging in %s at %s", account.Key(), account.SiteURL)

	if err := sess.Navigate(account.SiteURL); err != nil {
		return fmt.Errorf("%w: %v", ErrPortalUnreachable, err)
	}
	time.Sleep(loginSettle)

	top := sess.Top()
	if err := top.WaitVisible(sel.UserField, successTimeout); err != nil {
		return fmt.Errorf("%w: login form did not appear: %v", ErrPortalUnreachable, err)
	}

	// The call console auto-enables its softphone on load, which grabs audio
	// devices the runner does not have. Switch it off before touching the
	// form; a toggle that is already off is not rendered, so absence is fine.
	if sel.SoftphoneToggle != "" {
		if found, err := top.Dismiss(sel.SoftphoneToggle, dialogProbe); err != nil {
			a.logger.Printf("Softphone toggle click failed: %v", err)
		} else if found {
			a.logger.Printf("Softphone disabled for %s", account.Key())
		}
	}

	if err := top.SetValue(sel.UserField, account.Username); err != nil {
		return fmt.Errorf("%w: username field: %v", ErrPortalUnreachable, err)
	}
	if err := top.SetValue(sel.PassField, account.Password); err != nil {
		return fmt.Errorf("%w: password field: %v", ErrPortalUnreachable, err)
	}
	if sel.Consent != "" {
		if err := top.Click(sel.Consent, 2); err != nil {
			a.logger.Printf("Consent checkbox not clickable, continuing: %v", err)
		}
	}

	sess.DrainDialogs()
	if err := top.Click(sel.Submit, 3); err != nil {
		return fmt.Errorf("%w: submit button: %v", ErrPortalUnreachable, err)
	}

	if err := a.probeSuccess(sess, account, sel); err != nil {
		return err
	}

	if sel.PostLoginDialog != "" {
		if found, err := top.Dismiss(sel.PostLoginDialog, dialogProbe); err != nil {
			a.logger.Printf("Post-login dialog dismiss failed: %v", err)
		} else if found {
			a.logger.Printf("Post-login dialog dismissed for %s", account.Key())
		}
	}

	a.logger.Printf("Login success for %s", account.Key())
	return nil
}

// probeSuccess decides whether the login landed. A JS alert right after
// submit is the portals' rejection channel, so it wins over the marker wait.
func (a *Authenticator) probeSuccess(sess *browser.Session, account *config.Account, sel config.LoginSelectors) error {
	if msg, ok := sess.NextDialog(dialogProbe); ok {
		a.logger.Printf("Login alert for %s: %s", account.Key(), msg)
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
	}

	deadline := time.Now().Add(successTimeout)
	top := sess.Top()
	for time.Now().Before(deadline) {
		if sel.SuccessMarker != "" {
			if ok, err := top.Visible(sel.SuccessMarker); err == nil && ok {
				return nil
			}
		} else {
			url, err := sess.CurrentURL()
			if err == nil && url != "" && !strings.Contains(url, "login") {
				return nil
			}
		}
		if msg, ok := sess.NextDialog(0); ok {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
		}
		time.Sleep(500 * time.Millisecond)
	}

	// Form still on screen means rejection without an alert.
	if ok, err := top.Visible(sel.UserField); err == nil && ok {
		return fmt.Errorf("%w: login form still present", ErrInvalidCredentials)
	}
	return fmt.Errorf("%w: no success marker after %s", ErrPortalUnreachable, successTimeout)
}

// Logout releases a registered session, closing its browser.
func (a *Authenticator) Logout(key config.SessionKey) {
	a.registry.Release(key)
	a.logger.Printf("Session released for %s", key)
}
