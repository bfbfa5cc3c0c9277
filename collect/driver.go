// Package collect drives the usage-record exports: sign in (or reuse a live
// session), navigate to the listing screen, enter the date range, search,
// and download the export file per facet.
package collect

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autobill/auth"
	"github.com/autobill/browser"
	"github.com/autobill/config"
)

const (
	menuSettle      = 2 * time.Second
	searchSettle    = 3 * time.Second
	emptyProbe      = 5 * time.Second
	downloadSettle  = 2 * time.Second
	downloadCeiling = 90 * time.Second
	lockTimeout     = 2 * time.Minute
)

// FacetResult is the outcome of one facet (or the single unfaceted pass).
// Failed marks a non-trailing facet that could not be collected even after
// the navigation was re-run; the run continues past it.
type FacetResult struct {
	Name   string `json:"name,omitempty"`
	Empty  bool   `json:"empty"`
	Failed bool   `json:"failed,omitempty"`
	File   string `json:"file,omitempty"`
}

// Outcome summarizes one account's collection run.
type Outcome struct {
	Company string             `json:"company"`
	Kind    config.ServiceKind `json:"kind"`
	Files   []string           `json:"files"`
	Facets  []FacetResult      `json:"facets"`
}

// Empty reports whether the whole run produced no data.
func (o *Outcome) Empty() bool {
	for _, f := range o.Facets {
		if !f.Empty {
			return false
		}
	}
	return true
}

// Driver executes collection runs. Sessions already held in the registry are
// reused; otherwise a fresh login is performed.
type Driver struct {
	auth     *auth.Authenticator
	registry *browser.Registry
	lock     *browser.DownloadLock
	logger   *log.Logger
}

func NewDriver(a *auth.Authenticator, registry *browser.Registry, lock *browser.DownloadLock, logger *log.Logger) *Driver {
	return &Driver{auth: a, registry: registry, lock: lock, logger: logger}
}

// Collect runs the full export flow for one account over the date range.
// With keepAlive the session stays registered for a later phase; otherwise
// it is closed before returning.
func (d *Driver) Collect(account *config.Account, rng config.DateRange, keepAlive bool) (*Outcome, error) {
	sess, reused, err := d.session(account, keepAlive)
	if err != nil {
		return nil, err
	}
	if !keepAlive && !reused {
		defer sess.Close()
	}

	outcome := &Outcome{Company: account.Company, Kind: account.Kind}
	switch p := account.Profile.(type) {
	case *config.ICSProfile:
		err = d.collectICS(sess, p, rng, outcome)
	case *config.NewAdminProfile:
		err = d.collectNewAdmin(sess, p, rng, outcome)
	case *config.CallConsoleProfile:
		err = d.collectCallConsole(sess, p, rng, outcome)
	default:
		err = fmt.Errorf("no collection flow for portal family %q", account.Profile.Family())
	}
	if err != nil {
		return outcome, fmt.Errorf("collection for %s: %w", account.Key(), err)
	}
	d.logger.Printf("Collection done for %s: %d file(s)", account.Key(), len(outcome.Files))
	return outcome, nil
}

func (d *Driver) session(account *config.Account, keepAlive bool) (*browser.Session, bool, error) {
	if sess := d.registry.Acquire(account.Key()); sess != nil {
		d.logger.Printf("Reusing live session for %s", account.Key())
		return sess, true, nil
	}
	sess, err := d.auth.Login(account, keepAlive)
	if err != nil {
		return nil, false, err
	}
	return sess, false, nil
}

// download clicks the export control and waits for the file to land. The
// download directory is shared, so a lock serializes concurrent exports.
func (d *Driver) download(sc *browser.Scope, exportSel string) (string, error) {
	if err := d.lock.Acquire(lockTimeout); err != nil {
		return "", err
	}
	defer d.lock.Release()

	mark, err := browser.TakeWatermark(sc.Session().DownloadDir())
	if err != nil {
		return "", err
	}
	if err := sc.Click(exportSel, 3); err != nil {
		return "", fmt.Errorf("export button: %w", err)
	}
	path, err := mark.AwaitNewFile([]string{".csv", ".xls", ".xlsx"}, downloadSettle, downloadCeiling)
	if err != nil {
		return "", err
	}
	d.logger.Printf("Downloaded %s", path)
	return path, nil
}

// searchAndProbe clicks search and decides between an empty result (the
// portal raises a no-data dialog) and a populated listing.
func (d *Driver) searchAndProbe(sess *browser.Session, sc *browser.Scope, listing config.ListingSelectors) (empty bool, err error) {
	sess.DrainDialogs()
	if err := sc.Click(listing.SearchButton, 3); err != nil {
		return false, fmt.Errorf("search button: %w", err)
	}
	time.Sleep(searchSettle)
	sc.WaitMaskClear(emptyProbe)

	// Some portals report no-data through a JS alert rather than a modal.
	if msg, ok := sess.NextDialog(0); ok {
		if listing.NoDataText != "" && containsText(msg, listing.NoDataText) {
			d.logger.Printf("No data alert: %s", msg)
			return true, nil
		}
		d.logger.Printf("Unexpected alert after search: %s", msg)
	}

	if listing.NoDataDialog != "" {
		text, found, err := sc.TextIfVisible(listing.NoDataDialog, emptyProbe)
		if err != nil {
			return false, err
		}
		if found && (listing.NoDataText == "" || containsText(text, listing.NoDataText)) {
			if listing.NoDataOK != "" {
				if _, err := sc.Dismiss(listing.NoDataOK, emptyProbe); err != nil {
					d.logger.Printf("No-data dialog dismiss failed: %v", err)
				}
			}
			return true, nil
		}
	}
	return false, nil
}

// setDates writes both range inputs and verifies they stuck; widgets that
// swallow the script mutation fall back to native typing when the scope
// allows it.
func (d *Driver) setDates(sc *browser.Scope, listing config.ListingSelectors, start, end string) error {
	for _, field := range []struct{ sel, val string }{
		{listing.DateStart, start},
		{listing.DateEnd, end},
	} {
		if err := sc.SetValue(field.sel, field.val); err != nil {
			return err
		}
		got, err := sc.Value(field.sel)
		if err != nil {
			return err
		}
		if got == field.val {
			continue
		}
		if !sc.IsTop() {
			return fmt.Errorf("date field %s reads %q after setting %q", field.sel, got, field.val)
		}
		if err := sc.SetValueTyped(field.sel, field.val); err != nil {
			return err
		}
	}
	return nil
}

func containsText(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
