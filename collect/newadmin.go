package collect

import (
	"fmt"
	"time"

	"github.com/autobill/browser"
	"github.com/autobill/config"
)

// collectNewAdmin runs the rebuilt admin portals. Same shape as ICS without
// facets, except the listing iframe is addressed by src query and the date
// widget echoes the chosen range into a display element that is verified
// before searching.
func (d *Driver) collectNewAdmin(sess *browser.Session, p *config.NewAdminProfile, rng config.DateRange, outcome *Outcome) error {
	if err := d.runMenuChain(sess, p.MenuChain); err != nil {
		return fmt.Errorf("menu navigation: %w", err)
	}

	frame, err := sess.FrameBy(p.FrameQuery)
	if err != nil {
		return err
	}

	start, end := rng.Dashed()
	if err := d.setDates(frame, p.Listing, start, end); err != nil {
		return fmt.Errorf("date entry: %w", err)
	}
	if p.DateDisplay != "" {
		if err := d.verifyDateDisplay(frame, p.DateDisplay, start, end); err != nil {
			return err
		}
	}

	res := FacetResult{}
	empty, err := d.searchAndProbe(sess, frame, p.Listing)
	if err != nil {
		return err
	}
	if empty {
		res.Empty = true
		outcome.Facets = append(outcome.Facets, res)
		return nil
	}

	file, err := d.download(frame, p.Listing.ExportButton)
	if err != nil {
		return err
	}
	res.File = file
	outcome.Facets = append(outcome.Facets, res)
	outcome.Files = append(outcome.Files, file)
	return nil
}

func (d *Driver) verifyDateDisplay(frame *browser.Scope, sel, start, end string) error {
	deadline := time.Now().Add(emptyProbe)
	var text string
	for time.Now().Before(deadline) {
		var err error
		text, err = frame.Text(sel)
		if err != nil {
			return err
		}
		if containsText(text, start) && containsText(text, end) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("date display shows %q, want %s..%s", text, start, end)
}
