package collect

import (
	"fmt"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/autobill/browser"
	"github.com/autobill/config"
)

// collectCallConsole runs the ExtJS call-log consoles. Everything lives in
// the top document; the company tree and menu render generated ids, so both
// are reached by text. Two filters (outbound only, completed-call status)
// are driven before the search.
func (d *Driver) collectCallConsole(sess *browser.Session, p *config.CallConsoleProfile, rng config.DateRange, outcome *Outcome) error {
	top := sess.Top()

	if err := top.ClickByText("span", p.CompanyText, 3); err != nil {
		return fmt.Errorf("company node: %w", err)
	}
	if err := top.ClickByText("span", p.MenuText, 3); err != nil {
		return fmt.Errorf("call log menu: %w", err)
	}
	time.Sleep(menuSettle)

	if err := top.Click(p.OutboundFilter, 3); err != nil {
		return fmt.Errorf("outbound filter: %w", err)
	}
	if err := d.selectCallStatus(top, p); err != nil {
		return err
	}

	start, end := rng.Dashed()
	if err := d.setDates(top, p.Listing, start, end); err != nil {
		return fmt.Errorf("date entry: %w", err)
	}

	res := FacetResult{}
	empty, err := d.searchAndProbe(sess, top, p.Listing)
	if err != nil {
		return err
	}
	if empty {
		res.Empty = true
		outcome.Facets = append(outcome.Facets, res)
		return nil
	}

	file, err := d.download(top, p.Listing.ExportButton)
	if err != nil {
		return err
	}
	res.File = file
	outcome.Facets = append(outcome.Facets, res)
	outcome.Files = append(outcome.Files, file)
	return nil
}

// selectCallStatus opens the status combo and walks its option list with the
// keyboard. The list items carry no stable selectors, only their position.
func (d *Driver) selectCallStatus(top *browser.Scope, p *config.CallConsoleProfile) error {
	if err := top.Click(p.CallStatusFilter, 3); err != nil {
		return fmt.Errorf("call status filter: %w", err)
	}
	keys := make([]string, 0, p.CallStatusSteps+1)
	for i := 0; i < p.CallStatusSteps; i++ {
		keys = append(keys, kb.ArrowDown)
	}
	keys = append(keys, kb.Enter)
	if err := top.PressKeys(keys...); err != nil {
		return fmt.Errorf("call status selection: %w", err)
	}
	time.Sleep(time.Second)
	return nil
}
