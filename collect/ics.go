package collect

import (
	"fmt"
	"log"
	"time"

	"github.com/autobill/browser"
	"github.com/autobill/config"
)

// collectICS runs the iframe-hosted listing portals: menu chain on the top
// document, then every listing interaction inside the portal's iframe. With
// facets declared, each brand is collected in order through runFacets.
func (d *Driver) collectICS(sess *browser.Session, p *config.ICSProfile, rng config.DateRange, outcome *Outcome) error {
	if err := d.runMenuChain(sess, p.MenuChain); err != nil {
		return fmt.Errorf("menu navigation: %w", err)
	}

	facets := p.Facets
	if len(facets) == 0 {
		facets = []config.Facet{{}}
	}
	err := runFacets(facets,
		func(facet config.Facet) (FacetResult, error) {
			return d.collectFacet(sess, p, rng, facet)
		},
		func() error { return d.runMenuChain(sess, p.MenuChain) },
		d.logger, outcome)
	if err != nil {
		return err
	}

	if p.Chat != nil {
		res, err := d.collectChat(sess, p.Chat, rng)
		if err != nil {
			return fmt.Errorf("chat pass: %w", err)
		}
		outcome.Facets = append(outcome.Facets, res)
		if res.File != "" {
			outcome.Files = append(outcome.Files, res.File)
		}
	}
	return nil
}

// runFacets walks the declared facets in order. A single facet failure
// never stops the walk: a non-trailing facet gets one retry after the
// navigation is re-run (these portals drop the listing widget into a broken
// state on timeout), then is recorded as failed and skipped; a trailing
// facet that fails is recorded as empty, since the trailing brand routinely
// has no activity in range. Only a failed navigation recovery aborts,
// because every later facet would start from the same broken screen.
func runFacets(facets []config.Facet, attempt func(config.Facet) (FacetResult, error), renavigate func() error, logger *log.Logger, outcome *Outcome) error {
	for i, facet := range facets {
		last := i == len(facets)-1
		res, err := attempt(facet)
		if err != nil && !last {
			logger.Printf("Facet %q failed, re-running navigation: %v", facet.Name, err)
			if navErr := renavigate(); navErr != nil {
				return fmt.Errorf("menu recovery after facet %q: %w", facet.Name, navErr)
			}
			res, err = attempt(facet)
		}
		if err != nil {
			if last {
				logger.Printf("Trailing facet %q failed, treating as no data: %v", facet.Name, err)
				res = FacetResult{Name: facet.Name, Empty: true}
			} else {
				logger.Printf("Facet %q failed twice, skipping: %v", facet.Name, err)
				outcome.Facets = append(outcome.Facets, FacetResult{Name: facet.Name, Failed: true})
				if navErr := renavigate(); navErr != nil {
					return fmt.Errorf("menu recovery after facet %q: %w", facet.Name, navErr)
				}
				continue
			}
		}
		outcome.Facets = append(outcome.Facets, res)
		if res.File != "" {
			outcome.Files = append(outcome.Files, res.File)
		}
	}
	return nil
}

func (d *Driver) runMenuChain(sess *browser.Session, chain []string) error {
	top := sess.Top()
	for _, sel := range chain {
		if err := top.Click(sel, 3); err != nil {
			return err
		}
	}
	time.Sleep(menuSettle)
	return nil
}

func (d *Driver) collectFacet(sess *browser.Session, p *config.ICSProfile, rng config.DateRange, facet config.Facet) (FacetResult, error) {
	res := FacetResult{Name: facet.Name}

	frame, err := sess.Frame(p.FrameIndex)
	if err != nil {
		return res, err
	}

	if facet.Name != "" {
		if err := d.selectFacet(frame, p, facet); err != nil {
			return res, err
		}
	}

	start, end := rng.Compact()
	if err := d.setDates(frame, p.Listing, start, end); err != nil {
		return res, fmt.Errorf("date entry: %w", err)
	}

	empty, err := d.searchAndProbe(sess, frame, p.Listing)
	if err != nil {
		return res, err
	}
	if empty {
		d.logger.Printf("Facet %q has no records in range", facet.Name)
		res.Empty = true
		return res, nil
	}

	file, err := d.download(frame, p.Listing.ExportButton)
	if err != nil {
		return res, err
	}
	res.File = file
	return res, nil
}

// selectFacet replaces the active brand filter. A leftover chip from the
// previous facet may or may not exist, so its removal never fails the run.
func (d *Driver) selectFacet(frame *browser.Scope, p *config.ICSProfile, facet config.Facet) error {
	if p.FacetRemove != "" {
		if err := frame.Click(p.FacetRemove, 1); err != nil {
			d.logger.Printf("No facet chip to remove before %q", facet.Name)
		}
	}

	value := facet.OptionValue
	if value == "" {
		value = facet.Name
	}
	if err := frame.SetValue(p.FacetInput, value); err != nil {
		return fmt.Errorf("facet input: %w", err)
	}
	// The autocomplete needs a beat before its option list exists.
	time.Sleep(time.Second)
	if err := frame.ClickByText("li", value, 3); err != nil {
		return fmt.Errorf("facet option %q: %w", value, err)
	}
	return nil
}

// collectChat runs the chat-list export on the already navigated session.
// Chat listings take dashed dates, so the range is reformatted from the
// compact form the main listing used.
func (d *Driver) collectChat(sess *browser.Session, chat *config.ChatSelectors, rng config.DateRange) (FacetResult, error) {
	res := FacetResult{Name: "chat"}

	if err := d.runMenuChain(sess, chat.MenuChain); err != nil {
		return res, fmt.Errorf("menu navigation: %w", err)
	}
	frame, err := sess.Frame(chat.FrameIndex)
	if err != nil {
		return res, err
	}

	if chat.TagRemove != "" {
		if err := frame.Click(chat.TagRemove, 1); err != nil {
			d.logger.Printf("No chat tag filter to clear")
		}
	}

	startC, endC := rng.Compact()
	start, err := config.ReformatCompact(startC)
	if err != nil {
		return res, err
	}
	end, err := config.ReformatCompact(endC)
	if err != nil {
		return res, err
	}
	if err := d.setDates(frame, chat.Listing, start, end); err != nil {
		return res, fmt.Errorf("date entry: %w", err)
	}

	empty, err := d.searchAndProbe(sess, frame, chat.Listing)
	if err != nil {
		return res, err
	}
	if empty {
		res.Empty = true
		return res, nil
	}

	file, err := d.download(frame, chat.Listing.ExportButton)
	if err != nil {
		return res, err
	}
	res.File = file
	return res, nil
}
