package submit

import (
	"fmt"
	"strings"
	"time"

	"github.com/autobill/browser"
)

// runRounds walks the paginated expense table. Each round saves the page's
// unprocessed rows one by one, then batch-reconciles exactly the rows saved
// this round. The loop ends when the records are consumed, a round saves
// nothing, or pagination runs out; all three are clean completions.
func (b *Bot) runRounds(sess *browser.Session, ledger *Ledger, summary *Summary) error {
	top := sess.Top()
	for {
		summary.Rounds++
		b.logger.Printf("Round %d: scanning table", summary.Rounds)

		saved, err := b.processPage(sess, top, ledger)
		if err != nil {
			return fmt.Errorf("round %d: %w", summary.Rounds, err)
		}
		if len(saved) == 0 {
			b.logger.Printf("Round %d saved no rows, stopping", summary.Rounds)
			return nil
		}

		if err := b.reconcileSaved(sess, top, saved); err != nil {
			return fmt.Errorf("round %d reconcile: %w", summary.Rounds, err)
		}

		if ledger.Exhausted() {
			b.logger.Printf("All %d records consumed", ledger.Total())
			return nil
		}
		if !b.nextPage(top) {
			b.logger.Printf("Pagination exhausted after round %d", summary.Rounds)
			return nil
		}
	}
}

// processPage runs the row loop for the current page and returns the 1-based
// indices of the rows it saved. The table DOM is replaced on every save, so
// each iteration re-queries instead of holding element references.
func (b *Bot) processPage(sess *browser.Session, top *browser.Scope, ledger *Ledger) ([]int, error) {
	count, err := top.Count(selTableRows)
	if err != nil {
		return nil, fmt.Errorf("table rows: %w", err)
	}
	b.logger.Printf("Page shows %d row(s)", count)

	var saved []int
	for i := 1; i <= count; i++ {
		current, err := top.Count(selTableRows)
		if err != nil {
			return saved, err
		}
		if i > current {
			break
		}

		if err := b.processRow(sess, top, ledger, i); err != nil {
			// A stuck row is skipped, not fatal to the round.
			b.logger.Printf("Row %d skipped: %v", i, err)
			continue
		}
		saved = append(saved, i)
	}
	return saved, nil
}

func (b *Bot) processRow(sess *browser.Session, top *browser.Scope, ledger *Ledger, row int) error {
	amountText, err := top.Text(rowSel(row, "td.td_ri span.fwb"))
	if err != nil {
		return fmt.Errorf("amount cell: %w", err)
	}
	amount := NormalizeAmount(amountText)

	lastCell, err := top.Text(rowSel(row, "td:last-child"))
	if err != nil {
		return fmt.Errorf("status cell: %w", err)
	}
	if rowAlreadyProcessed(lastCell) {
		b.logger.Printf("Row %d (%d원) already reconciled, leaving untouched", row, amount)
		return fmt.Errorf("already processed")
	}

	rec := ledger.Match(amount)
	if rec == nil {
		b.logger.Printf("Row %d (%d원) matches no record, applying defaults", row, amount)
		rec = &Record{}
	} else {
		b.logger.Printf("Row %d (%d원) matched record amount %s", row, amount, rec.Amount)
	}

	return runRowPipeline(
		func() error {
			if err := top.Click(rowSel(row, "td:first-child input"), 3); err != nil {
				return fmt.Errorf("row checkbox: %w", err)
			}
			return nil
		},
		func() error { return b.fillForm(top, rec) },
		func() error { return b.saveRow(sess, top, rec) },
		func() { b.uncheckRow(top, row) },
	)
}

// runRowPipeline runs the select, fill and save steps of one row. When a
// step after the select fails, the row selection is cleared again so the
// batch apply only sweeps rows whose save actually landed.
func runRowPipeline(selectRow, fill, save func() error, unselect func()) error {
	if err := selectRow(); err != nil {
		return err
	}
	if err := fill(); err != nil {
		unselect()
		return err
	}
	if err := save(); err != nil {
		unselect()
		return err
	}
	return nil
}

// uncheckRow toggles a row's checkbox back off. A successful save clears it
// on the portal side, so this only runs on failed rows.
func (b *Bot) uncheckRow(top *browser.Scope, row int) {
	if err := top.Click(rowSel(row, "td:first-child input"), 3); err != nil {
		b.logger.Printf("Row %d: could not clear selection: %v", row, err)
	}
}

// fillForm types the record's fields into the entry form, falling back to
// the configured defaults per empty field. Each widget is an autocomplete
// that resolves its code on Enter, which SetValueTyped sends.
func (b *Bot) fillForm(top *browser.Scope, rec *Record) error {
	fields := []struct{ sel, val, fallback string }{
		{selDispSummary, rec.StandardSummary, DefaultSummary},
		{selDispEvidence, rec.EvidenceType, DefaultEvidence},
		{selDispNote, rec.Note, DefaultNote},
		{selDispProject, rec.Project, DefaultProject},
	}
	for _, f := range fields {
		val := f.val
		if val == "" {
			val = f.fallback
		}
		if err := top.SetValueTyped(f.sel, val); err != nil {
			return fmt.Errorf("form field %s: %w", f.sel, err)
		}
	}
	return nil
}

// saveRow clicks save and handles validation alerts. The alert text names
// the offending field; only that field is re-filled before the bounded
// retry. No alert means the save landed and the row's checkbox cleared.
func (b *Bot) saveRow(sess *browser.Session, top *browser.Scope, rec *Record) error {
	var lastAlert string
	for attempt := 0; attempt < saveRetries; attempt++ {
		sess.DrainDialogs()
		if err := top.Click(selSave, 3); err != nil {
			return fmt.Errorf("save button: %w", err)
		}
		msg, ok := sess.NextDialog(alertProbe)
		if !ok {
			return nil
		}
		lastAlert = msg
		b.logger.Printf("Save alert: %s", msg)
		if err := b.refillFromAlert(top, rec, msg); err != nil {
			return err
		}
	}
	return fmt.Errorf("save rejected after %d attempts: %s", saveRetries, lastAlert)
}

func (b *Bot) refillFromAlert(top *browser.Scope, rec *Record, alert string) error {
	var sel, val string
	switch {
	case strings.Contains(alert, "표준적요"):
		sel, val = selDispSummary, orDefault(rec.StandardSummary, DefaultSummary)
	case strings.Contains(alert, "증빙유형"):
		sel, val = selDispEvidence, orDefault(rec.EvidenceType, DefaultEvidence)
	case strings.Contains(alert, "프로젝트"):
		sel, val = selDispProject, orDefault(rec.Project, DefaultProject)
	case strings.Contains(alert, "적요"):
		sel, val = selDispNote, orDefault(rec.Note, DefaultNote)
	default:
		return fmt.Errorf("unrecognized validation alert: %s", alert)
	}
	return top.SetValueTyped(sel, val)
}

// reconcileSaved re-selects exactly the rows saved this round and fires the
// batch apply. A blanket select-all would drag previously reconciled rows
// back through the pipeline.
func (b *Bot) reconcileSaved(sess *browser.Session, top *browser.Scope, saved []int) error {
	b.logger.Printf("Re-selecting %d saved row(s) for batch apply", len(saved))
	for _, row := range saved {
		if err := top.Click(rowSel(row, "td:first-child input"), 3); err != nil {
			return fmt.Errorf("row %d checkbox: %w", row, err)
		}
	}

	sess.DrainDialogs()
	if err := top.ClickByText("button", "지출결의", 3); err != nil {
		return fmt.Errorf("apply button: %w", err)
	}
	if msg, ok := sess.NextDialog(alertProbe); ok {
		b.logger.Printf("Apply confirmation: %s", msg)
	}
	return b.awaitApplyCompletion(top)
}

// awaitApplyCompletion waits for the asynchronous progress popup to clear.
// Small batches may never show it; that is a success, not a timeout.
func (b *Bot) awaitApplyCompletion(top *browser.Scope) error {
	appeared := false
	deadline := time.Now().Add(progressAppear)
	for time.Now().Before(deadline) {
		if ok, _ := top.Visible(selProgressPopup); ok {
			appeared = true
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if !appeared {
		b.logger.Printf("No progress popup, treating apply as complete")
		return nil
	}

	deadline = time.Now().Add(progressCeiling)
	for time.Now().Before(deadline) {
		ok, err := top.Visible(selProgressPopup)
		if err != nil || !ok {
			b.logger.Printf("Apply progress popup cleared")
			return nil
		}
		if val, err := top.Text("#PLP_txtProgValue"); err == nil && val != "" {
			b.logger.Printf("Apply progress: %s", val)
		}
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("apply progress popup still visible after %s", progressCeiling)
}

// nextPage advances the table pagination. False means the next control is
// absent or disabled.
func (b *Bot) nextPage(top *browser.Scope) bool {
	if ok, err := top.Visible(selNextPage); err != nil || !ok {
		return false
	}
	if err := top.Click(selNextPage, 2); err != nil {
		return false
	}
	top.WaitMaskClear(10 * time.Second)
	time.Sleep(time.Second)
	return true
}

func rowSel(row int, suffix string) string {
	return fmt.Sprintf("#tblExpendCardList tbody tr:nth-child(%d) %s", row, suffix)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// rowAlreadyProcessed inspects the row's trailing informational cell. Form
// field echoes ("표준적요 :", "증빙유형 :") are placeholder text, not proof of
// reconciliation; only an explicit reconcile marker counts. Anything
// ambiguous is treated as not processed so real work is never skipped.
func rowAlreadyProcessed(cellText string) bool {
	text := strings.TrimSpace(cellText)
	if text == "" || text == "-" || len([]rune(text)) < 5 {
		return false
	}
	if strings.Contains(text, "표준적요 :") && strings.Contains(text, "증빙유형 :") {
		return false
	}
	return strings.Contains(text, "지출결의") && strings.Contains(text, "완료")
}
