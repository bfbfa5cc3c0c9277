// Package submit reconciles externally collected billing records against the
// groupware's paginated expense-entry table.
package submit

import (
	"regexp"
	"strconv"
	"strings"
)

// Record is one external billing line to reconcile. The form fields left
// empty fall back to the configured defaults when the record is applied.
type Record struct {
	Amount          string `json:"amount"`
	StandardSummary string `json:"standard_summary,omitempty"`
	EvidenceType    string `json:"evidence_type,omitempty"`
	Note            string `json:"note,omitempty"`
	Project         string `json:"project,omitempty"`

	used bool
}

// Used reports whether the record has already been matched to a table row.
func (r *Record) Used() bool { return r.used }

var nonDigit = regexp.MustCompile(`[^\d]`)

// NormalizeAmount reduces a displayed amount to an integer won value:
// currency symbols, grouping commas, spaces and any decimal tail are
// stripped. Unparseable input normalizes to 0. Idempotent on already-clean
// integer strings.
func NormalizeAmount(text string) int {
	if text == "" {
		return 0
	}
	cleaned := strings.NewReplacer(",", "", " ", "", "원", "", "₩", "").Replace(text)
	if i := strings.Index(cleaned, "."); i >= 0 {
		cleaned = cleaned[:i]
	}
	cleaned = nonDigit.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}

// Ledger tracks which records have been consumed. Records are matched
// at most once each, even across rounds.
type Ledger struct {
	records   []*Record
	tolerance int
}

// NewLedger wraps the records with the given matching tolerance in won.
func NewLedger(records []*Record, tolerance int) *Ledger {
	return &Ledger{records: records, tolerance: tolerance}
}

// Match finds the best unconsumed record for a row amount: an exact amount
// match wins; otherwise the nearest record within the tolerance. The
// returned record is marked consumed. Nil means no record fits.
func (l *Ledger) Match(rowAmount int) *Record {
	for _, r := range l.records {
		if r.used {
			continue
		}
		if NormalizeAmount(r.Amount) == rowAmount {
			r.used = true
			return r
		}
	}

	var closest *Record
	minDiff := l.tolerance + 1
	for _, r := range l.records {
		if r.used {
			continue
		}
		diff := NormalizeAmount(r.Amount) - rowAmount
		if diff < 0 {
			diff = -diff
		}
		if diff <= l.tolerance && diff < minDiff {
			minDiff = diff
			closest = r
		}
	}
	if closest != nil {
		closest.used = true
	}
	return closest
}

// Total is the number of records in the ledger.
func (l *Ledger) Total() int { return len(l.records) }

// Consumed is the number of records matched so far.
func (l *Ledger) Consumed() int {
	n := 0
	for _, r := range l.records {
		if r.used {
			n++
		}
	}
	return n
}

// Exhausted reports whether every record has been consumed.
func (l *Ledger) Exhausted() bool { return l.Consumed() == len(l.records) }
