package config

import (
	"fmt"
	"regexp"
	"time"
)

const (
	dashedLayout  = "2006-01-02"
	compactLayout = "20060102"
)

// DateRange is an inclusive start/end day pair for a collection or
// submission run.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseRange parses "YYYY-MM-DD" start/end strings. Malformed dates are
// rejected here, before any browser is launched.
func ParseRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dashedLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dashedLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// PreviousMonth returns the first through last day of the month before now.
// Used when a collection request carries no explicit dates.
func PreviousMonth(now time.Time) DateRange {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := firstOfThisMonth.AddDate(0, 0, -1)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, now.Location())
	return DateRange{Start: start, End: end}
}

// Dashed returns the range formatted as YYYY-MM-DD strings.
func (r DateRange) Dashed() (string, string) {
	return r.Start.Format(dashedLayout), r.End.Format(dashedLayout)
}

// Compact returns the range formatted as YYYYMMDD strings.
func (r DateRange) Compact() (string, string) {
	return r.Start.Format(compactLayout), r.End.Format(compactLayout)
}

func (r DateRange) String() string {
	s, e := r.Dashed()
	return s + " ~ " + e
}

var compactDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)

// ReformatCompact turns a YYYYMMDD date into YYYY-MM-DD. The chat pass derives
// its dates this way from the primary pass instead of taking new input.
func ReformatCompact(d string) (string, error) {
	m := compactDate.FindStringSubmatch(d)
	if m == nil {
		return "", fmt.Errorf("not a YYYYMMDD date: %q", d)
	}
	return m[1] + "-" + m[2] + "-" + m[3], nil
}
