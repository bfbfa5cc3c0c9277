package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	rng, err := ParseRange("2025-05-01", "2025-05-31")
	require.NoError(t, err)
	assert.Equal(t, 2025, rng.Start.Year())
	assert.Equal(t, time.May, rng.Start.Month())
	assert.Equal(t, 31, rng.End.Day())
}

func TestParseRange_Invalid(t *testing.T) {
	_, err := ParseRange("2025/05/01", "2025-05-31")
	assert.Error(t, err)

	_, err = ParseRange("2025-05-01", "20250531")
	assert.Error(t, err)

	_, err = ParseRange("2025-05-31", "2025-05-01")
	assert.Error(t, err)
}

func TestParseRange_SingleDay(t *testing.T) {
	rng, err := ParseRange("2025-05-15", "2025-05-15")
	require.NoError(t, err)
	assert.Equal(t, rng.Start, rng.End)
}

func TestPreviousMonth(t *testing.T) {
	now := time.Date(2025, time.June, 10, 14, 30, 0, 0, time.UTC)
	rng := PreviousMonth(now)

	start, end := rng.Dashed()
	assert.Equal(t, "2025-05-01", start)
	assert.Equal(t, "2025-05-31", end)
}

func TestPreviousMonth_JanuaryWrapsYear(t *testing.T) {
	now := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)
	rng := PreviousMonth(now)

	start, end := rng.Dashed()
	assert.Equal(t, "2024-12-01", start)
	assert.Equal(t, "2024-12-31", end)
}

func TestDateRange_Formats(t *testing.T) {
	rng, err := ParseRange("2025-05-01", "2025-05-31")
	require.NoError(t, err)

	cs, ce := rng.Compact()
	assert.Equal(t, "20250501", cs)
	assert.Equal(t, "20250531", ce)
	assert.Equal(t, "2025-05-01 ~ 2025-05-31", rng.String())
}

func TestReformatCompact(t *testing.T) {
	got, err := ReformatCompact("20250501")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01", got)
}

func TestReformatCompact_Rejects(t *testing.T) {
	for _, in := range []string{"2025-05-01", "2025051", "202505011", "", "2025050a"} {
		_, err := ReformatCompact(in)
		assert.Error(t, err, "input %q", in)
	}
}
