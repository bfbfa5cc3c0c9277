package submit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1,234,000원", 1234000},
		{"1234000", 1234000},
		{"₩ 12,340", 12340},
		{"12340.50", 12340},
		{"12,340.00원", 12340},
		{" 500 ", 500},
		{"", 0},
		{"-", 0},
		{"합계", 0},
		{"0", 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeAmount(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeAmount_Idempotent(t *testing.T) {
	first := NormalizeAmount("1,234,000원")
	second := NormalizeAmount("1234000")
	assert.Equal(t, first, second)
}

func TestLedger_ExactMatchBeforeTolerance(t *testing.T) {
	exact := &Record{Amount: "12,340"}
	near := &Record{Amount: "12,400"}
	l := NewLedger([]*Record{near, exact}, 100)

	got := l.Match(12340)
	require.NotNil(t, got)
	assert.Same(t, exact, got)
	assert.True(t, exact.Used())
	assert.False(t, near.Used())
}

func TestLedger_ToleranceMatch(t *testing.T) {
	r := &Record{Amount: "12,400"}
	l := NewLedger([]*Record{r}, 100)

	assert.Same(t, r, l.Match(12340))
	assert.True(t, r.Used())
}

func TestLedger_ToleranceBoundary(t *testing.T) {
	at := &Record{Amount: "10100"}
	l := NewLedger([]*Record{at}, 100)
	assert.Same(t, at, l.Match(10000))

	over := &Record{Amount: "10101"}
	l = NewLedger([]*Record{over}, 100)
	assert.Nil(t, l.Match(10000))
	assert.False(t, over.Used())
}

func TestLedger_NearestWithinToleranceWins(t *testing.T) {
	far := &Record{Amount: "10090"}
	close := &Record{Amount: "10010"}
	l := NewLedger([]*Record{far, close}, 100)

	assert.Same(t, close, l.Match(10000))
}

func TestLedger_AtMostOnceAcrossRounds(t *testing.T) {
	r := &Record{Amount: "5000"}
	l := NewLedger([]*Record{r}, 100)

	require.NotNil(t, l.Match(5000))
	// Same amount on a later page must not reuse the record.
	assert.Nil(t, l.Match(5000))
	assert.Equal(t, 1, l.Consumed())
	assert.True(t, l.Exhausted())
}

func TestLedger_Counts(t *testing.T) {
	l := NewLedger([]*Record{
		{Amount: "1000"},
		{Amount: "2000"},
		{Amount: "3000"},
	}, 100)

	assert.Equal(t, 3, l.Total())
	assert.Equal(t, 0, l.Consumed())
	assert.False(t, l.Exhausted())

	l.Match(1000)
	l.Match(2000)
	assert.Equal(t, 2, l.Consumed())
	assert.False(t, l.Exhausted())

	l.Match(3000)
	assert.True(t, l.Exhausted())
}

func TestLedger_EmptyLedgerExhausted(t *testing.T) {
	l := NewLedger(nil, 100)
	assert.True(t, l.Exhausted())
	assert.Nil(t, l.Match(1000))
}
