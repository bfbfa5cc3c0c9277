package collect

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobill/config"
)

func TestOutcome_Empty(t *testing.T) {
	// No facets at all: nothing was collected.
	o := &Outcome{Company: "앤하우스", Kind: "sms"}
	assert.True(t, o.Empty())

	// Every facet empty, including the tolerated last one.
	o.Facets = []FacetResult{
		{Name: "일반", Empty: true},
		{Name: "선불", Empty: true},
	}
	assert.True(t, o.Empty())

	// One facet with data makes the run non-empty.
	o.Facets = append(o.Facets, FacetResult{Name: "후불", File: "downloads/후불.xlsx"})
	assert.False(t, o.Empty())
}

func TestOutcome_LastFacetEmptyStillHasFiles(t *testing.T) {
	o := &Outcome{
		Company: "다온아이앤씨",
		Kind:    "sms",
		Files:   []string{"downloads/일반.xlsx"},
		Facets: []FacetResult{
			{Name: "일반", File: "downloads/일반.xlsx"},
			{Name: "선불", Empty: true},
		},
	}
	assert.False(t, o.Empty())
	assert.Len(t, o.Files, 1)
}

func facetNames(names ...string) []config.Facet {
	facets := make([]config.Facet, len(names))
	for i, n := range names {
		facets[i] = config.Facet{Name: n}
	}
	return facets
}

func TestRunFacets_FailureDoesNotStopLaterFacets(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	outcome := &Outcome{}

	var attempted []string
	var renavs int
	err := runFacets(facetNames("일반", "선불", "후불"),
		func(f config.Facet) (FacetResult, error) {
			attempted = append(attempted, f.Name)
			if f.Name == "선불" {
				return FacetResult{Name: f.Name}, errors.New("listing widget gone")
			}
			return FacetResult{Name: f.Name, File: "downloads/" + f.Name + ".xlsx"}, nil
		},
		func() error { renavs++; return nil },
		logger, outcome)
	require.NoError(t, err)

	// The broken facet is retried once after a re-navigation, then skipped.
	assert.Equal(t, []string{"일반", "선불", "선불", "후불"}, attempted)
	assert.Equal(t, 2, renavs)

	require.Len(t, outcome.Facets, 3)
	assert.False(t, outcome.Facets[0].Failed)
	assert.True(t, outcome.Facets[1].Failed)
	assert.False(t, outcome.Facets[2].Failed)
	assert.Equal(t, []string{"downloads/일반.xlsx", "downloads/후불.xlsx"}, outcome.Files)
}

func TestRunFacets_TrailingFacetFailureIsEmpty(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	outcome := &Outcome{}

	err := runFacets(facetNames("일반", "선불"),
		func(f config.Facet) (FacetResult, error) {
			if f.Name == "선불" {
				return FacetResult{Name: f.Name}, errors.New("no listing rendered")
			}
			return FacetResult{Name: f.Name, File: "downloads/일반.xlsx"}, nil
		},
		func() error { return nil },
		logger, outcome)
	require.NoError(t, err)

	require.Len(t, outcome.Facets, 2)
	assert.True(t, outcome.Facets[1].Empty)
	assert.False(t, outcome.Facets[1].Failed)
	assert.Equal(t, []string{"downloads/일반.xlsx"}, outcome.Files)
}

func TestRunFacets_TrailingFacetEmptyIsSuccess(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	outcome := &Outcome{}

	err := runFacets(facetNames("일반", "선불"),
		func(f config.Facet) (FacetResult, error) {
			if f.Name == "선불" {
				return FacetResult{Name: f.Name, Empty: true}, nil
			}
			return FacetResult{Name: f.Name, File: "downloads/일반.xlsx"}, nil
		},
		func() error { return nil },
		logger, outcome)
	require.NoError(t, err)
	assert.False(t, outcome.Empty())
}

func TestRunFacets_NavigationRecoveryFailureAborts(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	outcome := &Outcome{}

	var attempted []string
	err := runFacets(facetNames("일반", "선불", "후불"),
		func(f config.Facet) (FacetResult, error) {
			attempted = append(attempted, f.Name)
			return FacetResult{Name: f.Name}, errors.New("frame detached")
		},
		func() error { return errors.New("menu never rendered") },
		logger, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "menu recovery")
	// Once navigation itself is broken, later facets are not attempted.
	assert.Equal(t, []string{"일반"}, attempted)
}

func TestContainsText(t *testing.T) {
	assert.True(t, containsText("조회된 데이터가 없습니다.", "데이터가 없습니다"))
	assert.False(t, containsText("저장되었습니다.", "데이터가 없습니다"))
	assert.False(t, containsText("anything", ""))
}
