package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordsCSV(t *testing.T) {
	csv := "매출금액,표준적요,증빙유형,적요,프로젝트\n" +
		"\"1,234,000원\",156,3,OpenAI_GPT API 토큰 비용,SAAS3002\n" +
		"12340,,,," + "\n"

	records, err := ParseRecordsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1,234,000원", records[0].Amount)
	assert.Equal(t, "156", records[0].StandardSummary)
	assert.Equal(t, "003", records[0].EvidenceType)
	assert.Equal(t, "OpenAI_GPT API 토큰 비용", records[0].Note)
	assert.Equal(t, "SAAS3002", records[0].Project)

	assert.Equal(t, "12340", records[1].Amount)
	assert.Empty(t, records[1].EvidenceType)
}

func TestParseRecordsCSV_BOM(t *testing.T) {
	csv := "\uFEFF매출금액,적요\n5000,테스트\n"

	records, err := ParseRecordsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5000", records[0].Amount)
	assert.Equal(t, "테스트", records[0].Note)
}

func TestParseRecordsCSV_SkipsZeroAmountRows(t *testing.T) {
	csv := "매출금액,적요\n" +
		"합계,소계행\n" +
		"0,영원\n" +
		"5000,유효\n"

	records, err := ParseRecordsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5000", records[0].Amount)
}

func TestParseRecordsCSV_MissingAmountColumn(t *testing.T) {
	_, err := ParseRecordsCSV(strings.NewReader("적요,프로젝트\na,b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "매출금액")
}

func TestParseRecordsCSV_NoUsableRows(t *testing.T) {
	_, err := ParseRecordsCSV(strings.NewReader("매출금액,적요\n합계,x\n"))
	assert.Error(t, err)
}

func TestParseRecordsCSV_RaggedRows(t *testing.T) {
	// Trailing columns may be missing entirely.
	csv := "매출금액,표준적요,증빙유형,적요,프로젝트\n5000,156\n"

	records, err := ParseRecordsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "156", records[0].StandardSummary)
	assert.Empty(t, records[0].Project)
}

func TestFormatEvidenceType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"3", "003"},
		{"03", "003"},
		{"003", "003"},
		{"12", "012"},
		{"1234", "1234"},
		{"0", "000"},
		{"", ""},
		{"A01", "A01"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, formatEvidenceType(tc.in), "input %q", tc.in)
	}
}
