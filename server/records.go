package server

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/autobill/submit"
)

// Expected CSV column headers. The export uses Korean headers; only the
// amount column is mandatory.
const (
	colAmount   = "매출금액"
	colSummary  = "표준적요"
	colEvidence = "증빙유형"
	colNote     = "적요"
	colProject  = "프로젝트"
)

// ParseRecordsCSV reads the uploaded reconciliation file. A UTF-8 BOM is
// tolerated; rows whose amount normalizes to zero are dropped as header
// noise or subtotal lines.
func ParseRecordsCSV(r io.Reader) ([]*submit.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	amountIdx, ok := idx[colAmount]
	if !ok {
		return nil, fmt.Errorf("amount column %q not found (columns: %s)",
			colAmount, strings.Join(header, ", "))
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []*submit.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record row: %w", err)
		}
		if amountIdx >= len(row) {
			continue
		}
		amount := strings.TrimSpace(row[amountIdx])
		if submit.NormalizeAmount(amount) == 0 {
			continue
		}
		records = append(records, &submit.Record{
			Amount:          amount,
			StandardSummary: field(row, colSummary),
			EvidenceType:    formatEvidenceType(field(row, colEvidence)),
			Note:            field(row, colNote),
			Project:         field(row, colProject),
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no usable records in file")
	}
	return records, nil
}

// formatEvidenceType zero-pads numeric evidence codes to the three digits
// the groupware autocomplete expects ("3" -> "003").
func formatEvidenceType(v string) string {
	if v == "" {
		return ""
	}
	digits := strings.TrimLeft(v, "0")
	for _, r := range v {
		if r < '0' || r > '9' {
			return v
		}
	}
	if digits == "" {
		digits = "0"
	}
	for len(digits) < 3 {
		digits = "0" + digits
	}
	return digits
}
