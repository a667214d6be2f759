package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ErrEmptyDocument is returned when a decoded workbook contains no rows at all.
var ErrEmptyDocument = errors.New("document contains no rows")

// Dataset is the normalized, rectangular form of a loaded workbook.
// Headers and every row share the same width. The dataset is never mutated
// after load; edits live in the Ledger until the reconciler merges them.
type Dataset struct {
	ID       string     `json:"id"`
	Filename string     `json:"filename"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
}

// Width returns the column count shared by headers and all rows.
func (d *Dataset) Width() int {
	return len(d.Headers)
}

// RecordKey returns the identity-column value (column 0) of a data row.
func (d *Dataset) RecordKey(row int) string {
	if row < 0 || row >= len(d.Rows) || len(d.Rows[row]) == 0 {
		return ""
	}
	return d.Rows[row][0]
}

// LoadWorkbook decodes an uploaded .xlsx/.xls buffer and normalizes its first
// sheet into a Dataset.
func LoadWorkbook(data []byte, filename string) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDocument
	}
	// First sheet only.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return Normalize(rows, filename)
}

// Normalize turns a raw 2D decode into a rectangular Dataset. Row 0 is the
// header row. Width is the max of the header count and the longest data row;
// short rows are padded with empty cells and missing header labels are
// synthesized as "Column N".
func Normalize(raw [][]string, filename string) (*Dataset, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyDocument
	}

	width := len(raw[0])
	for _, row := range raw[1:] {
		if len(row) > width {
			width = len(row)
		}
	}

	headers := make([]string, width)
	copy(headers, raw[0])
	for i := len(raw[0]); i < width; i++ {
		headers[i] = fmt.Sprintf("Column %d", i+1)
	}

	dataRows := make([][]string, 0, len(raw)-1)
	for _, row := range raw[1:] {
		padded := make([]string, width)
		copy(padded, row)
		dataRows = append(dataRows, padded)
	}

	return &Dataset{
		ID:       uuid.NewString(),
		Filename: filename,
		Headers:  headers,
		Rows:     dataRows,
	}, nil
}
