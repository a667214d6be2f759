package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX writes the reconciled table as an .xlsx workbook with typed
// cells: numbers and booleans go out as their native types, not text.
func ExportXLSX(t *ReconciledTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for j, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header %s: %w", cell, err)
		}
	}
	for i, row := range t.Rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v.Native()); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportCSV renders the table as comma-separated text with standard quoting.
func ExportCSV(t *ReconciledTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for j := range record {
			if j < len(row) {
				record[j] = row[j].String()
			} else {
				record[j] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportHTML renders a basic escaped table for print/PDF rendering.
func ExportHTML(t *ReconciledTable) []byte {
	var b strings.Builder
	b.WriteString("<table>\n<thead>\n<tr>")
	for _, h := range t.Headers {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(h))
		b.WriteString("</th>")
	}
	b.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, row := range t.Rows {
		b.WriteString("<tr>")
		for _, v := range row {
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(v.String()))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n")
	return []byte(b.String())
}

// ExportMailto builds a mail-client deep link carrying the table as CSV text
// in the message body.
func ExportMailto(t *ReconciledTable, subject string) (string, error) {
	body, err := ExportCSV(t)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("body", string(body))
	// url.Values encodes spaces as '+', which mail clients do not decode.
	return "mailto:?" + strings.ReplaceAll(q.Encode(), "+", "%20"), nil
}
