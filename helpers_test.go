package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	storage := NewStorage(t.TempDir())
	s := NewSession(storage, newTestLogger())
	t.Cleanup(s.Close)
	return s
}

// mustDataset normalizes headers+rows into a Dataset, failing the test on error.
func mustDataset(t *testing.T, headers []string, rows [][]string) *Dataset {
	t.Helper()
	raw := append([][]string{headers}, rows...)
	ds, err := Normalize(raw, "test.xlsx")
	require.NoError(t, err)
	return ds
}

// buildXLSX produces an in-memory workbook holding the given rows on the
// first sheet.
func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
