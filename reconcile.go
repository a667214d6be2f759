package main

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoDatasetLoaded is returned when export/save is attempted with nothing loaded.
var ErrNoDatasetLoaded = errors.New("no dataset loaded")

// ValueKind tags the inferred primitive type of a cell.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueNumber
	ValueBool
	ValueText
)

// Value is the tagged variant a raw cell string is inferred into at export
// time. Exactly one of the payload fields is meaningful for a given Kind.
type Value struct {
	Kind   ValueKind
	Number float64
	Bool   bool
	Text   string
}

// Native returns the value in the representation workbook writers expect.
// Empty cells are written as explicit empty strings, not omitted.
func (v Value) Native() interface{} {
	switch v.Kind {
	case ValueNumber:
		return v.Number
	case ValueBool:
		return v.Bool
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

// String renders the value for text formats (CSV, HTML).
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// InferValue converts an effective raw cell string into its typed form:
// empty -> Empty, integer/decimal -> Number, "true"/"false" (any case) ->
// Bool, anything else -> trimmed Text.
func InferValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Value{Kind: ValueEmpty}
	}
	if numericPattern.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Value{Kind: ValueNumber, Number: n}
		}
	}
	if strings.EqualFold(trimmed, "true") {
		return Value{Kind: ValueBool, Bool: true}
	}
	if strings.EqualFold(trimmed, "false") {
		return Value{Kind: ValueBool, Bool: false}
	}
	return Value{Kind: ValueText, Text: trimmed}
}

// ReconciledTable is the fully materialized export form: original headers plus
// every data row with ledger overrides applied and types inferred.
type ReconciledTable struct {
	Headers []string
	Rows    [][]Value
}

// Reconcile merges pending ledger edits onto the full dataset. Row and column
// order always match the original dataset; the current search/pagination
// state never affects export order.
func Reconcile(ds *Dataset, ledger *Ledger) (*ReconciledTable, error) {
	if ds == nil {
		return nil, ErrNoDatasetLoaded
	}

	rows := make([][]Value, len(ds.Rows))
	for i, row := range ds.Rows {
		key := ds.RecordKey(i)
		typed := make([]Value, len(row))
		for j, raw := range row {
			if edited, ok := ledger.Get(MakeIdentity(key, j)); ok {
				raw = edited
			}
			typed[j] = InferValue(raw)
		}
		rows[i] = typed
	}

	headers := make([]string, len(ds.Headers))
	copy(headers, ds.Headers)
	return &ReconciledTable{Headers: headers, Rows: rows}, nil
}
