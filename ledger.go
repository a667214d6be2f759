package main

import (
	"strconv"
	"strings"
	"sync"
)

// CellIdentity names a cell independently of its display position:
// "<recordKey>|<colIndex>", where recordKey is the identity-column value
// (column 0) of the row in the underlying dataset. Record-keyed identities
// survive filtering and pagination, which positional indices do not.
type CellIdentity string

// MakeIdentity builds the identity for the cell at colIndex in the row whose
// identity column holds recordKey.
func MakeIdentity(recordKey string, col int) CellIdentity {
	return CellIdentity(recordKey + "|" + strconv.Itoa(col))
}

// Parts splits an identity back into record key and column index. The record
// key may itself contain the separator, so the split happens at the last one.
func (id CellIdentity) Parts() (recordKey string, col int, ok bool) {
	s := string(id)
	i := strings.LastIndexByte(s, '|')
	if i < 0 {
		return "", 0, false
	}
	col, err := strconv.Atoi(s[i+1:])
	if err != nil || col < 0 {
		return "", 0, false
	}
	return s[:i], col, true
}

// Ledger is the sparse map of pending cell edits. Values are stored as raw
// strings; type inference happens only at export time. Entries whose identity
// no longer resolves against the current dataset are inert, not an error.
type Ledger struct {
	mu      sync.RWMutex
	entries map[CellIdentity]string
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[CellIdentity]string)}
}

// Set upserts a pending edit. Setting an identity that resolves to nothing is
// legal; it stays inert until a matching row exists.
func (l *Ledger) Set(id CellIdentity, value string) {
	l.mu.Lock()
	l.entries[id] = value
	l.mu.Unlock()
}

func (l *Ledger) Get(id CellIdentity) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.entries[id]
	return v, ok
}

// Clear empties the ledger. Used on new-file load and explicit reset.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = make(map[CellIdentity]string)
	l.mu.Unlock()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of the pending edits keyed by identity string,
// suitable for persistence.
func (l *Ledger) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.entries))
	for id, v := range l.entries {
		out[string(id)] = v
	}
	return out
}

// Replace swaps in a previously persisted set of edits.
func (l *Ledger) Replace(entries map[string]string) {
	m := make(map[CellIdentity]string, len(entries))
	for k, v := range entries {
		m[CellIdentity(k)] = v
	}
	l.mu.Lock()
	l.entries = m
	l.mu.Unlock()
}

// ResolveIdentity maps an identity onto a concrete (row, col) position in the
// dataset. The row is found by a linear scan over the identity column; if
// several rows share a record key the first match wins. Returns ok=false for
// identities that do not resolve (inert entries).
func ResolveIdentity(ds *Dataset, id CellIdentity) (row, col int, ok bool) {
	if ds == nil {
		return 0, 0, false
	}
	key, col, ok := id.Parts()
	if !ok || col >= ds.Width() {
		return 0, 0, false
	}
	for i := range ds.Rows {
		if ds.Rows[i][0] == key {
			return i, col, true
		}
	}
	return 0, 0, false
}
