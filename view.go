package main

import (
	"strings"
	"unicode/utf8"
)

// Projection is the slice of the dataset currently visible in the grid: the
// pinned reference row, the current page window with pending edits overlaid,
// and paging bookkeeping.
type Projection struct {
	Pinned        []string   `json:"pinned,omitempty"`
	PinnedKey     string     `json:"pinnedKey,omitempty"`
	Rows          [][]string `json:"rows"`
	Keys          []string   `json:"keys"`
	Page          int        `json:"page"`
	TotalPages    int        `json:"totalPages"`
	FilteredCount int        `json:"filteredCount"`
}

// Project derives the visible window from the full dataset: filter by search
// text, slice the page, then overlay ledger values on top of raw cells. It is
// a pure read path over dataset and ledger; filter results are memoized in
// the cache keyed by dataset ID so stale entries from a previous document are
// never consulted.
func Project(ds *Dataset, ledger *Ledger, cache *CacheStore, search string, page, pageSize int) Projection {
	if ds == nil || pageSize <= 0 {
		return Projection{Rows: [][]string{}, Keys: []string{}}
	}

	filtered := filteredRowIndexes(ds, cache, search)

	totalPages := (len(filtered) + pageSize - 1) / pageSize
	if page < 0 {
		page = 0
	}
	if totalPages > 0 && page >= totalPages {
		page = totalPages - 1
	}

	start := page * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	window := filtered[start:end]
	rows := make([][]string, len(window))
	keys := make([]string, len(window))
	for i, rowIdx := range window {
		rows[i] = overlayRow(ds, ledger, rowIdx)
		keys[i] = ds.RecordKey(rowIdx)
	}

	p := Projection{
		Rows:          rows,
		Keys:          keys,
		Page:          page,
		TotalPages:    totalPages,
		FilteredCount: len(filtered),
	}
	// Row 0 is the persistent reference row: rendered above every page no
	// matter the filter or page selection.
	if len(ds.Rows) > 0 {
		p.Pinned = overlayRow(ds, ledger, 0)
		p.PinnedKey = ds.RecordKey(0)
	}
	return p
}

// filteredRowIndexes returns the dataset row indexes retained by the search
// text, in original dataset order. An empty search retains everything. A
// non-empty search retains row 0 unconditionally, and any row whose column 0
// or column 1 contains the text case-insensitively. The match is deliberately
// limited to those two columns, not a whole-row scan.
func filteredRowIndexes(ds *Dataset, cache *CacheStore, search string) []int {
	needle := strings.ToLower(strings.TrimSpace(search))

	cacheKey := ds.ID + "|" + needle
	if cache != nil {
		if cached, ok := cache.Get(cacheNamespaceSearch, cacheKey); ok {
			if indexes, ok := cached.([]int); ok {
				return indexes
			}
		}
	}

	indexes := make([]int, 0, len(ds.Rows))
	for i := range ds.Rows {
		if needle == "" || i == 0 || rowMatches(ds.Rows[i], needle) {
			indexes = append(indexes, i)
		}
	}

	if cache != nil {
		cache.Set(cacheNamespaceSearch, cacheKey, indexes)
	}
	return indexes
}

func rowMatches(row []string, needle string) bool {
	for col := 0; col < 2 && col < len(row); col++ {
		if strings.Contains(strings.ToLower(row[col]), needle) {
			return true
		}
	}
	return false
}

// overlayRow returns the row with ledger values substituted for raw cells
// where an edit exists. The dataset itself is never touched.
func overlayRow(ds *Dataset, ledger *Ledger, rowIdx int) []string {
	key := ds.RecordKey(rowIdx)
	row := ds.Rows[rowIdx]
	out := make([]string, len(row))
	for j, raw := range row {
		if edited, ok := ledger.Get(MakeIdentity(key, j)); ok {
			out[j] = edited
		} else {
			out[j] = raw
		}
	}
	return out
}

// ColumnWidths computes the display width (in characters) of each column over
// headers and all rows, memoized per dataset in the widths cache namespace.
func ColumnWidths(ds *Dataset, cache *CacheStore) []int {
	if ds == nil {
		return nil
	}
	if cache != nil {
		if cached, ok := cache.Get(cacheNamespaceWidths, ds.ID); ok {
			if widths, ok := cached.([]int); ok {
				return widths
			}
		}
	}

	widths := make([]int, ds.Width())
	for j, h := range ds.Headers {
		widths[j] = utf8.RuneCountInString(h)
	}
	for _, row := range ds.Rows {
		for j, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[j] {
				widths[j] = n
			}
		}
	}

	if cache != nil {
		cache.Set(cacheNamespaceWidths, ds.ID, widths)
	}
	return widths
}
