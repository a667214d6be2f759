package main

// Settings is the user-editable configuration surface. There is no file-based
// config; settings live in memory and ride along in persisted state.
type Settings struct {
	RowsPerPage             int  `json:"rowsPerPage"`
	LockedColumns           int  `json:"lockedColumns"`
	ColumnsLocked           bool `json:"columnsLocked"`
	AutoSaveIntervalMinutes int  `json:"autoSaveIntervalMinutes"`
}

var (
	allowedRowsPerPage  = []int{10, 20, 30, 50, 100}
	allowedAutoSaveMins = []int{1, 3, 5, 10, 15}
)

const maxLockedColumns = 10

func DefaultSettings() Settings {
	return Settings{
		RowsPerPage:             20,
		LockedColumns:           0,
		ColumnsLocked:           false,
		AutoSaveIntervalMinutes: 5,
	}
}

// Sanitized clamps every field to its allowed range, falling back to the
// defaults for values outside the selectable menus.
func (s Settings) Sanitized() Settings {
	if !containsInt(allowedRowsPerPage, s.RowsPerPage) {
		s.RowsPerPage = DefaultSettings().RowsPerPage
	}
	if s.LockedColumns < 0 {
		s.LockedColumns = 0
	}
	if s.LockedColumns > maxLockedColumns {
		s.LockedColumns = maxLockedColumns
	}
	if !containsInt(allowedAutoSaveMins, s.AutoSaveIntervalMinutes) {
		s.AutoSaveIntervalMinutes = DefaultSettings().AutoSaveIntervalMinutes
	}
	return s
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
