package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrLoadInFlight is returned when a load is attempted while another one is
// still decoding. Concurrent loads are rejected outright instead of racing
// to a last-write-wins finish.
var ErrLoadInFlight = errors.New("another load is already in progress")

// Session owns all mutable editor state for one long-lived browser session:
// the loaded dataset, the modification ledger, the cache, the settings, and
// the persistence bridge. It is created once at startup and threaded into
// every handler rather than living as ambient global state.
type Session struct {
	ID string

	mu       sync.Mutex
	dataset  *Dataset
	ledger   *Ledger
	cache    *CacheStore
	settings Settings
	loading  bool

	bridge *Bridge
	recent *RecentFiles
	log    *logrus.Entry

	autosaveStop chan struct{}
}

func NewSession(storage *Storage, logger *logrus.Logger) *Session {
	log := logger.WithField("component", "session")
	s := &Session{
		ID:     uuid.NewString(),
		ledger: NewLedger(),
		cache:  NewCacheStore(),
		bridge: NewBridge(storage, logger.WithField("component", "bridge")),
		recent: NewRecentFiles(storage, logger.WithField("component", "recent")),
		log:    log,
	}

	s.recent.Load()

	ds, modifiedCells, settings, restored := s.bridge.Restore()
	s.dataset = ds
	s.settings = settings
	if len(modifiedCells) > 0 {
		s.ledger.Replace(modifiedCells)
	}
	if restored && ds != nil {
		log.WithFields(logrus.Fields{
			"filename": ds.Filename,
			"rows":     len(ds.Rows),
			"edits":    s.ledger.Len(),
		}).Info("restored persisted state")
	}

	s.mu.Lock()
	s.restartAutosaveLocked()
	s.mu.Unlock()
	return s
}

// Close releases the autosave timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autosaveStop != nil {
		close(s.autosaveStop)
		s.autosaveStop = nil
	}
}

// restartAutosaveLocked tears down any running snapshot timer and starts a
// new one at the current interval setting. Caller holds s.mu.
func (s *Session) restartAutosaveLocked() {
	if s.autosaveStop != nil {
		close(s.autosaveStop)
	}
	stop := make(chan struct{})
	s.autosaveStop = stop
	interval := time.Duration(s.settings.AutoSaveIntervalMinutes) * time.Minute

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				ds, ledger, settings := s.dataset, s.ledger, s.settings
				s.mu.Unlock()
				s.bridge.WriteSnapshot(ds, ledger, settings)
			}
		}
	}()
}

// LoadFile decodes an uploaded workbook and replaces the session's dataset
// wholesale. The ledger is cleared; no partial state is committed when the
// decode fails. A second load while one is in flight is rejected.
func (s *Session) LoadFile(data []byte, filename string) (*Dataset, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrLoadInFlight
	}
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	ds, err := LoadWorkbook(data, filename)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dataset = ds
	s.ledger.Clear()
	settings := s.settings
	s.mu.Unlock()

	s.bridge.Mirror(ds, s.ledger, settings)
	s.recent.Touch(filename, filename, int64(len(data)))
	s.log.WithFields(logrus.Fields{
		"filename": filename,
		"rows":     len(ds.Rows),
		"cols":     ds.Width(),
	}).Info("workbook loaded")
	return ds, nil
}

// EditCell records a pending edit in the ledger. Edits never touch the
// dataset; an identity that resolves to nothing stays inert.
func (s *Session) EditCell(recordKey string, col int, value string) error {
	if col < 0 {
		return fmt.Errorf("invalid column index %d", col)
	}
	s.ledger.Set(MakeIdentity(recordKey, col), value)

	s.mu.Lock()
	ds, settings := s.dataset, s.settings
	s.mu.Unlock()
	s.bridge.Mirror(ds, s.ledger, settings)
	return nil
}

// View projects the current page of the dataset with pending edits overlaid.
func (s *Session) View(search string, page int) Projection {
	s.mu.Lock()
	ds, pageSize := s.dataset, s.settings.RowsPerPage
	s.mu.Unlock()
	return Project(ds, s.ledger, s.cache, search, page, pageSize)
}

// Widths returns the memoized per-column display widths.
func (s *Session) Widths() []int {
	s.mu.Lock()
	ds := s.dataset
	s.mu.Unlock()
	return ColumnWidths(ds, s.cache)
}

// Reconciled merges the ledger onto the full dataset for export.
func (s *Session) Reconciled() (*ReconciledTable, error) {
	s.mu.Lock()
	ds := s.dataset
	s.mu.Unlock()
	return Reconcile(ds, s.ledger)
}

// Export produces the reconciled table in the requested format and returns
// the payload with its content type and suggested filename.
func (s *Session) Export(format string) (data []byte, contentType, filename string, err error) {
	table, err := s.Reconciled()
	if err != nil {
		return nil, "", "", err
	}
	base := s.exportBasename()
	switch format {
	case "xlsx":
		data, err = ExportXLSX(table)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", base + ".xlsx", err
	case "csv":
		data, err = ExportCSV(table)
		return data, "text/csv", base + ".csv", err
	case "html":
		return ExportHTML(table), "text/html", base + ".html", nil
	default:
		return nil, "", "", fmt.Errorf("unknown export format %q", format)
	}
}

// MailtoLink builds the mail-client deep link for the reconciled table.
func (s *Session) MailtoLink() (string, error) {
	table, err := s.Reconciled()
	if err != nil {
		return "", err
	}
	return ExportMailto(table, s.exportBasename())
}

func (s *Session) exportBasename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataset == nil || s.dataset.Filename == "" {
		return "export"
	}
	name := s.dataset.Filename
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// Reset discards all pending edits.
func (s *Session) Reset() {
	s.ledger.Clear()
	s.mu.Lock()
	ds, settings := s.dataset, s.settings
	s.mu.Unlock()
	s.bridge.Mirror(ds, s.ledger, settings)
	s.log.Info("pending edits cleared")
}

// Settings returns the current settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings sanitizes and applies new settings, restarting the autosave
// timer when the interval changed, and mirrors the result.
func (s *Session) UpdateSettings(settings Settings) Settings {
	settings = settings.Sanitized()
	s.mu.Lock()
	intervalChanged := settings.AutoSaveIntervalMinutes != s.settings.AutoSaveIntervalMinutes
	s.settings = settings
	if intervalChanged {
		s.restartAutosaveLocked()
	}
	ds := s.dataset
	s.mu.Unlock()
	s.bridge.Mirror(ds, s.ledger, settings)
	return settings
}

// ClearCache empties both cache namespaces and reports the cleared time.
func (s *Session) ClearCache() time.Time {
	s.cache.Clear()
	return s.cache.LastCleared()
}

// Recent returns the recent-files list.
func (s *Session) Recent() []RecentFile {
	return s.recent.List()
}

// Loaded reports whether a dataset is active.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset != nil
}

// LastSnapshot exposes the most recent periodic autosave for diagnostics.
func (s *Session) LastSnapshot() (*SnapshotRecord, bool) {
	return s.bridge.LoadSnapshot()
}
