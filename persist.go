package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Storage keys for the durable local state.
const (
	storageKeyMirror   = "editor_state"
	storageKeyAutosave = "editor_autosave"
	storageKeyRecent   = "recent_files"
	storageKeyUsers    = "users"
)

// Storage is the string-keyed JSON blob store backing all persisted state.
// Each key maps to one file under the data directory.
type Storage struct {
	dir string
}

func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// WriteKey serializes v under key, creating the data directory on demand.
func (s *Storage) WriteKey(key string, v interface{}) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	f, err := os.Create(s.path(key))
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return nil
}

// ReadKey decodes the blob stored under key into v. Returns os.ErrNotExist
// when the key has never been written.
func (s *Storage) ReadKey(key string, v interface{}) error {
	f, err := os.Open(s.path(key))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// DeleteKey removes a stored blob. Missing keys are not an error.
func (s *Storage) DeleteKey(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// mirrorState is the continuously mirrored {dataset, ledger, settings} blob.
// ModifiedCells is omitted entirely when the ledger is empty to keep storage
// lean.
type mirrorState struct {
	Dataset       *Dataset          `json:"dataset,omitempty"`
	ModifiedCells map[string]string `json:"modifiedCells,omitempty"`
	Settings      Settings          `json:"settings"`
}

// SnapshotRecord is the periodic timestamped autosave blob.
type SnapshotRecord struct {
	Filename      string            `json:"filename"`
	ModifiedCells map[string]string `json:"modifiedCells"`
	Timestamp     time.Time         `json:"timestamp"`
	Settings      Settings          `json:"settings"`
}

// Bridge mirrors session state into storage. Every write path is best-effort:
// failures are logged and swallowed, never surfaced to the caller.
type Bridge struct {
	storage *Storage
	log     *logrus.Entry
}

func NewBridge(storage *Storage, log *logrus.Entry) *Bridge {
	return &Bridge{storage: storage, log: log}
}

// Mirror writes the continuous {dataset, ledger, settings} mirror. With no
// dataset loaded and no pending edits the key is removed instead.
func (b *Bridge) Mirror(ds *Dataset, ledger *Ledger, settings Settings) {
	if ds == nil && ledger.Len() == 0 {
		if err := b.storage.DeleteKey(storageKeyMirror); err != nil {
			b.log.WithError(err).Warn("remove state mirror")
		}
		return
	}
	state := mirrorState{Dataset: ds, Settings: settings}
	if ledger.Len() > 0 {
		state.ModifiedCells = ledger.Snapshot()
	}
	if err := b.storage.WriteKey(storageKeyMirror, &state); err != nil {
		b.log.WithError(err).Warn("write state mirror")
	}
}

// Restore loads the continuous mirror on startup. A corrupt blob is deleted
// and an empty state returned; startup never fails on persisted state.
func (b *Bridge) Restore() (ds *Dataset, modifiedCells map[string]string, settings Settings, restored bool) {
	settings = DefaultSettings()
	var state mirrorState
	err := b.storage.ReadKey(storageKeyMirror, &state)
	if os.IsNotExist(err) {
		return nil, nil, settings, false
	}
	if err != nil {
		b.log.WithError(err).Warn("corrupt state mirror discarded")
		if derr := b.storage.DeleteKey(storageKeyMirror); derr != nil {
			b.log.WithError(derr).Warn("remove corrupt state mirror")
		}
		return nil, nil, settings, false
	}
	return state.Dataset, state.ModifiedCells, state.Settings.Sanitized(), true
}

// WriteSnapshot writes the periodic autosave record. Called only with a
// non-empty ledger.
func (b *Bridge) WriteSnapshot(ds *Dataset, ledger *Ledger, settings Settings) {
	if ds == nil || ledger.Len() == 0 {
		return
	}
	rec := SnapshotRecord{
		Filename:      ds.Filename,
		ModifiedCells: ledger.Snapshot(),
		Timestamp:     time.Now(),
		Settings:      settings,
	}
	if err := b.storage.WriteKey(storageKeyAutosave, &rec); err != nil {
		b.log.WithError(err).Warn("write autosave snapshot")
		return
	}
	b.log.WithFields(logrus.Fields{
		"filename": rec.Filename,
		"edits":    len(rec.ModifiedCells),
	}).Debug("autosave snapshot written")
}

// LoadSnapshot returns the last periodic snapshot, if any.
func (b *Bridge) LoadSnapshot() (*SnapshotRecord, bool) {
	var rec SnapshotRecord
	err := b.storage.ReadKey(storageKeyAutosave, &rec)
	if os.IsNotExist(err) {
		return nil, false
	}
	if err != nil {
		b.log.WithError(err).Warn("corrupt autosave snapshot discarded")
		if derr := b.storage.DeleteKey(storageKeyAutosave); derr != nil {
			b.log.WithError(derr).Warn("remove corrupt autosave snapshot")
		}
		return nil, false
	}
	return &rec, true
}
