package main

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const maxRecentFiles = 10

type RecentFile struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	LastOpened time.Time `json:"lastOpened"`
	Size       int64     `json:"size"`
}

// RecentFiles keeps the bounded, newest-first list of recently opened files,
// deduplicated by path and persisted under its own storage key.
type RecentFiles struct {
	mu      sync.RWMutex
	files   []RecentFile
	storage *Storage
	log     *logrus.Entry
}

func NewRecentFiles(storage *Storage, log *logrus.Entry) *RecentFiles {
	return &RecentFiles{storage: storage, log: log}
}

func (r *RecentFiles) Load() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []RecentFile
	if err := r.storage.ReadKey(storageKeyRecent, &files); err != nil {
		// Missing or unreadable list just starts empty.
		return
	}
	if len(files) > maxRecentFiles {
		files = files[:maxRecentFiles]
	}
	r.files = files
}

// Touch records that a file was opened: moved (or inserted) to the front,
// deduplicated by path, trimmed to the bound, then persisted.
func (r *RecentFiles) Touch(name, path string, size int64) {
	r.mu.Lock()
	updated := make([]RecentFile, 0, len(r.files)+1)
	updated = append(updated, RecentFile{
		Name:       name,
		Path:       path,
		LastOpened: time.Now(),
		Size:       size,
	})
	for _, f := range r.files {
		if f.Path == path {
			continue
		}
		updated = append(updated, f)
	}
	if len(updated) > maxRecentFiles {
		updated = updated[:maxRecentFiles]
	}
	r.files = updated
	snapshot := append([]RecentFile{}, r.files...)
	r.mu.Unlock()

	if err := r.storage.WriteKey(storageKeyRecent, snapshot); err != nil {
		r.log.WithError(err).Warn("write recent files")
		return
	}
	r.log.WithFields(logrus.Fields{
		"file": name,
		"size": humanize.Bytes(uint64(size)),
	}).Info("recent file recorded")
}

func (r *RecentFiles) List() []RecentFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RecentFile{}, r.files...)
}
