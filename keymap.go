package main

import (
	"sync"
	"time"
)

// Action is what a keyboard event resolves to, independent of any UI
// framework callback mechanism.
type Action int

const (
	ActionNone Action = iota
	ActionSave
	ActionExport
	ActionFind
	ActionNextPage
	ActionPrevPage
	ActionCommitEdit
	ActionCancelEdit
	ActionClearEdits
)

// KeyModifiers carries the modifier state of a keyboard event.
type KeyModifiers struct {
	Ctrl  bool
	Alt   bool
	Shift bool
}

// DispatchKey maps (focus state, modifiers, key) to an Action. While a cell
// editor has focus only Enter and Escape are meaningful; every other key
// belongs to the editor itself.
func DispatchKey(editingCell bool, mod KeyModifiers, key string) Action {
	if editingCell {
		switch key {
		case "Enter":
			return ActionCommitEdit
		case "Escape":
			return ActionCancelEdit
		}
		return ActionNone
	}

	if mod.Ctrl && !mod.Alt {
		switch key {
		case "s", "S":
			return ActionSave
		case "e", "E":
			return ActionExport
		case "f", "F":
			return ActionFind
		case "Backspace":
			if mod.Shift {
				return ActionClearEdits
			}
		}
		return ActionNone
	}

	switch key {
	case "PageDown":
		return ActionNextPage
	case "PageUp":
		return ActionPrevPage
	}
	return ActionNone
}

// Debouncer coalesces bursts of triggers into a single deferred call: each
// trigger resets the pending timer, and only the timer that survives without
// being superseded fires.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the debounce delay, cancelling any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
