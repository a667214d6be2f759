package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatchKey(t *testing.T) {
	tests := []struct {
		name    string
		editing bool
		mod     KeyModifiers
		key     string
		want    Action
	}{
		{name: "ctrl+s saves", mod: KeyModifiers{Ctrl: true}, key: "s", want: ActionSave},
		{name: "ctrl+shift+s saves", mod: KeyModifiers{Ctrl: true, Shift: true}, key: "S", want: ActionSave},
		{name: "ctrl+e exports", mod: KeyModifiers{Ctrl: true}, key: "e", want: ActionExport},
		{name: "ctrl+f finds", mod: KeyModifiers{Ctrl: true}, key: "f", want: ActionFind},
		{name: "ctrl+shift+backspace clears edits", mod: KeyModifiers{Ctrl: true, Shift: true}, key: "Backspace", want: ActionClearEdits},
		{name: "ctrl+backspace alone does nothing", mod: KeyModifiers{Ctrl: true}, key: "Backspace", want: ActionNone},
		{name: "ctrl+alt combos belong to the OS", mod: KeyModifiers{Ctrl: true, Alt: true}, key: "s", want: ActionNone},
		{name: "page down", key: "PageDown", want: ActionNextPage},
		{name: "page up", key: "PageUp", want: ActionPrevPage},
		{name: "plain letter does nothing", key: "s", want: ActionNone},
		{name: "enter while editing commits", editing: true, key: "Enter", want: ActionCommitEdit},
		{name: "escape while editing cancels", editing: true, key: "Escape", want: ActionCancelEdit},
		{name: "ctrl+s while editing does nothing", editing: true, mod: KeyModifiers{Ctrl: true}, key: "s", want: ActionNone},
		{name: "page down while editing does nothing", editing: true, key: "PageDown", want: ActionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DispatchKey(tt.editing, tt.mod, tt.key))
		})
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { fired.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	// Only the last surviving timer fires.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
