package rules

import (
	"sync/atomic"
)

// Holder owns the currently active rule Snapshot and supports atomic reloads.
// Readers always see a complete snapshot: a reload swaps the pointer only
// after the new document has fully compiled, and a failed reload leaves the
// previous snapshot in place.
type Holder struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// NewHolder loads the rule document at path and returns a Holder for it.
func NewHolder(path string) (*Holder, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}

	h := &Holder{path: path}
	h.current.Store(snap)
	return h, nil
}

// NewHolderFromSnapshot wraps an already compiled snapshot. Used by tests and
// by callers that manage the document themselves.
func NewHolderFromSnapshot(snap *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(snap)
	return h
}

// Snapshot returns the current rule snapshot. The returned value is immutable
// and safe to use for the duration of a run even if a reload happens meanwhile.
func (h *Holder) Snapshot() *Snapshot {
	return h.current.Load()
}

// Reload re-reads the rule document and swaps in the new snapshot.
// On error the active snapshot is left untouched.
func (h *Holder) Reload() (*Snapshot, error) {
	snap, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.current.Store(snap)
	return snap, nil
}
