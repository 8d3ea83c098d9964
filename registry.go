package ernode

import (
	"sync"

	uuid "github.com/satori/go.uuid"
)

// PatternCallback is invoked on the first match found for its entry. The
// binding holds every variable the pattern captured. The return value
// decides whether the registry keeps looking at later entries: true
// means "consumed" and stops the search; false moves on to later
// entries, each matched with a fresh scratch binding.
type PatternCallback func(pattern Term, binding *Varbind, opaque interface{}) bool

// PatternHandle identifies a registered entry for Erase. Handles are
// UUIDs rather than a counter so they stay globally unique across
// independently constructed registries, the same opaque-correlation-id
// convention pair.go uses for DeriveUUID.
type PatternHandle uuid.UUID

type patternEntry struct {
	handle   PatternHandle
	pattern  Term
	callback PatternCallback
	opaque   interface{}
}

// Registry holds an ordered set of (pattern, callback, opaque) entries
// and dispatches an incoming term against them in insertion order (spec
// §4.5). It is safe for concurrent use; entries are matched against a
// point-in-time snapshot so Erase/PushBack from inside a callback never
// deadlocks or corrupts an in-flight Match.
type Registry struct {
	mu      sync.Mutex
	entries []patternEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// PushBack appends a new entry and returns its handle.
func (r *Registry) PushBack(pattern Term, callback PatternCallback, opaque interface{}) PatternHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := uuid.NewV4()
	if err != nil {
		// Entropy-source failure; extremely unlikely, and a zero handle
		// is still unique enough within one process's registry lifetime.
		id = uuid.UUID{}
	}
	h := PatternHandle(id)
	r.entries = append(r.entries, patternEntry{handle: h, pattern: pattern, callback: callback, opaque: opaque})
	return h
}

// Erase removes the entry with handle h, if present.
func (r *Registry) Erase(h PatternHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.handle == h {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Size reports the number of registered entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Match tries subject against every entry in insertion order, stopping at
// the first entry whose pattern matches and whose callback returns true.
// It reports whether any callback consumed the subject.
func (r *Registry) Match(subject Term) bool {
	r.mu.Lock()
	snapshot := append([]patternEntry(nil), r.entries...)
	r.mu.Unlock()

	for _, e := range snapshot {
		binding := NewVarbind()
		if !Match(e.pattern, subject, binding) {
			continue
		}
		if e.callback(e.pattern, binding, e.opaque) {
			return true
		}
	}
	return false
}
