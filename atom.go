package ernode

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrAtomTableFull is returned by Intern once the process-wide atom table
// has reached its historical Erlang limit.
var ErrAtomTableFull = errors.New("atom table full")

// ErrAtomNameTooLong is returned eagerly at intern time, rather than
// deferred to encode time, per the eixx original (see SPEC_FULL.md).
var ErrAtomNameTooLong = errors.New("atom name exceeds 255 bytes")

const maxAtoms = 1 << 20

// Atom is an interned symbol. Equality is index equality: two Atoms are
// equal iff their indices are equal.
type Atom struct {
	idx int32
}

type atomTable struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]int32
}

var globalAtoms = newAtomTable()

func newAtomTable() *atomTable {
	t := &atomTable{byName: make(map[string]int32, 1024)}
	return t
}

// Well-known atoms, preinterned at fixed low indices.
var (
	AtomTrue      Atom
	AtomFalse     Atom
	AtomUndefined Atom
	AtomWildcard  Atom
)

func init() {
	AtomTrue = mustIntern("true")
	AtomFalse = mustIntern("false")
	AtomUndefined = mustIntern("undefined")
	AtomWildcard = mustIntern("_")
}

func mustIntern(name string) Atom {
	a, err := Intern(name)
	if err != nil {
		panic(err)
	}
	return a
}

// Intern returns the Atom for name, assigning it a fresh index on first
// use. Interning is idempotent: repeated calls with the same name return
// the same Atom.
func Intern(name string) (Atom, error) {
	if len(name) > 255 {
		return Atom{}, errors.Wrapf(ErrAtomNameTooLong, "atom %q", truncateForError(name))
	}

	globalAtoms.mu.RLock()
	if idx, ok := globalAtoms.byName[name]; ok {
		globalAtoms.mu.RUnlock()
		return Atom{idx: idx}, nil
	}
	globalAtoms.mu.RUnlock()

	globalAtoms.mu.Lock()
	defer globalAtoms.mu.Unlock()
	if idx, ok := globalAtoms.byName[name]; ok {
		return Atom{idx: idx}, nil
	}
	if len(globalAtoms.names) >= maxAtoms {
		return Atom{}, ErrAtomTableFull
	}
	idx := int32(len(globalAtoms.names))
	globalAtoms.names = append(globalAtoms.names, name)
	globalAtoms.byName[name] = idx
	return Atom{idx: idx}, nil
}

// NameOf returns the interned string for a, or the empty string if a's
// index is outside the table (the zero Atom is "true" by construction, so
// this only happens for hand-built invalid Atoms).
func (a Atom) NameOf() string {
	globalAtoms.mu.RLock()
	defer globalAtoms.mu.RUnlock()
	if int(a.idx) < 0 || int(a.idx) >= len(globalAtoms.names) {
		return ""
	}
	return globalAtoms.names[a.idx]
}

// Index returns the atom's small-integer identity. Two atoms are equal
// iff their Index values are equal.
func (a Atom) Index() int32 { return a.idx }

func (a Atom) Equal(b Atom) bool { return a.idx == b.idx }

func (a Atom) String() string { return a.NameOf() }

func truncateForError(name string) string {
	if len(name) > 40 {
		return name[:40] + "..."
	}
	return name
}

// resetAtomTableForTest wipes the process-wide atom table and reinterns
// the well-known atoms so their package-level indices stay valid. Tests
// that need a clean table call this instead of constructing a new
// atomTable, since Atom, Intern, and the well-known vars all close over
// globalAtoms.
func resetAtomTableForTest() {
	globalAtoms.mu.Lock()
	globalAtoms.names = nil
	globalAtoms.byName = make(map[string]int32, 1024)
	globalAtoms.mu.Unlock()

	AtomTrue = mustIntern("true")
	AtomFalse = mustIntern("false")
	AtomUndefined = mustIntern("undefined")
	AtomWildcard = mustIntern("_")
}
