package ernode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Kind identifies a Term's variant. The set is closed and exhaustively
// switched over by the codec, matcher, and printer (spec §9 "prefer a
// tagged-variant sum type").
type Kind uint8

const (
	KindLong Kind = iota
	KindDouble
	KindAtom
	KindBinary
	KindString
	KindList
	KindTuple
	KindPid
	KindPort
	KindRef
	KindVar
	KindTrace
)

var kindNames = [...]string{
	"Long", "Double", "Atom", "Binary", "String", "List", "Tuple",
	"Pid", "Port", "Ref", "Var", "Trace",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ErrWrongKind is returned by a typed accessor applied to a Term of a
// different Kind.
var ErrWrongKind = errors.New("wrong term kind")

// Pid, Port and Ref carry the node/id/serial/creation fields spec §3
// describes for Erlang process/port/reference identifiers.
type Pid struct {
	Node     Atom
	Id       uint32
	Serial   uint32
	Creation uint32
}

type Port struct {
	Node     Atom
	Id       uint32
	Creation uint32
}

type Ref struct {
	Node     Atom
	Creation uint32
	Id       []uint32
}

// Trace carries the sender/label/serial/token quadruple for traced sends
// (spec §3, optional).
type Trace struct {
	Sender Term
	Label  int64
	Serial int64
	Token  Term
}

// composite holds the payload shared by List and Tuple terms. Its refs
// counter starts at 1 and is not changed when a Term is copied.
type composite struct {
	refs     int32
	elems    []Term
	tail     *Term // List only: nil means proper (nil tail)
}

func (c *composite) retain() *composite {
	if c != nil {
		atomic.AddInt32(&c.refs, 1)
	}
	return c
}

func (c *composite) release() {
	if c != nil {
		atomic.AddInt32(&c.refs, -1)
	}
}

func (c *composite) owned() bool {
	return c != nil && atomic.LoadInt32(&c.refs) <= 1
}

// Term is a value-typed tagged union over every Erlang external-term
// variant this client needs (spec §3). List and Tuple payloads live behind
// a shared pointer, so copying a Term does not copy its elements; Binary
// and String hold their own byte slices. Copying a Term does not touch the
// composite's refs counter, and no Term method mutates a payload after
// construction.
type Term struct {
	kind Kind

	i64 int64   // Long
	f64 float64 // Double

	atom Atom // Atom, Var name (as an atom), Var wildcard sentinel

	bytes []byte // Binary, String payload

	comp *composite // List, Tuple payload

	pid   *Pid
	port  *Port
	ref   *Ref
	trace *Trace

	varConstraint Kind
	hasConstraint bool
}

// Kind reports which variant t holds.
func (t Term) Kind() Kind { return t.kind }

// ---- constructors ----

func Long(v int64) Term { return Term{kind: KindLong, i64: v} }

func Double(v float64) Term { return Term{kind: KindDouble, f64: v} }

func AtomTerm(a Atom) Term { return Term{kind: KindAtom, atom: a} }

// MustAtom interns name and wraps it as a Term, panicking on intern
// failure (name too long or table full). Convenient for literals built
// from constant strings.
func MustAtom(name string) Term {
	a, err := Intern(name)
	if err != nil {
		panic(err)
	}
	return AtomTerm(a)
}

func Binary(b []byte) Term {
	cp := append([]byte(nil), b...)
	return Term{kind: KindBinary, bytes: cp}
}

func Str(s string) Term {
	return Term{kind: KindString, bytes: []byte(s)}
}

// List builds a proper list from elems.
func List(elems ...Term) Term {
	return Term{kind: KindList, comp: &composite{refs: 1, elems: append([]Term(nil), elems...)}}
}

// ImproperList builds a list whose final cdr is tail instead of nil.
func ImproperList(tail Term, elems ...Term) Term {
	t := tail
	return Term{kind: KindList, comp: &composite{refs: 1, elems: append([]Term(nil), elems...), tail: &t}}
}

func TupleOf(elems ...Term) Term {
	return Term{kind: KindTuple, comp: &composite{refs: 1, elems: append([]Term(nil), elems...)}}
}

func PidTerm(p Pid) Term { return Term{kind: KindPid, pid: &p} }

func PortTerm(p Port) Term { return Term{kind: KindPort, port: &p} }

func RefTerm(r Ref) Term { return Term{kind: KindRef, ref: &r} }

func TraceTerm(tr Trace) Term { return Term{kind: KindTrace, trace: &tr} }

// Var constructs a pattern-only variable. name "_" produces the wildcard,
// which always matches and binds nothing.
func Var(name string) Term {
	a, err := Intern(name)
	if err != nil {
		panic(err)
	}
	return Term{kind: KindVar, atom: a}
}

// VarTyped constructs a Var with an expected-kind constraint: the match
// only succeeds if the subject's Kind() equals constraint.
func VarTyped(name string, constraint Kind) Term {
	v := Var(name)
	v.hasConstraint = true
	v.varConstraint = constraint
	return v
}

func (t Term) IsWildcard() bool {
	return t.kind == KindVar && t.atom.Equal(AtomWildcard)
}

func (t Term) VarName() string { return t.atom.NameOf() }

// ---- typed accessors ----

func (t Term) AsLong() (int64, error) {
	if t.kind != KindLong {
		return 0, errors.Wrapf(ErrWrongKind, "want Long, have %v", t.kind)
	}
	return t.i64, nil
}

func (t Term) AsDouble() (float64, error) {
	if t.kind != KindDouble {
		return 0, errors.Wrapf(ErrWrongKind, "want Double, have %v", t.kind)
	}
	return t.f64, nil
}

func (t Term) AsAtom() (Atom, error) {
	if t.kind != KindAtom {
		return Atom{}, errors.Wrapf(ErrWrongKind, "want Atom, have %v", t.kind)
	}
	return t.atom, nil
}

func (t Term) AsBinary() ([]byte, error) {
	if t.kind != KindBinary {
		return nil, errors.Wrapf(ErrWrongKind, "want Binary, have %v", t.kind)
	}
	return t.bytes, nil
}

func (t Term) AsString() (string, error) {
	if t.kind != KindString {
		return "", errors.Wrapf(ErrWrongKind, "want String, have %v", t.kind)
	}
	return string(t.bytes), nil
}

func (t Term) AsPid() (Pid, error) {
	if t.kind != KindPid {
		return Pid{}, errors.Wrapf(ErrWrongKind, "want Pid, have %v", t.kind)
	}
	return *t.pid, nil
}

func (t Term) AsPort() (Port, error) {
	if t.kind != KindPort {
		return Port{}, errors.Wrapf(ErrWrongKind, "want Port, have %v", t.kind)
	}
	return *t.port, nil
}

func (t Term) AsRef() (Ref, error) {
	if t.kind != KindRef {
		return Ref{}, errors.Wrapf(ErrWrongKind, "want Ref, have %v", t.kind)
	}
	return *t.ref, nil
}

func (t Term) AsTrace() (Trace, error) {
	if t.kind != KindTrace {
		return Trace{}, errors.Wrapf(ErrWrongKind, "want Trace, have %v", t.kind)
	}
	return *t.trace, nil
}

// Elements returns a list or tuple's elements. The returned slice aliases
// the term's shared payload; callers must not mutate it.
func (t Term) Elements() ([]Term, error) {
	if t.kind != KindList && t.kind != KindTuple {
		return nil, errors.Wrapf(ErrWrongKind, "want List or Tuple, have %v", t.kind)
	}
	return t.comp.elems, nil
}

// Arity is the element count of a Tuple; it is part of the type (spec §3
// invariant: tuple arity matches its element count).
func (t Term) Arity() (int, error) {
	if t.kind != KindTuple {
		return 0, errors.Wrapf(ErrWrongKind, "want Tuple, have %v", t.kind)
	}
	return len(t.comp.elems), nil
}

// Element returns the i-th tuple element, 1-indexed to match Erlang's
// erlang:element/2 and the eixx Tuple::operator[] convention used by the
// other_examples ETF readers.
func (t Term) Element(i int) (Term, error) {
	if t.kind != KindTuple {
		return Term{}, errors.Wrapf(ErrWrongKind, "want Tuple, have %v", t.kind)
	}
	if i < 1 || i > len(t.comp.elems) {
		return Term{}, errors.Errorf("tuple index %d out of range [1,%d]", i, len(t.comp.elems))
	}
	return t.comp.elems[i-1], nil
}

// Tail returns the list's improper tail, or false if the list is proper.
func (t Term) Tail() (Term, bool, error) {
	if t.kind != KindList {
		return Term{}, false, errors.Wrapf(ErrWrongKind, "want List, have %v", t.kind)
	}
	if t.comp.tail == nil {
		return Term{}, false, nil
	}
	return *t.comp.tail, true, nil
}

// IsProperList reports whether t is a List with a nil tail.
func (t Term) IsProperList() bool {
	return t.kind == KindList && t.comp.tail == nil
}

// ---- equality ----

// Equal reports deep structural equality, per spec §3/§8.
func (t Term) Equal(o Term) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindLong:
		return t.i64 == o.i64
	case KindDouble:
		return t.f64 == o.f64
	case KindAtom:
		return t.atom.Equal(o.atom)
	case KindBinary, KindString:
		return string(t.bytes) == string(o.bytes)
	case KindList, KindTuple:
		a, b := t.comp.elems, o.comp.elems
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		if t.kind == KindList {
			at, bt := t.comp.tail, o.comp.tail
			if (at == nil) != (bt == nil) {
				return false
			}
			if at != nil && !at.Equal(*bt) {
				return false
			}
		}
		return true
	case KindPid:
		return t.pid.Node.Equal(o.pid.Node) && t.pid.Id == o.pid.Id &&
			t.pid.Serial == o.pid.Serial && t.pid.Creation == o.pid.Creation
	case KindPort:
		return t.port.Node.Equal(o.port.Node) && t.port.Id == o.port.Id && t.port.Creation == o.port.Creation
	case KindRef:
		if !t.ref.Node.Equal(o.ref.Node) || t.ref.Creation != o.ref.Creation || len(t.ref.Id) != len(o.ref.Id) {
			return false
		}
		for i := range t.ref.Id {
			if t.ref.Id[i] != o.ref.Id[i] {
				return false
			}
		}
		return true
	case KindVar:
		return t.atom.Equal(o.atom)
	case KindTrace:
		return t.trace.Sender.Equal(o.trace.Sender) && t.trace.Label == o.trace.Label &&
			t.trace.Serial == o.trace.Serial && t.trace.Token.Equal(o.trace.Token)
	default:
		return false
	}
}

// ---- printing ----

// String renders t as canonical Erlang text (spec §4.2 "to_string()").
func (t Term) String() string {
	var b strings.Builder
	t.writeTo(&b)
	return b.String()
}

func (t Term) writeTo(b *strings.Builder) {
	switch t.kind {
	case KindLong:
		b.WriteString(strconv.FormatInt(t.i64, 10))
	case KindDouble:
		b.WriteString(formatErlangFloat(t.f64))
	case KindAtom:
		b.WriteString(quoteAtomIfNeeded(t.atom.NameOf()))
	case KindVar:
		if t.IsWildcard() {
			b.WriteString("_")
		} else {
			b.WriteString(t.atom.NameOf())
		}
	case KindBinary:
		b.WriteString(fmt.Sprintf("<<%s>>", joinBytes(t.bytes)))
	case KindString:
		if isPrintableASCII(t.bytes) {
			b.WriteString(strconv.Quote(string(t.bytes)))
		} else {
			b.WriteString(fmt.Sprintf("<<%s>>", joinBytes(t.bytes)))
		}
	case KindTuple:
		b.WriteString("{")
		for i, e := range t.comp.elems {
			if i > 0 {
				b.WriteString(",")
			}
			e.writeTo(b)
		}
		b.WriteString("}")
	case KindList:
		if s, ok := t.printableSmallIntString(); ok {
			b.WriteString(strconv.Quote(s))
			return
		}
		b.WriteString("[")
		for i, e := range t.comp.elems {
			if i > 0 {
				b.WriteString(",")
			}
			e.writeTo(b)
		}
		if t.comp.tail != nil {
			b.WriteString("|")
			t.comp.tail.writeTo(b)
		}
		b.WriteString("]")
	case KindPid:
		b.WriteString(fmt.Sprintf("<%s.%d.%d>", t.pid.Node.NameOf(), t.pid.Id, t.pid.Serial))
	case KindPort:
		b.WriteString(fmt.Sprintf("#Port<%s.%d>", t.port.Node.NameOf(), t.port.Id))
	case KindRef:
		b.WriteString(fmt.Sprintf("#Ref<%s.%v>", t.ref.Node.NameOf(), t.ref.Id))
	case KindTrace:
		b.WriteString("#Trace{...}")
	}
}

// printableSmallIntString reports whether t is a non-empty proper list
// whose every element is a Long holding a printable ASCII byte (0x20 to
// 0x7e), returning the rendered string if so.
func (t Term) printableSmallIntString() (string, bool) {
	if t.comp.tail != nil || len(t.comp.elems) == 0 {
		return "", false
	}
	buf := make([]byte, 0, len(t.comp.elems))
	for _, e := range t.comp.elems {
		if e.kind != KindLong || e.i64 < 0 || e.i64 > 255 {
			return "", false
		}
		buf = append(buf, byte(e.i64))
	}
	if !isPrintableASCII(buf) {
		return "", false
	}
	return string(buf), true
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return len(b) > 0
}

func joinBytes(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Itoa(int(c)))
	}
	return sb.String()
}

func quoteAtomIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	if !needsQuote(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

func needsQuote(s string) bool {
	if s[0] < 'a' || s[0] > 'z' {
		return true
	}
	for _, r := range s {
		if !(r == '_' || r == '@' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return true
		}
	}
	return false
}

func formatErlangFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
