package ernode

import "github.com/pkg/errors"

// Varbind maps pattern-variable names to the terms a successful match
// bound them to (spec §4.4). It preserves insertion order for
// deterministic error reporting while still supporting name lookup.
type Varbind struct {
	order []string
	vals  map[string]Term
}

// NewVarbind returns an empty binding.
func NewVarbind() *Varbind {
	return &Varbind{vals: make(map[string]Term)}
}

// Lookup returns the term bound to name, if any.
func (b *Varbind) Lookup(name string) (Term, bool) {
	t, ok := b.vals[name]
	return t, ok
}

// Names returns the bound variable names in binding order.
func (b *Varbind) Names() []string {
	return append([]string(nil), b.order...)
}

func (b *Varbind) bind(name string, t Term) {
	if _, exists := b.vals[name]; !exists {
		b.order = append(b.order, name)
	}
	b.vals[name] = t
}

// clone returns an independent copy of the binding.
func (b *Varbind) clone() *Varbind {
	c := &Varbind{vals: make(map[string]Term, len(b.vals)), order: append([]string(nil), b.order...)}
	for k, v := range b.vals {
		c.vals[k] = v
	}
	return c
}

// Match attempts to match pattern against subject, extending binding in
// place on success (spec §4.4). It reports whether the match succeeded;
// on failure binding may have been partially extended and should be
// discarded by the caller.
func Match(pattern, subject Term, binding *Varbind) bool {
	if pattern.IsWildcard() {
		return true
	}
	if pattern.kind == KindVar {
		if pattern.hasConstraint && subject.kind != pattern.varConstraint {
			return false
		}
		name := pattern.VarName()
		if existing, ok := binding.Lookup(name); ok {
			return existing.Equal(subject)
		}
		binding.bind(name, subject)
		return true
	}

	if pattern.kind != subject.kind {
		return false
	}

	switch pattern.kind {
	case KindLong:
		return pattern.i64 == subject.i64
	case KindDouble:
		return pattern.f64 == subject.f64
	case KindAtom:
		return pattern.atom.Equal(subject.atom)
	case KindBinary, KindString:
		return string(pattern.bytes) == string(subject.bytes)
	case KindTuple:
		pe, se := pattern.comp.elems, subject.comp.elems
		if len(pe) != len(se) {
			return false
		}
		for i := range pe {
			if !Match(pe[i], se[i], binding) {
				return false
			}
		}
		return true
	case KindList:
		return matchList(pattern, subject, binding)
	case KindPid:
		return pattern.pid.Node.Equal(subject.pid.Node) && pattern.pid.Id == subject.pid.Id &&
			pattern.pid.Serial == subject.pid.Serial && pattern.pid.Creation == subject.pid.Creation
	case KindPort:
		return pattern.port.Node.Equal(subject.port.Node) && pattern.port.Id == subject.port.Id &&
			pattern.port.Creation == subject.port.Creation
	case KindRef:
		return pattern.Equal(subject)
	default:
		return pattern.Equal(subject)
	}
}

// matchList walks a list pattern's heads element-wise; when the pattern
// runs out of heads, the remainder is matched against the pattern's tail
// (which may itself be a Var, in which case it binds to the subject's
// remaining suffix as a proper or improper list — spec §4.4's `[H1,H2|T]`
// case).
func matchList(pattern, subject Term, binding *Varbind) bool {
	pe := pattern.comp.elems
	se := subject.comp.elems

	i := 0
	for ; i < len(pe); i++ {
		if i >= len(se) {
			// Pattern has more heads than the subject has elements: only
			// possible match is if the subject is itself improper and we
			// have run out of proper elements to consume, which can't
			// supply a head, so fail.
			return false
		}
		if !Match(pe[i], se[i], binding) {
			return false
		}
	}

	remaining := se[i:]
	subjectRest := List(remaining...)
	if subject.comp.tail != nil {
		subjectRest = ImproperList(*subject.comp.tail, remaining...)
	}

	if pattern.comp.tail == nil {
		// Proper pattern: the subject must have no surplus elements and
		// no improper tail of its own.
		return len(remaining) == 0 && subject.comp.tail == nil
	}

	return Match(*pattern.comp.tail, subjectRest, binding)
}

// Subst replaces every Var in pattern that is present in binding with its
// bound term (spec §4.4 `subst`). A Var absent from binding fails the
// whole substitution with ErrUnboundVariable, since leaving a variable
// embedded in an otherwise-concrete term isn't representable on the wire.
func Subst(pattern Term, binding *Varbind) (Term, error) {
	if pattern.kind == KindVar {
		if pattern.IsWildcard() {
			return Term{}, errors.Wrapf(ErrUnboundVariable, "wildcard has no substitutable value")
		}
		name := pattern.VarName()
		bound, ok := binding.Lookup(name)
		if !ok {
			return Term{}, errors.Wrapf(ErrUnboundVariable, "variable %q", name)
		}
		return bound, nil
	}

	switch pattern.kind {
	case KindTuple:
		elems, err := substElements(pattern.comp.elems, binding)
		if err != nil {
			return Term{}, err
		}
		return TupleOf(elems...), nil
	case KindList:
		elems, err := substElements(pattern.comp.elems, binding)
		if err != nil {
			return Term{}, err
		}
		if pattern.comp.tail == nil {
			return List(elems...), nil
		}
		tail, err := Subst(*pattern.comp.tail, binding)
		if err != nil {
			return Term{}, err
		}
		if tail.kind == KindList && tail.IsProperList() && len(mustElems(tail)) == 0 {
			return List(elems...), nil
		}
		return ImproperList(tail, elems...), nil
	default:
		return pattern, nil
	}
}

func substElements(elems []Term, binding *Varbind) ([]Term, error) {
	out := make([]Term, len(elems))
	for i, e := range elems {
		s, err := Subst(e, binding)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
