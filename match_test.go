package ernode

import "testing"

func TestMatchWildcard(t *testing.T) {
	b := NewVarbind()
	if !Match(Var("_"), Long(42), b) {
		t.Fatalf("wildcard should match anything")
	}
	if len(b.Names()) != 0 {
		t.Fatalf("wildcard should bind nothing, got %v", b.Names())
	}
}

func TestMatchLinearVarConsistency(t *testing.T) {
	pattern := TupleOf(Var("X"), Var("X"))
	b := NewVarbind()
	if !Match(pattern, TupleOf(MustAtom("a"), MustAtom("a")), b) {
		t.Fatalf("match({X,X},{a,a}) should succeed")
	}
	bound, ok := b.Lookup("X")
	if !ok || !bound.Equal(MustAtom("a")) {
		t.Fatalf("X should be bound to a, got %v ok=%v", bound, ok)
	}

	b2 := NewVarbind()
	if Match(pattern, TupleOf(MustAtom("a"), MustAtom("b")), b2) {
		t.Fatalf("match({X,X},{a,b}) should fail")
	}
}

func TestMatchTypedVar(t *testing.T) {
	pattern := VarTyped("N", KindLong)
	b := NewVarbind()
	if !Match(pattern, Long(7), b) {
		t.Fatalf("typed var should match a Long")
	}
	b2 := NewVarbind()
	if Match(pattern, MustAtom("seven"), b2) {
		t.Fatalf("typed var constrained to Long should reject an Atom")
	}
}

func TestMatchTupleArity(t *testing.T) {
	b := NewVarbind()
	if Match(TupleOf(Var("A"), Var("B")), TupleOf(Long(1), Long(2), Long(3)), b) {
		t.Fatalf("tuples of different arity must not match")
	}
}

func TestMatchImproperTailBinding(t *testing.T) {
	pattern := ImproperList(Var("T"), Var("H1"), Var("H2"))
	subject := List(Long(1), Long(2), Long(3), Long(4))
	b := NewVarbind()
	if !Match(pattern, subject, b) {
		t.Fatalf("[H1,H2|T] should match a 4-element list")
	}
	h1, _ := b.Lookup("H1")
	h2, _ := b.Lookup("H2")
	tail, _ := b.Lookup("T")
	if !h1.Equal(Long(1)) || !h2.Equal(Long(2)) {
		t.Fatalf("H1/H2 = %v/%v, want 1/2", h1, h2)
	}
	if !tail.Equal(List(Long(3), Long(4))) {
		t.Fatalf("T = %v, want [3,4]", tail)
	}
}

func TestMatchImproperTailBindsImproperSuffix(t *testing.T) {
	pattern := ImproperList(Var("T"), Var("H"))
	subject := ImproperList(MustAtom("rest"), Long(1), Long(2))
	b := NewVarbind()
	if !Match(pattern, subject, b) {
		t.Fatalf("[H|T] should match an improper subject")
	}
	tail, _ := b.Lookup("T")
	if !tail.Equal(ImproperList(MustAtom("rest"), Long(2))) {
		t.Fatalf("T = %v, want [2|rest]", tail)
	}
}

func TestMatchProperListRejectsSurplus(t *testing.T) {
	pattern := List(Var("A"), Var("B"))
	b := NewVarbind()
	if Match(pattern, List(Long(1), Long(2), Long(3)), b) {
		t.Fatalf("proper 2-element pattern must not match a 3-element list")
	}
}

func TestSubstBasic(t *testing.T) {
	b := NewVarbind()
	b.bind("ID", Long(123))
	b.bind("List", List(Long(4), Double(2.0), Str("test"), MustAtom("abcd")))
	pattern := TupleOf(MustAtom("perc"), Var("ID"), Var("List"))
	got, err := Subst(pattern, b)
	if err != nil {
		t.Fatalf("Subst: %v", err)
	}
	want := `{perc,123,[4,2.0,"test",abcd]}`
	if got.String() != want {
		t.Fatalf("Subst string = %q, want %q", got.String(), want)
	}
}

func TestSubstUnboundVariable(t *testing.T) {
	b := NewVarbind()
	_, err := Subst(Var("Unbound"), b)
	if err == nil {
		t.Fatalf("Subst of an unbound var should fail")
	}
}

func TestMatchSubstRoundTrip(t *testing.T) {
	pattern := TupleOf(Var("A"), Var("B"))
	b := NewVarbind()
	b.bind("A", Long(1))
	b.bind("B", Str("two"))
	subject, err := Subst(pattern, b)
	if err != nil {
		t.Fatalf("Subst: %v", err)
	}
	fresh := NewVarbind()
	if !Match(pattern, subject, fresh) {
		t.Fatalf("match(p, subst(p,b)) should succeed")
	}
}
