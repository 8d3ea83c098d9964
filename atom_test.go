package ernode

import "testing"

func TestInternIdempotent(t *testing.T) {
	a, err := Intern("hello_world")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	b, err := Intern("hello_world")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected same atom, got indices %d and %d", a.Index(), b.Index())
	}
	if a.NameOf() != "hello_world" {
		t.Fatalf("NameOf = %q, want hello_world", a.NameOf())
	}
}

func TestInternDistinctNames(t *testing.T) {
	a, _ := Intern("distinct_one")
	b, _ := Intern("distinct_two")
	if a.Equal(b) {
		t.Fatalf("distinct names interned to the same atom")
	}
}

func TestInternNameTooLong(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err := Intern(string(long))
	if err == nil {
		t.Fatalf("expected error for 256-byte atom name")
	}
}

func TestWellKnownAtoms(t *testing.T) {
	if AtomTrue.NameOf() != "true" {
		t.Fatalf("AtomTrue = %q", AtomTrue.NameOf())
	}
	if AtomFalse.NameOf() != "false" {
		t.Fatalf("AtomFalse = %q", AtomFalse.NameOf())
	}
	if AtomWildcard.NameOf() != "_" {
		t.Fatalf("AtomWildcard = %q", AtomWildcard.NameOf())
	}
}

func TestResetAtomTableForTest(t *testing.T) {
	custom, err := Intern("reset_probe")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	resetAtomTableForTest()
	if AtomTrue.NameOf() != "true" {
		t.Fatalf("well-known atom not reinterned after reset: %q", AtomTrue.NameOf())
	}
	// custom's old index may now refer to a well-known atom or nothing;
	// interning the same name again must still succeed and be self-consistent.
	again, err := Intern("reset_probe")
	if err != nil {
		t.Fatalf("Intern after reset: %v", err)
	}
	if again.NameOf() != "reset_probe" {
		t.Fatalf("NameOf after reset = %q", again.NameOf())
	}
	_ = custom
}
