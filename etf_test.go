package ernode

import "testing"

func roundTrip(t *testing.T, term Term) Term {
	t.Helper()
	encoded, err := Encode(term)
	if err != nil {
		t.Fatalf("Encode(%v): %v", term, err)
	}
	size, err := EncodeSize(term)
	if err != nil {
		t.Fatalf("EncodeSize(%v): %v", term, err)
	}
	if size != len(encoded) {
		t.Fatalf("EncodeSize = %d, len(Encode) = %d", size, len(encoded))
	}
	decoded, n, err := DecodeTerm(encoded)
	if err != nil {
		t.Fatalf("DecodeTerm(%v): %v", term, err)
	}
	if n != len(encoded) {
		t.Fatalf("DecodeTerm consumed %d bytes, want %d", n, len(encoded))
	}
	return decoded
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []Term{
		Long(0),
		Long(255),
		Long(256),
		Long(-1),
		Long(1 << 40),
		Long(-(1 << 40)),
		Double(3.25),
		Double(-0.5),
		MustAtom("ok"),
		MustAtom("a_much_longer_atom_name_for_coverage"),
		Binary([]byte{0, 1, 2, 3, 255}),
		Str("hello"),
		List(),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if !got.Equal(c) {
			t.Errorf("round trip %v -> %v, not equal", c, got)
		}
	}
}

func TestRoundTripTuple(t *testing.T) {
	orig := TupleOf(Long(1), MustAtom("ok"), Str("test"))
	got := roundTrip(t, orig)
	if !got.Equal(orig) {
		t.Fatalf("round trip %v -> %v", orig, got)
	}
}

func TestRoundTripList(t *testing.T) {
	orig := List(Long(4), Double(2.0), Str("test"), MustAtom("abcd"))
	got := roundTrip(t, orig)
	if !got.Equal(orig) {
		t.Fatalf("round trip %v -> %v", orig, got)
	}
}

func TestRoundTripImproperList(t *testing.T) {
	orig := ImproperList(MustAtom("tail"), Long(1), Long(2))
	got := roundTrip(t, orig)
	if !got.Equal(orig) {
		t.Fatalf("round trip %v -> %v", orig, got)
	}
	if got.IsProperList() {
		t.Fatalf("round-tripped list should remain improper")
	}
}

func TestRoundTripPid(t *testing.T) {
	node := MustAtom("node@host").atom
	orig := PidTerm(Pid{Node: node, Id: 5, Serial: 2, Creation: 1})
	got := roundTrip(t, orig)
	if !got.Equal(orig) {
		t.Fatalf("round trip %v -> %v", orig, got)
	}
}

func TestRoundTripRef(t *testing.T) {
	node := MustAtom("node@host").atom
	orig := RefTerm(Ref{Node: node, Creation: 3, Id: []uint32{1, 2, 3}})
	got := roundTrip(t, orig)
	if !got.Equal(orig) {
		t.Fatalf("round trip %v -> %v", orig, got)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	_, _, err := DecodeTerm([]byte{0, 97, 1})
	if err == nil {
		t.Fatalf("expected error for bad version byte")
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, _, err := DecodeTerm([]byte{etfVersion, ettSmallInteger})
	if err == nil {
		t.Fatalf("expected error for truncated SMALL_INTEGER_EXT")
	}
}

func TestEncodeAtomTrueMatchesSpecBytes(t *testing.T) {
	encoded, err := Encode(MustAtom("true"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x83, 0x64, 0x00, 0x04, 0x74, 0x72, 0x75, 0x65}
	if string(encoded) != string(want) {
		t.Fatalf("Encode(true) = % x, want % x", encoded, want)
	}
}

func TestEncodeOkTupleMatchesSpecBytes(t *testing.T) {
	encoded, err := Encode(TupleOf(MustAtom("ok"), Long(1)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// magic, SMALL_TUPLE_EXT arity=2, ATOM_EXT "ok", SMALL_INTEGER_EXT 1.
	want := []byte{0x83, 0x68, 0x02, 0x64, 0x00, 0x02, 0x6f, 0x6b, 0x61, 0x01}
	if string(encoded) != string(want) {
		t.Fatalf("Encode({ok,1}) = % x, want % x", encoded, want)
	}
}

func TestEncodeSmallIntegerUsesCompactTag(t *testing.T) {
	encoded, err := Encode(Long(10))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 3 || encoded[1] != ettSmallInteger {
		t.Fatalf("Long(10) should encode as SMALL_INTEGER_EXT, got % x", encoded)
	}
}
