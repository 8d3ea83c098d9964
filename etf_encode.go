package ernode

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Encode renders t as a version-tagged ETF buffer (spec §4.3). It prefers
// the compact tags whenever a value fits them, mirroring the tag-choice
// table in other_examples/82dcce2c_DeedleFake-etf__etf.go.go: small
// integers as SMALL_INTEGER_EXT, tuples under 256 elements as
// SMALL_TUPLE_EXT, and byte-valued lists up to 65535 long as STRING_EXT.
func Encode(t Term) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, etfVersion)
	buf, err := encodeValue(buf, t)
	if err != nil {
		return nil, errors.Wrapf(ErrEncode, "%s", err)
	}
	return buf, nil
}

// EncodeSize returns len(Encode(t)) without allocating the buffer, so
// callers can size a single shared write buffer up front (spec §8
// "encoded size" must agree exactly with Encode's output length).
func EncodeSize(t Term) (int, error) {
	n, err := sizeValue(t)
	if err != nil {
		return 0, errors.Wrapf(ErrEncode, "%s", err)
	}
	return 1 + n, nil
}

func encodeValue(buf []byte, t Term) ([]byte, error) {
	switch t.kind {
	case KindLong:
		return encodeLong(buf, t.i64), nil

	case KindDouble:
		buf = append(buf, ettNewFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(t.f64))
		return append(buf, b[:]...), nil

	case KindAtom:
		return encodeAtom(buf, t.atom), nil

	case KindBinary:
		buf = append(buf, ettBinary)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(t.bytes)))
		buf = append(buf, b[:]...)
		return append(buf, t.bytes...), nil

	case KindString:
		if len(t.bytes) == 0 {
			return append(buf, ettNil), nil
		}
		if len(t.bytes) <= 65535 {
			buf = append(buf, ettString)
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(len(t.bytes)))
			buf = append(buf, b[:]...)
			return append(buf, t.bytes...), nil
		}
		// Longer than STRING_EXT's 16-bit length allows: fall back to a
		// LIST_EXT of SMALL_INTEGER_EXT byte values.
		buf = append(buf, ettList)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(t.bytes)))
		buf = append(buf, b[:]...)
		for _, c := range t.bytes {
			buf = append(buf, ettSmallInteger, c)
		}
		return append(buf, ettNil), nil

	case KindTuple:
		elems := t.comp.elems
		if len(elems) < 256 {
			buf = append(buf, ettSmallTuple, byte(len(elems)))
		} else {
			buf = append(buf, ettLargeTuple)
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(len(elems)))
			buf = append(buf, b[:]...)
		}
		for _, e := range elems {
			var err error
			buf, err = encodeValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil

	case KindList:
		elems := t.comp.elems
		if len(elems) == 0 && t.comp.tail == nil {
			return append(buf, ettNil), nil
		}
		buf = append(buf, ettList)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(elems)))
		buf = append(buf, b[:]...)
		for _, e := range elems {
			var err error
			buf, err = encodeValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		tail := List()
		if t.comp.tail != nil {
			tail = *t.comp.tail
		}
		return encodeValue(buf, tail)

	case KindPid:
		buf = append(buf, ettPid)
		var err error
		buf, err = encodeAtomNode(buf, t.pid.Node)
		if err != nil {
			return nil, err
		}
		var b [8]byte
		binary.BigEndian.PutUint32(b[0:4], t.pid.Id)
		binary.BigEndian.PutUint32(b[4:8], t.pid.Serial)
		buf = append(buf, b[:]...)
		return append(buf, byte(t.pid.Creation&0x03)), nil

	case KindPort:
		buf = append(buf, ettPort)
		var err error
		buf, err = encodeAtomNode(buf, t.port.Node)
		if err != nil {
			return nil, err
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], t.port.Id)
		buf = append(buf, b[:]...)
		return append(buf, byte(t.port.Creation)), nil

	case KindRef:
		buf = append(buf, ettNewRef)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(t.ref.Id)))
		buf = append(buf, lb[:]...)
		var err error
		buf, err = encodeAtomNode(buf, t.ref.Node)
		if err != nil {
			return nil, err
		}
		buf = append(buf, byte(t.ref.Creation))
		for _, id := range t.ref.Id {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], id)
			buf = append(buf, b[:]...)
		}
		return buf, nil

	case KindVar:
		return nil, errors.New("cannot encode an unbound pattern variable")

	case KindTrace:
		return nil, errors.New("trace terms are not wire-encodable")

	default:
		return nil, errors.Errorf("unencodable kind %v", t.kind)
	}
}

func encodeLong(buf []byte, v int64) []byte {
	if v >= 0 && v <= 255 {
		return append(buf, ettSmallInteger, byte(v))
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		buf = append(buf, ettInteger)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(int32(v)))
		return append(buf, b[:]...)
	}
	return encodeBigLong(buf, v)
}

func encodeBigLong(buf []byte, v int64) []byte {
	neg := v < 0
	digits := magnitudeDigits(v)
	buf = append(buf, ettSmallBig, byte(len(digits)))
	if neg {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return append(buf, digits...)
}

// magnitudeDigits returns |v|'s little-endian byte digits. math.MinInt64
// has no positive int64 counterpart, so it is handled via its known bit
// pattern rather than by negating v.
func magnitudeDigits(v int64) []byte {
	var u uint64
	if v == math.MinInt64 {
		u = uint64(math.MaxInt64) + 1
	} else if v < 0 {
		u = uint64(-v)
	} else {
		u = uint64(v)
	}
	var digits []byte
	for u > 0 {
		digits = append(digits, byte(u&0xff))
		u >>= 8
	}
	return digits
}

// encodeAtom uses the version-5 baseline ATOM_EXT tag (100) rather than
// the later SMALL_ATOM_EXT/UTF8 variants (115/118/119), matching the
// exact byte sequence spec §8 gives for the atom `true`
// (83 64 00 04 74 72 75 65: magic, ATOM_EXT, 2-byte length, "true").
// Decode still accepts all four forms (spec §9: newer flags "MUST also
// be honoured when decoding").
func encodeAtom(buf []byte, a Atom) []byte {
	name := a.NameOf()
	buf = append(buf, ettAtom)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(name)))
	buf = append(buf, b[:]...)
	return append(buf, name...)
}

func encodeAtomNode(buf []byte, a Atom) ([]byte, error) {
	return encodeAtom(buf, a), nil
}

func sizeValue(t Term) (int, error) {
	switch t.kind {
	case KindLong:
		return sizeLong(t.i64), nil
	case KindDouble:
		return 9, nil
	case KindAtom:
		return sizeAtom(t.atom), nil
	case KindBinary:
		return 5 + len(t.bytes), nil
	case KindString:
		if len(t.bytes) == 0 {
			return 1, nil
		}
		if len(t.bytes) <= 65535 {
			return 3 + len(t.bytes), nil
		}
		return 5 + len(t.bytes)*2 + 1, nil
	case KindTuple:
		n := 1
		if len(t.comp.elems) < 256 {
			n++
		} else {
			n += 4
		}
		for _, e := range t.comp.elems {
			sz, err := sizeValue(e)
			if err != nil {
				return 0, err
			}
			n += sz
		}
		return n, nil
	case KindList:
		if len(t.comp.elems) == 0 && t.comp.tail == nil {
			return 1, nil
		}
		n := 5
		for _, e := range t.comp.elems {
			sz, err := sizeValue(e)
			if err != nil {
				return 0, err
			}
			n += sz
		}
		tail := List()
		if t.comp.tail != nil {
			tail = *t.comp.tail
		}
		sz, err := sizeValue(tail)
		if err != nil {
			return 0, err
		}
		return n + sz, nil
	case KindPid:
		return 1 + sizeAtom(t.pid.Node) + 9, nil
	case KindPort:
		return 1 + sizeAtom(t.port.Node) + 5, nil
	case KindRef:
		return 1 + 2 + sizeAtom(t.ref.Node) + 1 + 4*len(t.ref.Id), nil
	case KindVar:
		return 0, errors.New("cannot size an unbound pattern variable")
	case KindTrace:
		return 0, errors.New("trace terms are not wire-encodable")
	default:
		return 0, errors.Errorf("unencodable kind %v", t.kind)
	}
}

func sizeLong(v int64) int {
	if v >= 0 && v <= 255 {
		return 2
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return 5
	}
	return 3 + len(magnitudeDigits(v))
}

func sizeAtom(a Atom) int {
	return 3 + len(a.NameOf())
}
