package bert

import "math/big"

const (
	VersionTag        = 131
	NewFloatTag       = 70
	BitTag            = 77
	NewPidTag         = 88
	NewPortTag        = 89
	NewerReferenceTag = 90
	SmallIntTag       = 97
	IntTag            = 98
	FloatTag          = 99
	AtomTag           = 100
	ReferenceTag      = 101
	PortTag           = 102
	PidTag            = 103
	SmallTupleTag     = 104
	LargeTupleTag     = 105
	NilTag            = 106
	StringTag         = 107
	ListTag           = 108
	BinTag            = 109
	SmallBignumTag    = 110
	LargeBignumTag    = 111
	NewFunTag         = 112
	ExportTag         = 113
	NewReferenceTag   = 114
	SmallAtomTag      = 115
	MapTag            = 116
	FunTag            = 117
	AtomUTF8Tag       = 118
	SmallAtomUTF8Tag  = 119
	V4PortTag         = 120
)

// Opaque identity widths, in bytes, following the node atom.
const (
	pidIDLen       = 9
	newPidIDLen    = 12
	portIDLen      = 5
	newPortIDLen   = 8
	v4PortIDLen    = 12
	referenceIDLen = 5
)

// Term is any value the codec can carry. Decoding only ever produces the
// types declared in this file; encoding additionally accepts a few Go native
// values (see Encoder) and registered extension types.
type Term interface{}

type (
	SmallInt uint8
	Int      int32
	Float    float64
	Atom     string
	Boolean  bool
	Binary   []byte

	// StringList is the packed form of a list of bytes. It is only produced
	// by decoding; the encoder writes it back as an ordinary list of Int.
	StringList []byte
)

// Null is the decoded form of the atom nil.
type Null struct{}

// Nil is the empty list, when it appears on its own.
type Nil struct{}

const (
	NilAtom   = Atom("nil")
	TrueAtom  = Atom("true")
	FalseAtom = Atom("false")
)

// BigInt is an integer of unbounded size. Magnitude is never negative; the
// sign lives in Negative so that a negative zero survives a round trip.
type BigInt struct {
	Negative  bool
	Magnitude *big.Int
}

// NewBigInt splits v into sign and magnitude.
func NewBigInt(v *big.Int) BigInt {
	return BigInt{Negative: v.Sign() < 0, Magnitude: new(big.Int).Abs(v)}
}

// Int returns the signed value.
func (b BigInt) Int() *big.Int {
	v := new(big.Int)
	if b.Magnitude != nil {
		v.Set(b.Magnitude)
	}
	if b.Negative {
		v.Neg(v)
	}
	return v
}

type Bitstring struct {
	Bytes []byte
	// Bits is the number of significant bits in the last byte, 1 to 8.
	Bits uint8
}

type List struct {
	Items []Term
}

type ImproperList struct {
	Items []Term
	Tail  Term
}

type Pair struct {
	Key   Term
	Value Term
}

// Map keeps pairs in wire order. Duplicate keys are preserved.
type Map []Pair

// Pid, Port, Reference and NewReference carry node-local identity bytes
// verbatim. The width of ID selects the wire form on encode.
type Pid struct {
	Node Atom
	ID   []byte
}

type Port struct {
	Node Atom
	ID   []byte
}

type Reference struct {
	Node Atom
	ID   []byte
}

type NewReference struct {
	Node Atom
	ID   []byte
}

type Fun struct {
	Pid    Pid
	Module Atom
	Index  int32
	Uniq   int32
	Free   []Term
}

// NewFun is kept as the raw blob following the size field. Size counts the
// size field itself, so Size == len(Data)+4 for decoded values.
type NewFun struct {
	Size uint32
	Data []byte
}

type Export struct {
	Module   Atom
	Function Atom
	Arity    int32
}
