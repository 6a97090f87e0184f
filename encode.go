package bert

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"sync"
	"unicode/utf8"
)

// WriterFunc appends the tagged encoding of v (no version byte) to buf. It
// may call e.AppendTerm for nested terms.
type WriterFunc func(e *Encoder, buf []byte, v Term) ([]byte, error)

type EncoderOption func(*Encoder)

// WithWriter registers fn for values whose dynamic type is typ. Built in
// term types always use their own writer.
func WithWriter(typ reflect.Type, fn WriterFunc) EncoderOption {
	return func(e *Encoder) {
		if e.writers == nil {
			e.writers = make(map[reflect.Type]WriterFunc)
		}
		e.writers[typ] = fn
	}
}

// Encoder writes terms in canonical form: integers as INTEGER_EXT or
// LARGE_BIG_EXT, floats as NEW_FLOAT_EXT, tuples as LARGE_TUPLE_EXT and
// packed strings as proper lists.
type Encoder struct {
	w       io.Writer
	writers map[reflect.Type]WriterFunc
}

// NewEncoder returns an encoder writing to w. w may be nil when only the
// Append methods are used.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: w}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 512)
		return &b
	},
}

// Encode writes the version byte and t with a single Write call.
func (e *Encoder) Encode(t Term) error {
	return e.write(t, false)
}

// EncodeResponse writes t prefixed by its 4 byte big-endian length, with a
// single Write call.
func (e *Encoder) EncodeResponse(t Term) error {
	return e.write(t, true)
}

func (e *Encoder) write(t Term, framed bool) error {
	bp := bufPool.Get().(*[]byte)
	defer func() {
		*bp = (*bp)[:0]
		bufPool.Put(bp)
	}()

	var (
		buf []byte
		err error
	)
	if framed {
		buf, err = e.AppendFrame((*bp)[:0], t)
	} else {
		buf, err = e.Append((*bp)[:0], t)
	}
	if err != nil {
		return err
	}
	*bp = buf
	_, err = e.w.Write(buf)
	return err
}

// Append appends the version byte and the encoding of t to buf.
func (e *Encoder) Append(buf []byte, t Term) ([]byte, error) {
	return e.AppendTerm(append(buf, VersionTag), t)
}

// AppendFrame appends a 4 byte length header followed by the version byte
// and the encoding of t.
func (e *Encoder) AppendFrame(buf []byte, t Term) ([]byte, error) {
	start := len(buf)
	buf, err := e.Append(append(buf, 0, 0, 0, 0), t)
	if err != nil {
		return nil, err
	}
	n := len(buf) - start - 4
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrUnencodableTerm, n)
	}
	binary.BigEndian.PutUint32(buf[start:], uint32(n))
	return buf, nil
}

// AppendTerm appends the tagged encoding of t, without version byte.
func (e *Encoder) AppendTerm(buf []byte, t Term) ([]byte, error) {
	switch v := t.(type) {
	case nil:
		return appendAtom(buf, NilAtom)
	case SmallInt:
		return appendInt(buf, int32(v)), nil
	case Int:
		return appendInt(buf, int32(v)), nil
	case int:
		return appendInt64(buf, int64(v)), nil
	case int8:
		return appendInt(buf, int32(v)), nil
	case int16:
		return appendInt(buf, int32(v)), nil
	case int32:
		return appendInt(buf, v), nil
	case int64:
		return appendInt64(buf, v), nil
	case uint8:
		return appendInt(buf, int32(v)), nil
	case uint16:
		return appendInt(buf, int32(v)), nil
	case uint32:
		return appendUint64(buf, uint64(v)), nil
	case uint:
		return appendUint64(buf, uint64(v)), nil
	case uint64:
		return appendUint64(buf, v), nil
	case BigInt:
		if v.Magnitude == nil {
			return nil, fmt.Errorf("%w: big integer without magnitude", ErrUnencodableTerm)
		}
		return appendBig(buf, v.Negative, v.Magnitude), nil
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *big.Int", ErrUnencodableTerm)
		}
		return appendBig(buf, v.Sign() < 0, new(big.Int).Abs(v)), nil
	case Float:
		return appendFloat(buf, float64(v)), nil
	case float64:
		return appendFloat(buf, v), nil
	case float32:
		return appendFloat(buf, float64(v)), nil
	case Atom:
		return appendAtom(buf, v)
	case Boolean:
		return appendBool(buf, bool(v))
	case bool:
		return appendBool(buf, v)
	case Null:
		return appendAtom(buf, NilAtom)
	case Nil:
		return append(buf, NilTag), nil
	case Pid:
		return appendPid(buf, v)
	case Port:
		return appendPort(buf, v)
	case Reference:
		if len(v.ID) != referenceIDLen {
			return nil, fmt.Errorf("%w: reference id of %d bytes", ErrUnencodableTerm, len(v.ID))
		}
		return appendOpaque(append(buf, ReferenceTag), v.Node, v.ID)
	case NewReference:
		return appendNewReference(buf, v)
	case Tuple:
		if err := checkLen(len(v.elems)); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, LargeTupleTag), len(v.elems))
		return e.appendTerms(buf, v.elems)
	case Map:
		if err := checkLen(len(v)); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, MapTag), len(v))
		var err error
		for _, p := range v {
			if buf, err = e.AppendTerm(buf, p.Key); err != nil {
				return nil, err
			}
			if buf, err = e.AppendTerm(buf, p.Value); err != nil {
				return nil, err
			}
		}
		return buf, nil
	case List:
		return e.appendList(buf, v.Items, Nil{})
	case []Term:
		return e.appendList(buf, v, Nil{})
	case ImproperList:
		return e.appendList(buf, v.Items, v.Tail)
	case StringList:
		if err := checkLen(len(v)); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, ListTag), len(v))
		for _, c := range v {
			buf = appendInt(buf, int32(c))
		}
		return append(buf, NilTag), nil
	case Binary:
		return appendBinary(buf, v)
	case []byte:
		return appendBinary(buf, v)
	case string:
		return appendBinary(buf, []byte(v))
	case Bitstring:
		if v.Bits < 1 || v.Bits > 8 {
			return nil, fmt.Errorf("%w: bitstring with %d trailing bits", ErrUnencodableTerm, v.Bits)
		}
		if err := checkLen(len(v.Bytes)); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, BitTag), len(v.Bytes))
		buf = append(buf, v.Bits)
		return append(buf, v.Bytes...), nil
	case Fun:
		if err := checkLen(len(v.Free)); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, FunTag), len(v.Free))
		var err error
		if buf, err = appendPid(buf, v.Pid); err != nil {
			return nil, err
		}
		if buf, err = appendAtom(buf, v.Module); err != nil {
			return nil, err
		}
		buf = appendInt(buf, v.Index)
		buf = appendInt(buf, v.Uniq)
		return e.appendTerms(buf, v.Free)
	case NewFun:
		if err := checkLen(len(v.Data) + 4); err != nil {
			return nil, err
		}
		buf = appendLen(append(buf, NewFunTag), len(v.Data)+4)
		return append(buf, v.Data...), nil
	case Export:
		var err error
		if buf, err = appendAtom(append(buf, ExportTag), v.Module); err != nil {
			return nil, err
		}
		if buf, err = appendAtom(buf, v.Function); err != nil {
			return nil, err
		}
		return appendInt(buf, v.Arity), nil
	}

	if fn, ok := e.writers[reflect.TypeOf(t)]; ok {
		return fn(e, buf, t)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnencodableTerm, t)
}

func (e *Encoder) appendTerms(buf []byte, terms []Term) ([]byte, error) {
	var err error
	for _, t := range terms {
		if buf, err = e.AppendTerm(buf, t); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (e *Encoder) appendList(buf []byte, items []Term, tail Term) ([]byte, error) {
	if err := checkLen(len(items)); err != nil {
		return nil, err
	}
	buf, err := e.appendTerms(appendLen(append(buf, ListTag), len(items)), items)
	if err != nil {
		return nil, err
	}
	return e.AppendTerm(buf, tail)
}

func checkLen(n int) error {
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: length %d exceeds 32 bits", ErrUnencodableTerm, n)
	}
	return nil
}

func appendLen(buf []byte, n int) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(n))
}

func appendInt(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(append(buf, IntTag), uint32(v))
}

func appendInt64(buf []byte, v int64) []byte {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return appendInt(buf, int32(v))
	}
	return appendBig(buf, v < 0, new(big.Int).Abs(big.NewInt(v)))
}

func appendUint64(buf []byte, v uint64) []byte {
	if v <= math.MaxInt32 {
		return appendInt(buf, int32(v))
	}
	return appendBig(buf, false, new(big.Int).SetUint64(v))
}

// appendBig writes LARGE_BIG_EXT: the minimal number of magnitude bytes,
// the sign byte, then the magnitude least significant byte first.
func appendBig(buf []byte, negative bool, mag *big.Int) []byte {
	be := mag.Bytes()
	buf = appendLen(append(buf, LargeBignumTag), len(be))
	if negative {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	for i := len(be) - 1; i >= 0; i-- {
		buf = append(buf, be[i])
	}
	return buf
}

func appendFloat(buf []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(append(buf, NewFloatTag), math.Float64bits(v))
}

func appendBool(buf []byte, v bool) ([]byte, error) {
	if v {
		return appendAtom(buf, TrueAtom)
	}
	return appendAtom(buf, FalseAtom)
}

// appendAtom writes ASCII atoms as ATOM_EXT and anything else as ATOM_UTF8_EXT.
func appendAtom(buf []byte, a Atom) ([]byte, error) {
	if len(a) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: atom of %d bytes", ErrUnencodableTerm, len(a))
	}
	tag := byte(AtomTag)
	for i := 0; i < len(a); i++ {
		if a[i] >= utf8.RuneSelf {
			tag = AtomUTF8Tag
			break
		}
	}
	buf = binary.BigEndian.AppendUint16(append(buf, tag), uint16(len(a)))
	return append(buf, a...), nil
}

func appendBinary(buf []byte, b []byte) ([]byte, error) {
	if err := checkLen(len(b)); err != nil {
		return nil, err
	}
	buf = appendLen(append(buf, BinTag), len(b))
	return append(buf, b...), nil
}

func appendOpaque(buf []byte, node Atom, id []byte) ([]byte, error) {
	buf, err := appendAtom(buf, node)
	if err != nil {
		return nil, err
	}
	return append(buf, id...), nil
}

func appendPid(buf []byte, p Pid) ([]byte, error) {
	switch len(p.ID) {
	case pidIDLen:
		return appendOpaque(append(buf, PidTag), p.Node, p.ID)
	case newPidIDLen:
		return appendOpaque(append(buf, NewPidTag), p.Node, p.ID)
	}
	return nil, fmt.Errorf("%w: pid id of %d bytes", ErrUnencodableTerm, len(p.ID))
}

func appendPort(buf []byte, p Port) ([]byte, error) {
	switch len(p.ID) {
	case portIDLen:
		return appendOpaque(append(buf, PortTag), p.Node, p.ID)
	case newPortIDLen:
		return appendOpaque(append(buf, NewPortTag), p.Node, p.ID)
	case v4PortIDLen:
		return appendOpaque(append(buf, V4PortTag), p.Node, p.ID)
	}
	return nil, fmt.Errorf("%w: port id of %d bytes", ErrUnencodableTerm, len(p.ID))
}

// appendNewReference picks NEW_REFERENCE_EXT for 4N+1 id bytes and
// NEWER_REFERENCE_EXT for 4N+4.
func appendNewReference(buf []byte, r NewReference) ([]byte, error) {
	n := len(r.ID)
	var (
		tag   byte
		words int
	)
	switch {
	case n%4 == 1:
		tag, words = NewReferenceTag, (n-1)/4
	case n%4 == 0 && n >= 4:
		tag, words = NewerReferenceTag, (n-4)/4
	default:
		return nil, fmt.Errorf("%w: reference id of %d bytes", ErrUnencodableTerm, n)
	}
	if words > math.MaxUint16 {
		return nil, fmt.Errorf("%w: reference id of %d bytes", ErrUnencodableTerm, n)
	}
	buf = binary.BigEndian.AppendUint16(append(buf, tag), uint16(words))
	return appendOpaque(buf, r.Node, r.ID)
}

// Encode returns the version byte followed by the encoding of t.
func Encode(t Term) ([]byte, error) {
	return NewEncoder(nil).Append(nil, t)
}

// Marshal writes the encoding of t to w.
func Marshal(w io.Writer, t Term) error {
	return NewEncoder(w).Encode(t)
}

// MarshalResponse writes t as a length-prefixed packet, the form expected by
// an Erlang port opened with {packet, 4}.
func MarshalResponse(w io.Writer, t Term) error {
	return NewEncoder(w).EncodeResponse(t)
}
