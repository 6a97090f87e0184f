package bert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Declared lengths above this are read incrementally so that a bogus length
// cannot force a large allocation before the data is seen.
const maxPrealloc = 1 << 16

// MaxDepth bounds how deeply containers may nest in one term.
const MaxDepth = 1 << 12

// Decoder reads terms from a byte stream.
type Decoder struct {
	r     io.Reader
	off   int64
	depth int
	buf   [8]byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the version byte and exactly one term.
//
// It returns io.EOF, unwrapped, when the stream ends before the version byte.
// Every other failure is a *DecodeError wrapping one of ErrUnsupportedVersion,
// ErrUnknownTag, ErrTruncated, ErrMalformedFloat, ErrMalformedLength,
// ErrTooDeep or an underlying I/O error.
func (d *Decoder) Decode() (Term, error) {
	start := d.off
	n, err := io.ReadFull(d.r, d.buf[:1])
	d.off += int64(n)
	if n == 0 && err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, d.fail(err)
	}
	if d.buf[0] != VersionTag {
		return nil, &DecodeError{Offset: start, Err: ErrUnsupportedVersion}
	}

	t, err := d.term()
	if err != nil {
		return nil, d.fail(err)
	}
	return t, nil
}

// Decode decodes a single term from data. Bytes after the term are ignored.
func Decode(data []byte) (Term, error) {
	return NewDecoder(bytes.NewReader(data)).Decode()
}

// Unmarshal decodes a single term from r.
func Unmarshal(r io.Reader) (Term, error) {
	return NewDecoder(r).Decode()
}

func (d *Decoder) fail(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Offset: d.off, Err: err}
}

func (d *Decoder) term() (Term, error) {
	if d.depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	d.depth++
	t, err := d.value()
	d.depth--
	return t, err
}

func (d *Decoder) value() (Term, error) {
	tag, err := d.readUint8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case SmallIntTag:
		v, err := d.readUint8()
		return SmallInt(v), err
	case IntTag:
		v, err := d.readUint32()
		return Int(int32(v)), err
	case FloatTag:
		return d.readFloat()
	case NewFloatTag:
		v, err := d.readUint64()
		return Float(math.Float64frombits(v)), err
	case AtomTag, AtomUTF8Tag, SmallAtomTag, SmallAtomUTF8Tag:
		a, err := d.readAtomText(tag)
		if err != nil {
			return nil, err
		}
		return specialAtom(a), nil
	case ReferenceTag:
		node, id, err := d.readOpaque(referenceIDLen)
		return Reference{Node: node, ID: id}, err
	case NewReferenceTag, NewerReferenceTag:
		return d.readNewReference(tag)
	case PortTag, NewPortTag, V4PortTag:
		return d.readPort(tag)
	case PidTag, NewPidTag:
		return d.readPid(tag)
	case SmallTupleTag:
		n, err := d.readUint8()
		if err != nil {
			return nil, err
		}
		items, err := d.readTerms(uint32(n))
		return Tuple{elems: items}, err
	case LargeTupleTag:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		items, err := d.readTerms(n)
		return Tuple{elems: items}, err
	case MapTag:
		return d.readMap()
	case NilTag:
		return Nil{}, nil
	case StringTag:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		b, err := d.readBytes(int64(n))
		return StringList(b), err
	case ListTag:
		return d.readList()
	case BinTag:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		b, err := d.readBytes(int64(n))
		return Binary(b), err
	case SmallBignumTag:
		n, err := d.readUint8()
		if err != nil {
			return nil, err
		}
		return d.readBig(int64(n))
	case LargeBignumTag:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.readBig(int64(n))
	case FunTag:
		return d.readFun()
	case NewFunTag:
		size, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		if size < 4 {
			return nil, ErrMalformedLength
		}
		data, err := d.readBytes(int64(size) - 4)
		return NewFun{Size: size, Data: data}, err
	case ExportTag:
		return d.readExport()
	case BitTag:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		bits, err := d.readUint8()
		if err != nil {
			return nil, err
		}
		if bits < 1 || bits > 8 {
			return nil, ErrMalformedLength
		}
		b, err := d.readBytes(int64(n))
		return Bitstring{Bytes: b, Bits: bits}, err
	}
	return nil, &UnknownTagError{Tag: tag}
}

func specialAtom(a Atom) Term {
	switch a {
	case TrueAtom:
		return Boolean(true)
	case FalseAtom:
		return Boolean(false)
	case NilAtom:
		return Null{}
	}
	return a
}

// readFloat parses the 31 byte "%.20e" text form, NUL padded.
func (d *Decoder) readFloat() (Term, error) {
	b, err := d.readBytes(31)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return nil, ErrMalformedFloat
	}
	return Float(v), nil
}

func (d *Decoder) readAtomText(tag byte) (Atom, error) {
	var n int64
	switch tag {
	case AtomTag, AtomUTF8Tag:
		v, err := d.readUint16()
		if err != nil {
			return "", err
		}
		n = int64(v)
	case SmallAtomTag, SmallAtomUTF8Tag:
		v, err := d.readUint8()
		if err != nil {
			return "", err
		}
		n = int64(v)
	default:
		return "", &UnknownTagError{Tag: tag, Want: "atom"}
	}

	b, err := d.readBytes(n)
	if err != nil {
		return "", err
	}
	if tag == AtomTag || tag == SmallAtomTag {
		return Atom(latin1(b)), nil
	}
	return Atom(b), nil
}

// readAtom reads a tagged atom without special atom mapping, for node and
// module names.
func (d *Decoder) readAtom() (Atom, error) {
	tag, err := d.readUint8()
	if err != nil {
		return "", err
	}
	return d.readAtomText(tag)
}

func latin1(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func (d *Decoder) readInteger() (int32, error) {
	tag, err := d.readUint8()
	if err != nil {
		return 0, err
	}
	switch tag {
	case SmallIntTag:
		v, err := d.readUint8()
		return int32(v), err
	case IntTag:
		v, err := d.readUint32()
		return int32(v), err
	}
	return 0, &UnknownTagError{Tag: tag, Want: "integer"}
}

func (d *Decoder) readOpaque(n int64) (Atom, []byte, error) {
	node, err := d.readAtom()
	if err != nil {
		return "", nil, err
	}
	id, err := d.readBytes(n)
	return node, id, err
}

func (d *Decoder) readPid(tag byte) (Pid, error) {
	n := int64(pidIDLen)
	if tag == NewPidTag {
		n = newPidIDLen
	}
	node, id, err := d.readOpaque(n)
	return Pid{Node: node, ID: id}, err
}

func (d *Decoder) readPort(tag byte) (Term, error) {
	n := int64(portIDLen)
	switch tag {
	case NewPortTag:
		n = newPortIDLen
	case V4PortTag:
		n = v4PortIDLen
	}
	node, id, err := d.readOpaque(n)
	return Port{Node: node, ID: id}, err
}

func (d *Decoder) readNewReference(tag byte) (Term, error) {
	words, err := d.readUint16()
	if err != nil {
		return nil, err
	}
	// 114 carries a 1 byte creation, 90 a 4 byte one.
	extra := int64(1)
	if tag == NewerReferenceTag {
		extra = 4
	}
	node, id, err := d.readOpaque(4*int64(words) + extra)
	return NewReference{Node: node, ID: id}, err
}

func (d *Decoder) readMap() (Term, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	m := make(Map, 0, min(n, maxPrealloc))
	for i := uint32(0); i < n; i++ {
		k, err := d.term()
		if err != nil {
			return nil, err
		}
		v, err := d.term()
		if err != nil {
			return nil, err
		}
		m = append(m, Pair{Key: k, Value: v})
	}
	return m, nil
}

func (d *Decoder) readList() (Term, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	items, err := d.readTerms(n)
	if err != nil {
		return nil, err
	}
	tail, err := d.term()
	if err != nil {
		return nil, err
	}
	if _, ok := tail.(Nil); ok {
		return List{Items: items}, nil
	}
	return ImproperList{Items: items, Tail: tail}, nil
}

// readBig reads the sign byte and n magnitude bytes, least significant first.
func (d *Decoder) readBig(n int64) (Term, error) {
	sign, err := d.readUint8()
	if err != nil {
		return nil, err
	}
	le, err := d.readBytes(n)
	if err != nil {
		return nil, err
	}
	be := make([]byte, len(le))
	for i, c := range le {
		be[len(le)-1-i] = c
	}
	return BigInt{Negative: sign != 0, Magnitude: new(big.Int).SetBytes(be)}, nil
}

func (d *Decoder) readFun() (Term, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	tag, err := d.readUint8()
	if err != nil {
		return nil, err
	}
	if tag != PidTag && tag != NewPidTag {
		return nil, &UnknownTagError{Tag: tag, Want: "pid"}
	}
	pid, err := d.readPid(tag)
	if err != nil {
		return nil, err
	}
	module, err := d.readAtom()
	if err != nil {
		return nil, err
	}
	index, err := d.readInteger()
	if err != nil {
		return nil, err
	}
	uniq, err := d.readInteger()
	if err != nil {
		return nil, err
	}
	free, err := d.readTerms(n)
	if err != nil {
		return nil, err
	}
	return Fun{Pid: pid, Module: module, Index: index, Uniq: uniq, Free: free}, nil
}

func (d *Decoder) readExport() (Term, error) {
	module, err := d.readAtom()
	if err != nil {
		return nil, err
	}
	function, err := d.readAtom()
	if err != nil {
		return nil, err
	}
	arity, err := d.readInteger()
	if err != nil {
		return nil, err
	}
	return Export{Module: module, Function: function, Arity: arity}, nil
}

func (d *Decoder) readTerms(n uint32) ([]Term, error) {
	items := make([]Term, 0, min(n, maxPrealloc))
	for i := uint32(0); i < n; i++ {
		t, err := d.term()
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, nil
}

func (d *Decoder) readFull(b []byte) error {
	n, err := io.ReadFull(d.r, b)
	d.off += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

func (d *Decoder) readBytes(n int64) ([]byte, error) {
	if n <= maxPrealloc {
		b := make([]byte, n)
		return b, d.readFull(b)
	}
	var buf bytes.Buffer
	got, err := io.Copy(&buf, io.LimitReader(d.r, n))
	d.off += got
	if err != nil {
		return nil, err
	}
	if got < n {
		return nil, ErrTruncated
	}
	return buf.Bytes(), nil
}

func (d *Decoder) readUint8() (byte, error) {
	if err := d.readFull(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) readUint16() (uint16, error) {
	if err := d.readFull(d.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(d.buf[:2]), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	if err := d.readFull(d.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(d.buf[:4]), nil
}

func (d *Decoder) readUint64() (uint64, error) {
	if err := d.readFull(d.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(d.buf[:8]), nil
}
