package bert

import (
	"bytes"
	"math/big"
	"reflect"
	"unicode/utf8"
)

// Tuple is an immutable fixed-arity sequence. The zero value is the empty
// tuple.
type Tuple struct {
	elems []Term
}

// NewTuple copies elems into a new tuple.
func NewTuple(elems ...Term) Tuple {
	t := Tuple{elems: make([]Term, len(elems))}
	copy(t.elems, elems)
	return t
}

func (t Tuple) Arity() int {
	return len(t.elems)
}

// Elem returns the element at index i (zero based).
func (t Tuple) Elem(i int) (Term, error) {
	if i < 0 || i >= len(t.elems) {
		return nil, ErrBadIndex
	}
	return t.elems[i], nil
}

// Elems returns a copy of the elements.
func (t Tuple) Elems() []Term {
	out := make([]Term, len(t.elems))
	copy(out, t.elems)
	return out
}

// WithElem returns a new tuple with element i replaced by v. The receiver is
// left untouched.
func (t Tuple) WithElem(i int, v Term) (Tuple, error) {
	if i < 0 || i >= len(t.elems) {
		return Tuple{}, ErrBadIndex
	}
	out := Tuple{elems: make([]Term, len(t.elems))}
	copy(out.elems, t.elems)
	out.elems[i] = v
	return out, nil
}

// Get returns the value of the first pair whose key equals key.
func (m Map) Get(key Term) (Term, bool) {
	for _, p := range m {
		if Equal(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

// Text returns the binary as a string and whether it is valid UTF-8.
func (b Binary) Text() (string, bool) {
	return string(b), utf8.Valid(b)
}

// Ints expands the packed list into the list of Int the encoder writes for it.
func (s StringList) Ints() List {
	items := make([]Term, len(s))
	for i, c := range s {
		items[i] = Int(c)
	}
	return List{Items: items}
}

// Equal reports whether a and b are structurally equal. Integers compare by
// value regardless of their wire form.
func Equal(a, b Term) bool {
	if x, ok := integerValue(a); ok {
		y, ok := integerValue(b)
		return ok && x.Cmp(y) == 0
	}

	switch x := a.(type) {
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case Atom:
		y, ok := b.(Atom)
		return ok && x == y
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case Null:
		_, ok := b.(Null)
		return ok
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Binary:
		y, ok := b.(Binary)
		return ok && bytes.Equal(x, y)
	case StringList:
		y, ok := b.(StringList)
		return ok && bytes.Equal(x, y)
	case Bitstring:
		y, ok := b.(Bitstring)
		return ok && x.Bits == y.Bits && bytes.Equal(x.Bytes, y.Bytes)
	case Pid:
		y, ok := b.(Pid)
		return ok && x.Node == y.Node && bytes.Equal(x.ID, y.ID)
	case Port:
		y, ok := b.(Port)
		return ok && x.Node == y.Node && bytes.Equal(x.ID, y.ID)
	case Reference:
		y, ok := b.(Reference)
		return ok && x.Node == y.Node && bytes.Equal(x.ID, y.ID)
	case NewReference:
		y, ok := b.(NewReference)
		return ok && x.Node == y.Node && bytes.Equal(x.ID, y.ID)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalTerms(x.elems, y.elems)
	case List:
		y, ok := b.(List)
		return ok && equalTerms(x.Items, y.Items)
	case ImproperList:
		y, ok := b.(ImproperList)
		return ok && equalTerms(x.Items, y.Items) && Equal(x.Tail, y.Tail)
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case Fun:
		y, ok := b.(Fun)
		return ok && Equal(x.Pid, y.Pid) && x.Module == y.Module &&
			x.Index == y.Index && x.Uniq == y.Uniq && equalTerms(x.Free, y.Free)
	case NewFun:
		y, ok := b.(NewFun)
		return ok && x.Size == y.Size && bytes.Equal(x.Data, y.Data)
	case Export:
		y, ok := b.(Export)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func equalTerms(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func integerValue(t Term) (*big.Int, bool) {
	switch v := t.(type) {
	case SmallInt:
		return big.NewInt(int64(v)), true
	case Int:
		return big.NewInt(int64(v)), true
	case BigInt:
		return v.Int(), true
	case int:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint8:
		return big.NewInt(int64(v)), true
	case uint32:
		return big.NewInt(int64(v)), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}
