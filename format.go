package bert

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Format renders t in Erlang term syntax, for diagnostics.
func Format(t Term) string {
	var sb strings.Builder
	formatTerm(&sb, t)
	return sb.String()
}

func formatTerm(sb *strings.Builder, t Term) {
	switch v := t.(type) {
	case BigInt:
		sb.WriteString(v.Int().String())
	case Float:
		formatFloat(sb, float64(v))
	case Atom:
		formatAtom(sb, v)
	case Boolean:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case Null:
		sb.WriteString("nil")
	case Nil:
		sb.WriteString("[]")
	case Binary:
		sb.WriteString("<<")
		if s, ok := v.Text(); ok && printable(s) {
			sb.WriteString(strconv.Quote(s))
		} else {
			formatBytes(sb, v)
		}
		sb.WriteString(">>")
	case StringList:
		if printable(string(v)) && utf8.Valid(v) {
			sb.WriteString(strconv.Quote(string(v)))
			return
		}
		sb.WriteByte('[')
		formatBytes(sb, v)
		sb.WriteByte(']')
	case Bitstring:
		sb.WriteString("<<")
		if n := len(v.Bytes); n > 0 {
			formatBytes(sb, v.Bytes[:n-1])
			if n > 1 {
				sb.WriteString(", ")
			}
			bits := v.Bits
			if bits < 1 || bits > 8 {
				bits = 8
			}
			fmt.Fprintf(sb, "%d::size(%d)", v.Bytes[n-1]>>(8-bits), bits)
		}
		sb.WriteString(">>")
	case Tuple:
		sb.WriteByte('{')
		formatTerms(sb, v.elems)
		sb.WriteByte('}')
	case List:
		sb.WriteByte('[')
		formatTerms(sb, v.Items)
		sb.WriteByte(']')
	case []Term:
		formatTerm(sb, List{Items: v})
	case ImproperList:
		sb.WriteByte('[')
		formatTerms(sb, v.Items)
		sb.WriteString(" | ")
		formatTerm(sb, v.Tail)
		sb.WriteByte(']')
	case Map:
		sb.WriteString("#{")
		for i, p := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatTerm(sb, p.Key)
			sb.WriteString(" => ")
			formatTerm(sb, p.Value)
		}
		sb.WriteByte('}')
	case Pid:
		formatOpaque(sb, "Pid", v.Node, v.ID)
	case Port:
		formatOpaque(sb, "Port", v.Node, v.ID)
	case Reference:
		formatOpaque(sb, "Ref", v.Node, v.ID)
	case NewReference:
		formatOpaque(sb, "Ref", v.Node, v.ID)
	case Fun:
		fmt.Fprintf(sb, "#Fun<%s.%d.%d>", v.Module, v.Index, v.Uniq)
	case NewFun:
		fmt.Fprintf(sb, "#Fun<%d bytes>", len(v.Data))
	case Export:
		sb.WriteString("fun ")
		formatAtom(sb, v.Module)
		sb.WriteByte(':')
		formatAtom(sb, v.Function)
		fmt.Fprintf(sb, "/%d", v.Arity)
	case nil:
		sb.WriteString("nil")
	default:
		if n, ok := integerValue(t); ok {
			sb.WriteString(n.String())
			return
		}
		fmt.Fprintf(sb, "%v", v)
	}
}

func formatTerms(sb *strings.Builder, terms []Term) {
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(", ")
		}
		formatTerm(sb, t)
	}
}

func formatBytes(sb *strings.Builder, b []byte) {
	for i, c := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(c)))
	}
}

func formatFloat(sb *strings.Builder, v float64) {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	sb.WriteString(s)
}

func formatOpaque(sb *strings.Builder, kind string, node Atom, id []byte) {
	sb.WriteString("#")
	sb.WriteString(kind)
	sb.WriteByte('<')
	sb.WriteString(string(node))
	sb.WriteByte('.')
	sb.WriteString(hex.EncodeToString(id))
	sb.WriteByte('>')
}

// formatAtom quotes atoms that would not read back as bare atoms.
func formatAtom(sb *strings.Builder, a Atom) {
	if bareAtom(string(a)) {
		sb.WriteString(string(a))
		return
	}
	sb.WriteByte('\'')
	sb.WriteString(strings.ReplaceAll(string(a), "'", "\\'"))
	sb.WriteByte('\'')
}

func bareAtom(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for _, r := range s {
		if r != '_' && r != '@' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}
