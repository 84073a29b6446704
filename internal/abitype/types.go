package abitype

import (
	"strconv"
	"strings"
)

// Kind identifies the shape of a parsed ABI type.
type Kind int

const (
	KindElementary Kind = iota
	KindArray
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindElementary:
		return "elementary"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// DynamicSize marks a variable-length array (T[]).
const DynamicSize = -1

// Type is a parsed parameter type with aliases already resolved.
type Type struct {
	Kind       Kind
	Name       string // canonical elementary name, KindElementary only
	Elem       *Type  // KindArray only
	Size       int    // KindArray only, DynamicSize for T[]
	Components []Type // KindTuple only
}

// String renders the canonical spelling of the type.
func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case KindElementary:
		b.WriteString(t.Name)
	case KindArray:
		t.Elem.write(b)
		b.WriteByte('[')
		if t.Size != DynamicSize {
			b.WriteString(strconv.Itoa(t.Size))
		}
		b.WriteByte(']')
	case KindTuple:
		writeTypeList(b, t.Components)
	}
}

// Signature is a parsed function signature.
type Signature struct {
	Name   string
	Inputs []Type
}

// String renders name(type,type,...) with no whitespace.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	writeTypeList(&b, s.Inputs)
	return b.String()
}

func writeTypeList(b *strings.Builder, types []Type) {
	b.WriteByte('(')
	for i, t := range types {
		if i > 0 {
			b.WriteByte(',')
		}
		t.write(b)
	}
	b.WriteByte(')')
}
