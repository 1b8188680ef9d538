package pdc

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the checker's resolved, alias-expanded representation of a
// type — distinct from TypeExpr, which is raw parser
// syntax. Aliases are expanded once, at resolution time, so every Type
// the checker compares is already in canonical form.
type Type interface {
	typeKind()
	String() string
}

type UnitT struct{}

func (UnitT) typeKind() {}
func (UnitT) String() string { return "" }

type BoolT struct{}

func (BoolT) typeKind() {}
func (BoolT) String() string { return "bool" }

type IntT struct{ Width IntWidth }

func (IntT) typeKind() {}
func (t IntT) String() string { return t.Width.String() }

type StringT struct{}

func (StringT) typeKind() {}
func (StringT) String() string { return "String" }

// ArrayT's Size is -1 when the length is not a literal: a const-parameter
// reference, or a range (ConstRef "range"). substituteType carries Size
// and ConstRef through unchanged, so such a length stays unresolved in a
// monomorphized signature as well.
type ArrayT struct {
	Elem Type
	Size int64
	// ConstRef names the const parameter (or "range") this length
	// refers to while Size holds -1; it is "" for a literal Size.
	ConstRef string
}

func (ArrayT) typeKind() {}
func (t ArrayT) String() string {
	if t.Size < 0 {
		return fmt.Sprintf("[%s; %s]", t.Elem, t.ConstRef)
	}
	return fmt.Sprintf("[%s; %d]", t.Elem, t.Size)
}

type ReferenceT struct {
	Mutable bool
	Inner Type
}

func (ReferenceT) typeKind() {}
func (t ReferenceT) String() string {
	if t.Mutable {
		return "&mut " + t.Inner.String()
	}
	return "&" + t.Inner.String()
}

// NamedT covers both struct and enum instantiations: Kind disambiguates
// for diagnostics and codegen, Args holds concrete type arguments (empty
// for non-generic types).
type NamedKind int

const (
	NamedStruct NamedKind = iota
	NamedEnum
)

type NamedT struct {
	Kind NamedKind
	Name string
	Args []Type
}

func (NamedT) typeKind() {}
func (t NamedT) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ", "))
}

// TypeParamT stands in for an as-yet-uninstantiated generic parameter
// while checking a generic function or struct's own body.
type TypeParamT struct{ Name string }

func (TypeParamT) typeKind() {}
func (t TypeParamT) String() string { return t.Name }

type FutureT struct{ Output Type }

func (FutureT) typeKind() {}
func (t FutureT) String() string { return fmt.Sprintf("Future<%s>", t.Output) }

// TypesEqual is structural equality over resolved types. Alias
// expansion has already happened by the time either side reaches here,
// so this never needs to chase alias names.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
		case UnitT:
		_, ok := b.(UnitT)
		return ok
		case BoolT:
		_, ok := b.(BoolT)
		return ok
		case IntT:
		y, ok := b.(IntT)
		return ok && x.Width == y.Width
		case StringT:
		_, ok := b.(StringT)
		return ok
		case ArrayT:
		y, ok := b.(ArrayT)
		if !ok || !TypesEqual(x.Elem, y.Elem) {
			return false
		}
		if x.Size < 0 || y.Size < 0 {
			return x.ConstRef == y.ConstRef
		}
		return x.Size == y.Size
		case ReferenceT:
		y, ok := b.(ReferenceT)
		return ok && x.Mutable == y.Mutable && TypesEqual(x.Inner, y.Inner)
		case NamedT:
		y, ok := b.(NamedT)
		if !ok || x.Kind != y.Kind || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !TypesEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
		case TypeParamT:
		y, ok := b.(TypeParamT)
		return ok && x.Name == y.Name
		case FutureT:
		y, ok := b.(FutureT)
		return ok && TypesEqual(x.Output, y.Output)
		default:
		return false
	}
}

// IsCopyable reports whether a type is implicitly duplicated on use
// rather than moved: primitives and references are copy,
// String and user-defined struct/enum types are move-only by default.
func IsCopyable(t Type) bool {
	switch t.(type) {
		case UnitT, BoolT, IntT, ReferenceT:
		return true
		default:
		return false
	}
}

// mangleTypeArgs renders a canonical, deterministic name for a tuple of
// concrete type/const arguments, used both as the monomorphization
// registry key and as the emitted C function/struct name suffix.
func mangleTypeArgs(args []Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = mangleOne(a)
	}
	return strings.Join(parts, "_")
}

func mangleOne(t Type) string {
	switch x := t.(type) {
		case IntT:
		return x.Width.String()
		case BoolT:
		return "bool"
		case StringT:
		return "String"
		case UnitT:
		return "unit"
		case ArrayT:
		return fmt.Sprintf("arr%d_%s", x.Size, mangleOne(x.Elem))
		case ReferenceT:
		return "ref_" + mangleOne(x.Inner)
		case NamedT:
		if len(x.Args) == 0 {
			return x.Name
		}
		return x.Name + "_" + mangleTypeArgs(x.Args)
		default:
		return "T"
	}
}

// sortedKeys is a small shared helper for deterministic iteration over
// maps when producing diagnostics or emitted output: output needs to be
// reproducible, and map iteration order is not.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
