package pdc

import (
	"fmt"
	"strings"
)

// TypeExpr is the tagged-variant marker for type syntax. It is
// distinct from Type (typecheck.go), which is the checker's resolved,
// alias-expanded representation; TypeExpr is what the parser produces.
type TypeExpr interface {
	Node
	typeNode()
}

type UnitType struct{ sp Span }

func (t *UnitType) Span() Span { return t.sp }
func (t *UnitType) typeNode() {}

type BoolType struct{ sp Span }

func (t *BoolType) Span() Span { return t.sp }
func (t *BoolType) typeNode() {}

// IntWidth is the closed set of fixed-width integer tags.
type IntWidth int

const (
	I32 IntWidth = iota
	I64
	U32
	U64
)

func (w IntWidth) String() string {
	return [...]string{"i32", "i64", "u32", "u64"}[w]
}

type IntType struct {
	Width IntWidth
	sp Span
}

func (t *IntType) Span() Span { return t.sp }
func (t *IntType) typeNode() {}

type StringType struct{ sp Span }

func (t *StringType) Span() Span { return t.sp }
func (t *StringType) typeNode() {}

// ArraySize is either a literal non-negative integer or the name of an
// in-scope const parameter.
type ArraySize struct {
	Literal int64
	ConstRef string // "" if Literal is the active representation
}

func (a ArraySize) IsConst() bool { return a.ConstRef != "" }

func (a ArraySize) String() string {
	if a.IsConst() {
		return a.ConstRef
	}
	return fmt.Sprintf("%d", a.Literal)
}

type ArrayType struct {
	Elem TypeExpr
	Size ArraySize
	sp Span
}

func (t *ArrayType) Span() Span { return t.sp }
func (t *ArrayType) typeNode() {}

type ReferenceType struct {
	Lifetime string // "" if elided
	Mutable bool
	Inner TypeExpr
	sp Span
}

func (t *ReferenceType) Span() Span { return t.sp }
func (t *ReferenceType) typeNode() {}

// CustomType names a user type (struct/enum/alias) in scope.
type CustomType struct {
	NameV string
	sp Span
}

func (t *CustomType) Span() Span { return t.sp }
func (t *CustomType) typeNode() {}

// TypeParamRef names a type parameter currently in scope.
type TypeParamRef struct {
	NameV string
	sp Span
}

func (t *TypeParamRef) Span() Span { return t.sp }
func (t *TypeParamRef) typeNode() {}

// GenericArg is either a Type or a const value.
type GenericArg struct {
	Type TypeExpr // nil if Const is active
	Const int64
	IsConstArg bool
}

// GenericType is `Name<arg, arg,...>`.
type GenericType struct {
	NameV string
	Args []GenericArg
	sp Span
}

func (t *GenericType) Span() Span { return t.sp }
func (t *GenericType) typeNode() {}

// FutureType is the type of an async result.
type FutureType struct {
	Output TypeExpr
	sp Span
}

func (t *FutureType) Span() Span { return t.sp }
func (t *FutureType) typeNode() {}

// TypeString renders a TypeExpr back to pd surface syntax, used for
// diagnostics and for C-backend name mangling — a canonical rendering
// of each concrete type argument.
func TypeString(t TypeExpr) string {
	switch n := t.(type) {
		case nil:
		return ""
		case *UnitType:
		return ""
		case *BoolType:
		return "bool"
		case *IntType:
		return n.Width.String()
		case *StringType:
		return "String"
		case *ArrayType:
		return fmt.Sprintf("[%s; %s]", TypeString(n.Elem), n.Size.String())
		case *ReferenceType:
		m := ""
		if n.Mutable {
			m = "mut "
		}
		return fmt.Sprintf("&%s%s", m, TypeString(n.Inner))
		case *CustomType:
		return n.NameV
		case *TypeParamRef:
		return n.NameV
		case *GenericType:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			if a.IsConstArg {
				parts[i] = fmt.Sprintf("%d", a.Const)
			} else {
				parts[i] = TypeString(a.Type)
			}
		}
		return fmt.Sprintf("%s<%s>", n.NameV, strings.Join(parts, ", "))
		case *FutureType:
		return fmt.Sprintf("Future<%s>", TypeString(n.Output))
		default:
		return "?"
	}
}
