package pdc

// Visibility is the closed set of item visibilities.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// Node is the common interface every AST node satisfies. Grounded on
// AstNode in grammar_ast.go, which additionally carries String/Accept/
// Equal for a PEG tree that gets pretty-printed and walked by visitors
// post-parse; this tree has no such consumer; every diagnostic that
// cites code does so through a node's Span, so that is the entire
// contract.
type Node interface {
	Span() Span
}

// Program is the root of every parse: imports first, then items, in
// source order.
type Program struct {
	Imports []*Import
	Items []Item
	sp Span
}

func (p *Program) Span() Span { return p.sp }

// Import is one `import a::b::c { x, y } as z` or `import a::b::*`.
type Import struct {
	Path []string // dotted/colon-separated segments, e.g. ["a","b","c"]
	Items []string // explicit item list; nil if Wildcard or plain module import
	Wildcard bool
	Alias string // "" if no `as` clause
	sp Span
}

func (i *Import) Span() Span { return i.sp }

func (i *Import) CanonicalName() string {
	out := ""
	for idx, seg := range i.Path {
		if idx > 0 {
			out += "::"
		}
		out += seg
	}
	return out
}

// Item is the tagged-variant marker for top-level declarations.
type Item interface {
	Node
	itemNode()
	Name() string
	Vis() Visibility
}

// Param is a formal parameter: name + type + mutability flag.
type Param struct {
	Name string
	Type TypeExpr
	Mutable bool
}

// ConstParam is a const generic parameter: name + its type (always an
// integer type in practice, used to size fixed-length arrays).
type ConstParam struct {
	Name string
	Type TypeExpr
}

// Function is a Function item.
type Function struct {
	NameV string
	VisV Visibility
	Lifetimes []string
	TypeParams []string
	ConstParams []ConstParam
	Params []Param
	Return TypeExpr // nil means Unit
	Body []Stmt
	IsAsync bool
	IsUnsafe bool

	// Effects is lazily filled by the effect analyzer.
	Effects EffectSet

	sp Span
}

func (f *Function) Span() Span { return f.sp }
func (f *Function) itemNode() {}
func (f *Function) Name() string { return f.NameV }
func (f *Function) Vis() Visibility { return f.VisV }
func (f *Function) IsGeneric() bool { return len(f.TypeParams) > 0 }

// VariantShape is the closed set of enum variant shapes.
type VariantShape int

const (
	VariantUnit VariantShape = iota
	VariantTuple
	VariantNamed
)

// Variant is one enum variant.
type Variant struct {
	Name string
	Shape VariantShape
	Tuple []TypeExpr // populated when Shape == VariantTuple
	Fields []Field // populated when Shape == VariantNamed
	sp Span
}

func (v *Variant) Span() Span { return v.sp }

// Field is a named struct field or named-enum-variant field.
type Field struct {
	Name string
	Type TypeExpr
	sp Span
}

func (f *Field) Span() Span { return f.sp }

// Struct is a Struct item.
type Struct struct {
	NameV string
	VisV Visibility
	Lifetimes []string
	TypeParams []string
	ConstParams []ConstParam
	Fields []Field
	sp Span
}

func (s *Struct) Span() Span { return s.sp }
func (s *Struct) itemNode() {}
func (s *Struct) Name() string { return s.NameV }
func (s *Struct) Vis() Visibility { return s.VisV }
func (s *Struct) IsGeneric() bool { return len(s.TypeParams) > 0 }

// Enum is an Enum item.
type Enum struct {
	NameV string
	VisV Visibility
	Lifetimes []string
	TypeParams []string
	ConstParams []ConstParam
	Variants []Variant
	sp Span
}

func (e *Enum) Span() Span { return e.sp }
func (e *Enum) itemNode() {}
func (e *Enum) Name() string { return e.NameV }
func (e *Enum) Vis() Visibility { return e.VisV }
func (e *Enum) IsGeneric() bool { return len(e.TypeParams) > 0 }

// VariantNames returns the declared variant names in declaration order.
func (e *Enum) VariantNames() []string {
	names := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		names[i] = v.Name
	}
	return names
}

func (e *Enum) VariantByName(name string) (*Variant, bool) {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i], true
		}
	}
	return nil, false
}

// TraitMethod is a method signature declared inside a Trait, with an
// optional default body.
type TraitMethod struct {
	NameV string
	Params []Param
	Return TypeExpr
	Default []Stmt // nil if no default body
	IsAsync bool
	sp Span
}

func (m *TraitMethod) Span() Span { return m.sp }

// Trait is a Trait item.
type Trait struct {
	NameV string
	VisV Visibility
	TypeParams []string
	Methods []TraitMethod
	sp Span
}

func (t *Trait) Span() Span { return t.sp }
func (t *Trait) itemNode() {}
func (t *Trait) Name() string { return t.NameV }
func (t *Trait) Vis() Visibility { return t.VisV }

// Impl is an Impl item: `impl [Trait for] Type { methods }`.
type Impl struct {
	VisV Visibility
	Trait string // "" if an inherent impl
	TargetType TypeExpr
	Methods []*Function
	sp Span
}

func (i *Impl) Span() Span { return i.sp }
func (i *Impl) itemNode() {}

// Name identifies an Impl by its target type's display name, so it can
// sit in the same Item list as everything else; impls aren't looked up
// by name the way functions/structs are (they're collected separately
// into the checker's `impls` table).
func (i *Impl) Name() string { return "impl " + TypeString(i.TargetType) }
func (i *Impl) Vis() Visibility { return i.VisV }

// TypeAlias is a TypeAlias item.
type TypeAlias struct {
	NameV string
	VisV Visibility
	TypeParams []string
	RHS TypeExpr
	sp Span
}

func (t *TypeAlias) Span() Span { return t.sp }
func (t *TypeAlias) itemNode() {}
func (t *TypeAlias) Name() string { return t.NameV }
func (t *TypeAlias) Vis() Visibility { return t.VisV }
func (t *TypeAlias) IsGeneric() bool { return len(t.TypeParams) > 0 }

// CaptureKind is the closed set of macro capture kinds.
type CaptureKind int

const (
	CaptureIdentifier CaptureKind = iota
	CaptureLiteral
	CaptureExpression
	CaptureStatement
	CaptureType
	CapturePattern
	CaptureTokenTree
)

// Quantifier is the closed set of macro repetition quantifiers.
type Quantifier int

const (
	QuantOne Quantifier = iota
	QuantZeroOrMore
	QuantOneOrMore
	QuantZeroOrOne
)

// PatternElem is one element of a macro's parameter pattern.
type PatternElem struct {
	// Exactly one of Literal/Capture/Repetition is populated.
	Literal string
	Capture *CaptureSpec
	Repeat *RepeatSpec
}

type CaptureSpec struct {
	Name string
	Kind CaptureKind
}

type RepeatSpec struct {
	Elems []PatternElem
	Separator string // "" if none
	Quant Quantifier
}

// Macro is a Macro item: name, parameter pattern, and an opaque body
// token list.
type Macro struct {
	NameV string
	VisV Visibility
	Pattern []PatternElem
	Body []Token
	sp Span
}

func (m *Macro) Span() Span { return m.sp }
func (m *Macro) itemNode() {}
func (m *Macro) Name() string { return m.NameV }
func (m *Macro) Vis() Visibility { return m.VisV }
