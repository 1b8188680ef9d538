package pdc

import "fmt"

// Instantiation is one concrete specialization of a generic function or
// struct/enum, keyed by (name, mangled argument tuple): monomorphization
// is plain-dictionary instantiation, not runtime dispatch. The code
// emitter reads this registry to produce one specialized definition per
// entry.
type Instantiation struct {
	Name string
	Args []Type
	MangledName string
}

// Checker performs the two-phase type check described in :
// phase one collects every item's signature (so forward references and
// mutual recursion resolve without a second pass over declarations),
// phase two walks each function body against those signatures.
//
// Grounded on grammar_compiler.go two-stage shape
// (resolve rule references, then compile rule bodies), generalized from
// PEG rule resolution to pd's struct/enum/trait/function signature
// resolution.
type Checker struct {
	structs map[string]*Struct
	enums map[string]*Enum
	traits map[string]*Trait
	aliases map[string]*TypeAlias
	fns map[string]*Function
	impls []*Impl

	// instantiations accumulates one entry per distinct concrete
	// argument tuple seen for each generic function/struct/enum,
	// keyed by mangled name.
	instantiations map[string]*Instantiation

	scopes []map[string]Type
	mutables []map[string]bool
	loopDepth int
	unsafeDepth int
	currentFn *Function
	currentRet Type

	// currentSubst is non-nil while checking a generic function's body
	// against one concrete instantiation: every occurrence of one of its
	// type parameters resolves through this map instead of to a bare
	// TypeParamT placeholder.
	currentSubst map[string]Type
}

func NewChecker() *Checker {
	return &Checker{
		structs: make(map[string]*Struct),
		enums: make(map[string]*Enum),
		traits: make(map[string]*Trait),
		aliases: make(map[string]*TypeAlias),
		fns: make(map[string]*Function),
		instantiations: make(map[string]*Instantiation),
	}
}

// Check runs both phases over prog and returns the first diagnostic
// encountered, if any.
func (c *Checker) Check(prog *Program) error {
	if err := c.collectSignatures(prog); err != nil {
		return err
	}
	return c.checkBodies(prog)
}

// ---- Phase 1: signatures ----

func (c *Checker) collectSignatures(prog *Program) error {
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Struct:
			c.structs[it.NameV] = it
			case *Enum:
			c.enums[it.NameV] = it
			case *Trait:
			c.traits[it.NameV] = it
			case *TypeAlias:
			c.aliases[it.NameV] = it
			case *Function:
			c.fns[it.NameV] = it
			case *Impl:
			c.impls = append(c.impls, it)
		}
	}
	// Aliases are expanded lazily on first use via resolveTypeExpr, but
	// a direct self-reference (`type A = A;`) would otherwise recurse
	// forever, so check for that shape up front.
	for name, alias := range c.aliases {
		if ct, ok := alias.RHS.(*CustomType); ok && ct.NameV == name {
			return &Diagnostic{Kind: KindTypeMismatch, Message: fmt.Sprintf("type alias `%s` refers to itself", name), Span: alias.sp}
		}
	}
	return nil
}

// ---- Type-expression resolution ----

// resolveTypeExpr converts parser syntax into the checker's resolved
// Type, expanding aliases and disambiguating a bare identifier between
// an in-scope type parameter, a type alias, and a struct/enum name.
func (c *Checker) resolveTypeExpr(te TypeExpr, tparams map[string]bool) (Type, error) {
	switch n := te.(type) {
		case nil:
		return UnitT{}, nil
		case *UnitType:
		return UnitT{}, nil
		case *BoolType:
		return BoolT{}, nil
		case *IntType:
		return IntT{Width: n.Width}, nil
		case *StringType:
		return StringT{}, nil
		case *ArrayType:
		elem, err := c.resolveTypeExpr(n.Elem, tparams)
		if err != nil {
			return nil, err
		}
		if n.Size.IsConst() {
			if tparams[n.Size.ConstRef] {
				return ArrayT{Elem: elem, Size: -1, ConstRef: n.Size.ConstRef}, nil
			}
			return nil, &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("array size `%s` is not an in-scope const parameter", n.Size.ConstRef), Span: n.sp}
		}
		return ArrayT{Elem: elem, Size: n.Size.Literal}, nil
		case *ReferenceType:
		inner, err := c.resolveTypeExpr(n.Inner, tparams)
		if err != nil {
			return nil, err
		}
		return ReferenceT{Mutable: n.Mutable, Inner: inner}, nil
		case *TypeParamRef:
		if c.currentSubst != nil {
			if concrete, ok := c.currentSubst[n.NameV]; ok {
				return concrete, nil
			}
		}
		return TypeParamT{Name: n.NameV}, nil
		case *FutureType:
		out, err := c.resolveTypeExpr(n.Output, tparams)
		if err != nil {
			return nil, err
		}
		return FutureT{Output: out}, nil
		case *CustomType:
		return c.resolveNamed(n.NameV, nil, tparams, n.sp)
		case *GenericType:
		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			if a.IsConstArg {
				args[i] = IntT{Width: I64}
				continue
			}
			at, err := c.resolveTypeExpr(a.Type, tparams)
			if err != nil {
				return nil, err
			}
			args[i] = at
		}
		return c.resolveNamed(n.NameV, args, tparams, n.sp)
		default:
		return nil, &Diagnostic{Kind: KindTypeMismatch, Message: "unrecognized type syntax"}
	}
}

func (c *Checker) resolveNamed(name string, args []Type, tparams map[string]bool, sp Span) (Type, error) {
	if tparams[name] {
		if c.currentSubst != nil {
			if concrete, ok := c.currentSubst[name]; ok {
				return concrete, nil
			}
		}
		return TypeParamT{Name: name}, nil
	}
	if alias, ok := c.aliases[name]; ok {
		aliasParams := make(map[string]bool)
		for _, p := range alias.TypeParams {
			aliasParams[p] = true
		}
		expanded, err := c.resolveTypeExpr(alias.RHS, aliasParams)
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			subst := make(map[string]Type)
			for i, p := range alias.TypeParams {
				if i < len(args) {
					subst[p] = args[i]
				}
			}
			expanded = substituteType(expanded, subst)
		}
		return expanded, nil
	}
	if _, ok := c.structs[name]; ok {
		return NamedT{Kind: NamedStruct, Name: name, Args: args}, nil
	}
	if _, ok := c.enums[name]; ok {
		return NamedT{Kind: NamedEnum, Name: name, Args: args}, nil
	}
	available := make([]string, 0, len(c.structs)+len(c.enums)+len(c.aliases))
	for k := range c.structs {
		available = append(available, k)
	}
	for k := range c.enums {
		available = append(available, k)
	}
	for k := range c.aliases {
		available = append(available, k)
	}
	d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined type `%s`", name), Span: sp}
	if sugg := SuggestSimilarName(name, available); sugg != "" {
		d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
	}
	return nil, d
}

// substituteType replaces TypeParamT occurrences with concrete types,
// used both for alias expansion with arguments and for monomorphizing a
// generic function/struct's field and signature types.
func substituteType(t Type, subst map[string]Type) Type {
	switch n := t.(type) {
		case TypeParamT:
		if concrete, ok := subst[n.Name]; ok {
			return concrete
		}
		return n
		case ArrayT:
		elem := substituteType(n.Elem, subst)
		return ArrayT{Elem: elem, Size: n.Size, ConstRef: n.ConstRef}
		case ReferenceT:
		return ReferenceT{Mutable: n.Mutable, Inner: substituteType(n.Inner, subst)}
		case NamedT:
		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteType(a, subst)
		}
		return NamedT{Kind: n.Kind, Name: n.Name, Args: args}
		case FutureT:
		return FutureT{Output: substituteType(n.Output, subst)}
		default:
		return t
	}
}

// ---- Scope management ----

func (c *Checker) pushScope() {
	c.scopes = append(c.scopes, make(map[string]Type))
	c.mutables = append(c.mutables, make(map[string]bool))
}

func (c *Checker) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.mutables = c.mutables[:len(c.mutables)-1]
}

func (c *Checker) declare(name string, t Type, mutable bool) {
	top := len(c.scopes) - 1
	c.scopes[top][name] = t
	c.mutables[top][name] = mutable
}

func (c *Checker) lookup(name string) (Type, bool, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, c.mutables[i][name], true
		}
	}
	return nil, false, false
}

func (c *Checker) allBindingNames() []string {
	var out []string
	for _, scope := range c.scopes {
		for name := range scope {
			out = append(out, name)
		}
	}
	return out
}

// recordInstantiation adds (or returns the existing) monomorphization
// entry for name+args, mangling a deterministic specialized name.
func (c *Checker) recordInstantiation(name string, args []Type) *Instantiation {
	if len(args) == 0 {
		return nil
	}
	key := name + "$" + mangleTypeArgs(args)
	if inst, ok := c.instantiations[key]; ok {
		return inst
	}
	inst := &Instantiation{Name: name, Args: args, MangledName: name + "_" + mangleTypeArgs(args)}
	c.instantiations[key] = inst
	return inst
}

// Instantiations exposes the completed monomorphization registry to the
// code emitter once checking has finished.
func (c *Checker) Instantiations() map[string]*Instantiation { return c.instantiations }
