package pdc

import "fmt"

// inferCall dispatches a call expression to either a plain function
// call or a method call, depending on the callee's shape.
func (c *Checker) inferCall(n *CallExpr) (Type, error) {
	switch callee := n.Callee.(type) {
		case *IdentExpr:
		return c.inferFunctionCall(callee.Name, n)
		case *FieldAccessExpr:
		return c.inferMethodCall(callee, n)
		default:
		return nil, &Diagnostic{Kind: KindTypeMismatch, Message: "expression is not callable", Span: n.sp}
	}
}

func (c *Checker) inferFunctionCall(name string, n *CallExpr) (Type, error) {
	fn, ok := c.fns[name]
	if !ok {
		if unsafeIntrinsics[name] {
			return c.inferUnsafeIntrinsic(name, n)
		}
		if _, ok := stdlibEffects[name]; ok {
			return c.inferStdlibCall(name, n)
		}
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined function `%s`", name), Span: n.sp}
		if sugg := SuggestSimilarName(name, c.functionNames()); sugg != "" {
			d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
		}
		return nil, d
	}
	if len(n.Args) != len(fn.Params) {
		return nil, &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("function `%s` takes %d arguments but %d were given", name, len(fn.Params), len(n.Args)), Span: n.sp}
	}

	tparams := typeParamSet(fn.TypeParams)
	var argTypes []Type
	if len(n.TypeArgs) > 0 {
		argTypes = make([]Type, len(n.TypeArgs))
		for i, te := range n.TypeArgs {
			t, err := c.resolveTypeExpr(te, nil)
			if err != nil {
				return nil, err
			}
			argTypes[i] = t
		}
	}

	// resolveCalleeType resolves one of fn's own signature types against
	// fn's own type parameters, never the caller's: if the caller is
	// itself mid-instantiation (c.currentSubst set) and happens to reuse
	// the same type-parameter name as fn, that substitution must not leak
	// into fn's placeholder here — unification below needs an abstract
	// TypeParamT to match against, not a name-collided concrete type.
	resolveCalleeType := func(te TypeExpr) (Type, error) {
		prevSubst := c.currentSubst
		c.currentSubst = nil
		t, err := c.resolveTypeExpr(te, tparams)
		c.currentSubst = prevSubst
		return t, err
	}

	for i, arg := range n.Args {
		wantTy, err := resolveCalleeType(fn.Params[i].Type)
		if err != nil {
			return nil, err
		}
		gotTy, err := c.inferExpr(arg)
		if err != nil {
			return nil, err
		}
		if fn.IsGeneric() && argTypes == nil {
			if inferred, ok := inferTypeParam(wantTy, gotTy); ok {
				argTypes = appendInferred(argTypes, fn.TypeParams, inferred)
			}
			continue
		}
		if fn.IsGeneric() {
			subst := make(map[string]Type)
			for i, p := range fn.TypeParams {
				if i < len(argTypes) {
					subst[p] = argTypes[i]
				}
			}
			wantTy = substituteType(wantTy, subst)
		}
		if !TypesEqual(wantTy, gotTy) {
			return nil, typeMismatch(wantTy.String(), gotTy, arg.Span())
		}
	}

	if fn.IsGeneric() && len(n.TypeArgs) == 0 {
		if argTypes == nil {
			argTypes = make([]Type, len(fn.TypeParams))
		}
		for i, p := range fn.TypeParams {
			if argTypes[i] == nil {
				return nil, &Diagnostic{Kind: KindUninferredTypeParam, Message: fmt.Sprintf("cannot infer type parameter `%s` of `%s`: no argument's type pins it", p, name), Span: n.sp}
			}
		}
	}

	retTy, err := resolveCalleeType(fn.Return)
	if err != nil {
		return nil, err
	}
	if fn.IsGeneric() {
		c.recordInstantiation(name, argTypes)
		subst := make(map[string]Type)
		for i, p := range fn.TypeParams {
			if i < len(argTypes) {
				subst[p] = argTypes[i]
			}
		}
		retTy = substituteType(retTy, subst)
	}
	return retTy, nil
}

// inferStdlibCall type-checks calls to built-in runtime functions that
// have no pd-level declaration (println, print, read_line — the C
// runtime preamble provides their implementations).
func (c *Checker) inferStdlibCall(name string, n *CallExpr) (Type, error) {
	for _, arg := range n.Args {
		if _, err := c.inferExpr(arg); err != nil {
			return nil, err
		}
	}
	switch name {
		case "read_line":
		return StringT{}, nil
		default:
		return UnitT{}, nil
	}
}

// inferUnsafeIntrinsic type-checks the raw memory escape hatches. Their
// legality (must appear inside an unsafe context) is enforced later by
// the unsafe checker; this only assigns them a plausible type.
func (c *Checker) inferUnsafeIntrinsic(name string, n *CallExpr) (Type, error) {
	if len(n.Args) == 0 {
		return nil, &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("`%s` requires at least one argument", name), Span: n.sp}
	}
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		t, err := c.inferExpr(a)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}
	switch name {
		case "raw_read":
		if ref, ok := unwrapRef(argTypes[0]).(ReferenceT); ok {
			return ref.Inner, nil
		}
		return argTypes[0], nil
		case "raw_write":
		return UnitT{}, nil
		case "transmute":
		if len(n.TypeArgs) == 1 {
			return c.resolveTypeExpr(n.TypeArgs[0], c.currentTypeParams())
		}
		return argTypes[0], nil
		default:
		return UnitT{}, nil
	}
}

func (c *Checker) functionNames() []string {
	out := make([]string, 0, len(c.fns))
	for k := range c.fns {
		out = append(out, k)
	}
	return out
}

// methodCandidate pairs a resolved method with the impl it came from,
// so resolution can tell an inherent method from a trait method.
type methodCandidate struct {
	impl *Impl
	method *Function
}

func (c *Checker) findMethods(typeName, methodName string) []methodCandidate {
	var out []methodCandidate
	for _, impl := range c.impls {
		if targetName(impl.TargetType) != typeName {
			continue
		}
		found := false
		for _, m := range impl.Methods {
			if m.NameV == methodName {
				out = append(out, methodCandidate{impl: impl, method: m})
				found = true
			}
		}
		// A trait impl that does not override a method inherits the
		// trait's default body, if it has one.
		if tr, ok := c.traits[impl.Trait]; ok && !found {
			for _, tm := range tr.Methods {
				if tm.NameV == methodName && tm.Default != nil {
					out = append(out, methodCandidate{impl: impl, method: &Function{NameV: tm.NameV, Params: tm.Params, Return: tm.Return, Body: tm.Default, IsAsync: tm.IsAsync}})
				}
			}
		}
	}
	return out
}

func targetName(t TypeExpr) string {
	switch n := t.(type) {
		case *CustomType:
		return n.NameV
		case *GenericType:
		return n.NameV
		default:
		return TypeString(t)
	}
}

// inferMethodCall resolves `receiver.method(args)` against the impl
// blocks collected in phase one: an inherent impl's method always wins
// over a trait-provided one; if more than one trait impl supplies the
// same method name with no inherent method to prefer, resolution is
// ambiguous and must be disambiguated by the caller.
func (c *Checker) inferMethodCall(fa *FieldAccessExpr, call *CallExpr) (Type, error) {
	recv, err := c.inferExpr(fa.Object)
	if err != nil {
		return nil, err
	}
	named, ok := unwrapRef(recv).(NamedT)
	if !ok {
		return nil, typeMismatch("struct or enum", recv, fa.sp)
	}

	candidates := c.findMethods(named.Name, fa.Field)
	if len(candidates) == 0 {
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("type `%s` has no method `%s`", named.Name, fa.Field), Span: fa.sp}
		return nil, d
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		var inherent *methodCandidate
		for i := range candidates {
			if candidates[i].impl.Trait == "" {
				inherent = &candidates[i]
				break
			}
		}
		if inherent != nil {
			chosen = *inherent
		} else {
			return nil, &Diagnostic{
				Kind: KindAmbiguousMethod,
				Message: fmt.Sprintf("call to `%s.%s(...)` is ambiguous between %d trait implementations", named.Name, fa.Field, len(candidates)),
				Span: fa.sp,
			}
		}
	}

	fn := chosen.method
	if len(call.Args) != len(fn.Params) {
		return nil, &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("method `%s` takes %d arguments but %d were given", fa.Field, len(fn.Params), len(call.Args)), Span: fa.sp}
	}
	for i, arg := range call.Args {
		wantTy, err := c.resolveTypeExpr(fn.Params[i].Type, nil)
		if err != nil {
			return nil, err
		}
		gotTy, err := c.inferExpr(arg)
		if err != nil {
			return nil, err
		}
		if !TypesEqual(wantTy, gotTy) {
			return nil, typeMismatch(wantTy.String(), gotTy, arg.Span())
		}
	}
	return c.resolveTypeExpr(fn.Return, nil)
}

// checkTraitImplementations validates that every `impl Trait for Type`
// block provides (or inherits a default for) every method its trait
// declares.
func (c *Checker) checkTraitImplementations() error {
	for _, impl := range c.impls {
		if impl.Trait == "" {
			continue
		}
		trait, ok := c.traits[impl.Trait]
		if !ok {
			return &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined trait `%s`", impl.Trait), Span: impl.sp}
		}
		provided := make(map[string]bool, len(impl.Methods))
		for _, m := range impl.Methods {
			provided[m.NameV] = true
		}
		for _, req := range trait.Methods {
			if provided[req.NameV] {
				continue
			}
			if req.Default != nil {
				continue
			}
			return &Diagnostic{
				Kind: KindTraitNotImplemented,
				Message: fmt.Sprintf("`%s` does not implement `%s::%s` required by trait `%s`", TypeString(impl.TargetType), impl.Trait, req.NameV, impl.Trait),
				Span: impl.sp,
			}
		}
	}
	return nil
}
