package pdc

import "fmt"

// checkBodies is phase two: walk every non-generic function (free and
// impl method) body against the signatures phase one collected. Generic
// function bodies are checked separately, once per concrete instantiation
// recorded while checking everything else — see checkGenericInstantiations.
func (c *Checker) checkBodies(prog *Program) error {
	if err := c.checkTraitImplementations(); err != nil {
		return err
	}
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Function:
			if it.IsGeneric() {
				continue
			}
			if err := c.checkFunction(it); err != nil {
				return err
			}
			case *Impl:
			for _, m := range it.Methods {
				if m.IsGeneric() {
					continue
				}
				if err := c.checkFunction(m); err != nil {
					return err
				}
			}
		}
	}
	return c.checkGenericInstantiations()
}

// checkGenericInstantiations type-checks each generic function's body once
// per concrete instantiation recorded while checking the rest of the
// program, substituting its type parameters for that instantiation's
// concrete argument types. Checking a generic body standalone against bare
// type-parameter placeholders (as in `fn double<T>(x: T) -> T { return x +
// x; }`) would reject `+` for every T even though every real instantiation
// (`double::<i32>`, `double::<String>` if it supported it) is legal, or
// worse, accept a body no real instantiation would ever satisfy — the
// checker only knows what a type parameter actually supports once it has
// a concrete type standing in for it.
//
// Runs to a fixed point: checking one instantiation's body can itself call
// another generic function and record a fresh instantiation that also
// needs checking, the same way the effect analyzer iterates its call-graph
// fixed point in effects.go.
func (c *Checker) checkGenericInstantiations() error {
	checked := make(map[string]bool)
	for {
		progress := false
		for key, inst := range c.instantiations {
			if checked[key] {
				continue
			}
			checked[key] = true
			fn, ok := c.fns[inst.Name]
			if !ok || !fn.IsGeneric() {
				continue
			}
			subst := substMap(fn.TypeParams, inst.Args)
			if err := c.checkFunctionWithSubst(fn, subst); err != nil {
				return err
			}
			progress = true
		}
		if !progress {
			return nil
		}
	}
}

func (c *Checker) checkFunctionWithSubst(fn *Function, subst map[string]Type) error {
	prevSubst := c.currentSubst
	c.currentSubst = subst
	err := c.checkFunction(fn)
	c.currentSubst = prevSubst
	return err
}

func (c *Checker) checkFunction(fn *Function) error {
	c.pushScope()
	defer c.popScope()

	prevFn, prevRet := c.currentFn, c.currentRet
	c.currentFn = fn

	tparams := typeParamSet(fn.TypeParams)
	for _, cp := range fn.ConstParams {
		tparams[cp.Name] = true
	}
	for _, p := range fn.Params {
		ty, err := c.resolveTypeExpr(p.Type, tparams)
		if err != nil {
			return err
		}
		c.declare(p.Name, ty, p.Mutable)
	}
	retTy, err := c.resolveTypeExpr(fn.Return, tparams)
	if err != nil {
		return err
	}
	c.currentRet = retTy

	if fn.IsUnsafe {
		c.unsafeDepth++
	}
	err = c.checkBlock(fn.Body)
	if fn.IsUnsafe {
		c.unsafeDepth--
	}

	c.currentFn, c.currentRet = prevFn, prevRet
	return err
}

func (c *Checker) checkBlock(stmts []Stmt) error {
	c.pushScope()
	defer c.popScope()
	for _, s := range stmts {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStmt(s Stmt) error {
	switch n := s.(type) {
		case *ExprStmt:
		_, err := c.inferExpr(n.Expr)
		return err

		case *ReturnStmt:
		if n.Value == nil {
			if !TypesEqual(c.currentRet, UnitT{}) {
				return typeMismatch(c.currentRet.String(), UnitT{}, n.sp)
			}
			return nil
		}
		got, err := c.inferExpr(n.Value)
		if err != nil {
			return err
		}
		if !TypesEqual(c.currentRet, got) {
			return typeMismatch(c.currentRet.String(), got, n.Value.Span())
		}
		return nil

		case *LetStmt:
		initTy, err := c.inferExpr(n.Init)
		if err != nil {
			return err
		}
		if n.Annotation != nil {
			declTy, err := c.resolveTypeExpr(n.Annotation, c.currentTypeParams())
			if err != nil {
				return err
			}
			if !TypesEqual(declTy, initTy) {
				return typeMismatch(declTy.String(), initTy, n.Init.Span())
			}
			initTy = declTy
		}
		c.declare(n.Name, initTy, n.Mutable)
		return nil

		case *AssignStmt:
		targetTy, err := c.inferExpr(n.Target)
		if err != nil {
			return err
		}
		if id, ok := n.Target.(*IdentExpr); ok {
			_, mutable, _ := c.lookup(id.Name)
			if !mutable {
				return &Diagnostic{Kind: KindImmutableAssignment, Message: fmt.Sprintf("cannot assign to immutable binding `%s`", id.Name), Span: n.sp, Suggestion: fmt.Sprintf("add `mut` to the declaration of `%s`", id.Name)}
			}
		}
		valTy, err := c.inferExpr(n.Value)
		if err != nil {
			return err
		}
		if !TypesEqual(targetTy, valTy) {
			return typeMismatch(targetTy.String(), valTy, n.Value.Span())
		}
		return nil

		case *IfStmt:
		condTy, err := c.inferExpr(n.Cond)
		if err != nil {
			return err
		}
		if _, ok := condTy.(BoolT); !ok {
			return typeMismatch("bool", condTy, n.Cond.Span())
		}
		if err := c.checkBlock(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return c.checkBlock(n.Else)
		}
		return nil

		case *WhileStmt:
		condTy, err := c.inferExpr(n.Cond)
		if err != nil {
			return err
		}
		if _, ok := condTy.(BoolT); !ok {
			return typeMismatch("bool", condTy, n.Cond.Span())
		}
		c.loopDepth++
		err = c.checkBlock(n.Body)
		c.loopDepth--
		return err

		case *ForStmt:
		iterTy, err := c.inferExpr(n.Iterable)
		if err != nil {
			return err
		}
		arr, ok := iterTy.(ArrayT)
		if !ok {
			return typeMismatch("array or range", iterTy, n.Iterable.Span())
		}
		c.pushScope()
		c.declare(n.Binding, arr.Elem, false)
		c.loopDepth++
		err = func() error {
			for _, st := range n.Body {
				if err := c.checkStmt(st); err != nil {
					return err
				}
			}
			return nil
		}()
		c.loopDepth--
		c.popScope()
		return err

		case *BreakStmt:
		if c.loopDepth == 0 {
			return &Diagnostic{Kind: KindUnexpectedToken, Message: "`break` outside of a loop", Span: n.sp}
		}
		return nil

		case *ContinueStmt:
		if c.loopDepth == 0 {
			return &Diagnostic{Kind: KindUnexpectedToken, Message: "`continue` outside of a loop", Span: n.sp}
		}
		return nil

		case *MatchStmt:
		return c.checkMatch(n)

		case *UnsafeStmt:
		c.unsafeDepth++
		err := c.checkBlock(n.Body)
		c.unsafeDepth--
		return err
	}
	return &Diagnostic{Kind: KindTypeMismatch, Message: "unrecognized statement form"}
}

func (c *Checker) currentTypeParams() map[string]bool {
	if c.currentFn == nil {
		return nil
	}
	set := typeParamSet(c.currentFn.TypeParams)
	for _, cp := range c.currentFn.ConstParams {
		set[cp.Name] = true
	}
	return set
}

func (c *Checker) checkMatch(n *MatchStmt) error {
	scrutTy, err := c.inferExpr(n.Scrutinee)
	if err != nil {
		return err
	}
	named, isEnum := unwrapRef(scrutTy).(NamedT)

	for _, arm := range n.Arms {
		c.pushScope()
		if err := c.bindPattern(arm.Pattern, scrutTy); err != nil {
			c.popScope()
			return err
		}
		for _, st := range arm.Body {
			if err := c.checkStmt(st); err != nil {
				c.popScope()
				return err
			}
		}
		c.popScope()
	}

	if isEnum && named.Kind == NamedEnum {
		en := c.enums[named.Name]
		if en != nil {
			return checkExhaustive(en, n.Arms, n.sp)
		}
	}
	return nil
}

// bindPattern declares the bindings a pattern introduces, and validates
// enum-pattern shapes against the scrutinee's declared variant shape.
func (c *Checker) bindPattern(p Pattern, scrutTy Type) error {
	switch pat := p.(type) {
		case *WildcardPattern:
		return nil
		case *IdentifierPattern:
		c.declare(pat.Name, scrutTy, false)
		return nil
		case *EnumPattern:
		named, ok := unwrapRef(scrutTy).(NamedT)
		if !ok || named.Kind != NamedEnum {
			return typeMismatch("enum", scrutTy, pat.sp)
		}
		en, ok := c.enums[named.Name]
		if !ok {
			return &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined enum `%s`", named.Name), Span: pat.sp}
		}
		variant, ok := en.VariantByName(pat.Variant)
		if !ok {
			d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("enum `%s` has no variant `%s`", named.Name, pat.Variant), Span: pat.sp}
			if sugg := SuggestSimilarName(pat.Variant, en.VariantNames()); sugg != "" {
				d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
			}
			return d
		}
		tparams := typeParamSet(en.TypeParams)
		subst := make(map[string]Type)
		for i, tp := range en.TypeParams {
			if i < len(named.Args) {
				subst[tp] = named.Args[i]
			}
		}
		switch pat.Shape {
			case SubPatternTuple:
			if len(pat.Tuple) != len(variant.Tuple) {
				return &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("pattern for `%s::%s` binds %d values but the variant has %d", named.Name, pat.Variant, len(pat.Tuple), len(variant.Tuple)), Span: pat.sp}
			}
			for i, sub := range pat.Tuple {
				ty, err := c.resolveTypeExpr(variant.Tuple[i], tparams)
				if err != nil {
					return err
				}
				if err := c.bindPattern(sub, substituteType(ty, subst)); err != nil {
					return err
				}
			}
			case SubPatternNamed:
			for _, nsp := range pat.Named {
				field, found := fieldByName(variant.Fields, nsp.Field)
				if !found {
					return &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("variant `%s::%s` has no field `%s`", named.Name, pat.Variant, nsp.Field), Span: pat.sp}
				}
				ty, err := c.resolveTypeExpr(field.Type, tparams)
				if err != nil {
					return err
				}
				if err := c.bindPattern(nsp.Pattern, substituteType(ty, subst)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return nil
}
