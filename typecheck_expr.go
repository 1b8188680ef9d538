package pdc

import "fmt"

// inferExpr computes e's type, recording any generic instantiation it
// triggers along the way.
func (c *Checker) inferExpr(e Expr) (Type, error) {
	switch n := e.(type) {
		case *LiteralExpr:
		switch n.Kind {
			case LitInt:
			return IntT{Width: I32}, nil
			case LitString:
			return StringT{}, nil
			case LitBool:
			return BoolT{}, nil
		}
		return UnitT{}, nil

		case *IdentExpr:
		t, _, ok := c.lookup(n.Name)
		if !ok {
			d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined name `%s`", n.Name), Span: n.sp}
			if sugg := SuggestSimilarName(n.Name, c.allBindingNames()); sugg != "" {
				d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
			}
			return nil, d
		}
		return t, nil

		case *BinaryExpr:
		return c.inferBinary(n)

		case *UnaryExpr:
		operand, err := c.inferExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Op {
			case OpNeg:
			if _, ok := operand.(IntT); !ok {
				return nil, typeMismatch("integer", operand, n.sp)
			}
			return operand, nil
			case OpNot:
			if _, ok := operand.(BoolT); !ok {
				return nil, typeMismatch("bool", operand, n.sp)
			}
			return BoolT{}, nil
		}
		return nil, &Diagnostic{Kind: KindTypeMismatch, Message: "unknown unary operator", Span: n.sp}

		case *CallExpr:
		return c.inferCall(n)

		case *ArrayLiteralExpr:
		if len(n.Elems) == 0 {
			return ArrayT{Elem: UnitT{}, Size: 0}, nil
		}
		first, err := c.inferExpr(n.Elems[0])
		if err != nil {
			return nil, err
		}
		for _, el := range n.Elems[1:] {
			t, err := c.inferExpr(el)
			if err != nil {
				return nil, err
			}
			if !TypesEqual(first, t) {
				return nil, typeMismatch(first.String(), t, el.Span())
			}
		}
		return ArrayT{Elem: first, Size: int64(len(n.Elems))}, nil

		case *ArrayRepeatExpr:
		elem, err := c.inferExpr(n.Value)
		if err != nil {
			return nil, err
		}
		count, err := c.inferExpr(n.Count)
		if err != nil {
			return nil, err
		}
		if _, ok := count.(IntT); !ok {
			return nil, typeMismatch("integer", count, n.Count.Span())
		}
		lit, ok := n.Count.(*LiteralExpr)
		size := int64(0)
		if ok && lit.Kind == LitInt {
			size = lit.Int
		}
		return ArrayT{Elem: elem, Size: size}, nil

		case *IndexExpr:
		arr, err := c.inferExpr(n.Array)
		if err != nil {
			return nil, err
		}
		idx, err := c.inferExpr(n.Index)
		if err != nil {
			return nil, err
		}
		if _, ok := idx.(IntT); !ok {
			return nil, typeMismatch("integer", idx, n.Index.Span())
		}
		at, ok := unwrapRef(arr).(ArrayT)
		if !ok {
			return nil, typeMismatch("array", arr, n.Array.Span())
		}
		return at.Elem, nil

		case *StructLiteralExpr:
		return c.inferStructLiteral(n)

		case *FieldAccessExpr:
		return c.inferFieldAccess(n)

		case *EnumCtorExpr:
		return c.inferEnumCtor(n)

		case *RangeExpr:
		start, err := c.inferExpr(n.Start)
		if err != nil {
			return nil, err
		}
		end, err := c.inferExpr(n.End)
		if err != nil {
			return nil, err
		}
		if !TypesEqual(start, end) {
			return nil, typeMismatch(start.String(), end, n.End.Span())
		}
		return ArrayT{Elem: start, Size: -1, ConstRef: "range"}, nil

		case *ReferenceExpr:
		inner, err := c.inferExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		return ReferenceT{Mutable: n.Mutable, Inner: inner}, nil

		case *DerefExpr:
		inner, err := c.inferExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		ref, ok := inner.(ReferenceT)
		if !ok {
			return nil, typeMismatch("reference", inner, n.sp)
		}
		return ref.Inner, nil

		case *QuestionExpr:
		inner, err := c.inferExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		named, ok := inner.(NamedT)
		if !ok || (named.Name != "Result" && named.Name != "Option") {
			return nil, typeMismatch("Result or Option", inner, n.sp)
		}
		if len(named.Args) == 0 {
			return UnitT{}, nil
		}
		return named.Args[0], nil

		case *AwaitExpr:
		inner, err := c.inferExpr(n.Inner)
		if err != nil {
			return nil, err
		}
		fut, ok := inner.(FutureT)
		if !ok {
			return nil, typeMismatch("Future", inner, n.sp)
		}
		return fut.Output, nil

		case *MacroInvokeExpr:
		return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("macro `%s!` was not expanded before type checking", n.Name), Span: n.sp}
	}
	return nil, &Diagnostic{Kind: KindTypeMismatch, Message: "unrecognized expression form"}
}

func unwrapRef(t Type) Type {
	if r, ok := t.(ReferenceT); ok {
		return r.Inner
	}
	return t
}

func typeMismatch(expected string, got Type, sp Span) error {
	return &Diagnostic{Kind: KindTypeMismatch, Message: fmt.Sprintf("expected %s, found `%s`", expected, got), Span: sp}
}

func (c *Checker) inferBinary(n *BinaryExpr) (Type, error) {
	left, err := c.inferExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.inferExpr(n.Right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		li, lok := left.(IntT)
		_, rok := right.(IntT)
		if !lok || !rok || !TypesEqual(left, right) {
			return nil, typeMismatch(left.String(), right, n.sp)
		}
		return li, nil
		case OpEq, OpNe:
		if !TypesEqual(left, right) {
			return nil, typeMismatch(left.String(), right, n.sp)
		}
		return BoolT{}, nil
		case OpLt, OpLe, OpGt, OpGe:
		if !TypesEqual(left, right) {
			return nil, typeMismatch(left.String(), right, n.sp)
		}
		if _, ok := left.(IntT); !ok {
			return nil, typeMismatch("integer", left, n.sp)
		}
		return BoolT{}, nil
		case OpAnd, OpOr:
		if _, ok := left.(BoolT); !ok {
			return nil, typeMismatch("bool", left, n.Left.Span())
		}
		if _, ok := right.(BoolT); !ok {
			return nil, typeMismatch("bool", right, n.Right.Span())
		}
		return BoolT{}, nil
	}
	return nil, &Diagnostic{Kind: KindTypeMismatch, Message: "unknown binary operator", Span: n.sp}
}

func (c *Checker) inferStructLiteral(n *StructLiteralExpr) (Type, error) {
	st, ok := c.structs[n.NameV]
	if !ok {
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined struct `%s`", n.NameV), Span: n.sp}
		if sugg := SuggestSimilarName(n.NameV, structNames(c.structs)); sugg != "" {
			d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
		}
		return nil, d
	}
	if len(n.Fields) != len(st.Fields) {
		return nil, &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("struct `%s` has %d fields but %d were provided", n.NameV, len(st.Fields), len(n.Fields)), Span: n.sp}
	}
	tparams := typeParamSet(st.TypeParams)
	var argTypes []Type
	for _, init := range n.Fields {
		field, found := fieldByName(st.Fields, init.Name)
		if !found {
			d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("struct `%s` has no field `%s`", n.NameV, init.Name), Span: n.sp}
			return nil, d
		}
		fieldTy, err := c.resolveTypeExpr(field.Type, tparams)
		if err != nil {
			return nil, err
		}
		valTy, err := c.inferExpr(init.Value)
		if err != nil {
			return nil, err
		}
		if st.IsGeneric() {
			if inferred, ok := inferTypeParam(fieldTy, valTy); ok {
				argTypes = appendInferred(argTypes, st.TypeParams, inferred)
			}
			continue
		}
		if !TypesEqual(fieldTy, valTy) {
			return nil, typeMismatch(fieldTy.String(), valTy, init.Value.Span())
		}
	}
	if st.IsGeneric() {
		c.recordInstantiation(n.NameV, argTypes)
		return NamedT{Kind: NamedStruct, Name: n.NameV, Args: argTypes}, nil
	}
	return NamedT{Kind: NamedStruct, Name: n.NameV}, nil
}

func (c *Checker) inferFieldAccess(n *FieldAccessExpr) (Type, error) {
	obj, err := c.inferExpr(n.Object)
	if err != nil {
		return nil, err
	}
	named, ok := unwrapRef(obj).(NamedT)
	if !ok || named.Kind != NamedStruct {
		return nil, typeMismatch("struct", obj, n.sp)
	}
	st, ok := c.structs[named.Name]
	if !ok {
		return nil, &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined struct `%s`", named.Name), Span: n.sp}
	}
	field, found := fieldByName(st.Fields, n.Field)
	if !found {
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("struct `%s` has no field `%s`", named.Name, n.Field), Span: n.sp}
		names := make([]string, len(st.Fields))
		for i, f := range st.Fields {
			names[i] = f.Name
		}
		if sugg := SuggestSimilarName(n.Field, names); sugg != "" {
			d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
		}
		return nil, d
	}
	tparams := typeParamSet(st.TypeParams)
	ty, err := c.resolveTypeExpr(field.Type, tparams)
	if err != nil {
		return nil, err
	}
	if len(named.Args) > 0 {
		subst := make(map[string]Type)
		for i, p := range st.TypeParams {
			if i < len(named.Args) {
				subst[p] = named.Args[i]
			}
		}
		ty = substituteType(ty, subst)
	}
	return ty, nil
}

func (c *Checker) inferEnumCtor(n *EnumCtorExpr) (Type, error) {
	en, ok := c.enums[n.Enum]
	if !ok {
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("undefined enum `%s`", n.Enum), Span: n.sp}
		if sugg := SuggestSimilarName(n.Enum, enumNames(c.enums)); sugg != "" {
			d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
		}
		return nil, d
	}
	variant, ok := en.VariantByName(n.Variant)
	if !ok {
		d := &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("enum `%s` has no variant `%s`", n.Enum, n.Variant), Span: n.sp}
		if sugg := SuggestSimilarName(n.Variant, en.VariantNames()); sugg != "" {
			d.Suggestion = fmt.Sprintf("did you mean `%s`?", sugg)
		}
		return nil, d
	}
	tparams := typeParamSet(en.TypeParams)
	var argTypes []Type
	switch variant.Shape {
		case VariantTuple:
		if len(n.Tuple) != len(variant.Tuple) {
			return nil, &Diagnostic{Kind: KindArgCountMismatch, Message: fmt.Sprintf("variant `%s::%s` expects %d values but %d were given", n.Enum, n.Variant, len(variant.Tuple), len(n.Tuple)), Span: n.sp}
		}
		for i, v := range n.Tuple {
			wantTy, err := c.resolveTypeExpr(variant.Tuple[i], tparams)
			if err != nil {
				return nil, err
			}
			gotTy, err := c.inferExpr(v)
			if err != nil {
				return nil, err
			}
			if en.IsGeneric() {
				if inferred, ok := inferTypeParam(wantTy, gotTy); ok {
					argTypes = appendInferred(argTypes, en.TypeParams, inferred)
				}
				continue
			}
			if !TypesEqual(wantTy, gotTy) {
				return nil, typeMismatch(wantTy.String(), gotTy, v.Span())
			}
		}
		case VariantNamed:
		for _, init := range n.Named {
			field, found := fieldByName(variant.Fields, init.Name)
			if !found {
				return nil, &Diagnostic{Kind: KindUndefinedName, Message: fmt.Sprintf("variant `%s::%s` has no field `%s`", n.Enum, n.Variant, init.Name), Span: n.sp}
			}
			wantTy, err := c.resolveTypeExpr(field.Type, tparams)
			if err != nil {
				return nil, err
			}
			gotTy, err := c.inferExpr(init.Value)
			if err != nil {
				return nil, err
			}
			if !TypesEqual(wantTy, gotTy) {
				return nil, typeMismatch(wantTy.String(), gotTy, init.Value.Span())
			}
		}
	}
	if en.IsGeneric() {
		c.recordInstantiation(n.Enum, argTypes)
		return NamedT{Kind: NamedEnum, Name: n.Enum, Args: argTypes}, nil
	}
	return NamedT{Kind: NamedEnum, Name: n.Enum}, nil
}

func fieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func typeParamSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func structNames(m map[string]*Struct) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func enumNames(m map[string]*Enum) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// inferTypeParam does one step of type-parameter unification: if
// pattern is a bare TypeParamT, concrete is its inferred binding.
func inferTypeParam(pattern, concrete Type) (map[string]Type, bool) {
	switch p := pattern.(type) {
		case TypeParamT:
		return map[string]Type{p.Name: concrete}, true
		case ReferenceT:
		if c, ok := concrete.(ReferenceT); ok {
			return inferTypeParam(p.Inner, c.Inner)
		}
		case ArrayT:
		if c, ok := concrete.(ArrayT); ok {
			return inferTypeParam(p.Elem, c.Elem)
		}
	}
	return nil, false
}

// appendInferred merges a single unification result into the ordered
// argument-type slice being built for a generic instantiation, indexed
// by the struct/enum/function's declared type-parameter order.
func appendInferred(acc []Type, order []string, found map[string]Type) []Type {
	if acc == nil {
		acc = make([]Type, len(order))
	}
	for i, name := range order {
		if t, ok := found[name]; ok {
			acc[i] = t
		}
	}
	return acc
}
