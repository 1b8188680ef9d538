package pdc

// Optimizer performs the simple AST-level rewrites calls for:
// constant folding, short-circuit simplification, and dead-branch
// elimination. It is idempotent — a second pass over already-optimized
// output finds nothing left to fold — because every rewrite strictly
// reduces the tree (a BinaryExpr of two literals becomes one literal; a
// branch with a literal condition is replaced by the branch it picks),
// and there is no rewrite rule that reintroduces a shape an earlier rule
// already eliminated.
//
// Grounded on grammar_compiler.go tree-rewrite pass shape
// (single bottom-up walk producing a new tree), generalized from
// PEG-rule inlining to constant-expression folding.
type Optimizer struct{}

func NewOptimizer() *Optimizer { return &Optimizer{} }

func (o *Optimizer) OptimizeProgram(prog *Program) {
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Function:
			it.Body = o.optimizeStmts(it.Body)
			case *Impl:
			for _, m := range it.Methods {
				m.Body = o.optimizeStmts(m.Body)
			}
		}
	}
}

func (o *Optimizer) optimizeStmts(stmts []Stmt) []Stmt {
	var out []Stmt
	for _, s := range stmts {
		out = append(out, o.optimizeStmt(s)...)
	}
	return out
}

// optimizeStmt returns the statement(s) s should be replaced by: usually
// one, but a dead-branch `if` collapses to the statements of whichever
// branch survives (possibly zero, for `if false {... }` with no else).
func (o *Optimizer) optimizeStmt(s Stmt) []Stmt {
	switch n := s.(type) {
		case *ExprStmt:
		n.Expr = o.foldExpr(n.Expr)
		return []Stmt{n}
		case *ReturnStmt:
		if n.Value != nil {
			n.Value = o.foldExpr(n.Value)
		}
		return []Stmt{n}
		case *LetStmt:
		n.Init = o.foldExpr(n.Init)
		return []Stmt{n}
		case *AssignStmt:
		n.Value = o.foldExpr(n.Value)
		return []Stmt{n}
		case *IfStmt:
		n.Cond = o.foldExpr(n.Cond)
		n.Then = o.optimizeStmts(n.Then)
		n.Else = o.optimizeStmts(n.Else)
		if lit, ok := n.Cond.(*LiteralExpr); ok && lit.Kind == LitBool {
			if lit.Bool {
				return n.Then
			}
			return n.Else
		}
		return []Stmt{n}
		case *WhileStmt:
		n.Cond = o.foldExpr(n.Cond)
		n.Body = o.optimizeStmts(n.Body)
		if lit, ok := n.Cond.(*LiteralExpr); ok && lit.Kind == LitBool && !lit.Bool {
			return nil
		}
		return []Stmt{n}
		case *ForStmt:
		n.Iterable = o.foldExpr(n.Iterable)
		n.Body = o.optimizeStmts(n.Body)
		return []Stmt{n}
		case *MatchStmt:
		n.Scrutinee = o.foldExpr(n.Scrutinee)
		for i := range n.Arms {
			n.Arms[i].Body = o.optimizeStmts(n.Arms[i].Body)
		}
		return []Stmt{n}
		case *UnsafeStmt:
		n.Body = o.optimizeStmts(n.Body)
		return []Stmt{n}
	}
	return []Stmt{s}
}

// foldExpr constant-folds e bottom-up, including the short-circuit
// identities `true || x` / `false && x` (drop x) and `false || x` /
// `true && x` (become x).
func (o *Optimizer) foldExpr(e Expr) Expr {
	switch n := e.(type) {
		case *BinaryExpr:
		n.Left = o.foldExpr(n.Left)
		n.Right = o.foldExpr(n.Right)
		return o.foldBinary(n)
		case *UnaryExpr:
		n.Operand = o.foldExpr(n.Operand)
		return o.foldUnary(n)
		case *CallExpr:
		n.Callee = o.foldExpr(n.Callee)
		for i := range n.Args {
			n.Args[i] = o.foldExpr(n.Args[i])
		}
		return n
		case *IndexExpr:
		n.Array = o.foldExpr(n.Array)
		n.Index = o.foldExpr(n.Index)
		return n
		case *FieldAccessExpr:
		n.Object = o.foldExpr(n.Object)
		return n
		case *ReferenceExpr:
		n.Inner = o.foldExpr(n.Inner)
		return n
		case *DerefExpr:
		n.Inner = o.foldExpr(n.Inner)
		return n
		case *QuestionExpr:
		n.Inner = o.foldExpr(n.Inner)
		return n
		case *AwaitExpr:
		n.Inner = o.foldExpr(n.Inner)
		return n
		case *StructLiteralExpr:
		for i := range n.Fields {
			n.Fields[i].Value = o.foldExpr(n.Fields[i].Value)
		}
		return n
		case *ArrayLiteralExpr:
		for i := range n.Elems {
			n.Elems[i] = o.foldExpr(n.Elems[i])
		}
		return n
		case *ArrayRepeatExpr:
		n.Value = o.foldExpr(n.Value)
		n.Count = o.foldExpr(n.Count)
		return n
	}
	return e
}

func (o *Optimizer) foldBinary(n *BinaryExpr) Expr {
	if b, ok := n.Left.(*LiteralExpr); ok && b.Kind == LitBool {
		switch n.Op {
			case OpOr:
			if b.Bool {
				return &LiteralExpr{Kind: LitBool, Bool: true, sp: n.sp}
			}
			return n.Right
			case OpAnd:
			if !b.Bool {
				return &LiteralExpr{Kind: LitBool, Bool: false, sp: n.sp}
			}
			return n.Right
		}
	}

	left, lok := n.Left.(*LiteralExpr)
	right, rok := n.Right.(*LiteralExpr)
	if !lok || !rok {
		return n
	}

	switch n.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		if left.Kind != LitInt || right.Kind != LitInt {
			return n
		}
		var v int64
		switch n.Op {
			case OpAdd:
			v = left.Int + right.Int
			case OpSub:
			v = left.Int - right.Int
			case OpMul:
			v = left.Int * right.Int
			case OpDiv:
			if right.Int == 0 {
				return n
			}
			v = left.Int / right.Int
			case OpMod:
			if right.Int == 0 {
				return n
			}
			v = left.Int % right.Int
		}
		return &LiteralExpr{Kind: LitInt, Int: v, sp: n.sp}
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if left.Kind != right.Kind {
			return n
		}
		var result bool
		switch left.Kind {
			case LitInt:
			result = compareInt(left.Int, right.Int, n.Op)
			case LitBool:
			if n.Op == OpEq {
				result = left.Bool == right.Bool
			} else if n.Op == OpNe {
				result = left.Bool != right.Bool
			} else {
				return n
			}
			case LitString:
			if n.Op == OpEq {
				result = left.Str == right.Str
			} else if n.Op == OpNe {
				result = left.Str != right.Str
			} else {
				return n
			}
			default:
			return n
		}
		return &LiteralExpr{Kind: LitBool, Bool: result, sp: n.sp}
		case OpAnd:
		return &LiteralExpr{Kind: LitBool, Bool: left.Bool && right.Bool, sp: n.sp}
		case OpOr:
		return &LiteralExpr{Kind: LitBool, Bool: left.Bool || right.Bool, sp: n.sp}
	}
	return n
}

func compareInt(a, b int64, op BinOp) bool {
	switch op {
		case OpEq:
		return a == b
		case OpNe:
		return a != b
		case OpLt:
		return a < b
		case OpLe:
		return a <= b
		case OpGt:
		return a > b
		case OpGe:
		return a >= b
	}
	return false
}

func (o *Optimizer) foldUnary(n *UnaryExpr) Expr {
	lit, ok := n.Operand.(*LiteralExpr)
	if !ok {
		return n
	}
	switch n.Op {
		case OpNeg:
		if lit.Kind != LitInt {
			return n
		}
		return &LiteralExpr{Kind: LitInt, Int: -lit.Int, sp: n.sp}
		case OpNot:
		if lit.Kind != LitBool {
			return n
		}
		return &LiteralExpr{Kind: LitBool, Bool: !lit.Bool, sp: n.sp}
	}
	return n
}
