package pdc

import (
	"fmt"
	"sort"
	"strings"
)

// Backend is the common interface the C99 and LLVM IR emitters satisfy,
// selected by emit.llvm (see SelectBackend). Grounded on gen_go.go /
// gen_py.go / gen_ts.go each exposing the same emit-a-tree-of-AstNode
// shape behind whichever target language they target; here the two
// targets are C99 text and LLVM IR text instead.
type Backend interface {
	Emit(prog *Program, checker *Checker) (string, error)
}

type cBackend struct{}

func (cBackend) Emit(prog *Program, checker *Checker) (string, error) { return EmitC(prog, checker) }

type llvmBackend struct{}

func (llvmBackend) Emit(prog *Program, checker *Checker) (string, error) {
	return EmitLLVM(prog, checker)
}

// SelectBackend picks the emitter named by cfg's emit.llvm flag.
func SelectBackend(cfg *Config) Backend {
	if cfg.GetBool("emit.llvm") {
		return llvmBackend{}
	}
	return cBackend{}
}

// llvmEmitter lowers a type-checked, monomorphized Program straight to
// textual LLVM IR, walking the same concrete-type and instantiation
// tables as cEmitter but targeting `%name = type {...}`
// struct definitions and `define` function bodies instead of C
// declarations.
type llvmEmitter struct {
	out *outputWriter
	checker *Checker

	concreteStructs []concreteRecord
	concreteEnums []concreteRecord

	strings []string // string-literal constant pool, index == @.str.N suffix
	nextReg int
}

// EmitLLVM runs the LLVM IR backend over prog using checker's completed
// signature tables and monomorphization registry.
func EmitLLVM(prog *Program, checker *Checker) (string, error) {
	e := &llvmEmitter{out: newOutputWriter("  "), checker: checker}
	e.collectConcreteTypes()

	e.out.writel(`; generated by pdc -emit-llvm`)
	e.out.writel(`target triple = "x86_64-unknown-linux-gnu"`)
	e.out.writel("")

	if err := e.emitTypeDecls(); err != nil {
		return "", err
	}
	if err := e.emitFunctions(prog); err != nil {
		return "", err
	}
	if err := e.emitMain(prog); err != nil {
		return "", err
	}
	e.emitStringPool()
	return e.out.buffer.String(), nil
}

func (e *llvmEmitter) collectConcreteTypes() {
	for name, st := range e.checker.structs {
		if !st.IsGeneric() {
			e.concreteStructs = append(e.concreteStructs, concreteRecord{cName: sanitizeCIdent(name), source: st})
		}
	}
	for name, en := range e.checker.enums {
		if !en.IsGeneric() {
			e.concreteEnums = append(e.concreteEnums, concreteRecord{cName: sanitizeCIdent(name), source: en})
		}
	}
	for _, inst := range e.checker.Instantiations() {
		if st, ok := e.checker.structs[inst.Name]; ok {
			subst := substMap(st.TypeParams, inst.Args)
			e.concreteStructs = append(e.concreteStructs, concreteRecord{cName: sanitizeCIdent(inst.MangledName), subst: subst, source: st})
		}
		if en, ok := e.checker.enums[inst.Name]; ok {
			subst := substMap(en.TypeParams, inst.Args)
			e.concreteEnums = append(e.concreteEnums, concreteRecord{cName: sanitizeCIdent(inst.MangledName), subst: subst, source: en})
		}
	}
	sort.Slice(e.concreteStructs, func(i, j int) bool { return e.concreteStructs[i].cName < e.concreteStructs[j].cName })
	sort.Slice(e.concreteEnums, func(i, j int) bool { return e.concreteEnums[i].cName < e.concreteEnums[j].cName })
}

// emitTypeDecls emits one named struct type per concrete struct, and one
// tagged-union-shaped struct per concrete enum: an i32 tag field
// followed by a byte array sized to the widest variant's payload, since
// LLVM has no native union type and every variant has to alias the same
// storage — the same tagged-union lowering genc.go does, expressed
// in LLVM's structural type system instead of C's `union` keyword.
func (e *llvmEmitter) emitTypeDecls() error {
	for _, r := range e.concreteStructs {
		st := r.source.(*Struct)
		var fields []string
		tparams := typeParamSet(st.TypeParams)
		for _, f := range st.Fields {
			ty, err := e.checker.resolveTypeExpr(f.Type, tparams)
			if err != nil {
				return err
			}
			if r.subst != nil {
				ty = substituteType(ty, r.subst)
			}
			fields = append(fields, e.lTypeName(ty))
		}
		if len(fields) == 0 {
			fields = []string{"i8"}
		}
		e.out.writel(fmt.Sprintf("%%%s = type { %s }", r.cName, strings.Join(fields, ", ")))
	}
	for _, r := range e.concreteEnums {
		en := r.source.(*Enum)
		width := e.widestPayload(en, r.subst)
		e.out.writel(fmt.Sprintf("%%%s = type { i32, [%d x i8] }", r.cName, width))
	}
	e.out.writel("")
	return nil
}

// widestPayload sizes an enum's largest variant payload, in bytes, by
// counting every field as 8 bytes regardless of its type. That is an
// upper bound for payloads made of scalars; an array or struct field
// wider than 8 bytes is not given its full size.
func (e *llvmEmitter) widestPayload(en *Enum, subst map[string]Type) int {
	widest := 0
	for _, v := range en.Variants {
		n := len(v.Tuple) + len(v.Fields)
		if n*8 > widest {
			widest = n * 8
		}
	}
	return widest
}

// lTypeName renders a resolved Type as an LLVM IR type spelling.
func (e *llvmEmitter) lTypeName(t Type) string {
	switch n := t.(type) {
		case UnitT:
		return "void"
		case BoolT:
		return "i1"
		case IntT:
		switch n.Width {
			case I32, U32:
			return "i32"
			default:
			return "i64"
		}
		case StringT:
		return "i8*"
		case ArrayT:
		if n.Size < 0 {
			return e.lTypeName(n.Elem) + "*"
		}
		return fmt.Sprintf("[%d x %s]", n.Size, e.lTypeName(n.Elem))
		case ReferenceT:
		return e.lTypeName(n.Inner) + "*"
		case NamedT:
		if len(n.Args) == 0 {
			return "%" + sanitizeCIdent(n.Name)
		}
		return "%" + sanitizeCIdent(n.Name+"_"+mangleTypeArgs(n.Args))
		case FutureT:
		return e.lTypeName(n.Output)
		default:
		return "i64"
	}
}

func (e *llvmEmitter) emitFunctions(prog *Program) error {
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Function:
			if it.IsGeneric() || it.NameV == "main" {
				continue
			}
			if err := e.emitFunction("pd_"+sanitizeCIdent(it.NameV), it, nil); err != nil {
				return err
			}
			case *Impl:
			target := targetName(it.TargetType)
			for _, m := range it.Methods {
				if m.IsGeneric() {
					continue
				}
				if err := e.emitFunction(methodCName(target, m.NameV), m, nil); err != nil {
					return err
				}
			}
		}
	}
	for _, inst := range e.checker.Instantiations() {
		if fn, ok := e.checker.fns[inst.Name]; ok {
			subst := substMap(fn.TypeParams, inst.Args)
			if err := e.emitFunction("pd_"+sanitizeCIdent(inst.MangledName), fn, subst); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitFunction emits a `define` starting at an `entry` block; each
// parameter and `let` gets its own i64 `alloca` at the point it is bound,
// and if/while/for/match statements add their own labelled blocks.
// Signatures follow the same i64 scalar convention as call sites and
// parameter stores: every non-Unit parameter and return is `i64`, and a
// Unit return is `void`.
func (e *llvmEmitter) emitFunction(name string, fn *Function, subst map[string]Type) error {
	sigTy := func(t Type) string {
		if _, ok := t.(UnitT); ok {
			return "void"
		}
		return "i64"
	}
	tparams := typeParamSet(fn.TypeParams)
	retTy := Type(UnitT{})
	if fn.Return != nil {
		t, err := e.checker.resolveTypeExpr(fn.Return, tparams)
		if err != nil {
			return err
		}
		retTy = t
	}
	if subst != nil {
		retTy = substituteType(retTy, subst)
	}

	var params []string
	for i, p := range fn.Params {
		pt, err := e.checker.resolveTypeExpr(p.Type, tparams)
		if err != nil {
			return err
		}
		if subst != nil {
			pt = substituteType(pt, subst)
		}
		params = append(params, fmt.Sprintf("%s %%arg%d", sigTy(pt), i))
	}

	e.out.writel(fmt.Sprintf("define %s @%s(%s) {", sigTy(retTy), name, strings.Join(params, ", ")))
	e.out.indent()
	e.out.writeil("entry:")
	fe := &llvmFuncEmitter{llvmEmitter: e, subst: subst, locals: map[string]string{}, types: map[string]Type{}}
	for i, p := range fn.Params {
		reg := fe.freshReg()
		fe.locals[p.Name] = reg
		pt, err := e.checker.resolveTypeExpr(p.Type, tparams)
		if err == nil {
			if subst != nil {
				pt = substituteType(pt, subst)
			}
			fe.types[p.Name] = pt
		}
		e.out.writeil(fmt.Sprintf("%s = alloca i64", reg))
		e.out.writeil(fmt.Sprintf("store i64 %%arg%d, i64* %s", i, reg))
	}
	fe.emitStmts(fn.Body)
	if _, isUnit := retTy.(UnitT); isUnit {
		e.out.writeil("ret void")
	} else {
		e.out.writeil(fmt.Sprintf("ret %s zeroinitializer", sigTy(retTy)))
	}
	e.out.unindent()
	e.out.writel("}")
	e.out.writel("")
	return nil
}

func (e *llvmEmitter) emitMain(prog *Program) error {
	for _, item := range prog.Items {
		if fn, ok := item.(*Function); ok && fn.NameV == "main" {
			e.out.writel("define i32 @main() {")
			e.out.indent()
			e.out.writeil("entry:")
			fe := &llvmFuncEmitter{llvmEmitter: e, locals: map[string]string{}, types: map[string]Type{}}
			fe.emitStmts(fn.Body)
			e.out.writeil("ret i32 0")
			e.out.unindent()
			e.out.writel("}")
			return nil
		}
	}
	e.out.writel("define i32 @main() {")
	e.out.indent()
	e.out.writeil("entry:")
	e.out.writeil("ret i32 0")
	e.out.unindent()
	e.out.writel("}")
	return nil
}

func (e *llvmEmitter) emitStringPool() {
	if len(e.strings) == 0 {
		return
	}
	e.out.writel("")
	for i, s := range e.strings {
		e.out.writel(fmt.Sprintf("@.str.%d = private unnamed_addr constant [%d x i8] c\"%s\\00\"", i, len(s)+1, escapeLiteral(s)))
	}
}

func (e *llvmEmitter) internString(s string) int {
	e.strings = append(e.strings, s)
	return len(e.strings) - 1
}

// funcCName mirrors cEmitter's: a monomorphized call resolves to its
// recorded mangled specialization, everything else to its plain name.
func (e *llvmEmitter) funcCName(name string) string {
	if fn, ok := e.checker.fns[name]; ok && fn.IsGeneric() {
		for _, inst := range e.checker.Instantiations() {
			if inst.Name == name {
				return "pd_" + sanitizeCIdent(inst.MangledName)
			}
		}
	}
	return "pd_" + sanitizeCIdent(name)
}

// llvmFuncEmitter lowers one function body's statements to IR
// instructions, tracking each source-level local's backing alloca
// register the way a minimal, non-optimizing frontend would before a
// mem2reg pass runs.
type llvmFuncEmitter struct {
	*llvmEmitter
	subst map[string]Type
	locals map[string]string

	// types records the resolved Type behind each local's alloca, for
	// the handful of constructs (a for-loop's array trip count) that
	// need more than the i64-everywhere treatment the rest of this
	// naive backend gets away with.
	types map[string]Type
}

func (fe *llvmFuncEmitter) freshReg() string {
	fe.nextReg++
	return fmt.Sprintf("%%r%d", fe.nextReg)
}

func (fe *llvmFuncEmitter) emitStmts(stmts []Stmt) {
	for _, s := range stmts {
		fe.emitStmt(s)
	}
}

func (fe *llvmFuncEmitter) emitStmt(s Stmt) {
	switch n := s.(type) {
		case *ExprStmt:
		fe.lowerExpr(n.Expr)
		case *ReturnStmt:
		if n.Value != nil {
			fe.lowerExpr(n.Value)
		}
		case *LetStmt:
		reg := fe.freshReg()
		fe.locals[n.Name] = reg
		if n.Annotation != nil {
			if t, err := fe.checker.resolveTypeExpr(n.Annotation, nil); err == nil {
				if fe.subst != nil {
					t = substituteType(t, fe.subst)
				}
				fe.types[n.Name] = t
			}
		}
		fe.out.writeil(fmt.Sprintf("%s = alloca i64", reg))
		val := fe.lowerExpr(n.Init)
		fe.out.writeil(fmt.Sprintf("store i64 %s, i64* %s", val, reg))
		case *AssignStmt:
		if id, ok := n.Target.(*IdentExpr); ok {
			if reg, ok := fe.locals[id.Name]; ok {
				val := fe.lowerExpr(n.Value)
				fe.out.writeil(fmt.Sprintf("store i64 %s, i64* %s", val, reg))
			}
		}
		case *IfStmt:
		cond := fe.lowerExpr(n.Cond)
		fe.out.writeil(fmt.Sprintf("br i1 %s, label %%if.then, label %%if.else", cond))
		fe.out.writeil("if.then:")
		fe.out.indent()
		fe.emitStmts(n.Then)
		fe.out.writeil("br label %if.end")
		fe.out.unindent()
		fe.out.writeil("if.else:")
		fe.out.indent()
		fe.emitStmts(n.Else)
		fe.out.writeil("br label %if.end")
		fe.out.unindent()
		fe.out.writeil("if.end:")
		case *WhileStmt:
		fe.out.writeil("br label %while.cond")
		fe.out.writeil("while.cond:")
		cond := fe.lowerExpr(n.Cond)
		fe.out.writeil(fmt.Sprintf("br i1 %s, label %%while.body, label %%while.end", cond))
		fe.out.writeil("while.body:")
		fe.out.indent()
		fe.emitStmts(n.Body)
		fe.out.writeil("br label %while.cond")
		fe.out.unindent()
		fe.out.writeil("while.end:")
		case *ForStmt:
		fe.emitForStmt(n)
		case *BreakStmt:
		fe.out.writeil("br label %while.end")
		case *ContinueStmt:
		fe.out.writeil("br label %while.cond")
		case *MatchStmt:
		fe.emitMatchStmt(n)
		case *UnsafeStmt:
		fe.emitStmts(n.Body)
	}
}

// emitForStmt lowers `for x in iterable {...}` into the same
// br/label-driven loop shape WhileStmt uses (and shares its while.cond/
// while.body/while.end labels, so break/continue inside a for body
// still resolve to the right block): a range iterable counts from its
// start to its end, binding x to the counter itself; any other
// iterable is an array counted over its statically known length,
// binding x to a zeroed placeholder the same way every other
// struct-shaped access in this naive i64-scalar backend does.
func (fe *llvmFuncEmitter) emitForStmt(n *ForStmt) {
	reg := fe.freshReg()
	fe.locals[n.Binding] = reg
	fe.out.writeil(fmt.Sprintf("%s = alloca i64", reg))

	if rng, ok := n.Iterable.(*RangeExpr); ok {
		start := fe.lowerExpr(rng.Start)
		fe.out.writeil(fmt.Sprintf("store i64 %s, i64* %s", start, reg))
		fe.out.writeil("br label %while.cond")
		fe.out.writeil("while.cond:")
		cur := fe.freshReg()
		fe.out.writeil(fmt.Sprintf("%s = load i64, i64* %s", cur, reg))
		end := fe.lowerExpr(rng.End)
		cond := fe.freshReg()
		fe.out.writeil(fmt.Sprintf("%s = icmp slt i64 %s, %s", cond, cur, end))
		fe.out.writeil(fmt.Sprintf("br i1 %s, label %%while.body, label %%while.end", cond))
		fe.out.writeil("while.body:")
		fe.out.indent()
		fe.emitStmts(n.Body)
		bump := fe.freshReg()
		next := fe.freshReg()
		fe.out.writeil(fmt.Sprintf("%s = load i64, i64* %s", bump, reg))
		fe.out.writeil(fmt.Sprintf("%s = add i64 %s, 1", next, bump))
		fe.out.writeil(fmt.Sprintf("store i64 %s, i64* %s", next, reg))
		fe.out.writeil("br label %while.cond")
		fe.out.unindent()
		fe.out.writeil("while.end:")
		return
	}

	length := 0
	if id, ok := n.Iterable.(*IdentExpr); ok {
		if t, ok := fe.types[id.Name]; ok {
			if at, ok := unwrapRef(t).(ArrayT); ok && at.Size >= 0 {
				length = int(at.Size)
			}
		}
	}

	idxReg := fe.freshReg()
	fe.out.writeil(fmt.Sprintf("%s = alloca i64", idxReg))
	fe.out.writeil(fmt.Sprintf("store i64 0, i64* %s", idxReg))
	fe.out.writeil(fmt.Sprintf("store i64 0, i64* %s", reg))
	fe.out.writeil("br label %while.cond")
	fe.out.writeil("while.cond:")
	idxVal := fe.freshReg()
	fe.out.writeil(fmt.Sprintf("%s = load i64, i64* %s", idxVal, idxReg))
	cond := fe.freshReg()
	fe.out.writeil(fmt.Sprintf("%s = icmp slt i64 %s, %d", cond, idxVal, length))
	fe.out.writeil(fmt.Sprintf("br i1 %s, label %%while.body, label %%while.end", cond))
	fe.out.writeil("while.body:")
	fe.out.indent()
	fe.emitStmts(n.Body)
	nextIdx := fe.freshReg()
	fe.out.writeil(fmt.Sprintf("%s = add i64 %s, 1", nextIdx, idxVal))
	fe.out.writeil(fmt.Sprintf("store i64 %s, i64* %s", nextIdx, idxReg))
	fe.out.writeil("br label %while.cond")
	fe.out.unindent()
	fe.out.writeil("while.end:")
}

// emitMatchStmt lowers a match statement to a real `switch` over the
// scrutinee, one case per enum variant tag (the variant's position in
// its declaration, the same numbering genc.go's C backend assigns),
// instead of running every arm unconditionally.
func (fe *llvmFuncEmitter) emitMatchStmt(n *MatchStmt) {
	scrut := fe.lowerExpr(n.Scrutinee)
	var cases []string
	for i, arm := range n.Arms {
		label := fmt.Sprintf("match.arm%d", i)
		if ep, ok := arm.Pattern.(*EnumPattern); ok {
			if tag, ok := fe.variantTag(ep.Enum, ep.Variant); ok {
				cases = append(cases, fmt.Sprintf("i64 %d, label %%%s", tag, label))
			}
		}
	}
	fe.out.writeil(fmt.Sprintf("switch i64 %s, label %%match.default [ %s ]", scrut, strings.Join(cases, " ")))
	for i, arm := range n.Arms {
		fe.out.writeil(fmt.Sprintf("match.arm%d:", i))
		fe.out.indent()
		fe.emitStmts(arm.Body)
		fe.out.writeil("br label %match.end")
		fe.out.unindent()
	}
	fe.out.writeil("match.default:")
	fe.out.indent()
	fe.out.writeil("br label %match.end")
	fe.out.unindent()
	fe.out.writeil("match.end:")
}

// variantTag resolves enumName::variantName to its tag index, the
// position the variant was declared at.
func (fe *llvmFuncEmitter) variantTag(enumName, variantName string) (int, bool) {
	en, ok := fe.checker.enums[enumName]
	if !ok {
		return 0, false
	}
	for i, v := range en.Variants {
		if v.Name == variantName {
			return i, true
		}
	}
	return 0, false
}

// lowerExpr emits whatever instructions an expression needs and returns
// the SSA value (register name or immediate) holding its result.
func (fe *llvmFuncEmitter) lowerExpr(e Expr) string {
	switch n := e.(type) {
		case *LiteralExpr:
		switch n.Kind {
			case LitInt:
			return fmt.Sprintf("%d", n.Int)
			case LitBool:
			if n.Bool {
				return "1"
			}
			return "0"
			case LitString:
			idx := fe.internString(n.Str)
			return fmt.Sprintf("getelementptr inbounds ([%d x i8], [%d x i8]* @.str.%d, i64 0, i64 0)", len(n.Str)+1, len(n.Str)+1, idx)
		}
		case *IdentExpr:
		if reg, ok := fe.locals[n.Name]; ok {
			loaded := fe.freshReg()
			fe.out.writeil(fmt.Sprintf("%s = load i64, i64* %s", loaded, reg))
			return loaded
		}
		return "0"
		case *BinaryExpr:
		l := fe.lowerExpr(n.Left)
		r := fe.lowerExpr(n.Right)
		dst := fe.freshReg()
		fe.out.writeil(fmt.Sprintf("%s = %s i64 %s, %s", dst, llvmBinOp(n.Op), l, r))
		return dst
		case *UnaryExpr:
		v := fe.lowerExpr(n.Operand)
		dst := fe.freshReg()
		if n.Op == OpNot {
			fe.out.writeil(fmt.Sprintf("%s = xor i64 %s, 1", dst, v))
		} else {
			fe.out.writeil(fmt.Sprintf("%s = sub i64 0, %s", dst, v))
		}
		return dst
		case *CallExpr:
		if id, ok := n.Callee.(*IdentExpr); ok {
			var args []string
			for _, a := range n.Args {
				args = append(args, "i64 "+fe.lowerExpr(a))
			}
			dst := fe.freshReg()
			fe.out.writeil(fmt.Sprintf("%s = call i64 @%s(%s)", dst, fe.funcCName(id.Name), strings.Join(args, ", ")))
			return dst
		}
		return "0"
		case *FieldAccessExpr, *IndexExpr, *StructLiteralExpr, *EnumCtorExpr, *ReferenceExpr, *DerefExpr, *QuestionExpr, *AwaitExpr, *ArrayLiteralExpr, *ArrayRepeatExpr, *RangeExpr, *MacroInvokeExpr:
		return "0"
	}
	return "0"
}

// llvmBinOp maps a source binary operator to its LLVM integer
// instruction/predicate mnemonic.
func llvmBinOp(op BinOp) string {
	switch op {
		case OpAdd:
		return "add"
		case OpSub:
		return "sub"
		case OpMul:
		return "mul"
		case OpDiv:
		return "sdiv"
		case OpMod:
		return "srem"
		case OpEq:
		return "icmp eq"
		case OpNe:
		return "icmp ne"
		case OpLt:
		return "icmp slt"
		case OpLe:
		return "icmp sle"
		case OpGt:
		return "icmp sgt"
		case OpGe:
		return "icmp sge"
		case OpAnd:
		return "and"
		case OpOr:
		return "or"
		default:
		return "add"
	}
}
