package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAndOptimize(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := ParseSource(src)
	require.NoError(t, err)
	NewOptimizer().OptimizeProgram(prog)
	return prog
}

func mainLet(t *testing.T, prog *Program, idx int) *LetStmt {
	t.Helper()
	fn := findFunction(t, prog, "main")
	let, ok := fn.Body[idx].(*LetStmt)
	require.True(t, ok)
	return let
}

func TestOptimizerFoldsArithmetic(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { let x = 2 + 3 * 4; print_int(x); }`)
	lit, ok := mainLet(t, prog, 0).Init.(*LiteralExpr)
	require.True(t, ok)
	assert.EqualValues(t, 14, lit.Int)
}

func TestOptimizerFoldsComparison(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { let x = 3 < 4; print_int(1); }`)
	lit, ok := mainLet(t, prog, 0).Init.(*LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, LitBool, lit.Kind)
	assert.True(t, lit.Bool)
}

func TestOptimizerShortCircuitsOrTrue(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { let x = true || (1 == 2); print_int(1); }`)
	lit, ok := mainLet(t, prog, 0).Init.(*LiteralExpr)
	require.True(t, ok)
	assert.True(t, lit.Bool)
}

func TestOptimizerShortCircuitsAndFalse(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { let x = false && (1 == 2); print_int(1); }`)
	lit, ok := mainLet(t, prog, 0).Init.(*LiteralExpr)
	require.True(t, ok)
	assert.False(t, lit.Bool)
}

func TestOptimizerEliminatesDeadIfBranch(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { if false { print_int(1); } else { print_int(2); } }`)
	fn := findFunction(t, prog, "main")
	require.Len(t, fn.Body, 1)
	call := exprStmtCall(t, fn.Body[0])
	arg, ok := call.Args[0].(*LiteralExpr)
	require.True(t, ok)
	assert.EqualValues(t, 2, arg.Int)
}

func TestOptimizerDropsDeadWhileLoop(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { while false { print_int(1); } print_int(2); }`)
	fn := findFunction(t, prog, "main")
	require.Len(t, fn.Body, 1, "the dead while loop should have been dropped entirely")
	call := exprStmtCall(t, fn.Body[0])
	arg, ok := call.Args[0].(*LiteralExpr)
	require.True(t, ok)
	assert.EqualValues(t, 2, arg.Int)
}

func TestOptimizerLeavesDivisionByZeroUnfolded(t *testing.T) {
	prog := parseAndOptimize(t, `fn main() { let x = 1 / 0; print_int(x); }`)
	_, ok := mainLet(t, prog, 0).Init.(*BinaryExpr)
	assert.True(t, ok, "division by zero must not be folded away")
}

func TestOptimizerIsIdempotentOnDeadBranches(t *testing.T) {
	src := `fn main() { if true { print_int(1); } else { print_int(2); } }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	opt := NewOptimizer()
	opt.OptimizeProgram(prog)
	fn := findFunction(t, prog, "main")
	firstPass := len(fn.Body)

	opt.OptimizeProgram(prog)
	assert.Equal(t, firstPass, len(fn.Body))
}
