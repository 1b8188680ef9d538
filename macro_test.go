package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacroExpansionSubstitutesSingleCapture(t *testing.T) {
	src := `
macro double($x:expr) => { $x + $x }
fn main() { print_int(double!(21)); }
`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	err = NewMacroExpander(prog).ExpandProgram(prog)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	call := exprStmtCall(t, fn.Body[0])
	bin, ok := call.Args[0].(*BinaryExpr)
	require.True(t, ok, "expected double!(21) to expand to a BinaryExpr")
	assert.Equal(t, OpAdd, bin.Op)
	left, ok := bin.Left.(*LiteralExpr)
	require.True(t, ok)
	assert.EqualValues(t, 21, left.Int)
}

func TestMacroExpansionRejectsUnknownMacro(t *testing.T) {
	src := `fn main() { nope!(1); }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	err = NewMacroExpander(prog).ExpandProgram(prog)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindMacroMatchFailure, diag.Kind)
}

func TestMacroExpansionLeavesMacroFreeProgramUnchanged(t *testing.T) {
	src := `fn main() { print_int(1 + 2); }`
	prog, err := ParseSource(src)
	require.NoError(t, err)
	err = NewMacroExpander(prog).ExpandProgram(prog)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	call := exprStmtCall(t, fn.Body[0])
	_, ok := call.Args[0].(*BinaryExpr)
	assert.True(t, ok)
}

func findFunction(t *testing.T, prog *Program, name string) *Function {
	t.Helper()
	for _, item := range prog.Items {
		if fn, ok := item.(*Function); ok && fn.NameV == name {
			return fn
		}
	}
	t.Fatalf("no function named %q", name)
	return nil
}

func exprStmtCall(t *testing.T, s Stmt) *CallExpr {
	t.Helper()
	es, ok := s.(*ExprStmt)
	require.True(t, ok)
	call, ok := es.Expr.(*CallExpr)
	require.True(t, ok)
	return call
}
