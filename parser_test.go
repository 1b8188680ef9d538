package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// excerptFor slices src by a span's byte cursors, the same way a
// diagnostic reporter would when quoting the offending code.
func excerptFor(src string, sp Span) string {
	return src[sp.Start.Cursor:sp.End.Cursor]
}

// Invariant 1 — every node's span's excerpt from the source text matches
// what the node actually represents.
func TestParserSpanFidelityFunction(t *testing.T) {
	src := `fn add(a: i32, b: i32) -> i32 { return a + b; }`
	prog, err := ParseSource(src)
	require.NoError(t, err)
	require.Len(t, prog.Items, 1)

	fn, ok := prog.Items[0].(*Function)
	require.True(t, ok)
	assert.Equal(t, src, excerptFor(src, fn.Span()))
}

func TestParserSpanFidelityBinaryExpr(t *testing.T) {
	src := `fn main() { let x = 1 + 2; }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	let, ok := fn.Body[0].(*LetStmt)
	require.True(t, ok)

	bin, ok := let.Init.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "1 + 2", excerptFor(src, bin.Span()))
	assert.Equal(t, "1", excerptFor(src, bin.Left.Span()))
	assert.Equal(t, "2", excerptFor(src, bin.Right.Span()))
}

func TestParserSpanFidelityCallExpr(t *testing.T) {
	src := `fn main() { print_int(40 + 2); }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	call := exprStmtCall(t, fn.Body[0])
	assert.Equal(t, "print_int(40 + 2)", excerptFor(src, call.Span()))
}

func TestParserSpanFidelityStructLiteral(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
fn main() { let p = Point { x: 1, y: 2 }; }
`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	let, ok := fn.Body[0].(*LetStmt)
	require.True(t, ok)
	lit, ok := let.Init.(*StructLiteralExpr)
	require.True(t, ok)
	assert.Equal(t, "Point { x: 1, y: 2 }", excerptFor(src, lit.Span()))
}

func TestParserSpanFidelityMatchArms(t *testing.T) {
	src := `
enum Color { Red, Green }
fn main() { let c = Color::Red; match c { Color::Red => print("r"), Color::Green => print("g") } }
`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	var m *MatchStmt
	for _, s := range fn.Body {
		if ms, ok := s.(*MatchStmt); ok {
			m = ms
		}
	}
	require.NotNil(t, m)
	require.Len(t, m.Arms, 2)
	assert.Equal(t, `Color::Red => print("r")`, excerptFor(src, m.Arms[0].Span()))
	assert.Equal(t, `Color::Green => print("g")`, excerptFor(src, m.Arms[1].Span()))
}

// A span's Start always precedes or equals its End in cursor order, and a
// parent node's span always fully covers each of its children's spans.
func TestParserSpanNestingIsConsistent(t *testing.T) {
	src := `fn main() { let x = (1 + 2) * 3; }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	fn := findFunction(t, prog, "main")
	let, ok := fn.Body[0].(*LetStmt)
	require.True(t, ok)
	outer, ok := let.Init.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpMul, outer.Op)

	inner, ok := outer.Left.(*BinaryExpr)
	require.True(t, ok)

	assert.LessOrEqual(t, outer.Span().Start.Cursor, inner.Span().Start.Cursor)
	assert.GreaterOrEqual(t, outer.Span().End.Cursor, inner.Span().End.Cursor)
}
