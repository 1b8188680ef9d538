package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectAnalyzerTagsDirectIOCall(t *testing.T) {
	src := `fn greet() { print("hi"); }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	NewEffectAnalyzer(prog).Run()

	fn := findFunction(t, prog, "greet")
	assert.True(t, fn.Effects.Has(EffectIO))
	assert.False(t, fn.Effects.Has(EffectUnsafe))
}

func TestEffectAnalyzerPropagatesThroughCallGraph(t *testing.T) {
	src := `
fn inner() { print("hi"); }
fn outer() { inner(); }
`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	NewEffectAnalyzer(prog).Run()

	outer := findFunction(t, prog, "outer")
	assert.True(t, outer.Effects.Has(EffectIO), "outer should inherit inner's IO effect")
}

func TestEffectAnalyzerTagsUnsafeIntrinsic(t *testing.T) {
	src := `unsafe fn peek(p: i32) -> i32 { return raw_read(p); }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	NewEffectAnalyzer(prog).Run()

	fn := findFunction(t, prog, "peek")
	assert.True(t, fn.Effects.Has(EffectUnsafe))
}

func TestEffectAnalyzerTagsAsyncFunction(t *testing.T) {
	src := `async fn fetch() -> i32 { return 1; }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	NewEffectAnalyzer(prog).Run()

	fn := findFunction(t, prog, "fetch")
	assert.True(t, fn.Effects.Has(EffectAsync))
}

func TestEffectSetStringRendersEmptyBraces(t *testing.T) {
	var s EffectSet
	assert.Equal(t, "{}", s.String())
	assert.Equal(t, "{IO}", s.With(EffectIO).String())
}

func TestEffectAnalyzerLeavesPureFunctionEmpty(t *testing.T) {
	src := `fn add(a: i32, b: i32) -> i32 { return a + b; }`
	prog, err := ParseSource(src)
	require.NoError(t, err)

	NewEffectAnalyzer(prog).Run()

	fn := findFunction(t, prog, "add")
	assert.Equal(t, EffectSet(0), fn.Effects)
}
