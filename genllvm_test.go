package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileToLLVM(t *testing.T, src string) string {
	t.Helper()
	cfg := NewConfig()
	cfg.SetBool("emit.llvm", true)
	res, err := CompileSource(src, cfg)
	require.NoError(t, err)
	return res.Output
}

func TestEmitLLVMIncludesTargetTripleAndMain(t *testing.T) {
	out := compileToLLVM(t, `fn main() { print_int(1); }`)
	assert.Contains(t, out, `target triple = "x86_64-unknown-linux-gnu"`)
	assert.Contains(t, out, "define i32 @main() {")
	assert.Contains(t, out, "ret i32 0")
}

func TestEmitLLVMWithoutMainStillDefinesStub(t *testing.T) {
	out := compileToLLVM(t, `fn helper() -> i32 { return 1; }`)
	assert.Contains(t, out, "define i32 @main() {")
}

func TestEmitLLVMEmitsStructAsNamedType(t *testing.T) {
	out := compileToLLVM(t, `
struct Point { x: i32, y: i32 }
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.x); }
`)
	assert.Contains(t, out, "%Point = type { i32, i32 }")
}

func TestEmitLLVMEmitsEnumAsTaggedUnionStruct(t *testing.T) {
	out := compileToLLVM(t, `
enum Color { Red, Green, Blue }
fn main() { let c = Color::Red; match c { Color::Red => print("r"), Color::Green => print("g"), Color::Blue => print("b") } }
`)
	assert.Contains(t, out, "%Color = type { i32,")
}

func TestEmitLLVMSpecializesGenericFunctionPerInstantiation(t *testing.T) {
	out := compileToLLVM(t, `
fn id<T>(x: T) -> T { return x; }
fn main() { print_int(id(1)); print(id("a")); }
`)
	assert.Contains(t, out, "@pd_id_i32(")
	assert.Contains(t, out, "@pd_id_String(")
}

func TestEmitLLVMFunctionDefinitionUsesPdPrefixedName(t *testing.T) {
	out := compileToLLVM(t, `fn add(a: i32, b: i32) -> i32 { return a + b; }
fn main() { print_int(add(1, 2)); }`)
	assert.Contains(t, out, "define i64 @pd_add(")
}

func TestEmitLLVMInternsStringLiteralsIntoConstantPool(t *testing.T) {
	out := compileToLLVM(t, `fn main() { print("hello"); }`)
	assert.Contains(t, out, "@.str.0 = private unnamed_addr constant [6 x i8] c\"hello\\00\"")
}

func TestEmitLLVMOmitsStringPoolWhenNoStringLiterals(t *testing.T) {
	out := compileToLLVM(t, `fn main() { print_int(1); }`)
	assert.NotContains(t, out, "@.str.")
}

// The optimizer is switched off so the constant `1 + 2` reaches the
// backend instead of being folded to 3 first.
func TestEmitLLVMArithmeticLowersToIntegerInstruction(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("emit.llvm", true)
	cfg.SetBool("pipeline.optimize", false)
	res, err := CompileSource(`fn main() { let x = 1 + 2; print_int(x); }`, cfg)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "= add i64")
}

func TestSelectBackendPicksLLVMWhenConfigured(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("emit.llvm", true)
	_, ok := SelectBackend(cfg).(llvmBackend)
	assert.True(t, ok)
}

// A for-loop over a range lowers to a real conditional branch loop, not
// a body that runs once with no surrounding control flow.
func TestEmitLLVMForLoopOverRangeEmitsBranchingLoop(t *testing.T) {
	out := compileToLLVM(t, `
fn main() {
	for i in 0..5 { print_int(i); }
}
`)
	assert.Contains(t, out, "while.cond:")
	assert.Contains(t, out, "while.body:")
	assert.Contains(t, out, "while.end:")
	assert.Contains(t, out, "icmp slt i64")
}

// A for-loop over a fixed-size array counts exactly its declared
// length, not once.
func TestEmitLLVMForLoopOverArrayCountsDeclaredLength(t *testing.T) {
	out := compileToLLVM(t, `
fn main() {
	let xs: [i32; 4] = [1, 2, 3, 4];
	for x in xs { print_int(x); }
}
`)
	assert.Contains(t, out, "icmp slt i64")
	assert.Contains(t, out, "4")
}

// A match statement lowers to a real switch dispatching on the
// scrutinee's tag, not every arm running unconditionally.
func TestEmitLLVMMatchEmitsSwitchDispatch(t *testing.T) {
	out := compileToLLVM(t, `
enum Color { Red, Green, Blue }
fn main() {
	let c = Color::Green;
	match c {
		Color::Red => print("r"),
		Color::Green => print("g"),
		Color::Blue => print("b"),
	}
}
`)
	assert.Contains(t, out, "switch i64")
	assert.Contains(t, out, "match.arm0:")
	assert.Contains(t, out, "match.arm1:")
	assert.Contains(t, out, "match.arm2:")
	assert.Contains(t, out, "match.default:")
}

func TestSelectBackendDefaultsToC(t *testing.T) {
	cfg := NewConfig()
	_, ok := SelectBackend(cfg).(cBackend)
	assert.True(t, ok)
}
