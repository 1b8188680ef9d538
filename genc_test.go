package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileToC(t *testing.T, src string) string {
	t.Helper()
	res, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
	return res.Output
}

func TestEmitCIncludesRuntimePreambleAndMain(t *testing.T) {
	out := compileToC(t, `fn main() { print("hi"); }`)
	assert.Contains(t, out, "int main(void) {")
	assert.Contains(t, out, "__pd_print(")
}

func TestEmitCWithoutMainStillEmitsStub(t *testing.T) {
	out := compileToC(t, `fn helper() -> i32 { return 1; }`)
	assert.Contains(t, out, "int main(void) { return 0; }")
}

func TestEmitCEmitsStructAsTypedefStruct(t *testing.T) {
	out := compileToC(t, `
struct Point { x: i32, y: i32 }
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.x); }
`)
	assert.Contains(t, out, "typedef struct Point Point;")
	assert.Contains(t, out, "struct Point {")
}

func TestEmitCEmitsEnumAsTaggedUnion(t *testing.T) {
	out := compileToC(t, `
enum Color { Red, Green, Blue }
fn main() { let c = Color::Red; match c { Color::Red => print("r"), Color::Green => print("g"), Color::Blue => print("b") } }
`)
	assert.Contains(t, out, "Color_Tag")
	assert.Contains(t, out, "Color_Red,")
}

func TestEmitCSpecializesGenericFunctionPerInstantiation(t *testing.T) {
	out := compileToC(t, `
fn id<T>(x: T) -> T { return x; }
fn main() { print_int(id(1)); print(id("a")); }
`)
	assert.Contains(t, out, "pd_id_i32")
	assert.Contains(t, out, "pd_id_String")
}

func TestEmitCMethodCallUsesMangledReceiverName(t *testing.T) {
	out := compileToC(t, `
struct Counter { n: i32 }
impl Counter { fn get() -> i32 { return 1; } }
fn main() { let c = Counter { n: 0 }; print_int(c.get()); }
`)
	assert.Contains(t, out, "pd_Counter_get")
}

// A `for x in arr` loop counts over the array's declared length and
// binds x to each element, not the index and not the array's first
// value reinterpreted as a trip count.
func TestEmitCForLoopOverArrayBindsElementAndLength(t *testing.T) {
	out := compileToC(t, `
fn main() {
	let xs: [i32; 3] = [10, 20, 30];
	for x in xs { print_int(x); }
}
`)
	assert.Contains(t, out, "for (pd_i64 __pd_i_x = 0; __pd_i_x < 3; __pd_i_x++) {")
	assert.Contains(t, out, "pd_i32 x = (xs).items[__pd_i_x];")
}

// A `for x in a..b` loop counts from a to b, exclusive, binding x to
// the counter itself rather than indexing into anything.
func TestEmitCForLoopOverRangeCountsFromStartToEnd(t *testing.T) {
	out := compileToC(t, `
fn main() {
	for i in 0..5 { print_int(i); }
}
`)
	assert.Contains(t, out, "for (pd_i64 i = 0; i < 5; i++) {")
}
