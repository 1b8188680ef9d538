package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant 5 — a type alias is fully transparent to the checker: code
// written against the alias and code written against its expansion are
// interchangeable.
func TestAliasTransparencyAcceptsUnderlyingType(t *testing.T) {
	src := `
type Meters = i32;
fn distance() -> Meters { return 10; }
fn main() { let m: i32 = distance(); print_int(m); }
`
	_, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
}

func TestAliasTransparencyRoundTripsThroughCalls(t *testing.T) {
	src := `
type Meters = i32;
fn add_meters(a: Meters, b: i32) -> Meters { return a + b; }
fn main() { print_int(add_meters(1, 2)); }
`
	_, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
}

func TestAliasSelfReferenceRejected(t *testing.T) {
	src := `type A = A;`
	_, err := CompileSource(src, NewConfig())
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindTypeMismatch, diag.Kind)
}

// Inherent methods win over trait-provided ones with the same name.
func TestInherentMethodShadowsTraitMethod(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
trait Describe { fn describe() -> i32; }
impl Describe for Point { fn describe() -> i32 { return 0; } }
impl Point { fn describe() -> i32 { return 1; } }
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.describe()); }
`
	_, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
}

// A trait impl that omits a method with no default body is rejected.
func TestTraitImplMissingMethodRejected(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
trait Describe { fn describe() -> i32; }
impl Describe for Point {}
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.describe()); }
`
	_, err := CompileSource(src, NewConfig())
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindTraitNotImplemented, diag.Kind)
}

// A trait method with a default body need not be reimplemented.
func TestTraitImplInheritsDefaultMethod(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
trait Describe { fn describe() -> i32 { return 7; } }
impl Describe for Point {}
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.describe()); }
`
	_, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
}

// Calling a method present on two trait impls with no inherent impl to
// prefer is ambiguous.
func TestAmbiguousTraitMethodRejected(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
trait A { fn tag() -> i32; }
trait B { fn tag() -> i32; }
impl A for Point { fn tag() -> i32 { return 1; } }
impl B for Point { fn tag() -> i32 { return 2; } }
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.tag()); }
`
	_, err := CompileSource(src, NewConfig())
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindAmbiguousMethod, diag.Kind)
}

// Calling a struct method with the wrong argument count is rejected.
func TestMethodCallArgCountMismatchRejected(t *testing.T) {
	src := `
struct Point { x: i32, y: i32 }
impl Point { fn shift(dx: i32) -> i32 { return dx; } }
fn main() { let p = Point { x: 1, y: 2 }; print_int(p.shift(1, 2)); }
`
	_, err := CompileSource(src, NewConfig())
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindArgCountMismatch, diag.Kind)
}

// A generic struct instantiated through two distinct field types both
// get recorded as separate monomorphizations.
func TestGenericStructInstantiationsAreDistinct(t *testing.T) {
	src := `
struct Box<T> { value: T }
fn main() { let a = Box { value: 1 }; let b = Box { value: "x" }; print_int(a.value); print(b.value); }
`
	res, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
	insts := res.Checker.Instantiations()
	var count int
	for _, inst := range insts {
		if inst.Name == "Box" {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 2)
}

// A generic function body is checked against each concrete instantiation,
// not once against bare type-parameter placeholders: `+` is legal for i32
// so this must compile even though T itself supports no operators.
func TestGenericFunctionBodyCheckedPerInstantiation(t *testing.T) {
	src := `
fn double<T>(x: T) -> T { return x + x; }
fn main() { print_int(double(21)); }
`
	_, err := CompileSource(src, NewConfig())
	require.NoError(t, err)
}

// A type parameter that appears only in the return position, never in an
// argument, cannot be inferred from a call with no explicit type argument.
func TestUninferredTypeParamRejected(t *testing.T) {
	src := `
fn make<T>() -> T { return 0; }
fn main() { make(); }
`
	_, err := CompileSource(src, NewConfig())
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindUninferredTypeParam, diag.Kind)
}
