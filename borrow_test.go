package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkBorrows(t *testing.T, src string) error {
	t.Helper()
	prog, err := ParseSource(src)
	require.NoError(t, err)
	checker := NewChecker()
	require.NoError(t, checker.Check(prog))
	return NewBorrowChecker(checker).CheckProgram(prog)
}

func TestBorrowCheckerRejectsSecondMutableReference(t *testing.T) {
	err := checkBorrows(t, `
fn main() {
	let mut x = 1;
	let a = &mut x;
	let b = &mut x;
	print_int(x);
}
`)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindBorrowConflict, diag.Kind)
}

func TestBorrowCheckerRejectsMutableWhileSharedLive(t *testing.T) {
	err := checkBorrows(t, `
fn main() {
	let mut x = 1;
	let a = &x;
	let b = &mut x;
	print_int(x);
}
`)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindBorrowConflict, diag.Kind)
}

func TestBorrowCheckerAllowsMultipleSharedReferences(t *testing.T) {
	err := checkBorrows(t, `
fn main() {
	let x = 1;
	let a = &x;
	let b = &x;
	print_int(x);
}
`)
	assert.NoError(t, err)
}

// The type checker rejects this program first, with the same kind, so
// the borrow checker is run on the parsed program directly here to
// exercise its own copy of the rule.
func TestBorrowCheckerRejectsAssignmentThroughImmutableBinding(t *testing.T) {
	prog, perr := ParseSource(`
fn main() {
	let x = 1;
	x = 2;
	print_int(x);
}
`)
	require.NoError(t, perr)
	err := NewBorrowChecker(NewChecker()).CheckProgram(prog)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindImmutableAssignment, diag.Kind)
	assert.Contains(t, diag.Suggestion, "mut")
}

func TestBorrowCheckerAllowsAssignmentThroughMutableBinding(t *testing.T) {
	err := checkBorrows(t, `
fn main() {
	let mut x = 1;
	x = 2;
	print_int(x);
}
`)
	assert.NoError(t, err)
}

func TestBorrowCheckerRejectsUseOfMovedStruct(t *testing.T) {
	err := checkBorrows(t, `
struct Point { x: i32, y: i32 }
fn consume(p: Point) -> i32 { return p.x; }
fn main() {
	let p = Point { x: 1, y: 2 };
	let n = consume(p);
	print_int(p.x);
}
`)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindBorrowConflict, diag.Kind)
}

func TestBorrowCheckerAllowsReuseOfCopyableBinding(t *testing.T) {
	err := checkBorrows(t, `
fn consume(n: i32) -> i32 { return n; }
fn main() {
	let x = 1;
	let a = consume(x);
	let b = consume(x);
	print_int(a + b);
}
`)
	assert.NoError(t, err)
}

func TestBorrowCheckerTreatsBorrowAsLiveForRestOfFunction(t *testing.T) {
	err := checkBorrows(t, `
fn main() {
	let mut x = 1;
	let a = &mut x;
	print_int(x);
	let b = &mut x;
	print_int(x);
}
`)
	require.Error(t, err, "a flow-insensitive checker must reject a second mutable borrow even once the first is no longer used")
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindBorrowConflict, diag.Kind)
}
