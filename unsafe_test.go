package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkUnsafe(t *testing.T, src string) error {
	t.Helper()
	prog, err := ParseSource(src)
	require.NoError(t, err)
	checker := NewChecker()
	require.NoError(t, checker.Check(prog))
	return NewUnsafeChecker(checker).CheckProgram(prog)
}

func TestUnsafeIntrinsicOutsideUnsafeRejected(t *testing.T) {
	src := `fn main() { let x = raw_read(0); print_int(x); }`
	err := checkUnsafe(t, src)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindUnsafeOutsideUnsafe, diag.Kind)
}

func TestUnsafeIntrinsicInsideUnsafeBlockAccepted(t *testing.T) {
	src := `fn main() { unsafe { let x = raw_read(0); print_int(x); } }`
	err := checkUnsafe(t, src)
	require.NoError(t, err)
}

func TestUnsafeIntrinsicInsideUnsafeFunctionAccepted(t *testing.T) {
	src := `unsafe fn peek() -> i32 { return raw_read(0); }
fn main() { unsafe { print_int(peek()); } }`
	err := checkUnsafe(t, src)
	require.NoError(t, err)
}

func TestCallingUnsafeFunctionOutsideUnsafeRejected(t *testing.T) {
	src := `
unsafe fn peek() -> i32 { return raw_read(0); }
fn main() { print_int(peek()); }
`
	err := checkUnsafe(t, src)
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindUnsafeOutsideUnsafe, diag.Kind)
}

func TestUnsafeDepthRestoresAfterBlockExits(t *testing.T) {
	src := `
fn main() {
	unsafe { let x = raw_read(0); print_int(x); }
	let y = raw_read(1);
	print_int(y);
}
`
	err := checkUnsafe(t, src)
	require.Error(t, err, "a second unsafe call after the block closes must still be rejected")
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindUnsafeOutsideUnsafe, diag.Kind)
}
