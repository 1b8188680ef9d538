package pdc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, relPath, source string) string {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(source), 0644))
	return full
}

func TestResolverLoadsAndCachesModule(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "geometry.pd", `pub fn area(w: i32, h: i32) -> i32 { return w * h; }`)

	r := NewResolver(ModuleResolverConfig{WorkingDir: dir})
	mod1, err := r.Resolve([]string{"geometry"})
	require.NoError(t, err)
	assert.Equal(t, "geometry", mod1.CanonicalName)
	assert.Contains(t, mod1.Exports, "area")

	mod2, err := r.Resolve([]string{"geometry"})
	require.NoError(t, err)
	assert.Same(t, mod1, mod2)
}

func TestResolverOnlyExportsPublicItemsAndAllEnums(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "shapes.pd", `
pub fn public_fn() -> i32 { return 1; }
fn private_fn() -> i32 { return 2; }
enum Shape { Circle, Square }
struct Hidden { x: i32 }
`)

	r := NewResolver(ModuleResolverConfig{WorkingDir: dir})
	mod, err := r.Resolve([]string{"shapes"})
	require.NoError(t, err)

	assert.Contains(t, mod.Exports, "public_fn")
	assert.Contains(t, mod.Exports, "Shape")
	assert.NotContains(t, mod.Exports, "private_fn")
	assert.NotContains(t, mod.Exports, "Hidden")
}

func TestResolverMissingModuleReported(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(ModuleResolverConfig{WorkingDir: dir})
	_, err := r.Resolve([]string{"nope"})
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindModuleNotFound, diag.Kind)
}

func TestResolverFindsModuleInStdlibRoot(t *testing.T) {
	workingDir := t.TempDir()
	stdlibDir := t.TempDir()
	writeModule(t, stdlibDir, "std/io.pd", `pub fn read_all() -> String { return read_line(); }`)

	r := NewResolver(ModuleResolverConfig{WorkingDir: workingDir, StdlibRoot: stdlibDir})
	mod, err := r.Resolve([]string{"std", "io"})
	require.NoError(t, err)
	assert.Equal(t, "std::io", mod.CanonicalName)
	assert.Contains(t, mod.Exports, "read_all")
}

func TestResolverDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.pd", `import a;`)

	r := NewResolver(ModuleResolverConfig{WorkingDir: dir})
	_, err := r.Resolve([]string{"a"})
	require.Error(t, err)
	diag, ok := err.(*Diagnostic)
	require.True(t, ok)
	assert.Equal(t, KindModuleNotFound, diag.Kind)
	assert.Contains(t, diag.Message, "cycle")
}

func TestParseSearchPathEnvSplitsOnColon(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b", "/c"}, ParseSearchPathEnv("/a:/b:/c"))
	assert.Nil(t, ParseSearchPathEnv(""))
}
