package pdc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ModuleResolverConfig controls where imports are searched for: the
// importing file's own directory, the standard-library root, and any
// extra roots supplied via a colon-separated environment override,
// searched in that order.
type ModuleResolverConfig struct {
	WorkingDir string
	StdlibRoot string
	ExtraRoots []string // parsed from e.g. $PDC_PATH by the caller
}

// ResolvedModule is one fully parsed, macro-expanded module plus the set
// of names it exports.
type ResolvedModule struct {
	CanonicalName string
	Path string
	Program *Program
	Exports map[string]Item
}

// Resolver walks import graphs, loading and caching each module exactly
// once. Grounded on query.go Database/Query[K,V] pattern,
// stripped to its non-incremental subset: pd never recompiles modules
// in place (incremental recompilation is out of scope), so there is no
// dependency tracking or invalidation, only a plain memoizing cache
// guarded by a mutex the way query.go guards its table.
type Resolver struct {
	cfg ModuleResolverConfig

	mu sync.Mutex
	cache map[string]*ResolvedModule
	inFlight map[string]bool // cycle detection: modules currently being resolved
}

func NewResolver(cfg ModuleResolverConfig) *Resolver {
	return &Resolver{
		cfg: cfg,
		cache: make(map[string]*ResolvedModule),
		inFlight: make(map[string]bool),
	}
}

// Resolve loads and returns the module named by path (e.g.
// ["std", "io"] for `import std::io`), expanding macros and recursively
// resolving its own imports first.
func (r *Resolver) Resolve(path []string) (*ResolvedModule, error) {
	canonical := strings.Join(path, "::")

	r.mu.Lock()
	if mod, ok := r.cache[canonical]; ok {
		r.mu.Unlock()
		return mod, nil
	}
	if r.inFlight[canonical] {
		r.mu.Unlock()
		return nil, &Diagnostic{Kind: KindModuleNotFound, Message: fmt.Sprintf("import cycle detected involving module `%s`", canonical)}
	}
	r.inFlight[canonical] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, canonical)
		r.mu.Unlock()
	}()

	file, err := r.locate(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, &Diagnostic{Kind: KindIOError, Message: fmt.Sprintf("reading module `%s`: %v", canonical, err)}
	}

	prog, err := ParseSource(string(src))
	if err != nil {
		return nil, err
	}
	if err := NewMacroExpander(prog).ExpandProgram(prog); err != nil {
		return nil, err
	}

	for _, im := range prog.Imports {
		if _, err := r.Resolve(im.Path); err != nil {
			return nil, err
		}
	}

	mod := &ResolvedModule{
		CanonicalName: canonical,
		Path: file,
		Program: prog,
		Exports: collectExports(prog),
	}

	r.mu.Lock()
	r.cache[canonical] = mod
	r.mu.Unlock()
	return mod, nil
}

// locate converts a dotted import path into a file path, trying each
// search root in order: the working directory, the stdlib root, then
// any extra roots from the environment override.
func (r *Resolver) locate(path []string) (string, error) {
	rel := filepath.Join(path...) + ".pd"

	roots := []string{r.cfg.WorkingDir}
	if r.cfg.StdlibRoot != "" {
		roots = append(roots, r.cfg.StdlibRoot)
	}
	roots = append(roots, r.cfg.ExtraRoots...)

	for _, root := range roots {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", &Diagnostic{Kind: KindModuleNotFound, Message: fmt.Sprintf("module `%s` not found in any search path", strings.Join(path, "::"))}
}

// ParseSearchPathEnv splits a colon-separated search-path override the
// way PATH-style environment variables are conventionally split.
func ParseSearchPathEnv(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ":")
}

// collectExports gathers the publicly visible items of a module:
// anything declared `pub`, plus every enum regardless of visibility
// since match ergonomics require its variants to be nameable from
// importing modules.
func collectExports(prog *Program) map[string]Item {
	exports := make(map[string]Item)
	for _, item := range prog.Items {
		if item.Vis() == Public {
			exports[item.Name()] = item
			continue
		}
		if _, ok := item.(*Enum); ok {
			exports[item.Name()] = item
		}
	}
	return exports
}
