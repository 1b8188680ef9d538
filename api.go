package pdc

import (
	"os"
	"path/filepath"
)

// CompileResult carries every artifact a successful compilation
// produces: the checked program, its monomorphization table, and the
// emitted backend source.
type CompileResult struct {
	Program *Program
	Checker *Checker
	Output string // emitted C99 or LLVM IR, per cfg's emit.llvm
}

// CompileSource runs the full pipeline over an in-memory source string:
// lex, parse, optionally expand macros, type-check, optionally borrow-
// check / effect-analyze / unsafe-check, optionally optimize, then emit.
// Grounded on GrammarFromBytes / GrammarTransformations's
// shape of threading a *Config through a sequence of stages that each
// fire only when their flag is set.
func CompileSource(source string, cfg *Config) (*CompileResult, error) {
	prog, err := ParseSource(source)
	if err != nil {
		return nil, err
	}
	return compileProgram(prog, cfg)
}

// CompileFile reads path and compiles it, using its containing
// directory as the module resolver's working directory for any
// `import` statements the file contains.
func CompileFile(path string, cfg *Config) (*CompileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &Diagnostic{Kind: KindIOError, Message: "reading " + path + ": " + err.Error()}
	}
	prog, err := ParseSource(string(src))
	if err != nil {
		return nil, err
	}
	if len(prog.Imports) > 0 {
		resolver := NewResolver(ModuleResolverConfig{
			WorkingDir: filepath.Dir(path),
			StdlibRoot: cfg.GetString("module.stdlib_root"),
			ExtraRoots: ParseSearchPathEnv(cfg.GetString("module.search_path")),
		})
		for _, im := range prog.Imports {
			if _, err := resolver.Resolve(im.Path); err != nil {
				return nil, err
			}
		}
	}
	return compileProgram(prog, cfg)
}

// compileProgram runs every pipeline stage after parsing, gated by cfg.
func compileProgram(prog *Program, cfg *Config) (*CompileResult, error) {
	if cfg.GetBool("pipeline.run_macros") {
		if err := NewMacroExpander(prog).ExpandProgram(prog); err != nil {
			return nil, err
		}
	}

	checker := NewChecker()
	if err := checker.Check(prog); err != nil {
		return nil, err
	}

	if cfg.GetBool("pipeline.run_borrow_check") {
		if err := NewBorrowChecker(checker).CheckProgram(prog); err != nil {
			return nil, err
		}
	}

	if cfg.GetBool("pipeline.run_effect_analysis") {
		NewEffectAnalyzer(prog).Run()
	}

	if cfg.GetBool("pipeline.run_unsafe_check") {
		if err := NewUnsafeChecker(checker).CheckProgram(prog); err != nil {
			return nil, err
		}
	}

	if cfg.GetBool("pipeline.optimize") {
		NewOptimizer().OptimizeProgram(prog)
	}

	out, err := SelectBackend(cfg).Emit(prog, checker)
	if err != nil {
		return nil, err
	}

	return &CompileResult{Program: prog, Checker: checker, Output: out}, nil
}
