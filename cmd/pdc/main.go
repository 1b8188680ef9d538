package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	pdc "github.com/pd-lang/pdc"
)

const defaultWritePermission = 0644 // -rw-r--r--

type args struct {
	inputPath *string

	emitLLVM *bool
	outputPath *string

	disableMacros *bool
	disableBorrowCheck *bool
	disableEffectAnalysis *bool
	disableUnsafeCheck *bool
	disableOptimize *bool

	stdlibRoot *string
	searchPath *string
}

func readArgs() *args {
	a := &args{
		inputPath: flag.String("input", "", "Path to the source file to compile"),

		emitLLVM: flag.Bool("emit-llvm", false, "Emit LLVM IR instead of C99"),
		outputPath: flag.String("output", "/dev/stdout", "Path to the output file"),

		disableMacros: flag.Bool("disable-macros", false, "Skip macro expansion"),
		disableBorrowCheck: flag.Bool("disable-borrow-check", false, "Skip the borrow checker"),
		disableEffectAnalysis: flag.Bool("disable-effect-analysis", false, "Skip effect analysis"),
		disableUnsafeCheck: flag.Bool("disable-unsafe-check", false, "Skip the unsafe-operation checker"),
		disableOptimize: flag.Bool("disable-optimize", false, "Skip the AST-level optimizer"),

		stdlibRoot: flag.String("stdlib-root", "", "Path to the standard library root"),
		searchPath: flag.String("search-path", "", "Colon-separated extra module search roots"),
	}

	flag.Parse()
	return a
}

func main() {
	a := readArgs()

	if *a.inputPath == "" {
		log.Fatal("no input file given")
	}

	cfg := pdc.NewConfig()
	cfg.SetBool("emit.llvm", *a.emitLLVM)
	cfg.SetBool("pipeline.run_macros", !*a.disableMacros)
	cfg.SetBool("pipeline.run_borrow_check", !*a.disableBorrowCheck)
	cfg.SetBool("pipeline.run_effect_analysis", !*a.disableEffectAnalysis)
	cfg.SetBool("pipeline.run_unsafe_check", !*a.disableUnsafeCheck)
	cfg.SetBool("pipeline.optimize", !*a.disableOptimize)
	cfg.SetString("module.stdlib_root", *a.stdlibRoot)
	cfg.SetString("module.search_path", *a.searchPath)

	result, err := pdc.CompileFile(*a.inputPath, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.WriteFile(*a.outputPath, []byte(result.Output), defaultWritePermission); err != nil {
		log.Fatalf("can't write output: %s", err.Error())
	}

	fmt.Fprintf(os.Stderr, "compiled %s -> %s\n", *a.inputPath, *a.outputPath)
}
