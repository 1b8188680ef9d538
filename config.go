package pdc

import "fmt"

// Config is a flat key/value store of pipeline flags, keyed by a
// dotted path (e.g. "pipeline.optimize", "emit.backend"). Grounded on
// config.go's Config map[string]*cfgVal pattern — same flat
// dotted-path store, same panic-on-type-mismatch discipline — but
// traded its hand-rolled cfgValType/cfgVal union for Go 1.21 generics:
// the teacher predates type parameters, so its Go could not express
// "one typed slot" any other way; this one can, and one generic
// implementation backs all three typed Set/Get pairs. A Get or Set of a
// path with a different type than the path already holds still panics
// at run time.
type Config map[string]any

// NewConfig returns a Config primed with every default this compiler's
// pipeline stages expect to find set.
func NewConfig() *Config {
	m := make(Config)
	m.SetBool("pipeline.run_macros", true)
	m.SetBool("pipeline.run_borrow_check", true)
	m.SetBool("pipeline.run_effect_analysis", true)
	m.SetBool("pipeline.run_unsafe_check", true)
	m.SetBool("pipeline.optimize", true)
	m.SetBool("emit.llvm", false)
	m.SetString("emit.backend", "c99")
	m.SetString("emit.output", "")
	m.SetString("module.stdlib_root", "")
	m.SetString("module.search_path", "")
	return &m
}

// configValue is the set of concrete types a Config slot can hold.
type configValue interface {
	bool | int | string
}

// setConfig assigns path unconditionally on first use, but refuses to
// change a path's settled type afterward — the same guard cfgVal.assignType
// enforced, just keyed off the type parameter instead of a cfgValType enum.
func setConfig[T configValue](c *Config, path string, v T) {
	if existing, ok := (*c)[path]; ok {
		if _, ok := existing.(T); !ok {
			panic(fmt.Sprintf("cannot assign `%T` to config value `%s` already holding `%T`", v, path, existing))
		}
	}
	(*c)[path] = v
}

// getConfig retrieves path as T, panicking if it's unset or was set
// with a different type.
func getConfig[T configValue](c *Config, path string) T {
	raw, ok := (*c)[path]
	if !ok {
		var zero T
		panic(fmt.Sprintf("%T setting `%s` does not exist", zero, path))
	}
	v, ok := raw.(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("cannot retrieve `%T` from config value `%s` holding `%T`", zero, path, raw))
	}
	return v
}

func (c *Config) SetBool(path string, v bool) { setConfig(c, path, v) }
func (c *Config) SetInt(path string, v int) { setConfig(c, path, v) }
func (c *Config) SetString(path string, v string) { setConfig(c, path, v) }

func (c *Config) GetBool(path string) bool { return getConfig[bool](c, path) }
func (c *Config) GetInt(path string) int { return getConfig[int](c, path) }
func (c *Config) GetString(path string) string { return getConfig[string](c, path) }
