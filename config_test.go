package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.GetBool("pipeline.run_macros"))
	assert.True(t, cfg.GetBool("pipeline.run_borrow_check"))
	assert.True(t, cfg.GetBool("pipeline.run_effect_analysis"))
	assert.True(t, cfg.GetBool("pipeline.run_unsafe_check"))
	assert.True(t, cfg.GetBool("pipeline.optimize"))
	assert.False(t, cfg.GetBool("emit.llvm"))
	assert.Equal(t, "c99", cfg.GetString("emit.backend"))
}

func TestConfigSetOverridesDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("pipeline.optimize", false)
	assert.False(t, cfg.GetBool("pipeline.optimize"))
}

func TestConfigGetMissingKeyPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() {
		cfg.GetBool("no.such.key")
	})
}

func TestConfigTypeMismatchPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() {
		cfg.GetInt("pipeline.optimize")
	})
}

func TestConfigReassignSameTypeOK(t *testing.T) {
	cfg := NewConfig()
	cfg.SetString("emit.backend", "llvm")
	assert.Equal(t, "llvm", cfg.GetString("emit.backend"))
}

func TestConfigReassignDifferentTypePanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() {
		cfg.SetInt("emit.backend", 1)
	})
}
