// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/gomlx/gpuplan/pkg/passes"
	"github.com/pkg/errors"
)

// DefaultMaxGroupSize is the default number of executable nodes per execution group.
const DefaultMaxGroupSize = 16

// Config of the compilation and of the execution of the compiled program.
// Create it with DefaultConfig and change it with the With... methods.
type Config struct {
	// Fusions enabled, and whether the generic fallback is allowed for blocked formats.
	Fusions passes.FusionOptions

	// DynamicShapes allows network inputs with dynamic dimensions.
	DynamicShapes bool

	// PreferBlockedFormats enables the format preference pass.
	PreferBlockedFormats bool

	// OptimizePostOps enables the post-op chain optimizer.
	OptimizePostOps bool

	// SpecializeDynamicShapes re-selects kernels of dynamic nodes for each resolved shape.
	SpecializeDynamicShapes bool

	// MaxGroupSize is the maximum number of executable nodes per execution group.
	MaxGroupSize int
}

// DefaultConfig returns the default configuration: all fusions, dynamic shapes, format
// preferences and post-op optimization enabled; no shape specialization.
func DefaultConfig() *Config {
	return &Config{
		Fusions:              passes.AllFusions(),
		DynamicShapes:        true,
		PreferBlockedFormats: true,
		OptimizePostOps:      true,
		MaxGroupSize:         DefaultMaxGroupSize,
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c2 := *c
	return &c2
}

// WithFusions sets the fusion categories enabled.
func (c *Config) WithFusions(opts passes.FusionOptions) *Config {
	c.Fusions = opts
	return c
}

// WithNoFusion disables all fusions.
func (c *Config) WithNoFusion() *Config {
	c.Fusions = passes.FusionOptions{}
	return c
}

// WithGenericFallbackFusion allows fusing inputs in formats different from a blocked producer.
func (c *Config) WithGenericFallbackFusion(enabled bool) *Config {
	c.Fusions.GenericFallback = enabled
	return c
}

// WithDynamicShapes enables or disables network inputs with dynamic dimensions.
func (c *Config) WithDynamicShapes(enabled bool) *Config {
	c.DynamicShapes = enabled
	return c
}

// WithPreferBlockedFormats enables or disables the format preference pass.
func (c *Config) WithPreferBlockedFormats(enabled bool) *Config {
	c.PreferBlockedFormats = enabled
	return c
}

// WithPostOpOptimization enables or disables the post-op chain optimizer.
func (c *Config) WithPostOpOptimization(enabled bool) *Config {
	c.OptimizePostOps = enabled
	return c
}

// WithSpecializeDynamicShapes enables re-selecting the kernels of dynamic nodes per resolved shape.
func (c *Config) WithSpecializeDynamicShapes(enabled bool) *Config {
	c.SpecializeDynamicShapes = enabled
	return c
}

// WithMaxGroupSize sets the maximum number of executable nodes per execution group.
func (c *Config) WithMaxGroupSize(n int) *Config {
	c.MaxGroupSize = n
	return c
}

// Validate the configuration.
func (c *Config) Validate() error {
	if c.MaxGroupSize < 1 {
		return errors.Errorf("compiler.Config: MaxGroupSize must be >= 1, got %d", c.MaxGroupSize)
	}
	return nil
}
