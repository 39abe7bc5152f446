// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"strconv"
	"strings"
	"sync"

	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

var (
	deviceName string
	verbosity  int
	noColor    bool

	noFusion        bool
	genericFallback bool
	noDynamic       bool
	noBlocked       bool
	noPostOpOpt     bool
	specialize      bool
	maxGroupSize    int
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "device preset name or path to a YAML device description",
			Value:       "integrated",
			Destination: &deviceName,
		},
		&cli.IntFlag{
			Name:        "v",
			Usage:       "klog verbosity level",
			Destination: &verbosity,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "print tables without colors (also set by the NO_COLOR environment variable)",
			Destination: &noColor,
		},
	}
}

// compileFlags map onto compiler.Config.
func compileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "no-fusion", Usage: "disable all fusions", Destination: &noFusion},
		&cli.BoolFlag{Name: "generic-fallback", Usage: "allow fused ops on kernels of blocked formats through the generic fallback",
			Destination: &genericFallback},
		&cli.BoolFlag{Name: "no-dynamic", Usage: "reject inputs with dynamic dimensions", Destination: &noDynamic},
		&cli.BoolFlag{Name: "no-blocked", Usage: "disable the blocked formats preference", Destination: &noBlocked},
		&cli.BoolFlag{Name: "no-postop-opt", Usage: "disable the post-op chain optimizer", Destination: &noPostOpOpt},
		&cli.BoolFlag{Name: "specialize", Usage: "re-select kernels of dynamic nodes for every resolved shape",
			Destination: &specialize},
		&cli.IntFlag{
			Name:        "max-group-size",
			Usage:       "maximum number of executable nodes per execution group",
			Value:       compiler.DefaultMaxGroupSize,
			Destination: &maxGroupSize,
		},
	}
}

func configFromFlags() (*compiler.Config, error) {
	cfg := compiler.DefaultConfig().
		WithDynamicShapes(!noDynamic).
		WithPreferBlockedFormats(!noBlocked).
		WithPostOpOptimization(!noPostOpOpt).
		WithSpecializeDynamicShapes(specialize).
		WithMaxGroupSize(maxGroupSize)
	if noFusion {
		cfg = cfg.WithNoFusion()
	}
	cfg = cfg.WithGenericFallbackFusion(genericFallback)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDevice returns the named preset, or the device described in the YAML file.
func loadDevice(name string) (*device.Capabilities, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return device.Load(name)
	}
	exists, err := fsutil.FileExists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return device.Load(name)
	}
	return device.Preset(name)
}

var (
	klogFlagsOnce sync.Once
	klogFlags     *flag.FlagSet
)

// setVerbosity sets the klog verbosity.
func setVerbosity(level int) error {
	klogFlagsOnce.Do(func() {
		klogFlags = flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(klogFlags)
	})
	if err := klogFlags.Set("v", strconv.Itoa(level)); err != nil {
		return errors.Wrapf(err, "failed to set klog verbosity to %d", level)
	}
	return nil
}
