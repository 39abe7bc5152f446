// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gpuplan compiles topologies for a device description and replays inferences of the compiled
// plan on the simulated device.
//
// Examples:
//
//	gpuplan compile --device integrated model.yaml
//	gpuplan compile --device my_gpu.yaml --json model.yaml
//	gpuplan run --device discrete --iterations 100 --bind batch=1,2,4 model.yaml
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "gpuplan",
		Usage: "Compile tensor graphs into GPU dispatch plans and replay them",
		Flags: globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setColors(noColor)
			return ctx, setVerbosity(verbosity)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			compileCmd(),
			runCmd(),
			devicesCmd(),
		},
	}
}
