// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gpuplan/internal/workerspool"
	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device/sim"
	"github.com/gomlx/gpuplan/pkg/runtime"
	"github.com/gomlx/gpuplan/pkg/support/xsync"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func runCmd() *cli.Command {
	var (
		iterations  int
		numRequests int
		latency     time.Duration
		async       bool
		memoryLimit int64
		workers     int
		quiet       bool
	)
	return &cli.Command{
		Name:      "run",
		Usage:     "Compile a YAML topology and replay inferences on the simulated device",
		ArgsUsage: "<topology.yaml>",
		Flags: append(compileFlags(),
			&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "inferences per request", Value: 10,
				Destination: &iterations},
			&cli.IntFlag{Name: "requests", Usage: "number of concurrent infer requests", Value: 1,
				Destination: &numRequests},
			&cli.StringSliceFlag{Name: "bind", Usage: "values of a dynamic dimension, cycled over the iterations: symbol=v1,v2,..."},
			&cli.DurationFlag{Name: "latency", Usage: "simulated device time per command list", Destination: &latency},
			&cli.BoolFlag{Name: "async", Usage: "wait for the device on a separate wait executor", Destination: &async},
			&cli.Int64Flag{Name: "memory-limit", Usage: "simulated device memory in bytes (0 for no limit)",
				Destination: &memoryLimit},
			&cli.IntFlag{Name: "workers", Usage: "parallelism of the task executor (0 for the number of CPUs)",
				Destination: &workers},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "don't display the progress bar", Destination: &quiet},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.Errorf("run takes exactly one topology file, got %d arguments", cmd.NArg())
			}
			if iterations <= 0 || numRequests <= 0 {
				return errors.Errorf("--iterations and --requests must be > 0, got %d and %d", iterations, numRequests)
			}
			binds, err := parseBinds(cmd.StringSlice("bind"))
			if err != nil {
				return err
			}
			desc, caps, prog, err := compileTopology(cmd.Args().First())
			if err != nil {
				return err
			}

			stream := sim.NewStream(caps).WithLatency(latency)
			defer stream.Close()
			alloc := sim.NewAllocator().WithLimit(memoryLimit)
			taskExecutor := runtime.NewTaskExecutor("tasks", workerspool.New(workers))
			var waitExecutor *runtime.SerialExecutor
			if async {
				waitExecutor = runtime.NewSerialExecutor("wait")
				defer waitExecutor.Close()
			}

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.Default(int64(iterations*numRequests), "inferences")
			}
			networks := make([]*runtime.Network, numRequests)
			errs := make([]error, numRequests)
			start := time.Now()
			inFlight := xsync.NewDynamicWaitGroup()
			for r := range numRequests {
				net, err := runtime.NewNetwork(prog, stream, alloc)
				if err != nil {
					return err
				}
				networks[r] = net
				req := runtime.NewInferRequest(net).WithTaskExecutor(taskExecutor)
				if waitExecutor != nil {
					req.WithWaitExecutor(waitExecutor)
				}
				// Requests start replaying as soon as they are created.
				inFlight.Go(func() {
					errs[r] = replay(ctx, req, prog, binds, r, iterations, bar)
				})
			}
			if err := inFlight.WaitContext(ctx); err != nil {
				return errors.Wrap(err, "interrupted while waiting for the requests")
			}
			elapsed := time.Since(start)
			if bar != nil {
				_ = bar.Finish()
			}
			for r, err := range errs {
				if err != nil {
					return errors.WithMessagef(err, "request #%d", r)
				}
			}
			klog.V(1).Infof("%d inferences of %q in %s", iterations*numRequests, desc.Name, elapsed)
			printRunSummary(networks, stream, alloc, iterations*numRequests, elapsed)
			return nil
		},
	}
}

// parseBinds parses the --bind values "symbol=v1,v2,...". Values may also come split at the
// commas, as the flag parser splits slice values: parts without "=" continue the previous symbol.
func parseBinds(values []string) (map[string][]int, error) {
	binds := make(map[string][]int, len(values))
	if len(values) == 0 {
		return binds, nil
	}
	var symbol string
	for _, part := range strings.Split(strings.Join(values, ","), ",") {
		part = strings.TrimSpace(part)
		if name, value, found := strings.Cut(part, "="); found {
			if name == "" {
				return nil, errors.Errorf("invalid --bind %q, expected symbol=v1,v2,...", part)
			}
			symbol, part = name, value
		}
		if symbol == "" {
			return nil, errors.Errorf("invalid --bind %q, expected symbol=v1,v2,...", part)
		}
		v, err := strconv.Atoi(part)
		if err != nil || v <= 0 {
			return nil, errors.Errorf("invalid --bind value %q for %q: not a positive dimension", part, symbol)
		}
		binds[symbol] = append(binds[symbol], v)
	}
	return binds, nil
}

// bindingsAt returns the bindings of iteration i: each symbol cycles through its values.
func bindingsAt(binds map[string][]int, i int) layout.Bindings {
	bindings := make(layout.Bindings, len(binds))
	for symbol, values := range binds {
		bindings[symbol] = values[i%len(values)]
	}
	return bindings
}

func replay(ctx context.Context, req *runtime.InferRequest, prog *compiler.Program, binds map[string][]int,
	offset, iterations int, bar *progressbar.ProgressBar) error {
	inputs := prog.InputLayouts()
	ids := slices.Sorted(maps.Keys(inputs))
	for i := range iterations {
		bindings := bindingsAt(binds, offset+i)
		for _, id := range ids {
			concrete, err := inputs[id].Resolve(bindings)
			if err != nil {
				return errors.WithMessagef(err, "input %q: use --bind to set its dynamic dimensions", id)
			}
			if _, err := req.SetInput(id, concrete); err != nil {
				return err
			}
		}
		if err := req.StartAsync(ctx); err != nil {
			return err
		}
		if err := req.Wait(ctx); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return req.Reset()
}

func printRunSummary(networks []*runtime.Network, stream *sim.Stream, alloc *sim.Allocator, inferences int, elapsed time.Duration) {
	var builds, mutations, updates, selections int
	states := make(map[runtime.GroupState]int)
	for _, net := range networks {
		for _, g := range net.Groups() {
			builds += g.Builds()
			mutations += g.Mutations()
			states[g.State()]++
		}
		for _, pi := range net.Instances() {
			updates += pi.DispatchUpdates()
			selections += pi.Selections()
		}
	}
	streamStats := stream.Stats()
	allocStats := alloc.Stats()
	comma := func(v int) string { return humanize.Comma(int64(v)) }

	summary := newPlainTable(lipgloss.Right, lipgloss.Left)
	summary.Row(false, "inferences", comma(inferences))
	summary.Row(false, "elapsed", elapsed.Round(time.Microsecond).String())
	summary.Row(false, "per inference", (elapsed / time.Duration(inferences)).Round(time.Microsecond).String())
	summary.Row(false, "command list builds", comma(builds))
	summary.Row(false, "command list mutations", comma(mutations))
	for _, state := range runtime.GroupStateValues() {
		if states[state] > 0 {
			summary.Row(state == runtime.GroupUnbuilt, "groups "+state.String(), comma(states[state]))
		}
	}
	summary.Row(false, "dispatch updates", comma(updates))
	summary.Row(false, "kernel re-selections", comma(selections))
	summary.Row(false, "submissions", comma(streamStats.Submissions))
	summary.Row(false, "commands executed", comma(streamStats.CommandsExecuted))
	summary.Row(false, "commands patched", comma(streamStats.Updates))
	summary.Row(false, "barriers / markers", comma(streamStats.Barriers)+" / "+comma(streamStats.Markers))
	summary.Row(false, "allocations", comma(allocStats.Allocations))
	summary.Row(false, "peak device memory", humanize.Bytes(uint64(allocStats.PeakBytes)))
	printTable("Run", summary)
}
