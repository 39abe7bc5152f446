// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/gomlx/gpuplan/internal/topology"
	"github.com/gomlx/gpuplan/pkg/compiler"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/gomlx/gpuplan/pkg/kernels"
	"github.com/gomlx/gpuplan/pkg/kernels/catalog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

// planJSON is the machine readable output of the compile command.
type planJSON struct {
	Topology    string               `json:"topology"`
	Device      string               `json:"device"`
	Dynamic     bool                 `json:"dynamic"`
	PassChanges map[string]int       `json:"pass_changes"`
	Nodes       []compiler.ReportRow `json:"nodes"`
}

func compileCmd() *cli.Command {
	var (
		jsonOutput bool
		sourceOf   string
	)
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile a YAML topology and print the dispatch plan",
		ArgsUsage: "<topology.yaml>",
		Flags: append(compileFlags(),
			&cli.BoolFlag{Name: "json", Usage: "print the plan as JSON", Destination: &jsonOutput},
			&cli.StringFlag{Name: "source", Usage: "print the generated kernel source of the node with the given id",
				Destination: &sourceOf},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.Errorf("compile takes exactly one topology file, got %d arguments", cmd.NArg())
			}
			desc, caps, prog, err := compileTopology(cmd.Args().First())
			if err != nil {
				return err
			}
			if sourceOf != "" {
				return printSource(prog, sourceOf)
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(planJSON{
					Topology:    desc.Name,
					Device:      caps.Name,
					Dynamic:     prog.IsDynamic(),
					PassChanges: prog.PassChanges(),
					Nodes:       prog.Report(),
				})
			}
			printPlan(desc, caps, prog)
			return nil
		},
	}
}

// compileTopology loads the topology and the device given by the flags and compiles it.
func compileTopology(path string) (*topology.Description, *device.Capabilities, *compiler.Program, error) {
	desc, err := topology.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	caps, err := loadDevice(deviceName)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := configFromFlags()
	if err != nil {
		return nil, nil, nil, err
	}
	klog.V(1).Infof("compiling %q (%d primitives) for device %q", desc.Name, len(desc.Topology.Primitives()), caps.Name)
	prog, err := compiler.Compile(desc.Topology, catalog.New(), caps, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return desc, caps, prog, nil
}

func printSource(prog *compiler.Program, id string) error {
	for _, node := range prog.Nodes() {
		if node.ID == id || slices.Contains(node.Fused, id) {
			fmt.Println(node.Kernel.Source)
			return nil
		}
	}
	ids := make([]string, 0, len(prog.Nodes()))
	for _, node := range prog.Nodes() {
		ids = append(ids, node.ID)
	}
	return errors.Errorf("no executable node %q, valid nodes are %q", id, ids)
}

func printPlan(desc *topology.Description, caps *device.Capabilities, prog *compiler.Program) {
	rows := prog.Report()
	var internal int64
	var sourceBytes, fused, optimizedOut, fallbacks int
	for _, row := range rows {
		internal += row.InternalBytes
		sourceBytes += row.SourceBytes
		fused += len(row.Fused)
		optimizedOut += row.OptimizedOutOps
		if row.Priority == kernels.PriorityFallback.String() {
			fallbacks++
		}
	}

	summary := newPlainTable(lipgloss.Right, lipgloss.Left)
	summary.Row(false, "topology", desc.Name)
	summary.Row(false, "device", caps.Name)
	summary.Row(false, "executable nodes", humanize.Comma(int64(len(rows))))
	summary.Row(false, "fused primitives", humanize.Comma(int64(fused)))
	summary.Row(false, "optimized out post-ops", humanize.Comma(int64(optimizedOut)))
	summary.Row(fallbacks > 0, "fallback kernels", humanize.Comma(int64(fallbacks)))
	summary.Row(false, "dynamic", strconv.FormatBool(prog.IsDynamic()))
	summary.Row(false, "internal buffers", humanize.Bytes(uint64(internal)))
	summary.Row(false, "generated source", humanize.Bytes(uint64(sourceBytes)))
	changes := prog.PassChanges()
	for _, name := range slices.Sorted(maps.Keys(changes)) {
		summary.Row(false, "pass "+name, humanize.Comma(int64(changes[name])))
	}
	printTable("Summary", summary)

	plan := newPlainTable(lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left,
		lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right)
	plan.Table.Headers("#", "id", "kind", "kernel", "priority", "fused", "gws", "lws", "internal")
	for _, row := range rows {
		gws, lws := formatWorkSize(row.GWS), formatWorkSize(row.LWS)
		if row.Dynamic {
			gws, lws = "dynamic", "dynamic"
		}
		plan.Row(row.Priority == kernels.PriorityFallback.String(),
			strconv.Itoa(row.OrderID), row.ID, row.Kind.String(), row.Kernel, row.Priority, strings.Join(row.Fused, ","),
			gws, lws, humanize.Bytes(uint64(row.InternalBytes)))
	}
	printTable("Plan", plan)
}

func formatWorkSize(ws [3]int) string {
	return fmt.Sprintf("%dx%dx%d", ws[0], ws[1], ws[2])
}
