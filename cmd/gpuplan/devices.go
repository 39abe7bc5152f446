// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gpuplan/pkg/core/dtypes"
	"github.com/gomlx/gpuplan/pkg/core/layout"
	"github.com/gomlx/gpuplan/pkg/device"
	"github.com/urfave/cli/v3"
)

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List the device presets, or describe the device given with --device",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			names := device.PresetNames()
			if cmd.Root().IsSet("device") {
				names = []string{deviceName}
			}
			table := newPlainTable(lipgloss.Right, lipgloss.Left)
			table.Table.Headers("property", strings.Join(names, " / "))
			devices := make([]*device.Capabilities, 0, len(names))
			for _, name := range names {
				caps, err := loadDevice(name)
				if err != nil {
					return err
				}
				devices = append(devices, caps)
			}
			row := func(name string, value func(c *device.Capabilities) string) {
				values := make([]string, len(devices))
				for ii, caps := range devices {
					values[ii] = value(caps)
				}
				table.Row(false, name, strings.Join(values, " / "))
			}
			row("name", func(c *device.Capabilities) string { return c.Name })
			row("max work group size", func(c *device.Capabilities) string { return strconv.Itoa(c.MaxWorkGroupSize) })
			row("max work item sizes", func(c *device.Capabilities) string { return formatWorkSize(c.MaxWorkItemSizes) })
			row("local memory", func(c *device.Capabilities) string { return humanize.IBytes(uint64(c.MaxLocalMemBytes)) })
			row("compute units", func(c *device.Capabilities) string { return strconv.Itoa(c.ComputeUnits) })
			row("subgroup sizes", func(c *device.Capabilities) string { return fmt.Sprint(c.SubgroupSizes) })
			row("fp16", func(c *device.Capabilities) string { return strconv.FormatBool(c.SupportsFP16) })
			row("immad", func(c *device.Capabilities) string { return strconv.FormatBool(c.SupportsImmad) })
			row("mutable command lists", func(c *device.Capabilities) string {
				return strconv.FormatBool(c.SupportsMutableCommandList)
			})
			row("dtypes", func(c *device.Capabilities) string {
				var list []string
				for _, dtype := range dtypes.All() {
					if c.SupportsDType(dtype) {
						list = append(list, dtype.String())
					}
				}
				return strings.Join(list, ",")
			})
			row("formats", func(c *device.Capabilities) string {
				var list []string
				for _, format := range layout.Formats() {
					if c.SupportsFormat(format) {
						list = append(list, format.String())
					}
				}
				return strings.Join(list, ",")
			})
			printTable("Devices", table)
			return nil
		},
	}
}
