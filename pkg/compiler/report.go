// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"strings"

	"github.com/gomlx/gpuplan/pkg/graph"
)

// ReportRow describes one executable node of a compiled program.
type ReportRow struct {
	OrderID         int        `json:"order_id"`
	ID              string     `json:"id"`
	Kind            graph.Kind `json:"kind"`
	Kernel          string     `json:"kernel"`
	Priority        string     `json:"priority"`
	Fused           []string   `json:"fused,omitempty"`
	GWS             [3]int     `json:"gws"`
	LWS             [3]int     `json:"lws"`
	InternalBytes   int64      `json:"internal_bytes,omitempty"`
	Dynamic         bool       `json:"dynamic,omitempty"`
	SourceBytes     int        `json:"source_bytes"`
	OptimizedOutOps int        `json:"optimized_out_ops,omitempty"`
}

// Report returns one row per executable node, in execution order.
func (p *Program) Report() []ReportRow {
	rows := make([]ReportRow, 0, len(p.nodes))
	for _, node := range p.nodes {
		row := ReportRow{
			OrderID:     node.OrderID,
			ID:          node.ID,
			Kind:        node.Kind,
			Kernel:      node.Kernel.Kernel,
			Priority:    node.Kernel.Priority.String(),
			Fused:       node.Fused,
			GWS:         node.Kernel.Dispatch.GWS,
			LWS:         node.Kernel.Dispatch.LWS,
			Dynamic:     node.Kernel.IsDynamic(),
			SourceBytes: len(node.Kernel.Source),
		}
		for _, size := range node.Kernel.Dispatch.InternalBuffers {
			row.InternalBytes += size
		}
		row.OptimizedOutOps = len(node.Params.PostOps) - node.Params.PostOps.Live()
		rows = append(rows, row)
	}
	return rows
}

// String returns a multi-line summary of the compiled program.
func (p *Program) String() string {
	var sb strings.Builder
	for _, row := range p.Report() {
		_, _ = fmt.Fprintf(&sb, "#%d %s(%q) -> %s [%s]", row.OrderID, row.Kind, row.ID, row.Kernel, row.Priority)
		if len(row.Fused) > 0 {
			_, _ = fmt.Fprintf(&sb, " fused=%v", row.Fused)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
