// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	fallbackRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
				Bold(true).
				PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// setColors disables the table colors if requested or if the NO_COLOR environment variable is set.
func setColors(disable bool) {
	if disable || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// planTable highlights the rows of nodes that got a fallback (reference) kernel.
type planTable struct {
	Table     *lgtable.Table
	Count     int
	Fallbacks map[int]bool
}

func (t *planTable) Row(isFallback bool, row ...string) {
	if isFallback {
		t.Fallbacks[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

// newPlainTable creates a table where columns take the given alignments, the last one
// repeating for the remaining columns.
func newPlainTable(alignments ...lipgloss.Position) *planTable {
	t := &planTable{Fallbacks: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			switch {
			case t.Fallbacks[row]:
				s = fallbackRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
	return t
}

func printTable(title string, t *planTable) {
	fmt.Println(titleStyle.Render(title))
	fmt.Println(t.Table.Render())
}
