/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"io"

	"chainguard.dev/routetolive/reconcilers/description"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// renderGates writes the checklist in gate order, with a count of passed
// gates underneath.
func renderGates(w io.Writer, s description.Statuses) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignCenter}},
			},
		}),
		tablewriter.WithHeader([]string{"Gate", "Check", "Status"}),
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleLight),
		})),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)

	passed := 0
	for _, g := range description.Gates() {
		st := s.Get(g)
		if st == description.Pass {
			passed++
		}
		_ = table.Append([]string{g.Name(), g.Label(), string(st)})
	}
	_ = table.Render()
	fmt.Fprintf(w, "%d/%d gates passed\n", passed, len(description.Gates()))
}
