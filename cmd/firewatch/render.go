package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/outfitter-dev/firewatch-sub001/internal/actionable"
)

// categoryStyle mirrors the teacher's riskLevelColor badge coloring
// (internal/ui/analysis_tab.go), repurposed for actionable categories:
// colored status at the CLI edge only, never a rendering engine.
func categoryStyle(cat actionable.Category) lipgloss.Style {
	switch cat {
	case actionable.CategoryUnaddressed:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")) // red
	case actionable.CategoryChangesRequested:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")) // orange
	case actionable.CategoryAwaitingReview:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("33")) // blue
	case actionable.CategoryStale:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("244")) // gray
	default:
		return lipgloss.NewStyle()
	}
}

// renderActionableText prints a one-line-per-item human summary. Used when
// --format is text (the default); the json/jsonl formats bypass this
// entirely.
func renderActionableText(items []actionable.Item) {
	for _, it := range items {
		badge := categoryStyle(it.Category).Render(string(it.Category))
		fmt.Fprintf(os.Stdout, "#%-5d %-20s %s  %s\n", it.PR, truncate(it.PRTitle, 20), badge, it.Description)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
