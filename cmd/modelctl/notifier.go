package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"model_settings/internal/engine"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

// printNotifier writes engine notices to a terminal stream
type printNotifier struct {
	w     io.Writer
	muted bool
}

func (n *printNotifier) Notify(notice engine.Notice) {
	if n.muted {
		return
	}

	var mark string
	switch notice.Level {
	case engine.LevelSuccess:
		mark = successStyle.Render("✓")
	case engine.LevelWarning:
		mark = warningStyle.Render("!")
	case engine.LevelError:
		mark = errorStyle.Render("✗")
	default:
		mark = dimStyle.Render("·")
	}

	fmt.Fprintf(n.w, "%s %s\n", mark, titleStyle.Render(notice.Title))
	if notice.Detail != "" {
		fmt.Fprintf(n.w, "  %s\n", dimStyle.Render(notice.Detail))
	}
}

func (n *printNotifier) Focus(category engine.Category, id string) {
	if n.muted {
		return
	}

	var hint string
	switch category {
	case engine.CategoryCustom:
		hint = fmt.Sprintf("modelctl save custom %s --api-key ... --model ...", id)
	case engine.CategoryLocal:
		hint = fmt.Sprintf("modelctl save local %s --endpoint ... --model ...", id)
	default:
		hint = "cloud models are not available on this deployment"
	}
	fmt.Fprintf(n.w, "  %s\n", dimStyle.Render("next: "+hint))
}
