package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/termsafe"
)

var (
	indicatorStyles = map[Indicator]lipgloss.Style{
		IndicatorNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		IndicatorActive:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		IndicatorSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		IndicatorError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
	indicatorGlyphs = map[Indicator]string{
		IndicatorNeutral: "○",
		IndicatorActive:  "◐",
		IndicatorSuccess: "●",
		IndicatorError:   "✕",
	}

	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#E2E8F0")).Bold(true)
	errorTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FC8181"))
	runActionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#5A67D8")).Bold(true).Padding(0, 1)
	processingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	outputHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("#5B8DEF"))
)

// BoardOptions controls decoration that is not part of the projection.
type BoardOptions struct {
	Width    int
	Selected int
	// Spinner is the current processing animation frame; empty falls back to
	// a static ellipsis.
	Spinner string
}

// Board renders every card from scratch.
func Board(cards []Card, opts BoardOptions) string {
	if len(cards) == 0 {
		return outputHintStyle.Render("Waiting for the first state update…")
	}
	width := opts.Width
	if width <= 0 {
		width = 60
	}
	rendered := make([]string, 0, len(cards))
	for i, card := range cards {
		style := cardStyle
		if i == opts.Selected {
			style = selectedCardStyle
		}
		rendered = append(rendered, style.Width(max(20, width-2)).Render(cardBody(card, opts.Spinner)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func cardBody(card Card, spinner string) string {
	indicator := card.Indicator
	glyph := indicatorStyles[indicator].Render(indicatorGlyphs[indicator])
	header := fmt.Sprintf("%s %s", glyph, labelStyle.Render(card.Label))
	if card.HasOutput {
		header += outputHintStyle.Render("  · output")
	}
	lines := []string{header}
	if card.Error != "" {
		lines = append(lines, errorTextStyle.Render(card.Error))
	}
	switch card.Action {
	case ActionRun:
		lines = append(lines, runActionStyle.Render("RUN STAGE"))
	case ActionProcessing:
		frame := strings.TrimSpace(spinner)
		if frame == "" {
			frame = "…"
		}
		lines = append(lines, processingStyle.Render(frame+" PROCESSING"))
	}
	return strings.Join(lines, "\n")
}

// Lines renders cards as plain one-line rows for non-interactive output.
func Lines(cards []Card) []string {
	rows := make([]string, 0, len(cards))
	for _, card := range cards {
		row := fmt.Sprintf("%s %-22s %-9s", indicatorGlyphs[card.Indicator], card.Label, card.Status)
		switch card.Action {
		case ActionRun:
			row += " [run]"
		case ActionProcessing:
			row += " [processing]"
		}
		if card.Error != "" {
			row += " error: " + termsafe.Line(card.Error)
		}
		rows = append(rows, strings.TrimRight(row, " "))
	}
	return rows
}

// Summary is a one-line progress description of snap.
func Summary(snap *pipeline.Snapshot) string {
	if snap == nil {
		return "no state yet"
	}
	return fmt.Sprintf("run %s · %d/%d stages complete · baseline %s",
		termsafe.Line(snap.RunID), snap.Completed(), len(pipeline.Order), snap.Result(pipeline.Baseline).Status)
}
