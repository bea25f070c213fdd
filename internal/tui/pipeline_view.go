package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/reflex-console/internal/render"
	"github.com/kingrea/reflex-console/internal/termsafe"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#818CF8")).
			MarginBottom(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#FF6B6B")).
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Padding(0, 1)
	startStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5A67D8")).
			Bold(true).
			Padding(0, 2)
	startDisabledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#999999")).
				Background(lipgloss.Color("#333333")).
				Padding(0, 2)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	errorLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FC8181"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailHeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E2E8F0")).Bold(true)
	logHeadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	logBodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

const logPanelLines = 6

// View renders the whole screen.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	header := headerStyle.Render("◈ REFLEX · Epistemic Engine")
	if runID := a.store.RunID(); runID != "" {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, mutedStyle.Render("  run "+termsafe.Line(runID)))
	}

	var body string
	switch a.state {
	case stateSetup:
		body = a.renderSetup(width - 4)
	case statePipeline:
		body = a.renderPipeline()
	}

	sections := []string{header, body, statusStyle.Render(a.statusLine())}
	if a.state == statePipeline && a.pollErr != "" {
		sections = append(sections, errorLineStyle.Render("last poll failed: "+termsafe.Line(a.pollErr)))
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	if a.state == statePipeline {
		sections = append(sections, a.help.View(a.keys))
	} else {
		sections = append(sections, mutedStyle.Render("enter: start · ctrl+c: quit"))
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderSetup(width int) string {
	button := startStyle.Render(startLabel)
	if a.creating {
		button = startDisabledStyle.Render(initializingMsg)
	}
	form := panelStyle.Width(max(30, width)).Render(lipgloss.JoinVertical(lipgloss.Left,
		detailHeadStyle.Render("RESEARCH DIRECTIVE"),
		a.input.View(),
		"",
		button,
	))
	if a.banner == "" {
		return form
	}
	banner := bannerStyle.Width(max(30, width)).Render(termsafe.Escape(a.banner) + "\n" + mutedStyle.Render("press enter to dismiss"))
	return lipgloss.JoinVertical(lipgloss.Left, banner, form)
}

// columnWidths splits the screen between the board and the detail pane.
func (a *App) columnWidths() (int, int) {
	width := a.width
	if width <= 0 {
		width = 100
	}
	boardWidth := max(36, width*2/5)
	detailWidth := width - boardWidth - 2
	if detailWidth < 30 {
		return width, 0
	}
	return boardWidth, detailWidth
}

func (a *App) renderPipeline() string {
	boardWidth, detailWidth := a.columnWidths()
	board := render.Board(a.cards, render.BoardOptions{
		Width:    boardWidth - 2,
		Selected: a.selection,
		Spinner:  a.spinner.View(),
	})
	if snap := a.store.Snapshot(); snap != nil {
		board = lipgloss.JoinVertical(lipgloss.Left, mutedStyle.Render(render.Summary(snap)), board)
	}
	if detailWidth == 0 {
		return board
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, board, a.renderDetail(detailWidth))
}

func (a *App) renderDetail(width int) string {
	if a.detail == nil {
		hint := mutedStyle.Render("Select a stage and press v to inspect its output.")
		return panelStyle.Width(width).Render(hint)
	}
	toggle := "provenance off"
	if a.showProvenance {
		toggle = "provenance on"
	}
	head := lipgloss.JoinHorizontal(lipgloss.Top,
		detailHeadStyle.Render(strings.ToUpper(a.detail.Title)),
		mutedStyle.Render("  "+toggle),
	)
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, head, a.viewport.View()))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logTail, a.logTotal
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := logHeadStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	return panelStyle.Render(fmt.Sprintf("%s\n%s", head, logBodyStyle.Render(termsafe.Escape(strings.Join(lines, "\n")))))
}

