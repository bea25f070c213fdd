// Package viewer renders the full output of one stage, and optionally how it
// was produced. It reads from the snapshot it is handed and never fetches on
// its own, so what it shows is only as fresh as the last poll.
package viewer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/termsafe"
)

// Placeholder is shown for a stage that has no output payload.
const Placeholder = "No output data available yet."

// TimeLayout formats provenance timestamps in local time.
const TimeLayout = "15:04:05"

var (
	sectionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#818CF8")).Bold(true)
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#718096"))
	placeholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#718096")).Italic(true)
	promptStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))

	tokenStyles = map[TokenKind]lipgloss.Style{
		TokenKey:    lipgloss.NewStyle().Foreground(lipgloss.Color("#93C5FD")),
		TokenString: lipgloss.NewStyle().Foreground(lipgloss.Color("#86EFAC")),
		TokenNumber: lipgloss.NewStyle().Foreground(lipgloss.Color("#FDBA74")),
		TokenBool:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C4B5FD")),
		TokenNull:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F472B6")),
	}
)

// Options controls optional sections.
type Options struct {
	ShowProvenance bool
}

// Detail is what the viewer shows for one stage.
type Detail struct {
	Key   pipeline.StageKey
	Title string
	// Empty is set when the stage has no output; Output and Provenance are
	// then unset.
	Empty      bool
	Output     string
	Provenance *ProvenanceBlock
}

// ProvenanceBlock is the display form of pipeline.Provenance.
type ProvenanceBlock struct {
	Model          string
	Time           string
	RepairAttempts int
	Params         string
	Prompt         string
}

// Title returns the viewer heading for key.
func Title(key pipeline.StageKey) string {
	if key == pipeline.Baseline {
		return "Baseline Output"
	}
	return key.Label()
}

// Open builds the detail for key from snap.
func Open(key pipeline.StageKey, snap *pipeline.Snapshot, opts Options) Detail {
	detail := Detail{Key: key, Title: Title(key)}
	if snap == nil {
		detail.Empty = true
		return detail
	}
	res := snap.Result(key)
	if !res.HasData() {
		detail.Empty = true
		return detail
	}
	detail.Output = prettyJSON(res.Data)
	if opts.ShowProvenance && res.Provenance != nil {
		detail.Provenance = provenanceBlock(res.Provenance)
	}
	return detail
}

func prettyJSON(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return termsafe.Escape(string(data))
	}
	return buf.String()
}

func provenanceBlock(p *pipeline.Provenance) *ProvenanceBlock {
	block := &ProvenanceBlock{
		Model:          termsafe.Escape(p.ModelName),
		Time:           "unknown",
		RepairAttempts: p.RepairAttempts,
		Prompt:         termsafe.Escape(p.Prompt),
	}
	if !p.Timestamp.IsZero() {
		block.Time = p.Timestamp.Local().Format(TimeLayout)
	}
	if len(p.ModelParams) > 0 {
		keys := make([]string, 0, len(p.ModelParams))
		for k := range p.ModelParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, p.ModelParams[k]))
		}
		block.Params = termsafe.Escape(strings.Join(parts, ", "))
	}
	return block
}

// Highlight renders pretty-printed JSON with a style per token kind.
func Highlight(src string) string {
	var b strings.Builder
	for _, tok := range Tokenize(src) {
		style, ok := tokenStyles[tok.Kind]
		if !ok {
			b.WriteString(tok.Text)
			continue
		}
		b.WriteString(style.Render(tok.Text))
	}
	return b.String()
}

// Render draws the detail body (without the title).
func Render(d Detail, width int) string {
	if d.Empty {
		return placeholderStyle.Render(Placeholder)
	}
	sections := []string{
		sectionStyle.Render("PRIMARY OUTPUT"),
		Highlight(d.Output),
	}
	if p := d.Provenance; p != nil {
		rule := strings.Repeat("─", max(10, min(width, 80)))
		sections = append(sections,
			"",
			mutedStyle.Render(rule),
			sectionStyle.Render("PROVENANCE (META-DATA)"),
			fmt.Sprintf("%s %s", mutedStyle.Render("Model:"), p.Model),
			fmt.Sprintf("%s %s", mutedStyle.Render("Time:"), p.Time),
			fmt.Sprintf("%s %d", mutedStyle.Render("Repair Attempts:"), p.RepairAttempts),
		)
		if p.Params != "" {
			sections = append(sections, fmt.Sprintf("%s %s", mutedStyle.Render("Params:"), p.Params))
		}
		sections = append(sections,
			mutedStyle.Render("Raw Prompt:"),
			promptStyle.Render(p.Prompt),
		)
	}
	return strings.Join(sections, "\n")
}
