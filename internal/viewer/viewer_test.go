package viewer

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

func snapshotWithIntent(res pipeline.StageResult) *pipeline.Snapshot {
	stages := map[pipeline.StageKey]pipeline.StageResult{}
	for _, key := range pipeline.Order {
		stages[key] = pipeline.StageResult{Status: pipeline.StatusPending}
	}
	stages[pipeline.Intent] = res
	return &pipeline.Snapshot{RunID: "r1", Baseline: pipeline.StageResult{Status: pipeline.StatusPending}, Stages: stages}
}

func TestOpenWithoutDataShowsPlaceholder(t *testing.T) {
	cases := map[string]pipeline.StageResult{
		"pending":          {Status: pipeline.StatusPending},
		"completed absent": {Status: pipeline.StatusCompleted},
		"completed null":   {Status: pipeline.StatusCompleted, Data: json.RawMessage("null")},
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			d := Open(pipeline.Intent, snapshotWithIntent(res), Options{ShowProvenance: true})
			assert.True(t, d.Empty)
			assert.Empty(t, d.Output)
			assert.Nil(t, d.Provenance)
			out := Render(d, 60)
			assert.Contains(t, out, Placeholder)
			assert.NotContains(t, out, "undefined")
			assert.NotContains(t, out, "null")
		})
	}
	assert.True(t, Open(pipeline.Intent, nil, Options{}).Empty)
}

func TestOpenPrettyPrintsInServerOrder(t *testing.T) {
	res := pipeline.StageResult{Status: pipeline.StatusCompleted, Data: json.RawMessage(`{"zeta":1,"alpha":[true,null,"x"]}`)}
	d := Open(pipeline.Intent, snapshotWithIntent(res), Options{})
	assert.Equal(t, "Intent Parsing", d.Title)
	assert.Equal(t, "{\n  \"zeta\": 1,\n  \"alpha\": [\n    true,\n    null,\n    \"x\"\n  ]\n}", d.Output)
}

func TestProvenanceRequiresToggleAndPresence(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 1, 2, 0, time.UTC)
	res := pipeline.StageResult{
		Status: pipeline.StatusCompleted,
		Data:   json.RawMessage(`{"goal": "x"}`),
		Provenance: &pipeline.Provenance{
			ModelName:      "gemini-1.5-pro",
			Timestamp:      pipeline.Timestamp{Time: ts},
			RepairAttempts: 2,
			Prompt:         "<b>RESEARCH DIRECTIVE</b>\n\x1b[31mred",
			ModelParams:    map[string]any{"temperature": 0.2},
		},
	}
	snap := snapshotWithIntent(res)

	hidden := Open(pipeline.Intent, snap, Options{ShowProvenance: false})
	assert.Nil(t, hidden.Provenance)
	assert.NotContains(t, Render(hidden, 60), "PROVENANCE")

	shown := Open(pipeline.Intent, snap, Options{ShowProvenance: true})
	require.NotNil(t, shown.Provenance)
	assert.Equal(t, "gemini-1.5-pro", shown.Provenance.Model)
	assert.Equal(t, 2, shown.Provenance.RepairAttempts)
	assert.Equal(t, ts.Local().Format(TimeLayout), shown.Provenance.Time)
	assert.Equal(t, "temperature=0.2", shown.Provenance.Params)
	assert.Equal(t, "<b>RESEARCH DIRECTIVE</b>\n\\x1b[31mred", shown.Provenance.Prompt)

	out := Render(shown, 60)
	assert.Contains(t, out, "<b>RESEARCH DIRECTIVE</b>")
	assert.NotContains(t, out, "\x1b[31mred")

	noProv := res
	noProv.Provenance = nil
	assert.Nil(t, Open(pipeline.Intent, snapshotWithIntent(noProv), Options{ShowProvenance: true}).Provenance)
}

func TestBaselineTitle(t *testing.T) {
	assert.Equal(t, "Baseline Output", Title(pipeline.Baseline))
}

func TestTokenizeClassifies(t *testing.T) {
	src := "{\n  \"name\": \"a \\\"q\\\"\",\n  \"n\": -1.5e3,\n  \"ok\": false,\n  \"v\": null\n}"
	var kinds []TokenKind
	var rebuilt strings.Builder
	for _, tok := range Tokenize(src) {
		rebuilt.WriteString(tok.Text)
		if tok.Kind != TokenSpace && tok.Kind != TokenPunct {
			kinds = append(kinds, tok.Kind)
		}
	}
	assert.Equal(t, src, rebuilt.String())
	assert.Equal(t, []TokenKind{
		TokenKey, TokenString,
		TokenKey, TokenNumber,
		TokenKey, TokenBool,
		TokenKey, TokenNull,
	}, kinds)
}
