package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

func snapshotWith(baseline pipeline.StageResult, stages map[pipeline.StageKey]pipeline.StageResult) *pipeline.Snapshot {
	snap := &pipeline.Snapshot{RunID: "r1", Baseline: baseline, Stages: map[pipeline.StageKey]pipeline.StageResult{}}
	for _, key := range pipeline.Order {
		res, ok := stages[key]
		if !ok {
			res = pipeline.StageResult{Status: pipeline.StatusPending}
		}
		snap.Stages[key] = res
	}
	return snap
}

func status(s pipeline.Status) pipeline.StageResult {
	return pipeline.StageResult{Status: s}
}

func TestProjectOrdersBaselineFirst(t *testing.T) {
	cards := Project(snapshotWith(status(pipeline.StatusPending), nil))
	require.Len(t, cards, 7)
	assert.Equal(t, pipeline.Baseline, cards[0].Key)
	assert.Equal(t, "Consumer Baseline", cards[0].Label)
	for i, key := range pipeline.Order {
		assert.Equal(t, key, cards[i+1].Key)
	}
	assert.Nil(t, Project(nil))
}

func TestProjectIndicators(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusRunning), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent:        status(pipeline.StatusCompleted),
		pipeline.Decomposition: {Status: pipeline.StatusFailed, Error: "quota exceeded"},
	})
	cards := Project(snap)
	assert.Equal(t, IndicatorActive, cards[0].Indicator)
	assert.Equal(t, IndicatorSuccess, cards[1].Indicator)
	assert.Equal(t, IndicatorError, cards[2].Indicator)
	assert.Equal(t, IndicatorNeutral, cards[3].Indicator)
	assert.Equal(t, "quota exceeded", cards[2].Error)
}

func TestProjectActions(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusCompleted), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent:        status(pipeline.StatusCompleted),
		pipeline.Decomposition: status(pipeline.StatusRunning),
	})
	cards := Project(snap)

	baseline, _ := Find(cards, pipeline.Baseline)
	assert.Equal(t, ActionNone, baseline.Action)
	assert.Nil(t, baseline.Trigger())

	decomp, _ := Find(cards, pipeline.Decomposition)
	assert.Equal(t, ActionProcessing, decomp.Action)
	assert.Nil(t, decomp.Trigger())

	claims, _ := Find(cards, pipeline.Claims)
	assert.Equal(t, ActionNone, claims.Action, "pending but gated by a running predecessor")
}

func TestTerminalCardsNeverOfferAction(t *testing.T) {
	for _, s := range []pipeline.Status{pipeline.StatusCompleted, pipeline.StatusFailed} {
		stages := map[pipeline.StageKey]pipeline.StageResult{}
		for _, key := range pipeline.Order {
			stages[key] = status(s)
		}
		for _, card := range Project(snapshotWith(status(s), stages)) {
			assert.Equal(t, ActionNone, card.Action, "%s %s", card.Key, s)
		}
	}
}

func TestFailedIntentShowsErrorAndBlocksDecomposition(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusCompleted), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent: {Status: pipeline.StatusFailed, Error: "timeout"},
	})
	cards := Project(snap)
	intent, _ := Find(cards, pipeline.Intent)
	assert.Equal(t, IndicatorError, intent.Indicator)
	assert.Equal(t, "timeout", intent.Error)

	decomp, _ := Find(cards, pipeline.Decomposition)
	assert.Equal(t, ActionNone, decomp.Action)

	board := Board(cards, BoardOptions{Width: 60})
	assert.Contains(t, board, "timeout")
	assert.Contains(t, board, "Intent Parsing")
}

func TestEligibleCardEmitsTriggerIntent(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusCompleted), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent: status(pipeline.StatusCompleted),
	})
	decomp, ok := Find(Project(snap), pipeline.Decomposition)
	require.True(t, ok)
	assert.Equal(t, ActionRun, decomp.Action)
	assert.Equal(t, TriggerStage{Key: pipeline.Decomposition}, decomp.Trigger())
	assert.Equal(t, SelectStage{Key: pipeline.Decomposition}, decomp.Select())
}

func TestProjectionIsIdempotent(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusPending), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent: {Status: pipeline.StatusCompleted, Data: json.RawMessage(`{"a": 1}`)},
	})
	first := Project(snap)
	second := Project(snap)
	assert.Equal(t, first, second)
	opts := BoardOptions{Width: 50, Selected: 2}
	assert.Equal(t, Board(first, opts), Board(second, opts))
}

func TestLinesPlainOutput(t *testing.T) {
	snap := snapshotWith(status(pipeline.StatusPending), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent: {Status: pipeline.StatusFailed, Error: "timeout"},
	})
	rows := Lines(Project(snap))
	require.Len(t, rows, 7)
	assert.True(t, strings.HasSuffix(rows[0], "[run]"))
	assert.Contains(t, rows[1], "error: timeout")
	assert.Equal(t, "run r1 · 0/6 stages complete · baseline pending", Summary(snap))
}

func TestServerTextIsEscapedForTheTerminal(t *testing.T) {
	payload := "boom\x1b]0;pwned\x07\x1b[2J"
	snap := snapshotWith(status(pipeline.StatusCompleted), map[pipeline.StageKey]pipeline.StageResult{
		pipeline.Intent: {Status: pipeline.StatusFailed, Error: payload},
	})
	snap.RunID = "r1\x1b[31m"
	cards := Project(snap)

	board := Board(cards, BoardOptions{Width: 60})
	rows := strings.Join(Lines(cards), "\n")
	summary := Summary(snap)
	for name, out := range map[string]string{"board": board, "lines": rows, "summary": summary} {
		assert.NotContains(t, out, "\x1b]0;pwned", name)
		assert.NotContains(t, out, "\x1b[2J", name)
		assert.NotContains(t, out, "\x1b[31m", name)
		assert.NotContains(t, out, "\x07", name)
	}
	assert.Contains(t, rows, `error: boom\x1b]0;pwned\x07\x1b[2J`)
	assert.Contains(t, summary, `run r1\x1b[31m ·`)
}
