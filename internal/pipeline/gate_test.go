package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

func newSnapshot(baseline Status, stages map[StageKey]Status) *Snapshot {
	snap := &Snapshot{
		RunID:    "run-1",
		Baseline: StageResult{Status: baseline},
		Stages:   map[StageKey]StageResult{},
	}
	for _, key := range Order {
		status := StatusPending
		if s, ok := stages[key]; ok {
			status = s
		}
		snap.Stages[key] = StageResult{Status: status}
	}
	return snap
}

func TestIsEligibleLaterStagesDependOnPredecessor(t *testing.T) {
	for i := 1; i < len(Order); i++ {
		key := Order[i]
		prev := Order[i-1]
		for _, own := range allStatuses {
			for _, before := range allStatuses {
				snap := newSnapshot(StatusPending, map[StageKey]Status{key: own, prev: before})
				want := own == StatusPending && before == StatusCompleted
				assert.Equal(t, want, IsEligible(key, snap), "%s own=%s prev=%s", key, own, before)
			}
		}
	}
}

func TestIsEligibleFirstStageIgnoresOthers(t *testing.T) {
	for _, own := range allStatuses {
		for _, other := range allStatuses {
			stages := map[StageKey]Status{Intent: own}
			for _, key := range Order[1:] {
				stages[key] = other
			}
			snap := newSnapshot(other, stages)
			assert.Equal(t, own == StatusPending, IsEligible(Intent, snap), "own=%s other=%s", own, other)
		}
	}
}

func TestIsEligibleBaselineIgnoresStages(t *testing.T) {
	for _, own := range allStatuses {
		for _, other := range allStatuses {
			stages := map[StageKey]Status{}
			for _, key := range Order {
				stages[key] = other
			}
			snap := newSnapshot(own, stages)
			assert.Equal(t, own == StatusPending, IsEligible(Baseline, snap), "baseline=%s stages=%s", own, other)
		}
	}
}

func TestIsEligibleRejectsUnknownInputs(t *testing.T) {
	assert.False(t, IsEligible(Intent, nil))
	assert.False(t, IsEligible(StageKey("summary"), newSnapshot(StatusPending, nil)))
}

func TestIsEligibleDoesNotMutate(t *testing.T) {
	snap := newSnapshot(StatusCompleted, map[StageKey]Status{Intent: StatusCompleted})
	before := len(snap.Stages)
	for _, key := range Keys() {
		IsEligible(key, snap)
	}
	assert.Len(t, snap.Stages, before)
	assert.Equal(t, StatusCompleted, snap.Stages[Intent].Status)
}

func TestEligibleScenarios(t *testing.T) {
	t.Run("fresh run", func(t *testing.T) {
		snap := newSnapshot(StatusPending, nil)
		// Intent is pending with no predecessor, so it is offered alongside the baseline.
		assert.Equal(t, []StageKey{Baseline, Intent}, Eligible(snap))
	})

	t.Run("intent done", func(t *testing.T) {
		snap := newSnapshot(StatusCompleted, map[StageKey]Status{Intent: StatusCompleted})
		assert.Equal(t, []StageKey{Decomposition}, Eligible(snap))
		assert.False(t, IsEligible(Claims, snap))
	})

	t.Run("intent failed", func(t *testing.T) {
		snap := newSnapshot(StatusCompleted, map[StageKey]Status{Intent: StatusFailed})
		assert.False(t, IsEligible(Decomposition, snap))
		assert.Empty(t, Eligible(snap))
	})
}

func TestMissingStageReadsAsPending(t *testing.T) {
	snap := &Snapshot{RunID: "r", Baseline: StageResult{Status: StatusCompleted}, Stages: map[StageKey]StageResult{}}
	assert.Equal(t, StatusPending, snap.Result(Claims).Status)
	assert.True(t, IsEligible(Intent, snap))
}

func TestParseStageKey(t *testing.T) {
	key, ok := ParseStageKey("  Claims ")
	assert.True(t, ok)
	assert.Equal(t, Claims, key)

	key, ok = ParseStageKey("baseline")
	assert.True(t, ok)
	assert.Equal(t, Baseline, key)

	_, ok = ParseStageKey("summary")
	assert.False(t, ok)
}
