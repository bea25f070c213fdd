package pipeline

import "strings"

// StageKey identifies one pipeline stage or the baseline slot.
type StageKey string

const (
	Intent        StageKey = "intent"
	Decomposition StageKey = "decomposition"
	Claims        StageKey = "claims"
	Critique      StageKey = "critique"
	Revision      StageKey = "revision"
	Evaluation    StageKey = "evaluation"

	// Baseline is the consumer baseline slot. It sits outside the stage order
	// and is addressed through its own endpoint.
	Baseline StageKey = "baseline"
)

// Order is the fixed execution order of the pipeline stages.
var Order = []StageKey{
	Intent,
	Decomposition,
	Claims,
	Critique,
	Revision,
	Evaluation,
}

var labels = map[StageKey]string{
	Intent:        "Intent Parsing",
	Decomposition: "Problem Decomposition",
	Claims:        "Claim Generation",
	Critique:      "Adversarial Critique",
	Revision:      "Epistemic Revision",
	Evaluation:    "Final Evaluation",
	Baseline:      "Consumer Baseline",
}

// Label returns the display name for the key.
func (k StageKey) Label() string {
	if label, ok := labels[k]; ok {
		return label
	}
	return string(k)
}

// Index returns the position of k in Order, or -1 for the baseline and
// unknown keys.
func (k StageKey) Index() int {
	for i, key := range Order {
		if key == k {
			return i
		}
	}
	return -1
}

// IsStage reports whether k is one of the six ordered pipeline stages.
func (k StageKey) IsStage() bool {
	return k.Index() >= 0
}

// Valid reports whether k is a pipeline stage or the baseline slot.
func (k StageKey) Valid() bool {
	return k == Baseline || k.IsStage()
}

// Previous returns the stage that gates k. ok is false for the first stage,
// the baseline and unknown keys.
func (k StageKey) Previous() (StageKey, bool) {
	idx := k.Index()
	if idx <= 0 {
		return "", false
	}
	return Order[idx-1], true
}

// Keys lists every slot in display order: baseline first, then the stages.
func Keys() []StageKey {
	keys := make([]StageKey, 0, len(Order)+1)
	keys = append(keys, Baseline)
	return append(keys, Order...)
}

// ParseStageKey normalizes user input ("Claims", " intent ") into a key.
func ParseStageKey(value string) (StageKey, bool) {
	key := StageKey(strings.ToLower(strings.TrimSpace(value)))
	if !key.Valid() {
		return "", false
	}
	return key, true
}

// Status is the lifecycle state of a stage as reported by the server.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status can no longer change without a server
// side reset.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
