package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the full state of one run as returned by the state endpoint.
// A Snapshot is never patched in place; each poll produces a new one.
type Snapshot struct {
	RunID       string                   `json:"run_id"`
	Directive   string                   `json:"directive,omitempty"`
	CreatedAt   Timestamp                `json:"created_at"`
	LastUpdated Timestamp                `json:"last_updated"`
	Baseline    StageResult              `json:"baseline"`
	Stages      map[StageKey]StageResult `json:"stages"`
}

// StageResult is the outcome of a stage (or the baseline) at observation time.
type StageResult struct {
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Provenance *Provenance     `json:"provenance,omitempty"`
}

// Provenance records how a stage output was produced.
type Provenance struct {
	ModelName      string         `json:"model_name"`
	Timestamp      Timestamp      `json:"timestamp"`
	RepairAttempts int            `json:"repair_attempts"`
	Prompt         string         `json:"prompt"`
	ModelParams    map[string]any `json:"model_params,omitempty"`
	RawResponse    string         `json:"raw_response,omitempty"`
}

// Result returns the slot for key. Missing slots read as pending so callers
// never have to special-case a malformed snapshot.
func (s *Snapshot) Result(key StageKey) StageResult {
	if s == nil {
		return StageResult{Status: StatusPending}
	}
	if key == Baseline {
		return s.Baseline.normalized()
	}
	res, ok := s.Stages[key]
	if !ok {
		return StageResult{Status: StatusPending}
	}
	return res.normalized()
}

func (r StageResult) normalized() StageResult {
	if r.Status == "" {
		r.Status = StatusPending
	}
	return r
}

// HasData reports whether the stage carries an output payload. A JSON null is
// treated the same as an absent field.
func (r StageResult) HasData() bool {
	trimmed := bytes.TrimSpace(r.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Completed counts finished pipeline stages (the baseline is excluded).
func (s *Snapshot) Completed() int {
	n := 0
	for _, key := range Order {
		if s.Result(key).Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Decode parses a state response body.
func Decode(body []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("pipeline: decode snapshot: %w", err)
	}
	if snap.Stages == nil {
		snap.Stages = map[StageKey]StageResult{}
	}
	return &snap, nil
}

// timestampLayouts covers RFC 3339 plus the zone-less ISO form the server
// emits for naive UTC datetimes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a time.Time that accepts timestamps without a zone suffix,
// interpreting them as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		t.Time = time.Time{}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("pipeline: timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("pipeline: unrecognized timestamp %q", value)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
