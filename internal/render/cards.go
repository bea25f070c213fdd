// Package render projects a run snapshot into stage cards. Projection is a
// pure function of the snapshot; every refresh rebuilds the full card list
// instead of patching the previous one.
package render

import (
	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/termsafe"
)

// Indicator is the visual state of a card's status light.
type Indicator string

const (
	IndicatorNeutral Indicator = "neutral"
	IndicatorActive  Indicator = "active"
	IndicatorSuccess Indicator = "success"
	IndicatorError   Indicator = "error"
)

// Action is the control a card offers.
type Action int

const (
	ActionNone Action = iota
	ActionRun
	ActionProcessing
)

func (a Action) String() string {
	switch a {
	case ActionRun:
		return "run"
	case ActionProcessing:
		return "processing"
	default:
		return "none"
	}
}

// Card is the projection of one slot. Error is already escaped for the
// terminal.
type Card struct {
	Key       pipeline.StageKey
	Label     string
	Status    pipeline.Status
	Indicator Indicator
	Error     string
	Action    Action
	HasOutput bool
}

// Intent is a request emitted by the board for the controller to carry out.
type Intent interface {
	StageKey() pipeline.StageKey
}

// TriggerStage asks the controller to start a stage (or the baseline).
type TriggerStage struct {
	Key pipeline.StageKey
}

// StageKey implements Intent.
func (i TriggerStage) StageKey() pipeline.StageKey { return i.Key }

// SelectStage asks the controller to open a stage in the detail viewer.
type SelectStage struct {
	Key pipeline.StageKey
}

// StageKey implements Intent.
func (i SelectStage) StageKey() pipeline.StageKey { return i.Key }

// Trigger returns the run intent, or nil when the card offers no run control.
func (c Card) Trigger() Intent {
	if c.Action != ActionRun {
		return nil
	}
	return TriggerStage{Key: c.Key}
}

// Select returns the inspect intent. Every card can be inspected.
func (c Card) Select() Intent {
	return SelectStage{Key: c.Key}
}

// Project builds one card per slot: the baseline first, then the stages in
// pipeline order. A nil snapshot yields no cards.
func Project(snap *pipeline.Snapshot) []Card {
	if snap == nil {
		return nil
	}
	keys := pipeline.Keys()
	cards := make([]Card, 0, len(keys))
	for _, key := range keys {
		cards = append(cards, projectCard(key, snap))
	}
	return cards
}

func projectCard(key pipeline.StageKey, snap *pipeline.Snapshot) Card {
	res := snap.Result(key)
	card := Card{
		Key:       key,
		Label:     key.Label(),
		Status:    res.Status,
		Indicator: IndicatorFor(res.Status),
		HasOutput: res.HasData(),
	}
	if res.Status == pipeline.StatusFailed {
		card.Error = termsafe.Escape(res.Error)
	}
	switch {
	case res.Status == pipeline.StatusPending && pipeline.IsEligible(key, snap):
		card.Action = ActionRun
	case res.Status == pipeline.StatusRunning:
		card.Action = ActionProcessing
	}
	return card
}

// IndicatorFor maps a status onto its indicator.
func IndicatorFor(status pipeline.Status) Indicator {
	switch status {
	case pipeline.StatusRunning:
		return IndicatorActive
	case pipeline.StatusCompleted:
		return IndicatorSuccess
	case pipeline.StatusFailed:
		return IndicatorError
	default:
		return IndicatorNeutral
	}
}

// Find returns the card for key.
func Find(cards []Card, key pipeline.StageKey) (Card, bool) {
	for _, c := range cards {
		if c.Key == key {
			return c, true
		}
	}
	return Card{}, false
}
