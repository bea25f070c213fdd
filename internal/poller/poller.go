// Package poller keeps the run-state store fresh while a run is active. Each
// cycle fetches the full state, applies it, and only then schedules the next
// cycle, so fetches never overlap and snapshots land in completion order.
// Failures are reported and the loop carries on at the next tick.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/store"
)

// DefaultInterval is the cadence between the end of one fetch and the start
// of the next.
const DefaultInterval = 2 * time.Second

var (
	// ErrNoRun is returned by Poll before a run id has been set.
	ErrNoRun = errors.New("poller: no active run")
	// ErrStale is returned when the active run changed while a fetch was in
	// flight; the late snapshot is discarded.
	ErrStale = errors.New("poller: snapshot belongs to a previous run")
)

// Fetcher reads the full state of a run.
type Fetcher interface {
	FetchState(ctx context.Context, runID string) (*pipeline.Snapshot, error)
}

// Poller refreshes a store from a Fetcher.
type Poller struct {
	fetcher  Fetcher
	store    *store.Store
	interval time.Duration
	after    func(time.Duration) <-chan time.Time
	onUpdate func(*pipeline.Snapshot)
	onError  func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces time.After, letting tests drive the cadence.
func WithClock(after func(time.Duration) <-chan time.Time) Option {
	return func(p *Poller) {
		if after != nil {
			p.after = after
		}
	}
}

// OnUpdate registers a hook that runs after each applied snapshot.
func OnUpdate(fn func(*pipeline.Snapshot)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// OnError registers a hook that runs after each failed fetch.
func OnError(fn func(error)) Option {
	return func(p *Poller) {
		p.onError = fn
	}
}

// New wires a poller to its fetcher and store.
func New(fetcher Fetcher, st *store.Store, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		store:    st,
		interval: DefaultInterval,
		after:    time.After,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Interval returns the configured cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Poll runs a single fetch-and-apply cycle. On failure the store keeps its
// previous snapshot.
func (p *Poller) Poll(ctx context.Context) error {
	runID := p.store.RunID()
	if runID == "" {
		return ErrNoRun
	}
	snap, err := p.fetcher.FetchState(ctx, runID)
	if err != nil {
		if ctx.Err() == nil && p.onError != nil {
			p.onError(err)
		}
		return err
	}
	if p.store.RunID() != runID || !p.store.SetSnapshot(snap) {
		return ErrStale
	}
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
	return nil
}

// Run polls until ctx is cancelled. Errors never end the loop.
func (p *Poller) Run(ctx context.Context) {
	for {
		_ = p.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-p.after(p.interval):
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Start runs the loop in the background, replacing any loop already running.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()
	go func() {
		defer close(done)
		p.Run(loopCtx)
	}()
}

// Stop cancels the background loop, including an in-flight fetch, and waits
// for it to exit. It is a no-op when nothing is running.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a background loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
