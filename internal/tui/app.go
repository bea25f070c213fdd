// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for the REFLEX console.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// Network calls never run inside Update. They run as commands and report
// back as messages, so Update is the only place state changes.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/reflex-console/internal/client"
	"github.com/kingrea/reflex-console/internal/config"
	"github.com/kingrea/reflex-console/internal/logbook"
	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/poller"
	"github.com/kingrea/reflex-console/internal/render"
	"github.com/kingrea/reflex-console/internal/store"
	"github.com/kingrea/reflex-console/internal/viewer"
)

// appState represents which "screen" we're on
type appState int

const (
	stateSetup    appState = iota // Directive input before a run exists
	statePipeline                 // Board for the active run
)

const (
	statusIdle      = "STATUS: SYSTEM IDLE"
	startLabel      = "START RUN"
	initializingMsg = "Initializing…"
)

// Backend is the part of the REFLEX server the console talks to.
type Backend interface {
	CreateRun(ctx context.Context, directive string) (string, error)
	FetchState(ctx context.Context, runID string) (*pipeline.Snapshot, error)
	Trigger(ctx context.Context, runID string, key pipeline.StageKey) error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBackend replaces the HTTP client built from config.
func WithBackend(b Backend) AppOption {
	return func(a *App) {
		if b != nil {
			a.backend = b
		}
	}
}

// WithLogbook replaces the logbook opened from config.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		if lb != nil {
			a.logbook = lb
		}
	}
}

// WithRunID attaches to an existing run instead of showing the setup screen.
func WithRunID(runID string) AppOption {
	return func(a *App) {
		a.attachRunID = strings.TrimSpace(runID)
	}
}

// WithContext sets the parent context for every network call.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

type runCreatedMsg struct {
	runID string
	err   error
}

type pollResultMsg struct {
	gen        int
	snapshot   *pipeline.Snapshot
	err        error
	reschedule bool
}

type pollTickMsg struct {
	gen int
}

type triggerResultMsg struct {
	key pipeline.StageKey
	err error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	backend Backend
	store   *store.Store
	poller  *poller.Poller
	logbook *logbook.Logbook

	ctx         context.Context
	runCtx      context.Context
	runCancel   context.CancelFunc
	pollGen     int
	attachRunID string

	// Setup screen
	input    textinput.Model
	creating bool
	banner   string

	// Pipeline screen
	cards     []render.Card
	selection int
	detail    *viewer.Detail
	viewport  viewport.Model
	spinner   spinner.Model

	showProvenance     bool
	reactiveProvenance bool

	activity     string
	pollErr      string
	lastLogEntry string

	// Log panel cache. Entries written off the Update goroutine only mark
	// it dirty.
	logTail  []string
	logTotal int
	logDirty atomic.Bool

	keys keyMap
	help help.Model

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates a new App instance
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	input := textinput.New()
	input.Placeholder = "Enter a research directive…"
	input.CharLimit = 2000
	input.Width = 60
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	app := &App{
		state:              stateSetup,
		config:             cfg,
		store:              store.New(),
		ctx:                context.Background(),
		input:              input,
		viewport:           viewport.New(60, 12),
		spinner:            spin,
		showProvenance:     cfg.Project.UI.ShowProvenance,
		reactiveProvenance: cfg.Project.UI.ReactiveProvenance,
		keys:               defaultKeyMap(),
		help:               help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.logbook == nil {
		lb, err := logbook.New(cfg.LogPath(), logbook.WithLevel(logbook.ParseLevel(cfg.Project.Log.Level)))
		if err == nil {
			app.logbook = lb
		}
	}
	if app.backend == nil {
		app.backend = client.New(cfg.BaseURL(),
			client.WithTimeout(cfg.Project.API.Timeout),
			client.WithNotifier(func(err *client.TransportError) {
				if app.logbook != nil {
					app.logbook.Debug("api: %v", err)
					app.logDirty.Store(true)
				}
			}),
		)
	}
	app.poller = poller.New(app.backend, app.store, poller.WithInterval(cfg.PollInterval()))
	app.logInfo("Session opened · server %s", cfg.BaseURL())
	return app, nil
}

func (a *App) logDebug(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Debug(format, args...)
	a.refreshLogTail()
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
	a.refreshLogTail()
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
	a.refreshLogTail()
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
	a.refreshLogTail()
}

// refreshLogTail reloads the lines shown in the log panel.
func (a *App) refreshLogTail() {
	a.logDirty.Store(false)
	if a.logbook == nil {
		return
	}
	a.logTail, a.logTotal = a.logbook.Tail(logPanelLines)
}

// logOnce skips an entry identical to the previous one, so a server that
// stays down does not fill the log every cycle.
func (a *App) logOnce(format string, args ...any) {
	entry := strings.TrimSpace(fmt.Sprintf(format, args...))
	if entry == "" || entry == a.lastLogEntry {
		return
	}
	a.lastLogEntry = entry
	a.logWarn("%s", entry)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, a.spinner.Tick}
	if a.attachRunID != "" {
		a.logInfo("Attaching to run %s", a.attachRunID)
		cmds = append(cmds, a.beginRun(a.attachRunID))
	}
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.logDirty.Load() {
		a.refreshLogTail()
	}
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, msg.Width-12)
		a.help.Width = msg.Width
		_, detailWidth := a.columnWidths()
		a.viewport.Width = max(20, detailWidth-4)
		a.viewport.Height = max(5, msg.Height-16)
		if a.detail != nil {
			a.viewport.SetContent(viewer.Render(*a.detail, a.viewport.Width))
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case runCreatedMsg:
		return a.handleRunCreated(msg)

	case pollResultMsg:
		return a.handlePollResult(msg)

	case pollTickMsg:
		if msg.gen != a.pollGen || a.runCtx == nil {
			return a, nil
		}
		return a, a.pollCmd(a.runCtx, msg.gen, true)

	case triggerResultMsg:
		if msg.err != nil {
			a.logError("Trigger %s failed: %v", msg.key.Label(), msg.err)
		} else {
			a.logInfo("Triggered %s", msg.key.Label())
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a.quit()
		}
		switch a.state {
		case stateSetup:
			return a.updateSetup(msg)
		case statePipeline:
			return a.updatePipeline(msg)
		}
	}

	if a.state == stateSetup {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateSetup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.banner != "" {
		switch msg.String() {
		case "enter", "esc":
			a.banner = ""
			return a, a.input.Focus()
		}
		return a, nil
	}
	if msg.String() == "enter" {
		return a.startRun()
	}
	if a.creating {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) updatePipeline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a.quit()
	case key.Matches(msg, a.keys.Up):
		if a.selection > 0 {
			a.selection--
		}
	case key.Matches(msg, a.keys.Down):
		if a.selection < len(a.cards)-1 {
			a.selection++
		}
	case key.Matches(msg, a.keys.Run):
		if card, ok := a.selectedCard(); ok {
			return a, a.dispatch(card.Trigger())
		}
	case key.Matches(msg, a.keys.Inspect):
		if card, ok := a.selectedCard(); ok {
			return a, a.dispatch(card.Select())
		}
	case key.Matches(msg, a.keys.Provenance):
		a.toggleProvenance()
	case key.Matches(msg, a.keys.Refresh):
		if a.runCtx != nil {
			return a, a.pollCmd(a.runCtx, a.pollGen, false)
		}
	case key.Matches(msg, a.keys.Close):
		a.detail = nil
	case key.Matches(msg, a.keys.NewRun):
		a.resetToSetup()
		return a, a.input.Focus()
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.ScrollUp), key.Matches(msg, a.keys.ScrollDown):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) quit() (tea.Model, tea.Cmd) {
	a.stopPolling()
	a.logInfo("Session closed")
	return a, tea.Quit
}

// startRun submits the directive. The start action stays disabled until the
// create call resolves.
func (a *App) startRun() (tea.Model, tea.Cmd) {
	directive := strings.TrimSpace(a.input.Value())
	if a.creating || directive == "" {
		return a, nil
	}
	a.creating = true
	a.input.Blur()
	ctx := a.ctx
	backend := a.backend
	return a, func() tea.Msg {
		runID, err := backend.CreateRun(ctx, directive)
		return runCreatedMsg{runID: runID, err: err}
	}
}

func (a *App) handleRunCreated(msg runCreatedMsg) (tea.Model, tea.Cmd) {
	a.creating = false
	if msg.err != nil {
		a.banner = fmt.Sprintf("Failed to start run: %v", msg.err)
		a.logError("Create run failed: %v", msg.err)
		return a, nil
	}
	a.logInfo("Run %s created", msg.runID)
	return a, a.beginRun(msg.runID)
}

// beginRun binds a fresh poll loop to runID, cancelling any previous one.
func (a *App) beginRun(runID string) tea.Cmd {
	a.stopPolling()
	a.store.SetRunID(runID)
	a.runCtx, a.runCancel = context.WithCancel(a.ctx)
	a.state = statePipeline
	a.cards = nil
	a.selection = 0
	a.detail = nil
	a.activity = ""
	a.pollErr = ""
	return a.pollCmd(a.runCtx, a.pollGen, true)
}

// stopPolling cancels the in-flight fetch and invalidates pending ticks.
func (a *App) stopPolling() {
	a.pollGen++
	if a.runCancel != nil {
		a.runCancel()
	}
	a.runCtx, a.runCancel = nil, nil
}

func (a *App) resetToSetup() {
	a.stopPolling()
	a.store.Reset()
	a.state = stateSetup
	a.cards = nil
	a.detail = nil
	a.selection = 0
	a.activity = ""
	a.pollErr = ""
	a.input.SetValue("")
}

func (a *App) pollCmd(ctx context.Context, gen int, reschedule bool) tea.Cmd {
	p, st := a.poller, a.store
	return func() tea.Msg {
		err := p.Poll(ctx)
		return pollResultMsg{gen: gen, snapshot: st.Snapshot(), err: err, reschedule: reschedule}
	}
}

func (a *App) scheduleNextPoll(gen int) tea.Cmd {
	return tea.Tick(a.poller.Interval(), func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

func (a *App) handlePollResult(msg pollResultMsg) (tea.Model, tea.Cmd) {
	if msg.gen != a.pollGen {
		return a, nil
	}
	switch {
	case msg.err == nil:
		a.pollErr = ""
		a.lastLogEntry = ""
		a.activity = ""
		a.cards = render.Project(msg.snapshot)
		if a.selection >= len(a.cards) {
			a.selection = max(0, len(a.cards)-1)
		}
	case errors.Is(msg.err, poller.ErrStale), errors.Is(msg.err, poller.ErrNoRun), errors.Is(msg.err, context.Canceled):
	default:
		a.pollErr = msg.err.Error()
		a.logOnce("Poll failed: %v", msg.err)
	}
	if !msg.reschedule {
		return a, nil
	}
	return a, a.scheduleNextPoll(msg.gen)
}

// dispatch turns a renderer intent into an action.
func (a *App) dispatch(intent render.Intent) tea.Cmd {
	switch in := intent.(type) {
	case render.TriggerStage:
		return a.triggerCmd(in.Key)
	case render.SelectStage:
		a.openDetail(in.Key)
	}
	return nil
}

// triggerCmd fires the trigger and does not wait for the stage to finish;
// the poller picks up the new status.
func (a *App) triggerCmd(stage pipeline.StageKey) tea.Cmd {
	if !a.store.Active() || a.runCtx == nil {
		return nil
	}
	runID := a.store.RunID()
	if stage == pipeline.Baseline {
		a.activity = "STATUS: RUNNING BASELINE…"
	} else {
		a.activity = fmt.Sprintf("STATUS: EXECUTING %s…", strings.ToUpper(string(stage)))
	}
	ctx, backend := a.runCtx, a.backend
	return func() tea.Msg {
		return triggerResultMsg{key: stage, err: backend.Trigger(ctx, runID, stage)}
	}
}

func (a *App) openDetail(stage pipeline.StageKey) {
	d := viewer.Open(stage, a.store.Snapshot(), viewer.Options{ShowProvenance: a.showProvenance})
	a.detail = &d
	a.viewport.SetContent(viewer.Render(d, a.viewport.Width))
	a.viewport.GotoTop()
}

// toggleProvenance flips the toggle. An open detail is re-rendered only when
// reactive provenance is configured; otherwise it changes on next open.
func (a *App) toggleProvenance() {
	a.showProvenance = !a.showProvenance
	if a.config != nil {
		if err := a.config.SetShowProvenance(a.showProvenance); err != nil {
			a.logWarn("Saving provenance preference failed: %v", err)
		}
	}
	if a.reactiveProvenance && a.detail != nil {
		a.openDetail(a.detail.Key)
	}
}

func (a *App) selectedCard() (render.Card, bool) {
	if a.selection < 0 || a.selection >= len(a.cards) {
		return render.Card{}, false
	}
	return a.cards[a.selection], true
}

func (a *App) statusLine() string {
	if a.activity != "" {
		return a.activity
	}
	return statusIdle
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
