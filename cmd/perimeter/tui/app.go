package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// AppState is the current screen.
type AppState int

const (
	StateCollecting AppState = iota
	StateResults
)

// FinishFunc runs after the collection pass returns, before the results are
// shown. It may store the run and returns the run id and any warnings.
type FinishFunc func(result *types.CollectResult, interrupted bool) (runID string, warnings []string)

// Options configures the browser.
type Options struct {
	// Collector configures the pass. OnProgress is replaced by the browser.
	Collector collector.Options

	// Filter is applied before the quick filters. Nil shows every record.
	Filter *filter.Filter

	// Finish is optional.
	Finish FinishFunc

	// Logs backs the log panel. Nil hides it.
	Logs *logging.Buffer
}

// Model is the Bubble Tea model for the browser.
type Model struct {
	state        AppState
	collectModel CollectModel
	resultModel  ResultModel
	options      Options

	ctx          context.Context
	cancel       context.CancelFunc
	progressChan chan types.CollectProgress
	err          error

	width  int
	height int
}

// NewModel creates the browser model. Cancelling ctx stops the collection.
func NewModel(ctx context.Context, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		state:        StateCollecting,
		collectModel: NewCollectModel(opts.Collector.Root),
		options:      opts,
		ctx:          ctx,
		cancel:       cancel,
		progressChan: make(chan types.CollectProgress, 100),
		width:        80,
		height:       24,
	}
}

// Init starts the collection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.collectModel.Init(),
		m.startCollect(),
		m.listenForProgress(),
		tickUI(),
	)
}

type tickUIMsg struct{}

// tickUI refreshes the elapsed time while collecting.
func tickUI() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickUIMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.collectModel.width = msg.Width
		m.collectModel.height = msg.Height
		m.resultModel.SetDimensions(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickUIMsg:
		if m.state == StateCollecting && !m.collectModel.IsDone() {
			return m, tickUI()
		}
		return m, nil

	case ProgressMsg:
		m.collectModel.SetProgress(types.CollectProgress(msg))
		return m, m.listenForProgress()

	case CollectCompleteMsg:
		m.collectModel.SetDone(msg.Err)
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.state = StateResults
		m.resultModel = NewResultModel(msg.Result.Records, m.options.Filter)
		m.resultModel.logs = m.options.Logs
		m.resultModel.SetSummary(m.options.Collector.Root, msg)
		m.resultModel.SetDimensions(m.width, m.height)
		return m, nil

	case spinner.TickMsg:
		if m.state != StateCollecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.collectModel, cmd = m.collectModel.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.state {
	case StateCollecting:
		switch key {
		case "ctrl+c":
			// The pass returns its partial records and the browser opens on them.
			if !m.collectModel.IsDone() {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		case "q", "esc":
			m.cancel()
			return m, tea.Quit
		}

	case StateResults:
		switch key {
		case "q", "esc", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		default:
			m.resultModel.HandleKey(key)
		}
	}

	return m, nil
}

// View renders the current screen.
func (m Model) View() string {
	if m.state == StateResults {
		return m.resultModel.View()
	}
	return m.collectModel.View()
}

// State returns the current screen.
func (m Model) State() AppState {
	return m.state
}

// Err returns the collection error, if the pass failed.
func (m Model) Err() error {
	return m.err
}

func (m Model) startCollect() tea.Cmd {
	ctx := m.ctx
	opts := m.options.Collector
	finish := m.options.Finish
	progressChan := m.progressChan

	return func() tea.Msg {
		opts.OnProgress = func(p types.CollectProgress) {
			select {
			case progressChan <- p:
			default:
			}
		}

		result, err := collector.Collect(ctx, opts)
		close(progressChan)

		interrupted := false
		if err != nil {
			if result == nil || !errors.Is(err, context.Canceled) {
				return CollectCompleteMsg{Err: err}
			}
			interrupted = true
		}

		msg := CollectCompleteMsg{Result: result, Interrupted: interrupted}
		if finish != nil {
			msg.RunID, msg.Warnings = finish(result, interrupted)
		}
		return msg
	}
}

func (m Model) listenForProgress() tea.Cmd {
	progressChan := m.progressChan
	return func() tea.Msg {
		p, ok := <-progressChan
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

// Run starts the browser and blocks until the user quits. It returns the
// collection error if the pass failed.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
