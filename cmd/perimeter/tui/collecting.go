package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// CollectModel is the progress view shown while a collection runs.
type CollectModel struct {
	progress  types.CollectProgress
	spinner   spinner.Model
	startTime time.Time
	width     int
	height    int
	root      string
	done      bool
	err       error
}

// ProgressMsg carries a collector progress update.
type ProgressMsg types.CollectProgress

// CollectCompleteMsg is sent once the collection pass returns.
type CollectCompleteMsg struct {
	Result *types.CollectResult
	Err    error

	// Interrupted is set when the pass was cancelled and Result is partial.
	Interrupted bool

	// RunID is the stored run id, empty when the run was not stored.
	RunID string

	// Warnings are surfaced in the results header.
	Warnings []string
}

// NewCollectModel creates the progress view for root.
func NewCollectModel(root string) CollectModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return CollectModel{
		spinner:   s,
		startTime: time.Now(),
		width:     80,
		height:    24,
		root:      root,
	}
}

// Init starts the spinner.
func (m CollectModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the progress view.
func (m CollectModel) Update(msg tea.Msg) (CollectModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case ProgressMsg:
		m.SetProgress(types.CollectProgress(msg))
	case CollectCompleteMsg:
		m.SetDone(msg.Err)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the progress view.
func (m CollectModel) View() string {
	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case m.done:
		b.WriteString(successTextStyle.Render("  Collection complete"))
	default:
		fmt.Fprintf(&b, "  %s Collecting: %s", m.spinner.View(), truncatePath(m.progress.CurrentPath, contentWidth-20))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	content := b.String()
	if pad := m.height - 2 - (strings.Count(content, "\n") + 1); pad > 0 {
		content += strings.Repeat("\n", pad)
	}

	return outerBoxStyle.Width(m.width - 2).Height(max(m.height-2, 0)).Render(content)
}

func (m CollectModel) renderHeader(width int) string {
	title := titleStyle.Render("  perimeter  " + truncatePath(m.root, width/2))
	hint := mutedTextStyle.Render("[Ctrl+C to stop]")
	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

func (m CollectModel) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-12)/5, 10)

	boxes := []string{
		m.renderStatBox("Dirs", humanize.Comma(m.progress.DirsCollected), boxWidth),
		m.renderStatBox("Files", humanize.Comma(m.progress.FilesCollected), boxWidth),
		m.renderStatBox("Other", humanize.Comma(m.progress.OthersCollected), boxWidth),
		m.renderStatBox("Unresolved", humanize.Comma(m.progress.Unresolved), boxWidth),
		m.renderStatBox("Time", formatClock(time.Since(m.startTime)), boxWidth),
	}

	parts := []string{"  "}
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m CollectModel) renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-2),
		center(statsValueStyle.Render(value), width-2))
	return statsBoxStyle.Width(width).Render(content)
}

// formatClock formats a duration as M:SS.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// SetProgress updates the counters.
func (m *CollectModel) SetProgress(p types.CollectProgress) {
	m.progress = p
}

// SetDone marks the collection as finished.
func (m *CollectModel) SetDone(err error) {
	m.done = true
	m.err = err
}

// IsDone reports whether the collection has finished.
func (m CollectModel) IsDone() bool {
	return m.done
}

// Error returns the collection error, if any.
func (m CollectModel) Error() error {
	return m.err
}
