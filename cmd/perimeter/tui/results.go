package tui

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/output"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// sortCycle is the order the "o" key steps through.
var sortCycle = []filter.SortField{
	filter.SortPath,
	filter.SortOwner,
	filter.SortGroup,
	filter.SortMode,
	filter.SortSize,
	filter.SortAge,
}

// ResultModel browses the records of a finished collection.
type ResultModel struct {
	all     []types.Record
	visible []types.Record
	base    filter.Filter

	worldWritable bool
	setID         bool
	unresolved    bool
	sortBy        filter.SortField

	logs     *logging.Buffer
	showLogs bool

	root        string
	runID       string
	warnings    []string
	interrupted bool
	stats       output.Stats

	cursor int
	offset int
	width  int
	height int
}

// NewResultModel creates the browser over records. base holds the filter
// given on the command line; the quick filters narrow it further.
func NewResultModel(records []types.Record, base *filter.Filter) ResultModel {
	if base == nil {
		base = filter.New()
	}
	m := ResultModel{
		all:    records,
		base:   *base,
		sortBy: base.SortBy,
		width:  80,
		height: 24,
	}
	m.refresh()
	return m
}

// SetSummary records the collection details shown in the header.
func (m *ResultModel) SetSummary(root string, msg CollectCompleteMsg) {
	m.root = root
	m.runID = msg.RunID
	m.warnings = msg.Warnings
	m.interrupted = msg.Interrupted
	if msg.Result != nil {
		m.stats = output.NewResult(root, msg.Result).Stats
	}
}

// activeFilter combines the command-line filter with the quick filters.
func (m ResultModel) activeFilter() *filter.Filter {
	f := m.base
	f.WorldWritable = f.WorldWritable || m.worldWritable
	f.SetID = f.SetID || m.setID
	f.UnresolvedOnly = f.UnresolvedOnly || m.unresolved
	if f.SortBy != m.sortBy {
		f.SortBy = m.sortBy
		f.SortDescending = m.sortBy == filter.SortMode || m.sortBy == filter.SortSize || m.sortBy == filter.SortAge
	}
	return &f
}

func (m *ResultModel) refresh() {
	m.visible = m.activeFilter().Apply(m.all)
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
	m.ensureVisible()
}

// HandleKey applies a key press to the browser.
func (m *ResultModel) HandleKey(key string) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
			m.ensureVisible()
		}
	case "home", "g":
		m.cursor = 0
		m.offset = 0
	case "end", "G":
		m.cursor = max(len(m.visible)-1, 0)
		m.ensureVisible()
	case "pgup":
		m.cursor = max(m.cursor-m.visibleRows(), 0)
		m.ensureVisible()
	case "pgdown":
		m.cursor = max(min(m.cursor+m.visibleRows(), len(m.visible)-1), 0)
		m.ensureVisible()
	case "w":
		m.worldWritable = !m.worldWritable
		m.refresh()
	case "s":
		m.setID = !m.setID
		m.refresh()
	case "u":
		m.unresolved = !m.unresolved
		m.refresh()
	case "o":
		m.sortBy = nextSort(m.sortBy)
		m.refresh()
	case "l":
		m.showLogs = !m.showLogs && m.logs != nil
	}
}

func nextSort(current filter.SortField) filter.SortField {
	for i, f := range sortCycle {
		if f == current {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return filter.SortPath
}

// View renders the browser.
func (m ResultModel) View() string {
	contentWidth := max(m.width-4, 60)

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if line := m.renderNotices(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")

	switch {
	case m.showLogs:
		b.WriteString(m.renderLogPanel(contentWidth))
	case len(m.visible) == 0:
		b.WriteString("\n")
		b.WriteString(center(mutedTextStyle.Render("No records matched"), contentWidth))
		b.WriteString("\n\n")
	default:
		b.WriteString(m.renderRecordList(contentWidth))
	}

	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m ResultModel) renderHeader() string {
	header := titleStyle.Render("  perimeter") + mutedTextStyle.Render(fmt.Sprintf("  %d of %d records  •  %s", len(m.visible), len(m.all), m.root))
	if m.runID != "" {
		header += mutedTextStyle.Render("  •  run " + m.runID)
	}
	if m.interrupted {
		header += warningTextStyle.Render("  ● PARTIAL")
	}
	return header
}

func (m ResultModel) renderNotices() string {
	var parts []string
	if m.stats.Unresolved > 0 {
		parts = append(parts, errorTextStyle.Render(fmt.Sprintf("%d unresolved", m.stats.Unresolved)))
	}
	for _, w := range m.warnings {
		parts = append(parts, warningTextStyle.Render(w))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, mutedTextStyle.Render("  |  "))
}

func (m ResultModel) renderHelpBar() string {
	toggle := func(key, desc string, on bool) string {
		if on {
			return keyStyle.Render("["+key+"]") + " " + activeToggleStyle.Render(desc)
		}
		return keyHint(key, desc)
	}
	parts := []string{
		toggle("w", "World-writable", m.worldWritable),
		toggle("s", "Setuid/setgid", m.setID),
		toggle("u", "Unresolved", m.unresolved),
		keyHint("o", "Sort: "+m.sortBy.String()),
	}
	if m.logs != nil {
		parts = append(parts, toggle("l", "Logs", m.showLogs))
	}
	parts = append(parts, keyHint("q", "Quit"))
	return "  " + strings.Join(parts, "  ")
}

func (m ResultModel) renderRecordList(width int) string {
	var b strings.Builder
	rows := m.visibleRows()
	pathWidth := max(width-48, 10)

	lines := 0
	for i := m.offset; i < m.offset+rows && i < len(m.visible); i++ {
		rec := m.visible[i]
		b.WriteString(m.renderRecordLine(rec, i == m.cursor, pathWidth))
		b.WriteString("\n")
		lines++
		if i == m.cursor {
			b.WriteString(renderRecordDetails(rec))
			b.WriteString("\n")
			lines++
		}
	}
	for ; lines < rows+1; lines++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m ResultModel) renderRecordLine(rec types.Record, isCursor bool, pathWidth int) string {
	cursor := " "
	if isCursor {
		cursor = cursorStyle.Render(">")
	}

	owner := output.DisplayID(rec.UserID) + ":" + output.DisplayID(rec.GroupID)
	line := fmt.Sprintf("  %s %s %s %s %s  %s",
		cursor,
		padRight(rec.Kind.String(), 9),
		padRight(owner, 11),
		padRight(output.DisplayPerms(rec.Permissions), 10),
		padRight(rec.HumanSize(), 9),
		truncatePath(rec.Path, pathWidth),
	)

	if isCursor {
		return selectedItemStyle.Render(line)
	}
	if !rec.Resolved() && rec.Kind != types.KindOther {
		return errorTextStyle.Render(line)
	}
	return normalItemStyle.Render(line)
}

// renderLogPanel shows the newest buffered log entries in place of the list.
func (m ResultModel) renderLogPanel(width int) string {
	rows := m.visibleRows() + 1
	entries := m.logs.Last(rows)

	var b strings.Builder
	lines := len(entries)
	if lines == 0 {
		b.WriteString("\n")
		b.WriteString(center(mutedTextStyle.Render("No log entries"), width))
		b.WriteString("\n")
		lines = 2
	}
	for _, e := range entries {
		line := "  " + truncateEnd(e.String(), width-2)
		switch e.Level {
		case logging.LevelError:
			line = errorTextStyle.Render(line)
		case logging.LevelWarn:
			line = warningTextStyle.Render(line)
		default:
			line = mutedTextStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	for ; lines < rows; lines++ {
		b.WriteString("\n")
	}
	return b.String()
}

func renderRecordDetails(rec types.Record) string {
	var parts []string
	if rec.Mode != 0 {
		parts = append(parts, fmt.Sprintf("Mode: %04o", uint32(rec.Mode.Perm())|specialBits(rec)))
	}
	if !rec.ModTime.IsZero() {
		parts = append(parts, "Modified: "+rec.ModTime.Format("2006-01-02 15:04"))
	}
	switch {
	case rec.Kind == types.KindOther:
		parts = append(parts, "Not resolved for this kind")
	case !rec.Resolved():
		parts = append(parts, "Metadata could not be read")
	}
	return detailStyle.Render(strings.Join(parts, "  "))
}

func specialBits(rec types.Record) uint32 {
	var bits uint32
	if rec.Mode&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if rec.Mode&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if rec.Mode&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}

func (m ResultModel) renderFooter() string {
	return "  " + keyHint("↑↓", "Navigate") + "  " + keyHint("g/G", "Top/Bottom") + "  " + keyHint("PgUp/PgDn", "Page")
}

// visibleRows returns how many records fit on screen; the cursor row takes
// an extra line for its details.
func (m ResultModel) visibleRows() int {
	return max(m.height-14, 5)
}

func (m *ResultModel) ensureVisible() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// SetDimensions updates the terminal size.
func (m *ResultModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	m.ensureVisible()
}

// Visible returns the records that pass the active filters, in display order.
func (m ResultModel) Visible() []types.Record {
	return m.visible
}

// Cursor returns the cursor position within Visible.
func (m ResultModel) Cursor() int {
	return m.cursor
}

// SortBy returns the active sort field.
func (m ResultModel) SortBy() filter.SortField {
	return m.sortBy
}
