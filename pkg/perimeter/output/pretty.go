package output

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// PrettyFormatter renders a styled table for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}

	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Source:"), ValueStyle.Render(r.Source)))

	info := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Collected:"), ValueStyle.Render(fmt.Sprintf(
			"%s dirs, %s files, %s other in %s",
			humanize.Comma(r.Stats.Dirs),
			humanize.Comma(r.Stats.Files),
			humanize.Comma(r.Stats.Others),
			formatDuration(r.Stats.Duration),
		))),
	}
	if r.PermissionFormat != "" {
		info = append(info, fmt.Sprintf("%s %s", LabelStyle.Render("Format:"), MutedStyle.Render(r.PermissionFormat)))
	}
	lines = append(lines, strings.Join(info, "  "))

	if r.RunID != "" {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Run:"), MutedStyle.Render(r.RunID)))
	}

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Collection interrupted, results are partial"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Records) == 0 {
		return MutedStyle.Render("  No records matched") + "\n"
	}

	rows := make([][]string, len(r.Records))
	widths := make([]int, len(columns))
	for i, name := range columns {
		widths[i] = len(name)
	}
	for i := range r.Records {
		rows[i] = row(&r.Records[i])
		for j, cell := range rows[i] {
			if j < len(columns)-1 && len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
	}

	var sb strings.Builder

	header := make([]string, len(columns))
	for i, name := range columns {
		header[i] = TableHeaderStyle.Render(pad(name, widths[i], i == 4))
	}
	sb.WriteString("  " + strings.Join(header, "  ") + "\n")

	for i := range r.Records {
		rec := &r.Records[i]
		cells := rows[i]
		styled := []string{
			kindStyle(rec.Kind).Render(pad(cells[0], widths[0], false)),
			idStyle(rec.UserID).Render(pad(cells[1], widths[1], true)),
			idStyle(rec.GroupID).Render(pad(cells[2], widths[2], true)),
			permStyle(rec).Render(pad(cells[3], widths[3], false)),
			SizeStyle.Render(pad(cells[4], widths[4], true)),
			PathStyle.Render(cells[5]),
		}
		sb.WriteString("  " + strings.Join(styled, "  ") + "\n")
	}

	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Records:"),
			ValueStyle.Render(fmt.Sprintf("%s of %s", humanize.Comma(int64(len(r.Records))), humanize.Comma(int64(r.TotalRecords))))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize())))),
	}

	unresolved := SuccessStyle.Render("0")
	if r.Stats.Unresolved > 0 {
		unresolved = DangerStyle.Render(humanize.Comma(r.Stats.Unresolved))
	}
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Unresolved:"), unresolved))

	if r.Stats.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Errors:"), WarningStyle.Render(humanize.Comma(r.Stats.Errors))))
	}

	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))

	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func kindStyle(k types.Kind) lipgloss.Style {
	switch k {
	case types.KindDirectory:
		return KindDirStyle
	case types.KindOther:
		return MutedStyle
	default:
		return ValueStyle
	}
}

func idStyle(id int64) lipgloss.Style {
	if id < 0 {
		return DangerStyle
	}
	return ValueStyle
}

// permStyle flags unresolved, world-writable and setid entries.
func permStyle(rec *types.Record) lipgloss.Style {
	switch {
	case rec.Permissions == "" && rec.Kind != types.KindOther:
		return DangerStyle
	case rec.Mode&0o002 != 0 && rec.Mode&fs.ModeSticky == 0:
		return DangerStyle
	case rec.Mode&(fs.ModeSetuid|fs.ModeSetgid) != 0:
		return WarningStyle
	case rec.Permissions == "":
		return MutedStyle
	default:
		return ValueStyle
	}
}

// pad pads s to width, on the left when right is set.
func pad(s string, width int, right bool) string {
	if len(s) >= width {
		return s
	}
	fill := strings.Repeat(" ", width-len(s))
	if right {
		return fill + s
	}
	return s + fill
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
