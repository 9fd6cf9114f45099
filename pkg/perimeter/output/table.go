package output

import (
	"bytes"
	"encoding/csv"
	"strings"
)

// TSVFormatter formats records as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(strings.Join(columns, "\t"))
	w.WriteByte('\n')

	for i := range r.Records {
		w.WriteString(strings.Join(row(&r.Records[i]), "\t"))
		w.WriteByte('\n')
	}

	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats records as RFC 4180 comma-separated values.
// Unlike the text tables, ids are written raw so -1 marks an unresolved id.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"kind", "uid", "gid", "permissions", "mode", "size", "mod_time", "path"}); err != nil {
		return err
	}

	for _, rec := range r.Records {
		record := []string{
			rec.Kind.String(),
			formatInt(rec.UserID),
			formatInt(rec.GroupID),
			rec.Permissions,
			formatMode(rec.Mode),
			formatInt(rec.Size),
			formatTime(rec.ModTime),
			rec.Path,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats records as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| " + strings.Join(columns, " | ") + " |\n")

	sep := make([]string, len(columns))
	for i, name := range columns {
		sep[i] = strings.Repeat("-", len(name))
	}
	w.WriteString("|-" + strings.Join(sep, "-|-") + "-|\n")

	for i := range r.Records {
		cells := row(&r.Records[i])
		for j := range cells {
			cells[j] = escapeMarkdownPipe(cells[j])
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
