package output

import (
	"bytes"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter renders a result with a text/template. The template
// receives the Result plus TotalSize; see templateFuncs for helpers.
type TemplateFormatter struct {
	mu       sync.Mutex
	text     string
	compiled *template.Template
}

type templateData struct {
	*Result
	TotalSize int64
}

// defaultTemplate prints permissions, owner and path, one record per line.
const defaultTemplate = `{{range .Records}}{{perms .Permissions}}	{{id .UserID}}:{{id .GroupID}}	{{.Path}}
{{end}}`

// NewTemplateFormatter creates a formatter for text.
func NewTemplateFormatter(text string) *TemplateFormatter {
	return &TemplateFormatter{text: text}
}

// SetTemplate replaces the template text.
func (f *TemplateFormatter) SetTemplate(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.compiled = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// {{date .ModTime "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		// {{bytes .Size}}
		"bytes": func(size int64) string {
			if size < 0 {
				size = 0
			}
			return humanize.IBytes(uint64(size))
		},
		"id":    DisplayID,
		"perms": DisplayPerms,
		"octal": formatMode,
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.compiled == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.text)
		if err != nil {
			return err
		}
		f.compiled = tmpl
	}

	return f.compiled.Execute(w, templateData{Result: r, TotalSize: r.TotalSize()})
}

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
