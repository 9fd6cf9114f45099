package output

import (
	"io/fs"
	"strconv"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// document is the structured form shared by the json and yaml formatters.
type document struct {
	Records []recordDoc `json:"records" yaml:"records"`
	Stats   statsDoc    `json:"stats" yaml:"stats"`
	Meta    metaDoc     `json:"meta" yaml:"meta"`
}

// recordDoc is one record in structured output. Ids keep the -1 sentinel and
// permissions are empty when unresolved.
type recordDoc struct {
	Path        string `json:"path" yaml:"path"`
	Kind        string `json:"kind" yaml:"kind"`
	UID         int64  `json:"uid" yaml:"uid"`
	GID         int64  `json:"gid" yaml:"gid"`
	Permissions string `json:"permissions" yaml:"permissions"`
	Mode        string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Size        int64  `json:"size" yaml:"size"`
	SizeHuman   string `json:"size_human" yaml:"size_human"`
	ModTime     string `json:"mod_time,omitempty" yaml:"mod_time,omitempty"`
	Resolved    bool   `json:"resolved" yaml:"resolved"`
}

type statsDoc struct {
	Dirs       int64  `json:"dirs" yaml:"dirs"`
	Files      int64  `json:"files" yaml:"files"`
	Others     int64  `json:"others" yaml:"others"`
	Unresolved int64  `json:"unresolved" yaml:"unresolved"`
	Errors     int64  `json:"errors" yaml:"errors"`
	Duration   string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

type metaDoc struct {
	Source           string   `json:"source" yaml:"source"`
	RunID            string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	PermissionFormat string   `json:"permission_format,omitempty" yaml:"permission_format,omitempty"`
	TotalRecords     int      `json:"total_records" yaml:"total_records"`
	TotalSize        int64    `json:"total_size" yaml:"total_size"`
	Warnings         []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted      bool     `json:"interrupted" yaml:"interrupted"`
}

func buildDocument(r *Result) document {
	records := make([]recordDoc, len(r.Records))
	for i := range r.Records {
		records[i] = toRecordDoc(&r.Records[i])
	}

	return document{
		Records: records,
		Stats: statsDoc{
			Dirs:       r.Stats.Dirs,
			Files:      r.Stats.Files,
			Others:     r.Stats.Others,
			Unresolved: r.Stats.Unresolved,
			Errors:     r.Stats.Errors,
			Duration:   formatDurationString(r.Stats.Duration),
		},
		Meta: metaDoc{
			Source:           r.Source,
			RunID:            r.RunID,
			PermissionFormat: r.PermissionFormat,
			TotalRecords:     r.TotalRecords,
			TotalSize:        r.TotalSize(),
			Warnings:         r.Warnings,
			Interrupted:      r.Interrupted,
		},
	}
}

func toRecordDoc(rec *types.Record) recordDoc {
	return recordDoc{
		Path:        rec.Path,
		Kind:        rec.Kind.String(),
		UID:         rec.UserID,
		GID:         rec.GroupID,
		Permissions: rec.Permissions,
		Mode:        formatMode(rec.Mode),
		Size:        rec.Size,
		SizeHuman:   rec.HumanSize(),
		ModTime:     formatTime(rec.ModTime),
		Resolved:    rec.Resolved(),
	}
}

// formatMode renders permission and special bits as four octal digits,
// or "" when no bit is set.
func formatMode(m fs.FileMode) string {
	if m == 0 {
		return ""
	}
	bits := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	s := strconv.FormatUint(uint64(bits), 8)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
