package store

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// Key prefixes.
const (
	runPrefix    = "h:"
	recordPrefix = "r:"
	schemaKey    = "m:__schema__"
)

// KeySeparator separates the run id from the record path in record keys.
const KeySeparator = '\x00'

// Run is the header of one stored collection pass.
type Run struct {
	ID               string        `json:"id"`
	Root             string        `json:"root"`
	StartedAt        time.Time     `json:"started_at"`
	Elapsed          time.Duration `json:"elapsed"`
	PermissionFormat string        `json:"permission_format"`
	Records          int64         `json:"records"`
	Dirs             int64         `json:"dirs"`
	Files            int64         `json:"files"`
	Others           int64         `json:"others"`
	Unresolved       int64         `json:"unresolved"`
	Errors           int64         `json:"errors"`
}

// NewRun builds a run header from a collection result.
func NewRun(root, format string, started time.Time, result *types.CollectResult) *Run {
	return &Run{
		Root:             root,
		StartedAt:        started,
		Elapsed:          result.Elapsed,
		PermissionFormat: format,
		Records:          int64(len(result.Records)),
		Dirs:             result.DirsCollected,
		Files:            result.FilesCollected,
		Others:           result.OthersCollected,
		Unresolved:       result.Unresolved,
		Errors:           int64(len(result.Errors)),
	}
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func recordKeyPrefix(id string) []byte {
	return []byte(recordPrefix + id + string(KeySeparator))
}

// recordKey has the form r:<run>\x00<path>.
func recordKey(id, path string) []byte {
	return append(recordKeyPrefix(id), path...)
}

func encodeRecord(r *types.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (types.Record, error) {
	var r types.Record
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	return r, err
}
