// Package store persists collection runs in a badger database. Each run has a
// header and one record per collected entry, keyed so a run's records iterate
// in path order.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

// CurrentSchemaVersion is the on-disk layout version.
const CurrentSchemaVersion = 1

var (
	// ErrNotFound is returned when a run doesn't exist.
	ErrNotFound = errors.New("run not found")

	// ErrAmbiguous is returned when an id prefix matches several runs.
	ErrAmbiguous = errors.New("ambiguous run id")

	// ErrSchemaTooNew is returned when the database was written by a newer version.
	ErrSchemaTooNew = errors.New("store schema is newer than supported")
)

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store wraps Badger for run persistence.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens a store that lives only for the life of the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	schema, err := s.Schema()
	if err != nil {
		return err
	}
	if schema != nil {
		if schema.Version > CurrentSchemaVersion {
			return fmt.Errorf("%w: %d", ErrSchemaTooNew, schema.Version)
		}
		return nil
	}

	data, err := json.Marshal(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

// Schema returns the stored schema, or nil if none was written.
func (s *Store) Schema() (*Schema, error) {
	var schema *Schema
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	return schema, err
}

// SaveRun writes a run header and its records. An empty run.ID is replaced
// by a new UUID. Records are written in a single batch.
func (s *Store) SaveRun(run *Run, records []types.Record) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Records = int64(len(records))

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range records {
		value, err := encodeRecord(&records[i])
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", records[i].Path, err)
		}
		if err := wb.Set(recordKey(run.ID, records[i].Path), value); err != nil {
			return err
		}
	}

	header, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := wb.Set(runKey(run.ID), header); err != nil {
		return err
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("writing run %s: %w", run.ID, err)
	}

	logging.Get("store").Debug("run saved", "id", run.ID, "records", len(records))
	return nil
}

// ListRuns returns every run header, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	var runs []*Run

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(runPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			run := &Run{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, run)
			}); err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(runs, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs, nil
}

// GetRun returns the run with the exact id.
func (s *Store) GetRun(id string) (*Run, error) {
	run := &Run{}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, run)
		})
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Lookup resolves an id or unique id prefix to a run.
func (s *Store) Lookup(prefix string) (*Run, error) {
	if run, err := s.GetRun(prefix); err == nil {
		return run, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	var match *Run
	for _, run := range runs {
		if prefix == "" || !strings.HasPrefix(run.ID, prefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguous, prefix)
		}
		match = run
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, prefix)
	}
	return match, nil
}

// Records returns the records of a run in path order.
func (s *Store) Records(id string) ([]types.Record, error) {
	var records []types.Record
	err := s.EachRecord(id, func(r types.Record) error {
		records = append(records, r)
		return nil
	})
	return records, err
}

// EachRecord calls fn for every record of a run in path order. Iteration
// stops at the first error returned by fn.
func (s *Store) EachRecord(id string, fn func(types.Record) error) error {
	if _, err := s.GetRun(id); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		prefix := recordKeyPrefix(id)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec types.Record
			if err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				rec, decodeErr = decodeRecord(val)
				return decodeErr
			}); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRun removes a run header and all of its records.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.GetRun(id); err != nil {
		return err
	}

	keys := [][]byte{runKey(id)}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := recordKeyPrefix(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}

	logging.Get("store").Debug("run deleted", "id", id, "records", len(keys)-1)
	return nil
}

// Prune deletes the oldest runs so at most keep remain. keep <= 0 is a no-op.
// It returns the number of runs deleted.
func (s *Store) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	runs, err := s.ListRuns()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, run := range runs[min(keep, len(runs)):] {
		if err := s.DeleteRun(run.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
