package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sv4u/stravatally/tally/activity"
)

// DefaultPath is the snapshot file used when none is configured.
const DefaultPath = "activities.json"

// ErrSnapshotNotFound is returned when the snapshot file does not exist.
var ErrSnapshotNotFound = errors.New("snapshot file not found")

// DecodeError reports a snapshot that could not be decoded.
// Index is the position of the offending record, or -1 when the file
// itself is not a JSON array.
type DecodeError struct {
	Path     string
	Index    int
	Original error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("snapshot %s: not a JSON array of activities: %v", e.Path, e.Original)
	}
	return fmt.Sprintf("snapshot %s: record %d: %v", e.Path, e.Index, e.Original)
}

func (e *DecodeError) Unwrap() error {
	return e.Original
}

// Store reads and writes the single-file activity snapshot.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Write replaces the snapshot with records, pretty-printed as one JSON array.
// The data goes to a temporary file in the same directory which is then
// renamed over the target, so readers never see a partial snapshot.
func (s *Store) Write(records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	committed = true
	return nil
}

// ReadRaw loads the snapshot as untyped records.
func (s *Store) ReadRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &DecodeError{Path: s.path, Index: -1, Original: err}
	}
	if records == nil {
		// A literal null is not a snapshot.
		return nil, &DecodeError{Path: s.path, Index: -1, Original: errors.New("null document")}
	}
	return records, nil
}

// Read loads the snapshot and decodes every record into an Activity.
// A single bad record fails the whole read.
func (s *Store) Read() ([]activity.Activity, error) {
	records, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}

	acts := make([]activity.Activity, 0, len(records))
	for i, raw := range records {
		a, err := activity.DecodeRecord(raw)
		if err != nil {
			return nil, &DecodeError{Path: s.path, Index: i, Original: err}
		}
		acts = append(acts, a)
	}
	return acts, nil
}
