// Package snapshot persists the last successfully synced set of hearing
// records per court system, so the next run can diff against it even when
// the spreadsheet is unreachable.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rmoreira/hearing-sync/internal/hearing"
)

// Store handles persistence of hearing snapshots.
type Store struct {
	dataDir string
}

// snapshotFile is the on-disk envelope.
type snapshotFile struct {
	SystemID  string           `json:"system_id"`
	UpdatedAt string           `json:"updated_at"`
	Records   []hearing.Record `json:"records"`
}

// New creates a Store rooted at dataDir, expanding a leading ~.
func New(dataDir string) (*Store, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Store{dataDir: dataDir}, nil
}

func (s *Store) path(systemID string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("snapshot_%s.json", strings.ToLower(systemID)))
}

// Load returns the records saved for one system. A missing file is an empty
// snapshot, not an error.
func (s *Store) Load(systemID string) ([]hearing.Record, error) {
	data, err := os.ReadFile(s.path(systemID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot for %s: %w", systemID, err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing snapshot for %s: %w", systemID, err)
	}
	return file.Records, nil
}

// Save writes the records for one system atomically: a temp file in the same
// directory, then a rename over the old snapshot.
func (s *Store) Save(systemID string, records []hearing.Record) error {
	file := snapshotFile{
		SystemID:  systemID,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Records:   records,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot for %s: %w", systemID, err)
	}

	tmp, err := os.CreateTemp(s.dataDir, fmt.Sprintf(".snapshot_%s-*.json.tmp", strings.ToLower(systemID)))
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path(systemID)); err != nil {
		return fmt.Errorf("replacing snapshot for %s: %w", systemID, err)
	}
	keep = true
	return nil
}
