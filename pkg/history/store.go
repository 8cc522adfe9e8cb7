// Package history persists the swaps started from this machine so they can
// be listed and followed up after the process exits.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"swapflow/pkg/swap"
)

const (
	DefaultStorageFileName = ".swapflow-history.json"
)

// Record is one swap as last observed.
type Record struct {
	ID           string     `json:"id"`
	SwapUUID     string     `json:"swap_uuid"`
	OrderUUID    string     `json:"order_uuid,omitempty"`
	Engine       string     `json:"engine,omitempty"`
	SourceTicker string     `json:"source_ticker"`
	TargetTicker string     `json:"target_ticker"`
	SourceAmount string     `json:"source_amount"`
	TargetAmount string     `json:"target_amount"`
	Stage        swap.Stage `json:"stage"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// IsActive reports whether the swap has not reached a terminal stage.
func (r *Record) IsActive() bool {
	return !r.Stage.IsTerminal()
}

// Store handles persistence of swap records
type Store struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*Record
}

// fileFormat represents the JSON structure on disk
type fileFormat struct {
	Swaps map[string]*Record `json:"swaps"`
}

// NewStore opens the history file, creating it on first save
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	s := &Store{
		filePath: filePath,
		records:  make(map[string]*Record),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = f.Swaps
	if s.records == nil {
		s.records = make(map[string]*Record)
	}
	return nil
}

// saveLocked writes all records; s.mu must be held.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Swaps: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for an atomic replace
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Put inserts or replaces the record for r.SwapUUID
func (s *Store) Put(r Record) error {
	if r.SwapUUID == "" {
		return fmt.Errorf("record has no swap uuid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[r.SwapUUID] = &r
	return s.saveLocked()
}

// Get retrieves a record by swap uuid
func (s *Store) Get(swapUUID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[swapUUID]
	if !ok {
		return Record{}, fmt.Errorf("swap '%s' not found", swapUUID)
	}
	return *r, nil
}

// Delete removes a record
func (s *Store) Delete(swapUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[swapUUID]; !ok {
		return fmt.Errorf("swap '%s' not found", swapUUID)
	}
	delete(s.records, swapUUID)
	return s.saveLocked()
}

// All returns every record, newest first
func (s *Store) All() []Record {
	return s.filter(func(*Record) bool { return true })
}

// Active returns swaps that have not reached a terminal stage
func (s *Store) Active() []Record {
	return s.filter((*Record).IsActive)
}

// Completed returns swaps that finished successfully
func (s *Store) Completed() []Record {
	return s.filter(func(r *Record) bool { return r.Stage == swap.StageCompleted })
}

func (s *Store) filter(keep func(*Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Count returns the total number of records
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// FilePath returns the storage file path
func (s *Store) FilePath() string {
	return s.filePath
}
