package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Storage handles persistence of runs
type Storage struct {
	filePath string
	mu       sync.RWMutex
	runs     map[string]*Run
}

// RunStorage represents the JSON structure for storage
type RunStorage struct {
	Runs map[string]*Run `json:"runs"`
}

// NewStorage creates a new storage instance backed by filePath
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	storage := &Storage{
		filePath: filePath,
		runs:     make(map[string]*Run),
	}

	// A missing file is created on first save
	if err := storage.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	return storage, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var runStorage RunStorage
	if err := json.Unmarshal(data, &runStorage); err != nil {
		return fmt.Errorf("failed to unmarshal runs: %w", err)
	}

	s.runs = runStorage.Runs
	if s.runs == nil {
		s.runs = make(map[string]*Run)
	}

	return nil
}

// saveLocked writes all runs to disk. The caller holds s.mu.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(RunStorage{Runs: s.runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Create adds a new run to storage
func (s *Storage) Create(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run '%s' already exists", run.ID)
	}

	s.runs[run.ID] = run.clone()
	return s.saveLocked()
}

// Get retrieves a copy of a run by id
func (s *Storage) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run '%s' not found", id)
	}

	return run.clone(), nil
}

// Modify applies fn to the stored run and saves it while holding the lock
func (s *Storage) Modify(id string, fn func(*Run) error) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run '%s' not found", id)
	}

	run := stored.clone()
	if err := fn(run); err != nil {
		return nil, err
	}

	s.runs[id] = run
	if err := s.saveLocked(); err != nil {
		s.runs[id] = stored
		return nil, err
	}

	return run.clone(), nil
}

// List returns copies of all runs, oldest first
func (s *Storage) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run.clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Started.Before(runs[j].Started)
	})

	return runs
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}
