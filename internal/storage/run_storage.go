package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// RunStorage keeps one JSON file per pipeline run in a directory.
type RunStorage struct {
	mu   sync.RWMutex
	dir  string
	runs map[string]*domain.RunRecord
}

// NewRunStorage loads previously recorded runs from dir.
func NewRunStorage(dir string) (*RunStorage, error) {
	storage := &RunStorage{
		dir:  dir,
		runs: make(map[string]*domain.RunRecord),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	if err := storage.loadRuns(); err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	return storage, nil
}

func (s *RunStorage) loadRuns() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read run file: %w", err)
		}

		var run domain.RunRecord
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("unmarshal run %s: %w", entry.Name(), err)
		}
		s.runs[run.ID] = &run
	}

	return nil
}

// Save stores or replaces a run record.
func (s *RunStorage) Save(run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *run
	s.runs[run.ID] = &stored
	return s.persist(&stored)
}

// Get returns a copy of the run with the given id.
func (s *RunStorage) Get(id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s not found", id)
	}
	copied := *run
	return &copied, nil
}

// List returns every run, most recently started first.
func (s *RunStorage) List() []*domain.RunRecord {
	s.mu.RLock()
	runs := make([]*domain.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].InvocationID > runs[j].InvocationID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

func (s *RunStorage) persist(run *domain.RunRecord) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	filename := filepath.Join(s.dir, run.ID+".json")
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	if err := os.Rename(tempFile, filename); err != nil {
		return fmt.Errorf("rename run file: %w", err)
	}

	return nil
}
