package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
)

// LibraryStorage keeps installed apps in memory and mirrors them to a JSON file.
type LibraryStorage struct {
	mu     sync.RWMutex
	apps   map[string]*domain.InstalledApp
	file   string
	logger *slog.Logger
}

// NewLibraryStorage creates a LibraryStorage and loads the library file if it exists.
func NewLibraryStorage(filePath string, logger *slog.Logger) (*LibraryStorage, error) {
	repo := &LibraryStorage{
		apps:   make(map[string]*domain.InstalledApp),
		file:   filepath.Clean(filePath),
		logger: logger,
	}

	if err := os.MkdirAll(filepath.Dir(repo.file), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library dir: %w", err)
	}
	if err := repo.restore(); err != nil {
		return nil, fmt.Errorf("failed to load library file: %w", err)
	}

	logger.Info("Library initialized", "file_path", repo.file, "apps_count", len(repo.apps))
	return repo, nil
}

func (r *LibraryStorage) restore() error {
	data, err := os.ReadFile(r.file)
	if os.IsNotExist(err) {
		r.logger.Info("Library file does not exist, starting with empty library", "file_path", r.file)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read library file: %w", err)
	}

	if len(data) == 0 {
		r.logger.Warn("Library file is empty", "file_path", r.file)
		return nil
	}

	var apps map[string]*domain.InstalledApp
	if err := json.Unmarshal(data, &apps); err != nil {
		return fmt.Errorf("failed to unmarshal library file: %w", err)
	}

	for id, app := range apps {
		if app == nil {
			continue
		}
		app.ID = id
		r.apps[id] = app
	}
	return nil
}

// persist writes the library while the caller holds the lock.
func (r *LibraryStorage) persist() error {
	data, err := json.MarshalIndent(r.apps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal library: %w", err)
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, r.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	r.logger.Debug("Library saved to file", "apps_count", len(r.apps), "file_path", r.file)
	return nil
}

// Install records an app as installed, replacing any previous record.
func (r *LibraryStorage) Install(ctx context.Context, app *domain.InstalledApp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *app
	if stored.InstalledAt.IsZero() {
		stored.InstalledAt = time.Now().UTC()
	}
	if stored.Size == "" && stored.SizeBytes > 0 {
		stored.Size = humanize.Bytes(uint64(stored.SizeBytes))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.apps[stored.ID]
	r.apps[stored.ID] = &stored
	if err := r.persist(); err != nil {
		if existed {
			r.apps[stored.ID] = previous
		} else {
			delete(r.apps, stored.ID)
		}
		return fmt.Errorf("failed to save library after install: %w", err)
	}

	r.logger.Debug("App recorded as installed", "app_id", stored.ID, "version", stored.Version)
	return nil
}

// IsInstalled reports whether the library has a record for id.
func (r *LibraryStorage) IsInstalled(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	_, exists := r.apps[id]
	r.mu.RUnlock()
	return exists, nil
}

// Remove deletes the record for id and reports whether one existed.
func (r *LibraryStorage) Remove(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.apps[id]
	if !exists {
		return false, nil
	}
	delete(r.apps, id)
	if err := r.persist(); err != nil {
		r.apps[id] = previous
		return false, fmt.Errorf("failed to save library after remove: %w", err)
	}
	return true, nil
}

// Get returns a copy of the record for id.
func (r *LibraryStorage) Get(ctx context.Context, id string) (*domain.InstalledApp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	app, exists := r.apps[id]
	r.mu.RUnlock()

	if !exists {
		return nil, errpkg.ErrAppNotInstalled
	}
	copied := *app
	return &copied, nil
}

// List returns every installed app ordered by name.
func (r *LibraryStorage) List(ctx context.Context) ([]*domain.InstalledApp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	apps := make([]*domain.InstalledApp, 0, len(r.apps))
	for _, app := range r.apps {
		copied := *app
		apps = append(apps, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Name == apps[j].Name {
			return apps[i].ID < apps[j].ID
		}
		return apps[i].Name < apps[j].Name
	})
	return apps, nil
}
