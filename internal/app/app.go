// Package app wires the installer components from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/veranemoloko/app-installer/internal/catalog"
	"github.com/veranemoloko/app-installer/internal/config"
	"github.com/veranemoloko/app-installer/internal/installer"
	"github.com/veranemoloko/app-installer/internal/pipeline"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/repository"
	"github.com/veranemoloko/app-installer/internal/runner"
	"github.com/veranemoloko/app-installer/internal/service"
	"github.com/veranemoloko/app-installer/internal/storage"
	"github.com/veranemoloko/app-installer/internal/worker"
)

// Components are the long-lived services shared by the server and the CLI.
type Components struct {
	Catalog    *catalog.Client
	Identifier *platform.Identifier
	Pipeline   *pipeline.Pipeline
	Library    *service.LibraryService
	Sessions   *service.SessionManager
}

// Build constructs every component. The caller owns Sessions and must shut it down.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	catalogClient := catalog.NewClient(catalog.Options{
		BaseURL:  cfg.CatalogURL,
		Timeout:  cfg.CatalogTimeout,
		RetryMax: cfg.CatalogRetries,
	}, logger.With("component", "catalog"))

	identifier := platform.NewIdentifier(logger.With("component", "platform"))

	downloader := worker.NewDownloadWorker(
		storage.NewFileStorage(cfg.DownloadDir),
		worker.Options{Timeout: cfg.DownloadTimeout, RetryMax: cfg.DownloadRetries},
		logger.With("component", "transfer"),
	)

	registry := installer.NewRegistry(installer.Deps{
		Runner:     runner.NewExecRunner(logger.With("component", "runner")),
		Layout:     cfg.Layout(),
		Elevate:    cfg.Elevation(),
		HandoffDir: cfg.HandoffDir(),
		Logger:     logger.With("component", "installer"),
	})

	pipe := pipeline.New(catalogClient, identifier, downloader, registry, logger.With("component", "pipeline"))

	libraryStorage, err := repository.NewLibraryStorage(cfg.LibraryFile, logger.With("component", "library"))
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	runStorage, err := storage.NewRunStorage(cfg.RunsDir)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	return &Components{
		Catalog:    catalogClient,
		Identifier: identifier,
		Pipeline:   pipe,
		Library:    service.NewLibraryService(libraryStorage, catalogClient, cfg.Layout(), logger.With("component", "library")),
		Sessions:   service.NewSessionManager(pipe, libraryStorage, runStorage, logger.With("component", "session")),
	}, nil
}
