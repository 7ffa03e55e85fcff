package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/veranemoloko/app-installer/internal/domain"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/repository"
)

// ReleaseSource returns the latest release of an app, or nil if there is none.
type ReleaseSource interface {
	GetLatestRelease(ctx context.Context, appID string) (*domain.Release, error)
}

// LibraryService manages installed apps.
type LibraryService struct {
	repo     repository.LibraryRepo
	releases ReleaseSource
	layout   platform.Layout
	logger   *slog.Logger
}

func NewLibraryService(repo repository.LibraryRepo, releases ReleaseSource, layout platform.Layout, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		repo:     repo,
		releases: releases,
		layout:   layout,
		logger:   logger,
	}
}

func (s *LibraryService) List(ctx context.Context) ([]*domain.InstalledApp, error) {
	return s.repo.List(ctx)
}

func (s *LibraryService) Get(ctx context.Context, appID string) (*domain.InstalledApp, error) {
	return s.repo.Get(ctx, appID)
}

// Uninstall removes an app's record. Files are deleted only when they live
// under one of the managed install roots; package-manager installs and
// system directories are left alone.
func (s *LibraryService) Uninstall(ctx context.Context, appID string) error {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return err
	}

	if app.InstallPath != "" && s.layout.Manages(app.InstallPath) {
		if err := os.RemoveAll(app.InstallPath); err != nil {
			return fmt.Errorf("remove %s: %w", app.InstallPath, err)
		}
		s.logger.Info("app files removed", "app_id", appID, "install_path", app.InstallPath)
	} else {
		s.logger.Warn("install path is not managed, leaving files in place",
			"app_id", appID,
			"install_path", app.InstallPath,
		)
	}

	if _, err := s.repo.Remove(ctx, appID); err != nil {
		return err
	}
	s.logger.Info("app uninstalled", "app_id", appID)
	return nil
}

// CheckUpdate compares the installed version with the latest release tag.
// Tags that are not semantic versions are compared for equality only.
func (s *LibraryService) CheckUpdate(ctx context.Context, appID string) (*domain.UpdateInfo, error) {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return nil, err
	}

	info := &domain.UpdateInfo{
		AppID:            appID,
		InstalledVersion: app.Version,
	}

	release, err := s.releases.GetLatestRelease(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	if release == nil {
		return info, nil
	}

	info.LatestVersion = release.TagName
	info.UpdateAvailable = newer(release.TagName, app.Version)
	return info, nil
}

func newer(latest, installed string) bool {
	if latest == "" {
		return false
	}

	latestVer, err1 := semver.NewVersion(latest)
	installedVer, err2 := semver.NewVersion(installed)
	if err1 != nil || err2 != nil {
		return latest != installed
	}
	return latestVer.GreaterThan(installedVer)
}
