// Package pipeline sequences one installation: release lookup, asset
// selection, download, extraction, installation and verification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/installer"
	"github.com/veranemoloko/app-installer/internal/metrics"
	"github.com/veranemoloko/app-installer/internal/selector"
)

// ReleaseSource returns the latest release of an app, or nil if there is none.
type ReleaseSource interface {
	GetLatestRelease(ctx context.Context, appID string) (*domain.Release, error)
}

// PlatformResolver identifies the host.
type PlatformResolver interface {
	Resolve() domain.Platform
	Architecture() domain.Arch
}

// Downloader transfers assets to local disk.
type Downloader interface {
	Download(ctx context.Context, asset domain.Asset, onProgress func(float64)) (domain.DownloadedArtifact, error)
	Discard(assetName string) error
}

// InstallerRegistry picks the installer strategy for an artifact.
type InstallerRegistry interface {
	Lookup(p domain.Platform, artifactName string) (installer.Strategy, error)
}

// Plan is the resolved target of an installation before anything is downloaded.
type Plan struct {
	Platform domain.Platform
	Arch     domain.Arch
	Release  *domain.Release
	Asset    domain.Asset
	Strategy installer.Strategy
}

// Pipeline runs installations. It holds no per-run state and may be shared.
type Pipeline struct {
	releases   ReleaseSource
	platform   PlatformResolver
	downloader Downloader
	installers InstallerRegistry
	logger     *slog.Logger
}

// New creates a Pipeline.
func New(releases ReleaseSource, platform PlatformResolver, downloader Downloader, installers InstallerRegistry, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		releases:   releases,
		platform:   platform,
		downloader: downloader,
		installers: installers,
		logger:     logger,
	}
}

// Plan fetches the latest release of app and selects the asset and strategy
// that an installation would use.
func (p *Pipeline) Plan(ctx context.Context, app domain.App) (*Plan, error) {
	release, err := p.releases.GetLatestRelease(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	if release == nil {
		return nil, &errpkg.ReleaseNotFoundError{AppName: app.Name}
	}
	if len(release.Assets) == 0 {
		return nil, &errpkg.ReleaseNotFoundError{AppName: app.Name, EmptyAssets: true}
	}

	plat := p.platform.Resolve()
	arch := p.platform.Architecture()

	asset, ok := selector.SelectBest(release.Assets, plat, arch)
	if !ok {
		return nil, &errpkg.NoCompatibleAssetError{Platform: plat.DisplayName()}
	}

	strategy, err := p.installers.Lookup(plat, asset.Name)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Platform: plat,
		Arch:     arch,
		Release:  release,
		Asset:    asset,
		Strategy: strategy,
	}, nil
}

// Run installs app and reports every stage to report. On failure a FAILED
// event is reported and the error is returned.
func (p *Pipeline) Run(ctx context.Context, app domain.App, report domain.ProgressFunc) (domain.InstallOutcome, error) {
	if report == nil {
		report = func(domain.ProgressEvent) {}
	}
	r := &reporter{report: report}

	start := time.Now()
	outcome, err := p.run(ctx, app, r)
	if err != nil {
		p.logger.Error("installation failed",
			"app_id", app.ID,
			"stage", r.stage,
			"duration", time.Since(start),
			"error", err,
		)
		r.emit(domain.ProgressEvent{
			Stage:   domain.StageFailed,
			Message: "Installation failed: " + failureMessage(err),
			Err:     err,
		})
		return domain.InstallOutcome{}, err
	}

	p.logger.Info("installation completed",
		"app_id", app.ID,
		"version", outcome.Version,
		"install_path", outcome.InstallPath,
		"duration", time.Since(start),
	)
	r.emit(domain.ProgressEvent{Stage: domain.StageCompleted, Progress: 1, Message: "Installation complete!"})
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, app domain.App, r *reporter) (domain.InstallOutcome, error) {
	r.emit(domain.ProgressEvent{Stage: domain.StageFetchingRelease, Message: "Fetching release information..."})

	plan, err := p.Plan(ctx, app)
	if err != nil {
		return domain.InstallOutcome{}, err
	}
	p.logger.Info("asset selected",
		"app_id", app.ID,
		"platform", plan.Platform,
		"arch", plan.Arch,
		"version", plan.Release.TagName,
		"asset", plan.Asset.Name,
	)

	r.emit(domain.ProgressEvent{Stage: domain.StageDownloading, Message: downloadMessage(plan.Asset)})

	defer func() {
		if err := p.downloader.Discard(plan.Asset.Name); err != nil {
			p.logger.Warn("failed to delete downloaded artifact", "asset", plan.Asset.Name, "error", err)
		}
	}()

	artifact, err := p.downloader.Download(ctx, plan.Asset, func(fraction float64) {
		r.emit(domain.ProgressEvent{
			Stage:    domain.StageDownloading,
			Progress: fraction,
			Message:  fmt.Sprintf("Downloading... %d%%", int(fraction*100)),
		})
	})
	if err != nil {
		return domain.InstallOutcome{}, err
	}

	req := installer.Request{App: app, Platform: plan.Platform, Artifact: artifact}
	result, err := p.install(ctx, plan.Strategy, req, r)
	if err != nil {
		return domain.InstallOutcome{}, err
	}

	r.emit(domain.ProgressEvent{Stage: domain.StageVerifying, Progress: 1, Message: "Verifying installation..."})
	executable := FindExecutable(result.InstallPath, req.AppName(), plan.Platform, result.ExecutablePath)
	if executable == result.InstallPath && result.ExecutablePath == "" {
		p.logger.Warn("no executable found, using install path", "app_id", app.ID, "install_path", result.InstallPath)
	}

	return domain.InstallOutcome{
		AppID:          app.ID,
		Version:        plan.Release.TagName,
		InstallPath:    result.InstallPath,
		ExecutablePath: executable,
		SizeBytes:      artifact.Size,
	}, nil
}

// install runs both strategy phases. The staging area is released even when
// ctx has been cancelled.
func (p *Pipeline) install(ctx context.Context, strategy installer.Strategy, req installer.Request, r *reporter) (installer.Result, error) {
	r.emit(domain.ProgressEvent{Stage: domain.StageExtracting, Progress: 1, Message: "Extracting..."})
	staging, err := strategy.Extract(ctx, req)
	if err != nil {
		return installer.Result{}, err
	}
	defer func() {
		if err := staging.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release staging area", "dir", staging.Dir, "error", err)
		}
	}()

	r.emit(domain.ProgressEvent{Stage: domain.StageInstalling, Progress: 1, Message: "Installing..."})
	return strategy.Install(ctx, req, staging)
}

func downloadMessage(asset domain.Asset) string {
	if asset.Size <= 0 {
		return fmt.Sprintf("Downloading %s...", asset.Name)
	}
	return fmt.Sprintf("Downloading %s (%s)...", asset.Name, humanize.Bytes(uint64(asset.Size)))
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "installation was cancelled"
	}
	return err.Error()
}

// reporter forwards events and counts stage transitions.
type reporter struct {
	report domain.ProgressFunc
	stage  domain.Stage
}

func (r *reporter) emit(event domain.ProgressEvent) {
	if event.Stage != r.stage {
		r.stage = event.Stage
		metrics.StageTransitions.WithLabelValues(string(event.Stage)).Inc()
	}
	r.report(event)
}
