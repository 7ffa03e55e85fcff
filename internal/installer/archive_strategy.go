package installer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
)

// archiveStrategy extracts an archive into a staging directory next to the
// per-app directory, then swaps it into place.
type archiveStrategy struct {
	layout     platform.Layout
	format     Format
	executable bool
	logger     *slog.Logger
}

func (s *archiveStrategy) Extract(ctx context.Context, req Request) (*Staging, error) {
	appDir, err := managedAppDir(s.layout, req.Platform, req.AppName())
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(appDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, errpkg.NewInstallError("prepare install directory", err)
	}

	tmp, err := os.MkdirTemp(parent, platform.TempDirPrefix)
	if err != nil {
		return nil, errpkg.NewInstallError("create temp dir", err)
	}

	if err := ExtractArchive(ctx, req.Artifact.Path, tmp, s.format); err != nil {
		os.RemoveAll(tmp)
		return nil, errpkg.NewInstallError("extract archive", err)
	}

	return &Staging{
		Dir: tmp,
		release: func(context.Context) error {
			return os.RemoveAll(tmp)
		},
	}, nil
}

func (s *archiveStrategy) Install(_ context.Context, req Request, staging *Staging) (Result, error) {
	appDir, err := managedAppDir(s.layout, req.Platform, req.AppName())
	if err != nil {
		return Result{}, err
	}
	if err := os.RemoveAll(appDir); err != nil {
		return Result{}, errpkg.NewInstallError("remove previous install", err)
	}
	if err := os.Rename(staging.Dir, appDir); err != nil {
		return Result{}, errpkg.NewInstallError("move extracted files", err)
	}

	if s.executable && runtime.GOOS != "windows" {
		failed, err := markExecutable(appDir)
		if err != nil || failed > 0 {
			s.logger.Warn("could not mark every file executable",
				"install_path", appDir,
				"failed", failed,
				"error", err,
			)
		}
	}

	return Result{InstallPath: appDir}, nil
}
