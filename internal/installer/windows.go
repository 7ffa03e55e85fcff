package installer

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

// msiStrategy runs msiexec silently into a per-app directory. msiexec returns
// when the installer session ends, which is as precise as completion gets here.
type msiStrategy struct {
	runner runner.Runner
	layout platform.Layout
	logger *slog.Logger
}

func (s *msiStrategy) Extract(context.Context, Request) (*Staging, error) {
	return noStaging(), nil
}

func (s *msiStrategy) Install(ctx context.Context, req Request, _ *Staging) (Result, error) {
	appDir, err := managedAppDir(s.layout, domain.PlatformWindows, req.AppName())
	if err != nil {
		return Result{}, err
	}
	if err := resetDir(appDir); err != nil {
		return Result{}, errpkg.NewInstallError("prepare install directory", err)
	}

	res, err := s.runner.Run(ctx, "msiexec", "/i", req.Artifact.Path, "/quiet", "/norestart", "TARGETDIR="+appDir)
	if err != nil {
		return Result{}, errpkg.NewInstallError("msiexec", err)
	}
	if !res.Success() {
		return Result{}, errpkg.ExitError("msiexec", res.ExitCode, res.Output())
	}
	return Result{InstallPath: appDir}, nil
}

// exeStrategy copies portable executables and runs installers with the
// common silent flags, falling back to a plain copy when the installer fails.
type exeStrategy struct {
	runner runner.Runner
	layout platform.Layout
	logger *slog.Logger
}

func (s *exeStrategy) Extract(context.Context, Request) (*Staging, error) {
	return noStaging(), nil
}

func (s *exeStrategy) Install(ctx context.Context, req Request, _ *Staging) (Result, error) {
	appDir, err := managedAppDir(s.layout, domain.PlatformWindows, req.AppName())
	if err != nil {
		return Result{}, err
	}
	if err := resetDir(appDir); err != nil {
		return Result{}, errpkg.NewInstallError("prepare install directory", err)
	}

	name := strings.ToLower(filepath.Base(req.Artifact.Path))
	if strings.Contains(name, "portable") || strings.Contains(name, "standalone") {
		return s.copyInto(req, appDir)
	}

	res, err := s.runner.Run(ctx, req.Artifact.Path, "/S", "/D="+appDir)
	if err != nil {
		return Result{}, errpkg.NewInstallError("run installer", err)
	}
	if !res.Success() {
		s.logger.Warn("silent install failed, copying executable instead",
			"installer", filepath.Base(req.Artifact.Path),
			"exit_code", res.ExitCode,
		)
		return s.copyInto(req, appDir)
	}
	return Result{InstallPath: appDir}, nil
}

func (s *exeStrategy) copyInto(req Request, appDir string) (Result, error) {
	target := filepath.Join(appDir, filepath.Base(req.Artifact.Path))
	if err := copyFile(req.Artifact.Path, target, 0o755); err != nil {
		return Result{}, errpkg.NewInstallError("copy executable", err)
	}
	return Result{InstallPath: appDir, ExecutablePath: target}, nil
}
