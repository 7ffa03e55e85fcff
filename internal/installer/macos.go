package installer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

const bundleSearchDepth = 3

// dmgStrategy mounts a disk image and copies the .app bundle at its root.
type dmgStrategy struct {
	runner          runner.Runner
	applicationsDir string
	volumesPrefix   string
	logger          *slog.Logger
}

func (s *dmgStrategy) Extract(ctx context.Context, req Request) (*Staging, error) {
	res, err := s.runner.Run(ctx, "hdiutil", "attach", req.Artifact.Path, "-nobrowse")
	if err != nil {
		return nil, errpkg.NewInstallError("hdiutil attach", err)
	}
	if !res.Success() {
		return nil, errpkg.ExitError("hdiutil attach", res.ExitCode, res.Output())
	}

	mountPoint := parseMountPoint(res.Stdout, s.volumesPrefix)
	if mountPoint == "" {
		return nil, errpkg.NewInstallError("hdiutil attach", fmt.Errorf("no mount point in output"))
	}
	s.logger.Debug("disk image mounted", "mount_point", mountPoint)

	return &Staging{
		Dir: mountPoint,
		release: func(ctx context.Context) error {
			res, err := s.runner.Run(ctx, "hdiutil", "detach", mountPoint, "-quiet")
			if err != nil {
				return fmt.Errorf("detach %s: %w", mountPoint, err)
			}
			if !res.Success() {
				return fmt.Errorf("detach %s: exit code %d", mountPoint, res.ExitCode)
			}
			return nil
		},
	}, nil
}

func (s *dmgStrategy) Install(_ context.Context, req Request, staging *Staging) (Result, error) {
	entries, err := os.ReadDir(staging.Dir)
	if err != nil {
		return Result{}, errpkg.NewInstallError("read disk image", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), ".app") {
			continue
		}
		target := filepath.Join(s.applicationsDir, entry.Name())
		if err := replaceTree(filepath.Join(staging.Dir, entry.Name()), target); err != nil {
			return Result{}, errpkg.NewInstallError("copy app bundle", err)
		}
		return Result{InstallPath: target, ExecutablePath: target}, nil
	}

	return Result{}, errpkg.NewInstallError("locate app bundle",
		fmt.Errorf("no .app bundle in %s", filepath.Base(req.Artifact.Path)))
}

// parseMountPoint finds the mount point column in hdiutil attach output.
func parseMountPoint(output, prefix string) string {
	for _, line := range strings.Split(output, "\n") {
		for _, field := range strings.Split(line, "\t") {
			field = strings.TrimSpace(field)
			if strings.HasPrefix(field, prefix) {
				return field
			}
		}
	}
	return ""
}

// bundleArchiveStrategy extracts a zip or tarball with the system tools and
// copies the first .app bundle found inside.
type bundleArchiveStrategy struct {
	runner          runner.Runner
	applicationsDir string
	format          Format
	logger          *slog.Logger
}

func (s *bundleArchiveStrategy) Extract(ctx context.Context, req Request) (*Staging, error) {
	tmp, err := os.MkdirTemp("", platform.TempDirPrefix)
	if err != nil {
		return nil, errpkg.NewInstallError("create temp dir", err)
	}

	var argv []string
	if s.format == FormatZip {
		argv = []string{"unzip", "-q", req.Artifact.Path, "-d", tmp}
	} else {
		argv = []string{"tar", "-xzf", req.Artifact.Path, "-C", tmp}
	}

	res, err := s.runner.Run(ctx, argv[0], argv[1:]...)
	switch {
	case err != nil:
		os.RemoveAll(tmp)
		return nil, errpkg.NewInstallError(argv[0], err)
	case !res.Success():
		os.RemoveAll(tmp)
		return nil, errpkg.ExitError(argv[0], res.ExitCode, res.Output())
	}

	return &Staging{
		Dir: tmp,
		release: func(context.Context) error {
			return os.RemoveAll(tmp)
		},
	}, nil
}

func (s *bundleArchiveStrategy) Install(_ context.Context, req Request, staging *Staging) (Result, error) {
	bundle, ok := FindAppBundle(staging.Dir, bundleSearchDepth)
	if !ok {
		return Result{}, errpkg.NewInstallError("locate app bundle",
			fmt.Errorf("no .app bundle in %s", filepath.Base(req.Artifact.Path)))
	}

	target := filepath.Join(s.applicationsDir, filepath.Base(bundle))
	if err := replaceTree(bundle, target); err != nil {
		return Result{}, errpkg.NewInstallError("copy app bundle", err)
	}
	return Result{InstallPath: target, ExecutablePath: target}, nil
}

// pkgStrategy hands the package to the macOS installer UI. Completion cannot
// be observed, so the applications directory is returned as a best-effort path.
type pkgStrategy struct {
	runner          runner.Runner
	applicationsDir string
	handoffDir      string
	logger          *slog.Logger
}

func (s *pkgStrategy) Extract(context.Context, Request) (*Staging, error) {
	return noStaging(), nil
}

func (s *pkgStrategy) Install(ctx context.Context, req Request, _ *Staging) (Result, error) {
	pkg := req.Artifact.Path
	if s.handoffDir != "" {
		if err := os.MkdirAll(s.handoffDir, 0o755); err != nil {
			return Result{}, errpkg.NewInstallError("prepare package hand-off", err)
		}
		pkg = filepath.Join(s.handoffDir, filepath.Base(req.Artifact.Path))
		if err := copyFile(req.Artifact.Path, pkg, 0o644); err != nil {
			return Result{}, errpkg.NewInstallError("prepare package hand-off", err)
		}
	}

	res, err := s.runner.Run(ctx, "open", pkg)
	if err != nil {
		return Result{}, errpkg.NewInstallError("open", err)
	}
	if !res.Success() {
		return Result{}, errpkg.ExitError("open", res.ExitCode, res.Output())
	}

	s.logger.Warn("package handed to the system installer; completion is not tracked",
		"package", pkg,
	)
	return Result{InstallPath: s.applicationsDir}, nil
}
