package installer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/hostenv"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

// PackagePlaceholderPath is reported when the package manager cannot tell
// where a package put its files. It is not a verified location.
const PackagePlaceholderPath = "/usr/bin"

// appImageStrategy copies an AppImage into the user binary directory.
type appImageStrategy struct {
	binDir string
	logger *slog.Logger
}

func (s *appImageStrategy) Extract(context.Context, Request) (*Staging, error) {
	return noStaging(), nil
}

func (s *appImageStrategy) Install(_ context.Context, req Request, _ *Staging) (Result, error) {
	if err := os.MkdirAll(s.binDir, 0o755); err != nil {
		return Result{}, errpkg.NewInstallError("prepare install directory", err)
	}
	if hostenv.NoExecMount(s.binDir) {
		s.logger.Warn("install directory is mounted noexec; the AppImage will not run",
			"dir", s.binDir,
		)
	}

	target := filepath.Join(s.binDir, platform.SanitizeName(req.AppName())+".AppImage")
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Result{}, errpkg.NewInstallError("remove previous install", err)
	}
	if err := copyFile(req.Artifact.Path, target, 0o755); err != nil {
		return Result{}, errpkg.NewInstallError("copy AppImage", err)
	}
	return Result{InstallPath: target, ExecutablePath: target}, nil
}

// packageTool describes a native package manager.
type packageTool struct {
	name string
	// install and repair run with elevated privileges.
	install func(file string) []string
	repair  func(file string) []string
	// queryName asks for the package name contained in a package file.
	queryName func(file string) []string
	parseName func(output string) string
	status    func(pkg string) []string
	installed func(res *runner.Result) bool
	files     func(pkg string) []string
}

var debTool = packageTool{
	name:      "dpkg",
	install:   func(file string) []string { return []string{"dpkg", "-i", file} },
	repair:    func(string) []string { return []string{"apt-get", "install", "-f", "-y"} },
	queryName: func(file string) []string { return []string{"dpkg-deb", "--field", file, "Package"} },
	parseName: strings.TrimSpace,
	status:    func(pkg string) []string { return []string{"dpkg-query", "-W", "-f=${Status}", pkg} },
	installed: func(res *runner.Result) bool {
		return res.Success() && strings.Contains(res.Stdout, "install ok installed")
	},
	files: func(pkg string) []string { return []string{"dpkg", "-L", pkg} },
}

var rpmTool = packageTool{
	name:      "rpm",
	install:   func(file string) []string { return []string{"rpm", "-U", "--replacepkgs", file} },
	repair:    func(file string) []string { return []string{"dnf", "install", "-y", file} },
	queryName: func(file string) []string { return []string{"rpm", "-qp", "--queryformat", "%{NAME}", file} },
	parseName: strings.TrimSpace,
	status:    func(pkg string) []string { return []string{"rpm", "-q", pkg} },
	installed: (*runner.Result).Success,
	files:     func(pkg string) []string { return []string{"rpm", "-ql", pkg} },
}

var pacmanTool = packageTool{
	name:      "pacman",
	install:   func(file string) []string { return []string{"pacman", "-U", "--noconfirm", file} },
	queryName: func(file string) []string { return []string{"pacman", "-Qp", file} },
	parseName: func(output string) string {
		if fields := strings.Fields(output); len(fields) > 0 {
			return fields[0]
		}
		return ""
	},
	status:    func(pkg string) []string { return []string{"pacman", "-Q", pkg} },
	installed: (*runner.Result).Success,
	files:     func(pkg string) []string { return []string{"pacman", "-Qlq", pkg} },
}

// packageStrategy installs a native package through the system package manager.
type packageStrategy struct {
	tool    packageTool
	runner  runner.Runner
	elevate string
	logger  *slog.Logger
}

func (s *packageStrategy) Extract(context.Context, Request) (*Staging, error) {
	return noStaging(), nil
}

func (s *packageStrategy) Install(ctx context.Context, req Request, _ *Staging) (Result, error) {
	file := req.Artifact.Path
	pkg := s.packageName(ctx, file)

	res, err := s.run(ctx, true, s.tool.install(file))
	if err != nil {
		return Result{}, errpkg.NewInstallError(s.tool.name, err)
	}
	if !res.Success() {
		if err := s.recover(ctx, file, pkg, res); err != nil {
			return Result{}, err
		}
	}

	return s.locate(ctx, pkg), nil
}

// recover runs the dependency repair pass and confirms the package ended up installed.
func (s *packageStrategy) recover(ctx context.Context, file, pkg string, failed *runner.Result) error {
	installErr := errpkg.ExitError(s.tool.name, failed.ExitCode, failed.Output())
	if s.tool.repair == nil {
		return installErr
	}

	s.logger.Warn("package install failed, attempting dependency repair",
		"tool", s.tool.name,
		"exit_code", failed.ExitCode,
	)

	argv := s.tool.repair(file)
	res, err := s.run(ctx, true, argv)
	if err != nil {
		return errpkg.NewInstallError(argv[0], err)
	}
	if !res.Success() {
		return errpkg.ExitError(argv[0], res.ExitCode, res.Output())
	}

	if pkg == "" {
		return nil
	}
	status, err := s.run(ctx, false, s.tool.status(pkg))
	if err != nil || !s.tool.installed(status) {
		return installErr
	}
	return nil
}

func (s *packageStrategy) packageName(ctx context.Context, file string) string {
	res, err := s.run(ctx, false, s.tool.queryName(file))
	if err != nil || !res.Success() {
		return ""
	}
	return s.tool.parseName(res.Stdout)
}

// locate asks the package manager for the installed files. The first file in
// a bin directory is the entry point; otherwise the first /opt tree wins.
func (s *packageStrategy) locate(ctx context.Context, pkg string) Result {
	placeholder := Result{InstallPath: PackagePlaceholderPath}
	if pkg == "" {
		return placeholder
	}

	res, err := s.run(ctx, false, s.tool.files(pkg))
	if err != nil || !res.Success() {
		return placeholder
	}

	var optRoot string
	for _, line := range strings.Split(res.Stdout, "\n") {
		file := strings.TrimSpace(line)
		if !strings.HasPrefix(file, "/") || strings.HasSuffix(file, "/") {
			continue
		}
		if path.Base(path.Dir(file)) == "bin" {
			return Result{InstallPath: path.Dir(file), ExecutablePath: file}
		}
		if optRoot == "" && strings.HasPrefix(file, "/opt/") {
			if parts := strings.SplitN(strings.TrimPrefix(file, "/opt/"), "/", 2); len(parts) == 2 {
				optRoot = "/opt/" + parts[0]
			}
		}
	}

	if optRoot != "" {
		return Result{InstallPath: optRoot}
	}
	s.logger.Warn("package manager did not report a usable install location",
		"package", pkg,
		"placeholder", PackagePlaceholderPath,
	)
	return placeholder
}

func (s *packageStrategy) run(ctx context.Context, privileged bool, argv []string) (*runner.Result, error) {
	if privileged && s.elevate != "" {
		argv = append([]string{s.elevate}, argv...)
	}
	return s.runner.Run(ctx, argv[0], argv[1:]...)
}
