// Package installer turns downloaded artifacts into installed applications.
//
// Every supported (platform family, artifact format) pair maps to one Strategy.
// A strategy works in two phases: Extract unpacks or mounts the artifact and
// returns a Staging handle that the caller must release, and Install places
// the application into its install root. All external commands go through a
// runner.Runner so strategies can be exercised without touching the host.
package installer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
	"github.com/veranemoloko/app-installer/internal/runner"
)

// Request describes one artifact to install.
type Request struct {
	App      domain.App
	Platform domain.Platform
	Artifact domain.DownloadedArtifact
}

// AppName returns the display name used for install paths.
func (r Request) AppName() string {
	if r.App.Name != "" {
		return r.App.Name
	}
	return r.App.ID
}

// Result is where an application ended up. ExecutablePath is set only when
// the strategy knows the entry point itself.
type Result struct {
	InstallPath    string
	ExecutablePath string
}

// Staging is the unpacked or mounted form of an artifact.
type Staging struct {
	// Dir is the extraction or mount root; empty for formats installed as-is.
	Dir     string
	release func(ctx context.Context) error
}

// Release unmounts or deletes the staging area. It is safe to call more than once.
func (s *Staging) Release(ctx context.Context) error {
	if s == nil || s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	return release(ctx)
}

// Strategy installs one artifact format on one platform family.
type Strategy interface {
	Extract(ctx context.Context, req Request) (*Staging, error)
	Install(ctx context.Context, req Request, staging *Staging) (Result, error)
}

// Format is an artifact kind recognized by its filename suffix.
type Format string

const (
	FormatDMG      Format = "dmg"
	FormatPKG      Format = "pkg"
	FormatMSI      Format = "msi"
	FormatEXE      Format = "exe"
	FormatZip      Format = "zip"
	FormatTarGz    Format = "tar.gz"
	FormatTarZst   Format = "tar.zst"
	FormatAppImage Format = "appimage"
	FormatDeb      Format = "deb"
	FormatRPM      Format = "rpm"
	FormatPacman   Format = "pacman"
)

// DetectFormat classifies an artifact by filename suffix.
func DetectFormat(name string) (Format, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".pkg.tar.zst"), strings.HasSuffix(n, ".pkg.tar.xz"):
		return FormatPacman, true
	case strings.HasSuffix(n, ".tar.gz"), strings.HasSuffix(n, ".tgz"):
		return FormatTarGz, true
	case strings.HasSuffix(n, ".tar.zst"):
		return FormatTarZst, true
	}

	switch filepath.Ext(n) {
	case ".zip":
		return FormatZip, true
	case ".dmg":
		return FormatDMG, true
	case ".pkg":
		return FormatPKG, true
	case ".msi":
		return FormatMSI, true
	case ".exe":
		return FormatEXE, true
	case ".appimage":
		return FormatAppImage, true
	case ".deb":
		return FormatDeb, true
	case ".rpm":
		return FormatRPM, true
	}
	return "", false
}

type family string

const (
	familyMacOS   family = "macos"
	familyWindows family = "windows"
	familyLinux   family = "linux"
)

func familyOf(p domain.Platform) family {
	switch p {
	case domain.PlatformMacOS:
		return familyMacOS
	case domain.PlatformWindows:
		return familyWindows
	default:
		return familyLinux
	}
}

type strategyKey struct {
	family family
	format Format
}

// Deps are the collaborators shared by all strategies.
type Deps struct {
	Runner runner.Runner
	Layout platform.Layout
	// Elevate prefixes privileged package manager commands, e.g. "pkexec".
	Elevate string
	// HandoffDir keeps macOS packages readable after the download is deleted.
	HandoffDir string
	// VolumesPrefix is where disk images get mounted; defaults to /Volumes/.
	VolumesPrefix string
	Logger        *slog.Logger
}

// Registry maps platform families and formats to strategies.
type Registry struct {
	strategies map[strategyKey]Strategy
}

// NewRegistry builds the strategy table.
func NewRegistry(deps Deps) *Registry {
	if deps.VolumesPrefix == "" {
		deps.VolumesPrefix = "/Volumes/"
	}

	linuxArchive := func(format Format) Strategy {
		return &archiveStrategy{layout: deps.Layout, format: format, executable: true, logger: deps.Logger}
	}

	return &Registry{strategies: map[strategyKey]Strategy{
		{familyMacOS, FormatDMG}:   &dmgStrategy{runner: deps.Runner, applicationsDir: deps.Layout.ApplicationsDir, volumesPrefix: deps.VolumesPrefix, logger: deps.Logger},
		{familyMacOS, FormatZip}:   &bundleArchiveStrategy{runner: deps.Runner, applicationsDir: deps.Layout.ApplicationsDir, format: FormatZip, logger: deps.Logger},
		{familyMacOS, FormatTarGz}: &bundleArchiveStrategy{runner: deps.Runner, applicationsDir: deps.Layout.ApplicationsDir, format: FormatTarGz, logger: deps.Logger},
		{familyMacOS, FormatPKG}:   &pkgStrategy{runner: deps.Runner, applicationsDir: deps.Layout.ApplicationsDir, handoffDir: deps.HandoffDir, logger: deps.Logger},

		{familyWindows, FormatMSI}: &msiStrategy{runner: deps.Runner, layout: deps.Layout, logger: deps.Logger},
		{familyWindows, FormatEXE}: &exeStrategy{runner: deps.Runner, layout: deps.Layout, logger: deps.Logger},
		{familyWindows, FormatZip}: &archiveStrategy{layout: deps.Layout, format: FormatZip, logger: deps.Logger},

		{familyLinux, FormatAppImage}: &appImageStrategy{binDir: deps.Layout.LinuxBinDir, logger: deps.Logger},
		{familyLinux, FormatDeb}:      &packageStrategy{tool: debTool, runner: deps.Runner, elevate: deps.Elevate, logger: deps.Logger},
		{familyLinux, FormatRPM}:      &packageStrategy{tool: rpmTool, runner: deps.Runner, elevate: deps.Elevate, logger: deps.Logger},
		{familyLinux, FormatPacman}:   &packageStrategy{tool: pacmanTool, runner: deps.Runner, elevate: deps.Elevate, logger: deps.Logger},
		{familyLinux, FormatTarGz}:    linuxArchive(FormatTarGz),
		{familyLinux, FormatTarZst}:   linuxArchive(FormatTarZst),
		{familyLinux, FormatZip}:      linuxArchive(FormatZip),
	}}
}

// Lookup returns the strategy for an artifact name on a platform. Unknown
// suffixes and formats foreign to the platform are an InstallError.
func (r *Registry) Lookup(p domain.Platform, artifactName string) (Strategy, error) {
	format, ok := DetectFormat(artifactName)
	if !ok {
		return nil, errpkg.NewInstallError("select installer",
			fmt.Errorf("unsupported file type %q for %s", artifactName, p.DisplayName()))
	}

	strategy, ok := r.strategies[strategyKey{familyOf(p), format}]
	if !ok {
		return nil, errpkg.NewInstallError("select installer",
			fmt.Errorf("%s packages are not supported on %s", format, p.DisplayName()))
	}
	return strategy, nil
}

func noStaging() *Staging {
	return &Staging{}
}
