package platform

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/veranemoloko/app-installer/internal/domain"
	"github.com/veranemoloko/app-installer/internal/hostenv"
)

// DefaultOSReleasePath is the distribution identification file read on Linux.
const DefaultOSReleasePath = "/etc/os-release"

var (
	debianFamily = []string{"ubuntu", "debian", "pop", "linuxmint", "mint", "elementary"}
	archFamily   = []string{"arch", "manjaro", "endeavouros"}
	rpmFamily    = []string{"fedora", "rhel", "centos", "rocky", "almalinux", "alma", "opensuse", "suse"}
)

// Identifier resolves the host platform once and serves the cached result afterwards.
type Identifier struct {
	goos          string
	goarch        string
	osReleasePath string
	logger        *slog.Logger

	once     sync.Once
	platform domain.Platform
}

// NewIdentifier creates an Identifier for the running host.
func NewIdentifier(logger *slog.Logger) *Identifier {
	return NewIdentifierFor(runtime.GOOS, runtime.GOARCH, DefaultOSReleasePath, logger)
}

// NewIdentifierFor creates an Identifier for an explicit OS, architecture and os-release file.
func NewIdentifierFor(goos, goarch, osReleasePath string, logger *slog.Logger) *Identifier {
	return &Identifier{
		goos:          goos,
		goarch:        goarch,
		osReleasePath: osReleasePath,
		logger:        logger,
	}
}

// Resolve returns the platform family of the host. Unknown operating systems
// and unknown Linux distributions resolve to PlatformLinuxGeneric.
func (i *Identifier) Resolve() domain.Platform {
	i.once.Do(func() {
		i.platform = i.detect()
		i.logger.Info("platform resolved",
			"platform", i.platform,
			"arch", i.Architecture(),
		)
	})
	return i.platform
}

// Architecture returns the normalized CPU architecture of the host.
func (i *Identifier) Architecture() domain.Arch {
	return NormalizeArch(i.goarch)
}

func (i *Identifier) detect() domain.Platform {
	switch i.goos {
	case "windows":
		return domain.PlatformWindows
	case "darwin":
		return domain.PlatformMacOS
	case "linux":
		data, err := os.ReadFile(i.osReleasePath)
		if err != nil {
			i.logger.Debug("os-release not readable", "path", i.osReleasePath, "error", err)
			return domain.PlatformLinuxGeneric
		}
		return ClassifyDistribution(hostenv.ParseOSRelease(string(data)))
	default:
		return domain.PlatformLinuxGeneric
	}
}

// ClassifyDistribution maps os-release identifiers to a Linux family.
func ClassifyDistribution(rel hostenv.OSRelease) domain.Platform {
	tokens := rel.Tokens()
	switch {
	case matchesFamily(tokens, debianFamily):
		return domain.PlatformLinuxDebian
	case matchesFamily(tokens, archFamily):
		return domain.PlatformLinuxArch
	case matchesFamily(tokens, rpmFamily):
		return domain.PlatformLinuxRPM
	default:
		return domain.PlatformLinuxGeneric
	}
}

func matchesFamily(tokens, family []string) bool {
	for _, token := range tokens {
		for _, name := range family {
			if token == name || strings.HasPrefix(token, name+"-") {
				return true
			}
		}
	}
	return false
}

// NormalizeArch maps architecture aliases to x64, arm64 or x86.
// Anything else is returned unchanged.
func NormalizeArch(raw string) domain.Arch {
	switch strings.ToLower(raw) {
	case "amd64", "x86_64", "x64":
		return domain.ArchX64
	case "arm64", "aarch64":
		return domain.ArchARM64
	case "386", "x86", "i386", "i686":
		return domain.ArchX86
	default:
		return domain.Arch(raw)
	}
}
