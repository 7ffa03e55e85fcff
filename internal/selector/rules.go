package selector

import (
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// format is one accepted asset shape for a platform together with its rank.
type format struct {
	suffixes []string
	priority int
	// keywords, when set, must appear in the asset name in addition to the platform keywords.
	keywords []string
	// match, when set, further restricts which names this format accepts.
	match func(name string) bool
}

type rule struct {
	// keywords must appear in every candidate name; empty means no requirement.
	keywords []string
	// exclude rejects names that satisfy keywords only by accident, such as "win" in "darwin".
	exclude []string
	// formats are ordered by descending priority; the first match decides the rank.
	formats []format
}

var linuxOnly = []string{"linux"}

var rules = map[domain.Platform]rule{
	domain.PlatformWindows: {
		keywords: []string{"win", "windows"},
		exclude:  []string{"darwin", "macos", "osx"},
		formats: []format{
			{suffixes: []string{".msi"}, priority: 10},
			{suffixes: []string{".exe"}, priority: 8, match: func(n string) bool { return !isPortable(n) }},
			{suffixes: []string{".exe"}, priority: 5, match: isPortable},
			{suffixes: []string{".zip"}, priority: 3},
		},
	},
	domain.PlatformMacOS: {
		keywords: []string{"mac", "darwin", "osx"},
		formats: []format{
			{suffixes: []string{".dmg"}, priority: 10},
			{suffixes: []string{".pkg"}, priority: 8},
			{suffixes: []string{".app.tar.gz"}, priority: 6},
			{suffixes: []string{".zip"}, priority: 4},
		},
	},
	domain.PlatformLinuxDebian: {
		formats: []format{
			{suffixes: []string{".deb"}, priority: 10},
			{suffixes: []string{".appimage"}, priority: 7},
			{suffixes: []string{".tar.gz", ".tgz"}, priority: 3, keywords: linuxOnly},
		},
	},
	domain.PlatformLinuxRPM: {
		formats: []format{
			{suffixes: []string{".rpm"}, priority: 10},
			{suffixes: []string{".appimage"}, priority: 7},
			{suffixes: []string{".tar.gz", ".tgz"}, priority: 3, keywords: linuxOnly},
		},
	},
	domain.PlatformLinuxArch: {
		formats: []format{
			{suffixes: []string{".pkg.tar.zst", ".pkg.tar.xz"}, priority: 10},
			{suffixes: []string{".appimage"}, priority: 8},
			{suffixes: []string{".tar.gz", ".tgz"}, priority: 3, keywords: linuxOnly},
		},
	},
	domain.PlatformLinuxGeneric: {
		formats: []format{
			{suffixes: []string{".appimage"}, priority: 10},
			{suffixes: []string{".tar.gz", ".tgz"}, priority: 5, keywords: linuxOnly},
			{suffixes: []string{".zip"}, priority: 2, keywords: linuxOnly},
		},
	},
}

func isPortable(name string) bool {
	return strings.Contains(name, "portable") || strings.Contains(name, "standalone")
}

func isSourceArchive(name string) bool {
	if !strings.HasSuffix(name, ".tar.gz") && !strings.HasSuffix(name, ".tgz") {
		return false
	}
	return strings.Contains(name, "source") || strings.Contains(name, "src")
}

func containsAny(name string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
