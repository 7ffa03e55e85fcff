// Package selector picks the release asset that fits the running platform.
package selector

import (
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// Ranked is a compatible asset with its platform priority.
type Ranked struct {
	Asset    domain.Asset
	Priority int
}

// Priority returns the rank of an asset name on a platform, or 0 when the
// name is not platform compatible. Architecture is not considered.
func Priority(name string, p domain.Platform) int {
	n := strings.ToLower(name)
	if isSourceArchive(n) {
		return 0
	}

	r, ok := rules[p]
	if !ok {
		r = rules[domain.PlatformLinuxGeneric]
	}
	if !containsAny(n, r.keywords) {
		return 0
	}
	if len(r.exclude) > 0 && containsAny(n, r.exclude) {
		return 0
	}

	for _, f := range r.formats {
		if !hasAnySuffix(n, f.suffixes) || !containsAny(n, f.keywords) {
			continue
		}
		if f.match != nil && !f.match(n) {
			continue
		}
		return f.priority
	}
	return 0
}

// Compatible reports whether an asset name is usable on a platform.
func Compatible(name string, p domain.Platform) bool {
	return Priority(name, p) > 0
}

// ArchCompatible reports whether an asset name fits a CPU architecture.
// Names without an architecture token and universal builds fit every host,
// and unknown host architectures accept everything.
func ArchCompatible(name string, arch domain.Arch) bool {
	n := strings.ToLower(name)
	if strings.Contains(n, "universal") {
		return true
	}

	tokens := archTokens(n)
	if len(tokens) == 0 {
		return true
	}

	switch arch {
	case domain.ArchX64, domain.ArchARM64, domain.ArchX86:
		return tokens[arch]
	default:
		return true
	}
}

func archTokens(n string) map[domain.Arch]bool {
	tokens := make(map[domain.Arch]bool)
	if strings.Contains(n, "x86_64") || strings.Contains(n, "amd64") || strings.Contains(n, "x64") {
		tokens[domain.ArchX64] = true
	}
	if strings.Contains(n, "arm64") || strings.Contains(n, "aarch64") {
		tokens[domain.ArchARM64] = true
	}
	rest := strings.ReplaceAll(n, "x86_64", "")
	if strings.Contains(rest, "x86") || strings.Contains(rest, "i386") || strings.Contains(rest, "i686") {
		tokens[domain.ArchX86] = true
	}
	return tokens
}

// Rank returns every asset compatible with the platform and architecture in
// their original order, annotated with their priority.
func Rank(assets []domain.Asset, p domain.Platform, arch domain.Arch) []Ranked {
	var ranked []Ranked
	for _, a := range assets {
		prio := Priority(a.Name, p)
		if prio == 0 || !ArchCompatible(a.Name, arch) {
			continue
		}
		ranked = append(ranked, Ranked{Asset: a, Priority: prio})
	}
	return ranked
}

// SelectBest returns the highest priority compatible asset. Ties keep the
// first asset encountered. The boolean is false when nothing is compatible.
func SelectBest(assets []domain.Asset, p domain.Platform, arch domain.Arch) (domain.Asset, bool) {
	var (
		best  domain.Asset
		score int
	)
	for _, r := range Rank(assets, p, arch) {
		if r.Priority > score {
			best, score = r.Asset, r.Priority
		}
	}
	return best, score > 0
}
