package platform

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// TempDirPrefix prefixes every temporary directory created while installing.
const TempDirPrefix = "stars-install-"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName turns an app name into a string safe to use as a path element.
// Names that would resolve to the current or parent directory become "_".
func SanitizeName(name string) string {
	clean := unsafeNameChars.ReplaceAllString(name, "_")
	switch clean {
	case "", ".", "..":
		return "_"
	}
	return clean
}

// Layout holds the install roots of every platform family.
type Layout struct {
	ApplicationsDir string
	WindowsAppsDir  string
	LinuxBinDir     string
	LinuxAppsDir    string
}

// AppDir returns the per-app directory used by archive and Windows installs.
func (l Layout) AppDir(p domain.Platform, appName string) string {
	root := l.LinuxAppsDir
	switch p {
	case domain.PlatformWindows:
		root = l.WindowsAppsDir
	case domain.PlatformMacOS:
		root = l.ApplicationsDir
	}
	return filepath.Join(root, SanitizeName(appName))
}

// Roots returns every directory this layout installs into.
func (l Layout) Roots() []string {
	var roots []string
	for _, dir := range []string{l.ApplicationsDir, l.WindowsAppsDir, l.LinuxBinDir, l.LinuxAppsDir} {
		if dir != "" {
			roots = append(roots, filepath.Clean(dir))
		}
	}
	return roots
}

// Manages reports whether path lies strictly inside one of the install roots.
func (l Layout) Manages(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range l.Roots() {
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}
