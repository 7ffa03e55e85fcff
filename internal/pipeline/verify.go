package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
	"github.com/veranemoloko/app-installer/internal/installer"
	"github.com/veranemoloko/app-installer/internal/platform"
)

const searchDepth = 3

var errFound = errors.New("found")

// FindExecutable locates the entry point of an installed app. hint is the
// strategy's own answer and wins when it exists. Without a match the install
// path itself is returned.
func FindExecutable(installPath, appName string, p domain.Platform, hint string) string {
	if hint != "" {
		if _, err := os.Stat(hint); err == nil {
			return hint
		}
	}

	lower := strings.ToLower(installPath)
	if strings.HasSuffix(lower, ".app") || strings.HasSuffix(lower, ".appimage") {
		return installPath
	}

	info, err := os.Stat(installPath)
	if err != nil || !info.IsDir() {
		return installPath
	}

	if p == domain.PlatformMacOS {
		if bundle, ok := installer.FindAppBundle(installPath, searchDepth); ok {
			return bundle
		}
	}

	if found := searchExecutable(installPath, platform.SanitizeName(appName), p); found != "" {
		return found
	}
	return installPath
}

// searchExecutable walks root in lexical order and returns the first runnable
// file named after the app.
func searchExecutable(root, name string, p domain.Platform) string {
	want := strings.ToLower(name)
	if want == "" {
		return ""
	}

	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && installer.PathDepth(root, path) >= searchDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		base := strings.ToLower(d.Name())
		if p == domain.PlatformWindows {
			if !strings.HasSuffix(base, ".exe") {
				return nil
			}
			base = strings.TrimSuffix(base, ".exe")
		} else if !isExecutable(d) {
			return nil
		}

		if base == want || strings.HasPrefix(base, want) {
			found = path
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return found
	}
	return ""
}

func isExecutable(d fs.DirEntry) bool {
	info, err := d.Info()
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

