//go:build linux

package hostenv

import "os"

// NoExecMount reports whether path lives on a filesystem mounted noexec.
// Any probing failure reports false.
func NoExecMount(path string) bool {
	if path == "" {
		return false
	}

	if data, err := os.ReadFile("/proc/self/mountinfo"); err == nil { // #nosec G304 -- fixed procfs path
		if mounts := parseMountinfo(string(data)); len(mounts) > 0 {
			return noExecFor(path, mounts)
		}
	}

	data, err := os.ReadFile("/proc/mounts") // #nosec G304 -- fixed procfs path
	if err != nil {
		return false
	}
	return noExecFor(path, parseProcMounts(string(data)))
}
