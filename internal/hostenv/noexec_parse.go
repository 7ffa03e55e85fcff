package hostenv

import (
	"path/filepath"
	"strings"
)

type mountEntry struct {
	mountPoint string
	options    map[string]struct{}
}

// parseMountinfo reads /proc/self/mountinfo lines:
// id parent major:minor root mountpoint options ... - fstype source superopts
func parseMountinfo(content string) []mountEntry {
	var mounts []mountEntry
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}

		sep := -1
		for i, f := range fields {
			if f == "-" {
				sep = i
				break
			}
		}
		if sep < 0 {
			continue
		}

		opts := parseMountOptions(fields[5])
		if sep+3 < len(fields) {
			for k := range parseMountOptions(fields[sep+3]) {
				opts[k] = struct{}{}
			}
		}

		mounts = append(mounts, mountEntry{
			mountPoint: unescapeMountPath(fields[4]),
			options:    opts,
		})
	}
	return mounts
}

// parseProcMounts reads /proc/mounts lines: source mountpoint fstype options dump pass
func parseProcMounts(content string) []mountEntry {
	var mounts []mountEntry
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		mounts = append(mounts, mountEntry{
			mountPoint: unescapeMountPath(fields[1]),
			options:    parseMountOptions(fields[3]),
		})
	}
	return mounts
}

func parseMountOptions(opt string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, part := range strings.Split(opt, ",") {
		if part = strings.TrimSpace(part); part != "" {
			m[part] = struct{}{}
		}
	}
	return m
}

var mountPathReplacer = strings.NewReplacer(
	`\040`, " ",
	`\011`, "\t",
	`\012`, "\n",
	`\134`, `\`,
)

func unescapeMountPath(value string) string {
	return mountPathReplacer.Replace(value)
}

// noExecFor returns whether the longest mount point containing path is mounted noexec.
func noExecFor(path string, mounts []mountEntry) bool {
	target := filepath.ToSlash(filepath.Clean(path))
	if target == "." || target == "" {
		return false
	}

	bestLen := -1
	noexec := false
	for _, m := range mounts {
		mountPoint := filepath.ToSlash(filepath.Clean(m.mountPoint))
		if !underMount(target, mountPoint) {
			continue
		}
		if len(mountPoint) > bestLen {
			bestLen = len(mountPoint)
			_, noexec = m.options["noexec"]
		}
	}
	return noexec
}

func underMount(path, mountPoint string) bool {
	if mountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}
