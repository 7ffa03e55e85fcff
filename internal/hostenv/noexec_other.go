//go:build !linux

package hostenv

// NoExecMount always reports false outside Linux.
func NoExecMount(string) bool {
	return false
}
