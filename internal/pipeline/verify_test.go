package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/app-installer/internal/domain"
)

func touch(t *testing.T, path string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), perm))
}

func TestFindExecutable(t *testing.T) {
	t.Run("bundle is its own entry point", func(t *testing.T) {
		assert.Equal(t, "/Applications/Foo.app", FindExecutable("/Applications/Foo.app", "Foo", domain.PlatformMacOS, ""))
		assert.Equal(t, "/home/u/.local/bin/Foo.AppImage", FindExecutable("/home/u/.local/bin/Foo.AppImage", "Foo", domain.PlatformLinuxGeneric, ""))
	})

	t.Run("existing hint wins", func(t *testing.T) {
		root := t.TempDir()
		hint := filepath.Join(root, "tool")
		touch(t, hint, 0o755)
		touch(t, filepath.Join(root, "foo"), 0o755)
		assert.Equal(t, hint, FindExecutable(root, "Foo", domain.PlatformLinuxGeneric, hint))
	})

	t.Run("executable named after the app", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "foo-1.0", "README"), 0o755)
		touch(t, filepath.Join(root, "foo-1.0", "foo-cli"), 0o644)
		touch(t, filepath.Join(root, "foo-1.0", "bin", "foo"), 0o755)
		assert.Equal(t, filepath.Join(root, "foo-1.0", "bin", "foo"), FindExecutable(root, "Foo", domain.PlatformLinuxDebian, ""))
	})

	t.Run("sanitized name", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "my_app"), 0o755)
		assert.Equal(t, filepath.Join(root, "my_app"), FindExecutable(root, "My App", domain.PlatformLinuxGeneric, ""))
	})

	t.Run("windows exe", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "unins000.exe"), 0o644)
		touch(t, filepath.Join(root, "Foo.exe"), 0o644)
		assert.Equal(t, filepath.Join(root, "Foo.exe"), FindExecutable(root, "Foo", domain.PlatformWindows, ""))
	})

	t.Run("too deep", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "a", "b", "c", "foo"), 0o755)
		assert.Equal(t, root, FindExecutable(root, "Foo", domain.PlatformLinuxGeneric, ""))
	})

	t.Run("miss falls back to install path", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "data.bin"), 0o644)
		assert.Equal(t, root, FindExecutable(root, "Foo", domain.PlatformLinuxGeneric, ""))
		assert.Equal(t, "/nonexistent/path", FindExecutable("/nonexistent/path", "Foo", domain.PlatformLinuxGeneric, ""))
	})

	t.Run("mac bundle inside directory", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "Foo.app", "Contents"), 0o755))
		assert.Equal(t, filepath.Join(root, "Foo.app"), FindExecutable(root, "Foo", domain.PlatformMacOS, ""))
	})
}
