package installer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/platform"
)

// managedAppDir returns the per-app directory of name and refuses any path
// that is not strictly inside one of the layout's install roots.
func managedAppDir(layout platform.Layout, p domain.Platform, name string) (string, error) {
	dir := layout.AppDir(p, name)
	if !layout.Manages(dir) {
		return "", errpkg.NewInstallError("prepare install directory",
			fmt.Errorf("%s is not inside an install root", dir))
	}
	return dir, nil
}

// replaceTree removes dst and copies src into its place.
func replaceTree(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return copyTree(src, dst)
}

// copyTree copies a directory tree, keeping permissions and symlinks.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 -- paths come from the installer's own staging areas
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, perm)
}

// resetDir removes dir and recreates it empty.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous install: %w", err)
	}
	return os.MkdirAll(dir, 0o755)
}

// markExecutable adds execute permission to every regular file under root.
// It returns the number of files that could not be changed.
func markExecutable(root string) (int, error) {
	var failed atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			failed.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			failed.Add(1)
			return nil
		}
		if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
			failed.Add(1)
		}
		return nil
	})
	return int(failed.Load()), err
}

var errFound = errors.New("found")

// FindAppBundle returns the first .app directory under root, searching at most
// maxDepth levels in lexical order.
func FindAppBundle(root string, maxDepth int) (string, bool) {
	var bundle string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root || !d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".app") {
			bundle = path
			return errFound
		}
		if PathDepth(root, path) >= maxDepth {
			return filepath.SkipDir
		}
		return nil
	})
	return bundle, errors.Is(err, errFound)
}

// PathDepth returns how many path elements path lies below root.
func PathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}
