package installer

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var expectedMIME = map[Format]string{
	FormatZip:    "application/zip",
	FormatTarGz:  "application/gzip",
	FormatTarZst: "application/zstd",
}

// ExtractArchive unpacks src into dst. Entries that would land outside dst
// are rejected.
func ExtractArchive(ctx context.Context, src, dst string, format Format) error {
	if err := checkContent(src, format); err != nil {
		return err
	}

	switch format {
	case FormatZip:
		return extractZip(ctx, src, dst)
	case FormatTarGz, FormatTarZst:
		return extractTarball(ctx, src, dst, format)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// checkContent sniffs src and rejects files whose content does not match format.
func checkContent(src string, format Format) error {
	want, ok := expectedMIME[format]
	if !ok {
		return nil
	}

	mt, err := mimetype.DetectFile(src)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%s is %s, not a %s archive", filepath.Base(src), mt.String(), format)
}

func extractZip(ctx context.Context, src, dst string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(dst, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			link, err := readZipLink(f)
			if err != nil {
				return err
			}
			if err := writeSymlink(dst, target, link); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipLink(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", fmt.Errorf("read link %s: %w", f.Name, err)
	}
	return string(data), nil
}

func extractTarball(ctx context.Context, src, dst string, format Format) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var r io.Reader
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarZst:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dst, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			source, err := safeJoin(dst, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("link %s: %w", hdr.Name, err)
			}
		}
	}
}

// safeJoin joins name onto root and fails if the result escapes root, either
// lexically or through a symlink extracted by an earlier entry.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !within(root, target) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	if err := checkNoSymlinks(root, target); err != nil {
		return "", fmt.Errorf("illegal path in archive: %s: %w", name, err)
	}
	return target, nil
}

// checkNoSymlinks fails if any existing component of target below root is a symlink.
func checkNoSymlinks(root, target string) error {
	cur := filepath.Clean(root)
	rel, err := filepath.Rel(cur, target)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("passes through symlink %s", cur)
		}
	}
	return nil
}

func within(root, path string) bool {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(path)
	return cleanPath == cleanRoot || strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator))
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- target validated by safeJoin
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- artifacts come from the catalog's own releases
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}

// writeSymlink creates target pointing at link, refusing links that resolve outside root.
func writeSymlink(root, target, link string) error {
	resolved := link
	if !filepath.IsAbs(link) {
		resolved = filepath.Join(filepath.Dir(target), link)
	}
	if !within(root, resolved) {
		return fmt.Errorf("illegal symlink in archive: %s -> %s", target, link)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Symlink(link, target)
}
