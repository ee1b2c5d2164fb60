package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// IsDirEmpty reports whether dir has no entries.
func IsDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CopyFile copies src to dst, creating parent directories and replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy and delete when the two
// paths live on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyTree copies the contents of srcDir into dstDir, overwriting files that
// already exist. Symlinks are skipped.
func CopyTree(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		default:
			return CopyFile(path, target)
		}
	})
}

// MergeDir moves every entry of srcDir into dstDir. Directories present on
// both sides are merged recursively, files in dstDir are replaced. srcDir is
// removed afterwards.
func MergeDir(srcDir, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(srcDir, e.Name())
		dst := filepath.Join(dstDir, e.Name())

		dstInfo, statErr := os.Stat(dst)
		switch {
		case statErr == nil && e.IsDir() && dstInfo.IsDir():
			if err := MergeDir(src, dst); err != nil {
				return err
			}
			continue
		case statErr == nil:
			if err := os.RemoveAll(dst); err != nil {
				return fmt.Errorf("replacing %s: %w", dst, err)
			}
		case !errors.Is(statErr, fs.ErrNotExist):
			return statErr
		}

		if err := os.Rename(src, dst); err != nil {
			if !e.IsDir() {
				if err := MoveFile(src, dst); err != nil {
					return err
				}
				continue
			}
			if err := CopyTree(src, dst); err != nil {
				return err
			}
		}
	}
	return os.RemoveAll(srcDir)
}
