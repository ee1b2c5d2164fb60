package extractor

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var errUnsafePath = errors.New("entry escapes destination")

// cleanName normalizes an archive entry name to a relative slash path.
// Backslashes are treated as separators since some zip tools on Windows
// write them.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	return strings.TrimSuffix(name, "/")
}

// isDirEntry treats a raw name ending in a separator as a directory even when
// the archive writer did not flag it as one.
func isDirEntry(h header) bool {
	return h.Dir || strings.HasSuffix(h.Name, "/") || strings.HasSuffix(h.Name, "\\")
}

// commonRoot returns the wrapper directory to strip from every entry, or "".
// A root is stripped only when every entry lives under the same top-level
// directory, that directory has at least two children and none of those
// children is a plain file.
func commonRoot(entries []header) string {
	var root string
	children := make(map[string]bool) // child name -> is directory
	for _, e := range entries {
		name := cleanName(e.Name)
		if name == "" {
			continue
		}
		first, rest, nested := strings.Cut(name, "/")
		isDir := isDirEntry(e)
		if !nested && !isDir {
			return "" // loose file at archive root
		}
		if root == "" {
			root = first
		} else if first != root {
			return ""
		}
		if rest == "" {
			continue
		}
		child, _, deeper := strings.Cut(rest, "/")
		children[child] = children[child] || deeper || isDir
	}
	if root == "" || len(children) < 2 {
		return ""
	}
	for _, isDir := range children {
		if !isDir {
			return ""
		}
	}
	return root
}

// relativeTarget strips root from name. ok is false for the root entry itself.
func relativeTarget(name, root string) (string, bool) {
	name = cleanName(name)
	if root == "" {
		return name, name != ""
	}
	if name == root {
		return "", false
	}
	return strings.TrimPrefix(name, root+"/"), true
}

// safeJoin resolves an archive-relative path below dest and rejects anything
// that would land outside it.
func safeJoin(dest, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty name", errUnsafePath)
	}
	if strings.HasPrefix(rel, "/") || hasDriveLetter(rel) {
		return "", fmt.Errorf("%w: absolute path %q", errUnsafePath, rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", errUnsafePath, rel)
	}

	target := filepath.Join(dest, filepath.FromSlash(cleaned))
	within, err := filepath.Rel(dest, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnsafePath, err)
	}
	if within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) || filepath.IsAbs(within) {
		return "", fmt.Errorf("%w: %q", errUnsafePath, rel)
	}
	return target, nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
