package extractor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ErrMissingMarkers is returned when an installed tree lacks an expected file.
var ErrMissingMarkers = errors.New("expected files missing")

// VerifyMarkers checks that every marker file exists somewhere below dir.
// Markers match on base name, case-insensitively; a marker without an
// extension also matches the same name with ".exe".
func VerifyMarkers(dir string, markers []string) error {
	if len(markers) == 0 {
		return nil
	}
	want := make(map[string]string, len(markers)*2)
	for _, m := range markers {
		key := strings.ToLower(m)
		want[key] = m
		if filepath.Ext(m) == "" {
			want[key+".exe"] = m
		}
	}

	found := make(map[string]bool, len(markers))
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if m, ok := want[strings.ToLower(d.Name())]; ok {
			found[m] = true
			if len(found) == len(markers) {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}

	var missing []string
	for _, m := range markers {
		if !found[m] {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w under %s: %s", ErrMissingMarkers, dir, strings.Join(missing, ", "))
	}
	return nil
}
