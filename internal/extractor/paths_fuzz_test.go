package extractor

import (
	"path/filepath"
	"strings"
	"testing"
)

// FuzzSafeJoin checks that no accepted archive name escapes the destination.
func FuzzSafeJoin(f *testing.F) {
	f.Add("httpd.conf")
	f.Add("Apache24/conf/httpd.conf")
	f.Add("../evil.txt")
	f.Add("a/../../evil.txt")
	f.Add("/etc/passwd")
	f.Add("C:/Windows/win.ini")
	f.Add("./.")
	f.Add("a/./b/../c")

	f.Fuzz(func(t *testing.T, rel string) {
		dest := t.TempDir()
		target, err := safeJoin(dest, rel)
		if err != nil {
			return
		}
		within, err := filepath.Rel(dest, target)
		if err != nil {
			t.Fatalf("Rel(%s, %s): %v", dest, target, err)
		}
		if within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
			t.Errorf("safeJoin(%q) escaped destination: %s", rel, target)
		}
	})
}
