package pkgmanager

import (
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
)

// Directory names below the install root.
const (
	AppsDirName      = "apps"
	HtdocsDirName    = "htdocs"
	DownloadsDirName = "downloads"
	TempDirName      = "temp"
)

func AppsDir(root string) string      { return filepath.Join(root, AppsDirName) }
func HtdocsDir(root string) string    { return filepath.Join(root, HtdocsDirName) }
func DownloadsDir(root string) string { return filepath.Join(root, DownloadsDirName) }
func TempDir(root string) string      { return filepath.Join(root, TempDirName) }

// BaseLayout lists the directories created before any package is installed.
func BaseLayout(root string) []string {
	return []string{AppsDir(root), HtdocsDir(root), DownloadsDir(root), TempDir(root)}
}

// FinalPath is where pkg lives once installed. Packages merged into the
// install root resolve to the root itself.
func FinalPath(root string, pkg catalog.Package) string {
	if pkg.RelativeInstallPath == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(pkg.RelativeInstallPath))
}
