package pkgmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/downloader"
	"github.com/open-edge-platform/stack-installer/internal/extractor"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// Share of a package's own progress spent downloading; extraction takes the
// rest.
const downloadShare = 70

// Catalog looks up package metadata.
type Catalog interface {
	Package(ctx context.Context, id catalog.PackageID) (catalog.Package, error)
}

// Fetcher downloads package artifacts.
type Fetcher interface {
	Download(ctx context.Context, pkg catalog.Package, destDir string, progress downloader.ProgressFunc) (string, error)
}

// Unpacker extracts downloaded artifacts.
type Unpacker interface {
	Extract(ctx context.Context, req extractor.Request) (*extractor.Result, error)
}

type Stage int

const (
	StageDownloading Stage = iota
	StageExtracting
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageDownloading:
		return "downloading"
	case StageExtracting:
		return "extracting"
	case StageCompleted:
		return "completed"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Progress is one update for a single package. Percent covers the whole
// download and install of that package. Done is set exactly once, on the
// final update.
type Progress struct {
	Package catalog.PackageID
	Stage   Stage
	Percent int
	Message string
	Done    *Result
}

type ProgressFunc func(Progress)

// Result is the outcome of one package install.
type Result struct {
	Package catalog.PackageID
	Success bool
	Elapsed time.Duration
	Path    string
	Skipped []string
	Err     error
}

// Manager composes catalog lookup, download and extraction into a single
// install operation.
type Manager struct {
	catalog  Catalog
	fetcher  Fetcher
	unpacker Unpacker
}

func New(c Catalog, f Fetcher, u Unpacker) *Manager {
	return &Manager{catalog: c, fetcher: f, unpacker: u}
}

// DownloadAndInstall looks id up in the catalog and installs it below root.
func (m *Manager) DownloadAndInstall(ctx context.Context, id catalog.PackageID, root string, progress ProgressFunc) (string, error) {
	pkg, err := m.catalog.Package(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Install(ctx, pkg, root, progress)
}

// Install downloads and unpacks pkg and moves it to its final location. The
// returned path is the package's final directory.
func (m *Manager) Install(ctx context.Context, pkg catalog.Package, root string, progress ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	log := logger.Logger().With("package", pkg.ID)
	start := time.Now()

	finalPath, skipped, err := m.install(ctx, pkg, root, progress)
	res := &Result{
		Package: pkg.ID,
		Success: err == nil,
		Elapsed: time.Since(start),
		Path:    finalPath,
		Skipped: skipped,
		Err:     err,
	}
	if err != nil {
		if !installerr.IsCancelled(err) {
			log.Errorw("package install failed", "error", err, "errorType", fmt.Sprintf("%T", err))
		}
		progress(Progress{Package: pkg.ID, Stage: StageCompleted, Message: installerr.Summary(err), Done: res})
		return "", err
	}

	log.Infof("installed %s %s to %s in %s", pkg.Name, pkg.Version, finalPath, res.Elapsed.Round(time.Millisecond))
	progress(Progress{
		Package: pkg.ID,
		Stage:   StageCompleted,
		Percent: 100,
		Message: fmt.Sprintf("%s installed", pkg.Name),
		Done:    res,
	})
	return finalPath, nil
}

func (m *Manager) install(ctx context.Context, pkg catalog.Package, root string, progress ProgressFunc) (string, []string, error) {
	component := string(pkg.ID)
	if err := installerr.CheckContext(ctx, component); err != nil {
		return "", nil, err
	}

	progress(Progress{Package: pkg.ID, Stage: StageDownloading, Message: fmt.Sprintf("downloading %s", pkg.Name)})
	archive, err := m.fetcher.Download(ctx, pkg, DownloadsDir(root), func(p downloader.Progress) {
		progress(Progress{
			Package: pkg.ID,
			Stage:   StageDownloading,
			Percent: p.Percent * downloadShare / 100,
			Message: downloadMessage(pkg, p),
		})
	})
	if err != nil {
		return "", nil, installerr.Wrap(installerr.ErrDownloadFailed, component, err)
	}

	finalPath := FinalPath(root, pkg)
	dest := finalPath
	if pkg.Placement != catalog.PlaceApps {
		dest = filepath.Join(TempDir(root), fmt.Sprintf("%s-%s", pkg.ID, uuid.NewString()[:8]))
		defer func() {
			if err := os.RemoveAll(dest); err != nil {
				logger.Logger().Warnf("failed to remove staging directory %s: %v", dest, err)
			}
		}()
	}

	res, err := m.unpacker.Extract(ctx, extractor.Request{
		Package:     pkg,
		ArchivePath: archive,
		DestDir:     dest,
		InstallRoot: root,
		Progress: func(pct int, msg string) {
			progress(Progress{
				Package: pkg.ID,
				Stage:   StageExtracting,
				Percent: downloadShare + pct*(100-downloadShare)/100,
				Message: msg,
			})
		},
	})
	if err != nil {
		return "", nil, installerr.Wrap(installerr.ErrExtractionFailed, component, err)
	}

	if err := relocate(pkg, dest, finalPath); err != nil {
		return "", res.Skipped, installerr.New(installerr.ErrExtractionFailed, component, "moving package into place", err)
	}
	applyArtifactPolicy(pkg, archive)
	return finalPath, res.Skipped, nil
}

// relocate moves a staged package to its final path.
func relocate(pkg catalog.Package, staged, finalPath string) error {
	switch pkg.Placement {
	case catalog.PlaceApps:
		return nil
	case catalog.PlaceSingleFile:
		entries, err := os.ReadDir(staged)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("staging directory is empty")
		}
		for _, e := range entries {
			if err := file.MoveFile(filepath.Join(staged, e.Name()), filepath.Join(finalPath, e.Name())); err != nil {
				return err
			}
		}
		return nil
	case catalog.PlaceMergeRoot:
		return file.MergeDir(staged, finalPath)
	}
	return fmt.Errorf("unknown placement %d", pkg.Placement)
}

func applyArtifactPolicy(pkg catalog.Package, archive string) {
	switch pkg.Artifact {
	case catalog.ArtifactDelete:
		if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Logger().Warnf("failed to remove downloaded artifact %s: %v", archive, err)
		}
	case catalog.ArtifactRetain:
		logger.Logger().Debugf("keeping %s for the configuration step", archive)
	case catalog.ArtifactRelocated:
	}
}

func downloadMessage(pkg catalog.Package, p downloader.Progress) string {
	if p.BytesTotal <= 0 {
		return fmt.Sprintf("downloading %s: %d KB", pkg.Name, p.BytesDone>>10)
	}
	msg := fmt.Sprintf("downloading %s: %d%% (%.1f/%.1f MB", pkg.Name, p.Percent,
		float64(p.BytesDone)/(1<<20), float64(p.BytesTotal)/(1<<20))
	if p.Speed > 0 {
		msg += fmt.Sprintf(", %.1f MB/s", p.Speed/(1<<20))
	}
	if p.ETA > 0 {
		msg += fmt.Sprintf(", %s left", p.ETA.Round(time.Second))
	}
	return msg + ")"
}
