package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/utils/file"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// ProgressFunc receives extraction progress at quartile boundaries.
type ProgressFunc func(percent int, message string)

// Request describes one extraction.
type Request struct {
	Package     catalog.Package
	ArchivePath string
	DestDir     string
	// InstallRoot anchors the runtime bundle's copy targets.
	InstallRoot string
	Progress    ProgressFunc
}

// Result describes what ended up on disk.
type Result struct {
	Path string
	// Skipped lists archive entries that were refused, such as paths
	// escaping the destination or symbolic links.
	Skipped []string
	// CopiedTo lists the directories that received a copy of a runtime bundle.
	CopiedTo []string
}

// Extractor unpacks downloaded artifacts.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract dispatches on the package's archive kind. The destination directory
// is always recreated; on failure it is removed again.
func (x *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	pkg := req.Package
	component := string(pkg.ID)
	if req.Progress == nil {
		req.Progress = func(int, string) {}
	}
	if err := installerr.CheckContext(ctx, component); err != nil {
		return nil, err
	}
	if req.DestDir == "" {
		return nil, installerr.New(installerr.ErrExtractionFailed, component, "no destination directory", nil)
	}

	if err := os.RemoveAll(req.DestDir); err != nil {
		return nil, installerr.New(installerr.ErrExtractionFailed, component, "clearing destination", err)
	}
	if err := os.MkdirAll(req.DestDir, 0755); err != nil {
		return nil, installerr.New(installerr.ErrExtractionFailed, component, "creating destination", err)
	}

	var (
		res *Result
		err error
	)
	switch pkg.Kind {
	case catalog.ArchiveSingleBinary:
		res, err = x.placeSingleFile(req, file.CopyFile)
	case catalog.ArchivePhar:
		res, err = x.placeSingleFile(req, file.MoveFile)
	case catalog.ArchiveRuntimeBundle:
		res, err = x.extractRuntimeBundle(ctx, req)
	case catalog.ArchiveZip, catalog.ArchiveTarGz, catalog.ArchiveTarXz:
		res, err = x.unpack(ctx, req)
	default:
		err = fmt.Errorf("unsupported archive kind %s", pkg.Kind)
	}
	if err == nil {
		if merr := VerifyMarkers(req.DestDir, pkg.Markers); merr != nil {
			err = merr
		}
	}
	if err != nil {
		if rerr := os.RemoveAll(req.DestDir); rerr != nil {
			logger.Logger().Warnf("failed to remove partial extraction %s: %v", req.DestDir, rerr)
		}
		if installerr.IsCancelled(err) {
			return nil, installerr.Cancelled(component, err)
		}
		logger.Logger().Errorw("extraction failed", "package", pkg.ID, "archive", req.ArchivePath, "error", err)
		return nil, installerr.New(installerr.ErrExtractionFailed, component, "extracting "+filepath.Base(req.ArchivePath), err)
	}

	req.Progress(100, fmt.Sprintf("%s extracted", pkg.Name))
	return res, nil
}

// placeSingleFile puts a non-archive artifact into the destination verbatim.
func (x *Extractor) placeSingleFile(req Request, place func(src, dst string) error) (*Result, error) {
	target := filepath.Join(req.DestDir, filepath.Base(req.ArchivePath))
	if err := place(req.ArchivePath, target); err != nil {
		return nil, fmt.Errorf("placing %s: %w", filepath.Base(req.ArchivePath), err)
	}
	return &Result{Path: req.DestDir}, nil
}

// extractRuntimeBundle unpacks the bundle into its own directory and then
// copies it into every target component that is installed.
func (x *Extractor) extractRuntimeBundle(ctx context.Context, req Request) (*Result, error) {
	res, err := x.unpack(ctx, req)
	if err != nil {
		return nil, err
	}
	log := logger.Logger().With("package", req.Package.ID)
	for _, rel := range req.Package.CopyTargets {
		if err := installerr.CheckContext(ctx, string(req.Package.ID)); err != nil {
			return nil, err
		}
		target := filepath.Join(req.InstallRoot, filepath.FromSlash(rel))
		if info, err := os.Stat(target); err != nil || !info.IsDir() {
			log.Debugf("skipping runtime copy into %s: not installed", rel)
			continue
		}
		if err := file.CopyTree(req.DestDir, target); err != nil {
			return nil, fmt.Errorf("copying runtime into %s: %w", rel, err)
		}
		res.CopiedTo = append(res.CopiedTo, target)
	}
	return res, nil
}

// unpack extracts a zip or tarball into req.DestDir.
func (x *Extractor) unpack(ctx context.Context, req Request) (*Result, error) {
	log := logger.Logger().With("package", req.Package.ID)

	src, err := openSource(req.Package.Kind, req.ArchivePath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	entries, err := src.Entries()
	if err != nil {
		return nil, err
	}
	root := commonRoot(entries)
	if root != "" {
		log.Debugf("flattening wrapper directory %s", root)
	}

	res := &Result{Path: req.DestDir}
	quartiles := newQuartiles(len(entries), req.Package.Name, req.Progress)
	processed := 0

	err = src.Walk(func(h header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		defer func() {
			processed++
			quartiles.update(processed)
		}()

		rel, ok := relativeTarget(h.Name, root)
		if !ok {
			return nil
		}
		target, err := safeJoin(req.DestDir, rel)
		if err != nil {
			log.Warnf("skipping archive entry %q: %v", h.Name, err)
			res.Skipped = append(res.Skipped, h.Name)
			return nil
		}
		switch {
		case h.Dir:
			return os.MkdirAll(target, 0755)
		case h.Symlink:
			log.Warnf("skipping symbolic link %q", h.Name)
			res.Skipped = append(res.Skipped, h.Name)
			return nil
		}
		return writeEntry(target, h, r)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func writeEntry(target string, h header, r io.Reader) error {
	if r == nil {
		return fmt.Errorf("entry %s has no content", h.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, h.Mode.Perm()|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", h.Name, err)
	}
	return out.Close()
}

// quartiles reports at 25/50/75/100 percent of entries processed.
type quartiles struct {
	total  int
	name   string
	report ProgressFunc
	next   int
}

func newQuartiles(total int, name string, report ProgressFunc) *quartiles {
	return &quartiles{total: total, name: name, report: report, next: 25}
}

func (q *quartiles) update(done int) {
	if q.total == 0 {
		return
	}
	pct := done * 100 / q.total
	for q.next <= 100 && pct >= q.next {
		q.report(q.next, fmt.Sprintf("extracting %s (%d/%d)", q.name, done, q.total))
		q.next += 25
	}
}
