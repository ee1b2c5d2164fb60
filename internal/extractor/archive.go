package extractor

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
)

// header is the format-independent view of one archive entry.
type header struct {
	Name    string // slash separated, as stored in the archive
	Dir     bool
	Symlink bool
	Mode    fs.FileMode
}

// source walks the entries of one archive. Entries returns headers only;
// Walk streams file contents in archive order.
type source interface {
	Entries() ([]header, error)
	Walk(fn func(h header, r io.Reader) error) error
	Close() error
}

func openSource(kind catalog.ArchiveKind, path string) (source, error) {
	switch kind {
	case catalog.ArchiveZip, catalog.ArchiveRuntimeBundle:
		// The reader is still returned alongside an insecure-path error;
		// such entries are refused one by one during extraction.
		r, err := zip.OpenReader(path)
		if r == nil {
			return nil, fmt.Errorf("opening zip: %w", err)
		}
		return &zipSource{r: r}, nil
	case catalog.ArchiveTarGz, catalog.ArchiveTarXz:
		return &tarSource{path: path, kind: kind}, nil
	}
	return nil, fmt.Errorf("archive kind %s cannot be unpacked", kind)
}

type zipSource struct {
	r *zip.ReadCloser
}

func (s *zipSource) Entries() ([]header, error) {
	out := make([]header, 0, len(s.r.File))
	for _, f := range s.r.File {
		out = append(out, zipHeader(f))
	}
	return out, nil
}

func (s *zipSource) Walk(fn func(h header, r io.Reader) error) error {
	for _, f := range s.r.File {
		h := zipHeader(f)
		if h.Dir || h.Symlink {
			if err := fn(h, nil); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		err = fn(h, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *zipSource) Close() error { return s.r.Close() }

func zipHeader(f *zip.File) header {
	mode := f.Mode()
	return header{
		Name:    f.Name,
		Dir:     mode.IsDir() || strings.HasSuffix(f.Name, "/"),
		Symlink: mode&fs.ModeSymlink != 0,
		Mode:    mode,
	}
}

// tarSource re-reads the compressed stream for every pass since tar has no
// central directory.
type tarSource struct {
	path string
	kind catalog.ArchiveKind
}

func (s *tarSource) open() (*tar.Reader, io.Closer, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, err
	}
	switch s.kind {
	case catalog.ArchiveTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return tar.NewReader(gz), closers{gz, f}, nil
	default:
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return tar.NewReader(xr), f, nil
	}
}

func (s *tarSource) Entries() ([]header, error) {
	var out []header
	err := s.Walk(func(h header, _ io.Reader) error {
		out = append(out, h)
		return nil
	})
	return out, err
}

func (s *tarSource) Walk(fn func(h header, r io.Reader) error) error {
	tr, c, err := s.open()
	if err != nil {
		return err
	}
	defer c.Close()

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		h := header{Name: hdr.Name, Mode: hdr.FileInfo().Mode()}
		var r io.Reader
		switch hdr.Typeflag {
		case tar.TypeDir:
			h.Dir = true
		case tar.TypeSymlink, tar.TypeLink:
			h.Symlink = true
		case tar.TypeReg:
			if isDirEntry(h) {
				h.Dir = true
				break
			}
			r = tr
		default:
			// devices, fifos and pax metadata are never installed
			continue
		}
		if err := fn(h, r); err != nil {
			return err
		}
	}
}

func (s *tarSource) Close() error { return nil }

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
