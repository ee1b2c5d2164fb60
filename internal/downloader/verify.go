package downloader

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/klauspost/compress/zip"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// maxSidecarBytes bounds checksum and signature downloads.
const maxSidecarBytes = 64 << 10

var (
	// ErrChecksumMismatch indicates the computed digest differs from the expected one.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrCorruptArchive indicates the zip central directory could not be read.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrSizeMismatch indicates a cached file deviates too far from the size estimate.
	ErrSizeMismatch = errors.New("size outside tolerance")
)

// ChecksumError provides details about a checksum verification failure.
type ChecksumError struct {
	Filename string
	Expected string
	Got      string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s: expected %s, got %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// validateExisting decides whether a file already at the target path can be
// reused instead of downloading again.
func (d *Downloader) validateExisting(ctx context.Context, pkg catalog.Package, path string, size int64) error {
	if pkg.EstimatedSizeBytes > 0 {
		diff := size - pkg.EstimatedSizeBytes
		if diff < 0 {
			diff = -diff
		}
		if diff*100 > pkg.EstimatedSizeBytes*sizeTolerance {
			return fmt.Errorf("%w: %d bytes, estimate %d", ErrSizeMismatch, size, pkg.EstimatedSizeBytes)
		}
	}
	if err := d.verifyChecksum(ctx, pkg, path); err != nil {
		return err
	}
	if pkg.Kind.IsZip() {
		return ValidateZip(path)
	}
	return nil
}

// verify runs every integrity check that applies to a fresh download.
func (d *Downloader) verify(ctx context.Context, pkg catalog.Package, path string) error {
	if err := d.verifyChecksum(ctx, pkg, path); err != nil {
		return err
	}
	if err := d.verifySignature(ctx, pkg, path); err != nil {
		return err
	}
	if pkg.Kind.IsZip() {
		if err := ValidateZip(path); err != nil {
			return fmt.Errorf("%w; the file was deleted, download it again", err)
		}
	}
	return nil
}

func (d *Downloader) verifyChecksum(ctx context.Context, pkg catalog.Package, path string) error {
	switch {
	case pkg.Checksum != "":
		return VerifyFile(path, pkg.Checksum)
	case pkg.ChecksumURL != "":
		body, err := d.fetchSidecar(ctx, pkg.ChecksumURL)
		if err != nil {
			return fmt.Errorf("fetching checksum: %w", err)
		}
		expected, err := ParseChecksum(body, filepath.Base(path))
		if err != nil {
			return fmt.Errorf("parsing checksum from %s: %w", pkg.ChecksumURL, err)
		}
		return VerifyFile(path, expected)
	}
	return nil
}

func (d *Downloader) verifySignature(ctx context.Context, pkg catalog.Package, path string) error {
	if pkg.SignatureURL == "" {
		return nil
	}
	if len(d.keyring) == 0 {
		logger.Logger().Warnf("no keyring configured, skipping signature check for %s", pkg.ID)
		return nil
	}
	sig, err := d.fetchSidecar(ctx, pkg.SignatureURL)
	if err != nil {
		return fmt.Errorf("fetching signature: %w", err)
	}
	return VerifySignature(d.keyring, path, sig)
}

func (d *Downloader) fetchSidecar(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: bad status: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSidecarBytes))
}

// ParseChecksum extracts a hex digest from a checksum document. Both a bare
// digest and sha256sum style "digest  filename" lines are understood; when
// several lines are present the one naming filename wins.
func ParseChecksum(body []byte, filename string) (string, error) {
	var first string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !isHexDigest(fields[0]) {
			continue
		}
		digest := strings.ToLower(fields[0])
		if len(fields) == 1 {
			if first == "" {
				first = digest
			}
			continue
		}
		name := strings.TrimPrefix(fields[len(fields)-1], "*")
		if name == filename {
			return digest, nil
		}
		if first == "" {
			first = digest
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("no digest found")
	}
	return first, nil
}

// VerifyFile hashes path with the algorithm implied by the digest length and
// compares it with expected.
func VerifyFile(path, expected string) error {
	h, err := hashFor(expected)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing file %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, expected) {
		return &ChecksumError{Filename: path, Expected: strings.ToLower(expected), Got: got}
	}
	return nil
}

func hashFor(digest string) (hash.Hash, error) {
	switch len(digest) {
	case sha1.Size * 2:
		return sha1.New(), nil
	case sha256.Size * 2:
		return sha256.New(), nil
	case sha512.Size384 * 2:
		return sha512.New384(), nil
	case sha512.Size * 2:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported digest length %d", len(digest))
}

func isHexDigest(s string) bool {
	if _, err := hashFor(s); err != nil {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ValidateZip opens the archive and walks its central directory.
func ValidateZip(path string) error {
	r, err := zip.OpenReader(path)
	if r == nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptArchive, filepath.Base(path), err)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrCorruptArchive, filepath.Base(path))
	}
	for _, f := range r.File {
		if f.Name == "" {
			return fmt.Errorf("%w: %s contains an unnamed entry", ErrCorruptArchive, filepath.Base(path))
		}
	}
	return nil
}

// VerifySignature checks a detached signature, armored or binary, over the
// file at path.
func VerifySignature(keyring openpgp.KeyRing, path string, sig []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if bytes.HasPrefix(bytes.TrimSpace(sig), []byte("-----BEGIN")) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, bytes.NewReader(sig), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, f, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", filepath.Base(path), err)
	}
	return nil
}
