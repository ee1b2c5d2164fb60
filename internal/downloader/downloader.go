package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/cenkalti/backoff/v4"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
	"github.com/open-edge-platform/stack-installer/internal/utils/network"
)

// Read buffer sizes chosen by declared content length.
const (
	smallBufferSize  = 32 << 10
	mediumBufferSize = 256 << 10
	largeBufferSize  = 1 << 20

	mediumThreshold = 10 << 20
	largeThreshold  = 100 << 20

	// sizeTolerance is the accepted deviation of a cached file from the
	// catalog size estimate, in percent.
	sizeTolerance = 10
)

// Progress is reported each time a download crosses a 10% boundary.
type Progress struct {
	Package    catalog.PackageID
	BytesDone  int64
	BytesTotal int64 // -1 when the server did not declare a length
	Percent    int
	Speed      float64 // bytes per second since the previous report
	ETA        time.Duration
}

type ProgressFunc func(Progress)

// Downloader fetches package artifacts into a cache directory.
type Downloader struct {
	client      *http.Client
	fallback    *http.Client
	userAgent   string
	maxAttempts int
	baseBackoff time.Duration
	keyring     openpgp.EntityList
}

// Option configures a Downloader.
type Option func(*Downloader)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithFallbackClient sets the transport tried once after retries are
// exhausted. A nil client disables the fallback.
func WithFallbackClient(c *http.Client) Option {
	return func(d *Downloader) { d.fallback = c }
}

func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// WithRetry sets the number of attempts and the first backoff interval; each
// further interval doubles.
func WithRetry(attempts int, base time.Duration) Option {
	return func(d *Downloader) {
		d.maxAttempts = attempts
		d.baseBackoff = base
	}
}

// WithKeyring enables detached OpenPGP signature verification.
func WithKeyring(keyring openpgp.EntityList) Option {
	return func(d *Downloader) { d.keyring = keyring }
}

// New creates a Downloader with the secure primary client and the HTTP/1.1
// fallback client.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client:      network.NewSecureHTTPClient(0),
		fallback:    network.NewFallbackHTTPClient(0),
		userAgent:   config.DefaultUserAgent,
		maxAttempts: 3,
		baseBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxAttempts < 1 {
		d.maxAttempts = 1
	}
	return d
}

// Download fetches pkg into destDir and returns the local file path. A valid
// file already present at the target path is reused without network access.
func (d *Downloader) Download(ctx context.Context, pkg catalog.Package, destDir string, progress ProgressFunc) (string, error) {
	log := logger.Logger().With("package", pkg.ID)
	component := string(pkg.ID)

	if err := installerr.CheckContext(ctx, component); err != nil {
		return "", err
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", installerr.New(installerr.ErrDownloadFailed, component, "creating download directory", err)
	}
	target := filepath.Join(destDir, pkg.ArchiveFileName())

	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		if verr := d.validateExisting(ctx, pkg, target, info.Size()); verr == nil {
			log.Infof("reusing cached download %s", target)
			progress(Progress{Package: pkg.ID, BytesDone: info.Size(), BytesTotal: info.Size(), Percent: 100})
			return target, nil
		} else {
			if installerr.IsCancelled(verr) {
				return "", installerr.Cancelled(component, verr)
			}
			log.Infof("cached download %s is not usable, fetching again: %v", target, verr)
			if err := os.Remove(target); err != nil {
				return "", installerr.New(installerr.ErrDownloadFailed, component, "removing stale download", err)
			}
		}
	}

	start := time.Now()
	err := d.fetchWithRetry(ctx, d.client, pkg, target, progress)
	if err != nil && d.fallback != nil && !installerr.IsCancelled(err) && !isPermanent(err) {
		log.Warnf("primary transport failed after %d attempts, trying fallback transport: %v", d.maxAttempts, err)
		_ = os.Remove(target)
		err = d.fetch(ctx, d.fallback, pkg, target, progress)
	}
	if err != nil {
		_ = os.Remove(target)
		if installerr.IsCancelled(err) {
			return "", installerr.Cancelled(component, err)
		}
		log.Errorw("download failed", "url", pkg.DownloadURL, "error", err, "errorType", fmt.Sprintf("%T", err))
		return "", installerr.New(installerr.ErrDownloadFailed, component, "fetching "+pkg.DownloadURL, err)
	}

	if err := d.verify(ctx, pkg, target); err != nil {
		_ = os.Remove(target)
		if installerr.IsCancelled(err) {
			return "", installerr.Cancelled(component, err)
		}
		log.Errorw("downloaded file failed verification", "path", target, "error", err)
		return "", installerr.New(installerr.ErrDownloadFailed, component, "verifying download", err)
	}

	logger.RecordFetched(pkg.DownloadURL)
	log.Infof("downloaded %s in %s", filepath.Base(target), time.Since(start).Round(time.Millisecond))
	return target, nil
}

// fetchWithRetry runs fetch with exponential backoff. The partial file is
// removed before every attempt.
func (d *Downloader) fetchWithRetry(ctx context.Context, client *http.Client, pkg catalog.Package, target string, progress ProgressFunc) error {
	log := logger.Logger().With("package", pkg.ID)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = d.baseBackoff
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0
	expBackoff.MaxInterval = d.baseBackoff * 8
	expBackoff.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(d.maxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return backoff.Permanent(fmt.Errorf("removing partial download: %w", err))
		}
		err := d.fetch(ctx, client, pkg, target, progress)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || isPermanent(err) {
			return backoff.Permanent(err)
		}
		log.Warnf("download attempt %d/%d failed: %v", attempt, d.maxAttempts, err)
		return err
	}

	err := backoff.Retry(operation, policy)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// fetch streams one GET of pkg.DownloadURL into target.
func (d *Downloader) fetch(ctx context.Context, client *http.Client, pkg catalog.Package, target string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pkg.DownloadURL, nil)
	if err != nil {
		return &statusError{msg: fmt.Sprintf("creating request: %v", err), permanent: true}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp)
	}

	out, err := os.Create(target)
	if err != nil {
		return &statusError{msg: fmt.Sprintf("creating %s: %v", target, err), permanent: true}
	}

	total := resp.ContentLength
	buf := make([]byte, bufferSize(total))
	meter := newProgressMeter(pkg.ID, total, progress)

	var done int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return &statusError{msg: fmt.Sprintf("writing %s: %v", target, werr), permanent: true}
			}
			done += int64(n)
			meter.update(done)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return rerr
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	if total > 0 && done != total {
		return fmt.Errorf("received %d of %d bytes: %w", done, total, io.ErrUnexpectedEOF)
	}
	meter.finish(done)
	return nil
}

// bufferSize picks the read buffer for a declared content length.
func bufferSize(contentLength int64) int {
	switch {
	case contentLength >= largeThreshold:
		return largeBufferSize
	case contentLength >= mediumThreshold:
		return mediumBufferSize
	}
	return smallBufferSize
}

// progressMeter emits a report only when a new 10% boundary is crossed.
type progressMeter struct {
	pkg      catalog.PackageID
	total    int64
	report   ProgressFunc
	start    time.Time
	lastTime time.Time
	lastDone int64
	next     int
}

func newProgressMeter(pkg catalog.PackageID, total int64, report ProgressFunc) *progressMeter {
	now := time.Now()
	return &progressMeter{pkg: pkg, total: total, report: report, start: now, lastTime: now, next: 10}
}

func (m *progressMeter) update(done int64) {
	if m.total <= 0 {
		return
	}
	pct := int(done * 100 / m.total)
	if pct < m.next {
		return
	}
	m.emit(done, pct)
	m.next = (pct/10)*10 + 10
}

func (m *progressMeter) finish(done int64) {
	if m.next <= 100 {
		m.emit(done, 100)
		m.next = 110
	}
}

func (m *progressMeter) emit(done int64, pct int) {
	if pct > 100 {
		pct = 100
	}
	now := time.Now()
	var speed float64
	if dt := now.Sub(m.lastTime).Seconds(); dt > 0 {
		speed = float64(done-m.lastDone) / dt
	}
	var eta time.Duration
	if m.total > 0 && done > 0 && done < m.total {
		elapsed := now.Sub(m.start)
		eta = time.Duration(float64(elapsed) / float64(done) * float64(m.total-done))
	}
	total := m.total
	if total <= 0 {
		total = -1
	}
	m.report(Progress{Package: m.pkg, BytesDone: done, BytesTotal: total, Percent: pct, Speed: speed, ETA: eta})
	m.lastTime = now
	m.lastDone = done
}

// statusError is a failed HTTP exchange. 4xx responses other than timeouts and
// rate limiting are not worth retrying.
type statusError struct {
	code      int
	msg       string
	permanent bool
}

func (e *statusError) Error() string { return e.msg }

func newStatusError(resp *http.Response) *statusError {
	permanent := resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout &&
		resp.StatusCode != http.StatusTooManyRequests
	return &statusError{
		code:      resp.StatusCode,
		msg:       fmt.Sprintf("GET %s: bad status: %s", resp.Request.URL, resp.Status),
		permanent: permanent,
	}
}

func isPermanent(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.permanent
}
