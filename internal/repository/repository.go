package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/utils/config"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
	"github.com/open-edge-platform/stack-installer/internal/utils/network"
)

// maxManifestBytes bounds the remote manifest download.
const maxManifestBytes = 4 << 20

// Source selects where the catalog is loaded from.
type Source int

const (
	SourceAuto Source = iota
	SourceLocalOnly
	SourceWebOnly
)

func (s Source) String() string {
	switch s {
	case SourceLocalOnly:
		return "local"
	case SourceWebOnly:
		return "web"
	}
	return "auto"
}

// ParseSource maps the config spelling to a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SourceAuto, nil
	case "local", "localonly", "local-only":
		return SourceLocalOnly, nil
	case "web", "webonly", "web-only":
		return SourceWebOnly, nil
	}
	return SourceAuto, fmt.Errorf("unknown catalog source %q", s)
}

// Repository resolves the package catalog and computes dependency closures.
type Repository struct {
	client        *http.Client
	manifestURL   string
	localFile     string
	allowedHosts  []string
	userAgent     string
	defaultSource Source

	mu     sync.Mutex
	cached []catalog.Package
}

// Option configures a Repository.
type Option func(*Repository)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Repository) { r.client = c }
}

func WithManifestURL(u string) Option {
	return func(r *Repository) { r.manifestURL = u }
}

func WithLocalFile(path string) Option {
	return func(r *Repository) { r.localFile = path }
}

// WithAllowedHosts replaces the manifest host allow-list.
func WithAllowedHosts(hosts ...string) Option {
	return func(r *Repository) { r.allowedHosts = hosts }
}

func WithUserAgent(ua string) Option {
	return func(r *Repository) { r.userAgent = ua }
}

// WithSource sets the source used by lookups that did not load the catalog
// explicitly.
func WithSource(s Source) Option {
	return func(r *Repository) { r.defaultSource = s }
}

// New creates a Repository with defaults from the config package.
func New(opts ...Option) *Repository {
	r := &Repository{
		manifestURL:  config.DefaultManifestURL,
		localFile:    "packages.json",
		allowedHosts: config.DefaultGlobalConfig().Catalog.AllowedHosts,
		userAgent:    config.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = network.NewSecureHTTPClient(time.Minute)
	}
	return r
}

// GetAvailablePackages loads the catalog from source. The first successful
// load is cached for the lifetime of the Repository.
func (r *Repository) GetAvailablePackages(ctx context.Context, source Source) ([]catalog.Package, error) {
	log := logger.Logger()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return clonePackages(r.cached), nil
	}

	var (
		pkgs []catalog.Package
		err  error
	)
	switch source {
	case SourceLocalOnly:
		pkgs, err = r.loadLocal()
	case SourceWebOnly:
		pkgs, err = r.loadRemote(ctx)
	default:
		var remoteErr error
		pkgs, remoteErr = r.loadRemote(ctx)
		if remoteErr != nil {
			if installerr.IsCancelled(remoteErr) {
				return nil, installerr.Cancelled("catalog", remoteErr)
			}
			log.Warnf("remote manifest unavailable, falling back to local catalog: %v", remoteErr)
			var localErr error
			pkgs, localErr = r.loadLocal()
			if localErr != nil {
				err = errors.Join(remoteErr, localErr)
			}
		}
	}
	if err != nil {
		if installerr.IsCancelled(err) {
			return nil, installerr.Cancelled("catalog", err)
		}
		log.Errorw("loading package catalog failed", "source", source.String(), "error", err)
		return nil, installerr.New(installerr.ErrCatalogUnavailable, "catalog",
			fmt.Sprintf("no usable %s catalog", source), err)
	}

	log.Infof("loaded %d packages from %s catalog", len(pkgs), source)
	r.cached = pkgs
	return clonePackages(pkgs), nil
}

// Package returns the catalog entry for id, loading the catalog with the
// default source if needed.
func (r *Repository) Package(ctx context.Context, id catalog.PackageID) (catalog.Package, error) {
	pkgs, err := r.GetAvailablePackages(ctx, r.defaultSource)
	if err != nil {
		return catalog.Package{}, err
	}
	for _, p := range pkgs {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Package{}, installerr.New(installerr.ErrCatalogUnavailable, string(id),
		"package not present in catalog", nil)
}

func (r *Repository) loadLocal() ([]catalog.Package, error) {
	if r.localFile == "" {
		return nil, fmt.Errorf("no local packages file configured")
	}
	data, err := os.ReadFile(r.localFile)
	if err != nil {
		return nil, fmt.Errorf("reading local packages file: %w", err)
	}
	entries, err := catalog.ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("local packages file %s: %w", r.localFile, err)
	}
	return catalog.BuildCatalog(entries)
}

func (r *Repository) loadRemote(ctx context.Context) ([]catalog.Package, error) {
	log := logger.Logger()

	if err := ValidateManifestURL(r.manifestURL, r.allowedHosts); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating manifest request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	log.Debugf("fetching manifest %s", r.manifestURL)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", r.manifestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: bad status: %s", r.manifestURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if len(data) > maxManifestBytes {
		return nil, fmt.Errorf("manifest exceeds %d bytes", maxManifestBytes)
	}

	entries, err := catalog.ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return catalog.BuildCatalog(entries)
}

// ValidateManifestURL accepts only https URLs whose host is allow-listed.
func ValidateManifestURL(raw string, allowed []string) error {
	if raw == "" {
		return fmt.Errorf("no manifest url configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid manifest url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("manifest url must use https, got %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allowed {
		if host == strings.ToLower(strings.TrimSpace(a)) {
			return nil
		}
	}
	return fmt.Errorf("manifest host %q is not on the allow-list", host)
}

func clonePackages(in []catalog.Package) []catalog.Package {
	out := make([]catalog.Package, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
