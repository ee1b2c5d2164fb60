package provider

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/pkgmanager"
)

// Ports are the network ports the installed services listen on.
type Ports struct {
	HTTP     int `yaml:"http" json:"http"`
	HTTPS    int `yaml:"https" json:"https"`
	Database int `yaml:"database" json:"database"`
}

// ProgressFunc receives configuration progress for one package.
type ProgressFunc func(percent int, message string)

// Configurer is the interface every per-package configuration plugin must
// implement.
type Configurer interface {
	// ID is the package this configurer handles.
	ID() catalog.PackageID

	// Configure rewrites the package's configuration for the install root
	// and ports described by paths. It is called once, after every package
	// of the run has been installed.
	Configure(ctx context.Context, paths *PathResolver, progress ProgressFunc) error
}

var (
	mu          sync.RWMutex
	configurers = make(map[catalog.PackageID]Configurer)
)

// Register makes a Configurer available under its ID().
func Register(c Configurer) {
	mu.Lock()
	defer mu.Unlock()
	configurers[c.ID()] = c
}

// Get returns the Configurer for id.
func Get(id catalog.PackageID) (Configurer, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := configurers[id]
	return c, ok
}

// Registered lists the ids that have a configurer.
func Registered() []catalog.PackageID {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]catalog.PackageID, 0, len(configurers))
	for id := range configurers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PathResolver answers where things live in one install run.
type PathResolver struct {
	InstallRoot string
	Ports       Ports
	installed   map[catalog.PackageID]catalog.Package
}

func NewPathResolver(root string, ports Ports, installed []catalog.Package) *PathResolver {
	m := make(map[catalog.PackageID]catalog.Package, len(installed))
	for _, p := range installed {
		m[p.ID] = p
	}
	return &PathResolver{InstallRoot: root, Ports: ports, installed: m}
}

// Package returns the installed package with the given id.
func (r *PathResolver) Package(id catalog.PackageID) (catalog.Package, bool) {
	p, ok := r.installed[id]
	return p, ok
}

// Installed reports whether id is part of this run.
func (r *PathResolver) Installed(id catalog.PackageID) bool {
	_, ok := r.installed[id]
	return ok
}

// PackagePath returns the final directory of id, whether or not it is
// installed.
func (r *PathResolver) PackagePath(id catalog.PackageID) string {
	if p, ok := r.installed[id]; ok {
		return pkgmanager.FinalPath(r.InstallRoot, p)
	}
	if p, ok := catalog.Static(id); ok {
		return pkgmanager.FinalPath(r.InstallRoot, p)
	}
	return filepath.Join(pkgmanager.AppsDir(r.InstallRoot), string(id))
}

func (r *PathResolver) DownloadsDir() string { return pkgmanager.DownloadsDir(r.InstallRoot) }
func (r *PathResolver) HtdocsDir() string    { return pkgmanager.HtdocsDir(r.InstallRoot) }
