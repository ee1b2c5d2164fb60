package catalog

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// PackageID identifies an installable component.
type PackageID string

const (
	Apache       PackageID = "apache"
	MariaDB      PackageID = "mariadb"
	PHP          PackageID = "php"
	PhpMyAdmin   PackageID = "phpmyadmin"
	Xdebug       PackageID = "xdebug"
	Composer     PackageID = "composer"
	ControlPanel PackageID = "controlpanel"
	VCRuntime    PackageID = "vcruntime"
)

// AllPackageIDs returns every known package in catalog order.
func AllPackageIDs() []PackageID {
	return []PackageID{Apache, MariaDB, PHP, PhpMyAdmin, Xdebug, Composer, ControlPanel, VCRuntime}
}

// ParsePackageID accepts a package id case-insensitively.
func ParsePackageID(s string) (PackageID, error) {
	id := PackageID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPackageIDs() {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown package %q", s)
}

// ArchiveKind is the closed set of artifact formats the extractor handles.
type ArchiveKind int

const (
	ArchiveZip ArchiveKind = iota + 1
	ArchiveTarGz
	ArchiveTarXz
	// ArchiveSingleBinary is a shared library shipped as-is.
	ArchiveSingleBinary
	// ArchivePhar is a self-contained script-manager archive.
	ArchivePhar
	// ArchiveRuntimeBundle is a zip of shared runtime libraries copied into
	// several components.
	ArchiveRuntimeBundle
)

func (k ArchiveKind) String() string {
	switch k {
	case ArchiveZip:
		return "zip"
	case ArchiveTarGz:
		return "tar.gz"
	case ArchiveTarXz:
		return "tar.xz"
	case ArchiveSingleBinary:
		return "single-binary"
	case ArchivePhar:
		return "phar"
	case ArchiveRuntimeBundle:
		return "runtime-bundle"
	}
	return fmt.Sprintf("ArchiveKind(%d)", int(k))
}

// IsZip reports whether the artifact is a zip container.
func (k ArchiveKind) IsZip() bool {
	return k == ArchiveZip || k == ArchiveRuntimeBundle
}

// Placement describes where a package ends up once extracted.
type Placement int

const (
	// PlaceApps extracts straight into RelativeInstallPath.
	PlaceApps Placement = iota
	// PlaceSingleFile stages the artifact, then moves the file into
	// RelativeInstallPath.
	PlaceSingleFile
	// PlaceMergeRoot stages the archive, then merges it into the install root.
	PlaceMergeRoot
)

// ArtifactPolicy says what happens to the cached download after install.
type ArtifactPolicy int

const (
	ArtifactDelete ArtifactPolicy = iota
	// ArtifactRetain keeps the download for the configuration phase.
	ArtifactRetain
	// ArtifactRelocated means the extractor already moved the download.
	ArtifactRelocated
)

// Package holds everything needed to fetch, verify and lay out one component.
type Package struct {
	ID                  PackageID
	Name                string
	Version             string
	DownloadURL         string
	Kind                ArchiveKind
	EstimatedSizeBytes  int64
	Description         string
	RelativeInstallPath string // slash separated, relative to the install root
	Checksum            string // hex digest
	ChecksumURL         string
	SignatureURL        string
	Dependencies        []PackageID
	InstallAfter        []PackageID // ordering only, never pulled into the closure
	Markers             []string
	Placement           Placement
	Artifact            ArtifactPolicy
	CopyTargets         []string // runtime bundle destinations, relative to the install root
	Optional            bool
}

// Validate checks the invariants of a merged catalog entry.
func (p Package) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("package id is empty")
	}
	if p.DownloadURL == "" {
		return fmt.Errorf("package %s: download url is empty", p.ID)
	}
	if _, err := url.ParseRequestURI(p.DownloadURL); err != nil {
		return fmt.Errorf("package %s: invalid download url: %w", p.ID, err)
	}
	if p.Checksum != "" && p.ChecksumURL != "" {
		return fmt.Errorf("package %s: checksum and checksumUrl are mutually exclusive", p.ID)
	}
	if _, err := p.SemVer(); err != nil {
		return err
	}
	for _, d := range p.Dependencies {
		if d == p.ID {
			return fmt.Errorf("package %s depends on itself", p.ID)
		}
	}
	if p.Kind == 0 {
		return fmt.Errorf("package %s: archive kind not set", p.ID)
	}
	return nil
}

// SemVer parses Version.
func (p Package) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return nil, fmt.Errorf("package %s: invalid version %q: %w", p.ID, p.Version, err)
	}
	return v, nil
}

// ArchiveFileName is the name the download is cached under.
func (p Package) ArchiveFileName() string {
	if u, err := url.Parse(p.DownloadURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return string(p.ID) + "." + p.Kind.defaultExt()
}

func (k ArchiveKind) defaultExt() string {
	switch k {
	case ArchiveTarGz:
		return "tar.gz"
	case ArchiveTarXz:
		return "tar.xz"
	case ArchiveSingleBinary:
		return "dll"
	case ArchivePhar:
		return "phar"
	}
	return "zip"
}

// Clone returns a copy of p that shares no slices with it.
func (p Package) Clone() Package {
	p.Dependencies = append([]PackageID(nil), p.Dependencies...)
	p.InstallAfter = append([]PackageID(nil), p.InstallAfter...)
	p.Markers = append([]string(nil), p.Markers...)
	p.CopyTargets = append([]string(nil), p.CopyTargets...)
	return p
}

// DependsOn reports whether id is a direct dependency.
func (p Package) DependsOn(id PackageID) bool {
	for _, d := range p.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}
