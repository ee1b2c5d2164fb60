package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"

	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

//go:embed schema/manifest.schema.json
var manifestSchemaJSON string

const manifestSchemaURL = "manifest.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(manifestSchemaURL, manifestSchemaJSON)
})

// ManifestEntry is one element of the remote or local manifest. It carries
// only the volatile fields; everything else comes from static metadata.
type ManifestEntry struct {
	PackageID    string `json:"packageId"`
	Name         string `json:"name,omitempty"`
	Version      string `json:"version"`
	DownloadURL  string `json:"downloadUrl"`
	Checksum     string `json:"checksum,omitempty"`
	ChecksumURL  string `json:"checksumUrl,omitempty"`
	SignatureURL string `json:"signatureUrl,omitempty"`
	ArchiveKind  string `json:"archiveKind,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
}

// ParseManifest decodes a manifest document. YAML is accepted as well as
// JSON. The document is validated against the embedded schema first.
func ParseManifest(data []byte) ([]ManifestEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest is empty")
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest does not match schema: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(jsonData, &entries); err != nil {
		return nil, fmt.Errorf("decoding manifest entries: %w", err)
	}
	return entries, nil
}

// Merge combines a manifest entry with the static metadata of its package.
func Merge(entry ManifestEntry) (Package, error) {
	id, err := ParsePackageID(entry.PackageID)
	if err != nil {
		return Package{}, err
	}
	p, _ := Static(id)

	if entry.Name != "" {
		p.Name = entry.Name
	}
	p.Version = entry.Version
	p.DownloadURL = entry.DownloadURL
	p.Checksum = strings.ToLower(entry.Checksum)
	p.ChecksumURL = entry.ChecksumURL
	p.SignatureURL = entry.SignatureURL
	if entry.SizeBytes > 0 {
		p.EstimatedSizeBytes = entry.SizeBytes
	}

	if entry.ArchiveKind != "" {
		if p.Kind != ArchiveZip && p.Kind != ArchiveTarGz && p.Kind != ArchiveTarXz {
			return Package{}, fmt.Errorf("package %s: archive kind %s cannot be overridden", id, p.Kind)
		}
		switch entry.ArchiveKind {
		case "zip":
			p.Kind = ArchiveZip
		case "tar.gz":
			p.Kind = ArchiveTarGz
		case "tar.xz":
			p.Kind = ArchiveTarXz
		}
	}

	if (p.Kind == ArchiveSingleBinary || p.Kind == ArchivePhar) && len(p.Markers) == 0 {
		p.Markers = []string{p.ArchiveFileName()}
	}

	if err := p.Validate(); err != nil {
		return Package{}, err
	}
	return p, nil
}

// BuildCatalog merges every entry and returns the packages in catalog order.
// Unknown package ids are skipped so that newer manifests keep working with
// older installers; duplicates are an error.
func BuildCatalog(entries []ManifestEntry) ([]Package, error) {
	log := logger.Logger()

	byID := make(map[PackageID]Package, len(entries))
	for _, e := range entries {
		if _, err := ParsePackageID(e.PackageID); err != nil {
			log.Warnf("skipping manifest entry: %v", err)
			continue
		}
		p, err := Merge(e)
		if err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("package %s listed more than once", p.ID)
		}
		byID[p.ID] = p
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("manifest lists no known packages")
	}

	out := make([]Package, 0, len(byID))
	for _, id := range AllPackageIDs() {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
