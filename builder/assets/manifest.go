// Package assets implements the asset pipeline: CSS bundling with @layer
// preservation, minification, fingerprinting, the JS bundle, the external
// toolchain hook, and the asset manifest.
package assets

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
)

// ManifestVersion is bumped when the manifest schema changes.
const ManifestVersion = 1

// ManifestEntry maps a logical asset path to its final output path.
type ManifestEntry struct {
	OutputPath  string `json:"output_path"`
	Fingerprint string `json:"fingerprint,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Manifest is the logical-path -> output-path map persisted as
// asset-manifest.json. Entries are sorted by logical path on write so the
// output is deterministic.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]ManifestEntry
}

type manifestFile struct {
	Version     int                      `json:"version"`
	GeneratedAt string                   `json:"generated_at"`
	Assets      map[string]ManifestEntry `json:"assets"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]ManifestEntry)}
}

// SetEntry inserts or replaces the entry for logicalPath.
func (m *Manifest) SetEntry(logicalPath, outputPath, fingerprint string, size int64) {
	m.mu.Lock()
	m.entries[logicalPath] = ManifestEntry{
		OutputPath:  outputPath,
		Fingerprint: fingerprint,
		SizeBytes:   size,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	m.mu.Unlock()
}

// Get returns the entry for logicalPath.
func (m *Manifest) Get(logicalPath string) (ManifestEntry, bool) {
	m.mu.RLock()
	e, ok := m.entries[logicalPath]
	m.mu.RUnlock()
	return e, ok
}

// Merge copies entries from prev for logical paths not already present.
// Incremental builds seed the manifest this way so unprocessed assets
// keep their mappings.
func (m *Manifest) Merge(prev *Manifest) {
	if prev == nil {
		return
	}
	prev.mu.RLock()
	defer prev.mu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range prev.entries {
		if _, ok := m.entries[k]; !ok {
			m.entries[k] = v
		}
	}
}

// Prune drops entries whose logical path is not in known, so deleted
// assets fall out of the manifest.
func (m *Manifest) Prune(known map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if _, ok := known[k]; !ok {
			delete(m.entries, k)
		}
	}
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// LogicalPaths returns all keys in sorted order.
func (m *Manifest) LogicalPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Write atomically writes the manifest JSON: version 1, two-space indent,
// assets sorted by key, trailing newline.
func (m *Manifest) Write(fs afero.Fs, path string) error {
	m.mu.RLock()
	assets := make(map[string]ManifestEntry, len(m.entries))
	for k, v := range m.entries {
		assets[k] = v
	}
	m.mu.RUnlock()

	file := manifestFile{
		Version:     ManifestVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Assets:      assets,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return atomicio.WriteBytes(fs, path, append(data, '\n'))
}

// LoadManifest reads a manifest from disk. Missing or corrupt files
// return nil so callers fall back to a full rebuild.
func LoadManifest(fs afero.Fs, path string) *Manifest {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil
	}
	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil
	}
	m := NewManifest()
	for k, v := range file.Assets {
		m.entries[k] = v
	}
	return m
}
