// Package incremental decides what to rebuild. It keeps the per-file
// hash cache from the previous build and applies the rebuild rules over
// pages and assets, with subvenance fan-out for shared inputs.
package incremental

import (
	"encoding/json"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/hashing"
)

// CacheVersion invalidates the hash cache when the format changes.
const CacheVersion = 2

// CacheFileName is the zstd-compressed hash cache under the cache dir.
const CacheFileName = "cache.json.zst"

// HashCache maps source paths to the content hashes seen last build.
type HashCache struct {
	Version    int                     `json:"version"`
	ConfigHash hashing.Hash            `json:"config_hash"`
	Files      map[string]hashing.Hash `json:"files"`
}

// NewHashCache returns an empty cache for the given config hash.
func NewHashCache(configHash hashing.Hash) *HashCache {
	return &HashCache{
		Version:    CacheVersion,
		ConfigHash: configHash,
		Files:      make(map[string]hashing.Hash),
	}
}

// Get returns the hash recorded for path last build.
func (c *HashCache) Get(path string) (hashing.Hash, bool) {
	h, ok := c.Files[path]
	return h, ok
}

// Set records the current hash for path.
func (c *HashCache) Set(path string, h hashing.Hash) {
	c.Files[path] = h
}

// LoadHashCache reads the previous build's cache. Missing or corrupt
// files return nil so the caller falls back to a full rebuild.
func LoadHashCache(fs afero.Fs, cacheDir string) *HashCache {
	data, err := afero.ReadFile(fs, filepath.Join(cacheDir, CacheFileName))
	if err != nil {
		return nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil
	}
	var cache HashCache
	if err := json.Unmarshal(raw, &cache); err != nil {
		return nil
	}
	if cache.Version != CacheVersion {
		return nil
	}
	if cache.Files == nil {
		cache.Files = make(map[string]hashing.Hash)
	}
	return &cache
}

// Save writes the cache compressed and atomically.
func (c *HashCache) Save(fs afero.Fs, cacheDir string) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return err
	}
	return atomicio.WriteBytes(fs, filepath.Join(cacheDir, CacheFileName), compressed)
}
