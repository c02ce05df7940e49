// Package deps persists the page-to-asset dependency map in a bolt
// database under the cache dir. The map feeds CSS tree-shaking and lets
// a future build answer "which pages referenced this asset".
package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketPageAssets = "page_assets"
	bucketMeta       = "meta"

	keySchemaVersion = "schema_version"
	keyLastBuild     = "last_build"

	// SchemaVersion invalidates the database when the encoding changes.
	SchemaVersion = 1
)

// Store wraps the bolt database holding asset dependencies.
type Store struct {
	db *bolt.DB
}

// Open opens or creates deps.db under cacheDir.
func Open(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(cacheDir, "deps.db"), 0644, &bolt.Options{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open deps database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketPageAssets, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutPageAssets records the asset URLs referenced by pages in one
// transaction. Absent pages keep their previous entries.
func (s *Store) PutPageAssets(pageAssets map[string][]string, buildID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketPageAssets))
		for page, assets := range pageAssets {
			deduped := dedupe(assets)
			data, err := msgpack.Marshal(deduped)
			if err != nil {
				return fmt.Errorf("failed to encode assets for %s: %w", page, err)
			}
			if err := bucket.Put([]byte(page), data); err != nil {
				return err
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if err := meta.Put([]byte(keySchemaVersion), []byte{SchemaVersion}); err != nil {
			return err
		}
		return meta.Put([]byte(keyLastBuild), []byte(buildID))
	})
}

// PageAssets returns the recorded asset URLs for one page.
func (s *Store) PageAssets(page string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketPageAssets)).Get([]byte(page))
		if data == nil {
			return nil
		}
		return msgpack.Unmarshal(data, &out)
	})
	return out, err
}

// UsedAssets unions the assets of every recorded page. The asset
// pipeline's tree-shaking pass consumes this set.
func (s *Store) UsedAssets() (map[string]struct{}, error) {
	used := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketPageAssets)).ForEach(func(_, v []byte) error {
			var assets []string
			if err := msgpack.Unmarshal(v, &assets); err != nil {
				return nil // tolerate one corrupt row
			}
			for _, a := range assets {
				used[a] = struct{}{}
			}
			return nil
		})
	})
	return used, err
}

// RemovePages drops entries for deleted pages.
func (s *Store) RemovePages(pages []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketPageAssets))
		for _, page := range pages {
			if err := bucket.Delete([]byte(page)); err != nil {
				return err
			}
		}
		return nil
	})
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
