package incremental

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/hashing"
)

func TestHashCacheRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/site/.bengal"

	cache := NewHashCache(hashing.HashString("config"))
	cache.Set("content/a.md", hashing.HashString("a"))
	cache.Set("asset:css/style.css", hashing.HashString("css"))
	if err := cache.Save(fs, dir); err != nil {
		t.Fatal(err)
	}

	loaded := LoadHashCache(fs, dir)
	if loaded == nil {
		t.Fatal("cache did not load back")
	}
	if loaded.ConfigHash != cache.ConfigHash {
		t.Error("config hash did not survive the round trip")
	}
	if h, ok := loaded.Get("content/a.md"); !ok || h != hashing.HashString("a") {
		t.Errorf("page hash = %q, %v", h, ok)
	}
	if _, ok := loaded.Get("asset:css/style.css"); !ok {
		t.Error("asset hash missing after reload")
	}
}

func TestLoadHashCacheMissing(t *testing.T) {
	if LoadHashCache(afero.NewMemMapFs(), "/nope") != nil {
		t.Error("missing cache should load as nil")
	}
}

func TestLoadHashCacheCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join("/c", CacheFileName)
	if err := afero.WriteFile(fs, path, []byte("not zstd at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if LoadHashCache(fs, "/c") != nil {
		t.Error("corrupt cache should load as nil")
	}
}

func TestLoadHashCacheVersionMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache := NewHashCache("h")
	cache.Version = CacheVersion - 1
	if err := cache.Save(fs, "/c"); err != nil {
		t.Fatal(err)
	}
	if LoadHashCache(fs, "/c") != nil {
		t.Error("version mismatch should load as nil")
	}
}
