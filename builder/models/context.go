package models

import (
	"sync"

	"github.com/bengal-ssg/bengal/builder/hashing"
)

// BuildContext is the mutable, build-scoped state threaded through the
// phases. The maps touched by parallel phases are guarded here; everything
// else is orchestrator-thread only.
type BuildContext struct {
	Pages    map[string]*Page    // SourcePath -> page
	Sections map[string]*Section // section path -> section ("" = root)

	PagesToBuild    []string
	Assets          []*Asset
	AssetsToProcess []*Asset

	AffectedTags     map[string]struct{}
	AffectedSections map[string]struct{}
	ChangedPagePaths map[string]struct{}
	ConfigChanged    bool
	IncrementalMode  bool

	Stats *BuildStats

	mu sync.RWMutex
	// accumulated (page -> asset URLs) from rendered HTML
	pageAssets map[string][]string
	// thread-safe content cache: source path -> raw bytes
	contentCache map[string][]byte
	// per-page output hashes from this build
	outputHashes map[string]hashing.Hash
}

// NewBuildContext creates an empty context.
func NewBuildContext() *BuildContext {
	return &BuildContext{
		Pages:            make(map[string]*Page),
		Sections:         make(map[string]*Section),
		AffectedTags:     make(map[string]struct{}),
		AffectedSections: make(map[string]struct{}),
		ChangedPagePaths: make(map[string]struct{}),
		Stats:            NewBuildStats(),
		pageAssets:       make(map[string][]string),
		contentCache:     make(map[string][]byte),
		outputHashes:     make(map[string]hashing.Hash),
	}
}

// AccumulatePageAssets appends the asset URLs referenced by a page.
func (c *BuildContext) AccumulatePageAssets(pagePath string, urls []string) {
	if len(urls) == 0 {
		return
	}
	c.mu.Lock()
	c.pageAssets[pagePath] = append(c.pageAssets[pagePath], urls...)
	c.mu.Unlock()
}

// PageAssets returns a copy of the accumulated page->assets map.
func (c *BuildContext) PageAssets() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.pageAssets))
	for k, v := range c.pageAssets {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// CacheContent stores raw file bytes for reuse across phases.
func (c *BuildContext) CacheContent(path string, data []byte) {
	c.mu.Lock()
	c.contentCache[path] = data
	c.mu.Unlock()
}

// CachedContent returns previously cached bytes, if any.
func (c *BuildContext) CachedContent(path string) ([]byte, bool) {
	c.mu.RLock()
	data, ok := c.contentCache[path]
	c.mu.RUnlock()
	return data, ok
}

// RecordOutputHash stores the output hash of a rendered page.
func (c *BuildContext) RecordOutputHash(pagePath string, h hashing.Hash) {
	c.mu.Lock()
	c.outputHashes[pagePath] = h
	c.mu.Unlock()
}

// OutputHash returns the output hash recorded for a page this build.
func (c *BuildContext) OutputHash(pagePath string) (hashing.Hash, bool) {
	c.mu.RLock()
	h, ok := c.outputHashes[pagePath]
	c.mu.RUnlock()
	return h, ok
}

// SortedPagePaths returns all page keys; callers sort as needed.
func (c *BuildContext) PagePaths() []string {
	out := make([]string, 0, len(c.Pages))
	for k := range c.Pages {
		out = append(out, k)
	}
	return out
}
