package incremental

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/hashing"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/provenance"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// FullRebuildReason explains why the engine refused incremental mode.
type FullRebuildReason string

const (
	ReasonNone            FullRebuildReason = ""
	ReasonCacheDisabled   FullRebuildReason = "cache disabled"
	ReasonNoCache         FullRebuildReason = "no prior cache"
	ReasonConfigChanged   FullRebuildReason = "config changed"
	ReasonOutputMissing   FullRebuildReason = "output directory missing or empty"
	ReasonManifestMissing FullRebuildReason = "asset manifest missing"
	ReasonGeneratedGone   FullRebuildReason = "generated content missing"
)

// Engine evaluates the rebuild rules for one build.
type Engine struct {
	fs    afero.Fs
	site  *config.SiteData
	store *provenance.Store
	prev  *HashCache
	next  *HashCache

	Reason FullRebuildReason
}

// NewEngine loads the previous hash cache and prepares the next one.
func NewEngine(fs afero.Fs, site *config.SiteData, store *provenance.Store) *Engine {
	return &Engine{
		fs:    fs,
		site:  site,
		store: store,
		prev:  LoadHashCache(fs, site.CacheDir),
		next:  NewHashCache(site.ConfigHash),
	}
}

// NextCache is the hash cache to persist at the end of the build.
func (e *Engine) NextCache() *HashCache { return e.next }

// fullRebuildReason checks the whole-build rules in order.
func (e *Engine) fullRebuildReason(bc *models.BuildContext) FullRebuildReason {
	if !e.site.Config.Build.CacheEnabled {
		return ReasonCacheDisabled
	}
	if e.prev == nil {
		return ReasonNoCache
	}
	if e.prev.ConfigHash != e.site.ConfigHash {
		bc.ConfigChanged = true
		return ReasonConfigChanged
	}
	if !e.outputPopulated() {
		return ReasonOutputMissing
	}
	if ok, _ := afero.Exists(e.fs, filepath.Join(e.site.OutputDir, "asset-manifest.json")); !ok {
		return ReasonManifestMissing
	}
	if e.generatedContentGone() {
		return ReasonGeneratedGone
	}
	return ReasonNone
}

func (e *Engine) outputPopulated() bool {
	entries, err := afero.ReadDir(e.fs, e.site.OutputDir)
	return err == nil && len(entries) > 0
}

// generatedContentGone detects synthesized sources the previous cache
// tracked (entries under the generated dir) that no longer exist on
// disk. Synthesis has not run yet at planning time, so the check goes
// through the cache keys rather than the page map.
func (e *Engine) generatedContentGone() bool {
	rel, err := utils.SafeRel(e.site.RootPath, e.site.GeneratedDir())
	if err != nil {
		return false
	}
	prefix := utils.NormalizePath(rel) + "/"
	for path := range e.prev.Files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if ok, _ := afero.Exists(e.fs, e.site.ContentFilePath(path)); !ok {
			return true
		}
	}
	return false
}

// Plan fills the build context's work lists. In full mode every page and
// asset is scheduled; in incremental mode pages still flow through the
// render phase (freshness is decided per page against the provenance
// store) while assets reduce to those whose source hash moved.
func (e *Engine) Plan(bc *models.BuildContext) error {
	e.Reason = e.fullRebuildReason(bc)
	bc.IncrementalMode = e.Reason == ReasonNone

	// Hash every page source into the next cache; collect changes.
	for path, page := range bc.Pages {
		h, err := e.pageHash(bc, page)
		if err != nil {
			continue
		}
		e.next.Set(path, h)
		if !bc.IncrementalMode {
			continue
		}
		if old, ok := e.prev.Get(path); !ok || old != h {
			bc.ChangedPagePaths[path] = struct{}{}
			e.fanOut(bc, old)
		}
	}

	// Hash every asset source; schedule changed ones (all in full mode).
	for _, asset := range bc.Assets {
		h, err := hashing.HashFile(e.fs, asset.SourcePath)
		if err != nil {
			bc.AssetsToProcess = append(bc.AssetsToProcess, asset)
			continue
		}
		asset.SourceHash = h
		e.next.Set("asset:"+asset.LogicalPath, h)
		if !bc.IncrementalMode {
			bc.AssetsToProcess = append(bc.AssetsToProcess, asset)
			continue
		}
		if old, ok := e.prev.Get("asset:" + asset.LogicalPath); !ok || old != h {
			bc.AssetsToProcess = append(bc.AssetsToProcess, asset)
		}
	}

	// CSS entry points depend on their modules; a changed module must
	// reschedule every entry even though the entry file itself is stable.
	if bc.IncrementalMode {
		e.promoteCSSEntries(bc)
	}

	for path := range bc.ChangedPagePaths {
		if page, ok := bc.Pages[path]; ok {
			for _, tag := range page.Tags {
				bc.AffectedTags[tag] = struct{}{}
			}
			bc.AffectedSections[page.SectionPath] = struct{}{}
		}
	}

	bc.PagesToBuild = bc.PagePaths()
	return nil
}

// PlanSynthesized folds pages added after planning (synthesized section
// indexes and tag pages) into the next cache and recomputes the render
// work list so they reach the render phase.
func (e *Engine) PlanSynthesized(bc *models.BuildContext) {
	for path, page := range bc.Pages {
		if _, ok := e.next.Get(path); ok {
			continue
		}
		h, err := e.pageHash(bc, page)
		if err != nil {
			continue
		}
		e.next.Set(path, h)
	}
	bc.PagesToBuild = bc.PagePaths()
}

// RemovedPages lists page keys the previous cache tracked that are absent
// from this build, sorted. Callers drop their provenance and dependency
// state.
func (e *Engine) RemovedPages(bc *models.BuildContext) []string {
	if e.prev == nil {
		return nil
	}
	var out []string
	for path := range e.prev.Files {
		if strings.HasPrefix(path, "asset:") {
			continue
		}
		if _, ok := bc.Pages[path]; ok {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// pageHash hashes the page source, caching bytes for the render phase.
func (e *Engine) pageHash(bc *models.BuildContext, page *models.Page) (hashing.Hash, error) {
	if data, ok := bc.CachedContent(page.SourcePath); ok {
		return hashing.HashBytes(data), nil
	}
	if page.Virtual && len(page.RawContent) > 0 {
		bc.CacheContent(page.SourcePath, page.RawContent)
		return hashing.HashBytes(page.RawContent), nil
	}
	data, err := afero.ReadFile(e.fs, e.site.ContentFilePath(page.SourcePath))
	if err != nil {
		return "", err
	}
	bc.CacheContent(page.SourcePath, data)
	return hashing.HashBytes(data), nil
}

// fanOut unions every page whose last provenance referenced the old hash
// of a changed input into the changed set.
func (e *Engine) fanOut(bc *models.BuildContext, oldHash hashing.Hash) {
	if oldHash == "" {
		return
	}
	for pageID := range e.store.AffectedBy(oldHash) {
		bc.ChangedPagePaths[pageID] = struct{}{}
	}
}

// promoteCSSEntries reschedules every CSS entry point when any CSS
// module changed, since bundling inlines module content.
func (e *Engine) promoteCSSEntries(bc *models.BuildContext) {
	moduleChanged := false
	scheduled := make(map[string]bool, len(bc.AssetsToProcess))
	for _, a := range bc.AssetsToProcess {
		scheduled[a.LogicalPath] = true
		if a.IsCSSModule {
			moduleChanged = true
		}
	}
	if !moduleChanged {
		return
	}
	for _, a := range bc.Assets {
		if a.IsCSSEntry && !scheduled[a.LogicalPath] {
			bc.AssetsToProcess = append(bc.AssetsToProcess, a)
		}
	}
}
