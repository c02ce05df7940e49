package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/deps"
	"github.com/bengal-ssg/bengal/builder/generators"
	"github.com/bengal-ssg/bengal/builder/health"
	"github.com/bengal-ssg/bengal/builder/images"
	"github.com/bengal-ssg/bengal/builder/incremental"
	"github.com/bengal-ssg/bengal/builder/metrics"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/provenance"
	"github.com/bengal-ssg/bengal/builder/render"
	"github.com/bengal-ssg/bengal/builder/site"
	"github.com/bengal-ssg/bengal/builder/templates"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// Build executes the full phase pipeline. A cancelled context stops the
// build between phases and inside the parallel phases; cache save is
// still attempted on the way out.
func (b *Builder) Build(ctx context.Context) error {
	b.metrics = metrics.NewBuildMetrics()
	bc := models.NewBuildContext()

	lock, err := utils.AcquireBuildLock(b.site.CacheDir)
	if err != nil {
		return models.NewError(models.ErrCache, "",
			"another build is running on this site", "wait for it to finish or remove the lock file", err)
	}
	defer func() { _ = lock.Release() }()

	store := provenance.Open(b.fs, b.site.ProvenanceDir())
	engine := incremental.NewEngine(b.fs, b.site, store)

	depsStore, err := deps.Open(b.site.CacheDir)
	if err != nil {
		bc.Stats.RecordWarning("⚠️ asset dependency store unavailable: %v", err)
		depsStore = nil
	}
	defer func() {
		if depsStore != nil {
			_ = depsStore.Close()
		}
	}()

	buildErr := b.runPhases(ctx, bc, store, engine, depsStore)

	// Best-effort cache save even after a fatal phase, so the next build
	// starts from whatever progress this one made.
	if buildErr != nil {
		_ = store.Save()
		_ = engine.NextCache().Save(b.fs, b.site.CacheDir)
	}

	b.metrics.RecordEnd()
	b.metrics.CacheHits = bc.Stats.CacheHits
	b.metrics.CacheMisses = bc.Stats.CacheMisses
	b.metrics.PagesProcessed = bc.Stats.PagesRendered + bc.Stats.CacheHits
	b.metrics.FilesWritten = bc.Stats.FilesWritten
	b.metrics.IsIncremental = bc.IncrementalMode

	if buildErr == nil {
		b.logf("%s", b.metrics.String())
		if b.opts.Verbose {
			b.logf("%s", b.metrics.PhaseReport())
		}
	}
	return buildErr
}

func (b *Builder) runPhases(ctx context.Context, bc *models.BuildContext,
	store *provenance.Store, engine *incremental.Engine, depsStore *deps.Store) error {

	strict := b.site.Config.Build.StrictMode
	type phase struct {
		name  string
		fatal bool
		fn    func() error
	}

	var (
		tagIndex *site.TagIndex
		pipeline *assets.Pipeline
		menus    map[string][]templates.MenuItem
	)

	phases := []phase{
		{"init", true, func() error { return b.phaseInit() }},
		{"fonts", false, func() error { return b.phaseFonts(bc) }},
		{"discovery", true, func() error { return site.Discover(b.fs, b.site, bc) }},
		{"incremental-filter", true, func() error { return b.phaseFilter(bc, engine) }},
		{"section-finalization", strict, func() error { return site.FinalizeSections(b.fs, b.site, bc) }},
		{"taxonomies", true, func() error {
			tagIndex = site.NewTagIndex()
			tagIndex.Build(bc)
			if err := site.SynthesizeTagPages(b.fs, b.site, bc, tagIndex); err != nil {
				return err
			}
			site.AssignOutputPaths(b.site, bc)
			// synthesized pages join the work list and the next cache
			engine.PlanSynthesized(bc)
			return nil
		}},
		{"menus", true, func() error {
			menus = site.BuildMenus(b.site, bc)
			return nil
		}},
		{"related-posts", false, func() error {
			site.ComputeRelated(bc, tagIndex)
			return nil
		}},
		{"assets", true, func() error {
			var err error
			pipeline, err = b.phaseAssets(ctx, bc)
			return err
		}},
		{"render", strict, func() error { return b.phaseRender(ctx, bc, store, pipeline.Manifest(), menus) }},
		{"reconciliation", true, func() error { return b.phaseReconcile(bc) }},
		{"asset-dependencies", false, func() error {
			return b.phaseDeps(bc, engine, store, depsStore, pipeline.Manifest())
		}},
		{"social-cards", false, func() error { return b.phaseSocialCards(bc) }},
		{"postprocess", false, func() error { return b.phasePostprocess(ctx, bc) }},
		{"cache-save", true, func() error {
			if err := store.Save(); err != nil {
				return err
			}
			return engine.NextCache().Save(b.fs, b.site.CacheDir)
		}},
		{"health-check", strict, func() error { return b.phaseHealth(bc) }},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return models.NewError(models.ErrInterrupt, "", "build cancelled", "", err)
		}
		b.verbosef("▶️  %s", p.name)
		err := b.metrics.TimePhase(p.name, p.fn)
		if err == nil {
			continue
		}
		if p.fatal {
			return fmt.Errorf("phase %s failed: %w", p.name, err)
		}
		bc.Stats.RecordWarning("⚠️ phase %s: %v", p.name, err)
	}

	if strict && bc.Stats.ErrorCount() > 0 {
		return models.NewError(models.ErrRender, "",
			fmt.Sprintf("%d per-item errors in strict mode", bc.Stats.ErrorCount()),
			"fix the reported items or disable build.strict_mode", nil)
	}
	return nil
}

// phaseInit prepares the cache directory skeleton.
func (b *Builder) phaseInit() error {
	for _, dir := range []string{b.site.CacheDir, b.site.GeneratedDir(), b.site.ProvenanceDir(), b.site.ImageCacheDir()} {
		if err := b.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) phaseFonts(bc *models.BuildContext) error {
	warnings, err := generators.WriteFontCSS(b.fs, b.site)
	for _, w := range warnings {
		bc.Stats.RecordWarning("⚠️ %s", w)
	}
	return err
}

func (b *Builder) phaseFilter(bc *models.BuildContext, engine *incremental.Engine) error {
	if err := engine.Plan(bc); err != nil {
		return err
	}
	if b.opts.ForceFull {
		// hashes already feed the next cache; just disable reuse
		bc.IncrementalMode = false
		bc.AssetsToProcess = bc.Assets
		b.logf("🔨 full rebuild (forced)")
		return nil
	}
	if bc.IncrementalMode {
		b.logf("🔄 incremental build: %d changed pages, %d assets to process",
			len(bc.ChangedPagePaths), len(bc.AssetsToProcess))
		if len(bc.AffectedTags) > 0 || len(bc.AffectedSections) > 0 {
			b.verbosef("   🔖 %d tags, %d sections affected", len(bc.AffectedTags), len(bc.AffectedSections))
		}
	} else {
		b.logf("🔨 full rebuild (%s)", engine.Reason)
	}
	return nil
}

// phaseAssets runs the external toolchain hook (never fatal) and then
// the asset pipeline over the scheduled work set.
func (b *Builder) phaseAssets(ctx context.Context, bc *models.BuildContext) (*assets.Pipeline, error) {
	cfg := b.site.Config
	flags := assets.Flags{
		Minify:      cfg.Assets.Minify,
		Optimize:    cfg.CSS.Optimize,
		Fingerprint: cfg.Assets.Fingerprint,
		BundleJS:    cfg.Assets.BundleJS,
		Toolchain:   cfg.Assets.Pipeline,
	}

	toProcess := bc.AssetsToProcess
	if flags.Toolchain {
		extra, cleanup := assets.RunToolchain(b.fs, b.site.AssetsDir, bc.Stats)
		if cleanup != nil {
			defer cleanup()
		}
		bc.Assets = append(bc.Assets, extra...)
		toProcess = append(toProcess, extra...)
	}

	pipeline := assets.NewPipeline(b.fs, b.fs, b.site.AssetsDir, b.site.OutputDir, flags, bc.Stats)
	pipeline.JSOrder = cfg.Assets.JSOrder
	pipeline.JSExclude = cfg.Assets.JSExclude
	if flags.Optimize {
		pipeline.UsedClasses = b.collectUsedClasses()
	}

	// Incremental builds reprocess only changed assets; the rest keep
	// their manifest entries from last build.
	manifestPath := filepath.Join(b.site.OutputDir, "asset-manifest.json")
	if bc.IncrementalMode {
		pipeline.SeedManifest(assets.LoadManifest(b.fs, manifestPath))
	}

	if err := pipeline.Process(ctx, toProcess, b.workerCount()); err != nil {
		return pipeline, err
	}

	known := make(map[string]struct{}, len(bc.Assets)+1)
	for _, a := range bc.Assets {
		known[a.LogicalPath] = struct{}{}
	}
	if flags.BundleJS {
		// synthesized by the bundler, never present in bc.Assets
		known["js/bundle.js"] = struct{}{}
	}
	pipeline.Manifest().Prune(known)
	return pipeline, pipeline.WriteManifest()
}

// collectUsedClasses scans the previous output tree for class names so
// CSS tree-shaking has a reference manifest. A missing output tree
// yields nil, which disables shaking for this build.
func (b *Builder) collectUsedClasses() map[string]struct{} {
	used := make(map[string]struct{})
	found := false
	_ = afero.Walk(b.fs, b.site.OutputDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}
		f, err := b.fs.Open(p)
		if err != nil {
			return nil
		}
		doc, err := goquery.NewDocumentFromReader(f)
		_ = f.Close()
		if err != nil {
			return nil
		}
		found = true
		doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			classes, _ := s.Attr("class")
			for _, c := range strings.Fields(classes) {
				used[c] = struct{}{}
			}
		})
		return nil
	})
	if !found {
		return nil
	}
	return used
}

// phaseRender drives the rendering pipeline over pages_to_build.
func (b *Builder) phaseRender(ctx context.Context, bc *models.BuildContext,
	store *provenance.Store, manifest *assets.Manifest, menus map[string][]templates.MenuItem) error {

	chain, err := templates.ThemeChain(b.fs, b.site.ThemesDir, b.site.ThemeName,
		filepath.Join(b.site.RootPath, "templates"))
	if err != nil {
		return models.NewError(models.ErrConfig, "",
			"failed to resolve template directories", "check theme.name and the themes/ directory", err)
	}
	runtime := templates.NewRuntime(b.fs, chain, b.site.DataDir, b.site.Config.Site.BaseURL, manifest)
	runtime.ProcessImage = b.imageProcessor(bc)

	siteView := templates.NewSiteView(b.site.Config, func(u string) string {
		return templates.NormalizeURL(templates.ApplyBaseURL(b.site.Config.Site.BaseURL, u))
	})
	siteView.Menus = menus

	pipeline := render.NewPipeline(b.fs, runtime, store, b.site, siteView, b.buildID)
	pipeline.MinifyHTML = b.site.Config.Assets.Minify

	renderOne := func(pagePath string) {
		page, ok := bc.Pages[pagePath]
		if !ok {
			return
		}
		hit, err := pipeline.RenderPage(bc, page)
		if err != nil {
			if be, ok := err.(*models.BuildError); ok {
				bc.Stats.RecordError(be)
			} else {
				bc.Stats.RecordError(models.NewError(models.ErrRender, pagePath, "render failed", "", err))
			}
			return
		}
		if hit {
			b.verbosef("   ⏭️  %s (cache hit)", pagePath)
		} else {
			b.verbosef("   ✏️  %s", pagePath)
		}
	}

	workers := b.workerCount()
	if workers == 1 || len(bc.PagesToBuild) <= 1 {
		for _, p := range bc.PagesToBuild {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			renderOne(p)
		}
	} else {
		pool := utils.NewWorkerPool(ctx, workers, renderOne)
		pool.Start()
		for _, p := range bc.PagesToBuild {
			pool.Submit(p)
		}
		pool.Stop()
	}
	return ctx.Err()
}

// imageProcessor bridges the image template func to the processed-image
// cache: run the operation, publish the result under output/images/,
// and hand back its permalink.
func (b *Builder) imageProcessor(bc *models.BuildContext) func(src, op, spec string) (string, error) {
	cache := images.NewCache(b.fs, b.site.ImageCacheDir(), func(format string, args ...interface{}) {
		bc.Stats.RecordWarning(format, args...)
	})
	return func(src, op, spec string) (string, error) {
		abs := filepath.Join(b.site.AssetsDir, filepath.FromSlash(strings.TrimPrefix(src, "/")))
		processed, err := cache.Process(abs, images.Op(op), spec)
		if err != nil {
			return "", err
		}
		data, err := afero.ReadFile(b.fs, processed.Path)
		if err != nil {
			return "", err
		}
		outPath := filepath.Join(b.site.OutputDir, filepath.FromSlash(strings.TrimPrefix(processed.RelPermalink, "/")))
		if err := atomicio.WriteBytes(b.fs, outPath, data); err != nil {
			return "", err
		}
		return processed.RelPermalink, nil
	}
}

// phaseReconcile loads existing output HTML for cache-hit pages so the
// postprocess phases see a consistent page set.
func (b *Builder) phaseReconcile(bc *models.BuildContext) error {
	for _, page := range bc.Pages {
		if page.RenderedHTML != "" || page.OutputPath == "" {
			continue
		}
		data, err := afero.ReadFile(b.fs, page.OutputPath)
		if err != nil {
			continue
		}
		page.RenderedHTML = string(data)
		bc.AccumulatePageAssets(page.SourcePath, render.ExtractAssetRefs(page.RenderedHTML))
	}
	return nil
}

// phaseDeps reconciles the persistent stores with this build's page set:
// rows and records for deleted pages are dropped, surviving pages get
// fresh asset sets, then the unreferenced-asset report runs in verbose
// mode.
func (b *Builder) phaseDeps(bc *models.BuildContext, engine *incremental.Engine,
	store *provenance.Store, depsStore *deps.Store, manifest *assets.Manifest) error {

	removed := engine.RemovedPages(bc)
	for _, page := range removed {
		store.Remove(page)
	}
	if depsStore == nil {
		return nil
	}
	if len(removed) > 0 {
		if err := depsStore.RemovePages(removed); err != nil {
			return err
		}
	}
	if err := depsStore.PutPageAssets(bc.PageAssets(), b.buildID); err != nil {
		return err
	}
	if b.opts.Verbose {
		b.reportUnreferencedAssets(depsStore, manifest)
	}
	return nil
}

// reportUnreferencedAssets lists manifest assets no recorded page links
// to. Informational only: CSS pulled in via @import and JS loaded by
// other scripts never appear in page HTML.
func (b *Builder) reportUnreferencedAssets(depsStore *deps.Store, manifest *assets.Manifest) {
	used, err := depsStore.UsedAssets()
	if err != nil {
		return
	}
	normalized := make(map[string]struct{}, len(used))
	for u := range used {
		u = strings.TrimPrefix(u, b.site.Config.Site.BaseURL)
		normalized[strings.TrimPrefix(u, "/")] = struct{}{}
	}
	for _, logical := range manifest.LogicalPaths() {
		entry, ok := manifest.Get(logical)
		if !ok {
			continue
		}
		if _, ok := normalized[entry.OutputPath]; !ok {
			b.verbosef("   🧹 %s is not referenced by any page", logical)
		}
	}
}

// phaseSocialCards renders preview images for content pages. The phase
// is skipped entirely unless social_cards.enabled is set; a bad font
// config surfaces as one warning, not a failed build.
func (b *Builder) phaseSocialCards(bc *models.BuildContext) error {
	if !b.site.Config.SocialCards.Enabled {
		return nil
	}
	cards, err := generators.NewCards(b.fs, b.site)
	if err != nil {
		return err
	}
	count := 0
	for _, pagePath := range bc.PagesToBuild {
		page := bc.Pages[pagePath]
		if page == nil || page.Virtual || page.IsIndex() {
			continue
		}
		if _, rendered := bc.OutputHash(pagePath); !rendered {
			if ok, _ := afero.Exists(b.fs, cards.Path(page)); ok {
				continue
			}
		}
		if err := cards.Generate(page); err != nil {
			bc.Stats.RecordWarning("⚠️ social card for %s: %v", pagePath, err)
			continue
		}
		count++
	}
	if count > 0 {
		b.verbosef("   🖼️  %d social cards", count)
	}
	return nil
}

// phasePostprocess writes the sitemap, feed, and versioning artifacts.
// The individual outputs are independent and run in parallel.
func (b *Builder) phasePostprocess(ctx context.Context, bc *models.BuildContext) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return generators.WriteSitemap(b.fs, b.site, bc) })
	g.Go(func() error { return generators.WriteRSS(b.fs, b.site, bc, b.metrics.StartTime) })
	g.Go(func() error { return generators.WriteVersionsJSON(b.fs, b.site) })
	if err := g.Wait(); err != nil {
		return err
	}
	return generators.WriteRootRedirect(b.fs, b.site)
}

func (b *Builder) phaseHealth(bc *models.BuildContext) error {
	results := health.Run(b.fs, b.site, bc)
	if len(results) == 0 && b.site.Config.HealthCheck.Enabled {
		b.verbosef("%s", health.Format(results))
		return nil
	}
	if len(results) > 0 {
		b.logf("%s", health.Format(results))
	}
	if health.HasErrors(results) {
		return models.NewError(models.ErrRender, "",
			"health check reported errors", "run with --verbose for details", nil)
	}
	return nil
}
