package assets

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/hashing"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// Flags are the processing switches from the [assets] and [css] config.
type Flags struct {
	Minify      bool
	Optimize    bool
	Fingerprint bool
	BundleJS    bool
	Toolchain   bool
}

// Pipeline processes assets into the output tree and fills the manifest.
// Workers run Process items in parallel; the manifest write happens once,
// on the orchestrator thread, via WriteManifest.
type Pipeline struct {
	srcFs    afero.Fs
	destFs   afero.Fs
	assetsDir string // absolute source assets root
	outputDir string // absolute output root
	flags    Flags
	manifest *Manifest
	stats    *models.BuildStats

	// UsedClasses drives CSS tree-shaking when Optimize is set; nil
	// disables shaking (no reference manifest yet).
	UsedClasses map[string]struct{}

	JSOrder   []string
	JSExclude []string
}

// NewPipeline wires a pipeline over the source and output filesystems.
func NewPipeline(srcFs, destFs afero.Fs, assetsDir, outputDir string, flags Flags, stats *models.BuildStats) *Pipeline {
	return &Pipeline{
		srcFs:     srcFs,
		destFs:    destFs,
		assetsDir: assetsDir,
		outputDir: outputDir,
		flags:     flags,
		manifest:  NewManifest(),
		stats:     stats,
	}
}

// Manifest exposes the manifest being populated.
func (p *Pipeline) Manifest() *Manifest { return p.manifest }

// SeedManifest preloads entries from the previous build's manifest so an
// incremental run keeps the mappings of assets it does not reprocess.
// Processed assets overwrite their seeded entries.
func (p *Pipeline) SeedManifest(prev *Manifest) {
	p.manifest.Merge(prev)
}

// Process runs the pipeline over the given work set. CSS modules are not
// emitted directly; they reach the output only through an entry point's
// bundle. JS modules named in the bundle order are likewise withheld from
// direct copy when bundling is on.
func (p *Pipeline) Process(ctx context.Context, toProcess []*models.Asset, workers int) error {
	var entries, others []*models.Asset
	var jsModules []*models.Asset
	bundledJS := p.bundledJSSet()

	for _, a := range toProcess {
		switch {
		case a.IsCSSEntry:
			entries = append(entries, a)
		case a.IsCSSModule:
			// emitted via its entry point only
		case a.IsJSModule && p.flags.BundleJS && bundledJS[a.LogicalPath]:
			jsModules = append(jsModules, a)
		default:
			others = append(others, a)
		}
	}

	work := make([]*models.Asset, 0, len(entries)+len(others))
	work = append(work, entries...)
	work = append(work, others...)

	if workers <= 1 || len(work) <= 1 {
		for _, a := range work {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.processOne(a)
		}
	} else {
		pool := utils.NewWorkerPool(ctx, workers, p.processOne)
		pool.Start()
		for _, a := range work {
			pool.Submit(a)
		}
		pool.Stop()
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if p.flags.BundleJS && len(jsModules) > 0 {
		if err := p.bundleJS(); err != nil {
			p.stats.RecordError(models.NewError(models.ErrAsset, "js/bundle.js",
				"JS bundling failed", "check assets.js_order paths", err))
		}
	}
	return ctx.Err()
}

// processOne handles a single asset end to end. Worker errors are
// recorded per item; the phase continues.
func (p *Pipeline) processOne(a *models.Asset) {
	if err := p.emit(a); err != nil {
		p.stats.RecordError(models.NewError(models.ErrAsset, a.LogicalPath,
			"asset processing failed", "check the asset source file", err))
	}
}

func (p *Pipeline) emit(a *models.Asset) error {
	var content []byte

	switch {
	case a.IsCSSEntry:
		bundler := NewBundler(p.srcFs)
		bundled, err := bundler.Bundle(a.SourcePath)
		if err != nil {
			return fmt.Errorf("failed to bundle %s: %w", a.LogicalPath, err)
		}
		for _, missing := range bundler.Missing {
			p.stats.RecordWarning("⚠️ unresolved @import %q in %s (kept verbatim)", missing, a.LogicalPath)
		}
		// optimize -> bundle -> minify -> fingerprint
		if p.flags.Optimize && p.UsedClasses != nil {
			bundled = TreeShake(bundled, p.UsedClasses)
		}
		content = []byte(bundled)
		if p.flags.Minify {
			out, ok := MinifyContent("text/css", content)
			if !ok {
				p.stats.RecordWarning("⚠️ CSS minify failed for %s, shipping unminified", a.LogicalPath)
			}
			content = out
		}
	case a.Type == models.AssetJavaScript:
		data, err := afero.ReadFile(p.srcFs, a.SourcePath)
		if err != nil {
			return err
		}
		content = data
		if p.flags.Minify {
			out, ok := MinifyContent("text/javascript", content)
			if !ok {
				p.stats.RecordWarning("⚠️ JS minify failed for %s, shipping unminified", a.LogicalPath)
			}
			content = out
		}
	default:
		data, err := afero.ReadFile(p.srcFs, a.SourcePath)
		if err != nil {
			return err
		}
		content = data
	}

	return p.write(a.LogicalPath, content)
}

// write emits final bytes under output_dir/assets/, fingerprinting when
// enabled, and records the manifest entry.
func (p *Pipeline) write(logicalPath string, content []byte) error {
	outRel := logicalPath
	fingerprint := ""
	if p.flags.Fingerprint {
		fingerprint = hashing.Fingerprint(content)
		outRel = fingerprintedName(logicalPath, fingerprint)
		p.removeStaleSiblings(logicalPath, outRel)
	}

	outPath := filepath.Join(p.outputDir, "assets", filepath.FromSlash(outRel))
	if err := atomicio.WriteBytes(p.destFs, outPath, content); err != nil {
		return err
	}
	p.stats.RecordAssetWritten()
	p.manifest.SetEntry(logicalPath, path.Join("assets", outRel), fingerprint, int64(len(content)))
	return nil
}

// fingerprintedName turns css/style.css + abcd1234 into
// css/style.abcd1234.css.
func fingerprintedName(logicalPath, fingerprint string) string {
	dir := path.Dir(logicalPath)
	base := path.Base(logicalPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := stem + "." + fingerprint + ext
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

// removeStaleSiblings deletes earlier fingerprinted outputs for the same
// stem and extension in the same output directory.
func (p *Pipeline) removeStaleSiblings(logicalPath, keepRel string) {
	base := path.Base(logicalPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	dir := filepath.Join(p.outputDir, "assets", filepath.FromSlash(path.Dir(logicalPath)))

	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(stem) + `\.[0-9a-f]{8}` + regexp.QuoteMeta(ext) + "$")
	entries, err := afero.ReadDir(p.destFs, dir)
	if err != nil {
		return
	}
	keep := path.Base(keepRel)
	for _, e := range entries {
		if e.IsDir() || e.Name() == keep {
			continue
		}
		if pattern.MatchString(e.Name()) {
			_ = p.destFs.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// WriteManifest writes asset-manifest.json at the output root. Called
// once, after all workers have drained.
func (p *Pipeline) WriteManifest() error {
	return p.manifest.Write(p.destFs, filepath.Join(p.outputDir, "asset-manifest.json"))
}
