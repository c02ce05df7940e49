package render

import (
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/hashing"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/provenance"
	"github.com/bengal-ssg/bengal/builder/templates"
)

// Pipeline renders pages with dependency capture. One instance serves
// all render workers; per-page state lives in the collector created for
// each render.
type Pipeline struct {
	fs       afero.Fs
	runtime  templates.Engine
	store    *provenance.Store
	site     *config.SiteData
	siteView templates.SiteView
	buildID  string

	// MinifyHTML compresses rendered pages before hashing and writing.
	MinifyHTML bool
}

// NewPipeline wires the rendering pipeline.
func NewPipeline(fs afero.Fs, runtime templates.Engine, store *provenance.Store, site *config.SiteData, siteView templates.SiteView, buildID string) *Pipeline {
	return &Pipeline{
		fs:       fs,
		runtime:  runtime,
		store:    store,
		site:     site,
		siteView: siteView,
		buildID:  buildID,
	}
}

// templateName resolves the template for a page: explicit frontmatter
// override, then section-kind index templates, then page.html.
func (p *Pipeline) templateName(page *models.Page, section *models.Section) string {
	if page.Template != "" {
		return page.Template
	}
	if page.IsIndex() || page.Virtual {
		kind := models.KindList
		if section != nil {
			kind = section.Kind
		}
		switch kind {
		case models.KindArchive:
			return "archive.html"
		case models.KindAPIReference:
			return "api-reference.html"
		case models.KindCLIReference:
			return "cli-reference.html"
		case models.KindTutorial:
			return "tutorial.html"
		default:
			return "section.html"
		}
	}
	return "page.html"
}

// Probe captures the statically-knowable inputs of a page before any
// rendering happens: source bytes, frontmatter, config, owning section
// metadata, and the resolved top-level template.
func (p *Pipeline) Probe(bc *models.BuildContext, page *models.Page) (*provenance.Provenance, error) {
	prov := &provenance.Provenance{}

	content, ok := bc.CachedContent(page.SourcePath)
	if !ok {
		data, err := afero.ReadFile(p.fs, p.site.ContentFilePath(page.SourcePath))
		if err != nil {
			if !page.Virtual {
				return nil, fmt.Errorf("failed to read %s: %w", page.SourcePath, err)
			}
			data = page.RawContent
		}
		content = data
		bc.CacheContent(page.SourcePath, content)
	}
	prov.Add(provenance.InputRecord{
		Type: provenance.InputContent,
		Path: page.SourcePath,
		Hash: hashing.HashBytes(content),
	})
	prov.Add(provenance.InputRecord{
		Type: provenance.InputMetadata,
		Path: page.SourcePath,
		Hash: hashing.HashMapping(page.RawMeta),
	})
	prov.Add(provenance.InputRecord{
		Type: provenance.InputConfig,
		Path: path.Base(p.site.Config.ConfigPath),
		Hash: p.site.ConfigHash,
	})

	section := bc.Sections[page.SectionPath]
	if section != nil && len(section.Metadata) > 0 {
		prov.Add(provenance.InputRecord{
			Type: provenance.InputSection,
			Path: section.Path,
			Hash: hashing.HashMapping(section.Metadata),
		})
	}

	// Index and virtual pages render their section's listing, so member
	// additions, removals, retitles, and redates must break freshness.
	if section != nil && (page.IsIndex() || page.Virtual) {
		prov.Add(provenance.InputRecord{
			Type: provenance.InputSection,
			Path: section.Path + "#listing",
			Hash: listingHash(bc, section),
		})
	}

	tmplName := p.templateName(page, section)
	if tmplPath, ok := p.runtime.Lookup(tmplName); ok {
		if h, err := hashing.HashFile(p.fs, tmplPath); err == nil {
			prov.Add(provenance.InputRecord{
				Type: provenance.InputTemplate,
				Path: tmplPath,
				Hash: h,
			})
		}
	}

	// Re-hash the dynamic inputs the previous render recorded (partials,
	// data files, extra templates) so a stale one breaks freshness.
	if rec := p.store.Get(page.SourcePath); rec != nil {
		for _, in := range rec.Inputs {
			switch in.Type {
			case provenance.InputTemplate, provenance.InputPartial, provenance.InputData:
				if hasInputPath(prov, in.Type, in.Path) {
					continue
				}
				h, err := hashing.HashFile(p.fs, in.Path)
				if err != nil {
					h = "gone"
				}
				prov.Add(provenance.InputRecord{Type: in.Type, Path: in.Path, Hash: h})
			}
		}
	}
	return prov, nil
}

// listingHash digests the identity of a section's member listing: source
// path, title, and date per member, in listing order.
func listingHash(bc *models.BuildContext, section *models.Section) hashing.Hash {
	var b strings.Builder
	for _, pagePath := range section.Pages {
		child, ok := bc.Pages[pagePath]
		if !ok || child.IsIndex() {
			continue
		}
		b.WriteString(pagePath)
		b.WriteByte('\n')
		b.WriteString(child.Title)
		b.WriteByte('\n')
		b.WriteString(child.Date.UTC().Format(time.RFC3339))
		b.WriteByte('\n')
	}
	return hashing.HashString(b.String())
}

func hasInputPath(p *provenance.Provenance, t provenance.InputType, path string) bool {
	for _, in := range p.Inputs {
		if in.Type == t && in.Path == path {
			return true
		}
	}
	return false
}

// RenderPage runs the full per-page contract. The returned bool reports
// whether the page was a cache hit (output untouched, render skipped).
func (p *Pipeline) RenderPage(bc *models.BuildContext, page *models.Page) (bool, error) {
	probe, err := p.Probe(bc, page)
	if err != nil {
		return false, models.NewError(models.ErrRender, page.SourcePath,
			"failed to probe page inputs", "check that the source file is readable", err)
	}

	if bc.IncrementalMode && p.store.IsFresh(page.SourcePath, probe) {
		bc.Stats.RecordHit()
		return true, nil
	}
	bc.Stats.RecordMiss()

	// Seed the final provenance with the static inputs only; template,
	// partial, and data inputs are captured fresh during the render.
	prov := &provenance.Provenance{}
	for _, in := range probe.Inputs {
		switch in.Type {
		case provenance.InputContent, provenance.InputMetadata, provenance.InputConfig, provenance.InputSection:
			prov.Add(in)
		}
	}
	collect := func(kind templates.AccessKind, resolved string) {
		inputType := provenance.InputTemplate
		switch kind {
		case templates.AccessPartial:
			inputType = provenance.InputPartial
		case templates.AccessData:
			inputType = provenance.InputData
		}
		h, err := hashing.HashFile(p.fs, resolved)
		if err != nil {
			h = hashing.HashString(resolved)
		}
		prov.Add(provenance.InputRecord{Type: inputType, Path: resolved, Hash: h})
	}

	html, extra, err := p.render(bc, page, collect)
	if err != nil {
		return false, models.NewError(models.ErrRender, page.SourcePath,
			"failed to render page", "check the template and frontmatter", err)
	}
	if p.MinifyHTML {
		out, ok := assets.MinifyContent("text/html", []byte(html))
		if ok {
			html = string(out)
		}
	}

	outputHash := hashing.HashString(html)
	if err := atomicio.WriteBytes(p.fs, page.OutputPath, []byte(html)); err != nil {
		return false, models.NewError(models.ErrRender, page.SourcePath,
			"failed to write output", "check output directory permissions", err)
	}
	for _, out := range extra {
		content := out.HTML
		if p.MinifyHTML {
			if min, ok := assets.MinifyContent("text/html", []byte(content)); ok {
				content = string(min)
			}
		}
		if err := atomicio.WriteBytes(p.fs, out.Path, []byte(content)); err != nil {
			return false, models.NewError(models.ErrRender, page.SourcePath,
				"failed to write paginated output", "check output directory permissions", err)
		}
		bc.Stats.RecordFileWritten()
	}
	bc.Stats.RecordRendered()
	bc.RecordOutputHash(page.SourcePath, outputHash)
	page.RenderedHTML = html

	p.store.Put(&provenance.Record{
		PagePath:   page.SourcePath,
		Inputs:     prov.Inputs,
		OutputHash: outputHash,
		BuildID:    p.buildID,
	})

	bc.AccumulatePageAssets(page.SourcePath, ExtractAssetRefs(html))
	return false, nil
}

// pagedOutput is one extra paginated listing page beyond the first.
type pagedOutput struct {
	Path string
	HTML string
}

// render converts markdown and executes the resolved template. Section
// listings past the pagination threshold render once per chunk; the
// first chunk is the page's own output, the rest land under page/N/.
func (p *Pipeline) render(bc *models.BuildContext, page *models.Page, observe templates.AccessObserver) (string, []pagedOutput, error) {
	raw, _ := bc.CachedContent(page.SourcePath)
	if raw == nil {
		raw = page.RawContent
	}
	body, err := MarkdownToHTML(stripFrontmatter(raw))
	if err != nil {
		return "", nil, err
	}

	section := bc.Sections[page.SectionPath]
	ctx := p.renderContext(bc, page, section, body)
	name := p.templateName(page, section)

	pg := p.site.Config.Pagination
	if ctx.Section == nil || pg.PerPage < 1 || len(ctx.Section.Pages) < pg.Threshold {
		html, err := p.runtime.Render(name, ctx, observe)
		return html, nil, err
	}

	baseURL := page.URL(p.site.OutputDir)
	pagers := templates.Paginate(ctx.Section.Pages, pg.PerPage, func(n int) string {
		u := baseURL
		if n > 1 {
			u = baseURL + "page/" + strconv.Itoa(n) + "/"
		}
		return templates.ApplyBaseURL(p.site.Config.Site.BaseURL, u)
	})

	outDir := filepath.Dir(page.OutputPath)
	var first string
	var extra []pagedOutput
	for i := range pagers {
		pc := *ctx
		sv := *ctx.Section
		sv.Pages = pagers[i].Items
		pc.Section = &sv
		pc.Paginator = &pagers[i]

		html, err := p.runtime.Render(name, &pc, observe)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			first = html
			continue
		}
		extra = append(extra, pagedOutput{
			Path: filepath.Join(outDir, "page", strconv.Itoa(pagers[i].PageNumber), "index.html"),
			HTML: html,
		})
	}
	return first, extra, nil
}

// renderContext assembles the template dot for one page.
func (p *Pipeline) renderContext(bc *models.BuildContext, page *models.Page, section *models.Section, body string) *templates.RenderContext {
	outputDir := p.site.OutputDir

	view := templates.PageView{
		Title:       page.Title,
		Description: page.Description,
		Content:     template.HTML(body),
		URL:         templates.ApplyBaseURL(p.site.Config.Site.BaseURL, page.URL(outputDir)),
		Date:        page.Date,
		HasDate:     page.HasDate,
		Tags:        page.Tags,
		Params:      page.RawMeta,
		Section:     page.SectionPath,
	}
	for _, rel := range page.RelatedPages {
		if other, ok := bc.Pages[rel]; ok {
			view.Related = append(view.Related, templates.NewPageRef(other, outputDir))
		}
	}

	rc := &templates.RenderContext{
		Site: p.siteView,
		Page: view,
		Breadcrumbs: templates.Breadcrumbs(bc.Sections, page.SectionPath, func(secPath string) string {
			return templates.ApplyBaseURL(p.site.Config.Site.BaseURL, "/"+strings.TrimSuffix(secPath+"/", "//"))
		}),
	}

	if section != nil && (page.IsIndex() || page.Virtual) {
		sv := &templates.SectionView{
			Name: section.Name,
			URL:  "/" + section.Path + "/",
			Kind: section.Kind,
		}
		for _, pagePath := range section.Pages {
			child, ok := bc.Pages[pagePath]
			if !ok || child.IsIndex() {
				continue
			}
			sv.Pages = append(sv.Pages, templates.NewPageRef(child, outputDir))
		}
		for _, sub := range section.Subsections {
			if s, ok := bc.Sections[sub]; ok {
				sv.Children = append(sv.Children, templates.Crumb{Name: s.Name, URL: "/" + s.Path + "/"})
			}
		}
		rc.Section = sv
	}
	return rc
}

// stripFrontmatter removes the leading fence so goldmark sees body only.
func stripFrontmatter(raw []byte) []byte {
	s := string(raw)
	if !strings.HasPrefix(s, "---\n") && !strings.HasPrefix(s, "---\r\n") {
		return raw
	}
	rest := s[4:]
	if strings.HasPrefix(s, "---\r\n") {
		rest = s[5:]
	}
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return raw
	}
	after := rest[idx+4:]
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		return []byte(after[nl+1:])
	}
	return []byte("")
}
