package site

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// TagIndex maps tag names to member page source paths, newest first.
type TagIndex struct {
	mu   sync.RWMutex
	tags map[string][]string
}

// NewTagIndex returns an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{tags: make(map[string][]string)}
}

// Build indexes every page from scratch. The full rebuild is cheap and
// keeps the index consistent with the current page set even on
// incremental builds; per-page render freshness is decided elsewhere.
func (idx *TagIndex) Build(bc *models.BuildContext) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tags = make(map[string][]string)
	for _, path := range sortedPagePaths(bc) {
		page := bc.Pages[path]
		if page.IsIndex() {
			continue
		}
		for _, tag := range page.Tags {
			slug := Slugify(tag)
			idx.tags[slug] = append(idx.tags[slug], path)
		}
	}

	for slug := range idx.tags {
		idx.sortBucket(bc, slug)
	}
}

func (idx *TagIndex) sortBucket(bc *models.BuildContext, slug string) {
	bucket := idx.tags[slug]
	sort.SliceStable(bucket, func(i, j int) bool {
		a, b := bc.Pages[bucket[i]], bc.Pages[bucket[j]]
		if a.HasDate != b.HasDate {
			return a.HasDate
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return bucket[i] < bucket[j]
	})
}

// Tags returns all tag slugs sorted.
func (idx *TagIndex) Tags() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.tags))
	for t := range idx.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PagesFor returns the member pages of one tag, newest first.
func (idx *TagIndex) PagesFor(tag string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.tags[Slugify(tag)]...)
}

// SynthesizeTagPages materializes one virtual page per tag under the
// generated dir, grouped in a virtual "tags" section with its own
// synthesized index page. Tags that disappeared since the last build
// have their generated sources and outputs pruned.
func SynthesizeTagPages(fs afero.Fs, site *config.SiteData, bc *models.BuildContext, idx *TagIndex) error {
	pruneStaleTagPages(fs, site, idx)
	if len(idx.Tags()) == 0 {
		return nil
	}

	tagSec := registerSection(bc, "tags")
	tagSec.Virtual = true
	tagSec.Kind = models.KindList
	if tagSec.IndexPage == "" {
		if err := synthesizeIndex(fs, site, bc, tagSec); err != nil {
			return err
		}
	}

	for _, slug := range idx.Tags() {
		sec := registerSection(bc, "tags/"+slug)
		sec.Virtual = true
		sec.Kind = models.KindList

		body := "---\ntitle: " + slug + "\ntemplate: tag.html\n---\n"
		genAbs := filepath.Join(site.GeneratedDir(), "tags", slug, "_index.md")
		if err := atomicio.WriteBytes(fs, genAbs, []byte(body)); err != nil {
			return err
		}
		rel, err := utils.SafeRel(site.RootPath, genAbs)
		if err != nil {
			return err
		}
		page := &models.Page{
			SourcePath:  utils.NormalizePath(rel),
			RawMeta:     map[string]interface{}{"title": slug, "template": "tag.html"},
			RawContent:  []byte(body),
			Title:       slug,
			Template:    "tag.html",
			SectionPath: "tags/" + slug,
			Virtual:     true,
			Language:    site.Config.I18n.DefaultLanguage,
		}
		bc.Pages[page.SourcePath] = page
		sec.IndexPage = page.SourcePath
		sec.Pages = append(sec.Pages, page.SourcePath)
		// member pages fill the section listing for the tag template
		sec.Pages = append(sec.Pages, idx.tags[slug]...)
	}
	return nil
}

// pruneStaleTagPages removes the generated source and output of every
// tag page whose tag no longer has members, so removed tags do not
// linger as stale pages.
func pruneStaleTagPages(fs afero.Fs, site *config.SiteData, idx *TagIndex) {
	current := make(map[string]struct{})
	for _, slug := range idx.Tags() {
		current[slug] = struct{}{}
	}
	genTags := filepath.Join(site.GeneratedDir(), "tags")
	entries, err := afero.ReadDir(fs, genTags)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := current[e.Name()]; ok {
			continue
		}
		_ = fs.RemoveAll(filepath.Join(genTags, e.Name()))
		_ = fs.RemoveAll(filepath.Join(site.OutputDir, "tags", e.Name()))
	}
}

// Slugify lowercases a tag and replaces separators for use in URLs.
func Slugify(tag string) string {
	slug := strings.ToLower(strings.TrimSpace(tag))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")
	return slug
}

func sortedPagePaths(bc *models.BuildContext) []string {
	paths := bc.PagePaths()
	sort.Strings(paths)
	return paths
}
