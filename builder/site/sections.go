package site

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/frontmatter"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// archiveDateThreshold is the fraction of dated pages above which a
// section defaults to the archive kind.
const archiveDateThreshold = 0.6

var titleCaser = cases.Title(language.English)

// FinalizeSections guarantees the section invariants before rendering:
// every non-root section ends up with an index page (synthesized when
// the author provided none), a detected kind, and every page an absolute
// output path under the output dir.
func FinalizeSections(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) error {
	keys := make([]string, 0, len(bc.Sections))
	for k := range bc.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sec := bc.Sections[key]
		sec.Kind = detectKind(bc, sec)
		if sec.IsRoot() || sec.IndexPage != "" {
			continue
		}
		if err := synthesizeIndex(fs, site, bc, sec); err != nil {
			return err
		}
	}

	AssignOutputPaths(site, bc)
	return nil
}

// AssignOutputPaths sets the absolute output path for every page that
// lacks one. Called again after taxonomy synthesis picks up tag pages.
func AssignOutputPaths(site *config.SiteData, bc *models.BuildContext) {
	for _, page := range bc.Pages {
		if page.OutputPath == "" {
			page.OutputPath = outputPathFor(site, page)
		}
	}
}

// detectKind resolves the section kind: explicit metadata override, name
// convention, page-type metadata, then the date-presence heuristic.
func detectKind(bc *models.BuildContext, sec *models.Section) models.SectionKind {
	if v := frontmatter.FromAny(sec.Metadata).Get("kind").AsStringOr(""); v != "" {
		switch models.SectionKind(v) {
		case models.KindArchive, models.KindAPIReference, models.KindCLIReference, models.KindTutorial, models.KindList:
			return models.SectionKind(v)
		}
	}

	switch sec.Name {
	case "api", "api-reference":
		return models.KindAPIReference
	case "cli", "cli-reference", "commands":
		return models.KindCLIReference
	case "tutorials", "tutorial", "guides":
		return models.KindTutorial
	}

	dated, total := 0, 0
	for _, pagePath := range sec.Pages {
		page, ok := bc.Pages[pagePath]
		if !ok || page.IsIndex() {
			continue
		}
		if t := frontmatter.FromAny(page.RawMeta).Get("type").AsStringOr(""); t != "" {
			switch models.SectionKind(t) {
			case models.KindAPIReference, models.KindCLIReference, models.KindTutorial:
				return models.SectionKind(t)
			}
		}
		total++
		if page.HasDate {
			dated++
		}
	}
	if total > 0 && float64(dated)/float64(total) >= archiveDateThreshold {
		return models.KindArchive
	}
	return models.KindList
}

// synthesizeIndex materializes a virtual index page for a section that
// has none. The source lives under the generated dir so incremental
// planning can detect its disappearance.
func synthesizeIndex(fs afero.Fs, site *config.SiteData, bc *models.BuildContext, sec *models.Section) error {
	title := titleCaser.String(strings.ReplaceAll(sec.Name, "-", " "))
	body := fmt.Sprintf("---\ntitle: %s\n---\n", title)

	genAbs := filepath.Join(site.GeneratedDir(), filepath.FromSlash(sec.Path), "_index.md")
	if err := atomicio.WriteBytes(fs, genAbs, []byte(body)); err != nil {
		return models.NewError(models.ErrDiscovery, sec.Path,
			"failed to write synthesized section index", "check cache directory permissions", err)
	}
	rel, err := utils.SafeRel(site.RootPath, genAbs)
	if err != nil {
		return err
	}

	page := &models.Page{
		SourcePath:  utils.NormalizePath(rel),
		RawMeta:     map[string]interface{}{"title": title},
		RawContent:  []byte(body),
		Title:       title,
		SectionPath: sec.Path,
		Virtual:     true,
		Language:    site.Config.I18n.DefaultLanguage,
	}
	bc.Pages[page.SourcePath] = page
	sec.Pages = append(sec.Pages, page.SourcePath)
	sec.IndexPage = page.SourcePath
	sec.Virtual = sec.Virtual || len(sec.Pages) == 1
	return nil
}

// outputPathFor maps a page to its absolute output path. Regular pages
// get pretty URLs (slug/index.html); index pages land at the section's
// own index.html. Non-default languages are prefixed under the prefix
// strategy.
func outputPathFor(site *config.SiteData, page *models.Page) string {
	var rel string
	if page.IsIndex() || page.Virtual {
		rel = filepath.Join(filepath.FromSlash(page.SectionPath), "index.html")
	} else {
		rel = filepath.Join(filepath.FromSlash(page.SectionPath), page.Slug(), "index.html")
	}

	i18n := site.Config.I18n
	if i18n.Strategy == "prefix" {
		if page.Language != i18n.DefaultLanguage || i18n.DefaultInSubdir {
			rel = filepath.Join(page.Language, rel)
		}
	}
	if page.Version != "" && site.Config.Versioning.Enabled {
		rel = filepath.Join(page.Version, rel)
	}
	return filepath.Join(site.OutputDir, rel)
}
