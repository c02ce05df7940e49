// Package site builds the site structure: content discovery, the section
// tree, taxonomy and related-posts indexes, and output path assignment.
package site

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/frontmatter"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// contentExts are the recognized content file extensions.
var contentExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".rst":      true,
	".txt":      true,
}

// Discover walks the content tree and the assets tree, filling the
// context's page map, section arena, and asset list. Source paths are
// canonicalized to site-relative POSIX form here, once, and trusted by
// every later phase.
func Discover(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) error {
	root := &models.Section{Name: "root", Path: ""}
	bc.Sections[""] = root

	err := afero.Walk(fs, site.ContentDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := utils.SafeRel(site.RootPath, p)
		if relErr != nil {
			return nil
		}
		rel = utils.NormalizePath(rel)

		if info.IsDir() {
			if ignored(site.Config.Build.Ignore, rel) {
				return filepath.SkipDir
			}
			if p != site.ContentDir {
				registerSection(bc, sectionKeyFor(site, rel))
			}
			return nil
		}
		if ignored(site.Config.Build.Ignore, rel) {
			return nil
		}
		if !contentExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		page, err := loadPage(fs, site, p, rel)
		if err != nil {
			return models.NewError(models.ErrDiscovery, rel,
				"failed to parse content file", "fix the frontmatter or remove the file", err)
		}
		if page.Draft {
			return nil
		}
		attachPage(bc, page)
		return nil
	})
	if err != nil {
		return err
	}

	return discoverAssets(fs, site, bc)
}

func ignored(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// sectionKeyFor derives the section arena key from a site-relative
// content path, stripping the content dir prefix and any i18n language
// prefix already handled per page.
func sectionKeyFor(site *config.SiteData, rel string) string {
	contentPrefix := utils.NormalizePath(site.Config.Build.ContentDir) + "/"
	key := strings.TrimPrefix(rel, contentPrefix)
	return strings.TrimSuffix(key, "/")
}

// registerSection creates the section and all missing ancestors.
func registerSection(bc *models.BuildContext, key string) *models.Section {
	if sec, ok := bc.Sections[key]; ok {
		return sec
	}
	parentKey := ""
	if i := strings.LastIndex(key, "/"); i >= 0 {
		parentKey = key[:i]
	}
	parent := registerSection(bc, parentKey)
	sec := &models.Section{
		Name:       path.Base(key),
		Path:       key,
		ParentPath: parentKey,
		Kind:       models.KindList,
	}
	bc.Sections[key] = sec
	parent.Subsections = append(parent.Subsections, key)
	return sec
}

// loadPage reads one content file and builds a Page from its frontmatter.
func loadPage(fs afero.Fs, site *config.SiteData, abs, rel string) (*models.Page, error) {
	data, err := afero.ReadFile(fs, abs)
	if err != nil {
		return nil, err
	}
	meta, _, err := frontmatter.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}

	v := frontmatter.FromAny(meta)
	page := &models.Page{
		SourcePath:  rel,
		RawMeta:     meta,
		RawContent:  data,
		Title:       v.Get("title").AsStringOr(titleFromPath(rel)),
		Description: v.Get("description").AsStringOr(""),
		Tags:        v.Get("tags").AsStringsOr(nil),
		Draft:       v.Get("draft").AsBoolOr(false),
		Weight:      int(v.Get("weight").AsIntOr(0)),
		Template:    v.Get("template").AsStringOr(""),
		Version:     v.Get("version").AsStringOr(""),
		Language:    site.Config.I18n.DefaultLanguage,
	}
	if dateStr := v.Get("date").AsStringOr(""); dateStr != "" {
		if t, ok := parseDate(dateStr); ok {
			page.Date = t
			page.HasDate = true
		}
	}

	sectionKey := sectionKeyFor(site, path.Dir(rel))
	if sectionKey == "." {
		sectionKey = ""
	}
	if site.Config.I18n.Strategy == "prefix" {
		sectionKey, page.Language = splitLanguage(sectionKey, site.Config.I18n)
	}
	page.SectionPath = sectionKey
	return page, nil
}

func attachPage(bc *models.BuildContext, page *models.Page) {
	sec := registerSection(bc, page.SectionPath)
	bc.Pages[page.SourcePath] = page
	sec.Pages = append(sec.Pages, page.SourcePath)
	if page.IsIndex() {
		sec.IndexPage = page.SourcePath
		if len(page.RawMeta) > 0 {
			sec.Metadata = page.RawMeta
		}
	}
}

// splitLanguage strips a leading language segment under prefix strategy.
func splitLanguage(sectionKey string, i18n config.I18nConfig) (string, string) {
	head := sectionKey
	if i := strings.Index(sectionKey, "/"); i >= 0 {
		head = sectionKey[:i]
	}
	for _, lang := range i18n.Languages {
		if head == lang {
			rest := strings.TrimPrefix(sectionKey, head)
			return strings.TrimPrefix(rest, "/"), lang
		}
	}
	return sectionKey, i18n.DefaultLanguage
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func titleFromPath(rel string) string {
	base := path.Base(rel)
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")
	return strings.TrimSpace(stem)
}

// discoverAssets walks assets/ and classifies every file.
func discoverAssets(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) error {
	exists, _ := afero.DirExists(fs, site.AssetsDir)
	if !exists {
		return nil
	}
	return afero.Walk(fs, site.AssetsDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		logical, relErr := utils.SafeRel(site.AssetsDir, p)
		if relErr != nil {
			return nil
		}
		logical = utils.NormalizePath(logical)
		if ignored(site.Config.Build.Ignore, "assets/"+logical) {
			return nil
		}
		asset := &models.Asset{SourcePath: p, LogicalPath: logical}
		models.ClassifyAsset(asset)
		bc.Assets = append(bc.Assets, asset)
		return nil
	})
}
