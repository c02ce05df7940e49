// Package generators emits the postprocess artifacts: sitemap, RSS feed,
// version descriptors, the root redirect, and the web-font stylesheet.
package generators

import (
	"encoding/xml"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/templates"
)

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// WriteSitemap emits sitemap.xml over all non-draft pages, sorted by URL
// for deterministic output.
func WriteSitemap(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) error {
	set := sitemapSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	for _, path := range sortedKeys(bc.Pages) {
		page := bc.Pages[path]
		u := sitemapURL{
			Loc: templates.NormalizeURL(templates.ApplyBaseURL(site.Config.Site.BaseURL, page.URL(site.OutputDir))),
		}
		if page.HasDate {
			u.LastMod = page.Date.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	payload := append([]byte(xml.Header), data...)
	payload = append(payload, '\n')
	return atomicio.WriteBytes(fs, filepath.Join(site.OutputDir, "sitemap.xml"), payload)
}

func sortedKeys(pages map[string]*models.Page) []string {
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recentFirst orders pages newest first, dateless pages last.
func recentFirst(bc *models.BuildContext) []*models.Page {
	var pages []*models.Page
	for _, k := range sortedKeys(bc.Pages) {
		p := bc.Pages[k]
		if p.IsIndex() || p.Virtual {
			continue
		}
		pages = append(pages, p)
	}
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].HasDate != pages[j].HasDate {
			return pages[i].HasDate
		}
		return pages[i].Date.After(pages[j].Date)
	})
	return pages
}
