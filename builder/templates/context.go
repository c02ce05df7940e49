package templates

import (
	"html/template"
	"sort"
	"time"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
)

// SiteView is the stable "site" object exposed to every template.
type SiteView struct {
	Title       string
	Description string
	BaseURL     string
	Language    string
	Params      map[string]interface{}
	Menus       map[string][]MenuItem
	Versions    []string
}

// MenuItem is one entry of a named menu, already URL-resolved.
type MenuItem struct {
	Name   string
	URL    string
	Weight int
	Active bool
}

// PageView is the per-page object exposed as ".Page".
type PageView struct {
	Title       string
	Description string
	Content     template.HTML
	URL         string
	Date        time.Time
	HasDate     bool
	Tags        []string
	Params      map[string]interface{}
	Section     string
	Related     []PageRef
	Prev        *PageRef
	Next        *PageRef
}

// PageRef is a lightweight link to another page.
type PageRef struct {
	Title string
	URL   string
	Date  time.Time
}

// Crumb is one step of the breadcrumb trail, root first.
type Crumb struct {
	Name string
	URL  string
}

// Paginator describes one page of a paginated listing.
type Paginator struct {
	PageNumber int
	TotalPages int
	PerPage    int
	Items      []PageRef
	HasPrev    bool
	HasNext    bool
	PrevURL    string
	NextURL    string
}

// TagView is one taxonomy term with its member pages, newest first.
type TagView struct {
	Name  string
	URL   string
	Pages []PageRef
}

// RenderContext is the top-level dot for every template execution.
type RenderContext struct {
	Site        SiteView
	Page        PageView
	Section     *SectionView
	Breadcrumbs []Crumb
	Paginator   *Paginator
	Tags        []TagView
	BuildTime   time.Time
}

// SectionView is the dot for section index templates.
type SectionView struct {
	Name     string
	URL      string
	Kind     models.SectionKind
	Pages    []PageRef
	Children []Crumb
}

// NewSiteView projects the parsed config into the template-facing shape.
func NewSiteView(cfg *config.Config, menuURL func(string) string) SiteView {
	view := SiteView{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		BaseURL:     cfg.Site.BaseURL,
		Language:    cfg.I18n.DefaultLanguage,
		Params:      cfg.Site.Params,
		Menus:       make(map[string][]MenuItem),
	}
	if cfg.Versioning.Enabled {
		view.Versions = append([]string(nil), cfg.Versioning.Sections...)
	}
	for name, entries := range cfg.Menus {
		items := make([]MenuItem, 0, len(entries))
		for _, e := range entries {
			url := e.URL
			if menuURL != nil {
				url = menuURL(url)
			}
			items = append(items, MenuItem{Name: e.Name, URL: url, Weight: e.Weight})
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Weight < items[j].Weight })
		view.Menus[name] = items
	}
	return view
}

// NewPageRef builds a link for a page given the site's output dir.
func NewPageRef(p *models.Page, outputDir string) PageRef {
	return PageRef{Title: p.Title, URL: p.URL(outputDir), Date: p.Date}
}

// Breadcrumbs walks section parents from the page's section to the root.
func Breadcrumbs(sections map[string]*models.Section, sectionPath string, sectionURL func(string) string) []Crumb {
	var trail []Crumb
	for path := sectionPath; ; {
		sec, ok := sections[path]
		if !ok {
			break
		}
		name := sec.Name
		if sec.IsRoot() {
			name = "Home"
		}
		trail = append(trail, Crumb{Name: name, URL: sectionURL(path)})
		if sec.IsRoot() {
			break
		}
		path = sec.ParentPath
	}
	// reverse to root-first order
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail
}

// Paginate splits refs into pages of perPage items. pageURL maps a
// 1-based page number to its URL. perPage below 1 yields one page.
func Paginate(refs []PageRef, perPage int, pageURL func(n int) string) []Paginator {
	if perPage < 1 {
		perPage = len(refs)
		if perPage < 1 {
			perPage = 1
		}
	}
	total := (len(refs) + perPage - 1) / perPage
	if total == 0 {
		total = 1
	}
	out := make([]Paginator, 0, total)
	for n := 1; n <= total; n++ {
		start := (n - 1) * perPage
		end := start + perPage
		if end > len(refs) {
			end = len(refs)
		}
		p := Paginator{
			PageNumber: n,
			TotalPages: total,
			PerPage:    perPage,
			Items:      refs[start:end],
			HasPrev:    n > 1,
			HasNext:    n < total,
		}
		if p.HasPrev {
			p.PrevURL = pageURL(n - 1)
		}
		if p.HasNext {
			p.NextURL = pageURL(n + 1)
		}
		out = append(out, p)
	}
	return out
}
