package site

import (
	"sort"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/templates"
)

// BuildMenus resolves navigation menus from config entries, falling back
// to one auto-generated "main" menu over the top-level sections when the
// config declares none.
func BuildMenus(site *config.SiteData, bc *models.BuildContext) map[string][]templates.MenuItem {
	base := site.Config.Site.BaseURL
	menus := make(map[string][]templates.MenuItem)

	for name, entries := range site.Config.Menus {
		items := make([]templates.MenuItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, templates.MenuItem{
				Name:   e.Name,
				URL:    templates.NormalizeURL(templates.ApplyBaseURL(base, e.URL)),
				Weight: e.Weight,
			})
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Weight < items[j].Weight })
		menus[name] = items
	}
	if len(menus) > 0 {
		return menus
	}

	root := bc.Sections[""]
	if root == nil {
		return menus
	}
	var items []templates.MenuItem
	for _, key := range root.Subsections {
		sec, ok := bc.Sections[key]
		if !ok {
			continue
		}
		items = append(items, templates.MenuItem{
			Name: titleCaser.String(sec.Name),
			URL:  templates.NormalizeURL(templates.ApplyBaseURL(base, "/"+sec.Path+"/")),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	menus["main"] = items
	return menus
}
