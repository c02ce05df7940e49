package site

import (
	"sort"

	"github.com/bengal-ssg/bengal/builder/models"
)

// maxRelated caps the related-pages list per page.
const maxRelated = 5

// ComputeRelated fills page.RelatedPages from tag overlap. Pages sharing
// more tags rank earlier; ties break by date (newer first), then by
// source path for determinism. O(tags * bucket^2) over the tag index.
func ComputeRelated(bc *models.BuildContext, idx *TagIndex) {
	type scored struct {
		path  string
		count int
	}

	for _, path := range sortedPagePaths(bc) {
		page := bc.Pages[path]
		if page.IsIndex() || len(page.Tags) == 0 {
			continue
		}

		overlap := make(map[string]int)
		for _, tag := range page.Tags {
			for _, other := range idx.PagesFor(tag) {
				if other == path {
					continue
				}
				overlap[other]++
			}
		}
		if len(overlap) == 0 {
			page.RelatedPages = nil
			continue
		}

		ranked := make([]scored, 0, len(overlap))
		for p, n := range overlap {
			ranked = append(ranked, scored{path: p, count: n})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			a, b := bc.Pages[ranked[i].path], bc.Pages[ranked[j].path]
			if a.HasDate && b.HasDate && !a.Date.Equal(b.Date) {
				return a.Date.After(b.Date)
			}
			return ranked[i].path < ranked[j].path
		})

		limit := len(ranked)
		if limit > maxRelated {
			limit = maxRelated
		}
		related := make([]string, 0, limit)
		for _, r := range ranked[:limit] {
			related = append(related, r.path)
		}
		page.RelatedPages = related
	}
}
