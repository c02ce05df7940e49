package render

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// assetSelectors map element selectors to the attribute carrying the
// referenced URL.
var assetSelectors = []struct {
	selector string
	attr     string
}{
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"link[href]", "href"},
	{"source[src]", "src"},
	{"source[srcset]", "srcset"},
	{"video[poster]", "poster"},
}

// ExtractAssetRefs pulls local asset URLs out of rendered HTML. External
// URLs, anchors, and data URIs are skipped. The result is sorted and
// de-duplicated.
func ExtractAssetRefs(renderedHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, sel := range assetSelectors {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr(sel.attr)
			if !ok {
				return
			}
			for _, ref := range strings.Split(val, ",") {
				ref = strings.TrimSpace(ref)
				// srcset entries carry a width descriptor after the URL
				if i := strings.IndexByte(ref, ' '); i > 0 {
					ref = ref[:i]
				}
				if !isLocalAsset(ref) {
					continue
				}
				seen[ref] = struct{}{}
			}
		})
	}

	out := make([]string, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

func isLocalAsset(ref string) bool {
	if ref == "" {
		return false
	}
	switch {
	case strings.HasPrefix(ref, "http://"),
		strings.HasPrefix(ref, "https://"),
		strings.HasPrefix(ref, "//"),
		strings.HasPrefix(ref, "data:"),
		strings.HasPrefix(ref, "mailto:"),
		strings.HasPrefix(ref, "#"):
		return false
	}
	return true
}
