package assets

import (
	"bytes"
	"regexp"
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var (
	minifierOnce sync.Once
	minifier     *minify.M
)

// Minifier returns the shared minifier instance.
func Minifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", html.Minify)
		minifier.AddFunc("text/css", css.Minify)
		minifier.AddFunc("text/javascript", js.Minify)
	})
	return minifier
}

// MinifyContent minifies content of the given media type. On minifier
// failure the original content comes back with ok=false; callers log and
// ship the unminified bytes.
func MinifyContent(mediaType string, content []byte) ([]byte, bool) {
	var buf bytes.Buffer
	if err := Minifier().Minify(mediaType, &buf, bytes.NewReader(content)); err != nil {
		return content, false
	}
	return buf.Bytes(), true
}

// simpleClassRe matches a selector that is a single class with an
// optional pseudo suffix, e.g. `.btn` or `.btn:hover`.
var simpleClassRe = regexp.MustCompile(`^\.([A-Za-z0-9_-]+)(?::[A-Za-z-]+(?:\([^)]*\))?)?$`)

// TreeShake drops rules whose selectors are all simple class selectors
// absent from usedClasses. Anything more complex is kept; shaking is an
// optimization, never a correctness lever.
func TreeShake(cssText string, usedClasses map[string]struct{}) string {
	var out strings.Builder
	rest := cssText
	for {
		rule, remainder, ok := nextTopLevelRule(rest)
		if !ok {
			out.WriteString(rest)
			break
		}
		sel := strings.TrimSpace(rule.selector)
		if strings.HasPrefix(sel, "@") {
			out.WriteString(rule.prefix + rule.selector + "{" + TreeShake(rule.body, usedClasses) + "}")
		} else if shakeable(sel, usedClasses) {
			out.WriteString(rule.prefix)
		} else {
			out.WriteString(rule.prefix + rule.selector + "{" + rule.body + "}")
		}
		rest = remainder
	}
	return out.String()
}

func shakeable(selector string, usedClasses map[string]struct{}) bool {
	for _, part := range strings.Split(selector, ",") {
		m := simpleClassRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return false
		}
		if _, used := usedClasses[m[1]]; used {
			return false
		}
	}
	return true
}
