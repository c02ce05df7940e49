package assets

import (
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// importRe matches @import url(...) and @import '...' / "..." statements,
// including any media-query tail before the semicolon.
var importRe = regexp.MustCompile(`@import\s+(?:url\(\s*['"]?([^'")]+)['"]?\s*\)|'([^']+)'|"([^"]+)")\s*[^;]*;`)

// Bundler inlines @import-ed CSS modules into an entry point. Imports are
// replaced in place, so declaration order and enclosing @layer blocks are
// preserved exactly. Output is deterministic for identical inputs.
type Bundler struct {
	fs afero.Fs

	// TransformNesting flattens simple &-nesting for browsers without
	// CSS Nesting support.
	TransformNesting bool

	// Missing collects import targets that could not be resolved; the
	// statements themselves stay in the output verbatim.
	Missing []string
}

// NewBundler creates a bundler reading modules from fs.
func NewBundler(fs afero.Fs) *Bundler {
	return &Bundler{fs: fs}
}

// Bundle resolves entryPath and returns the bundled stylesheet.
func (b *Bundler) Bundle(entryPath string) (string, error) {
	data, err := afero.ReadFile(b.fs, entryPath)
	if err != nil {
		return "", err
	}
	visited := map[string]bool{normalizeKey(entryPath): true}
	out := b.inline(string(data), path.Dir(normalizeKey(entryPath)), visited)
	if b.TransformNesting {
		out = FlattenNesting(out)
	}
	return out, nil
}

func normalizeKey(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

func isExternal(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//")
}

// inline replaces each resolvable @import with the imported file's
// contents, recursively. Import paths resolve relative to the importing
// file. External URLs and missing targets are preserved verbatim.
func (b *Bundler) inline(css, baseDir string, visited map[string]bool) string {
	return importRe.ReplaceAllStringFunc(css, func(stmt string) string {
		m := importRe.FindStringSubmatch(stmt)
		target := m[1]
		if target == "" {
			target = m[2]
		}
		if target == "" {
			target = m[3]
		}
		if target == "" || isExternal(target) {
			return stmt
		}

		resolved := normalizeKey(path.Join(baseDir, target))
		if visited[resolved] {
			// Second inclusion of the same module collapses to nothing.
			return ""
		}

		data, err := afero.ReadFile(b.fs, resolved)
		if err != nil {
			b.Missing = append(b.Missing, target)
			return stmt
		}
		visited[resolved] = true
		return b.inline(string(data), path.Dir(resolved), visited)
	})
}

// FlattenNesting rewrites one level of CSS nesting (`&:hover`, `&.cls`,
// `& > child`) into flat selectors with the parent prepended. Rules
// without a leading & pass through untouched.
func FlattenNesting(css string) string {
	var out strings.Builder
	rest := css
	for {
		rule, remainder, ok := nextTopLevelRule(rest)
		if !ok {
			out.WriteString(rest)
			break
		}
		out.WriteString(flattenRule(rule))
		rest = remainder
	}
	return out.String()
}

type cssRule struct {
	prefix   string // text before the rule (comments, whitespace, at-rules without blocks)
	selector string
	body     string
}

// nextTopLevelRule scans for the next `selector { body }` block at brace
// depth zero, honoring strings and comments.
func nextTopLevelRule(css string) (cssRule, string, bool) {
	open := indexOutsideStrings(css, '{')
	if open < 0 {
		return cssRule{}, "", false
	}
	depth := 0
	for i := open; i < len(css); i++ {
		switch css[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				selStart := strings.LastIndexAny(css[:open], ";}")
				sel := css[selStart+1 : open]
				return cssRule{
					prefix:   css[:selStart+1],
					selector: sel,
					body:     css[open+1 : i],
				}, css[i+1:], true
			}
		}
	}
	return cssRule{}, "", false
}

func indexOutsideStrings(s string, c byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
			continue
		}
		if ch == '\'' || ch == '"' {
			quote = ch
			continue
		}
		if ch == c {
			return i
		}
	}
	return -1
}

// flattenRule splits a rule body into plain declarations and nested
// &-rules, emitting the nested ones as sibling flat rules.
func flattenRule(r cssRule) string {
	sel := strings.TrimSpace(r.selector)
	if sel == "" || strings.HasPrefix(sel, "@") {
		// At-rule block (@layer, @media): recurse into its body.
		return r.prefix + r.selector + "{" + FlattenNesting(r.body) + "}"
	}
	if !strings.Contains(r.body, "&") {
		return r.prefix + r.selector + "{" + r.body + "}"
	}

	var decls, nested strings.Builder
	rest := r.body
	for {
		rule, remainder, ok := nextTopLevelRule(rest)
		if !ok {
			decls.WriteString(rest)
			break
		}
		inner := strings.TrimSpace(rule.selector)
		if strings.HasPrefix(inner, "&") {
			flat := flatSelector(sel, inner)
			decls.WriteString(strings.TrimRight(rule.prefix, " \t\n"))
			nested.WriteString(flat + "{" + rule.body + "}\n")
		} else {
			decls.WriteString(rule.prefix + rule.selector + "{" + rule.body + "}")
		}
		rest = remainder
	}
	return r.prefix + r.selector + "{" + decls.String() + "}\n" + strings.TrimRight(nested.String(), "\n")
}

// flatSelector prepends the parent selector: `&:hover` -> `a:hover`,
// `& > li` -> `ul > li`, `&.on` -> `.btn.on`. Comma lists distribute the
// parent over each part.
func flatSelector(parent, nested string) string {
	parts := strings.Split(nested, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		parts[i] = parent + strings.TrimPrefix(part, "&")
	}
	return strings.Join(parts, ", ")
}
