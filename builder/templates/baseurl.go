package templates

import "strings"

// ApplyBaseURL prefixes a site-relative path with the configured baseurl.
// An empty or "/" baseurl leaves the path unchanged. The result never
// contains "//" except after a URL scheme.
func ApplyBaseURL(baseurl, p string) string {
	if baseurl == "" || baseurl == "/" {
		return p
	}
	base := strings.TrimRight(baseurl, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return base + p
}

// NormalizeURL collapses duplicate slashes outside the scheme. Idempotent.
func NormalizeURL(u string) string {
	scheme := ""
	rest := u
	if idx := strings.Index(u, "://"); idx >= 0 {
		scheme = u[:idx+3]
		rest = u[idx+3:]
	} else if strings.HasPrefix(u, "//") {
		// protocol-relative
		scheme = "//"
		rest = u[2:]
	}
	for strings.Contains(rest, "//") {
		rest = strings.ReplaceAll(rest, "//", "/")
	}
	return scheme + rest
}
