// Package images processes site images (fill, fit, resize, filter) through
// a versioned, atomically-written disk cache.
package images

import (
	"strconv"
	"strings"
)

// DefaultQuality applies when no q token is given or the value is out of
// range.
const DefaultQuality = 85

// Op is a processing operation.
type Op string

const (
	OpFill   Op = "fill"
	OpFit    Op = "fit"
	OpResize Op = "resize"
	OpFilter Op = "filter"
)

// Filter is one named filter in a filter spec.
type Filter struct {
	Name  string
	Sigma float64 // blur radius
}

// Spec is a parsed processing spec string.
type Spec struct {
	Width   int
	Height  int
	Format  string // normalized; "" keeps the source format
	Quality int
	Anchor  string
	Filters []Filter

	// Unknown collects tokens that were ignored; callers warn on them.
	Unknown []string
}

var anchors = map[string]bool{
	"center": true, "smart": true, "top": true, "bottom": true,
	"left": true, "right": true, "topleft": true, "topright": true,
	"bottomleft": true, "bottomright": true,
}

var formats = map[string]string{
	"webp": "webp", "avif": "avif", "jpeg": "jpeg", "jpg": "jpeg",
	"png": "png", "gif": "gif",
}

// ParseSpec parses a space-separated spec string. Tokens may appear in
// any order; unknown tokens are collected, not rejected.
func ParseSpec(spec string) Spec {
	s := Spec{Quality: DefaultQuality, Anchor: "center"}

	tokens := strings.Fields(strings.ToLower(spec))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case parseDims(tok, &s):
		case formats[tok] != "":
			s.Format = formats[tok]
		case anchors[tok]:
			s.Anchor = tok
		case len(tok) > 1 && tok[0] == 'q' && isDigits(tok[1:]):
			q, _ := strconv.Atoi(tok[1:])
			if q < 1 || q > 100 {
				q = DefaultQuality
			}
			s.Quality = q
		case tok == "grayscale":
			s.Filters = append(s.Filters, Filter{Name: "grayscale"})
		case tok == "blur":
			sigma := 3.0
			if i+1 < len(tokens) {
				if v, err := strconv.ParseFloat(tokens[i+1], 64); err == nil {
					sigma = v
					i++
				}
			}
			s.Filters = append(s.Filters, Filter{Name: "blur", Sigma: sigma})
		default:
			s.Unknown = append(s.Unknown, tok)
		}
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// parseDims handles `<W>x<H>` with either side optional ("800x600",
// "800x", "x600").
func parseDims(tok string, s *Spec) bool {
	idx := strings.IndexByte(tok, 'x')
	if idx < 0 {
		return false
	}
	w, h := tok[:idx], tok[idx+1:]
	if w == "" && h == "" {
		return false
	}
	var width, height int
	if w != "" {
		v, err := strconv.Atoi(w)
		if err != nil || v <= 0 {
			return false
		}
		width = v
	}
	if h != "" {
		v, err := strconv.Atoi(h)
		if err != nil || v <= 0 {
			return false
		}
		height = v
	}
	s.Width, s.Height = width, height
	return true
}

// Canonical renders the spec back to a stable token string for cache
// keying.
func (s Spec) Canonical() string {
	var parts []string
	if s.Width > 0 || s.Height > 0 {
		w, h := "", ""
		if s.Width > 0 {
			w = strconv.Itoa(s.Width)
		}
		if s.Height > 0 {
			h = strconv.Itoa(s.Height)
		}
		parts = append(parts, w+"x"+h)
	}
	if s.Format != "" {
		parts = append(parts, s.Format)
	}
	parts = append(parts, "q"+strconv.Itoa(s.Quality), s.Anchor)
	for _, f := range s.Filters {
		if f.Name == "blur" {
			parts = append(parts, "blur", strconv.FormatFloat(f.Sigma, 'g', -1, 64))
		} else {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, " ")
}
