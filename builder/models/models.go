// Package models holds the build's shared data types: pages, sections,
// assets, and the mutable per-build context.
package models

import (
	"path"
	"strings"
	"time"

	"github.com/bengal-ssg/bengal/builder/hashing"
)

// SectionKind classifies a section for template selection and index
// synthesis. Dispatch happens on this tag, not on type hierarchy.
type SectionKind string

const (
	KindList         SectionKind = "list"
	KindArchive      SectionKind = "archive"
	KindAPIReference SectionKind = "api-reference"
	KindCLIReference SectionKind = "cli-reference"
	KindTutorial     SectionKind = "tutorial"
)

// Page is one content file (or synthesized virtual page). SourcePath is
// the site-relative POSIX path and acts as the primary key everywhere.
type Page struct {
	SourcePath  string
	RawMeta     map[string]interface{}
	RawContent  []byte
	Title       string
	Description string
	Date        time.Time
	HasDate     bool
	Tags        []string
	Draft       bool
	Weight      int
	Language    string
	Version     string

	// OutputPath is absolute, under the output dir, set before rendering.
	OutputPath string

	// SectionPath keys into the section arena ("" for root).
	SectionPath string

	// Template is the explicit template override from frontmatter.
	Template string

	RenderedHTML string
	RelatedPages []string
	Virtual      bool
}

// URL derives the site-relative URL from OutputPath relative to outputDir.
func (p *Page) URL(outputDir string) string {
	rel := strings.TrimPrefix(p.OutputPath, outputDir)
	rel = strings.ReplaceAll(rel, "\\", "/")
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	if strings.HasSuffix(rel, "/index.html") {
		rel = strings.TrimSuffix(rel, "index.html")
	}
	return rel
}

// Slug is the page's file stem.
func (p *Page) Slug() string {
	base := path.Base(p.SourcePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsIndex reports whether the page is a section index (_index.* file).
func (p *Page) IsIndex() bool {
	return strings.HasPrefix(path.Base(p.SourcePath), "_index")
}

// Section is a tree node over the content directory. Pages and
// subsections are referenced by key into the site's flat arenas, so the
// tree serializes trivially and has no cyclic pointers.
type Section struct {
	Name        string
	Path        string // site-relative POSIX path, "" for root
	ParentPath  string
	Subsections []string
	Pages       []string // page SourcePaths in this section
	IndexPage   string   // SourcePath of the index page, "" until finalized
	Metadata    map[string]interface{}
	Virtual     bool
	Kind        SectionKind
}

// IsRoot reports whether s is the content root.
func (s *Section) IsRoot() bool { return s.Path == "" }

// AssetType is derived from an asset's extension.
type AssetType string

const (
	AssetCSS        AssetType = "css"
	AssetJavaScript AssetType = "javascript"
	AssetImage      AssetType = "image"
	AssetFont       AssetType = "font"
	AssetOther      AssetType = "other"
)

// AssetTypeFor maps a file extension (with dot) to an AssetType.
func AssetTypeFor(ext string) AssetType {
	switch strings.ToLower(ext) {
	case ".css":
		return AssetCSS
	case ".js", ".mjs":
		return AssetJavaScript
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico":
		return AssetImage
	case ".woff", ".woff2", ".ttf", ".otf", ".eot":
		return AssetFont
	default:
		return AssetOther
	}
}

// Asset is one input file under assets/ (or produced by the external
// toolchain hook). A CSS entry point is style.css at any depth; other CSS
// files are modules emitted only via @import.
type Asset struct {
	SourcePath  string // absolute path on the source filesystem
	LogicalPath string // site-relative POSIX path under assets/
	Type        AssetType
	Fingerprint string
	IsCSSEntry  bool
	IsCSSModule bool
	IsJSModule  bool
	SourceHash  hashing.Hash
}

// ClassifyAsset fills the type and CSS/JS classification flags.
func ClassifyAsset(a *Asset) {
	ext := path.Ext(a.LogicalPath)
	a.Type = AssetTypeFor(ext)
	switch a.Type {
	case AssetCSS:
		if path.Base(a.LogicalPath) == "style.css" {
			a.IsCSSEntry = true
		} else {
			a.IsCSSModule = true
		}
	case AssetJavaScript:
		a.IsJSModule = true
	}
}
