package run

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/deps"
	"github.com/bengal-ssg/bengal/builder/metrics"
)

// These tests run whole builds against a real filesystem: the dependency
// store and the build lock need one.

const e2eConfig = `
[site]
title = "E2E"

[build]
cache_enabled = true
strict_mode = true

[assets]
fingerprint = true

[health_check]
enabled = true
`

var e2eFiles = map[string]string{
	"content/blog/post.md": `---
title: First Post
date: 2024-01-05
tags:
  - go
---

the first body
`,
	"content/blog/other.md": `---
title: Other Post
date: 2024-02-10
---

the other body
`,
	"templates/page.html":    `<!DOCTYPE html><h1>{{ .Page.Title }}</h1>{{ .Page.Content }}<link rel="stylesheet" href="{{ asset "css/style.css" }}">`,
	"templates/archive.html": `<h1>{{ .Page.Title }}</h1><ul>{{ range .Section.Pages }}<li>{{ .Title }}</li>{{ end }}</ul>`,
	"templates/section.html": `<h1>{{ .Page.Title }}</h1>{{ range .Section.Children }}<a href="{{ .URL }}">{{ .Name }}</a>{{ end }}`,
	"templates/tag.html":     `<h1>{{ .Page.Title }}</h1><ul>{{ range .Section.Pages }}<li>{{ .Title }}</li>{{ end }}</ul>`,
	"assets/css/style.css":   "body { margin: 0; }\n",
}

func writeSiteTree(t *testing.T, root string) {
	t.Helper()
	for rel, content := range e2eFiles {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func buildSite(t *testing.T, root string, opts Options) *metrics.BuildMetrics {
	t.Helper()
	cfg, err := config.Parse([]byte(e2eConfig), "bengal.toml", filepath.Join(root, "bengal.toml"))
	if err != nil {
		t.Fatal(err)
	}
	site, err := config.NewSiteData(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	opts.Quiet = true
	b := New(afero.NewOsFs(), site, opts)
	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return b.Metrics()
}

func readOutput(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "public", filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("missing output %s: %v", rel, err)
	}
	return string(data)
}

var fingerprintedCSS = regexp.MustCompile(`/assets/css/style\.[0-9a-f]{8}\.css`)

func TestBuildRendersSynthesizedPages(t *testing.T) {
	root := t.TempDir()
	writeSiteTree(t, root)

	m := buildSite(t, root, Options{Sequential: true})
	if m.IsIncremental {
		t.Error("first build reported incremental")
	}

	post := readOutput(t, root, "blog/post/index.html")
	if !strings.Contains(post, "the first body") {
		t.Errorf("post body missing:\n%s", post)
	}
	if !fingerprintedCSS.MatchString(post) {
		t.Errorf("asset link not fingerprinted:\n%s", post)
	}

	// The blog section has no authored index; both members are dated, so
	// the synthesized index renders through the archive template.
	blog := readOutput(t, root, "blog/index.html")
	if !strings.Contains(blog, "First Post") || !strings.Contains(blog, "Other Post") {
		t.Errorf("blog listing incomplete:\n%s", blog)
	}

	tags := readOutput(t, root, "tags/index.html")
	if !strings.Contains(tags, "go") {
		t.Errorf("tags listing missing the go tag:\n%s", tags)
	}
	tagGo := readOutput(t, root, "tags/go/index.html")
	if !strings.Contains(tagGo, "First Post") {
		t.Errorf("tag page missing its member:\n%s", tagGo)
	}
}

func TestBuildTwiceNoChangeIsAllHits(t *testing.T) {
	root := t.TempDir()
	writeSiteTree(t, root)

	buildSite(t, root, Options{Sequential: true})
	m := buildSite(t, root, Options{Sequential: true})

	if !m.IsIncremental {
		t.Fatal("second build did not run incrementally")
	}
	if m.CacheMisses != 0 {
		t.Errorf("CacheMisses = %d, want 0", m.CacheMisses)
	}
	if m.CacheHits != 5 {
		t.Errorf("CacheHits = %d, want 5", m.CacheHits)
	}

	// The unprocessed asset keeps its manifest entry across the run.
	manifest := assets.LoadManifest(afero.NewOsFs(), filepath.Join(root, "public", "asset-manifest.json"))
	if manifest == nil {
		t.Fatal("manifest unreadable after incremental build")
	}
	entry, ok := manifest.Get("css/style.css")
	if !ok {
		t.Fatalf("css/style.css dropped from manifest, have %v", manifest.LogicalPaths())
	}
	if entry.Fingerprint == "" {
		t.Error("manifest entry lost its fingerprint")
	}
}

func TestBuildIncrementalChangeIsolation(t *testing.T) {
	root := t.TempDir()
	writeSiteTree(t, root)

	buildSite(t, root, Options{Sequential: true})

	postPath := filepath.Join(root, "content", "blog", "post.md")
	edited := strings.Replace(e2eFiles["content/blog/post.md"], "the first body", "the edited body", 1)
	if err := os.WriteFile(postPath, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	m := buildSite(t, root, Options{Sequential: true})
	if !m.IsIncremental {
		t.Fatal("edit build did not run incrementally")
	}
	// Title and date are untouched, so listings stay fresh: only the
	// edited page re-renders.
	if m.CacheMisses != 1 {
		t.Errorf("CacheMisses = %d, want 1", m.CacheMisses)
	}
	if m.CacheHits != 4 {
		t.Errorf("CacheHits = %d, want 4", m.CacheHits)
	}

	post := readOutput(t, root, "blog/post/index.html")
	if !strings.Contains(post, "the edited body") {
		t.Errorf("edited body not re-rendered:\n%s", post)
	}
	if !fingerprintedCSS.MatchString(post) {
		t.Errorf("re-rendered page lost the fingerprinted asset link:\n%s", post)
	}
}

func TestBuildRemovedPageCleansUpState(t *testing.T) {
	root := t.TempDir()
	writeSiteTree(t, root)

	buildSite(t, root, Options{Sequential: true})
	if err := os.Remove(filepath.Join(root, "content", "blog", "other.md")); err != nil {
		t.Fatal(err)
	}
	buildSite(t, root, Options{Sequential: true})

	// The listing no longer names the removed page.
	blog := readOutput(t, root, "blog/index.html")
	if strings.Contains(blog, "Other Post") {
		t.Errorf("removed page still listed:\n%s", blog)
	}

	// Its provenance record is gone from the store.
	recName := base64.RawURLEncoding.EncodeToString([]byte("content/blog/other.md")) + ".json"
	recPath := filepath.Join(root, ".bengal", "provenance", "records", recName)
	if _, err := os.Stat(recPath); !os.IsNotExist(err) {
		t.Errorf("provenance record survived page removal: %v", err)
	}

	// And so is its dependency row.
	store, err := deps.Open(filepath.Join(root, ".bengal"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	row, err := store.PageAssets("content/blog/other.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(row) != 0 {
		t.Errorf("dependency row survived page removal: %v", row)
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	seqRoot := t.TempDir()
	parRoot := t.TempDir()
	writeSiteTree(t, seqRoot)
	writeSiteTree(t, parRoot)

	buildSite(t, seqRoot, Options{Sequential: true})
	buildSite(t, parRoot, Options{Sequential: false})

	seq := collectHTML(t, filepath.Join(seqRoot, "public"))
	par := collectHTML(t, filepath.Join(parRoot, "public"))

	if len(seq) != len(par) {
		t.Fatalf("output trees differ in size: %d vs %d", len(seq), len(par))
	}
	for rel, want := range seq {
		got, ok := par[rel]
		if !ok {
			t.Errorf("parallel build missing %s", rel)
			continue
		}
		if got != want {
			t.Errorf("output %s differs between sequential and parallel builds", rel)
		}
	}
}

// collectHTML maps output-relative paths to contents for every .html file.
func collectHTML(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(p) != ".html" {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}
