package site

import (
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
)

func newTestSite(t *testing.T, configToml string) *config.SiteData {
	t.Helper()
	cfg, err := config.Parse([]byte(configToml), "bengal.toml", "/site/bengal.toml")
	if err != nil {
		t.Fatal(err)
	}
	site, err := config.NewSiteData("/site", cfg)
	if err != nil {
		t.Fatal(err)
	}
	return site
}

func siteFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestDiscoverPagesAndSections(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := siteFs(t, map[string]string{
		"/site/content/index.md":          "---\ntitle: Home\n---\nwelcome",
		"/site/content/posts/_index.md":   "---\ntitle: Posts\n---\n",
		"/site/content/posts/first.md":    "---\ntitle: First\ndate: 2024-01-02\ntags: [go]\n---\nbody",
		"/site/content/posts/draft.md":    "---\ntitle: Hidden\ndraft: true\n---\nbody",
		"/site/content/posts/notes.xlsx":  "binary",
		"/site/assets/css/style.css":      "body{}",
		"/site/assets/images/hero.png":    "png-bytes",
	})

	bc := models.NewBuildContext()
	if err := Discover(fs, site, bc); err != nil {
		t.Fatal(err)
	}

	if _, ok := bc.Pages["content/posts/first.md"]; !ok {
		t.Error("post not discovered")
	}
	if _, ok := bc.Pages["content/posts/draft.md"]; ok {
		t.Error("draft page discovered")
	}
	if _, ok := bc.Pages["content/posts/notes.xlsx"]; ok {
		t.Error("non-content file treated as a page")
	}

	posts, ok := bc.Sections["posts"]
	if !ok {
		t.Fatal("posts section not registered")
	}
	if posts.IndexPage != "content/posts/_index.md" {
		t.Errorf("IndexPage = %q", posts.IndexPage)
	}
	if posts.ParentPath != "" {
		t.Errorf("ParentPath = %q", posts.ParentPath)
	}

	first := bc.Pages["content/posts/first.md"]
	if first.Title != "First" || !first.HasDate || len(first.Tags) != 1 {
		t.Errorf("page metadata not parsed: %+v", first)
	}
	if first.Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("date = %v", first.Date)
	}
	if first.SectionPath != "posts" {
		t.Errorf("SectionPath = %q", first.SectionPath)
	}

	if len(bc.Assets) != 2 {
		t.Fatalf("assets = %d", len(bc.Assets))
	}
	for _, a := range bc.Assets {
		if a.LogicalPath == "css/style.css" && !a.IsCSSEntry {
			t.Error("style.css not classified as a CSS entry")
		}
		if a.LogicalPath == "images/hero.png" && a.Type != models.AssetImage {
			t.Errorf("hero.png classified as %s", a.Type)
		}
	}
}

func TestDiscoverHonorsIgnoreGlobs(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n\n[build]\nignore = [\"content/wip/**\"]\n")
	fs := siteFs(t, map[string]string{
		"/site/content/keep.md":        "---\ntitle: Keep\n---\n",
		"/site/content/wip/secret.md":  "---\ntitle: Secret\n---\n",
	})

	bc := models.NewBuildContext()
	if err := Discover(fs, site, bc); err != nil {
		t.Fatal(err)
	}
	if _, ok := bc.Pages["content/keep.md"]; !ok {
		t.Error("kept page missing")
	}
	if _, ok := bc.Pages["content/wip/secret.md"]; ok {
		t.Error("ignored page discovered")
	}
}

func TestDiscoverI18nPrefix(t *testing.T) {
	site := newTestSite(t, `
[site]
title = "t"

[i18n]
strategy = "prefix"
default_language = "en"
languages = ["en", "fr"]
`)
	fs := siteFs(t, map[string]string{
		"/site/content/fr/posts/bonjour.md": "---\ntitle: Bonjour\n---\n",
		"/site/content/posts/hello.md":      "---\ntitle: Hello\n---\n",
	})

	bc := models.NewBuildContext()
	if err := Discover(fs, site, bc); err != nil {
		t.Fatal(err)
	}

	fr := bc.Pages["content/fr/posts/bonjour.md"]
	if fr == nil {
		t.Fatal("french page missing")
	}
	if fr.Language != "fr" || fr.SectionPath != "posts" {
		t.Errorf("language = %q, section = %q", fr.Language, fr.SectionPath)
	}
	en := bc.Pages["content/posts/hello.md"]
	if en.Language != "en" || en.SectionPath != "posts" {
		t.Errorf("language = %q, section = %q", en.Language, en.SectionPath)
	}
}

func TestTitleFromPathFallback(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := siteFs(t, map[string]string{
		"/site/content/my-first_post.md": "no frontmatter here",
	})
	bc := models.NewBuildContext()
	if err := Discover(fs, site, bc); err != nil {
		t.Fatal(err)
	}
	page := bc.Pages["content/my-first_post.md"]
	if page == nil {
		t.Fatal("page missing")
	}
	if page.Title != "my first post" {
		t.Errorf("fallback title = %q", page.Title)
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{
		"2024-03-04T10:20:30Z",
		"2024-03-04T10:20:30",
		"2024-03-04 10:20:30",
		"2024-03-04",
	} {
		got, ok := parseDate(s)
		if !ok {
			t.Errorf("parseDate(%q) failed", s)
			continue
		}
		if got.Year() != 2024 || got.Month() != time.March {
			t.Errorf("parseDate(%q) = %v", s, got)
		}
	}
	if _, ok := parseDate("yesterday"); ok {
		t.Error("parseDate accepted garbage")
	}
}
