package config

import (
	"testing"
)

func parseTOML(t *testing.T, src string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(src), "bengal.toml", "/site/bengal.toml")
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestParseDefaults(t *testing.T) {
	cfg := parseTOML(t, "[site]\ntitle = \"Minimal\"\n")

	if cfg.Site.Title != "Minimal" {
		t.Errorf("title = %q", cfg.Site.Title)
	}
	if cfg.Build.OutputDir != "public" || cfg.Build.ContentDir != "content" {
		t.Errorf("dirs = %q, %q", cfg.Build.OutputDir, cfg.Build.ContentDir)
	}
	if !cfg.Build.Parallel || !cfg.Build.CacheEnabled {
		t.Error("parallel and cache should default on")
	}
	if cfg.Pagination.PerPage != 10 || cfg.Pagination.Threshold != 20 {
		t.Errorf("pagination defaults = %+v", cfg.Pagination)
	}
	if cfg.I18n.Strategy != "none" || cfg.I18n.DefaultLanguage != "en" {
		t.Errorf("i18n defaults = %+v", cfg.I18n)
	}
}

func TestParseYAML(t *testing.T) {
	src := `
site:
  title: Yaml Site
  baseurl: /docs/
build:
  strict_mode: true
`
	cfg, err := Parse([]byte(src), "bengal.yaml", "/site/bengal.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Site.Title != "Yaml Site" {
		t.Errorf("title = %q", cfg.Site.Title)
	}
	if cfg.Site.BaseURL != "/docs" {
		t.Errorf("baseurl not trimmed: %q", cfg.Site.BaseURL)
	}
	if !cfg.Build.StrictMode {
		t.Error("strict_mode not applied")
	}
}

func TestThemeStringOrTable(t *testing.T) {
	if cfg := parseTOML(t, "theme = \"paper\"\n"); cfg.ThemeName != "paper" {
		t.Errorf("string theme = %q", cfg.ThemeName)
	}
	if cfg := parseTOML(t, "[theme]\nname = \"paper\"\n"); cfg.ThemeName != "paper" {
		t.Errorf("table theme = %q", cfg.ThemeName)
	}
}

func TestHealthCheckBoolOrMap(t *testing.T) {
	cfg := parseTOML(t, "[health_check]\nenabled = true\n")
	if !cfg.HealthCheck.Enabled || cfg.HealthCheck.Validators != nil {
		t.Errorf("bool form = %+v", cfg.HealthCheck)
	}

	cfg = parseTOML(t, "[health_check.enabled]\noutput-paths = true\nmanifest-files = false\n")
	if !cfg.HealthCheck.Enabled {
		t.Error("map form should enable health checks")
	}
	if on, ok := cfg.HealthCheck.Validators["output-paths"]; !ok || !on {
		t.Errorf("validators = %v", cfg.HealthCheck.Validators)
	}
	if off := cfg.HealthCheck.Validators["manifest-files"]; off {
		t.Error("disabled validator reported enabled")
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := parseTOML(t, `
[site]
language = "not-a-language-tag-!!"

[build]
max_workers = 9999

[pagination]
per_page = 0
threshold = 1

[i18n]
strategy = "weird"
languages = ["en", "zz-bogus-!!", "fr"]
`)
	if cfg.Build.MaxWorkers != 256 {
		t.Errorf("max_workers = %d", cfg.Build.MaxWorkers)
	}
	if cfg.Pagination.PerPage != 10 {
		t.Errorf("per_page = %d", cfg.Pagination.PerPage)
	}
	if cfg.Pagination.Threshold < cfg.Pagination.PerPage {
		t.Errorf("threshold = %d below per_page", cfg.Pagination.Threshold)
	}
	if cfg.I18n.Strategy != "none" {
		t.Errorf("strategy = %q", cfg.I18n.Strategy)
	}
	if len(cfg.I18n.Languages) != 2 {
		t.Errorf("languages = %v", cfg.I18n.Languages)
	}
	if cfg.Site.Language != "en" {
		t.Errorf("invalid language not reset: %q", cfg.Site.Language)
	}
}

func TestConfigHashChangesOnEdit(t *testing.T) {
	a := parseTOML(t, "[site]\ntitle = \"One\"\n")
	b := parseTOML(t, "[site]\ntitle = \"Two\"\n")
	c := parseTOML(t, "[site]\ntitle = \"One\"\n")

	if a.Hash() == b.Hash() {
		t.Error("different configs hash equal")
	}
	if a.Hash() != c.Hash() {
		t.Error("identical configs hash differently")
	}
}

func TestParseInvalidTOML(t *testing.T) {
	if _, err := Parse([]byte("[site\ntitle="), "bengal.toml", "/x"); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestSiteDataPaths(t *testing.T) {
	cfg := parseTOML(t, "[site]\ntitle = \"t\"\n")
	site, err := NewSiteData("/srv/site", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if site.OutputDir != "/srv/site/public" {
		t.Errorf("output dir = %q", site.OutputDir)
	}
	if site.CacheDir != "/srv/site/.bengal" {
		t.Errorf("cache dir = %q", site.CacheDir)
	}
	if got := site.ContentFilePath("content/posts/a.md"); got != "/srv/site/content/posts/a.md" {
		t.Errorf("content file path = %q", got)
	}
}
