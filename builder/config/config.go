// Package config loads bengal.toml (or bengal.yaml) and exposes a typed
// view over the recognized keys. The raw map is kept for hashing so that
// any config edit invalidates the incremental cache.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/bengal-ssg/bengal/builder/frontmatter"
	"github.com/bengal-ssg/bengal/builder/hashing"
)

// ConfigFiles are probed in order at the site root.
var ConfigFiles = []string{"bengal.toml", "bengal.yaml", "bengal.yml"}

// SiteConfig holds the [site] table.
type SiteConfig struct {
	Title       string
	BaseURL     string
	Description string
	Author      string
	Language    string
	Params      map[string]interface{}
}

// BuildConfig holds the [build] table.
type BuildConfig struct {
	OutputDir    string
	ContentDir   string
	Parallel     bool
	StrictMode   bool
	CacheEnabled bool
	MaxWorkers   int
	Ignore       []string
}

// AssetsConfig holds the [assets] table.
type AssetsConfig struct {
	Minify      bool
	Optimize    bool
	Fingerprint bool
	Pipeline    bool
	BundleJS    bool
	JSOrder     []string
	JSExclude   []string
}

// CSSConfig holds the [css] table.
type CSSConfig struct {
	Optimize bool
}

// VersioningConfig holds the [versioning] table.
type VersioningConfig struct {
	Enabled          bool
	DefaultRedirect  bool
	EmitVersionsJSON bool
	DeployPrefix     string
	Sections         []string
}

// HealthCheckConfig holds the [health_check] table. Enabled may be a bool
// or a per-validator map in the source file.
type HealthCheckConfig struct {
	Enabled    bool
	Validators map[string]bool
	StrictMode bool
	Verbose    bool
}

// SocialCardsConfig holds the [social_cards] table. Cards are generated
// only when a TTF font file is configured.
type SocialCardsConfig struct {
	Enabled    bool
	Background string
	Gradient   []string
	Angle      int
	TextColor  string
	Font       string // site-relative path to a TTF file
}

// PaginationConfig holds the [pagination] table.
type PaginationConfig struct {
	PerPage   int
	Threshold int
}

// I18nConfig holds the [i18n] table.
type I18nConfig struct {
	Strategy        string // none | prefix
	DefaultLanguage string
	Languages       []string
	DefaultInSubdir bool
}

// FontFace describes one web font from the [[fonts]] array.
type FontFace struct {
	Family string
	Weight string
	Style  string
	File   string
}

// MenuEntry is one navigation item from [[menu.<name>]].
type MenuEntry struct {
	Name   string
	URL    string
	Weight int
}

// Config is the typed view of a site configuration.
type Config struct {
	Site        SiteConfig
	Build       BuildConfig
	Assets      AssetsConfig
	CSS         CSSConfig
	ThemeName   string
	Versioning  VersioningConfig
	HealthCheck HealthCheckConfig
	SocialCards SocialCardsConfig
	Pagination  PaginationConfig
	I18n        I18nConfig
	Fonts       []FontFace
	Menus       map[string][]MenuEntry

	// Raw is the decoded config tree; its hash keys cache invalidation.
	Raw map[string]interface{}

	// ConfigPath is the file the config was loaded from.
	ConfigPath string
}

// Load finds and parses the site config under rootPath.
func Load(rootPath string) (*Config, error) {
	for _, name := range ConfigFiles {
		path := filepath.Join(rootPath, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return Parse(data, name, path)
	}
	return nil, fmt.Errorf("no config file found in %s (expected one of %s); create bengal.toml with a [site] table",
		rootPath, strings.Join(ConfigFiles, ", "))
}

// Parse decodes config bytes. The format follows the filename extension.
func Parse(data []byte, name, path string) (*Config, error) {
	raw := make(map[string]interface{})
	if strings.HasSuffix(name, ".toml") {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid TOML in %s: %w", name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", name, err)
		}
	}
	raw = frontmatter.NormalizeMap(raw)

	cfg := defaults()
	cfg.Raw = raw
	cfg.ConfigPath = path
	applyRaw(cfg, raw)
	cfg.validate()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Site: SiteConfig{Language: "en"},
		Build: BuildConfig{
			OutputDir:    "public",
			ContentDir:   "content",
			Parallel:     true,
			CacheEnabled: true,
		},
		SocialCards: SocialCardsConfig{Background: "#faf8f5", TextColor: "#1a1a1a"},
		Pagination:  PaginationConfig{PerPage: 10, Threshold: 20},
		I18n:       I18nConfig{Strategy: "none", DefaultLanguage: "en"},
		Menus:      make(map[string][]MenuEntry),
	}
}

func applyRaw(cfg *Config, raw map[string]interface{}) {
	root := frontmatter.FromAny(raw)

	site := root.Get("site")
	cfg.Site.Title = site.Get("title").AsStringOr(cfg.Site.Title)
	cfg.Site.BaseURL = site.Get("baseurl").AsStringOr(cfg.Site.BaseURL)
	cfg.Site.Description = site.Get("description").AsStringOr(cfg.Site.Description)
	cfg.Site.Author = site.Get("author").AsStringOr(cfg.Site.Author)
	cfg.Site.Language = site.Get("language").AsStringOr(cfg.Site.Language)
	if params := site.Get("params"); params.Kind() == frontmatter.KindMap {
		cfg.Site.Params = params.ToAny().(map[string]interface{})
	}

	build := root.Get("build")
	cfg.Build.OutputDir = build.Get("output_dir").AsStringOr(cfg.Build.OutputDir)
	cfg.Build.ContentDir = build.Get("content_dir").AsStringOr(cfg.Build.ContentDir)
	cfg.Build.Parallel = build.Get("parallel").AsBoolOr(cfg.Build.Parallel)
	cfg.Build.StrictMode = build.Get("strict_mode").AsBoolOr(cfg.Build.StrictMode)
	cfg.Build.CacheEnabled = build.Get("cache_enabled").AsBoolOr(cfg.Build.CacheEnabled)
	cfg.Build.MaxWorkers = int(build.Get("max_workers").AsIntOr(int64(cfg.Build.MaxWorkers)))
	cfg.Build.Ignore = build.Get("ignore").AsStringsOr(nil)

	assets := root.Get("assets")
	cfg.Assets.Minify = assets.Get("minify").AsBoolOr(false)
	cfg.Assets.Optimize = assets.Get("optimize").AsBoolOr(false)
	cfg.Assets.Fingerprint = assets.Get("fingerprint").AsBoolOr(false)
	cfg.Assets.Pipeline = assets.Get("pipeline").AsBoolOr(false)
	cfg.Assets.BundleJS = assets.Get("bundle_js").AsBoolOr(false)
	cfg.Assets.JSOrder = assets.Get("js_order").AsStringsOr(nil)
	cfg.Assets.JSExclude = assets.Get("js_exclude").AsStringsOr(nil)

	cfg.CSS.Optimize = root.Get("css").Get("optimize").AsBoolOr(false)

	// theme may be a bare string or a [theme] table with a name key
	theme := root.Get("theme")
	if theme.Kind() == frontmatter.KindString {
		cfg.ThemeName = theme.AsStringOr("")
	} else {
		cfg.ThemeName = theme.Get("name").AsStringOr("")
	}

	ver := root.Get("versioning")
	cfg.Versioning.Enabled = ver.Get("enabled").AsBoolOr(false)
	cfg.Versioning.DefaultRedirect = ver.Get("default_redirect").AsBoolOr(false)
	cfg.Versioning.EmitVersionsJSON = ver.Get("emit_versions_json").AsBoolOr(cfg.Versioning.Enabled)
	cfg.Versioning.DeployPrefix = ver.Get("deploy_prefix").AsStringOr("")
	cfg.Versioning.Sections = ver.Get("sections").AsStringsOr(nil)

	// health_check.enabled: bool or per-validator map
	hc := root.Get("health_check")
	enabled := hc.Get("enabled")
	switch enabled.Kind() {
	case frontmatter.KindBool:
		cfg.HealthCheck.Enabled = enabled.AsBoolOr(false)
	case frontmatter.KindMap:
		cfg.HealthCheck.Enabled = true
		cfg.HealthCheck.Validators = make(map[string]bool)
		for _, k := range enabled.SortedKeys() {
			cfg.HealthCheck.Validators[k] = enabled.Get(k).AsBoolOr(true)
		}
	}
	cfg.HealthCheck.StrictMode = hc.Get("strict_mode").AsBoolOr(false)
	cfg.HealthCheck.Verbose = hc.Get("verbose").AsBoolOr(false)

	sc := root.Get("social_cards")
	cfg.SocialCards.Enabled = sc.Get("enabled").AsBoolOr(false)
	cfg.SocialCards.Background = sc.Get("background").AsStringOr(cfg.SocialCards.Background)
	cfg.SocialCards.Gradient = sc.Get("gradient").AsStringsOr(nil)
	cfg.SocialCards.Angle = int(sc.Get("angle").AsIntOr(0))
	cfg.SocialCards.TextColor = sc.Get("text_color").AsStringOr(cfg.SocialCards.TextColor)
	cfg.SocialCards.Font = sc.Get("font").AsStringOr("")

	pag := root.Get("pagination")
	cfg.Pagination.PerPage = int(pag.Get("per_page").AsIntOr(int64(cfg.Pagination.PerPage)))
	cfg.Pagination.Threshold = int(pag.Get("threshold").AsIntOr(int64(cfg.Pagination.Threshold)))

	i18n := root.Get("i18n")
	cfg.I18n.Strategy = i18n.Get("strategy").AsStringOr(cfg.I18n.Strategy)
	cfg.I18n.DefaultLanguage = i18n.Get("default_language").AsStringOr(cfg.I18n.DefaultLanguage)
	cfg.I18n.Languages = i18n.Get("languages").AsStringsOr(nil)
	cfg.I18n.DefaultInSubdir = i18n.Get("default_in_subdir").AsBoolOr(false)

	cfg.Fonts = append(cfg.Fonts, fontEntries(root.Get("fonts"))...)

	if menu := root.Get("menu"); menu.Kind() == frontmatter.KindMap {
		for _, name := range menu.SortedKeys() {
			for _, item := range menuEntries(menu.Get(name)) {
				cfg.Menus[name] = append(cfg.Menus[name], item)
			}
		}
	}
}

func fontEntries(v frontmatter.Value) []FontFace {
	var out []FontFace
	if v.Kind() != frontmatter.KindList {
		return nil
	}
	for _, raw := range v.ToAny().([]interface{}) {
		e := frontmatter.FromAny(raw)
		if e.Kind() != frontmatter.KindMap {
			continue
		}
		out = append(out, FontFace{
			Family: e.Get("family").AsStringOr(""),
			Weight: e.Get("weight").AsStringOr("400"),
			Style:  e.Get("style").AsStringOr("normal"),
			File:   e.Get("file").AsStringOr(""),
		})
	}
	return out
}

func menuEntries(v frontmatter.Value) []MenuEntry {
	var out []MenuEntry
	if v.Kind() != frontmatter.KindList {
		return nil
	}
	for _, raw := range v.ToAny().([]interface{}) {
		e := frontmatter.FromAny(raw)
		if e.Kind() != frontmatter.KindMap {
			continue
		}
		out = append(out, MenuEntry{
			Name:   e.Get("name").AsStringOr(""),
			URL:    e.Get("url").AsStringOr(""),
			Weight: int(e.Get("weight").AsIntOr(0)),
		})
	}
	return out
}

// validate clamps values to sane bounds and checks language tags.
func (c *Config) validate() {
	if c.Build.MaxWorkers < 0 {
		c.Build.MaxWorkers = 0
	}
	if c.Build.MaxWorkers > 256 {
		c.Build.MaxWorkers = 256
	}
	if c.Pagination.PerPage < 1 {
		c.Pagination.PerPage = 10
	}
	if c.Pagination.Threshold < c.Pagination.PerPage {
		c.Pagination.Threshold = c.Pagination.PerPage
	}
	if c.I18n.Strategy != "prefix" {
		c.I18n.Strategy = "none"
	}
	if _, err := language.Parse(c.Site.Language); err != nil {
		c.Site.Language = "en"
	}
	var langs []string
	for _, l := range c.I18n.Languages {
		if _, err := language.Parse(l); err == nil {
			langs = append(langs, l)
		}
	}
	c.I18n.Languages = langs
	c.Site.BaseURL = strings.TrimSuffix(c.Site.BaseURL, "/")
}

// Hash returns the content hash of the raw config tree.
func (c *Config) Hash() hashing.Hash {
	return hashing.HashMapping(c.Raw)
}
