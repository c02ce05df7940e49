package config

import (
	"fmt"
	"path/filepath"

	"github.com/bengal-ssg/bengal/builder/hashing"
)

// SiteData is the immutable per-invocation view of the site: the parsed
// config plus resolved absolute paths. Safe to share across goroutines
// without synchronization.
type SiteData struct {
	RootPath   string
	OutputDir  string
	ContentDir string
	AssetsDir  string
	DataDir    string
	CacheDir   string
	ThemesDir  string

	ThemeName  string
	Config     *Config
	ConfigHash hashing.Hash
}

// NewSiteData resolves all site paths relative to rootPath.
func NewSiteData(rootPath string, cfg *Config) (*SiteData, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve site root %s: %w", rootPath, err)
	}

	out := cfg.Build.OutputDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(abs, out)
	}

	return &SiteData{
		RootPath:   abs,
		OutputDir:  out,
		ContentDir: filepath.Join(abs, cfg.Build.ContentDir),
		AssetsDir:  filepath.Join(abs, "assets"),
		DataDir:    filepath.Join(abs, "data"),
		CacheDir:   filepath.Join(abs, ".bengal"),
		ThemesDir:  filepath.Join(abs, "themes"),
		ThemeName:  cfg.ThemeName,
		Config:     cfg,
		ConfigHash: cfg.Hash(),
	}, nil
}

// ContentFilePath maps a site-relative POSIX source path (the page id)
// back to an absolute filesystem path.
func (s *SiteData) ContentFilePath(sourcePath string) string {
	return filepath.Join(s.RootPath, filepath.FromSlash(sourcePath))
}

// GeneratedDir is where synthesized (virtual) pages live.
func (s *SiteData) GeneratedDir() string {
	return filepath.Join(s.CacheDir, "generated")
}

// ProvenanceDir is the provenance store root.
func (s *SiteData) ProvenanceDir() string {
	return filepath.Join(s.CacheDir, "provenance")
}

// ImageCacheDir is the processed-image cache root.
func (s *SiteData) ImageCacheDir() string {
	return filepath.Join(s.CacheDir, "image-cache")
}
