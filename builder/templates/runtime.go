// Package templates loads templates over a theme-inheritance chain and
// renders them with dependency capture: every template, partial, and data
// read reports through an AccessObserver so provenance stays complete.
package templates

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/frontmatter"
)

// AccessKind classifies an observed resource access.
type AccessKind string

const (
	AccessTemplate AccessKind = "template"
	AccessPartial  AccessKind = "partial"
	AccessData     AccessKind = "data"
)

// AccessObserver receives every resource access during one render.
type AccessObserver func(kind AccessKind, resolvedPath string)

// Engine is the pluggable template capability the orchestrator depends
// on. The html/template-backed Runtime below is the default.
type Engine interface {
	Lookup(name string) (string, bool)
	Render(name string, ctx interface{}, observe AccessObserver) (string, error)
}

// Runtime renders html/template files found along the theme chain.
type Runtime struct {
	fs      afero.Fs
	dirs    []string // search path, first match wins
	dataDir string
	baseURL string

	manifest *assets.Manifest

	// ProcessImage backs the image template func: given a source path,
	// an operation, and a spec string it returns the final URL. Nil
	// disables image processing in templates.
	ProcessImage func(src, op, spec string) (string, error)

	mu     sync.RWMutex
	source map[string][]byte // resolved path -> file contents
}

// NewRuntime builds a runtime over the resolved template search path.
func NewRuntime(fs afero.Fs, dirs []string, dataDir, baseURL string, manifest *assets.Manifest) *Runtime {
	return &Runtime{
		fs:       fs,
		dirs:     dirs,
		dataDir:  dataDir,
		baseURL:  baseURL,
		manifest: manifest,
		source:   make(map[string][]byte),
	}
}

// Lookup resolves a template name along the chain.
func (r *Runtime) Lookup(name string) (string, bool) {
	for _, dir := range r.dirs {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if ok, _ := afero.Exists(r.fs, path); ok {
			return path, true
		}
	}
	return "", false
}

func (r *Runtime) read(path string) ([]byte, error) {
	r.mu.RLock()
	data, ok := r.source[path]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.source[path] = data
	r.mu.Unlock()
	return data, nil
}

// Render loads and executes a template. The observer (may be nil) sees
// the top-level template, every partial, and every data read, in causal
// order within this render.
func (r *Runtime) Render(name string, ctx interface{}, observe AccessObserver) (string, error) {
	if observe == nil {
		observe = func(AccessKind, string) {}
	}

	path, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("template %q not found in %s", name, strings.Join(r.dirs, ", "))
	}
	observe(AccessTemplate, path)

	source, err := r.read(path)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Funcs(r.funcMap(observe)).Parse(string(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// funcMap binds the per-render helpers. partial and data close over the
// observer so nested access still reports.
func (r *Runtime) funcMap(observe AccessObserver) template.FuncMap {
	return template.FuncMap{
		"lower":     strings.ToLower,
		"hasPrefix": strings.HasPrefix,
		"now":       time.Now,
		"url": func(p string) string {
			return NormalizeURL(ApplyBaseURL(r.baseURL, p))
		},
		"asset": func(logical string) string {
			key := strings.TrimPrefix(strings.TrimPrefix(logical, "/"), "assets/")
			// unmapped assets land under output/assets/ unmodified
			out := "/assets/" + key
			if r.manifest != nil {
				if e, ok := r.manifest.Get(key); ok {
					out = "/" + e.OutputPath
				}
			}
			return NormalizeURL(ApplyBaseURL(r.baseURL, out))
		},
		"partial": func(name string, ctx interface{}) (template.HTML, error) {
			path, ok := r.Lookup(filepath.ToSlash(filepath.Join("partials", name)))
			if !ok {
				// fall back to a chain-root partial
				path, ok = r.Lookup(name)
				if !ok {
					return "", fmt.Errorf("partial %q not found", name)
				}
			}
			observe(AccessPartial, path)
			source, err := r.read(path)
			if err != nil {
				return "", err
			}
			tmpl, err := template.New(name).Funcs(r.funcMap(observe)).Parse(string(source))
			if err != nil {
				return "", fmt.Errorf("failed to parse partial %s: %w", name, err)
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, ctx); err != nil {
				return "", fmt.Errorf("failed to render partial %s: %w", name, err)
			}
			return template.HTML(buf.String()), nil
		},
		"data": func(name string) (interface{}, error) {
			return r.loadData(name, observe)
		},
		"image": func(src, op, spec string) (string, error) {
			if r.ProcessImage == nil {
				return src, nil
			}
			url, err := r.ProcessImage(src, op, spec)
			if err != nil {
				return "", err
			}
			return NormalizeURL(ApplyBaseURL(r.baseURL, url)), nil
		},
	}
}

// loadData reads data/<name>.{yaml,yml,json,toml,csv}, first hit wins.
func (r *Runtime) loadData(name string, observe AccessObserver) (interface{}, error) {
	for _, ext := range []string{".yaml", ".yml", ".json", ".toml", ".csv"} {
		path := filepath.Join(r.dataDir, name+ext)
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			continue
		}
		// observe the resolved path so provenance can re-hash the file
		observe(AccessData, path)

		switch ext {
		case ".yaml", ".yml":
			var out map[string]interface{}
			if err := yaml.Unmarshal(data, &out); err != nil {
				return nil, fmt.Errorf("invalid data file %s: %w", path, err)
			}
			return frontmatter.NormalizeMap(out), nil
		case ".json":
			var out interface{}
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, fmt.Errorf("invalid data file %s: %w", path, err)
			}
			return out, nil
		case ".toml":
			var out map[string]interface{}
			if err := toml.Unmarshal(data, &out); err != nil {
				return nil, fmt.Errorf("invalid data file %s: %w", path, err)
			}
			return frontmatter.NormalizeMap(out), nil
		case ".csv":
			rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			if err != nil {
				return nil, fmt.Errorf("invalid data file %s: %w", path, err)
			}
			return rows, nil
		}
	}
	return nil, fmt.Errorf("data file %q not found under %s", name, r.dataDir)
}
