// Package health runs post-build validators over the output tree. Each
// validator is registered under a profile name and can be toggled per
// name through the health_check config table.
package health

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/hashing"
	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// Result is one validator finding.
type Result struct {
	Validator string
	Severity  Severity
	Item      string
	Message   string
}

// Severity splits findings into warnings and errors.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Validator inspects the built site and reports findings.
type Validator func(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) []Result

// registry holds the built-in validators by name.
var registry = map[string]Validator{
	"output-paths":    validateOutputPaths,
	"section-indexes": validateSectionIndexes,
	"manifest-files":  validateManifestFiles,
}

// Run executes every enabled validator and returns findings sorted by
// validator then item.
func Run(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) []Result {
	hc := site.Config.HealthCheck
	if !hc.Enabled {
		return nil
	}

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []Result
	for _, name := range names {
		if hc.Validators != nil {
			if on, listed := hc.Validators[name]; listed && !on {
				continue
			}
		}
		results = append(results, registry[name](fs, site, bc)...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Validator != results[j].Validator {
			return results[i].Validator < results[j].Validator
		}
		return results[i].Item < results[j].Item
	})
	return results
}

// HasErrors reports whether any finding is error severity.
func HasErrors(results []Result) bool {
	for _, r := range results {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateOutputPaths checks that every page's output path is absolute,
// under the output dir, and present on disk.
func validateOutputPaths(fs afero.Fs, site *config.SiteData, bc *models.BuildContext) []Result {
	var out []Result
	for _, path := range sortedPageKeys(bc) {
		page := bc.Pages[path]
		if !filepath.IsAbs(page.OutputPath) {
			out = append(out, Result{
				Validator: "output-paths", Severity: SeverityError, Item: path,
				Message: fmt.Sprintf("output path %q is not absolute", page.OutputPath),
			})
			continue
		}
		if !utils.IsSubPath(site.OutputDir, page.OutputPath) {
			out = append(out, Result{
				Validator: "output-paths", Severity: SeverityError, Item: path,
				Message: fmt.Sprintf("output path %q escapes the output directory", page.OutputPath),
			})
			continue
		}
		if ok, _ := afero.Exists(fs, page.OutputPath); !ok {
			out = append(out, Result{
				Validator: "output-paths", Severity: SeverityWarning, Item: path,
				Message: "page has no output file (render skipped or failed)",
			})
		}
	}
	return out
}

// validateSectionIndexes checks the non-root index-page invariant.
func validateSectionIndexes(_ afero.Fs, _ *config.SiteData, bc *models.BuildContext) []Result {
	var out []Result
	keys := make([]string, 0, len(bc.Sections))
	for k := range bc.Sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sec := bc.Sections[key]
		if sec.IsRoot() || sec.IndexPage != "" {
			continue
		}
		out = append(out, Result{
			Validator: "section-indexes", Severity: SeverityError, Item: key,
			Message: "section has no index page after finalization",
		})
	}
	return out
}

// validateManifestFiles checks that every manifest entry points at an
// existing output file and, when fingerprinted, that the fingerprint
// matches the file contents.
func validateManifestFiles(fs afero.Fs, site *config.SiteData, _ *models.BuildContext) []Result {
	manifest := assets.LoadManifest(fs, filepath.Join(site.OutputDir, "asset-manifest.json"))
	if manifest == nil {
		return []Result{{
			Validator: "manifest-files", Severity: SeverityWarning,
			Message: "asset manifest missing or unreadable",
		}}
	}

	var out []Result
	for _, logical := range manifest.LogicalPaths() {
		entry, _ := manifest.Get(logical)
		abs := filepath.Join(site.OutputDir, filepath.FromSlash(entry.OutputPath))
		data, err := afero.ReadFile(fs, abs)
		if err != nil {
			out = append(out, Result{
				Validator: "manifest-files", Severity: SeverityError, Item: logical,
				Message: fmt.Sprintf("manifest entry points at missing file %s", entry.OutputPath),
			})
			continue
		}
		if entry.Fingerprint != "" && entry.Fingerprint != hashing.Fingerprint(data) {
			out = append(out, Result{
				Validator: "manifest-files", Severity: SeverityError, Item: logical,
				Message: "fingerprint does not match file contents",
			})
		}
	}
	return out
}

func sortedPageKeys(bc *models.BuildContext) []string {
	keys := make([]string, 0, len(bc.Pages))
	for k := range bc.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders findings for terminal output.
func Format(results []Result) string {
	if len(results) == 0 {
		return "✅ health check passed"
	}
	var b strings.Builder
	for _, r := range results {
		icon := "⚠️"
		if r.Severity == SeverityError {
			icon = "❌"
		}
		if r.Item != "" {
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", icon, r.Validator, r.Item, r.Message)
		} else {
			fmt.Fprintf(&b, "%s [%s] %s\n", icon, r.Validator, r.Message)
		}
	}
	return b.String()
}
