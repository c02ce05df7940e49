package health

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/assets"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/hashing"
	"github.com/bengal-ssg/bengal/builder/models"
)

func healthSite(t *testing.T, configToml string) *config.SiteData {
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

func findings(results []Result, validator string) []Result {
	var out []Result
	for _, r := range results {
		if r.Validator == validator {
			out = append(out, r)
		}
	}
	return out
}

func TestRunDisabled(t *testing.T) {
	site := healthSite(t, "[site]\ntitle = \"t\"\n")
	if got := Run(afero.NewMemMapFs(), site, models.NewBuildContext()); got != nil {
		t.Errorf("disabled health check returned %v", got)
	}
}

func TestValidateOutputPaths(t *testing.T) {
	site := healthSite(t, "[site]\ntitle = \"t\"\n\n[health_check]\nenabled = true\n")
	fs := afero.NewMemMapFs()

	bc := models.NewBuildContext()
	bc.Pages["content/ok.md"] = &models.Page{
		SourcePath: "content/ok.md",
		OutputPath: "/site/public/ok/index.html",
	}
	bc.Pages["content/missing.md"] = &models.Page{
		SourcePath: "content/missing.md",
		OutputPath: "/site/public/missing/index.html",
	}
	bc.Pages["content/escape.md"] = &models.Page{
		SourcePath: "content/escape.md",
		OutputPath: "/elsewhere/index.html",
	}
	if err := afero.WriteFile(fs, "/site/public/ok/index.html", []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}

	results := findings(Run(fs, site, bc), "output-paths")
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	// sorted by item: escape before missing
	if results[0].Item != "content/escape.md" || results[0].Severity != SeverityError {
		t.Errorf("escape finding = %+v", results[0])
	}
	if results[1].Item != "content/missing.md" || results[1].Severity != SeverityWarning {
		t.Errorf("missing finding = %+v", results[1])
	}
}

func TestValidateSectionIndexes(t *testing.T) {
	site := healthSite(t, "[site]\ntitle = \"t\"\n\n[health_check]\nenabled = true\n")
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	bc.Sections["ok"] = &models.Section{Name: "ok", Path: "ok", IndexPage: "content/ok/_index.md"}
	bc.Sections["bad"] = &models.Section{Name: "bad", Path: "bad"}

	results := findings(Run(afero.NewMemMapFs(), site, bc), "section-indexes")
	if len(results) != 1 || results[0].Item != "bad" {
		t.Errorf("results = %+v", results)
	}
	if !HasErrors(results) {
		t.Error("missing index should be an error")
	}
}

func TestValidateManifestFiles(t *testing.T) {
	site := healthSite(t, "[site]\ntitle = \"t\"\n\n[health_check]\nenabled = true\n")
	fs := afero.NewMemMapFs()

	good := []byte("body { margin: 0; }")
	if err := afero.WriteFile(fs, "/site/public/assets/css/good.css", good, 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/site/public/assets/js/tampered.js", []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	m := assets.NewManifest()
	m.SetEntry("css/good.css", "assets/css/good.css", hashing.Fingerprint(good), int64(len(good)))
	m.SetEntry("js/tampered.js", "assets/js/tampered.js", "deadbeef", 8)
	m.SetEntry("js/gone.js", "assets/js/gone.js", "", 0)
	if err := m.Write(fs, "/site/public/asset-manifest.json"); err != nil {
		t.Fatal(err)
	}

	results := findings(Run(fs, site, models.NewBuildContext()), "manifest-files")
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, r := range results {
		if r.Severity != SeverityError {
			t.Errorf("finding not an error: %+v", r)
		}
	}
}

func TestValidatorsToggle(t *testing.T) {
	site := healthSite(t, `
[site]
title = "t"

[health_check.enabled]
manifest-files = false
`)
	// With manifest-files off, a missing manifest produces no findings.
	bc := models.NewBuildContext()
	results := Run(afero.NewMemMapFs(), site, bc)
	if len(findings(results, "manifest-files")) != 0 {
		t.Errorf("disabled validator ran: %+v", results)
	}
}

func TestFormat(t *testing.T) {
	if !strings.Contains(Format(nil), "✅") {
		t.Error("clean run should render the success line")
	}
	out := Format([]Result{
		{Validator: "output-paths", Severity: SeverityError, Item: "a.md", Message: "broken"},
		{Validator: "manifest-files", Severity: SeverityWarning, Message: "missing"},
	})
	if !strings.Contains(out, "❌") || !strings.Contains(out, "⚠️") {
		t.Errorf("format output = %q", out)
	}
}
