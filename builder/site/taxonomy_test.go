package site

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/models"
)

func datedPage(source, section string, tags []string, date string) *models.Page {
	p := &models.Page{SourcePath: source, SectionPath: section, Tags: tags}
	if date != "" {
		t, _ := time.Parse("2006-01-02", date)
		p.Date = t
		p.HasDate = true
	}
	return p
}

func TestTagIndexOrdering(t *testing.T) {
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/blog/old.md", "blog", []string{"Go"}, "2023-01-01"))
	addPage(bc, datedPage("content/blog/new.md", "blog", []string{"Go"}, "2024-06-01"))
	addPage(bc, datedPage("content/blog/undated.md", "blog", []string{"Go"}, ""))

	idx := NewTagIndex()
	idx.Build(bc)

	got := idx.PagesFor("go")
	want := []string{"content/blog/new.md", "content/blog/old.md", "content/blog/undated.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bucket order = %v, want %v", got, want)
	}
}

func TestTagIndexSlugifiesTags(t *testing.T) {
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/a.md", "", []string{"Static Sites"}, ""))

	idx := NewTagIndex()
	idx.Build(bc)

	if tags := idx.Tags(); len(tags) != 1 || tags[0] != "static-sites" {
		t.Errorf("tags = %v", tags)
	}
	if len(idx.PagesFor("Static Sites")) != 1 {
		t.Error("lookup by original tag name failed")
	}
}

func TestTagIndexRebuildDropsRemovedTags(t *testing.T) {
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/a.md", "", []string{"go"}, ""))
	addPage(bc, datedPage("content/b.md", "", []string{"web"}, ""))

	idx := NewTagIndex()
	idx.Build(bc)

	// The go page loses its tag; a rebuild from the current page set
	// must empty the go bucket and keep the web bucket.
	bc.Pages["content/a.md"].Tags = nil
	idx.Build(bc)

	if len(idx.PagesFor("go")) != 0 {
		t.Error("removed tag survived the rebuild")
	}
	if len(idx.PagesFor("web")) != 1 {
		t.Error("unrelated bucket lost")
	}
	if tags := idx.Tags(); len(tags) != 1 || tags[0] != "web" {
		t.Errorf("tags = %v", tags)
	}
}

func TestSynthesizeTagPages(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := afero.NewMemMapFs()
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/blog/a.md", "blog", []string{"go"}, "2024-01-01"))

	idx := NewTagIndex()
	idx.Build(bc)
	if err := SynthesizeTagPages(fs, site, bc, idx); err != nil {
		t.Fatal(err)
	}

	sec, ok := bc.Sections["tags/go"]
	if !ok {
		t.Fatal("tag section missing")
	}
	if sec.IndexPage == "" {
		t.Fatal("tag section has no index page")
	}
	page := bc.Pages[sec.IndexPage]
	if !page.Virtual || page.Template != "tag.html" {
		t.Errorf("tag page = %+v", page)
	}
	// the member page fills the listing after the index page
	found := false
	for _, p := range sec.Pages {
		if p == "content/blog/a.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("member page missing from tag section: %v", sec.Pages)
	}
}

func TestSynthesizeTagPagesListingSection(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := afero.NewMemMapFs()
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/blog/a.md", "blog", []string{"go"}, "2024-01-01"))

	idx := NewTagIndex()
	idx.Build(bc)
	if err := SynthesizeTagPages(fs, site, bc, idx); err != nil {
		t.Fatal(err)
	}

	tagsSec, ok := bc.Sections["tags"]
	if !ok {
		t.Fatal("tags listing section missing")
	}
	if tagsSec.IndexPage == "" {
		t.Fatal("tags listing section has no index page")
	}
	if page := bc.Pages[tagsSec.IndexPage]; page == nil || !page.Virtual {
		t.Errorf("tags index page = %+v", page)
	}
}

func TestSynthesizeTagPagesNoTags(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := afero.NewMemMapFs()
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/blog/a.md", "blog", nil, "2024-01-01"))

	idx := NewTagIndex()
	idx.Build(bc)
	if err := SynthesizeTagPages(fs, site, bc, idx); err != nil {
		t.Fatal(err)
	}
	if _, ok := bc.Sections["tags"]; ok {
		t.Error("tags section registered with no tagged pages")
	}
}

func TestSynthesizeTagPagesPrunesRemovedTags(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	fs := afero.NewMemMapFs()
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	addPage(bc, datedPage("content/blog/a.md", "blog", []string{"go"}, "2024-01-01"))

	idx := NewTagIndex()
	idx.Build(bc)
	if err := SynthesizeTagPages(fs, site, bc, idx); err != nil {
		t.Fatal(err)
	}

	// Simulate last build's output for a tag that is gone now.
	staleOut := filepath.Join(site.OutputDir, "tags", "web", "index.html")
	if err := afero.WriteFile(fs, staleOut, []byte("<html></html>"), 0644); err != nil {
		t.Fatal(err)
	}
	staleGen := filepath.Join(site.GeneratedDir(), "tags", "web", "_index.md")
	if err := afero.WriteFile(fs, staleGen, []byte("---\ntitle: web\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}

	bc2 := models.NewBuildContext()
	bc2.Sections[""] = &models.Section{Name: "root"}
	addPage(bc2, datedPage("content/blog/a.md", "blog", []string{"go"}, "2024-01-01"))
	idx2 := NewTagIndex()
	idx2.Build(bc2)
	if err := SynthesizeTagPages(fs, site, bc2, idx2); err != nil {
		t.Fatal(err)
	}

	if ok, _ := afero.Exists(fs, staleGen); ok {
		t.Error("stale generated tag source not pruned")
	}
	if ok, _ := afero.Exists(fs, staleOut); ok {
		t.Error("stale tag output not pruned")
	}
	liveGen := filepath.Join(site.GeneratedDir(), "tags", "go", "_index.md")
	if ok, _ := afero.Exists(fs, liveGen); !ok {
		t.Error("live tag source removed by pruning")
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Go":           "go",
		"Static Sites": "static-sites",
		"snake_case":   "snake-case",
		"  padded  ":   "padded",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
