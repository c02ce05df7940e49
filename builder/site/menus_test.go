package site

import (
	"testing"

	"github.com/bengal-ssg/bengal/builder/models"
)

func TestBuildMenusFromConfig(t *testing.T) {
	site := newTestSite(t, `
[site]
title = "t"
baseurl = "/docs"

[[menu.main]]
name = "Blog"
url = "/blog/"
weight = 2

[[menu.main]]
name = "Home"
url = "/"
weight = 1
`)
	bc := models.NewBuildContext()
	menus := BuildMenus(site, bc)

	main := menus["main"]
	if len(main) != 2 {
		t.Fatalf("main menu = %v", main)
	}
	if main[0].Name != "Home" || main[1].Name != "Blog" {
		t.Errorf("menu not sorted by weight: %v", main)
	}
	if main[1].URL != "/docs/blog/" {
		t.Errorf("baseurl not applied: %q", main[1].URL)
	}
}

func TestBuildMenusAutoFromSections(t *testing.T) {
	site := newTestSite(t, "[site]\ntitle = \"t\"\n")
	bc := models.NewBuildContext()
	bc.Sections[""] = &models.Section{Name: "root"}
	registerSection(bc, "posts")
	registerSection(bc, "about")

	menus := BuildMenus(site, bc)
	main := menus["main"]
	if len(main) != 2 {
		t.Fatalf("auto menu = %v", main)
	}
	if main[0].Name != "About" || main[1].Name != "Posts" {
		t.Errorf("auto menu order = %v", main)
	}
	if main[1].URL != "/posts/" {
		t.Errorf("auto menu url = %q", main[1].URL)
	}
}
