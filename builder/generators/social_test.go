package generators

import (
	"image/color"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/models"
)

func TestHexToRGBA(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#ffffff", color.RGBA{255, 255, 255, 255}},
		{"#1a2b3c", color.RGBA{0x1a, 0x2b, 0x3c, 255}},
		{"faf8f5", color.RGBA{0xfa, 0xf8, 0xf5, 255}},
		{"#fff", color.RGBA{0, 0, 0, 255}},
		{"", color.RGBA{0, 0, 0, 255}},
		{"not-a-color", color.RGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := hexToRGBA(tt.in); got != tt.want {
			t.Errorf("hexToRGBA(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCardsPath(t *testing.T) {
	site := genSite(t, "[site]\ntitle = \"t\"\n")
	c := &Cards{site: site}

	tests := []struct {
		output string
		want   string
	}{
		{"/site/public/blog/post/index.html", "/site/public/social-cards/blog/post.webp"},
		{"/site/public/index.html", "/site/public/social-cards/index.webp"},
	}
	for _, tt := range tests {
		page := &models.Page{OutputPath: tt.output}
		if got := c.Path(page); got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}
}

func TestNewCardsFontErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	// No font configured.
	site := genSite(t, "[site]\ntitle = \"t\"\n\n[social_cards]\nenabled = true\n")
	if _, err := NewCards(fs, site); err == nil {
		t.Error("expected an error with no font configured")
	}

	// Configured but absent on disk.
	site = genSite(t, "[site]\ntitle = \"t\"\n\n[social_cards]\nenabled = true\nfont = \"assets/fonts/card.ttf\"\n")
	if _, err := NewCards(fs, site); err == nil {
		t.Error("expected an error for a missing font file")
	}

	// Present but not a TTF.
	if err := afero.WriteFile(fs, "/site/assets/fonts/card.ttf", []byte("not a font"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewCards(fs, site)
	if err == nil {
		t.Fatal("expected a parse error for garbage font bytes")
	}
	if !strings.Contains(err.Error(), "card.ttf") {
		t.Errorf("error does not name the font: %v", err)
	}
}
