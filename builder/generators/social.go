package generators

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/models"
)

const (
	cardWidth  = 1200
	cardHeight = 630

	cardMarginX      = 80.0
	cardHeaderY      = 90.0
	cardTitleStartY  = 200.0
	cardTitleSize    = 72.0
	cardDescSize     = 36.0
	cardBrandSize    = 28.0
	cardDateSize     = 24.0
	cardWebpQuality  = 85
	cardDotSpacing   = 32
	cardDotRadius    = 2.0
	cardTitleLeading = 1.1
	cardDescLeading  = 1.4
)

// Cards renders social preview images for pages, one webp card per page
// under output/social-cards/. The configured TTF font backs all text.
type Cards struct {
	fs   afero.Fs
	site *config.SiteData
	font *truetype.Font
}

// NewCards loads and parses the configured card font. A missing or
// unparseable font is an error; callers treat it as "cards off".
func NewCards(fs afero.Fs, site *config.SiteData) (*Cards, error) {
	sc := site.Config.SocialCards
	if sc.Font == "" {
		return nil, fmt.Errorf("social_cards.font is not set")
	}
	path := filepath.Join(site.RootPath, filepath.FromSlash(sc.Font))
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card font %s: %w", sc.Font, err)
	}
	font, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse card font %s: %w", sc.Font, err)
	}
	return &Cards{fs: fs, site: site, font: font}, nil
}

// Path is the absolute output path of a page's card.
func (c *Cards) Path(page *models.Page) string {
	rel := strings.Trim(page.URL(c.site.OutputDir), "/")
	if rel == "" {
		rel = "index"
	}
	return filepath.Join(c.site.OutputDir, "social-cards", filepath.FromSlash(rel)+".webp")
}

// Generate draws and writes the card for one page.
func (c *Cards) Generate(page *models.Page) error {
	sc := c.site.Config.SocialCards
	dc := gg.NewContext(cardWidth, cardHeight)

	colors := append([]string{sc.Background}, sc.Gradient...)
	drawCardGradient(dc, cardWidth, cardHeight, colors, sc.Angle)
	drawCardDots(dc, cardWidth, cardHeight)

	textColor := hexToRGBA(sc.TextColor)
	secondary := textColor
	secondary.A = uint8(float64(textColor.A) * 0.75)
	maxWidth := float64(cardWidth) - cardMarginX*2

	c.setFace(dc, cardBrandSize)
	dc.SetColor(textColor)
	dc.DrawString(c.site.Config.Site.Title, cardMarginX, cardHeaderY)

	if page.HasDate {
		c.setFace(dc, cardDateSize)
		dateStr := page.Date.UTC().Format("Jan 2, 2006")
		w, _ := dc.MeasureString(dateStr)
		dc.DrawString(dateStr, float64(cardWidth)-cardMarginX-w, cardHeaderY)
	}

	c.setFace(dc, cardTitleSize)
	dc.SetColor(textColor)
	dc.DrawStringWrapped(page.Title, cardMarginX, cardTitleStartY, 0, 0, maxWidth, cardTitleLeading, gg.AlignLeft)
	titleLines := dc.WordWrap(page.Title, maxWidth)
	titleHeight := float64(len(titleLines)) * cardTitleSize * cardTitleLeading

	if page.Description != "" {
		c.setFace(dc, cardDescSize)
		dc.SetColor(secondary)
		dc.DrawStringWrapped(page.Description, cardMarginX, cardTitleStartY+titleHeight+25, 0, 0, maxWidth, cardDescLeading, gg.AlignLeft)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, dc.Image(), &webp.Options{Lossless: false, Quality: cardWebpQuality}); err != nil {
		return err
	}
	return atomicio.WriteBytes(c.fs, c.Path(page), buf.Bytes())
}

func (c *Cards) setFace(dc *gg.Context, points float64) {
	face := truetype.NewFace(c.font, &truetype.Options{Size: points, DPI: 72})
	dc.SetFontFace(face)
}

// hexToRGBA parses a #rrggbb color; malformed input yields opaque black.
func hexToRGBA(hex string) color.RGBA {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.RGBA{0, 0, 0, 255}
	}
	r, _ := strconv.ParseUint(hex[0:2], 16, 8)
	g, _ := strconv.ParseUint(hex[2:4], 16, 8)
	b, _ := strconv.ParseUint(hex[4:6], 16, 8)
	return color.RGBA{uint8(r), uint8(g), uint8(b), 255}
}

// drawCardGradient fills the context with a linear gradient; fewer than
// two colors fall back to a solid fill.
func drawCardGradient(dc *gg.Context, w, h int, colors []string, angle int) {
	if len(colors) < 2 {
		bg := "#faf8f5"
		if len(colors) == 1 && colors[0] != "" {
			bg = colors[0]
		}
		dc.SetColor(hexToRGBA(bg))
		dc.Clear()
		return
	}

	parsed := make([]color.RGBA, len(colors))
	for i, c := range colors {
		parsed[i] = hexToRGBA(c)
	}

	angle = angle % 360
	if angle < 0 {
		angle += 360
	}
	horizontal := (angle >= 45 && angle < 135) || (angle >= 225 && angle < 315)
	steps := w
	if horizontal {
		steps = h
	}

	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		pos := t * float64(len(parsed)-1)
		idx := int(pos)
		next := idx + 1
		if next >= len(parsed) {
			next = len(parsed) - 1
		}
		local := pos - float64(idx)
		c1, c2 := parsed[idx], parsed[next]

		r := float64(c1.R)*(1-local) + float64(c2.R)*local
		g := float64(c1.G)*(1-local) + float64(c2.G)*local
		b := float64(c1.B)*(1-local) + float64(c2.B)*local
		dc.SetRGBA(r/255, g/255, b/255, 1)

		if horizontal {
			dc.DrawRectangle(0, float64(i), float64(w), 1)
		} else {
			dc.DrawRectangle(float64(i), 0, 1, float64(h))
		}
		dc.Fill()
	}
}

// drawCardDots overlays the dot grid texture.
func drawCardDots(dc *gg.Context, w, h int) {
	dc.SetRGBA255(120, 100, 80, 70)
	for x := cardDotSpacing / 2; x < w; x += cardDotSpacing {
		for y := cardDotSpacing / 2; y < h; y += cardDotSpacing {
			dc.DrawCircle(float64(x), float64(y), cardDotRadius)
			dc.Fill()
		}
	}
}
