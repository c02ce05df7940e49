// Package render turns pages into HTML: markdown conversion, templated
// rendering with provenance capture, atomic output writes, and asset
// reference extraction from the rendered HTML.
package render

import (
	"bytes"
	"fmt"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/gohugoio/hugo-goldmark-extensions/passthrough"
	admonitions "github.com/stefanfritsch/goldmark-admonitions"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

// markdown returns the shared converter. goldmark instances are safe for
// concurrent use once constructed.
func markdown() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				meta.Meta,
				&admonitions.Extender{},
				highlighting.NewHighlighting(
					highlighting.WithStyle("catppuccin-mocha"),
					highlighting.WithFormatOptions(
						chromahtml.WithClasses(true),
						chromahtml.WithLineNumbers(false),
					),
				),
				passthrough.New(passthrough.Config{
					InlineDelimiters: []passthrough.Delimiters{
						{Open: "$", Close: "$"},
						{Open: "\\(", Close: "\\)"},
					},
					BlockDelimiters: []passthrough.Delimiters{
						{Open: "$$", Close: "$$"},
						{Open: "\\[", Close: "\\]"},
					},
				}),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		)
	})
	return md
}

// MarkdownToHTML converts markdown body bytes (frontmatter already
// stripped) to HTML.
func MarkdownToHTML(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown().Convert(source, &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return buf.String(), nil
}
