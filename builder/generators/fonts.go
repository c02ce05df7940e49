package generators

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
)

// fontFormats maps file extensions to @font-face format hints.
var fontFormats = map[string]string{
	".woff2": "woff2",
	".woff":  "woff",
	".ttf":   "truetype",
	".otf":   "opentype",
}

// WriteFontCSS copies configured font files into the output and emits
// fonts/fonts.css with one @font-face rule per entry. Missing font files
// are skipped with the returned warning list; the build never fails here.
func WriteFontCSS(fs afero.Fs, site *config.SiteData) ([]string, error) {
	fonts := site.Config.Fonts
	if len(fonts) == 0 {
		return nil, nil
	}

	var warnings []string
	var rules []string
	for _, f := range fonts {
		if f.Family == "" || f.File == "" {
			warnings = append(warnings, "font entry missing family or file, skipped")
			continue
		}
		src := filepath.Join(site.RootPath, filepath.FromSlash(f.File))
		data, err := afero.ReadFile(fs, src)
		if err != nil {
			if os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("font file %s not found, skipped", f.File))
				continue
			}
			return warnings, err
		}

		name := filepath.Base(f.File)
		if err := atomicio.WriteBytes(fs, filepath.Join(site.OutputDir, "fonts", name), data); err != nil {
			return warnings, err
		}

		format := fontFormats[strings.ToLower(filepath.Ext(name))]
		srcDecl := fmt.Sprintf("url('/fonts/%s')", name)
		if format != "" {
			srcDecl += fmt.Sprintf(" format('%s')", format)
		}
		rules = append(rules, fmt.Sprintf(`@font-face {
  font-family: '%s';
  font-weight: %s;
  font-style: %s;
  font-display: swap;
  src: %s;
}`, f.Family, f.Weight, f.Style, srcDecl))
	}

	if len(rules) == 0 {
		return warnings, nil
	}
	css := strings.Join(rules, "\n\n") + "\n"
	return warnings, atomicio.WriteBytes(fs, filepath.Join(site.OutputDir, "fonts", "fonts.css"), []byte(css))
}
