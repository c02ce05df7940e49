package templates

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// themeManifest is the parsed theme.toml.
type themeManifest struct {
	Name    string `toml:"name"`
	Extends string `toml:"extends"`
}

// ThemeChain resolves the template search path: the active theme's
// templates directory, its parents in declared inheritance order, then
// the site-local templates directory. First match wins on lookup.
func ThemeChain(fs afero.Fs, themesDir, themeName, siteTemplatesDir string) ([]string, error) {
	var dirs []string
	seen := map[string]bool{}

	name := themeName
	for name != "" && !seen[name] {
		seen[name] = true
		themeRoot := filepath.Join(themesDir, name)
		dirs = append(dirs, filepath.Join(themeRoot, "templates"))

		manifestPath := filepath.Join(themeRoot, "theme.toml")
		data, err := afero.ReadFile(fs, manifestPath)
		if err != nil {
			break // theme without a manifest ends the chain
		}
		var m themeManifest
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid theme.toml for %s: %w", name, err)
		}
		name = m.Extends
	}

	if siteTemplatesDir != "" {
		dirs = append(dirs, siteTemplatesDir)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no template directories resolved (theme %q)", themeName)
	}
	return dirs, nil
}
