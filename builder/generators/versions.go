package generators

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/config"
)

// VersionDescriptor matches the Mike version-selector format.
type VersionDescriptor struct {
	Version   string   `json:"version"`
	Title     string   `json:"title"`
	Aliases   []string `json:"aliases"`
	URLPrefix string   `json:"url_prefix"`
}

// WriteVersionsJSON emits versions.json for the version selector.
func WriteVersionsJSON(fs afero.Fs, site *config.SiteData) error {
	ver := site.Config.Versioning
	if !ver.Enabled || !ver.EmitVersionsJSON {
		return nil
	}

	descriptors := make([]VersionDescriptor, 0, len(ver.Sections))
	for _, v := range ver.Sections {
		prefix := "/" + v + "/"
		if ver.DeployPrefix != "" {
			prefix = "/" + strings.Trim(ver.DeployPrefix, "/") + prefix
		}
		descriptors = append(descriptors, VersionDescriptor{
			Version:   v,
			Title:     v,
			Aliases:   []string{},
			URLPrefix: prefix,
		})
	}

	data, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return err
	}
	return atomicio.WriteBytes(fs, filepath.Join(site.OutputDir, "versions.json"), append(data, '\n'))
}

// WriteRootRedirect emits a meta-refresh index.html pointing at the
// newest version. Only written when versioning and default_redirect are
// both enabled and no page already owns the root.
func WriteRootRedirect(fs afero.Fs, site *config.SiteData) error {
	ver := site.Config.Versioning
	if !ver.Enabled || !ver.DefaultRedirect || len(ver.Sections) == 0 {
		return nil
	}
	target := "/" + ver.Sections[0] + "/"

	rootIndex := filepath.Join(site.OutputDir, "index.html")
	if ok, _ := afero.Exists(fs, rootIndex); ok {
		return nil
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url=%s">
<link rel="canonical" href="%s">
</head>
<body>Redirecting to <a href="%s">%s</a></body>
</html>
`, target, target, target, target)
	return atomicio.WriteBytes(fs, rootIndex, []byte(html))
}
