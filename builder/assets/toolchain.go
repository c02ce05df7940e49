package assets

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/models"
	"github.com/bengal-ssg/bengal/builder/utils"
)

// RunToolchain runs the optional esbuild pass over TS/JSX/modern-JS entry
// points. Outputs land in a temp root and feed back through the normal
// pipeline as additional assets; the returned cleanup removes the temp
// root once the pipeline has consumed them. Hook failures are reported
// but never fail the build.
func RunToolchain(srcFs afero.Fs, assetsDir string, stats *models.BuildStats) ([]*models.Asset, func()) {
	var entryPoints []string
	err := afero.Walk(srcFs, assetsDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ts", ".tsx", ".jsx", ".mjs":
			entryPoints = append(entryPoints, path)
		}
		return nil
	})
	if err != nil || len(entryPoints) == 0 {
		return nil, nil
	}

	tmpRoot, err := os.MkdirTemp("", "bengal-toolchain-")
	if err != nil {
		stats.RecordWarning("⚠️ toolchain temp dir failed: %v", err)
		return nil, nil
	}
	cleanup := func() { _ = os.RemoveAll(tmpRoot) }

	result := api.Build(api.BuildOptions{
		EntryPoints: entryPoints,
		Bundle:      true,
		Write:       true,
		Outdir:      tmpRoot,
		Outbase:     assetsDir,
		Format:      api.FormatESModule,
		Loader: map[string]api.Loader{
			".woff2": api.LoaderFile,
			".woff":  api.LoaderFile,
			".png":   api.LoaderFile,
			".webp":  api.LoaderFile,
			".svg":   api.LoaderFile,
		},
	})
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			stats.RecordWarning("⚠️ toolchain: %s", e.Text)
		}
		cleanup()
		return nil, nil
	}

	var extra []*models.Asset
	_ = filepath.Walk(tmpRoot, func(path string, info fs.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, relErr := utils.SafeRel(tmpRoot, path)
		if relErr != nil {
			return nil
		}
		a := &models.Asset{SourcePath: path, LogicalPath: utils.NormalizePath(rel)}
		models.ClassifyAsset(a)
		extra = append(extra, a)
		return nil
	})
	return extra, cleanup
}
