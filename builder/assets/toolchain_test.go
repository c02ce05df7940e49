package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/models"
)

// The toolchain hook shells into esbuild, which reads the real
// filesystem, so these tests use temp dirs instead of MemMapFs.

func TestRunToolchainNoEntryPoints(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plain.js"), []byte("console.log(1);"), 0644); err != nil {
		t.Fatal(err)
	}
	extra, cleanup := RunToolchain(afero.NewOsFs(), dir, models.NewBuildStats())
	if extra != nil || cleanup != nil {
		t.Errorf("expected no-op without TS/JSX entry points, got %v", extra)
	}
}

func TestRunToolchainCleanupRemovesTempRoot(t *testing.T) {
	dir := t.TempDir()
	tsDir := filepath.Join(dir, "ts")
	if err := os.MkdirAll(tsDir, 0755); err != nil {
		t.Fatal(err)
	}
	src := "const n: number = 1;\nconsole.log(n);\n"
	if err := os.WriteFile(filepath.Join(tsDir, "app.ts"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	stats := models.NewBuildStats()
	extra, cleanup := RunToolchain(afero.NewOsFs(), dir, stats)
	if cleanup == nil {
		t.Fatal("successful run returned no cleanup")
	}
	if len(extra) == 0 {
		t.Fatal("no outputs produced")
	}
	out := extra[0]
	if filepath.Ext(out.SourcePath) != ".js" {
		t.Errorf("unexpected output %s", out.SourcePath)
	}
	if _, err := os.Stat(out.SourcePath); err != nil {
		t.Fatalf("output missing before cleanup: %v", err)
	}

	cleanup()
	if _, err := os.Stat(out.SourcePath); !os.IsNotExist(err) {
		t.Errorf("temp output survived cleanup: %v", err)
	}
}
