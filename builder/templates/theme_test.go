package templates

import (
	"testing"

	"github.com/spf13/afero"
)

func themeFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestThemeChainInheritance(t *testing.T) {
	fs := themeFs(t, map[string]string{
		"/themes/child/theme.toml":  "name = \"child\"\nextends = \"parent\"\n",
		"/themes/parent/theme.toml": "name = \"parent\"\n",
	})

	dirs, err := ThemeChain(fs, "/themes", "child", "/site/templates")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"/themes/child/templates",
		"/themes/parent/templates",
		"/site/templates",
	}
	if len(dirs) != len(want) {
		t.Fatalf("dirs = %v", dirs)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("dirs[%d] = %q, want %q", i, dirs[i], want[i])
		}
	}
}

func TestThemeChainCycleTerminates(t *testing.T) {
	fs := themeFs(t, map[string]string{
		"/themes/a/theme.toml": "extends = \"b\"\n",
		"/themes/b/theme.toml": "extends = \"a\"\n",
	})
	dirs, err := ThemeChain(fs, "/themes", "a", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Errorf("cyclic inheritance should visit each theme once, got %v", dirs)
	}
}

func TestThemeChainNoManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	dirs, err := ThemeChain(fs, "/themes", "bare", "/site/templates")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || dirs[0] != "/themes/bare/templates" {
		t.Errorf("dirs = %v", dirs)
	}
}

func TestThemeChainInvalidManifest(t *testing.T) {
	fs := themeFs(t, map[string]string{
		"/themes/bad/theme.toml": "extends = [broken\n",
	})
	if _, err := ThemeChain(fs, "/themes", "bad", ""); err == nil {
		t.Error("expected error for invalid theme.toml")
	}
}
