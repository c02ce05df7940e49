package atomicio

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestWriteBytes(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/out/sub/file.txt"

	if err := WriteBytes(fs, path, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteBytesReplacesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/file.txt"
	if err := WriteBytes(fs, path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteBytes(fs, path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, _ := afero.ReadFile(fs, path)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/out"
	if err := WriteBytes(fs, filepath.Join(dir, "a.txt"), []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

func TestWriterCommitAndAbort(t *testing.T) {
	fs := afero.NewMemMapFs()

	w := NewWriter(fs, "/w/commit.txt")
	if _, err := w.Write([]byte("committed")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := afero.ReadFile(fs, "/w/commit.txt")
	if err != nil || string(data) != "committed" {
		t.Errorf("commit failed: %q, %v", data, err)
	}

	w2 := NewWriter(fs, "/w/abort.txt")
	if _, err := w2.Write([]byte("discard")); err != nil {
		t.Fatal(err)
	}
	w2.Abort()
	if ok, _ := afero.Exists(fs, "/w/abort.txt"); ok {
		t.Error("aborted write left a target file")
	}
}
