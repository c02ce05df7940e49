// Package atomicio provides crash-safe file writes: a temp file in the
// target directory, then an atomic rename. Observers never see a partial
// file; the last rename wins when writers race on the same path.
package atomicio

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/afero"
)

var rngMu sync.Mutex

func tempName(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	rngMu.Lock()
	n := rand.Int63()
	rngMu.Unlock()
	return filepath.Join(dir, fmt.Sprintf(".%s.tmp%d", base, n))
}

// WriteBytes writes content to path atomically, creating parent
// directories as needed. On failure the previous contents of path, if
// any, remain intact and the temp file is removed.
func WriteBytes(fs afero.Fs, path string, content []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmpPath := tempName(path)
	f, err := fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}

	syncDir(fs, filepath.Dir(path))
	return nil
}

// WriteText writes a string to path atomically.
func WriteText(fs afero.Fs, path string, content string) error {
	return WriteBytes(fs, path, []byte(content))
}

// syncDir fsyncs the parent directory after a rename so the rename itself
// is durable. Only meaningful on a POSIX OS filesystem.
func syncDir(fs afero.Fs, dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	if _, ok := fs.(*afero.OsFs); !ok {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Writer buffers writes and commits them atomically on Close. Abort
// discards the buffer; Close after Abort is a no-op.
type Writer struct {
	fs      afero.Fs
	path    string
	buf     bytes.Buffer
	aborted bool
	closed  bool
}

// NewWriter returns a scoped writer targeting path.
func NewWriter(fs afero.Fs, path string) *Writer {
	return &Writer{fs: fs, path: path}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed || w.aborted {
		return 0, fmt.Errorf("write to closed atomic writer for %s", w.path)
	}
	return w.buf.Write(p)
}

// Abort discards everything written so far. The target is untouched.
func (w *Writer) Abort() {
	w.aborted = true
}

// Close commits the buffered content via an atomic replace.
func (w *Writer) Close() error {
	if w.closed || w.aborted {
		w.closed = true
		return nil
	}
	w.closed = true
	return WriteBytes(w.fs, w.path, w.buf.Bytes())
}
