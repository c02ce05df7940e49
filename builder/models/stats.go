package models

import (
	"fmt"
	"sync"
)

// BuildStats accumulates per-item outcomes across phases. Safe for
// concurrent use by render and asset workers.
type BuildStats struct {
	mu sync.Mutex

	PagesRendered int
	CacheHits     int
	CacheMisses   int
	FilesWritten  int
	FilesSkipped  int
	AssetsWritten int

	Errors   []*BuildError
	Warnings []string
}

func NewBuildStats() *BuildStats {
	return &BuildStats{}
}

func (s *BuildStats) RecordHit() {
	s.mu.Lock()
	s.CacheHits++
	s.FilesSkipped++
	s.mu.Unlock()
}

func (s *BuildStats) RecordMiss() {
	s.mu.Lock()
	s.CacheMisses++
	s.mu.Unlock()
}

func (s *BuildStats) RecordRendered() {
	s.mu.Lock()
	s.PagesRendered++
	s.FilesWritten++
	s.mu.Unlock()
}

// RecordFileWritten counts an auxiliary output file, like an extra
// pagination page, that is neither a page render nor an asset.
func (s *BuildStats) RecordFileWritten() {
	s.mu.Lock()
	s.FilesWritten++
	s.mu.Unlock()
}

func (s *BuildStats) RecordAssetWritten() {
	s.mu.Lock()
	s.AssetsWritten++
	s.FilesWritten++
	s.mu.Unlock()
}

func (s *BuildStats) RecordError(err *BuildError) {
	s.mu.Lock()
	s.Errors = append(s.Errors, err)
	s.mu.Unlock()
}

func (s *BuildStats) RecordWarning(format string, args ...interface{}) {
	s.mu.Lock()
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

// ErrorCount returns the number of recorded per-item errors.
func (s *BuildStats) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Errors)
}

// ErrorsOfKind filters recorded errors by kind.
func (s *BuildStats) ErrorsOfKind(kind ErrorKind) []*BuildError {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*BuildError
	for _, e := range s.Errors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Summary is the one-line build report.
func (s *BuildStats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d pages rendered, %d cache hits, %d files written, %d errors",
		s.PagesRendered, s.CacheHits, s.FilesWritten, len(s.Errors))
}
