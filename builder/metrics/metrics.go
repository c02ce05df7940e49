// Package metrics tracks per-phase timing and counters for a build.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// BuildMetrics tracks performance data during the build process.
type BuildMetrics struct {
	mu        sync.Mutex
	StartTime time.Time
	EndTime   time.Time
	phases    map[string]time.Duration
	order     []string

	PagesProcessed  int
	CacheHits       int
	CacheMisses     int
	FilesWritten    int
	FilesSkipped    int
	ImagesProcessed int

	IsIncremental bool
	ChangedFiles  []string
}

// NewBuildMetrics creates a new metrics instance.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{
		StartTime: time.Now(),
		phases:    make(map[string]time.Duration),
	}
}

// TimePhase runs fn and records its duration under name.
func (m *BuildMetrics) TimePhase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	m.mu.Lock()
	if _, seen := m.phases[name]; !seen {
		m.order = append(m.order, name)
	}
	m.phases[name] += d
	m.mu.Unlock()
	return err
}

// PhaseDuration returns the recorded duration of a phase.
func (m *BuildMetrics) PhaseDuration(name string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phases[name]
}

// RecordEnd marks the end of the build.
func (m *BuildMetrics) RecordEnd() {
	m.mu.Lock()
	m.EndTime = time.Now()
	m.mu.Unlock()
}

// TotalDuration returns the total build duration.
func (m *BuildMetrics) TotalDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

// CacheHitRate returns the cache hit percentage.
func (m *BuildMetrics) CacheHitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total) * 100
}

// String returns a one-line build summary.
func (m *BuildMetrics) String() string {
	duration := m.TotalDuration()
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.CacheHits + m.CacheMisses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(m.CacheHits) / float64(total) * 100
	}
	return fmt.Sprintf("📊 Built %d pages in %v (cache: %d/%d hits, %.0f%%)",
		m.PagesProcessed, duration.Round(time.Millisecond), m.CacheHits, total, hitRate)
}

// PhaseReport lists phases with durations, slowest first.
func (m *BuildMetrics) PhaseReport() string {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	durations := make(map[string]time.Duration, len(m.phases))
	for k, v := range m.phases {
		durations[k] = v
	}
	m.mu.Unlock()

	sort.SliceStable(names, func(i, j int) bool {
		return durations[names[i]] > durations[names[j]]
	})
	out := ""
	for _, n := range names {
		out += fmt.Sprintf("   %-28s %v\n", n, durations[n].Round(time.Microsecond))
	}
	return out
}
