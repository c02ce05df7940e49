// Package run is the build orchestrator: it executes the phases in
// order over one SiteData and one BuildContext, with per-phase failure
// policies and timing.
package run

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/metrics"
)

// Options are the per-invocation switches from the CLI.
type Options struct {
	Quiet      bool
	Verbose    bool
	ForceFull  bool // rebuild everything regardless of caches
	Sequential bool // disable worker pools for deterministic runs
}

// Builder runs builds for one site tree.
type Builder struct {
	fs      afero.Fs
	site    *config.SiteData
	opts    Options
	metrics *metrics.BuildMetrics
	buildID string
}

// New creates a builder over the given filesystem and site.
func New(fs afero.Fs, site *config.SiteData, opts Options) *Builder {
	return &Builder{
		fs:      fs,
		site:    site,
		opts:    opts,
		buildID: time.Now().UTC().Format("20060102T150405.000000Z"),
	}
}

// Metrics exposes the timings of the last build.
func (b *Builder) Metrics() *metrics.BuildMetrics { return b.metrics }

// workerCount resolves the pool size for the parallel phases.
func (b *Builder) workerCount() int {
	if b.opts.Sequential || !b.site.Config.Build.Parallel {
		return 1
	}
	return b.site.Config.Build.MaxWorkers // 0 lets the pool use NumCPU
}

func (b *Builder) logf(format string, args ...interface{}) {
	if b.opts.Quiet {
		return
	}
	fmt.Printf(format+"\n", args...)
}

func (b *Builder) verbosef(format string, args ...interface{}) {
	if !b.opts.Verbose || b.opts.Quiet {
		return
	}
	fmt.Printf(format+"\n", args...)
}
