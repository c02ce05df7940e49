package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/bengal-ssg/bengal/builder/config"
	"github.com/bengal-ssg/bengal/builder/run"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "build":
		os.Exit(runBuild(args))
	case "clean":
		os.Exit(runClean(args))
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	root := fs.String("root", ".", "site root directory")
	quiet := fs.Bool("quiet", false, "only errors, warnings, and the summary")
	verbose := fs.Bool("verbose", false, "per-phase timings and per-page decisions")
	full := fs.Bool("full", false, "force a full rebuild, ignoring caches")
	sequential := fs.Bool("sequential", false, "disable parallel workers")
	_ = fs.Parse(args)

	cfg, err := config.Load(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	site, err := config.NewSiteData(*root, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := run.New(afero.NewOsFs(), site, run.Options{
		Quiet:      *quiet,
		Verbose:    *verbose,
		ForceFull:  *full,
		Sequential: *sequential,
	})
	if err := builder.Build(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ build failed: %v\n", err)
		return 1
	}
	return 0
}

func runClean(args []string) int {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	root := fs.String("root", ".", "site root directory")
	_ = fs.Parse(args)

	cfg, err := config.Load(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	site, err := config.NewSiteData(*root, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	for _, dir := range []string{site.OutputDir, site.CacheDir} {
		if err := os.RemoveAll(dir); err != nil {
			fmt.Fprintf(os.Stderr, "❌ failed to remove %s: %v\n", dir, err)
			return 1
		}
	}
	fmt.Println("🧹 removed output and cache directories")
	return 0
}

func printUsage() {
	fmt.Println("Usage: bengal <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  build          Build the static site")
	fmt.Println("  clean          Remove the output and cache directories")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nFlags for build:")
	fmt.Println("  -root <dir>    Site root (default .)")
	fmt.Println("  -quiet         Only errors, warnings, and the summary")
	fmt.Println("  -verbose       Per-phase timings and per-page decisions")
	fmt.Println("  -full          Force a full rebuild")
	fmt.Println("  -sequential    Disable parallel workers")
}
