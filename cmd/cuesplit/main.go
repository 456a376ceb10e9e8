// Command cuesplit walks a directory tree and splits every single-file
// CUE rip it finds into {outdir}/{artist}/{album}.
//
// Usage:
//
//	cuesplit ~/Music/downloads ~/Music/library
//	cuesplit -dry-run ./input ./output
//	cuesplit -force -j 4 -resample 44100 ./input ./output
//
// Releases whose output directory already holds one audio file per track
// are skipped unless -force is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/flacsplit/internal/split"
)

var errUsage = errors.New("usage")

type stats struct {
	processed, skipped, failed int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case errors.Is(err, errUsage):
		os.Exit(exitUsage)
	case err != nil:
		log.Print(err)
		os.Exit(exitUsage)
	case st.failed > 0:
		os.Exit(exitFailed)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (stats, error) {
	var st stats

	fs := flag.NewFlagSet("cuesplit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		resample = fs.Int("resample", defaultResampleRate, "Resample to the given rate in Hz; lower-rate sources are kept as is")
		dryRun   = fs.Bool("dry-run", false, "Show what would be done without splitting")
		force    = fs.Bool("force", false, "Split even if the output already exists")
		jobs     = fs.Int("j", defaultJobs, "Number of releases to split concurrently")
		verbose  = fs.Bool("v", false, "Verbose output")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cuesplit [options] basedir outdir\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return st, errUsage
	}
	if fs.NArg() != requiredArgs {
		fs.Usage()
		return st, errUsage
	}

	base, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return st, err
	}
	out, err := filepath.Abs(fs.Arg(1))
	if err != nil {
		return st, err
	}
	if info, err := os.Stat(base); err != nil {
		return st, fmt.Errorf("base directory not found: %s", base)
	} else if !info.IsDir() {
		return st, fmt.Errorf("base directory is not a directory: %s", base)
	}

	fmt.Fprintf(stdout, "Scanning %s for CUE files...\n", base)
	cues, err := findCues(base)
	if err != nil {
		return st, err
	}
	if len(cues) == 0 {
		fmt.Fprintf(stdout, "No CUE files found in %s\n", base)
		return st, nil
	}
	fmt.Fprintf(stdout, "Found %d CUE file(s)\n\n", len(cues))

	var pending []release
	for _, c := range cues {
		r, reason, ok := inspect(c, base, out, *force)
		if !ok {
			fmt.Fprintf(stdout, "SKIP: %s - %s\n", r.rel, reason)
			st.skipped++
			continue
		}
		fmt.Fprintf(stdout, "SPLIT: %s - %s\n", r.rel, reason)
		if *dryRun {
			fmt.Fprintf(stdout, "  [DRY RUN] Would split %s into %s at up to %d Hz\n", r.cuePath, r.dir, *resample)
		}
		pending = append(pending, r)
	}

	opts := split.Options{
		OutDir:     out,
		BaseDir:    base,
		Rate:       *resample,
		ReplayGain: true,
	}
	if *verbose {
		opts.Logger = log.New(stderr, "", log.LstdFlags)
	}
	s, err := split.New(opts)
	if err != nil {
		return st, err
	}

	if *dryRun {
		st.processed = len(pending)
	} else if err := splitAll(ctx, s, pending, *jobs, stdout, stderr, &st); err != nil {
		return st, err
	}

	fmt.Fprintf(stdout, "\n%s\n", summaryRule)
	fmt.Fprintf(stdout, "Summary: %d processed, %d skipped, %d failed\n", st.processed, st.skipped, st.failed)
	if *dryRun {
		fmt.Fprintln(stdout, "\n(This was a dry run - no files were actually split)")
	}
	return st, nil
}

// splitAll splits releases with at most jobs running at once. Individual
// failures are counted and reported; only cancellation aborts the run.
func splitAll(ctx context.Context, s *split.Splitter, releases []release, jobs int, stdout, stderr io.Writer, st *stats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))

	var mu sync.Mutex
	for _, group := range groupByDir(releases) {
		g.Go(func() error {
			for _, r := range group {
				res, err := s.Split(ctx, r.cuePath)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				mu.Lock()
				if err != nil {
					fmt.Fprintf(stderr, "FAILED: %s - %v\n", r.rel, err)
					st.failed++
				} else {
					created := countAudioFiles(r.dir)
					if created < r.tracks {
						fmt.Fprintf(stdout, "  WARNING: %s: expected %d tracks, got %d\n", r.rel, r.tracks, created)
					} else {
						fmt.Fprintf(stdout, "  Created %d tracks in %s\n", len(res.Tracks), r.rel)
					}
					st.processed++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}
