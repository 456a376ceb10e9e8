// Command flacsplit splits single-file CD rips into per-track files using
// their cuesheets.
//
// Usage:
//
//	flacsplit album.cue
//	flacsplit -r 44100 -O ~/music album.cue        # downsample hi-res rips to CD rate
//	flacsplit -f flac,wav -no-gain album.cue       # both formats, no ReplayGain tags
//
// Output goes to {outdir}/{artist}/{album}/NN Title.ext.
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
	"strings"
	"time"

	"github.com/tphakala/flacsplit"
	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/split"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		os.Exit(exitUsage)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("flacsplit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		rate    = fs.Int("r", defaultRate, "Target sample rate in Hz (0 keeps the source rate; never upsamples)")
		outDir  = fs.String("O", defaultOutDir, "Output directory")
		formats = fs.String("f", defaultFormats, "Comma-separated output formats: flac, wav")
		noGain  = fs.Bool("no-gain", false, "Skip ReplayGain analysis and tags")
		round   = fs.String("round", defaultRound, "Sample rounding: truncate, nearest")
		verbose = fs.Bool("v", false, "Verbose output")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: flacsplit [options] file.cue...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < minimumCueArg {
		fs.Usage()
		return errUsage
	}

	outFormats, err := codec.ParseFormats(*formats)
	if err != nil {
		return err
	}
	rounding, err := parseRounding(*round)
	if err != nil {
		return err
	}

	opts := split.Options{
		OutDir:     *outDir,
		Rate:       *rate,
		Rounding:   rounding,
		Formats:    outFormats,
		ReplayGain: !*noGain,
	}
	if *verbose {
		opts.Logger = log.New(stderr, "", log.LstdFlags)
	}

	s, err := split.New(opts)
	if err != nil {
		return err
	}

	for _, cuePath := range fs.Args() {
		start := time.Now()
		res, err := s.Split(ctx, cuePath)
		if err != nil {
			return fmt.Errorf("%s: %w", cuePath, err)
		}
		printResult(stdout, cuePath, res, time.Since(start))
	}
	return nil
}

func parseRounding(s string) (flacsplit.Rounding, error) {
	switch strings.ToLower(s) {
	case "truncate", "":
		return flacsplit.RoundTruncate, nil
	case "nearest":
		return flacsplit.RoundNearest, nil
	default:
		return 0, fmt.Errorf("unknown rounding mode %q", s)
	}
}

func printResult(w io.Writer, cuePath string, res *split.Result, elapsed time.Duration) {
	fmt.Fprintf(w, "Split %s -> %s\n", cuePath, res.Dir)
	if res.InputRate != res.OutputRate {
		fmt.Fprintf(w, "  %d Hz -> %d Hz\n", res.InputRate, res.OutputRate)
	}
	for _, tr := range res.Tracks {
		fmt.Fprintf(w, "  %02d %s\n", tr.Number, tr.Title)
	}
	fmt.Fprintf(w, "  %d tracks in %.2fs\n", len(res.Tracks), elapsed.Seconds())
}
