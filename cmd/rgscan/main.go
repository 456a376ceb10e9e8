// Command rgscan measures ReplayGain 2.0 loudness of FLAC and WAVE files.
//
// Usage:
//
//	rgscan track01.flac track02.flac ...   # per-track and album values
//	rgscan -filter 48000                   # print the K-weighting response
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/filter"
	"github.com/tphakala/flacsplit/internal/mathutil"
	"github.com/tphakala/flacsplit/internal/replaygain"
)

const (
	exitUsage = 2

	tabPadding = 2
)

// Frequencies shown by -filter.
var responseFrequencies = []float64{20, 50, 100, 200, 500, 1000, 1500, 2000, 5000, 10000, 15000, 20000}

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) {
		os.Exit(exitUsage)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rgscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	filterRate := fs.Int("filter", 0, "Print the K-weighting response at the given sample rate and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: rgscan [options] file...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *filterRate > 0 {
		printResponse(stdout, *filterRate)
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLOUDNESS\tGAIN\tPEAK\tPEAK dBFS")

	results := make([]replaygain.Result, 0, fs.NArg())
	for _, path := range fs.Args() {
		res, err := scan(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, res)
		printRow(tw, filepath.Base(path), res)
	}
	if len(results) > 1 {
		printRow(tw, "(album)", replaygain.Album(results...))
	}
	return tw.Flush()
}

// scan measures a single file.
func scan(path string) (replaygain.Result, error) {
	dec, err := codec.OpenDecoder(path)
	if err != nil {
		return replaygain.Result{}, err
	}
	defer dec.Close()

	info := dec.Info()
	a, err := replaygain.NewAnalyzer(info.SampleRate, info.Channels)
	if err != nil {
		return replaygain.Result{}, err
	}

	for {
		fr, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return replaygain.Result{}, err
		}
		if err := a.WriteFrame(fr); err != nil {
			return replaygain.Result{}, err
		}
	}
	if err := a.Close(); err != nil {
		return replaygain.Result{}, err
	}
	return a.Result(), nil
}

func printRow(w io.Writer, name string, res replaygain.Result) {
	loudness := "silent"
	if !math.IsInf(res.Loudness, -1) {
		loudness = fmt.Sprintf("%.2f LUFS", res.Loudness)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", name, loudness,
		replaygain.FormatGain(res.GainDB), replaygain.FormatPeak(res.Peak), mathutil.LinearToDB(res.Peak))
}

func printResponse(w io.Writer, rate int) {
	k := filter.NewKWeighting(rate)
	shelf := filter.ShelfCoefficients(rate)
	hp := filter.HighPassCoefficients(rate)

	fmt.Fprintf(w, "K-weighting at %d Hz\n", rate)
	fmt.Fprintf(w, "  shelf:     b = [%.8f %.8f %.8f], a = [1 %.8f %.8f]\n", shelf.B0, shelf.B1, shelf.B2, shelf.A1, shelf.A2)
	fmt.Fprintf(w, "  high-pass: b = [%.8f %.8f %.8f], a = [1 %.8f %.8f]\n\n", hp.B0, hp.B1, hp.B2, hp.A1, hp.A2)

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Hz\tdB\t")
	for _, f := range responseFrequencies {
		if f >= float64(rate)/2 {
			break
		}
		fmt.Fprintf(tw, "%.0f\t%+.2f\t\n", f, k.GainDB(f, rate))
	}
	_ = tw.Flush()
}
