// Package split cuts a single-file rip into per-track files following its
// cuesheet, resampling, tagging and measuring ReplayGain on the way.
package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/flacsplit"
	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/cue"
	"github.com/tphakala/flacsplit/internal/pipeline"
	"github.com/tphakala/flacsplit/internal/replaygain"
	"github.com/tphakala/flacsplit/internal/sanitize"
)

// Errors returned by Split.
var (
	// ErrNoAudioFile indicates a cuesheet without a FILE entry.
	ErrNoAudioFile = errors.New("cuesheet references no audio file")

	// ErrMultiFile indicates a cuesheet that already references one file
	// per track.
	ErrMultiFile = errors.New("cuesheet references more than one file")

	// ErrNoTracks indicates a cuesheet without audio tracks.
	ErrNoTracks = errors.New("cuesheet has no audio tracks")

	// ErrTrackOutOfRange indicates a track starting past the end of the
	// audio file.
	ErrTrackOutOfRange = errors.New("track starts beyond end of audio")
)

const (
	noAlbum       = "no album"
	unknownArtist = "Unknown Artist"
	dirPerm       = 0o755
)

// Options configures a Splitter.
type Options struct {
	// OutDir is the root of the output tree.
	OutDir string

	// BaseDir is the scan root used to derive the release directory for
	// cuesheets without album metadata. Optional.
	BaseDir string

	// Rate is the target sample rate. Zero, or a rate at or above the
	// source rate, keeps the source rate.
	Rate int

	// Rounding selects the resampler's integer conversion.
	Rounding flacsplit.Rounding

	// Formats lists the output formats. Empty means FLAC only.
	Formats []codec.Format

	// ReplayGain enables the analysis pass and ReplayGain tags.
	ReplayGain bool

	// BlockSize is the frame size handed to encoders. Zero selects the
	// FLAC encoder block size.
	BlockSize int

	// Logger receives progress messages. Nil disables logging.
	Logger *log.Logger
}

// TrackResult describes one written track.
type TrackResult struct {
	Number  int
	Title   string
	Paths   []string
	Samples int64
	Gain    replaygain.Result
}

// Result describes a completed split.
type Result struct {
	Dir        string
	InputRate  int
	OutputRate int
	Tracks     []TrackResult
	Album      replaygain.Result
}

// Splitter splits cuesheet rips. A Splitter holds no per-run state and may
// be shared between goroutines.
type Splitter struct {
	opts Options
}

// New creates a Splitter.
func New(opts Options) (*Splitter, error) {
	if opts.OutDir == "" {
		return nil, errors.New("output directory is required")
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []codec.Format{codec.FormatFLAC}
	}
	if opts.BlockSize <= 0 || opts.BlockSize > codec.FLACBlockSize {
		opts.BlockSize = codec.FLACBlockSize
	}
	return &Splitter{opts: opts}, nil
}

func (s *Splitter) logf(format string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Printf(format, args...)
	}
}

// ReleaseDir returns {outDir}/{artist}/{album} from the sheet's album
// metadata. Without metadata it mirrors the cuesheet's directory relative
// to baseDir, or uses the directory name when that is not possible.
func ReleaseDir(sheet *cue.Sheet, cuePath, baseDir, outDir string) string {
	if sheet.Performer != "" || sheet.Title != "" {
		names := sanitize.Path(sheet.Performer, sheet.Title)
		if names[0] == "" {
			names[0] = unknownArtist
		}
		if names[1] == "" {
			names[1] = noAlbum
		}
		return filepath.Join(outDir, names[0], names[1])
	}

	parent := filepath.Dir(cuePath)
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, parent); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.Join(outDir, rel)
		}
	}
	return filepath.Join(outDir, filepath.Base(parent))
}

// TrackFileName returns "NN Title.ext" with a sanitized title.
func TrackFileName(t *cue.Track, ext string) string {
	title := strings.TrimSpace(sanitize.Name(t.Title))
	if title == "" {
		title = fmt.Sprintf("Track %02d", t.Number)
	}
	return fmt.Sprintf("%02d %s%s", t.Number, title, ext)
}

// sampleRange is a track's extent in source samples. end is -1 for a
// track that runs to the end of the stream.
type sampleRange struct {
	start, end int64
}

// job is the state of one Split call.
type job struct {
	sheet     *cue.Sheet
	audioPath string
	tracks    []*cue.Track
	ranges    []sampleRange
	info      codec.StreamInfo
	outRate   int
	dir       string
}

// Split splits the rip described by the cuesheet at cuePath.
func (s *Splitter) Split(ctx context.Context, cuePath string) (*Result, error) {
	j, err := s.prepare(cuePath)
	if err != nil {
		return nil, err
	}

	s.logf("%s: %d tracks, %d Hz -> %d Hz, %d channels, %d-bit",
		filepath.Base(j.audioPath), len(j.tracks), j.info.SampleRate, j.outRate, j.info.Channels, j.info.BitsPerSample)

	res := &Result{
		Dir:        j.dir,
		InputRate:  j.info.SampleRate,
		OutputRate: j.outRate,
		Tracks:     make([]TrackResult, len(j.tracks)),
	}
	for i, t := range j.tracks {
		res.Tracks[i] = TrackResult{Number: t.Number, Title: t.Title}
	}

	if s.opts.ReplayGain {
		if err := s.analyze(ctx, j, res); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(j.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := s.encode(ctx, j, res); err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Splitter) prepare(cuePath string) (*job, error) {
	sheet, err := cue.ParseFile(cuePath)
	if err != nil {
		return nil, err
	}

	files := sheet.FilePaths()
	switch {
	case len(files) == 0:
		return nil, fmt.Errorf("%s: %w", cuePath, ErrNoAudioFile)
	case len(files) > 1:
		return nil, fmt.Errorf("%s: %w", cuePath, ErrMultiFile)
	}

	tracks := sheet.AudioTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%s: %w", cuePath, ErrNoTracks)
	}
	spans, err := sheet.Spans()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cuePath, err)
	}

	dec, err := codec.OpenDecoder(files[0])
	if err != nil {
		return nil, err
	}
	info := dec.Info()
	if err := dec.Close(); err != nil {
		return nil, fmt.Errorf("failed to close input file: %w", err)
	}

	ranges := make([]sampleRange, len(spans))
	for i, sp := range spans {
		start, end := sp.Samples(info.SampleRate)
		ranges[i] = sampleRange{start: start, end: end}
	}

	outRate := info.SampleRate
	if s.opts.Rate > 0 && s.opts.Rate < info.SampleRate {
		outRate = s.opts.Rate
	}

	return &job{
		sheet:     sheet,
		audioPath: files[0],
		tracks:    tracks,
		ranges:    ranges,
		info:      info,
		outRate:   outRate,
		dir:       ReleaseDir(sheet, cuePath, s.opts.BaseDir, s.opts.OutDir),
	}, nil
}

// newResampler returns nil when no conversion is needed.
func (s *Splitter) newResampler(j *job) (*flacsplit.Resampler, error) {
	if j.outRate == j.info.SampleRate {
		return nil, nil
	}
	return flacsplit.New(&flacsplit.Config{
		InputRate:  j.info.SampleRate,
		OutputRate: j.outRate,
		Channels:   j.info.Channels,
		Rounding:   s.opts.Rounding,
	})
}

// analyze measures every track at the output rate.
func (s *Splitter) analyze(ctx context.Context, j *job, res *Result) error {
	rs, err := s.newResampler(j)
	if err != nil {
		return err
	}

	analyzers := make([]*replaygain.Analyzer, len(j.tracks))
	open := func(i int) (trackSink, error) {
		a, err := replaygain.NewAnalyzer(j.outRate, j.info.Channels)
		if err != nil {
			return nil, err
		}
		analyzers[i] = a
		if rs != nil {
			rs.Reset()
		}
		return nopAbort{pipeline.NewChain(rs, a)}, nil
	}

	if err := route(ctx, j.audioPath, j.ranges, open); err != nil {
		return fmt.Errorf("replaygain analysis: %w", err)
	}

	results := make([]replaygain.Result, len(analyzers))
	for i, a := range analyzers {
		results[i] = a.Result()
		res.Tracks[i].Gain = results[i]
		s.logf("track %02d: %.2f LUFS, gain %s, peak %s", j.tracks[i].Number,
			results[i].Loudness, replaygain.FormatGain(results[i].GainDB), replaygain.FormatPeak(results[i].Peak))
	}
	res.Album = replaygain.Album(results...)
	s.logf("album: %.2f LUFS, gain %s, peak %s",
		res.Album.Loudness, replaygain.FormatGain(res.Album.GainDB), replaygain.FormatPeak(res.Album.Peak))

	return nil
}

// encode writes every track in every output format.
func (s *Splitter) encode(ctx context.Context, j *job, res *Result) error {
	rs, err := s.newResampler(j)
	if err != nil {
		return err
	}

	open := func(i int) (trackSink, error) {
		t := j.tracks[i]
		tags := s.tags(j, i, res)
		info := codec.StreamInfo{
			SampleRate:    j.outRate,
			Channels:      j.info.Channels,
			BitsPerSample: j.info.BitsPerSample,
		}

		w := &trackWriter{result: &res.Tracks[i]}
		encoders := make(pipeline.Tee, 0, len(s.opts.Formats))
		for _, format := range s.opts.Formats {
			out, err := newOutput(j.dir, TrackFileName(t, format.Ext()))
			if err != nil {
				w.Abort()
				return nil, err
			}
			w.outputs = append(w.outputs, out)

			enc, err := codec.NewEncoder(format, out.file, info, tags)
			if err != nil {
				w.Abort()
				return nil, err
			}
			encoders = append(encoders, enc)
		}

		if rs != nil {
			rs.Reset()
		}
		w.counter = &sampleCounter{next: pipeline.NewReblocker(encoders, s.opts.BlockSize)}
		w.sink = pipeline.NewChain(rs, w.counter)
		return w, nil
	}

	if err := route(ctx, j.audioPath, j.ranges, open); err != nil {
		return err
	}

	for _, tr := range res.Tracks {
		s.logf("wrote %s", strings.Join(tr.Paths, ", "))
	}
	return nil
}

func (s *Splitter) tags(j *job, i int, res *Result) codec.Tags {
	t := j.tracks[i]
	tags := codec.Tags{
		Artist:      j.sheet.TrackPerformer(t),
		AlbumArtist: j.sheet.Performer,
		Album:       j.sheet.Title,
		Title:       t.Title,
		Date:        j.sheet.Date,
		Genre:       j.sheet.Genre,
		TrackNumber: t.Number,
		TrackTotal:  len(j.tracks),
	}
	if s.opts.ReplayGain {
		tags.Extra = replaygain.Comments(res.Tracks[i].Gain, res.Album)
	}
	return tags
}

// trackSink is a Sink that can discard its partial output.
type trackSink interface {
	pipeline.Sink
	Abort()
}

type nopAbort struct {
	pipeline.Sink
}

func (nopAbort) Abort() {}

// sampleCounter counts samples on their way to the encoders.
type sampleCounter struct {
	next    pipeline.Sink
	samples int64
}

func (c *sampleCounter) WriteFrame(f *flacsplit.Frame) error {
	c.samples += int64(f.Samples)
	return c.next.WriteFrame(f)
}

func (c *sampleCounter) Close() error {
	return c.next.Close()
}

// output is a file written under a temporary name and renamed into place
// once complete.
type output struct {
	file  *os.File
	tmp   string
	final string
}

func newOutput(dir, name string) (*output, error) {
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &output{file: f, tmp: tmp, final: filepath.Join(dir, name)}, nil
}

func (o *output) commit() error {
	if err := o.file.Close(); err != nil {
		_ = os.Remove(o.tmp)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(o.tmp, o.final); err != nil {
		_ = os.Remove(o.tmp)
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	return nil
}

func (o *output) discard() {
	_ = o.file.Close()
	_ = os.Remove(o.tmp)
}

// trackWriter encodes one track into all output formats.
type trackWriter struct {
	sink    pipeline.Sink
	counter *sampleCounter
	outputs []*output
	result  *TrackResult
}

func (w *trackWriter) WriteFrame(f *flacsplit.Frame) error {
	return w.sink.WriteFrame(f)
}

// Close finalizes the encoders and moves the files into place.
func (w *trackWriter) Close() error {
	if err := w.sink.Close(); err != nil {
		w.Abort()
		return err
	}

	for i, out := range w.outputs {
		if err := out.commit(); err != nil {
			for _, rest := range w.outputs[i+1:] {
				rest.discard()
			}
			return err
		}
		w.result.Paths = append(w.result.Paths, out.final)
	}
	w.result.Samples = w.counter.samples
	return nil
}

func (w *trackWriter) Abort() {
	for _, out := range w.outputs {
		out.discard()
	}
}

// route decodes path once and feeds each range to the sink returned by
// open for it. Ranges must be ordered and must not overlap. Samples outside
// every range are skipped.
func route(ctx context.Context, path string, ranges []sampleRange, open func(i int) (trackSink, error)) (err error) {
	dec, err := codec.OpenDecoder(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dec.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close input file: %w", closeErr)
		}
	}()

	var (
		sink  trackSink
		track int
		pos   int64
	)
	defer func() {
		if err != nil && sink != nil {
			sink.Abort()
		}
	}()

	finish := func() error {
		s := sink
		sink = nil
		track++
		return s.Close()
	}

	for track < len(ranges) {
		if err := ctx.Err(); err != nil {
			return err
		}

		fr, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		frStart, frEnd := pos, pos+int64(fr.Samples)
		pos = frEnd

		for track < len(ranges) {
			r := ranges[track]
			if r.start >= frEnd {
				break
			}
			if sink == nil {
				if sink, err = open(track); err != nil {
					return err
				}
			}

			lo := max(frStart, r.start)
			hi := frEnd
			if r.end >= 0 {
				hi = min(hi, r.end)
			}
			if lo < hi {
				if err := sink.WriteFrame(fr.Slice(int(lo-frStart), int(hi-frStart))); err != nil {
					return fmt.Errorf("track %d: %w", track+1, err)
				}
			}

			if r.end < 0 || r.end > frEnd {
				break
			}
			if err := finish(); err != nil {
				return fmt.Errorf("track %d: %w", track, err)
			}
		}
	}

	if track < len(ranges) {
		if sink == nil || track < len(ranges)-1 {
			return fmt.Errorf("%w: track %d of %d", ErrTrackOutOfRange, track+1, len(ranges))
		}
		if err := finish(); err != nil {
			return fmt.Errorf("track %d: %w", track, err)
		}
	}
	return nil
}
