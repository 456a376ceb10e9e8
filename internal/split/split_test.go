package split

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/flacsplit"
	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/cue"
	"github.com/tphakala/flacsplit/internal/testutil"
)

const (
	testRate     = 48000
	testChannels = 2
	testBits     = 16
	testSamples  = 24000

	// 640 samples per CD frame at 48 kHz.
	samplesPerCDFrame = testRate / cue.FramesPerSecond
)

const testCue = `REM GENRE Rock
REM DATE 1999
PERFORMER "Test Artist"
TITLE "Test Album"
FILE "%s" WAVE
  TRACK 01 AUDIO
    TITLE "First"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Second / Part"
    PERFORMER "Guest"
    INDEX 00 00:00:10
    INDEX 01 00:00:12
  TRACK 03 AUDIO
    INDEX 01 00:00:30
`

// writeSource writes a ramp as a FLAC rip and a cuesheet pointing at it.
func writeSource(t *testing.T, dir, sheet string) (string, *flacsplit.Frame) {
	t.Helper()
	src := testutil.RampFrame(testChannels, testSamples, testBits, testRate, 0)

	f, err := os.Create(filepath.Join(dir, "rip.flac"))
	require.NoError(t, err)
	enc, err := codec.NewEncoder(codec.FormatFLAC, f, codec.StreamInfo{
		SampleRate:    testRate,
		Channels:      testChannels,
		BitsPerSample: testBits,
	}, codec.Tags{})
	require.NoError(t, err)
	for start := 0; start < testSamples; start += codec.FLACBlockSize {
		end := min(start+codec.FLACBlockSize, testSamples)
		require.NoError(t, enc.WriteFrame(src.Slice(start, end)))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	cuePath := filepath.Join(dir, "rip.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(sheet), 0o600))
	return cuePath, src
}

func readTrack(t *testing.T, path string) (codec.StreamInfo, *flacsplit.Frame) {
	t.Helper()
	dec, err := codec.OpenDecoder(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, dec.Close()) }()

	var frames []*flacsplit.Frame
	for {
		fr, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frames = append(frames, fr.Clone())
	}
	require.NotEmpty(t, frames)
	return dec.Info(), testutil.Concat(frames...)
}

func vorbisComments(t *testing.T, path string) map[string]string {
	t.Helper()
	stream, err := flac.ParseFile(path)
	require.NoError(t, err)
	defer stream.Close()

	out := make(map[string]string)
	for _, b := range stream.Blocks {
		if vc, ok := b.Body.(*meta.VorbisComment); ok {
			for _, tag := range vc.Tags {
				out[tag[0]] = tag[1]
			}
		}
	}
	return out
}

func newTestSplitter(t *testing.T, opts Options) *Splitter {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestSplit_Passthrough(t *testing.T) {
	dir := t.TempDir()
	cuePath, src := writeSource(t, dir, sprintfCue("rip.flac"))
	out := t.TempDir()

	s := newTestSplitter(t, Options{OutDir: out})
	res, err := s.Split(context.Background(), cuePath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "Test Artist", "Test Album"), res.Dir)
	assert.Equal(t, testRate, res.InputRate)
	assert.Equal(t, testRate, res.OutputRate)
	require.Len(t, res.Tracks, 3)

	tests := []struct {
		name       string
		start, end int
	}{
		{"01 First.flac", 0, 10 * samplesPerCDFrame},
		{"02 Second  Part.flac", 12 * samplesPerCDFrame, 30 * samplesPerCDFrame},
		{"03 Track 03.flac", 30 * samplesPerCDFrame, testSamples},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(res.Dir, tt.name)
			assert.Equal(t, []string{path}, res.Tracks[i].Paths)
			assert.Equal(t, int64(tt.end-tt.start), res.Tracks[i].Samples)

			info, got := readTrack(t, path)
			assert.Equal(t, testRate, info.SampleRate)
			assert.Equal(t, testBits, info.BitsPerSample)
			testutil.AssertFrameEqual(t, src.Slice(tt.start, tt.end).Clone(), got)
		})
	}

	entries, err := os.ReadDir(res.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "temporary files must not be left behind")
}

func TestSplit_Downsample(t *testing.T) {
	dir := t.TempDir()
	cuePath, _ := writeSource(t, dir, sprintfCue("rip.flac"))

	s := newTestSplitter(t, Options{OutDir: t.TempDir(), Rate: testRate / 2})
	res, err := s.Split(context.Background(), cuePath)
	require.NoError(t, err)
	assert.Equal(t, testRate/2, res.OutputRate)

	starts := []int{0, 12 * samplesPerCDFrame, 30 * samplesPerCDFrame}
	lengths := []int{3200, 5760, 2400}
	for i, tr := range res.Tracks {
		info, got := readTrack(t, tr.Paths[0])
		assert.Equal(t, testRate/2, info.SampleRate)
		require.Equal(t, lengths[i], got.Samples, "track %d", tr.Number)

		// Each track starts with a fresh resampler, so output sample j is
		// input sample 2j of the track.
		for ch := range testChannels {
			for j := range got.Samples {
				want := int32(starts[i] + 2*j + ch*1000)
				if !assert.Equal(t, want, got.Data[ch][j], "track %d ch %d sample %d", tr.Number, ch, j) {
					return
				}
			}
		}
	}
}

func TestSplit_NoUpsampling(t *testing.T) {
	dir := t.TempDir()
	cuePath, _ := writeSource(t, dir, sprintfCue("rip.flac"))

	s := newTestSplitter(t, Options{OutDir: t.TempDir(), Rate: 96000})
	res, err := s.Split(context.Background(), cuePath)
	require.NoError(t, err)
	assert.Equal(t, testRate, res.OutputRate)
}

func TestSplit_FormatsAndReplayGain(t *testing.T) {
	dir := t.TempDir()
	cuePath, _ := writeSource(t, dir, sprintfCue("rip.flac"))

	s := newTestSplitter(t, Options{
		OutDir:     t.TempDir(),
		Formats:    []codec.Format{codec.FormatFLAC, codec.FormatWAVE},
		ReplayGain: true,
	})
	res, err := s.Split(context.Background(), cuePath)
	require.NoError(t, err)

	for _, tr := range res.Tracks {
		require.Len(t, tr.Paths, 2)
		assert.Equal(t, ".flac", filepath.Ext(tr.Paths[0]))
		assert.Equal(t, ".wav", filepath.Ext(tr.Paths[1]))
		assert.False(t, tr.Gain.Loudness == 0, "track %d was not analyzed", tr.Number)
	}

	comments := vorbisComments(t, res.Tracks[1].Paths[0])
	assert.Equal(t, "Guest", comments["ARTIST"])
	assert.Equal(t, "Test Artist", comments["ALBUMARTIST"])
	assert.Equal(t, "Test Album", comments["ALBUM"])
	assert.Equal(t, "Second / Part", comments["TITLE"])
	assert.Equal(t, "1999", comments["DATE"])
	assert.Equal(t, "Rock", comments["GENRE"])
	assert.Equal(t, "2", comments["TRACKNUMBER"])
	assert.Equal(t, "3", comments["TRACKTOTAL"])
	assert.Contains(t, comments, "REPLAYGAIN_TRACK_GAIN")
	assert.Contains(t, comments, "REPLAYGAIN_ALBUM_GAIN")
	assert.Equal(t, comments["REPLAYGAIN_ALBUM_GAIN"], vorbisComments(t, res.Tracks[0].Paths[0])["REPLAYGAIN_ALBUM_GAIN"])
}

func TestSplit_Errors(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
		want  error
	}{
		{
			name:  "no file",
			sheet: "TITLE \"x\"\n",
			want:  ErrNoAudioFile,
		},
		{
			name: "multi file",
			sheet: `FILE "a.flac" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
FILE "b.flac" WAVE
  TRACK 02 AUDIO
    INDEX 01 00:00:00
`,
			want: ErrMultiFile,
		},
		{
			name: "track beyond end",
			sheet: `FILE "rip.flac" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    INDEX 01 01:00:00
`,
			want: ErrTrackOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cuePath, _ := writeSource(t, dir, tt.sheet)
			out := t.TempDir()

			s := newTestSplitter(t, Options{OutDir: out})
			_, err := s.Split(context.Background(), cuePath)
			require.ErrorIs(t, err, tt.want)

			// Nothing but empty directories may remain.
			_ = filepath.WalkDir(out, func(path string, d os.DirEntry, err error) error {
				require.NoError(t, err)
				assert.True(t, d.IsDir(), "unexpected file %s", path)
				return nil
			})
		})
	}
}

func TestSplit_Canceled(t *testing.T) {
	dir := t.TempDir()
	cuePath, _ := writeSource(t, dir, sprintfCue("rip.flac"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSplitter(t, Options{OutDir: t.TempDir()})
	_, err := s.Split(ctx, cuePath)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	s, err := New(Options{OutDir: "out", BlockSize: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, []codec.Format{codec.FormatFLAC}, s.opts.Formats)
	assert.Equal(t, codec.FLACBlockSize, s.opts.BlockSize)
}

func TestReleaseDir(t *testing.T) {
	base := filepath.Join("music", "in")
	cuePath := filepath.Join(base, "Artist", "Album (1999)", "rip.cue")

	tests := []struct {
		name    string
		sheet   cue.Sheet
		baseDir string
		want    string
	}{
		{"metadata", cue.Sheet{Performer: "Björk", Title: "Homogenic"}, base, filepath.Join("out", "Bjork", "Homogenic")},
		{"missing album", cue.Sheet{Performer: "Björk"}, base, filepath.Join("out", "Bjork", "no album")},
		{"missing artist", cue.Sheet{Title: "Homogenic"}, base, filepath.Join("out", "Unknown Artist", "Homogenic")},
		{"relative parent", cue.Sheet{}, base, filepath.Join("out", "Artist", "Album (1999)")},
		{"outside base", cue.Sheet{}, filepath.Join("elsewhere"), filepath.Join("out", "Album (1999)")},
		{"no base", cue.Sheet{}, "", filepath.Join("out", "Album (1999)")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReleaseDir(&tt.sheet, cuePath, tt.baseDir, "out"))
		})
	}
}

func TestTrackFileName(t *testing.T) {
	tests := []struct {
		track cue.Track
		ext   string
		want  string
	}{
		{cue.Track{Number: 1, Title: "Intro"}, ".flac", "01 Intro.flac"},
		{cue.Track{Number: 12, Title: "AC/DC: Live!"}, ".wav", "12 ACDC Live.wav"},
		{cue.Track{Number: 3}, ".flac", "03 Track 03.flac"},
		{cue.Track{Number: 4, Title: "Привет"}, ".flac", "04 Track 04.flac"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TrackFileName(&tt.track, tt.ext))
		})
	}
}

func TestRoute_SkipsGaps(t *testing.T) {
	dir := t.TempDir()
	_, src := writeSource(t, dir, sprintfCue("rip.flac"))

	ranges := []sampleRange{{start: 100, end: 5000}, {start: 9000, end: 9001}, {start: 20000, end: -1}}
	sinks := make([]*collectSink, len(ranges))
	err := route(context.Background(), filepath.Join(dir, "rip.flac"), ranges, func(i int) (trackSink, error) {
		sinks[i] = &collectSink{}
		return sinks[i], nil
	})
	require.NoError(t, err)

	for i, r := range ranges {
		end := int(r.end)
		if end < 0 {
			end = testSamples
		}
		require.True(t, sinks[i].closed)
		testutil.AssertFrameEqual(t, src.Slice(int(r.start), end).Clone(), testutil.Concat(sinks[i].frames...))
	}
}

type collectSink struct {
	frames  []*flacsplit.Frame
	closed  bool
	aborted bool
}

func (c *collectSink) WriteFrame(f *flacsplit.Frame) error {
	c.frames = append(c.frames, f.Clone())
	return nil
}

func (c *collectSink) Close() error {
	c.closed = true
	return nil
}

func (c *collectSink) Abort() { c.aborted = true }

func sprintfCue(audio string) string {
	return fmt.Sprintf(testCue, audio)
}

func TestRoute_AbortsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, sprintfCue("rip.flac"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &collectSink{}
	err := route(ctx, filepath.Join(dir, "rip.flac"), []sampleRange{{start: 0, end: -1}}, func(int) (trackSink, error) {
		cancel()
		return sink, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, sink.aborted)
	assert.False(t, sink.closed)
}
