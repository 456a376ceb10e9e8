package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/testutil"
)

const albumCue = `PERFORMER "Artist"
TITLE "Album"
FILE "rip.wav" WAVE
  TRACK 01 AUDIO
    TITLE "One"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Two"
    INDEX 01 00:00:20
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func writeWAV(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := codec.NewEncoder(codec.FormatWAVE, f, codec.StreamInfo{SampleRate: 96000, Channels: 2, BitsPerSample: 24}, codec.Tags{})
	require.NoError(t, err)
	require.NoError(t, enc.WriteFrame(testutil.SineFrame(2, 48000, 24, 96000, 440, 0.5)))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

// library builds a scan tree with one splittable release and one release
// for every skip reason.
func library(t *testing.T) string {
	t.Helper()
	base := t.TempDir()

	writeWAV(t, filepath.Join(base, "good", "rip.wav"))
	writeFile(t, filepath.Join(base, "good", "rip.cue"), albumCue)

	writeFile(t, filepath.Join(base, "single", "rip.cue"), `FILE "rip.wav" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
`)
	writeFile(t, filepath.Join(base, "nofile", "rip.CUE"), `TRACK 01 AUDIO
  INDEX 01 00:00:00
TRACK 02 AUDIO
  INDEX 01 00:01:00
`)
	writeFile(t, filepath.Join(base, "multi", "rip.cue"), `FILE "a.wav" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
FILE "b.wav" WAVE
  TRACK 02 AUDIO
    INDEX 01 00:00:00
`)
	writeFile(t, filepath.Join(base, "missing", "rip.cue"), `PERFORMER "Gone"
FILE "rip.wav" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    INDEX 01 00:01:00
`)
	return base
}

func TestRun(t *testing.T) {
	base := library(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	st, err := run(context.Background(), []string{"-j", "2", base, out}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, stats{processed: 1, skipped: 4}, st, stdout.String()+stderr.String())

	text := stdout.String()
	assert.Contains(t, text, "Found 5 CUE file(s)")
	assert.Contains(t, text, "SPLIT: "+filepath.Join("Artist", "Album")+" - 2 tracks")
	assert.Contains(t, text, "SKIP: single - no tracks or only 1 track")
	assert.Contains(t, text, "SKIP: nofile - unreadable cuesheet")
	assert.Contains(t, text, "SKIP: multi - multi-file CUE (already split)")
	assert.Contains(t, text, "audio file not found")
	assert.Contains(t, text, "Summary: 1 processed, 4 skipped, 0 failed")

	assert.FileExists(t, filepath.Join(out, "Artist", "Album", "01 One.flac"))
	assert.FileExists(t, filepath.Join(out, "Artist", "Album", "02 Two.flac"))

	// A second run finds the release complete.
	stdout.Reset()
	st, err = run(context.Background(), []string{base, out}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, stats{skipped: 5}, st)
	assert.Contains(t, stdout.String(), "already processed (2/2 tracks)")

	// Unless forced.
	stdout.Reset()
	st, err = run(context.Background(), []string{"-force", base, out}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, stats{processed: 1, skipped: 4}, st)
}

func TestRun_DryRun(t *testing.T) {
	base := library(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	st, err := run(context.Background(), []string{"-dry-run", base, out}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, st.processed)
	assert.Contains(t, stdout.String(), "This was a dry run")
	assert.Contains(t, stdout.String(), "[DRY RUN] Would split "+filepath.Join(base, "good", "rip.cue")+
		" into "+filepath.Join(out, "Artist", "Album")+" at up to 48000 Hz")
	assert.Equal(t, 1, strings.Count(stdout.String(), "[DRY RUN]"))
	assert.NoDirExists(t, filepath.Join(out, "Artist"))
}

func TestRun_Failure(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "bad", "rip.wav"), "not audio")
	writeFile(t, filepath.Join(base, "bad", "rip.cue"), albumCue)

	var stdout, stderr bytes.Buffer
	st, err := run(context.Background(), []string{base, t.TempDir()}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 1, st.failed)
	assert.Contains(t, stderr.String(), "FAILED: "+filepath.Join("Artist", "Album"))
}

func TestRun_Args(t *testing.T) {
	var stdout, stderr bytes.Buffer
	_, err := run(context.Background(), []string{"only-one"}, &stdout, &stderr)
	require.ErrorIs(t, err, errUsage)

	_, err = run(context.Background(), []string{filepath.Join(t.TempDir(), "nope"), t.TempDir()}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory not found")

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "")
	_, err = run(context.Background(), []string{file, t.TempDir()}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRun_NoCues(t *testing.T) {
	var stdout, stderr bytes.Buffer
	st, err := run(context.Background(), []string{t.TempDir(), t.TempDir()}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, stats{}, st)
	assert.Contains(t, stdout.String(), "No CUE files found")
}

func TestGroupByDir(t *testing.T) {
	groups := groupByDir([]release{
		{cuePath: "a.cue", dir: "x"},
		{cuePath: "b.cue", dir: "y"},
		{cuePath: "c.cue", dir: "x"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, []release{{cuePath: "a.cue", dir: "x"}, {cuePath: "c.cue", dir: "x"}}, groups[0])
	assert.Equal(t, []release{{cuePath: "b.cue", dir: "y"}}, groups[1])
}
