package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/flacsplit"
	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/testutil"
)

const testCue = `PERFORMER "Artist"
TITLE "Album"
FILE "rip.wav" WAVE
  TRACK 01 AUDIO
    TITLE "One"
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Two"
    INDEX 01 00:00:20
`

// writeRip writes half a second of 48 kHz stereo WAV plus its cuesheet.
func writeRip(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	f, err := os.Create(filepath.Join(dir, "rip.wav"))
	require.NoError(t, err)
	enc, err := codec.NewEncoder(codec.FormatWAVE, f, codec.StreamInfo{SampleRate: 48000, Channels: 2, BitsPerSample: 16}, codec.Tags{})
	require.NoError(t, err)
	require.NoError(t, enc.WriteFrame(testutil.SineFrame(2, 24000, 16, 48000, 440, 0.5)))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	cuePath := filepath.Join(dir, "rip.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(testCue), 0o600))
	return cuePath
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), nil, &stdout, &stderr)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr.String(), "Usage: flacsplit")
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"-f", "mp3", "x.cue"}},
		{"rounding", []string{"-round", "up", "x.cue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.Error(t, run(context.Background(), tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_Split(t *testing.T) {
	cuePath := writeRip(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-r", "24000", "-O", out, "-f", "flac,wav", "-v", cuePath}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "48000 Hz -> 24000 Hz")
	assert.Contains(t, stdout.String(), "2 tracks")
	assert.Contains(t, stderr.String(), "album:")

	for _, name := range []string{"01 One.flac", "01 One.wav", "02 Two.flac", "02 Two.wav"} {
		assert.FileExists(t, filepath.Join(out, "Artist", "Album", name))
	}
}

func TestRun_MissingCue(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-O", t.TempDir(), filepath.Join(t.TempDir(), "missing.cue")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.cue")
}

func TestParseRounding(t *testing.T) {
	tests := []struct {
		in      string
		want    flacsplit.Rounding
		wantErr bool
	}{
		{"truncate", flacsplit.RoundTruncate, false},
		{"", flacsplit.RoundTruncate, false},
		{"Nearest", flacsplit.RoundNearest, false},
		{"ceil", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRounding(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
