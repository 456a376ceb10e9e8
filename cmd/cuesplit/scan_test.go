package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspect_SkipReasons(t *testing.T) {
	base := library(t)
	out := t.TempDir()

	tests := []struct {
		cue     string
		wantRel string
		reason  string
		ok      bool
	}{
		{filepath.Join("good", "rip.cue"), filepath.Join("Artist", "Album"), "2 tracks", true},
		{filepath.Join("single", "rip.cue"), "single", "no tracks or only 1 track", false},
		{filepath.Join("nofile", "rip.CUE"), "nofile", "unreadable cuesheet", false},
		{filepath.Join("multi", "rip.cue"), "multi", "multi-file CUE (already split)", false},
		{filepath.Join("missing", "rip.cue"), filepath.Join("Gone", "no album"), "audio file not found", false},
	}
	for _, tt := range tests {
		t.Run(tt.cue, func(t *testing.T) {
			r, reason, ok := inspect(filepath.Join(base, tt.cue), base, out, false)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantRel, r.rel)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestDisplayPath(t *testing.T) {
	out := filepath.Join("music", "out")
	assert.Equal(t, filepath.Join("Artist", "Album"), displayPath(filepath.Join(out, "Artist", "Album"), out))
	assert.Equal(t, "Album", displayPath(filepath.Join("elsewhere", "Album"), out))
}
