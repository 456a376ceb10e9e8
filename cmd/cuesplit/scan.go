package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tphakala/flacsplit/internal/codec"
	"github.com/tphakala/flacsplit/internal/cue"
	"github.com/tphakala/flacsplit/internal/split"
)

// release is a cuesheet together with the directory its tracks go to.
type release struct {
	cuePath string
	dir     string
	rel     string
	tracks  int
}

// findCues returns every *.cue below base, sorted.
func findCues(base string) ([]string, error) {
	var cues []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".cue") {
			cues = append(cues, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", base, err)
	}
	sort.Strings(cues)
	return cues, nil
}

// countAudioFiles counts FLAC and WAVE files directly inside dir.
func countAudioFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == codec.FormatFLAC.Ext() || ext == codec.FormatWAVE.Ext() {
			n++
		}
	}
	return n
}

// inspect decides whether cuePath needs splitting. A non-empty reason with
// ok == false explains why it is skipped.
func inspect(cuePath, base, out string, force bool) (r release, reason string, ok bool) {
	r = release{cuePath: cuePath, dir: filepath.Join(out, filepath.Base(filepath.Dir(cuePath)))}
	r.rel = displayPath(r.dir, out)

	sheet, err := cue.ParseFile(cuePath)
	if err != nil {
		return r, fmt.Sprintf("unreadable cuesheet: %v", err), false
	}
	r.dir = split.ReleaseDir(sheet, cuePath, base, out)
	r.rel = displayPath(r.dir, out)
	r.tracks = len(sheet.AudioTracks())

	if r.tracks <= 1 {
		return r, "no tracks or only 1 track", false
	}

	files := sheet.FilePaths()
	switch {
	case len(files) == 0:
		return r, "no audio file referenced", false
	case len(files) > 1:
		return r, "multi-file CUE (already split)", false
	}
	if _, err := os.Stat(files[0]); err != nil {
		return r, "audio file not found", false
	}

	if !force {
		if existing := countAudioFiles(r.dir); existing == r.tracks {
			return r, fmt.Sprintf("already processed (%d/%d tracks)", existing, r.tracks), false
		}
	}

	return r, fmt.Sprintf("%d tracks", r.tracks), true
}

func displayPath(dir, out string) string {
	rel, err := filepath.Rel(out, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(dir)
	}
	return rel
}

// groupByDir keeps releases sharing an output directory together so they
// are never split concurrently.
func groupByDir(releases []release) [][]release {
	index := make(map[string]int)
	var groups [][]release
	for _, r := range releases {
		i, ok := index[r.dir]
		if !ok {
			i = len(groups)
			index[r.dir] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}
