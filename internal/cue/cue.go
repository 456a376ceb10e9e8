// Package cue parses CD cuesheets describing a single-file rip.
package cue

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FramesPerSecond is the number of CD frames (sectors) in one second.
const FramesPerSecond = 75

// ErrSyntax indicates a malformed cuesheet line.
var ErrSyntax = errors.New("cuesheet syntax error")

// File is a FILE entry.
type File struct {
	Name string
	Type string
}

// Index is an INDEX entry. Offset is in CD frames from the start of the
// file.
type Index struct {
	Number int
	Offset int
}

// Track is a TRACK entry with the commands that follow it.
type Track struct {
	Number    int
	Type      string
	Title     string
	Performer string
	ISRC      string
	File      string
	Indexes   []Index
}

// Index returns the offset of INDEX n and whether it exists.
func (t *Track) Index(n int) (int, bool) {
	for _, idx := range t.Indexes {
		if idx.Number == n {
			return idx.Offset, true
		}
	}
	return 0, false
}

// IsAudio reports whether the track holds audio.
func (t *Track) IsAudio() bool {
	return strings.EqualFold(t.Type, "AUDIO")
}

// Sheet is a parsed cuesheet. Album fields are those that appear before
// the first TRACK.
type Sheet struct {
	Performer string
	Title     string
	Genre     string
	Date      string
	DiscID    string
	Comment   string
	Catalog   string

	Files  []File
	Tracks []*Track

	// Dir is the directory the sheet was read from, used to resolve FILE
	// names. Empty for sheets parsed from a reader.
	Dir string

	// Charset is the character set the sheet was decoded from.
	Charset string
}

// ParseFile reads and parses the cuesheet at path.
func ParseFile(path string) (*Sheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cuesheet: %w", err)
	}

	s, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Dir = filepath.Dir(path)
	return s, nil
}

// Parse reads a cuesheet from r.
func Parse(r io.Reader) (*Sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cuesheet: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Sheet, error) {
	text, charset := DecodeText(raw)
	s := &Sheet{Charset: charset}

	var (
		track   *Track
		current string
		lineNo  int

		// The first album-level PERFORMER and TITLE win.
		havePerformer, haveTitle bool
	)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		lineNo++
		fields := splitFields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		cmd := strings.ToUpper(fields[0])
		args := fields[1:]
		syntaxErr := func(format string, a ...any) error {
			return fmt.Errorf("%w: line %d: %s", ErrSyntax, lineNo, fmt.Sprintf(format, a...))
		}

		switch cmd {
		case "FILE":
			if len(args) < 1 {
				return nil, syntaxErr("FILE without name")
			}
			f := File{Name: args[0]}
			if len(args) > 1 {
				f.Type = strings.ToUpper(args[1])
			}
			s.Files = append(s.Files, f)
			current = f.Name

		case "TRACK":
			if len(args) < 2 {
				return nil, syntaxErr("TRACK needs a number and a type")
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return nil, syntaxErr("invalid track number %q", args[0])
			}
			if current == "" {
				return nil, syntaxErr("TRACK %d before any FILE", n)
			}
			track = &Track{Number: n, Type: strings.ToUpper(args[1]), File: current}
			s.Tracks = append(s.Tracks, track)

		case "INDEX":
			if track == nil {
				return nil, syntaxErr("INDEX outside of a track")
			}
			if len(args) < 2 {
				return nil, syntaxErr("INDEX needs a number and a time")
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return nil, syntaxErr("invalid index number %q", args[0])
			}
			offset, err := ParseTime(args[1])
			if err != nil {
				return nil, syntaxErr("%v", err)
			}
			track.Indexes = append(track.Indexes, Index{Number: n, Offset: offset})

		case "PERFORMER":
			if track != nil {
				track.Performer = arg(args)
			} else if !havePerformer {
				s.Performer = arg(args)
				havePerformer = true
			}

		case "TITLE":
			if track != nil {
				track.Title = arg(args)
			} else if !haveTitle {
				s.Title = arg(args)
				haveTitle = true
			}

		case "ISRC":
			if track != nil {
				track.ISRC = arg(args)
			}

		case "CATALOG":
			s.Catalog = arg(args)

		case "REM":
			if track != nil || len(args) < 2 {
				continue
			}
			value := strings.Join(args[1:], " ")
			switch strings.ToUpper(args[0]) {
			case "GENRE":
				s.Genre = value
			case "DATE":
				s.Date = value
			case "DISCID":
				s.DiscID = value
			case "COMMENT":
				s.Comment = value
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cuesheet: %w", err)
	}

	return s, nil
}

func arg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// splitFields splits a line on whitespace, keeping double-quoted strings
// together. An unterminated quote runs to the end of the line.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuote, inField := false, false

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			inField = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\r'):
			if inField {
				fields = append(fields, b.String())
				b.Reset()
				inField = false
			}
		default:
			b.WriteRune(r)
			inField = true
		}
	}
	if inField {
		fields = append(fields, b.String())
	}
	return fields
}

// ParseTime parses an mm:ss:ff position into CD frames.
func ParseTime(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		v[i] = n
	}
	if v[1] >= 60 || v[2] >= FramesPerSecond {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	return (v[0]*60+v[1])*FramesPerSecond + v[2], nil
}

// FramesToSamples converts a CD frame offset to a sample offset at rate.
func FramesToSamples(frames, rate int) int64 {
	return int64(frames) * int64(rate) / FramesPerSecond
}

// FilePaths returns the distinct FILE names in order of appearance,
// resolved against the sheet's directory.
func (s *Sheet) FilePaths() []string {
	seen := make(map[string]bool, len(s.Files))
	var out []string
	for _, f := range s.Files {
		p := f.Name
		if !filepath.IsAbs(p) && s.Dir != "" {
			p = filepath.Join(s.Dir, p)
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// AudioTracks returns the tracks of type AUDIO.
func (s *Sheet) AudioTracks() []*Track {
	var out []*Track
	for _, t := range s.Tracks {
		if t.IsAudio() {
			out = append(out, t)
		}
	}
	return out
}

// TrackPerformer returns the track performer, falling back to the album
// performer.
func (s *Sheet) TrackPerformer(t *Track) string {
	if t.Performer != "" {
		return t.Performer
	}
	return s.Performer
}

// Span is a track's extent in CD frames. End is -1 for a track that runs
// to the end of the file.
type Span struct {
	Start int
	End   int
}

// Samples converts the span to sample offsets at rate. End stays -1 when
// open.
func (sp Span) Samples(rate int) (start, end int64) {
	start = FramesToSamples(sp.Start, rate)
	end = -1
	if sp.End >= 0 {
		end = FramesToSamples(sp.End, rate)
	}
	return start, end
}

// Spans returns the extent of every audio track. A track starts at its
// INDEX 01 and ends at the next track's INDEX 00 if present, otherwise at
// the next track's INDEX 01. The last track is open-ended.
func (s *Sheet) Spans() ([]Span, error) {
	tracks := s.AudioTracks()
	spans := make([]Span, len(tracks))

	for i, t := range tracks {
		start, ok := t.Index(1)
		if !ok {
			return nil, fmt.Errorf("%w: track %d has no INDEX 01", ErrSyntax, t.Number)
		}
		spans[i] = Span{Start: start, End: -1}

		if i > 0 {
			prev := &spans[i-1]
			if pregap, ok := t.Index(0); ok {
				prev.End = pregap
			} else {
				prev.End = start
			}
			if prev.End < prev.Start {
				return nil, fmt.Errorf("%w: track %d starts before track %d ends", ErrSyntax, t.Number, tracks[i-1].Number)
			}
		}
	}
	return spans, nil
}
