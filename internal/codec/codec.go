// Package codec adapts FLAC and WAVE files to the frame model used by the
// resampler.
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tphakala/flacsplit"
)

// Errors returned by codec constructors.
var (
	// ErrUnsupportedFormat indicates a file type or sample format this
	// package cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrBlockTooLarge indicates a frame longer than the encoder's
	// declared block size.
	ErrBlockTooLarge = errors.New("frame exceeds encoder block size")
)

// StreamInfo describes a PCM stream.
type StreamInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int

	// TotalSamples is the stream length per channel, or 0 if unknown.
	TotalSamples int64
}

// Decoder reads a file as a sequence of frames.
type Decoder interface {
	// Info returns the stream format.
	Info() StreamInfo

	// ReadFrame returns the next frame, or io.EOF after the last one. The
	// frame is only valid until the next call.
	ReadFrame() (*flacsplit.Frame, error)

	// Close releases the underlying file.
	Close() error
}

// Encoder writes frames to a file. Encoders satisfy pipeline.Sink.
type Encoder interface {
	WriteFrame(f *flacsplit.Frame) error

	// Close finalizes the stream. It does not close the underlying writer.
	Close() error
}

// Format identifies an output container.
type Format int

const (
	// FormatFLAC is FLAC with Vorbis comments.
	FormatFLAC Format = iota

	// FormatWAVE is RIFF WAVE with a LIST/INFO chunk.
	FormatWAVE
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatFLAC:
		return "flac"
	case FormatWAVE:
		return "wav"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseFormats parses a comma-separated list such as "flac,wav".
// Duplicates are dropped and order is kept.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)

	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		var f Format
		switch name {
		case "flac":
			f = FormatFLAC
		case "wav", "wave":
			f = FormatWAVE
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
		}

		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no output format given", ErrUnsupportedFormat)
	}
	return out, nil
}

// Tags holds the metadata written to every output track.
type Tags struct {
	Artist      string
	AlbumArtist string
	Album       string
	Title       string
	Date        string
	Genre       string
	TrackNumber int
	TrackTotal  int

	// Extra holds additional Vorbis comments, such as ReplayGain values.
	// Formats without free-form tags ignore it.
	Extra [][2]string
}

// Comments returns the tags as Vorbis comment pairs. Empty fields are
// omitted.
func (t Tags) Comments() [][2]string {
	var out [][2]string
	add := func(key, value string) {
		if value != "" {
			out = append(out, [2]string{key, value})
		}
	}

	add("ARTIST", t.Artist)
	add("ALBUMARTIST", t.AlbumArtist)
	add("ALBUM", t.Album)
	add("TITLE", t.Title)
	if t.TrackNumber > 0 {
		add("TRACKNUMBER", strconv.Itoa(t.TrackNumber))
	}
	if t.TrackTotal > 0 {
		add("TRACKTOTAL", strconv.Itoa(t.TrackTotal))
	}
	add("DATE", t.Date)
	add("GENRE", t.Genre)

	return append(out, t.Extra...)
}

// OpenDecoder opens path with a decoder chosen by file extension.
func OpenDecoder(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".flac" && ext != ".wav" && ext != ".wave" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	var dec Decoder
	if ext == ".flac" {
		dec, err = newFLACDecoder(f)
	} else {
		dec, err = newWAVDecoder(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dec, nil
}

// NewEncoder creates an encoder for format writing to w.
func NewEncoder(format Format, w io.WriteSeeker, info StreamInfo, tags Tags) (Encoder, error) {
	switch format {
	case FormatFLAC:
		return newFLACEncoder(w, info, tags)
	case FormatWAVE:
		return newWAVEncoder(w, info, tags)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}
