package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/flacsplit"
)

const (
	// wavReadFrames is the number of samples per channel read at a time.
	wavReadFrames = 4096

	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	minWAVBitDepth = 16
)

type wavDecoder struct {
	file    *os.File
	decoder *wav.Decoder
	info    StreamInfo
	buf     *audio.IntBuffer
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	// Extensible headers carry integer PCM for 24-bit and multichannel rips.
	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: WAVE format tag %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	format := decoder.Format()
	bitDepth := int(decoder.BitDepth)
	if bitDepth < minWAVBitDepth {
		return nil, fmt.Errorf("%w: %d-bit WAVE", ErrUnsupportedFormat, bitDepth)
	}

	var total int64
	if duration, err := decoder.Duration(); err == nil {
		total = int64(duration.Seconds()*float64(format.SampleRate) + 0.5)
	}

	return &wavDecoder{
		file:    f,
		decoder: decoder,
		info: StreamInfo{
			SampleRate:    format.SampleRate,
			Channels:      format.NumChannels,
			BitsPerSample: bitDepth,
			TotalSamples:  total,
		},
		buf: &audio.IntBuffer{
			Data:           make([]int, wavReadFrames*format.NumChannels),
			Format:         format,
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (d *wavDecoder) Info() StreamInfo {
	return d.info
}

func (d *wavDecoder) ReadFrame() (*flacsplit.Frame, error) {
	d.buf.Data = d.buf.Data[:cap(d.buf.Data)]
	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	return flacsplit.FrameFromInterleaved(d.buf.Data[:n], d.info.Channels, d.info.BitsPerSample, d.info.SampleRate), nil
}

func (d *wavDecoder) Close() error {
	return d.file.Close()
}

type wavEncoder struct {
	enc     *wav.Encoder
	info    StreamInfo
	format  *audio.Format
	scratch []int
}

func newWAVEncoder(w io.WriteSeeker, info StreamInfo, tags Tags) (*wavEncoder, error) {
	switch info.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAVE output", ErrUnsupportedFormat, info.BitsPerSample)
	}
	if info.Channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, info.Channels)
	}

	enc := wav.NewEncoder(w, info.SampleRate, info.BitsPerSample, info.Channels, wavFormatPCM)
	enc.Metadata = wavMetadata(tags)

	return &wavEncoder{
		enc:  enc,
		info: info,
		format: &audio.Format{
			NumChannels: info.Channels,
			SampleRate:  info.SampleRate,
		},
	}, nil
}

// wavMetadata maps tags onto the LIST/INFO fields. WAVE has no place for
// free-form comments, so Extra is dropped.
func wavMetadata(tags Tags) *wav.Metadata {
	m := &wav.Metadata{
		Artist:       tags.Artist,
		Title:        tags.Title,
		Product:      tags.Album,
		Genre:        tags.Genre,
		CreationDate: tags.Date,
		Software:     vendor,
	}
	if tags.TrackNumber > 0 {
		m.TrackNbr = strconv.Itoa(tags.TrackNumber)
	}
	return m
}

func (e *wavEncoder) WriteFrame(f *flacsplit.Frame) error {
	if f.Channels != e.info.Channels {
		return fmt.Errorf("%w: expected %d channels, got %d", flacsplit.ErrChannelMismatch, e.info.Channels, f.Channels)
	}
	if f.Samples == 0 {
		return nil
	}

	e.scratch = f.Interleave(e.scratch[:0])
	buf := &audio.IntBuffer{
		Data:           e.scratch,
		Format:         e.format,
		SourceBitDepth: e.info.BitsPerSample,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	return nil
}

func (e *wavEncoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAVE file: %w", err)
	}
	return nil
}
