package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/tphakala/flacsplit"
)

const (
	// FLACBlockSize is the fixed block size declared by the FLAC encoder.
	// Only the final frame of a stream may be shorter.
	FLACBlockSize = 4096

	// vendor is written to the Vorbis comment block.
	vendor = "flacsplit"

	// Vorbis comment lengths are 32-bit little-endian prefixes.
	vorbisLengthPrefix = 4
)

// flacChannelLayouts maps channel counts to FLAC channel assignments.
var flacChannelLayouts = map[int]frame.Channels{
	1: frame.ChannelsMono,
	2: frame.ChannelsLR,
	3: frame.ChannelsLRC,
	4: frame.ChannelsLRLsRs,
	5: frame.ChannelsLRCLsRs,
	6: frame.ChannelsLRCLfeLsRs,
	7: frame.ChannelsLRCLfeCsSlSr,
	8: frame.ChannelsLRCLfeLsRsSlSr,
}

type flacDecoder struct {
	file   *os.File
	stream *flac.Stream
	info   StreamInfo
	frame  flacsplit.Frame
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("invalid FLAC file: %w", err)
	}

	si := stream.Info
	return &flacDecoder{
		file:   f,
		stream: stream,
		info: StreamInfo{
			SampleRate:    int(si.SampleRate),
			Channels:      int(si.NChannels),
			BitsPerSample: int(si.BitsPerSample),
			TotalSamples:  int64(si.NSamples),
		},
	}, nil
}

func (d *flacDecoder) Info() StreamInfo {
	return d.info
}

func (d *flacDecoder) ReadFrame() (*flacsplit.Frame, error) {
	fr, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode FLAC frame: %w", err)
	}

	n := int(fr.BlockSize)
	if cap(d.frame.Data) < len(fr.Subframes) {
		d.frame.Data = make([][]int32, len(fr.Subframes))
	}
	d.frame.Data = d.frame.Data[:len(fr.Subframes)]
	for ch, sub := range fr.Subframes {
		d.frame.Data[ch] = sub.Samples[:n]
	}
	d.frame.Channels = len(fr.Subframes)
	d.frame.Samples = n
	d.frame.BitsPerSample = d.info.BitsPerSample
	d.frame.Rate = d.info.SampleRate

	return &d.frame, nil
}

func (d *flacDecoder) Close() error {
	return d.file.Close()
}

// writeSeeker hides the Close method of the destination so that closing
// the FLAC encoder leaves the file open for its owner.
type writeSeeker struct {
	io.WriteSeeker
}

type flacEncoder struct {
	enc      *flac.Encoder
	channels frame.Channels
	info     StreamInfo
	frames   uint64
}

func newFLACEncoder(w io.WriteSeeker, info StreamInfo, tags Tags) (*flacEncoder, error) {
	layout, ok := flacChannelLayouts[info.Channels]
	if !ok {
		return nil, fmt.Errorf("%w: %d channels in FLAC", ErrUnsupportedFormat, info.Channels)
	}
	if info.BitsPerSample < 4 || info.BitsPerSample > 32 {
		return nil, fmt.Errorf("%w: %d bits per sample in FLAC", ErrUnsupportedFormat, info.BitsPerSample)
	}

	si := &meta.StreamInfo{
		BlockSizeMin:  FLACBlockSize,
		BlockSizeMax:  FLACBlockSize,
		SampleRate:    uint32(info.SampleRate),
		NChannels:     uint8(info.Channels),
		BitsPerSample: uint8(info.BitsPerSample),
		NSamples:      uint64(max(info.TotalSamples, 0)),
	}

	enc, err := flac.NewEncoder(writeSeeker{w}, si, vorbisCommentBlock(tags.Comments()))
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC encoder: %w", err)
	}

	return &flacEncoder{enc: enc, channels: layout, info: info}, nil
}

// vorbisCommentBlock builds the VORBIS_COMMENT metadata block.
func vorbisCommentBlock(comments [][2]string) *meta.Block {
	length := vorbisLengthPrefix + len(vendor) + vorbisLengthPrefix
	for _, c := range comments {
		length += vorbisLengthPrefix + len(c[0]) + 1 + len(c[1])
	}

	return &meta.Block{
		Header: meta.Header{
			Type:   meta.TypeVorbisComment,
			Length: int64(length),
			IsLast: true,
		},
		Body: &meta.VorbisComment{
			Vendor: vendor,
			Tags:   comments,
		},
	}
}

// WriteFrame encodes f as one FLAC frame. Constant channels use constant
// subframes and everything else is stored verbatim.
func (e *flacEncoder) WriteFrame(f *flacsplit.Frame) error {
	if f.Channels != e.info.Channels {
		return fmt.Errorf("%w: expected %d channels, got %d", flacsplit.ErrChannelMismatch, e.info.Channels, f.Channels)
	}
	if f.Samples == 0 {
		return nil
	}
	if f.Samples > FLACBlockSize {
		return fmt.Errorf("%w: %d > %d samples", ErrBlockTooLarge, f.Samples, FLACBlockSize)
	}

	subframes := make([]*frame.Subframe, f.Channels)
	for ch := range subframes {
		samples := f.Data[ch][:f.Samples]
		pred := frame.PredVerbatim
		if isConstant(samples) {
			pred = frame.PredConstant
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: pred},
			Samples:   samples,
			NSamples:  f.Samples,
		}
	}

	fr := &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: true,
			BlockSize:         uint16(f.Samples),
			SampleRate:        uint32(e.info.SampleRate),
			Channels:          e.channels,
			BitsPerSample:     uint8(e.info.BitsPerSample),
			Num:               e.frames,
		},
		Subframes: subframes,
	}
	if err := e.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("failed to encode FLAC frame: %w", err)
	}
	e.frames++
	return nil
}

func (e *flacEncoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize FLAC stream: %w", err)
	}
	return nil
}

func isConstant(samples []int32) bool {
	for _, s := range samples[1:] {
		if s != samples[0] {
			return false
		}
	}
	return true
}
