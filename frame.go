package flacsplit

import (
	"fmt"
)

// Frame is one chunk of non-interleaved multi-channel PCM audio.
//
// Data holds one slice per channel; every slice has at least Samples
// elements and only the first Samples are meaningful. Values are stored as
// int32, wide enough for any bit depth up to 32 bits.
type Frame struct {
	// Channels is the channel count. It equals len(Data).
	Channels int

	// Samples is the number of samples per channel in this chunk.
	Samples int

	// BitsPerSample is the source bit depth. Resampling passes it through.
	BitsPerSample int

	// Rate is the sample rate in Hz.
	Rate int

	// Data holds the samples, one slice per channel.
	Data [][]int32
}

// NewFrame allocates a frame with zeroed storage for the given shape.
func NewFrame(channels, samples, bitsPerSample, rate int) *Frame {
	data := make([][]int32, channels)
	backing := make([]int32, channels*samples)
	for ch := range data {
		data[ch] = backing[ch*samples : (ch+1)*samples : (ch+1)*samples]
	}
	return &Frame{
		Channels:      channels,
		Samples:       samples,
		BitsPerSample: bitsPerSample,
		Rate:          rate,
		Data:          data,
	}
}

// Validate reports whether the frame's shape is consistent.
func (f *Frame) Validate() error {
	if f.Samples < 0 {
		return fmt.Errorf("%w: negative sample count %d", ErrInvalidFrame, f.Samples)
	}
	if f.Channels != len(f.Data) {
		return fmt.Errorf("%w: %d channels declared, %d present", ErrInvalidFrame, f.Channels, len(f.Data))
	}
	for ch, samples := range f.Data {
		if len(samples) < f.Samples {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidFrame, ch, len(samples), f.Samples)
		}
	}
	return nil
}

// Clone returns a deep copy of the frame, trimmed to Samples.
func (f *Frame) Clone() *Frame {
	c := NewFrame(f.Channels, f.Samples, f.BitsPerSample, f.Rate)
	for ch := range c.Data {
		copy(c.Data[ch], f.Data[ch][:f.Samples])
	}
	return c
}

// Slice returns a frame viewing samples [start, end) of f. The returned
// frame shares storage with f.
func (f *Frame) Slice(start, end int) *Frame {
	data := make([][]int32, f.Channels)
	for ch := range data {
		data[ch] = f.Data[ch][start:end]
	}
	return &Frame{
		Channels:      f.Channels,
		Samples:       end - start,
		BitsPerSample: f.BitsPerSample,
		Rate:          f.Rate,
		Data:          data,
	}
}

// Duration returns the chunk length in seconds.
func (f *Frame) Duration() float64 {
	if f.Rate <= 0 {
		return 0
	}
	return float64(f.Samples) / float64(f.Rate)
}

// Interleave appends the frame's samples to dst in interleaved order
// [c0s0, c1s0, ..., c0s1, c1s1, ...] and returns the extended slice.
func (f *Frame) Interleave(dst []int) []int {
	for i := range f.Samples {
		for ch := range f.Channels {
			dst = append(dst, int(f.Data[ch][i]))
		}
	}
	return dst
}

// FrameFromInterleaved builds a frame from interleaved samples. Trailing
// values that do not form a complete sample across all channels are
// ignored.
func FrameFromInterleaved(interleaved []int, channels, bitsPerSample, rate int) *Frame {
	samples := 0
	if channels > 0 {
		samples = len(interleaved) / channels
	}
	f := NewFrame(channels, samples, bitsPerSample, rate)

	// Fast path for stereo
	if channels == stereoChannels {
		left, right := f.Data[0], f.Data[1]
		for i := range samples {
			left[i] = int32(interleaved[2*i])
			right[i] = int32(interleaved[2*i+1])
		}
		return f
	}

	for i := range samples {
		base := i * channels
		for ch := range channels {
			f.Data[ch][i] = int32(interleaved[base+ch])
		}
	}
	return f
}
