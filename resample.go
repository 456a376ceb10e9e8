package flacsplit

import (
	"errors"
	"fmt"

	"github.com/tphakala/flacsplit/internal/engine"
)

// Rounding selects how interpolated values are converted back to integer
// samples.
type Rounding = engine.Rounding

const (
	// RoundTruncate truncates toward zero. This is the default.
	RoundTruncate = engine.RoundTruncate

	// RoundNearest rounds half away from zero, avoiding the small DC bias
	// truncation introduces.
	RoundNearest = engine.RoundNearest
)

// Common errors returned by the resampler.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid resampler configuration")

	// ErrUpsampling indicates an output rate above the input rate. It wraps
	// ErrInvalidConfig.
	ErrUpsampling = fmt.Errorf("%w: upsampling not supported, only downsampling", ErrInvalidConfig)

	// ErrChannelMismatch indicates a frame whose channel count differs from
	// the configured count.
	ErrChannelMismatch = errors.New("channel count mismatch")

	// ErrInvalidFrame indicates a frame whose declared shape does not match
	// its sample storage.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Config holds resampling configuration.
type Config struct {
	// InputRate is the sample rate of input audio in Hz.
	InputRate int

	// OutputRate is the desired output sample rate in Hz. It must not
	// exceed InputRate.
	OutputRate int

	// Channels is the number of audio channels in every frame.
	Channels int

	// Rounding controls the final integer conversion. The zero value is
	// RoundTruncate.
	Rounding Rounding
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.OutputRate > c.InputRate {
		return fmt.Errorf("%w (input=%d Hz, output=%d Hz)", ErrUpsampling, c.InputRate, c.OutputRate)
	}

	if c.InputRate <= 0 || c.OutputRate <= 0 {
		return fmt.Errorf("%w: sample rates must be positive", ErrInvalidConfig)
	}

	if c.Channels < monoChannels {
		return fmt.Errorf("%w: channels must be at least 1", ErrInvalidConfig)
	}

	if c.Rounding != RoundTruncate && c.Rounding != RoundNearest {
		return fmt.Errorf("%w: unknown rounding mode %d", ErrInvalidConfig, c.Rounding)
	}

	return nil
}

// Resampler converts a stream of frames to a lower sample rate using linear
// interpolation.
//
// A Resampler carries phase and last-sample history between calls, so the
// output of consecutive Resample calls is the same as resampling the joined
// stream. Frames must be presented in stream order. A Resampler is not safe
// for concurrent use; create one per stream, or call Reset before reusing it
// for an unrelated stream.
type Resampler struct {
	config Config
	kernel *engine.Linear

	// Statistics
	samplesIn  int64
	samplesOut int64
}

// New creates a new resampler with the specified configuration.
func New(config *Config) (*Resampler, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	ratio := float64(config.InputRate) / float64(config.OutputRate)

	return &Resampler{
		config: *config,
		kernel: engine.NewLinear(ratio, config.Channels, config.Rounding),
	}, nil
}

// NewResampler creates a truncating resampler from inputRate to outputRate
// for the given channel count.
func NewResampler(inputRate, outputRate, channels int) (*Resampler, error) {
	return New(&Config{
		InputRate:  inputRate,
		OutputRate: outputRate,
		Channels:   channels,
	})
}

// Resample converts one frame and returns a newly allocated frame at the
// output rate. The caller owns the returned frame; later calls never
// modify it.
//
// On error the resampler state is left unchanged.
func (r *Resampler) Resample(in *Frame) (*Frame, error) {
	if err := r.check(in); err != nil {
		return nil, err
	}

	out := NewFrame(r.config.Channels, r.kernel.OutputLen(in.Samples), in.BitsPerSample, r.config.OutputRate)
	r.process(out, in)

	return out, nil
}

// ResampleInto converts src into dst, reusing dst's channel storage when it
// has enough capacity and growing it otherwise. dst belongs to the caller
// and is not retained.
//
// On error neither dst nor the resampler state is modified.
func (r *Resampler) ResampleInto(dst, src *Frame) error {
	if err := r.check(src); err != nil {
		return err
	}

	n := r.kernel.OutputLen(src.Samples)
	if len(dst.Data) != r.config.Channels {
		dst.Data = make([][]int32, r.config.Channels)
	}
	for ch := range dst.Data {
		if cap(dst.Data[ch]) < n {
			dst.Data[ch] = make([]int32, n)
		}
		dst.Data[ch] = dst.Data[ch][:n]
	}
	dst.Channels = r.config.Channels
	dst.BitsPerSample = src.BitsPerSample
	dst.Rate = r.config.OutputRate

	r.process(dst, src)
	return nil
}

func (r *Resampler) check(in *Frame) error {
	if in == nil {
		return fmt.Errorf("%w: frame is nil", ErrInvalidFrame)
	}
	if in.Channels != r.config.Channels {
		return fmt.Errorf("%w: expected %d channels, got %d", ErrChannelMismatch, r.config.Channels, in.Channels)
	}
	return in.Validate()
}

// process runs the kernel. out must already have OutputLen(in.Samples)
// samples of storage per channel.
func (r *Resampler) process(out, in *Frame) {
	if in.Samples == 0 {
		out.Samples = 0
		return
	}

	written := r.kernel.Process(out.Data, in.Data, in.Samples)
	out.Samples = written
	for ch := range out.Data {
		out.Data[ch] = out.Data[ch][:written]
	}

	r.samplesIn += int64(in.Samples)
	r.samplesOut += int64(written)
}

// Reset clears all internal state: the phase position returns to zero and
// the last-sample history is treated as silence.
func (r *Resampler) Reset() {
	r.kernel.Reset()
	r.samplesIn = 0
	r.samplesOut = 0
}

// GetRatio returns the resampling ratio (input_rate / output_rate).
func (r *Resampler) GetRatio() float64 {
	return r.kernel.Ratio()
}

// GetStatistics returns processing statistics.
func (r *Resampler) GetStatistics() map[string]int64 {
	return map[string]int64{
		"samplesIn":  r.samplesIn,
		"samplesOut": r.samplesOut,
	}
}

// InputRate returns the configured input sample rate in Hz.
func (r *Resampler) InputRate() int { return r.config.InputRate }

// OutputRate returns the configured output sample rate in Hz.
func (r *Resampler) OutputRate() int { return r.config.OutputRate }

// Channels returns the configured channel count.
func (r *Resampler) Channels() int { return r.config.Channels }
