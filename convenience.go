package flacsplit

// Common sample rates for convenience functions.
const (
	// RateCD is the CD quality sample rate (Red Book standard).
	RateCD = 44100

	// RateDAT is the DAT/DVD sample rate.
	RateDAT = 48000

	// RateHiRes88 is the high-resolution 2x CD sample rate.
	RateHiRes88 = 88200

	// RateHiRes96 is the high-resolution 2x DAT sample rate.
	RateHiRes96 = 96000

	// RateHiRes176 is the very high resolution 4x CD sample rate.
	RateHiRes176 = 176400

	// RateHiRes192 is the very high resolution 4x DAT sample rate.
	RateHiRes192 = 192000
)

// NewHiResToCD creates a resampler for 88.2kHz to CD (44.1kHz) conversion.
// The 2:1 ratio keeps every output sample on an input sample.
func NewHiResToCD(channels int) (*Resampler, error) {
	return NewResampler(RateHiRes88, RateCD, channels)
}

// NewHiResToDAT creates a resampler for 96kHz to DAT (48kHz) conversion.
func NewHiResToDAT(channels int) (*Resampler, error) {
	return NewResampler(RateHiRes96, RateDAT, channels)
}

// NewDATtoCD creates a resampler for DAT (48kHz) to CD (44.1kHz) conversion.
func NewDATtoCD(channels int) (*Resampler, error) {
	return NewResampler(RateDAT, RateCD, channels)
}

// NewStereo creates a stereo resampler.
func NewStereo(inputRate, outputRate int) (*Resampler, error) {
	return NewResampler(inputRate, outputRate, stereoChannels)
}

// ResampleFrame is a convenience function for one-shot resampling of a
// complete stream held in a single frame.
func ResampleFrame(in *Frame, outputRate int) (*Frame, error) {
	r, err := NewResampler(in.Rate, outputRate, in.Channels)
	if err != nil {
		return nil, err
	}
	return r.Resample(in)
}

// ResampleMono is a convenience function for one-shot mono resampling.
func ResampleMono(input []int32, inputRate, outputRate int) ([]int32, error) {
	in := &Frame{
		Channels: monoChannels,
		Samples:  len(input),
		Rate:     inputRate,
		Data:     [][]int32{input},
	}
	out, err := ResampleFrame(in, outputRate)
	if err != nil {
		return nil, err
	}
	return out.Data[0], nil
}
