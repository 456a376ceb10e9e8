// Package engine implements the sample-rate conversion kernels.
package engine

import (
	"math"
)

// Rounding selects how interpolated values are converted back to integer
// samples.
type Rounding int

const (
	// RoundTruncate truncates toward zero, matching a plain integer conversion.
	RoundTruncate Rounding = iota

	// RoundNearest rounds half away from zero.
	RoundNearest
)

// Linear implements streaming 2-point linear interpolation for integer PCM
// downsampling.
//
// The kernel keeps a fractional phase position (in input-sample units) and
// the final sample of the previous chunk for every channel, so a sequence of
// Process calls behaves as one continuous stream. A Linear must only be fed
// chunks of a single stream, in order; use Reset before starting another.
type Linear struct {
	ratio    float64 // input rate / output rate, >= 1
	position float64
	last     []int32
	rounding Rounding
}

// NewLinear creates a linear kernel for the given ratio and channel count.
// The caller is responsible for validating that ratio >= 1 and channels > 0.
func NewLinear(ratio float64, channels int, rounding Rounding) *Linear {
	return &Linear{
		ratio:    ratio,
		last:     make([]int32, channels),
		rounding: rounding,
	}
}

// OutputLen returns the number of samples per channel the next Process call
// produces for n input samples.
func (l *Linear) OutputLen(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil((float64(n) + l.position) / l.ratio))
}

// Process converts the first n samples of every channel in src into dst and
// returns the number of samples written per channel. Every dst channel must
// have room for OutputLen(n) samples. n must be positive.
//
// The explicit float64 conversions keep the compiler from fusing
// multiply-adds, so results are identical on every architecture.
func (l *Linear) Process(dst, src [][]int32, n int) int {
	out := l.OutputLen(n)

	for i := range out {
		inPos := float64(float64(i)*l.ratio) - l.position
		idx := int(math.Floor(inPos))
		frac := inPos - float64(idx)

		for ch := range l.last {
			s0 := l.sampleAt(src[ch], ch, idx, n)
			s1 := l.sampleAt(src[ch], ch, idx+1, n)
			v := float64(float64(s0)*(1.0-frac)) + float64(float64(s1)*frac)
			dst[ch][i] = l.convert(v)
		}
	}

	l.position = (float64(n) + l.position) - float64(float64(out)*l.ratio)
	for ch := range l.last {
		l.last[ch] = src[ch][n-1]
	}

	return out
}

// sampleAt returns the source value used for interpolation at idx. Indices
// before the chunk use the previous chunk's final sample; indices past the
// end repeat the chunk's final sample.
func (l *Linear) sampleAt(samples []int32, ch, idx, n int) int32 {
	switch {
	case idx < 0:
		return l.last[ch]
	case idx >= n:
		return samples[n-1]
	default:
		return samples[idx]
	}
}

func (l *Linear) convert(v float64) int32 {
	if l.rounding == RoundNearest {
		return int32(math.Round(v))
	}
	return int32(v)
}

// Reset restores the initial phase and clears the last-sample history, as
// if silence preceded the next chunk.
func (l *Linear) Reset() {
	l.position = 0
	clear(l.last)
}

// Ratio returns input rate / output rate.
func (l *Linear) Ratio() float64 {
	return l.ratio
}

// Position returns the carried phase position in input-sample units.
func (l *Linear) Position() float64 {
	return l.position
}

// LastSamples returns a copy of the carried final sample of every channel.
func (l *Linear) LastSamples() []int32 {
	out := make([]int32, len(l.last))
	copy(out, l.last)
	return out
}

// Channels returns the configured channel count.
func (l *Linear) Channels() int {
	return len(l.last)
}
