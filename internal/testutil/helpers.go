// Package testutil provides reusable test helpers for frames and audio files.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/flacsplit"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-10
	DBTolerance      = 0.01
	LUFSTolerance    = 0.1
)

// SineFrame returns a frame with a sine of freq Hz in every channel.
// amplitude is relative to full scale.
func SineFrame(channels, samples, bitsPerSample, rate int, freq, amplitude float64) *flacsplit.Frame {
	f := flacsplit.NewFrame(channels, samples, bitsPerSample, rate)
	peak := amplitude * (math.Ldexp(1, bitsPerSample-1) - 1)
	for i := range samples {
		v := int32(math.Round(peak * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))))
		for ch := range channels {
			f.Data[ch][i] = v
		}
	}
	return f
}

// RampFrame returns a frame where channel ch holds start+ch*1000+i at
// index i. Distinct values per channel make reordering visible.
func RampFrame(channels, samples, bitsPerSample, rate, start int) *flacsplit.Frame {
	f := flacsplit.NewFrame(channels, samples, bitsPerSample, rate)
	for ch := range channels {
		for i := range samples {
			f.Data[ch][i] = int32(start + ch*1000 + i)
		}
	}
	return f
}

// Concat joins frames of the same format into one frame.
func Concat(frames ...*flacsplit.Frame) *flacsplit.Frame {
	if len(frames) == 0 {
		return &flacsplit.Frame{}
	}
	first := frames[0]
	total := 0
	for _, f := range frames {
		total += f.Samples
	}

	out := flacsplit.NewFrame(first.Channels, total, first.BitsPerSample, first.Rate)
	pos := 0
	for _, f := range frames {
		for ch := range out.Data {
			copy(out.Data[ch][pos:], f.Data[ch][:f.Samples])
		}
		pos += f.Samples
	}
	return out
}

// AssertFrameEqual verifies that two frames have the same format and
// samples.
func AssertFrameEqual(t *testing.T, expected, actual *flacsplit.Frame, msgAndArgs ...any) bool {
	t.Helper()
	ok := assert.Equal(t, expected.Channels, actual.Channels, msgAndArgs...)
	ok = assert.Equal(t, expected.Samples, actual.Samples, msgAndArgs...) && ok
	ok = assert.Equal(t, expected.BitsPerSample, actual.BitsPerSample, msgAndArgs...) && ok
	ok = assert.Equal(t, expected.Rate, actual.Rate, msgAndArgs...) && ok
	if !ok {
		return false
	}
	for ch := range expected.Channels {
		if !assert.Equal(t, expected.Data[ch][:expected.Samples], actual.Data[ch][:actual.Samples], msgAndArgs...) {
			return false
		}
	}
	return true
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}
