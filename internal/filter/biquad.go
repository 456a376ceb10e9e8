// Package filter implements the IIR filters used for loudness measurement.
package filter

import (
	"math"
	"math/cmplx"
)

// K-weighting pre-filter (high shelf) parameters from ITU-R BS.1770.
const (
	shelfFrequency = 1681.974450955533
	shelfGainDB    = 3.999843853973347
	shelfQ         = 0.7071752369554196
	shelfVbPower   = 0.4996667741545416
)

// K-weighting RLB high-pass parameters from ITU-R BS.1770.
const (
	highPassFrequency = 38.13547087602444
	highPassQ         = 0.5003270373238773
)

// Coefficients holds normalized biquad coefficients (a0 == 1).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Response returns the complex frequency response at freq Hz for the given
// sample rate.
func (c Coefficients) Response(freq float64, rate int) complex128 {
	w := 2 * math.Pi * freq / float64(rate)
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2
	return num / den
}

// GainDB returns the magnitude response at freq Hz in decibels.
func (c Coefficients) GainDB(freq float64, rate int) float64 {
	return 20 * math.Log10(cmplx.Abs(c.Response(freq, rate)))
}

// ShelfCoefficients designs the BS.1770 high-shelf stage for rate.
func ShelfCoefficients(rate int) Coefficients {
	k := math.Tan(math.Pi * shelfFrequency / float64(rate))
	vh := math.Pow(10, shelfGainDB/20)
	vb := math.Pow(vh, shelfVbPower)
	a0 := 1 + k/shelfQ + k*k

	return Coefficients{
		B0: (vh + vb*k/shelfQ + k*k) / a0,
		B1: 2 * (k*k - vh) / a0,
		B2: (vh - vb*k/shelfQ + k*k) / a0,
		A1: 2 * (k*k - 1) / a0,
		A2: (1 - k/shelfQ + k*k) / a0,
	}
}

// HighPassCoefficients designs the BS.1770 RLB high-pass stage for rate.
// The numerator is left unnormalized, as in the published BS.1770 filter.
func HighPassCoefficients(rate int) Coefficients {
	k := math.Tan(math.Pi * highPassFrequency / float64(rate))
	d := 1 + k/highPassQ + k*k

	return Coefficients{
		B0: 1,
		B1: -2,
		B2: 1,
		A1: 2 * (k*k - 1) / d,
		A2: (1 - k/highPassQ + k*k) / d,
	}
}

// Biquad is a second-order IIR section in transposed direct form II.
// A Biquad holds state for a single channel.
type Biquad struct {
	c      Coefficients
	z1, z2 float64
}

// NewBiquad creates a filter section with zero state.
func NewBiquad(c Coefficients) *Biquad {
	return &Biquad{c: c}
}

// Process filters buf in place.
func (b *Biquad) Process(buf []float64) {
	c := b.c
	z1, z2 := b.z1, b.z2
	for i, x := range buf {
		y := c.B0*x + z1
		z1 = c.B1*x - c.A1*y + z2
		z2 = c.B2*x - c.A2*y
		buf[i] = y
	}
	b.z1, b.z2 = z1, z2
}

// Reset clears the filter state.
func (b *Biquad) Reset() {
	b.z1, b.z2 = 0, 0
}

// KWeighting is the two-stage BS.1770 frequency weighting for one channel.
type KWeighting struct {
	shelf    *Biquad
	highPass *Biquad
}

// NewKWeighting designs the K-weighting cascade for rate.
func NewKWeighting(rate int) *KWeighting {
	return &KWeighting{
		shelf:    NewBiquad(ShelfCoefficients(rate)),
		highPass: NewBiquad(HighPassCoefficients(rate)),
	}
}

// Process filters buf in place.
func (k *KWeighting) Process(buf []float64) {
	k.shelf.Process(buf)
	k.highPass.Process(buf)
}

// Reset clears both stages.
func (k *KWeighting) Reset() {
	k.shelf.Reset()
	k.highPass.Reset()
}

// GainDB returns the cascade's magnitude response at freq Hz in decibels.
func (k *KWeighting) GainDB(freq float64, rate int) float64 {
	return k.shelf.c.GainDB(freq, rate) + k.highPass.c.GainDB(freq, rate)
}
