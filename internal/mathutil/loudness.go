package mathutil

import (
	"math"
)

// LoudnessOffset is the constant term of the BS.1770 loudness formula.
const LoudnessOffset = -0.691

const (
	decibelPower     = 10.0
	decibelAmplitude = 20.0
)

// PowerToLUFS converts a channel-weighted mean square to loudness units
// relative to full scale. Zero power maps to -Inf.
func PowerToLUFS(power float64) float64 {
	if power <= 0 {
		return math.Inf(-1)
	}
	return LoudnessOffset + decibelPower*math.Log10(power)
}

// LUFSToPower is the inverse of PowerToLUFS.
func LUFSToPower(lufs float64) float64 {
	return math.Pow(decibelPower, (lufs-LoudnessOffset)/decibelPower)
}

// LinearToDB converts an amplitude ratio to decibels.
func LinearToDB(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return decibelAmplitude * math.Log10(x)
}

// DBToLinear converts decibels to an amplitude ratio.
func DBToLinear(db float64) float64 {
	return math.Pow(decibelPower, db/decibelAmplitude)
}

// FullScale returns the magnitude of the most negative value representable
// with the given bit depth, used to normalize integer PCM to [-1, 1).
func FullScale(bitsPerSample int) float64 {
	return math.Ldexp(1, bitsPerSample-1)
}
