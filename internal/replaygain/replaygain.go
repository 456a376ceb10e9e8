// Package replaygain measures track and album loudness and derives
// ReplayGain 2.0 values.
//
// Loudness follows ITU-R BS.1770: K-weighted mean square over 400 ms blocks
// with 75% overlap, an absolute gate at -70 LUFS and a relative gate 10 LU
// below the absolute-gated loudness. Gains target -18 LUFS.
package replaygain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tphakala/flacsplit"
	"github.com/tphakala/flacsplit/internal/filter"
	"github.com/tphakala/flacsplit/internal/mathutil"
	"github.com/tphakala/flacsplit/internal/simdops"
)

const (
	// ReferenceLoudness is the ReplayGain 2.0 target in LUFS.
	ReferenceLoudness = -18.0

	absoluteGate = -70.0
	relativeGate = -10.0

	// Block and hop lengths as fractions of a second.
	hopsPerSecond = 10
	hopsPerBlock  = 4

	// Minimum rate for which the K-weighting shelf can be designed.
	minSampleRate = 8000

	surroundWeight = 1.41
)

// ErrInvalidFormat indicates a stream the analyzer cannot measure.
var ErrInvalidFormat = errors.New("unsupported stream format for loudness analysis")

// Result holds the measurement of one track or album.
type Result struct {
	// Loudness is the gated integrated loudness in LUFS. It is -Inf for
	// digital silence.
	Loudness float64

	// GainDB is the gain to apply to reach ReferenceLoudness.
	GainDB float64

	// Peak is the sample peak relative to full scale.
	Peak float64

	blocks []float64
}

// Analyzer measures the loudness of one stream. It implements
// pipeline.Sink. An Analyzer is not safe for concurrent use.
type Analyzer struct {
	rate     int
	channels int
	weights  []float64
	filters  []*filter.KWeighting
	scratch  []float64

	hopLen  int
	hopFill int
	hopAcc  float64
	// Weighted energy of the last hopsPerBlock complete hops.
	hops   []float64
	blocks []float64

	peak     float64
	samples  int64
	energy   float64
	finished bool
}

// NewAnalyzer creates an analyzer for a stream with the given format.
func NewAnalyzer(rate, channels int) (*Analyzer, error) {
	if rate < minSampleRate {
		return nil, fmt.Errorf("%w: sample rate %d Hz below %d Hz", ErrInvalidFormat, rate, minSampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}

	a := &Analyzer{
		rate:     rate,
		channels: channels,
		weights:  channelWeights(channels),
		filters:  make([]*filter.KWeighting, channels),
		hopLen:   rate / hopsPerSecond,
		hops:     make([]float64, 0, hopsPerBlock),
	}
	for ch := range a.filters {
		a.filters[ch] = filter.NewKWeighting(rate)
	}
	return a, nil
}

// channelWeights returns the BS.1770 channel weights. Six channels are
// taken as L R C LFE Ls Rs.
func channelWeights(channels int) []float64 {
	w := make([]float64, channels)
	for i := range w {
		w[i] = 1
	}
	if channels == 6 {
		w[3] = 0
		w[4] = surroundWeight
		w[5] = surroundWeight
	}
	return w
}

// WriteFrame adds f to the measurement.
func (a *Analyzer) WriteFrame(f *flacsplit.Frame) error {
	if f.Channels != a.channels {
		return fmt.Errorf("%w: expected %d channels, got %d", flacsplit.ErrChannelMismatch, a.channels, f.Channels)
	}
	if f.Samples == 0 {
		return nil
	}
	if cap(a.scratch) < f.Channels*f.Samples {
		a.scratch = make([]float64, f.Channels*f.Samples)
	}

	scale := 1 / mathutil.FullScale(f.BitsPerSample)
	bufs := make([][]float64, f.Channels)
	for ch := range bufs {
		buf := a.scratch[ch*f.Samples : (ch+1)*f.Samples]
		for i, v := range f.Data[ch][:f.Samples] {
			buf[i] = float64(v)
		}
		simdops.Float64Ops().Scale(buf, buf, scale)
		a.peak = max(a.peak, floats.Max(buf), -floats.Min(buf))
		a.filters[ch].Process(buf)
		bufs[ch] = buf
	}

	for off := 0; off < f.Samples; {
		take := min(f.Samples-off, a.hopLen-a.hopFill)
		for ch, buf := range bufs {
			if a.weights[ch] == 0 {
				continue
			}
			a.hopAcc += a.weights[ch] * simdops.SumSquares(buf[off:off+take])
		}
		a.hopFill += take
		off += take
		if a.hopFill == a.hopLen {
			a.completeHop()
		}
	}
	a.samples += int64(f.Samples)
	return nil
}

func (a *Analyzer) completeHop() {
	a.energy += a.hopAcc
	if len(a.hops) == hopsPerBlock {
		copy(a.hops, a.hops[1:])
		a.hops = a.hops[:hopsPerBlock-1]
	}
	a.hops = append(a.hops, a.hopAcc)
	a.hopAcc = 0
	a.hopFill = 0

	if len(a.hops) == hopsPerBlock {
		a.blocks = append(a.blocks, floats.Sum(a.hops)/float64(hopsPerBlock*a.hopLen))
	}
}

// Close finishes the measurement. A stream shorter than one block is
// measured as a single block over all of its samples.
func (a *Analyzer) Close() error {
	if a.finished {
		return nil
	}
	a.finished = true

	if len(a.blocks) == 0 && a.samples > 0 {
		a.blocks = append(a.blocks, (a.energy+a.hopAcc)/float64(a.samples))
	}
	return nil
}

// Result returns the track measurement. It closes the analyzer if needed.
func (a *Analyzer) Result() Result {
	_ = a.Close()
	return newResult(a.blocks, a.peak)
}

// Reset prepares the analyzer for a new stream of the same format.
func (a *Analyzer) Reset() {
	for _, k := range a.filters {
		k.Reset()
	}
	a.hopFill = 0
	a.hopAcc = 0
	a.hops = a.hops[:0]
	a.blocks = nil
	a.peak = 0
	a.samples = 0
	a.energy = 0
	a.finished = false
}

// Album combines track measurements. Gating runs over the blocks of all
// tracks together and the peak is the highest track peak.
func Album(tracks ...Result) Result {
	var blocks []float64
	var peak float64
	for _, t := range tracks {
		blocks = append(blocks, t.blocks...)
		peak = max(peak, t.Peak)
	}
	return newResult(blocks, peak)
}

func newResult(blocks []float64, peak float64) Result {
	loudness := gatedLoudness(blocks)
	r := Result{
		Loudness: loudness,
		Peak:     peak,
		blocks:   blocks,
	}
	if !math.IsInf(loudness, -1) {
		r.GainDB = ReferenceLoudness - loudness
	}
	return r
}

// Scale returns the linear factor that applies GainDB. With noClip set the
// factor is reduced so the peak does not exceed full scale.
func (r Result) Scale(noClip bool) float64 {
	scale := mathutil.DBToLinear(r.GainDB)
	if noClip && r.Peak > 0 && r.Peak*scale > 1 {
		scale = 1 / r.Peak
	}
	return scale
}

// gatedLoudness applies the absolute and relative gates to block powers.
func gatedLoudness(blocks []float64) float64 {
	abs := gate(blocks, mathutil.LUFSToPower(absoluteGate))
	if len(abs) == 0 {
		return math.Inf(-1)
	}

	relative := mathutil.PowerToLUFS(stat.Mean(abs, nil)) + relativeGate
	gated := gate(abs, mathutil.LUFSToPower(relative))
	if len(gated) == 0 {
		return math.Inf(-1)
	}
	return mathutil.PowerToLUFS(stat.Mean(gated, nil))
}

func gate(blocks []float64, threshold float64) []float64 {
	out := make([]float64, 0, len(blocks))
	for _, p := range blocks {
		if p > threshold {
			out = append(out, p)
		}
	}
	return out
}

// FormatGain formats a gain the way ReplayGain tags store it.
func FormatGain(db float64) string {
	return fmt.Sprintf("%.2f dB", db)
}

// FormatPeak formats a peak the way ReplayGain tags store it.
func FormatPeak(peak float64) string {
	return fmt.Sprintf("%.6f", peak)
}

// Comments returns the Vorbis comments for a track within an album.
func Comments(track, album Result) [][2]string {
	return [][2]string{
		{"REPLAYGAIN_TRACK_GAIN", FormatGain(track.GainDB)},
		{"REPLAYGAIN_TRACK_PEAK", FormatPeak(track.Peak)},
		{"REPLAYGAIN_ALBUM_GAIN", FormatGain(album.GainDB)},
		{"REPLAYGAIN_ALBUM_PEAK", FormatPeak(album.Peak)},
		{"REPLAYGAIN_REFERENCE_LOUDNESS", fmt.Sprintf("%.2f LUFS", ReferenceLoudness)},
	}
}
