// Package flacsplit provides the streaming sample-rate converter at the core
// of the flacsplit cuesheet splitter.
//
// flacsplit splits a continuous FLAC or WAVE recording into per-track files
// according to a cuesheet, optionally downsampling and re-encoding into one
// or more target formats, and writes ReplayGain tags. This package holds the
// part every track passes through: a stateful [Resampler] that consumes
// arbitrarily sized [Frame] chunks of integer PCM at one rate and produces
// the matching chunks at a lower rate.
//
// # Quick Start
//
// For one-shot resampling of a buffer held in memory:
//
//	out, err := flacsplit.ResampleMono(samples, 96000, 48000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For streaming resampling with a reusable resampler:
//
//	r, err := flacsplit.New(&flacsplit.Config{
//	    InputRate:  96000,
//	    OutputRate: 48000,
//	    Channels:   2,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for frame := range frames {
//	    out, err := r.Resample(frame)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    writeOutput(out)
//	}
//
// # Streaming Semantics
//
// Each call produces ceil((samples + position) / ratio) output samples, where
// ratio is input rate divided by output rate and position is the phase left
// over from the previous call. Feeding a stream in chunks therefore yields the
// same number of samples as feeding it whole. Output samples that would need
// a sample past the end of the current chunk repeat the chunk's final sample,
// since no future data is available yet.
//
// # Ownership
//
// [Resampler.Resample] returns a freshly allocated frame owned by the caller.
// [Resampler.ResampleInto] writes into a caller-provided frame so hot loops
// can reuse one buffer. The resampler never retains either.
//
// # Rounding
//
// Interpolated values are truncated toward zero by default, as a plain
// integer conversion does. Set [Config.Rounding] to [RoundNearest] to round
// instead.
//
// # Thread Safety
//
// A [Resampler] carries per-stream state and must not be shared between
// goroutines. Independent streams can be converted concurrently with
// independent instances.
//
// # Limitations
//
// Only downsampling (or same-rate passthrough) is supported. Interpolation is
// linear; no anti-aliasing filter is applied.
package flacsplit
