// Package pipeline connects decoders, the resampler and frame consumers.
//
// A pipeline is push-based: a producer hands each decoded frame to a Sink,
// and sinks forward (possibly transformed) frames to the next Sink. Sinks
// must not retain a frame after WriteFrame returns; callers are free to
// reuse its storage for the next frame.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/tphakala/flacsplit"
)

// Sink consumes frames of one stream in order.
type Sink interface {
	// WriteFrame consumes f. The sink must copy any data it needs to keep.
	WriteFrame(f *flacsplit.Frame) error

	// Close flushes buffered data and releases resources.
	Close() error
}

// Tee duplicates every frame to all of its sinks.
type Tee []Sink

// WriteFrame forwards f to every sink, stopping at the first error.
func (t Tee) WriteFrame(f *flacsplit.Frame) error {
	for i, s := range t {
		if err := s.WriteFrame(f); err != nil {
			return fmt.Errorf("tee sink %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every sink and returns all errors joined.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Chain resamples frames before handing them to the next sink. The output
// frame storage is owned by the Chain and reused between calls.
type Chain struct {
	resampler *flacsplit.Resampler
	next      Sink
	out       flacsplit.Frame
}

// NewChain creates a Chain. A nil resampler forwards frames unchanged.
func NewChain(r *flacsplit.Resampler, next Sink) *Chain {
	return &Chain{resampler: r, next: next}
}

// WriteFrame resamples f and forwards the result. Frames that resample to
// zero samples are not forwarded.
func (c *Chain) WriteFrame(f *flacsplit.Frame) error {
	if c.resampler == nil {
		return c.next.WriteFrame(f)
	}

	if err := c.resampler.ResampleInto(&c.out, f); err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	if c.out.Samples == 0 {
		return nil
	}
	return c.next.WriteFrame(&c.out)
}

// Close closes the next sink.
func (c *Chain) Close() error {
	return c.next.Close()
}

// Discard is a Sink that drops every frame.
var Discard Sink = discard{}

type discard struct{}

func (discard) WriteFrame(*flacsplit.Frame) error { return nil }
func (discard) Close() error                      { return nil }

// Collector is a Sink that keeps a copy of every frame, for tests and
// small in-memory conversions.
type Collector struct {
	Frames []*flacsplit.Frame
	Closed bool
}

// WriteFrame stores a deep copy of f.
func (c *Collector) WriteFrame(f *flacsplit.Frame) error {
	c.Frames = append(c.Frames, f.Clone())
	return nil
}

// Close marks the collector closed.
func (c *Collector) Close() error {
	c.Closed = true
	return nil
}

// Samples returns the collected samples of one channel, concatenated.
func (c *Collector) Samples(ch int) []int32 {
	var out []int32
	for _, f := range c.Frames {
		out = append(out, f.Data[ch][:f.Samples]...)
	}
	return out
}
