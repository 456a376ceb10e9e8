package pipeline

import (
	"fmt"

	"github.com/tphakala/flacsplit"
)

// Reblocker is a Sink that forwards frames of exactly blockSize samples.
// The remainder is flushed as one shorter frame on Close.
type Reblocker struct {
	next      Sink
	blockSize int
	buf       *BlockBuffer
	block     *flacsplit.Frame

	// Stream properties are taken from the first frame.
	bitsPerSample int
	rate          int
}

// NewReblocker creates a Reblocker. A blockSize below one selects
// DefaultBlockSize.
func NewReblocker(next Sink, blockSize int) *Reblocker {
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	return &Reblocker{next: next, blockSize: blockSize}
}

// WriteFrame buffers f and forwards every complete block.
func (r *Reblocker) WriteFrame(f *flacsplit.Frame) error {
	if r.buf == nil {
		r.buf = NewBlockBuffer(f.Channels, r.blockSize*bufferGrowthFactor)
		r.block = flacsplit.NewFrame(f.Channels, r.blockSize, f.BitsPerSample, f.Rate)
		r.bitsPerSample = f.BitsPerSample
		r.rate = f.Rate
	}
	if f.Channels != r.buf.Channels() {
		return fmt.Errorf("%w: expected %d channels, got %d", flacsplit.ErrChannelMismatch, r.buf.Channels(), f.Channels)
	}

	r.buf.Write(f.Data, f.Samples)
	for r.buf.Available() >= r.blockSize {
		if err := r.emit(r.blockSize); err != nil {
			return err
		}
	}
	return nil
}

// Close forwards the buffered remainder and closes the next sink.
func (r *Reblocker) Close() error {
	if r.buf != nil {
		if n := r.buf.Available(); n > 0 {
			if err := r.emit(n); err != nil {
				return err
			}
		}
	}
	return r.next.Close()
}

func (r *Reblocker) emit(n int) error {
	for ch := range r.block.Data {
		r.block.Data[ch] = r.block.Data[ch][:n]
	}
	r.buf.Read(r.block.Data, n)
	r.block.Samples = n
	r.block.BitsPerSample = r.bitsPerSample
	r.block.Rate = r.rate
	return r.next.WriteFrame(r.block)
}
