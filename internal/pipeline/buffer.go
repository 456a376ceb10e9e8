package pipeline

import (
	"sync"
)

// BlockBuffer is a multi-channel circular FIFO of PCM samples. It regroups
// frames of varying length into blocks of a fixed size.
type BlockBuffer struct {
	data     [][]int32
	capacity int
	size     int
	readPos  int
	writePos int
	mu       sync.Mutex
}

// NewBlockBuffer creates a buffer for the given channel count with an
// initial per-channel capacity.
func NewBlockBuffer(channels, capacity int) *BlockBuffer {
	capacity = max(capacity, minBufferCapacity)

	data := make([][]int32, channels)
	for ch := range data {
		data[ch] = make([]int32, capacity)
	}
	return &BlockBuffer{
		data:     data,
		capacity: capacity,
	}
}

// Write appends the first n samples of every channel in src. The buffer
// grows automatically when it lacks space.
func (b *BlockBuffer) Write(src [][]int32, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 {
		return
	}

	if b.size+n > b.capacity {
		b.grow(b.size + n)
	}

	// At most two copies per channel when the write wraps around.
	first := min(n, b.capacity-b.writePos)
	for ch := range b.data {
		copy(b.data[ch][b.writePos:], src[ch][:first])
		copy(b.data[ch], src[ch][first:n])
	}
	b.writePos = (b.writePos + n) % b.capacity
	b.size += n
}

// Read moves up to n samples per channel into dst and returns the number
// moved. Every dst channel must have room for n samples.
func (b *BlockBuffer) Read(dst [][]int32, n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n = min(n, b.size)
	if n <= 0 {
		return 0
	}

	first := min(n, b.capacity-b.readPos)
	for ch := range b.data {
		copy(dst[ch], b.data[ch][b.readPos:b.readPos+first])
		copy(dst[ch][first:n], b.data[ch][:n-first])
	}
	b.readPos = (b.readPos + n) % b.capacity
	b.size -= n

	return n
}

// Available returns the number of samples per channel ready for reading.
func (b *BlockBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the current per-channel capacity.
func (b *BlockBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Channels returns the channel count.
func (b *BlockBuffer) Channels() int {
	return len(b.data)
}

// Clear removes all samples from the buffer.
func (b *BlockBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.size = 0
	b.readPos = 0
	b.writePos = 0
}

// grow increases the capacity to at least minCapacity, keeping sample order.
func (b *BlockBuffer) grow(minCapacity int) {
	newCapacity := b.capacity
	for newCapacity < minCapacity {
		newCapacity *= bufferGrowthFactor
	}

	for ch, old := range b.data {
		newData := make([]int32, newCapacity)
		if b.size > 0 {
			if b.readPos < b.writePos {
				copy(newData, old[b.readPos:b.writePos])
			} else {
				n1 := copy(newData, old[b.readPos:])
				copy(newData[n1:], old[:b.writePos])
			}
		}
		b.data[ch] = newData
	}

	b.capacity = newCapacity
	b.readPos = 0
	b.writePos = b.size
}
