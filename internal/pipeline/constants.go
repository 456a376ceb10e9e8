package pipeline

// Buffer sizing constants.
const (
	// DefaultBlockSize is the block size used when none is configured. It
	// matches the fixed block size of common FLAC encoders.
	DefaultBlockSize = 4096

	// minBufferCapacity is the smallest per-channel capacity allocated.
	minBufferCapacity = 1

	// bufferGrowthFactor is the factor for buffer growth.
	bufferGrowthFactor = 2
)
