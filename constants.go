package flacsplit

// Channel constants
const (
	monoChannels   = 1
	stereoChannels = 2 // Stereo channel count (used by interleave fast path)
)
