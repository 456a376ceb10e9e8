package main

// Default command-line flag values
const (
	defaultRate    = 0 // keep the source rate
	defaultOutDir  = "."
	defaultFormats = "flac"
	defaultRound   = "truncate"
)

const (
	exitUsage     = 2
	minimumCueArg = 1
)
