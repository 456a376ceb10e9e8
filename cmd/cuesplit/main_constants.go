package main

// Default command-line flag values
const (
	defaultResampleRate = 48000
	defaultJobs         = 1
	requiredArgs        = 2
)

// Exit codes
const (
	exitFailed = 1
	exitUsage  = 2
)

const summaryRule = "============================================================"
