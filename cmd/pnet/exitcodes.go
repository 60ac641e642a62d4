package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config file, bad option values)
	ExitDataError   = 3 // Data error (unreadable graph, corrupt cache, no DOI in PDF)
)
