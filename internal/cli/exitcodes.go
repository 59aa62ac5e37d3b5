package cli

// Exit codes for mdstream.
const (
	// ExitSuccess indicates the serve loop drained stdin and exited cleanly.
	ExitSuccess = 0

	// ExitInvalidUsage indicates invalid command-line usage.
	ExitInvalidUsage = 64

	// ExitConfigError indicates a --config file could not be read or parsed.
	ExitConfigError = 65

	// ExitInternalError indicates an internal error, e.g. a write to stdout
	// failing mid-stream.
	ExitInternalError = 70
)
