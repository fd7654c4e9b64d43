package supervisor

import "errors"

// Sentinel errors surfaced across the supervisor's lifecycle.
var (
	// ErrTableFull is returned by spawn when the run table has reached
	// its capacity of live entries.
	ErrTableFull = errors.New("supervisor: run table full")

	// ErrMalformedLine annotates a control line with no ':' or an
	// unrecognized verb; it is logged, never returned to a caller that
	// aborts anything.
	ErrMalformedLine = errors.New("supervisor: malformed control line")

	// ErrSetupFailed wraps fatal startup errors: an unresolvable status
	// directory or a failed control-process spawn.
	ErrSetupFailed = errors.New("supervisor: setup failed")
)
