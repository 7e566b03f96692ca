package pipeline

import "errors"

// Error kinds surfaced to the invoking trigger. Any error aborts the cycle
// and leaves both the history window and the published artifacts unchanged.
var (
	// ErrCycleInProgress is returned when RunCycle is invoked while another
	// mutating run holds the pipeline. The second invocation is rejected,
	// never queued.
	ErrCycleInProgress = errors.New("a pipeline cycle is already in progress")

	// ErrFetch covers source unreachable, non-200 responses, and
	// undecodable payloads.
	ErrFetch = errors.New("fetch error")

	// ErrExtraction covers maps whose dimensions are incompatible with the
	// stored history.
	ErrExtraction = errors.New("extraction error")

	// ErrStorage covers history persistence read/write failures.
	ErrStorage = errors.New("storage error")

	// ErrNotAvailable is returned by artifact accessors before the first
	// successful cycle.
	ErrNotAvailable = errors.New("no artifacts available yet")
)
