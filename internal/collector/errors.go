package collector

import "fmt"

// FetchReason enumerates the distinct collection failure modes.
type FetchReason string

const (
	// ReasonExec means the tool exited non-zero or could not be started.
	ReasonExec FetchReason = "exec"
	// ReasonTimeout means the invocation exceeded the collect timeout.
	ReasonTimeout FetchReason = "timeout"
	// ReasonEmptyOutput means the tool produced no output.
	ReasonEmptyOutput FetchReason = "empty_output"
	// ReasonParse means the output failed structural parsing.
	ReasonParse FetchReason = "parse"
)

// FetchError is a failed collection attempt. A FetchError never implies any
// store mutation; the cycle aborts before persistence.
type FetchError struct {
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed (%s)", e.Reason)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchErr(reason FetchReason, err error) *FetchError {
	return &FetchError{Reason: reason, Err: err}
}
