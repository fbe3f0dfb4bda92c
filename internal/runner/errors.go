package runner

import "fmt"

// SetupError reports a failure before any traffic was sent. The run is
// aborted and no report is produced.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
