package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Error taxonomy per spec.md §7: fatal-init errors abort
 *		the pipeline, everything else degrades or retries.
 *
 *---------------------------------------------------------------*/

import "fmt"

// InitError distinguishes fatal-init failures (pipeline aborts) from
// non-fatal ones (component runs degraded) at the type level, so
// callers can errors.As and decide whether to continue booting.
type InitError struct {
	Component string
	Fatal     bool
	Err       error
}

func (e *InitError) Error() string {
	kind := "non-fatal"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s init (%s): %v", e.Component, kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// NewFatalInitError wraps err as a fatal initialisation failure for the
// named component (spec.md §7: event queue allocation, impossible
// engine config).
func NewFatalInitError(component string, err error) *InitError {
	return &InitError{Component: component, Fatal: true, Err: err}
}

// NewDegradedInitError wraps err as a non-fatal initialisation failure:
// the component runs degraded rather than aborting the pipeline
// (spec.md §7: codec init failure, audio task creation failure).
func NewDegradedInitError(component string, err error) *InitError {
	return &InitError{Component: component, Fatal: false, Err: err}
}
