package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Narrow interfaces the Keying Subsystem depends on for
 *		hardware I/O. Concrete backends live outside this
 *		package (keyer/hal, keyer/audio, keyer/remote) so the
 *		core stays free of cgo/hardware dependencies, per
 *		spec.md §9's "Polymorphism over hardware" note.
 *
 *---------------------------------------------------------------*/

// PaddleInput turns pin transitions into PaddleEvents, delivered via
// callback from ISR or task context depending on the backend
// (spec.md §4.1).
type PaddleInput interface {
	// Initialize configures the lines per cfg and arms delivery. The
	// callback must be treated as ISR-safe: no allocation, no blocking.
	Initialize(cfg PaddlePinConfig, callback func(PaddleEvent)) error
	// Shutdown detaches and returns to a clean state. Idempotent.
	Shutdown() error
}

// TXKeyer asserts/deasserts the transmitter keying line, polarity-aware.
type TXKeyer interface {
	SetActive(active bool) error
	Shutdown() error
}

// RemoteObserver receives key-state transitions for forwarding to a
// remote peer. The keying core knows only this interface, never the
// wire protocol itself (spec.md §4.3's "Remote stream" fan-out target;
// SPEC_FULL.md §4.8).
type RemoteObserver interface {
	KeyStateChanged(active bool, tsUS int64)
	Close() error
}

// ActivityObserver is the optional decoder/LED/diagnostics fan-out
// target, receiving the same element and key-state callbacks as the
// primary outputs (spec.md §4.3).
type ActivityObserver interface {
	ElementStarted(elem Element, tsUS int64)
	ElementFinished(elem Element, tsUS int64)
	KeyStateChanged(active bool, tsUS int64)
}
