package hal

/*------------------------------------------------------------------
 *
 * Purpose:	Host-side PaddleInput/TXKeyer implementations requiring
 *		no real GPIO hardware, used by tests and by any non-Linux
 *		build target. See SPEC_FULL.md §4.10.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"sync"

	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer"
)

// SimPaddleInput lets a test (or a non-hardware deployment) inject
// PaddleEvents directly, exercising the same Initialize/Shutdown
// contract a real backend would.
type SimPaddleInput struct {
	mu         sync.Mutex
	callback   func(keyer.PaddleEvent)
	cfg        keyer.PaddlePinConfig
	running    bool
}

func NewSimPaddleInput() *SimPaddleInput { return &SimPaddleInput{} }

func (s *SimPaddleInput) Initialize(cfg keyer.PaddlePinConfig, callback func(keyer.PaddleEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sim paddle input: already initialized")
	}
	s.cfg = cfg
	s.callback = callback
	s.running = true
	return nil
}

func (s *SimPaddleInput) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.callback = nil
	return nil
}

// Inject delivers a synthetic edge as if it came from ISR context,
// resolving polarity the way a real backend would: rawLevel is the raw
// pin level, and Active is derived from cfg.ActiveLow.
func (s *SimPaddleInput) Inject(line keyer.PaddleLine, rawLevel int, tsUS int64) {
	s.mu.Lock()
	cb := s.callback
	activeLow := s.cfg.ActiveLow
	s.mu.Unlock()
	if cb == nil {
		return
	}
	active := rawLevel != 0
	if activeLow {
		active = rawLevel == 0
	}
	cb(keyer.PaddleEvent{Line: line, Active: active, TimestampUS: tsUS, RawLevel: rawLevel})
}

// SimTXKeyer records TX assertions for tests instead of driving a pin.
type SimTXKeyer struct {
	mu       sync.Mutex
	active   bool
	history  []bool
}

func NewSimTXKeyer() *SimTXKeyer { return &SimTXKeyer{} }

func (t *SimTXKeyer) SetActive(active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = active
	t.history = append(t.history, active)
	return nil
}

func (t *SimTXKeyer) Shutdown() error { return nil }

func (t *SimTXKeyer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *SimTXKeyer) History() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]bool, len(t.history))
	copy(out, t.history)
	return out
}
