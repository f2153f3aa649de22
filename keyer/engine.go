package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	The iambic paddle engine: a cooperatively-scheduled FSM
 *		driven by OnPaddleEvent(event) and Tick(now_us). Pure
 *		logic, no I/O, no allocation after Initialize. See
 *		spec.md §4.4.
 *
 * Description:	Engine state is owned exclusively by the main task;
 *		no other context may touch it. All mutation flows
 *		through OnPaddleEvent or Tick.
 *
 *---------------------------------------------------------------*/

import "github.com/charmbracelet/log"

const engineQueueCapacity = 4

// Callbacks are the engine's three element/key-state hooks plus three
// timeline hooks, per spec.md §4.4/§6. Every field is optional: nil
// fields are simply not called.
type Callbacks struct {
	OnElementStarted      func(elem Element, tsUS int64)
	OnElementFinished     func(elem Element, tsUS int64)
	OnKeyStateChanged     func(active bool, tsUS int64)
	OnMemoryWindowChanged func(isDah bool, opened bool, tsUS int64)
	OnLatchStateChanged   func(active bool, tsUS int64) // memory flag armed/drained
	OnSqueezeDetected     func(tsUS int64)
}

// Engine is the iambic keying FSM. Zero value is not usable; construct
// with NewEngine.
type Engine struct {
	cfg    EngineConfig
	cb     Callbacks
	logger *log.Logger

	state          EngineStateKind
	currentElement Element
	lastElement    Element

	elementStartUS int64
	elementEndUS   int64
	gapEndUS       int64

	ditPressed bool
	dahPressed bool

	queue    [engineQueueCapacity]Element
	queueLen int

	dotRequested bool
	dahRequested bool

	squeezeSeenThisElement bool
	pendingModeBBonus      *Element // points at modeBBonus when armed
	modeBBonus             Element
	latchActive            bool // dotRequested or dahRequested currently armed

	lastValidCombo   PaddleCombo
	snapshotCombo    PaddleCombo
	memWindowWasOpen bool
	ditHeldAtWinOpen bool
	dahHeldAtWinOpen bool

	keyActive bool
}

// NewEngine constructs an Engine in its Idle resting state.
func NewEngine() *Engine {
	e := &Engine{}
	e.reset()
	return e
}

// SetLogger installs the logger clampConfig reports diagnostics through.
// Safe to call before Initialize; nil leaves clamping silent.
func (e *Engine) SetLogger(l *log.Logger) { e.logger = l }

func (e *Engine) reset() {
	e.state = StateIdle
	e.currentElement = Dit
	e.lastElement = Dah // so the first squeeze-from-idle starts with a dit
	e.ditPressed = false
	e.dahPressed = false
	e.queueLen = 0
	e.dotRequested = false
	e.dahRequested = false
	e.squeezeSeenThisElement = false
	e.pendingModeBBonus = nil
	e.latchActive = false
	e.lastValidCombo = ComboNone
	e.snapshotCombo = ComboNone
	e.memWindowWasOpen = false
	e.ditHeldAtWinOpen = false
	e.dahHeldAtWinOpen = false
	e.keyActive = false
}

// Initialize installs the config (clamped) and callbacks, and resets to
// the Idle state. Out-of-range config values are clamped with a
// diagnostic rather than rejected (spec.md §4.4 Failure).
func (e *Engine) Initialize(cfg EngineConfig, cb Callbacks) {
	e.cfg = clampConfig(cfg, e.logger)
	e.cb = cb
	e.reset()
}

// ApplyConfig hot-swaps runtime-changeable parameters. The element
// currently in flight keeps the duration it was started with; only
// elements started after this call observe the new timing, per
// spec.md §4.4 ("changing L/S/P mid-transmission takes effect at the
// next element boundary").
func (e *Engine) ApplyConfig(cfg EngineConfig) {
	e.cfg = clampConfig(cfg, e.logger)
}

// Config returns the engine's current (clamped) configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// State returns the current FSM state, for diagnostics/tests.
func (e *Engine) State() EngineStateKind { return e.state }

func currentCombo(ditPressed, dahPressed bool) PaddleCombo {
	switch {
	case ditPressed && dahPressed:
		return ComboBoth
	case ditPressed:
		return ComboDitOnly
	case dahPressed:
		return ComboDahOnly
	default:
		return ComboNone
	}
}

// OnPaddleEvent updates dit_pressed/dah_pressed and the squeeze/combo
// bookkeeping used by Tick. It never starts or finishes an element
// itself; state transitions happen only in Tick, so that every
// transition observes a consistent, externally supplied clock reading.
func (e *Engine) OnPaddleEvent(evt PaddleEvent) {
	switch evt.Line {
	case LineDit:
		e.ditPressed = evt.Active
	case LineDah:
		e.dahPressed = evt.Active
	case LineKey:
		// Straight key bypasses the iambic FSM entirely: it drives the
		// transmitter directly, independent of paddle memory/squeeze state.
		e.fireKeyStateChanged(evt.Active, evt.TimestampUS)
		return
	}

	combo := currentCombo(e.ditPressed, e.dahPressed)
	if combo != ComboNone {
		e.lastValidCombo = combo
	}

	if e.ditPressed && e.dahPressed &&
		(e.state == StateSendDit || e.state == StateSendDah) &&
		!e.squeezeSeenThisElement {
		e.squeezeSeenThisElement = true
		if e.cb.OnSqueezeDetected != nil {
			e.cb.OnSqueezeDetected(evt.TimestampUS)
		}
	}
}

// Tick advances the FSM. Must be called at >= 1 kHz for accurate
// paddle-memory timing, per spec.md §4.3/§4.4.
func (e *Engine) Tick(nowUS int64) {
	switch e.state {
	case StateIdle:
		e.tickIdle(nowUS)
	case StateSendDit, StateSendDah:
		e.tickSending(nowUS)
	case StateIntraGap:
		e.tickGap(nowUS)
	}
}

func (e *Engine) tickIdle(nowUS int64) {
	combo := currentCombo(e.ditPressed, e.dahPressed)
	elem, ok := e.electElement(combo)
	if !ok {
		return
	}
	e.startElement(elem, nowUS)
}

// electElement picks the next element to send given a paddle combo,
// alternating from last_element on a squeeze.
func (e *Engine) electElement(combo PaddleCombo) (Element, bool) {
	switch combo {
	case ComboDitOnly:
		return Dit, true
	case ComboDahOnly:
		return Dah, true
	case ComboBoth:
		if e.lastElement == Dit {
			return Dah, true
		}
		return Dit, true
	default:
		return Dit, false
	}
}

func (e *Engine) startElement(elem Element, nowUS int64) {
	e.currentElement = elem
	e.elementStartUS = nowUS

	dur := e.cfg.DitUS
	if elem == Dah {
		dur = e.cfg.DahUS
	}
	e.elementEndUS = nowUS + dur

	e.squeezeSeenThisElement = false
	e.memWindowWasOpen = false

	if e.cfg.SqueezeMode == SqueezeSnapshot {
		combo := currentCombo(e.ditPressed, e.dahPressed)
		if combo == ComboNone {
			combo = e.lastValidCombo
		}
		e.snapshotCombo = combo
	}

	if elem == Dit {
		e.state = StateSendDit
	} else {
		e.state = StateSendDah
	}

	if e.cb.OnElementStarted != nil {
		e.cb.OnElementStarted(elem, nowUS)
	}
	e.fireKeyStateChanged(true, nowUS)
}

func (e *Engine) tickSending(nowUS int64) {
	e.evaluateMemoryWindow(nowUS)

	if e.ditPressed && e.dahPressed && !e.squeezeSeenThisElement {
		e.squeezeSeenThisElement = true
		if e.cb.OnSqueezeDetected != nil {
			e.cb.OnSqueezeDetected(nowUS)
		}
	}

	if nowUS >= e.elementEndUS {
		e.finishElement(nowUS)
	}
}

func (e *Engine) finishElement(nowUS int64) {
	finished := e.currentElement

	if e.cb.OnElementFinished != nil {
		e.cb.OnElementFinished(finished, nowUS)
	}
	e.lastElement = finished

	drained := false
	if finished == Dit && e.dahRequested {
		e.pushQueue(Dah)
		e.dahRequested = false
		drained = true
	} else if finished == Dah && e.dotRequested {
		e.pushQueue(Dit)
		e.dotRequested = false
		drained = true
	}
	if drained {
		e.updateLatchState(nowUS)
	}

	// Mode B bonus is a fallback: only fires when memory didn't already
	// supply the trailing opposite element (spec.md §4.4's squeeze
	// handling + Mode B bonus section, and §8 scenario 3).
	if e.cfg.IambicMode == ModeB && e.squeezeSeenThisElement && !drained {
		e.modeBBonus = Dah
		if finished == Dah {
			e.modeBBonus = Dit
		}
		e.pendingModeBBonus = &e.modeBBonus
	}

	e.state = StateIntraGap
	e.gapEndUS = nowUS + e.cfg.GapUS
	e.fireKeyStateChanged(false, nowUS)
}

func (e *Engine) tickGap(nowUS int64) {
	if e.pendingModeBBonus != nil && !e.ditPressed && !e.dahPressed {
		e.pushQueue(*e.pendingModeBBonus)
		e.pendingModeBBonus = nil
	}

	if nowUS < e.gapEndUS {
		return
	}

	// Squeeze never released before the gap ended: the regular
	// alternation/memory path already covers this element, so the
	// provisional bonus is withdrawn rather than sent.
	e.pendingModeBBonus = nil

	if elem, ok := e.popQueue(); ok {
		e.startElement(elem, nowUS)
		return
	}

	// An empty queue always returns to Idle (spec.md §4.4 Tick step 2 /
	// §2 state diagram). There is no live-combo election here: a paddle
	// or squeeze still held is picked up by tickIdle on the next Tick.
	e.state = StateIdle
}

// evaluateMemoryWindow computes element_progress_pct and arms the
// opposite paddle's memory flag while the window is open, per
// spec.md §4.4. A degenerate window (open_pct == close_pct) never
// arms memory, per spec.md §8's boundary behaviour.
func (e *Engine) evaluateMemoryWindow(nowUS int64) {
	dur := e.elementEndUS - e.elementStartUS
	var pct float64
	if dur > 0 {
		pct = float64(nowUS-e.elementStartUS) * 100.0 / float64(dur)
	}

	var open bool
	if e.cfg.MemWindowOpenPct != e.cfg.MemWindowClosePct {
		open = pct >= float64(e.cfg.MemWindowOpenPct) && pct <= float64(e.cfg.MemWindowClosePct)
	}

	if open != e.memWindowWasOpen {
		isDah := e.currentElement == Dit // the window pertains to arming the opposite (dah) flag
		if open {
			e.ditHeldAtWinOpen = e.ditPressed
			e.dahHeldAtWinOpen = e.dahPressed
		}
		if e.cb.OnMemoryWindowChanged != nil {
			e.cb.OnMemoryWindowChanged(isDah, open, nowUS)
		}
		e.memWindowWasOpen = open
	}

	if !open {
		return
	}

	// Memory arming inspects the live opposite-paddle state directly: it
	// is a latch on a physical press event, distinct from the
	// Snapshot/Live squeeze_mode, which instead governs the *alternation*
	// decision made at element/gap boundaries. StateLatch (Accukeyer-style)
	// arms on any hold observed inside the window; its absence
	// (Curtis-A-style edge-trigger) requires the press to have started
	// after the window opened, per spec.md §6's (memory_mode, latch,
	// iambic_mode) preset triple.
	switch e.currentElement {
	case Dit:
		if e.dahPressed && (e.cfg.MemoryMode == MemoryDahOnly || e.cfg.MemoryMode == MemoryBoth) {
			if e.cfg.StateLatch || !e.dahHeldAtWinOpen {
				e.dahRequested = true
			}
		}
	case Dah:
		if e.ditPressed && (e.cfg.MemoryMode == MemoryDotOnly || e.cfg.MemoryMode == MemoryBoth) {
			if e.cfg.StateLatch || !e.ditHeldAtWinOpen {
				e.dotRequested = true
			}
		}
	}
	e.updateLatchState(nowUS)
}

// updateLatchState reports whether a paddle press is currently latched
// into a pending memory request — i.e. held active past the physical
// release that armed it, per spec.md §4.4's memory semantics.
func (e *Engine) updateLatchState(nowUS int64) {
	active := e.dotRequested || e.dahRequested
	if active == e.latchActive {
		return
	}
	e.latchActive = active
	if e.cb.OnLatchStateChanged != nil {
		e.cb.OnLatchStateChanged(active, nowUS)
	}
}

func (e *Engine) pushQueue(elem Element) {
	if e.queueLen >= engineQueueCapacity {
		return // capacity sized per spec.md §3 invariants; should not occur
	}
	e.queue[e.queueLen] = elem
	e.queueLen++
}

func (e *Engine) popQueue() (Element, bool) {
	if e.queueLen == 0 {
		return Dit, false
	}
	elem := e.queue[0]
	copy(e.queue[:e.queueLen-1], e.queue[1:e.queueLen])
	e.queueLen--
	return elem, true
}

func (e *Engine) fireKeyStateChanged(active bool, nowUS int64) {
	if active == e.keyActive {
		return
	}
	e.keyActive = active
	if e.cb.OnKeyStateChanged != nil {
		e.cb.OnKeyStateChanged(active, nowUS)
	}
}
