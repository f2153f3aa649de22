package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Integration shell bridging OS/hardware concerns to the
 *		pure engine: drains the event queue, ticks the engine,
 *		and fans out element/key-state callbacks to TX keying,
 *		sidetone, timeline logging and remote streaming. See
 *		spec.md §4.3.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// KeyingSubsystem is the main-task-owned glue object. Its Tick and
// DrainPaddleEvents must be called from a single goroutine (the "main
// loop"); it touches no shared state outside the EventQueue and
// Timeline, both of which are safe for that pattern.
type KeyingSubsystem struct {
	engine   *Engine
	queue    *EventQueue
	timeline *Timeline
	logger   *log.Logger

	tone *ToneGenerator
	tx   TXKeyer

	remoteObservers   []RemoteObserver
	activityObservers []ActivityObserver

	sidetoneEnabled bool

	pttTailUS       int64
	latencyProvider func() int64 // measured remote latency, ms; nil for none
	pttAsserted     bool
	pttTailArmed    bool
	pttTailEndUS    int64
}

// NewKeyingSubsystem builds the shell but does not yet install hardware.
func NewKeyingSubsystem(logger *log.Logger) *KeyingSubsystem {
	if logger == nil {
		logger = log.Default()
	}
	k := &KeyingSubsystem{
		engine:   NewEngine(),
		queue:    NewEventQueue(),
		timeline: NewTimeline(),
		logger:   logger.With("component", "keying_subsystem"),
	}
	k.engine.SetLogger(logger.With("component", "engine"))
	return k
}

// Initialize builds EngineConfig from dc and wires the engine's
// callbacks to this subsystem's fan-out. tone and tx may be nil (e.g.
// sidetone or TX keying disabled / not yet attached).
func (k *KeyingSubsystem) Initialize(dc DeviceConfig, tone *ToneGenerator, tx TXKeyer) {
	k.tone = tone
	k.tx = tx
	k.sidetoneEnabled = dc.Audio.SidetoneEnabled
	k.pttTailUS = int64(dc.Keying.PTTTailMS) * 1000

	ec := BuildEngineConfig(dc.Keying)
	k.engine.Initialize(ec, Callbacks{
		OnElementStarted:      k.onElementStarted,
		OnElementFinished:     k.onElementFinished,
		OnKeyStateChanged:     k.onKeyStateChanged,
		OnMemoryWindowChanged: k.onMemoryWindowChanged,
		OnLatchStateChanged:   k.onLatchStateChanged,
		OnSqueezeDetected:     k.onSqueezeDetected,
	})
}

// ApplyConfig hot-swaps runtime-changeable engine parameters. Hardware
// pins are not reconfigurable without reboot, per spec.md §4.3.
func (k *KeyingSubsystem) ApplyConfig(dc DeviceConfig) {
	k.sidetoneEnabled = dc.Audio.SidetoneEnabled
	k.pttTailUS = int64(dc.Keying.PTTTailMS) * 1000
	k.engine.ApplyConfig(BuildEngineConfig(dc.Keying))
}

// SetLatencyProvider installs the function used to read measured remote
// stream latency for the PTT tail timer (spec.md §9's note that only
// the remote-PTT timer depends on network latency, never the keying
// itself).
func (k *KeyingSubsystem) SetLatencyProvider(f func() int64) { k.latencyProvider = f }

// AddRemoteObserver registers an observer for key-on/key-off forwarding.
func (k *KeyingSubsystem) AddRemoteObserver(o RemoteObserver) { k.remoteObservers = append(k.remoteObservers, o) }

// AddActivityObserver registers a decoder/LED/diagnostics observer.
func (k *KeyingSubsystem) AddActivityObserver(o ActivityObserver) {
	k.activityObservers = append(k.activityObservers, o)
}

// EnqueuePaddleEvent is the input-layer callback's entry point; ISR-safe.
func (k *KeyingSubsystem) EnqueuePaddleEvent(evt PaddleEvent) { k.queue.Enqueue(evt) }

// DrainPaddleEvents consumes all queued events and feeds the engine.
// Never blocks.
func (k *KeyingSubsystem) DrainPaddleEvents() {
	k.queue.DrainInto(func(evt PaddleEvent) {
		k.timeline.Push(TimelineEvent{TimestampUS: evt.TimestampUS, Type: EvtPaddleEdge, Arg0: int(evt.Line), Arg1: boolToInt(evt.Active)})
		k.engine.OnPaddleEvent(evt)
	})
}

// Tick advances the engine and the PTT tail timer. Must be called at
// >= 1 kHz, per spec.md §4.3.
func (k *KeyingSubsystem) Tick(nowUS int64) {
	k.engine.Tick(nowUS)
	k.tickPTTTail(nowUS)
}

// EventQueueDroppedCount exposes the event queue's overflow counter.
func (k *KeyingSubsystem) EventQueueDroppedCount() uint64 { return k.queue.DroppedCount() }

// Timeline exposes the ring buffer for diagnostic reads.
func (k *KeyingSubsystem) Timeline() *Timeline { return k.timeline }

// Engine exposes the underlying FSM, mainly for tests.
func (k *KeyingSubsystem) Engine() *Engine { return k.engine }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (k *KeyingSubsystem) onElementStarted(elem Element, tsUS int64) {
	k.timeline.Push(TimelineEvent{TimestampUS: tsUS, Type: EvtKeyingStart, Arg0: int(elem)})
	for _, o := range k.activityObservers {
		o.ElementStarted(elem, tsUS)
	}
}

func (k *KeyingSubsystem) onElementFinished(elem Element, tsUS int64) {
	k.timeline.Push(TimelineEvent{TimestampUS: tsUS, Type: EvtKeyingFinish, Arg0: int(elem)})
	for _, o := range k.activityObservers {
		o.ElementFinished(elem, tsUS)
	}
}

func (k *KeyingSubsystem) onKeyStateChanged(active bool, tsUS int64) {
	k.assertPTT(active, tsUS)

	if k.tone != nil && k.sidetoneEnabled {
		if active {
			k.tone.Start()
		} else {
			k.tone.Stop()
		}
	}

	for _, o := range k.remoteObservers {
		o.KeyStateChanged(active, tsUS)
	}
	for _, o := range k.activityObservers {
		o.KeyStateChanged(active, tsUS)
	}
}

func (k *KeyingSubsystem) onMemoryWindowChanged(isDah bool, opened bool, tsUS int64) {
	k.timeline.Push(TimelineEvent{TimestampUS: tsUS, Type: EvtMemoryWindow, Arg0: boolToInt(isDah), Arg1: boolToInt(opened)})
}

func (k *KeyingSubsystem) onLatchStateChanged(active bool, tsUS int64) {
	k.timeline.Push(TimelineEvent{TimestampUS: tsUS, Type: EvtLatch, Arg0: boolToInt(active)})
}

func (k *KeyingSubsystem) onSqueezeDetected(tsUS int64) {
	k.timeline.Push(TimelineEvent{TimestampUS: tsUS, Type: EvtSqueeze})
}

// assertPTT implements the PTT tail timer: TX asserts immediately on
// key-on (cancelling any pending release), and on key-off arms a
// release after ptt_tail_ms + measured remote latency.
func (k *KeyingSubsystem) assertPTT(active bool, tsUS int64) {
	if active {
		k.pttTailArmed = false
		if !k.pttAsserted {
			k.pttAsserted = true
			k.setTX(true)
		}
		return
	}

	latencyUS := int64(0)
	if k.latencyProvider != nil {
		latencyUS = k.latencyProvider() * 1000
	}
	k.pttTailArmed = true
	k.pttTailEndUS = tsUS + k.pttTailUS + latencyUS
}

func (k *KeyingSubsystem) tickPTTTail(nowUS int64) {
	if !k.pttTailArmed {
		return
	}
	if nowUS < k.pttTailEndUS {
		return
	}
	k.pttTailArmed = false
	k.pttAsserted = false
	k.setTX(false)
}

func (k *KeyingSubsystem) setTX(active bool) {
	if k.tx == nil {
		return
	}
	if err := k.tx.SetActive(active); err != nil {
		k.logger.Error("tx keyer failed", "err", fmt.Errorf("set_active(%v): %w", active, err))
	}
}
