//go:build linux

package hal

/*------------------------------------------------------------------
 *
 * Purpose:	Linux GPIO character-device backed PaddleInput and
 *		TXKeyer, realising spec.md §4.1's "ISR mode" and the
 *		Transmitter keying fan-out target via the kernel
 *		gpio-cdev edge-event API. See SPEC_FULL.md §4.10.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer"
)

const defaultChip = "gpiochip0"

// CdevPaddleInput wraps go-gpiocdev line-request edge detection to
// deliver PaddleEvents from the library's own event-handler goroutine,
// which plays the role of the source firmware's ISR: the handler here
// allocates nothing beyond building one PaddleEvent value per edge.
type CdevPaddleInput struct {
	chip string

	mu    sync.Mutex
	lines []*gpiocdev.Line
}

// NewCdevPaddleInput constructs a backend against the named gpio-cdev
// chip (e.g. "gpiochip0"); chip == "" uses defaultChip.
func NewCdevPaddleInput(chip string) *CdevPaddleInput {
	if chip == "" {
		chip = defaultChip
	}
	return &CdevPaddleInput{chip: chip}
}

func (c *CdevPaddleInput) Initialize(cfg keyer.PaddlePinConfig, callback func(keyer.PaddleEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) != 0 {
		return fmt.Errorf("cdev paddle input: already initialized")
	}

	lineSpecs := []struct {
		offset int
		line   keyer.PaddleLine
	}{
		{cfg.DitGPIO, keyer.LineDit},
		{cfg.DahGPIO, keyer.LineDah},
	}
	if cfg.KeyGPIO != 0 {
		lineSpecs = append(lineSpecs, struct {
			offset int
			line   keyer.PaddleLine
		}{cfg.KeyGPIO, keyer.LineKey})
	}
	if cfg.Swap {
		lineSpecs[0].line, lineSpecs[1].line = lineSpecs[1].line, lineSpecs[0].line
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithBothEdges}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	if cfg.PullDown {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	var lines []*gpiocdev.Line
	for _, spec := range lineSpecs {
		spec := spec
		handler := func(evt gpiocdev.LineEvent) {
			active := evt.Type == gpiocdev.LineEventRisingEdge
			callback(keyer.PaddleEvent{
				Line:        spec.line,
				Active:      active,
				TimestampUS: evt.Timestamp.Nanoseconds() / 1000,
				RawLevel:    boolToLevel(active),
			})
		}
		l, err := gpiocdev.RequestLine(c.chip, spec.offset, append(append([]gpiocdev.LineReqOption{}, opts...), gpiocdev.WithEventHandler(handler))...)
		if err != nil {
			for _, prev := range lines {
				prev.Close()
			}
			return keyer.NewFatalInitError("cdev_paddle_input", fmt.Errorf("requesting line %d: %w", spec.offset, err))
		}
		lines = append(lines, l)
	}

	c.lines = lines
	return nil
}

func (c *CdevPaddleInput) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, l := range c.lines {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.lines = nil
	return firstErr
}

func boolToLevel(active bool) int {
	if active {
		return 1
	}
	return 0
}

// PollingPaddleInput samples each configured line at the given interval
// (must be >= 1kHz, i.e. interval <= 1ms) rather than using edge
// interrupts, per spec.md §4.1's "Polling mode" — selected when some
// paddle hardware bounces too fast for the edge-event queue.
type PollingPaddleInput struct {
	chip     string
	interval time.Duration

	mu       sync.Mutex
	lines    []*gpiocdev.Line
	lastVal  []int
	specs    []keyer.PaddleLine
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewPollingPaddleInput(chip string, interval time.Duration) *PollingPaddleInput {
	if chip == "" {
		chip = defaultChip
	}
	if interval <= 0 || interval > time.Millisecond {
		interval = time.Millisecond
	}
	return &PollingPaddleInput{chip: chip, interval: interval}
}

func (p *PollingPaddleInput) Initialize(cfg keyer.PaddlePinConfig, callback func(keyer.PaddleEvent)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.lines) != 0 {
		return fmt.Errorf("polling paddle input: already initialized")
	}

	offsets := []int{cfg.DitGPIO, cfg.DahGPIO}
	specs := []keyer.PaddleLine{keyer.LineDit, keyer.LineDah}
	if cfg.Swap {
		specs[0], specs[1] = specs[1], specs[0]
	}
	if cfg.KeyGPIO != 0 {
		offsets = append(offsets, cfg.KeyGPIO)
		specs = append(specs, keyer.LineKey)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	if cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	if cfg.PullDown {
		opts = append(opts, gpiocdev.WithPullDown)
	}

	var lines []*gpiocdev.Line
	lastVal := make([]int, len(offsets))
	for i, off := range offsets {
		l, err := gpiocdev.RequestLine(p.chip, off, opts...)
		if err != nil {
			for _, prev := range lines {
				prev.Close()
			}
			return keyer.NewFatalInitError("polling_paddle_input", fmt.Errorf("requesting line %d: %w", off, err))
		}
		lines = append(lines, l)
		v, _ := l.Value()
		lastVal[i] = v
	}

	p.lines = lines
	p.lastVal = lastVal
	p.specs = specs
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.pollLoop(callback)
	return nil
}

func (p *PollingPaddleInput) pollLoop(callback func(keyer.PaddleEvent)) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	epoch := time.Now()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			lines := p.lines
			specs := p.specs
			p.mu.Unlock()
			for i, l := range lines {
				v, err := l.Value()
				if err != nil {
					continue
				}
				if v != p.lastVal[i] {
					p.lastVal[i] = v
					callback(keyer.PaddleEvent{
						Line:        specs[i],
						Active:      v != 0,
						TimestampUS: time.Since(epoch).Microseconds(),
						RawLevel:    v,
					})
				}
			}
		}
	}
}

func (p *PollingPaddleInput) Shutdown() error {
	p.mu.Lock()
	lines := p.lines
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.lines = nil
	p.stopCh = nil
	p.doneCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	var firstErr error
	for _, l := range lines {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GPIOTXKeyer asserts/deasserts the transmitter keying line.
type GPIOTXKeyer struct {
	activeHigh bool

	mu   sync.Mutex
	line *gpiocdev.Line
}

func NewGPIOTXKeyer(chip string, offset int, activeHigh bool) (*GPIOTXKeyer, error) {
	if chip == "" {
		chip = defaultChip
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if !activeHigh {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, keyer.NewFatalInitError("gpio_tx_keyer", fmt.Errorf("requesting line %d: %w", offset, err))
	}
	return &GPIOTXKeyer{activeHigh: activeHigh, line: l}, nil
}

func (g *GPIOTXKeyer) SetActive(active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := 0
	if active {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *GPIOTXKeyer) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	return err
}
