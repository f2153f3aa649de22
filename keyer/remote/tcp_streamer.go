// Package remote implements the narrow network-facing observers the
// keying core fans out to: a TCP stream of fixed-size key events and
// mDNS/DNS-SD discovery of a peer to stream to. See SPEC_FULL.md §4.8.
//
// Neither type speaks CWNet; that wire protocol remains out of scope
// (spec.md §1 Non-goals). This is deliberately a much narrower contract:
// one 9-byte record per key transition, with no length prefix and nothing
// negotiated. Single 0x00 probe bytes are written on the same stream on
// connect and every 2 seconds, between those records.
package remote

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// wireEvent is 9 bytes on the wire: 8-byte big-endian timestamp
// microseconds, 1-byte active flag.
const wireEventSize = 9

// TCPStreamer is a keyer.RemoteObserver that writes one wireEvent per
// key-state transition to a TCP peer, reconnecting in the background
// whenever the connection drops rather than surfacing a runtime error
// to the keying core (spec.md §7's runtime-transient category: the
// keying loop must never block or fail because a remote peer dropped).
type TCPStreamer struct {
	addr   string
	logger *log.Logger

	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	latencyMS int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewTCPStreamer begins connecting (and reconnecting) to addr in the
// background; KeyStateChanged is a no-op until a connection is live.
func NewTCPStreamer(addr string, logger *log.Logger) *TCPStreamer {
	if logger == nil {
		logger = log.Default()
	}
	t := &TCPStreamer{
		addr:   addr,
		logger: logger.With("component", "remote_tcp_streamer"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go t.connectLoop()
	return t
}

func (t *TCPStreamer) connectLoop() {
	defer close(t.doneCh)
	backoff := 500 * time.Millisecond
	const maxBackoff = 10 * time.Second

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", t.addr, 3*time.Second)
		if err != nil {
			t.logger.Warn("remote peer unreachable, retrying", "addr", t.addr, "err", err, "backoff", backoff)
			select {
			case <-t.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = 500 * time.Millisecond
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.logger.Info("remote peer connected", "addr", t.addr)

		t.probeLatency(conn)

		<-t.connDead(conn)
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		select {
		case <-t.stopCh:
			return
		default:
		}
	}
}

// connDead returns a channel closed once conn stops accepting writes,
// detected by a background one-byte (0x00) probe write on a ticker.
func (t *TCPStreamer) connDead(conn net.Conn) <-chan struct{} {
	dead := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				close(dead)
				return
			case <-ticker.C:
				start := time.Now()
				if err := conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
					close(dead)
					return
				}
				if _, err := conn.Write([]byte{0}); err != nil {
					close(dead)
					return
				}
				t.mu.Lock()
				t.latencyMS = time.Since(start).Milliseconds()
				t.mu.Unlock()
			}
		}
	}()
	return dead
}

func (t *TCPStreamer) probeLatency(conn net.Conn) {
	start := time.Now()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write([]byte{0}); err != nil {
		return
	}
	t.mu.Lock()
	t.latencyMS = time.Since(start).Milliseconds()
	t.mu.Unlock()
}

// KeyStateChanged implements keyer.RemoteObserver. Writes are
// best-effort: a failed write just waits for the reconnect loop to
// replace the connection, per spec.md §7's transient-error handling.
func (t *TCPStreamer) KeyStateChanged(active bool, tsUS int64) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}

	var buf [wireEventSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(tsUS))
	if active {
		buf[8] = 1
	}

	_ = conn.SetWriteDeadline(time.Now().Add(500 * time.Millisecond))
	if _, err := conn.Write(buf[:]); err != nil {
		t.logger.Debug("remote write failed", "err", err)
	}
}

// LatencyMS returns how long the most recent probe write took to return,
// in milliseconds, feeding the PTT tail-timer note in spec.md §9. This is
// the local write time, not a round trip: no acknowledgement from the
// peer is awaited.
func (t *TCPStreamer) LatencyMS() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latencyMS
}

func (t *TCPStreamer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	close(t.stopCh)
	if conn != nil {
		_ = conn.Close()
	}
	<-t.doneCh
	return nil
}
