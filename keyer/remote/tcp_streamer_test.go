package remote

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TCPStreamer_KeyStateChanged_WritesWireFormat(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	connCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		connCh <- c
	}()

	streamer := NewTCPStreamer(ln.Addr().String(), nil)
	defer streamer.Close()

	var server net.Conn
	select {
	case server = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("streamer never connected")
	}
	defer server.Close()

	require.Eventually(t, func() bool {
		return streamer.conn != nil
	}, time.Second, 5*time.Millisecond)

	// Drain the one-byte latency probe the streamer sends on connect.
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	probeBuf := make([]byte, 1)
	_, err = readFull(server, probeBuf)
	require.NoError(t, err)

	streamer.KeyStateChanged(true, 123456)

	buf := make([]byte, wireEventSize)
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	n, err := readFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, wireEventSize, n)

	ts := int64(binary.BigEndian.Uint64(buf[0:8]))
	assert.Equal(t, int64(123456), ts)
	assert.Equal(t, byte(1), buf[8])
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
