package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-data/gaze.report/internal/eeg"
)

func startServer(t *testing.T) (*Server, string, context.CancelFunc) {
	t.Helper()
	s := NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Listen(ctx, "127.0.0.1:0")
	}()
	t.Cleanup(func() {
		cancel()
		s.Close()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("listener did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, s.Addr().String(), cancel
}

func dialAndWait(t *testing.T, s *Server, addr string, want int) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		clients, _, _ := s.Status()
		if clients >= want {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastToClients(t *testing.T) {
	t.Parallel()

	s, addr, _ := startServer(t)
	c1 := dialAndWait(t, s, addr, 1)
	c2 := dialAndWait(t, s, addr, 2)

	ts := time.Date(2026, 3, 14, 9, 0, 0, 500_000_000, time.UTC)
	s.OnCommand(eeg.CommandLeft, ts)

	for _, conn := range []net.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		assert.Equal(t, "left", msg.Command)
		assert.Equal(t, uint64(1), msg.Sequence)
		assert.InDelta(t, float64(ts.UnixNano())/1e9, msg.Timestamp, 1e-6)
	}
}

func TestSequenceIncrementsPerBroadcast(t *testing.T) {
	t.Parallel()

	s, addr, _ := startServer(t)
	conn := dialAndWait(t, s, addr, 1)

	s.OnCommand(eeg.CommandRight, time.Now())
	s.OnCommand(eeg.CommandIdle, time.Now())

	r := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second Message
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(line), &first))
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(line), &second))

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)

	clients, last, seq := s.Status()
	assert.Equal(t, 1, clients)
	assert.Equal(t, "idle", last)
	assert.Equal(t, uint64(2), seq)
}

func TestDisconnectedClientIsDropped(t *testing.T) {
	t.Parallel()

	s, addr, _ := startServer(t)
	conn := dialAndWait(t, s, addr, 1)
	conn.Close()

	// Writes into a closed connection eventually error; the client is
	// removed on the failing broadcast.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.OnCommand(eeg.CommandUp, time.Now())
		clients, _, _ := s.Status()
		if clients == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dead client never dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	t.Parallel()

	s := NewServer()
	s.OnCommand(eeg.CommandBlink, time.Now())
	clients, last, seq := s.Status()
	assert.Zero(t, clients)
	assert.Equal(t, "blink", last)
	assert.Equal(t, uint64(1), seq)
}

func TestCloseStopsAccepting(t *testing.T) {
	t.Parallel()

	s, addr, _ := startServer(t)
	dialAndWait(t, s, addr, 1)
	require.NoError(t, s.Close())

	clients, _, _ := s.Status()
	assert.Zero(t, clients)

	// Broadcasts after close are ignored.
	s.OnCommand(eeg.CommandDown, time.Now())
	_, _, seq := s.Status()
	assert.Zero(t, seq)
}
