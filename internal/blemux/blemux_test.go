package blemux

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCommandWritesHexLine(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	mux := NewMux[Porter](port)

	require.NoError(t, mux.SendCommand(StartStreamCommand))
	assert.Equal(t, StartStreamCommand+"\n", string(port.WrittenData()))
}

func TestSendCommandRejectsNonHex(t *testing.T) {
	t.Parallel()

	mux := NewMux[Porter](NewTestablePort())
	assert.Error(t, mux.SendCommand("not-hex"))
}

func TestStartStopStream(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	mux := NewMux[Porter](port)

	require.NoError(t, mux.StartStream())
	require.NoError(t, mux.StopStream())
	assert.Equal(t, StartStreamCommand+"\n"+StopStreamCommand+"\n", string(port.WrittenData()))
}

func TestSendCommandShortWrite(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.WriteError = ErrWriteFailed
	mux := NewMux[Porter](port)
	assert.Error(t, mux.SendCommand(StopStreamCommand))
}

func TestMonitorFansOutFrames(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.BlockReads = true
	mux := NewMux[Porter](port)

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	// A subscriber that is not receiving is skipped, so both readers must
	// be parked on their channels before the frame arrives.
	got := make(chan string, 2)
	for _, ch := range []chan string{ch1, ch2} {
		ch := ch
		go func() {
			select {
			case line := <-ch:
				got <- line
			case <-ctx.Done():
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	port.AddReadData([]byte("2431323334350a\n"))

	for i := 0; i < 2; i++ {
		select {
		case line := <-got:
			assert.Equal(t, "2431323334350a", line)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fan-out")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on cancel")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	mux := NewMux[Porter](NewTestablePort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}

func TestCloseClosesSubscribersAndPort(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	mux := NewMux[Porter](port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.True(t, port.Closed)
}

func TestMockPortFactoryRecordsCalls(t *testing.T) {
	t.Parallel()

	f := &MockPortFactory{Port: NewTestablePort()}
	_, err := f.Open("/dev/ttyUSB0", PortOptions{BaudRate: 115200})
	require.NoError(t, err)
	require.Len(t, f.OpenCalls, 1)
	assert.Equal(t, "/dev/ttyUSB0", f.OpenCalls[0].Path)
}

func TestPortOptionsNormalize(t *testing.T) {
	t.Parallel()

	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, 8, opts.DataBits)
	assert.Equal(t, 1, opts.StopBits)
	assert.Equal(t, "N", opts.Parity)

	_, err = PortOptions{DataBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "Z"}.Normalize()
	assert.Error(t, err)
}

func TestFeedMuxEmitsFrames(t *testing.T) {
	t.Parallel()

	const frame = "2431300a"
	mux := NewFeedMux(5*time.Millisecond, func() ([]byte, bool) {
		return []byte(frame), true
	})
	defer mux.Close()

	_, ch := mux.Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go mux.Monitor(ctx)

	for i := 0; i < 3; i++ {
		select {
		case line := <-ch:
			assert.Equal(t, frame, line)
		case <-ctx.Done():
			t.Fatal("timed out waiting for feed frames")
		}
	}
}
