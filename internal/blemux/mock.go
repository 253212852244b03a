package blemux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// TestablePort implements Porter with scripted reads and captured writes.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// BlockReads causes Read to wait until data arrives or Close.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort {
	p := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("port closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads && p.ReadBuffer.Len() == 0 {
		for !p.Closed && p.ReadBuffer.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, io.EOF
		}
	}

	return p.ReadBuffer.Read(b)
}

func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.WriteBuffer.Write(b)
}

func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// AddReadData appends frame bytes for subsequent Read calls.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadBuffer.Write(data)
	p.readCond.Signal()
}

// WrittenData returns everything written to the port so far.
func (p *TestablePort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.WriteBuffer.Bytes()...)
}

// MockPortFactory implements PortFactory for tests.
type MockPortFactory struct {
	mu sync.Mutex

	// Port is returned from Open.
	Port Porter

	// Error is returned by Open if set.
	Error error

	// OpenCalls records every Open invocation.
	OpenCalls []MockOpenCall
}

// MockOpenCall records the arguments of one Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// Open returns the configured port or error.
func (f *MockPortFactory) Open(path string, opts PortOptions) (Porter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// feedPort streams generated frame lines at a fixed cadence, emulating the
// dongle's notification bridge.
type feedPort struct {
	reader   *io.PipeReader
	writer   *io.PipeWriter
	captured bytes.Buffer
	mu       sync.Mutex
}

func (p *feedPort) Read(b []byte) (int, error) { return p.reader.Read(b) }

func (p *feedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captured.Write(b)
}

func (p *feedPort) Close() error {
	p.writer.Close()
	return p.reader.Close()
}

// NewFeedMux creates a Mux backed by a synthetic port that emits one frame
// line from next() per interval until next returns false. Used for dev
// mode and integration tests without hardware.
func NewFeedMux(interval time.Duration, next func() ([]byte, bool)) *Mux[Porter] {
	r, w := io.Pipe()
	port := &feedPort{reader: r, writer: w}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			frame, ok := next()
			if !ok {
				return
			}
			if _, err := w.Write(append(frame, '\n')); err != nil {
				return
			}
		}
	}()

	return NewMux[Porter](port)
}
