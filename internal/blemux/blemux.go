// Package blemux multiplexes the EEG headset byte transport. The headset
// speaks BLE; a dongle bridges its notification stream onto a serial port,
// one hex-encoded frame per line. Multiple clients can subscribe to the
// frame stream and send control sequences through a single port.
package blemux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Control sequences understood by the dongle, hex-encoded.
const (
	// StartStreamCommand asks the headset to begin streaming samples.
	StartStreamCommand = "2201230D"

	// StopStreamCommand halts the sample stream.
	StopStreamCommand = "2200220D"
)

// ErrWriteFailed reports a short write to the transport port.
var ErrWriteFailed = fmt.Errorf("failed to write to transport port")

// Muxer is the transport interface the pipeline consumes.
type Muxer interface {
	// Subscribe creates a channel receiving one hex-encoded frame per
	// message. The returned id identifies the channel for Unsubscribe.
	Subscribe() (string, chan string)

	// Unsubscribe removes and closes a subscriber channel.
	Unsubscribe(string)

	// SendCommand writes a hex-encoded control sequence to the port.
	SendCommand(string) error

	// StartStream and StopStream toggle headset sample streaming.
	StartStream() error
	StopStream() error

	// Monitor reads frames from the port and fans them out to
	// subscribers until the context is cancelled or the port closes.
	Monitor(context.Context) error

	// Close closes all subscriber channels and the underlying port.
	Close() error
}

// Mux is a generic frame multiplexer over any Porter implementation.
type Mux[T Porter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// NewMux creates a Mux backed by the given port.
func NewMux[T Porter](port T) *Mux[T] {
	return &Mux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a subscriber ID (8 random bytes, hex encoded).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *Mux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

func (m *Mux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendCommand writes a hex control sequence, newline terminated, to the
// port. The payload is validated as hex before writing.
func (m *Mux[T]) SendCommand(command string) error {
	command = strings.TrimSpace(command)
	if _, err := hex.DecodeString(command); err != nil {
		return fmt.Errorf("command %q is not hex: %w", command, err)
	}

	m.commandMu.Lock()
	defer m.commandMu.Unlock()
	payload := command + "\n"
	n, err := m.port.Write([]byte(payload))
	if err != nil {
		return err
	}
	if n != len(payload) {
		return ErrWriteFailed
	}
	return nil
}

// StartStream asks the headset to begin streaming samples.
func (m *Mux[T]) StartStream() error {
	if err := m.SendCommand(StartStreamCommand); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// StopStream halts the headset sample stream.
func (m *Mux[T]) StopStream() error {
	if err := m.SendCommand(StopStreamCommand); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Monitor reads frames from the port and fans them out to subscribers. A
// subscriber that cannot keep up misses frames rather than blocking the
// reader; the decoder tolerates gaps.
func (m *Mux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop
	// can await both lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return scan.Err()
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// skip full subscribers so the reader never stalls
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *Mux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
