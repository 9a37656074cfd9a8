// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport owns the byte link to the motor unit and serializes
// request/response exchanges over it.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"go.uber.org/zap"
)

// DefaultTimeout bounds how long a request waits for its response frame
const DefaultTimeout = 100 * time.Millisecond

const (
	readBufferSize = 512
	chunkQueueSize = 64
)

// ErrTransport is matched by every *LinkError
var ErrTransport = errors.New("transport error")

// ErrClosed is returned once the link has been closed
var ErrClosed = errors.New("link closed")

// LinkError reports a failure of the underlying port
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is reports LinkError as ErrTransport
func (e *LinkError) Is(target error) bool {
	return target == ErrTransport
}

// Link frames payloads onto a port and collects response frames.
// Only one exchange is in flight at a time.
type Link struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	log     *zap.SugaredLogger
	stats   *vesc.Statistics

	mu      sync.Mutex
	decoder *vesc.Decoder

	chunks    chan []byte
	done      chan struct{}
	dead      chan struct{}
	readErr   error
	closeOnce sync.Once
}

// NewLink starts reading from port. A zero timeout selects DefaultTimeout
// and a nil logger disables logging.
func NewLink(port io.ReadWriteCloser, timeout time.Duration, log *zap.SugaredLogger) *Link {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	l := &Link{
		port:    port,
		timeout: timeout,
		log:     log,
		stats:   vesc.NewStatistics(),
		decoder: vesc.NewDecoder(),
		chunks:  make(chan []byte, chunkQueueSize),
		done:    make(chan struct{}),
		dead:    make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Timeout returns the receive budget per request
func (l *Link) Timeout() time.Duration {
	return l.timeout
}

// Statistics returns the link's request counters
func (l *Link) Statistics() *vesc.Statistics {
	return l.stats
}

// readLoop forwards received bytes to the exchange in progress. Ports with a
// read timeout return (0, nil) when idle, which simply loops.
func (l *Link) readLoop() {
	defer close(l.dead)

	buf := make([]byte, readBufferSize)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case l.chunks <- chunk:
			case <-l.done:
				return
			}
		}
		if err != nil {
			select {
			case <-l.done:
			default:
				l.readErr = err
				l.log.Warnw("link read failed", "error", err)
			}
			return
		}
	}
}

// Send writes one framed payload without waiting for a response
func (l *Link) Send(payload []byte) error {
	frame, err := vesc.EncodeFrame(payload)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.write(frame); err != nil {
		l.stats.RecordWriteError()
		return err
	}
	return nil
}

// Request writes one framed payload and waits for a single response frame,
// returning its payload. Stale bytes from earlier exchanges are discarded
// before writing.
func (l *Link) Request(payload []byte) ([]byte, error) {
	frame, err := vesc.EncodeFrame(payload)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.drain()

	if err := l.write(frame); err != nil {
		l.stats.Record(err)
		return nil, err
	}

	resp, err := l.receive()
	l.stats.Record(err)
	return resp, err
}

func (l *Link) write(frame []byte) error {
	select {
	case <-l.done:
		return &LinkError{Op: "write", Err: ErrClosed}
	default:
	}

	if _, err := l.port.Write(frame); err != nil {
		return &LinkError{Op: "write", Err: err}
	}
	return nil
}

// drain drops queued bytes and any partial frame
func (l *Link) drain() {
	for {
		select {
		case <-l.chunks:
		default:
			l.decoder.Reset()
			l.stats.AddSkipped(l.decoder.Skipped())
			return
		}
	}
}

// receive accumulates bytes until a frame completes or the timeout elapses
func (l *Link) receive() ([]byte, error) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	for {
		select {
		case chunk := <-l.chunks:
			for _, b := range chunk {
				frame, err := l.decoder.DecodeByte(b)
				if err != nil {
					l.stats.AddSkipped(l.decoder.Skipped())
					return nil, err
				}
				if frame != nil {
					l.stats.AddSkipped(l.decoder.Skipped())
					return frame.Payload(), nil
				}
			}

		case <-timer.C:
			l.decoder.Reset()
			return nil, fmt.Errorf("%w after %v", vesc.ErrTimeout, l.timeout)

		case <-l.dead:
			if l.readErr != nil {
				return nil, &LinkError{Op: "read", Err: l.readErr}
			}
			return nil, &LinkError{Op: "read", Err: ErrClosed}
		}
	}
}

// Close stops the reader and closes the port
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.port.Close()
	})
	return err
}
