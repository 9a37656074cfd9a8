// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Fake Port
// ============================================================

// fakePort answers each written frame with whatever respond returns
type fakePort struct {
	mu       sync.Mutex
	written  [][]byte
	respond  func(req []byte) []byte
	writeErr error

	rx      chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakePort(respond func(req []byte) []byte) *fakePort {
	return &fakePort{
		respond: respond,
		rx:      make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		select {
		case data := <-p.rx:
			p.pending = data
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, append([]byte(nil), b...))
	if p.respond != nil {
		if resp := p.respond(b); resp != nil {
			p.rx <- resp
		}
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) inject(data []byte) {
	p.rx <- data
}

func (p *fakePort) writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.written...)
}

// firmwareResponder answers any request with firmware 5.3
func firmwareResponder(req []byte) []byte {
	return vesc.MustEncodeFrame([]byte{0x00, 0x05, 0x03})
}

// ============================================================
// Request Tests
// ============================================================

func TestLink_RequestFirmwareVersion(t *testing.T) {
	port := newFakePort(firmwareResponder)
	link := NewLink(port, 0, nil)
	defer link.Close()

	resp, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.NoError(t, err)

	fw, err := vesc.ParseFirmwareVersion(resp)
	require.NoError(t, err)
	require.Equal(t, vesc.FirmwareVersion{Major: 5, Minor: 3}, fw)

	require.Equal(t, [][]byte{vesc.MustEncodeFrame([]byte{0x00})}, port.writes())
	require.Equal(t, uint64(1), link.Statistics().Snapshot().ValidResponses)
}

func TestLink_ResponseSplitAcrossChunks(t *testing.T) {
	frame := vesc.MustEncodeFrame([]byte{0x00, 0x05, 0x03})
	var port *fakePort
	port = newFakePort(func(req []byte) []byte {
		go func() {
			for _, b := range frame {
				port.inject([]byte{b})
				time.Sleep(time.Millisecond)
			}
		}()
		return nil
	})
	link := NewLink(port, 0, nil)
	defer link.Close()

	resp, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x05, 0x03}, resp)
}

func TestLink_TimeoutIsBounded(t *testing.T) {
	port := newFakePort(nil)
	link := NewLink(port, 100*time.Millisecond, nil)
	defer link.Close()

	start := time.Now()
	_, err := link.Request(vesc.NewGetValuesCommand())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, vesc.ErrTimeout)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 150*time.Millisecond)
	require.Equal(t, uint64(1), link.Statistics().Snapshot().Timeouts)
}

func TestLink_OneByteShortTimesOut(t *testing.T) {
	frame := vesc.MustEncodeFrame([]byte{0x00, 0x05, 0x03})
	port := newFakePort(func(req []byte) []byte {
		return frame[:len(frame)-1]
	})
	link := NewLink(port, 50*time.Millisecond, nil)
	defer link.Close()

	_, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.ErrorIs(t, err, vesc.ErrTimeout)
}

func TestLink_ChecksumErrorReported(t *testing.T) {
	port := newFakePort(func(req []byte) []byte {
		frame := vesc.MustEncodeFrame([]byte{0x00, 0x05, 0x03})
		frame[3] ^= 0x01
		return frame
	})
	link := NewLink(port, 0, nil)
	defer link.Close()

	_, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.ErrorIs(t, err, vesc.ErrChecksumMismatch)
	require.Equal(t, uint64(1), link.Statistics().Snapshot().ChecksumErrors)
}

func TestLink_StaleBytesDiscarded(t *testing.T) {
	port := newFakePort(firmwareResponder)
	link := NewLink(port, 0, nil)
	defer link.Close()

	// A late reply from an earlier exchange must not be taken as this response
	port.inject(vesc.MustEncodeFrame([]byte{0x04, 0x01}))
	time.Sleep(20 * time.Millisecond)

	resp, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.NoError(t, err)
	require.Equal(t, byte(0x00), resp[0])
}

func TestLink_WriteErrorIsTransport(t *testing.T) {
	port := newFakePort(nil)
	port.writeErr = errors.New("device unplugged")
	link := NewLink(port, 0, nil)
	defer link.Close()

	_, err := link.Request(vesc.NewGetValuesCommand())
	require.ErrorIs(t, err, ErrTransport)

	var linkErr *LinkError
	require.True(t, errors.As(err, &linkErr))
	require.Equal(t, "write", linkErr.Op)

	err = link.Send(vesc.NewAliveCommand())
	require.ErrorIs(t, err, ErrTransport)
}

func TestLink_SendWriteErrorsCounted(t *testing.T) {
	port := newFakePort(nil)
	link := NewLink(port, 0, nil)
	defer link.Close()

	require.NoError(t, link.Send(vesc.NewSetCurrentCommand(0)))
	require.Equal(t, uint64(0), link.Statistics().Snapshot().WriteErrors)

	port.mu.Lock()
	port.writeErr = errors.New("device unplugged")
	port.mu.Unlock()

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, link.Send(vesc.NewSetCurrentCommand(0)), ErrTransport)
	}

	c := link.Statistics().Snapshot()
	require.Equal(t, uint64(3), c.WriteErrors)
	require.Equal(t, uint64(0), c.Requests)

	// Request failures stay in the request counters
	_, err := link.Request(vesc.NewGetValuesCommand())
	require.ErrorIs(t, err, ErrTransport)
	c = link.Statistics().Snapshot()
	require.Equal(t, uint64(3), c.WriteErrors)
	require.Equal(t, uint64(1), c.TransportErrors)
}

func TestLink_SendDoesNotWait(t *testing.T) {
	port := newFakePort(nil)
	link := NewLink(port, time.Second, nil)
	defer link.Close()

	start := time.Now()
	require.NoError(t, link.Send(vesc.NewSetCurrentCommand(2.5)))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, [][]byte{vesc.MustEncodeFrame(vesc.NewSetCurrentCommand(2.5))}, port.writes())
}

func TestLink_RequestsAreSerialized(t *testing.T) {
	var seq byte
	port := newFakePort(func(req []byte) []byte {
		seq++
		return vesc.MustEncodeFrame([]byte{0x00, seq, 0x00})
	})
	link := NewLink(port, time.Second, nil)
	defer link.Close()

	const workers = 8
	results := make(chan byte, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := link.Request(vesc.NewFirmwareVersionCommand())
			if err != nil {
				errs <- err
				return
			}
			results <- resp[1]
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every exchange received its own reply
	seen := make(map[byte]bool)
	for n := range results {
		require.False(t, seen[n], "reply %d delivered twice", n)
		seen[n] = true
	}
	require.Len(t, seen, workers)
	require.Len(t, port.writes(), workers)
}

func TestLink_ClosedLink(t *testing.T) {
	port := newFakePort(nil)
	link := NewLink(port, 0, nil)
	require.NoError(t, link.Close())
	require.NoError(t, link.Close())

	err := link.Send(vesc.NewAliveCommand())
	require.ErrorIs(t, err, ErrClosed)
}

func TestLink_OversizedPayload(t *testing.T) {
	link := NewLink(newFakePort(nil), 0, nil)
	defer link.Close()

	_, err := link.Request(make([]byte, 300))
	require.ErrorIs(t, err, vesc.ErrUnsupportedFrame)
}

// ============================================================
// WebSocket Bridge Tests
// ============================================================

func TestWebSocket_RequestThroughBridge(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			conn.WriteMessage(websocket.TextMessage, []byte("status"))
			conn.WriteMessage(websocket.BinaryMessage, vesc.MustEncodeFrame([]byte{0x00, 0x06, 0x05}))
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, err := DialWebSocket(wsURL, "admin", "wrong", false)
	require.Error(t, err)

	conn, err := DialWebSocket(wsURL, "admin", "secret", false)
	require.NoError(t, err)

	link := NewLink(conn, time.Second, nil)
	defer link.Close()

	resp, err := link.Request(vesc.NewFirmwareVersionCommand())
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x06, 0x05}, resp)
}

func TestWebSocket_RejectsScheme(t *testing.T) {
	_, err := DialWebSocket("http://example.invalid/ws", "", "", false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported URL scheme")
}
