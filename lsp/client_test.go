package lsp

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks the framed protocol from the other end of a pipe
// pair, recording everything the client sends.
type fakeServer struct {
	transport *Transport
	rawWriter io.Writer

	mu       sync.Mutex
	requests []*Message
	notifs   []*Message
}

// newTestClient wires a client and a fake server together over in-process
// pipes. handle returns the result payload for a request method, or false
// to leave the request unanswered.
func newTestClient(t *testing.T, handle func(msg *Message) (any, bool)) (*LanguageClient, *fakeServer) {
	t.Helper()

	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()

	client := newClient(NewTransport(clientReader, clientWriter))
	t.Cleanup(func() {
		clientWriter.Close()
		serverWriter.Close()
	})

	srv := &fakeServer{
		transport: NewTransport(serverReader, serverWriter),
		rawWriter: serverWriter,
	}

	go func() {
		for {
			msg, err := srv.transport.ReadMessage()
			if err != nil {
				return
			}

			srv.mu.Lock()
			if msg.IsNotification() {
				srv.notifs = append(srv.notifs, msg)
			} else {
				srv.requests = append(srv.requests, msg)
			}
			srv.mu.Unlock()

			if msg.IsNotification() || handle == nil {
				continue
			}

			if result, ok := handle(msg); ok {
				_ = srv.transport.WriteMessage(map[string]any{
					"jsonrpc": "2.0",
					"id":      msg.ID,
					"result":  result,
				})
			}
		}
	}()

	return client, srv
}

func (s *fakeServer) requestMethods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make([]string, len(s.requests))
	for i, msg := range s.requests {
		methods[i] = msg.Method
	}

	return methods
}

func (s *fakeServer) notificationMethods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make([]string, len(s.notifs))
	for i, msg := range s.notifs {
		methods[i] = msg.Method
	}

	return methods
}

func echoHandler(msg *Message) (any, bool) {
	return map[string]any{"echo": msg.Method}, true
}

func TestSendRequestIDsStrictlyIncreasing(t *testing.T) {
	client, srv := newTestClient(t, echoHandler)
	client.markReady()

	for range 3 {
		_, err := client.SendRequest("test/method", nil)
		require.NoError(t, err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	require.Len(t, srv.requests, 3)

	for i, msg := range srv.requests {
		assert.Equal(t, fmt.Sprintf("%d", i+1), string(msg.ID))
	}
}

func TestSendRequestCorrelatesOutOfOrderResponses(t *testing.T) {
	// Hold the first request until the second has been answered
	firstID := make(chan json.RawMessage, 1)

	client, srv := newTestClient(t, nil)
	client.markReady()

	go func() {
		for {
			srv.mu.Lock()
			n := len(srv.requests)
			srv.mu.Unlock()

			if n == 2 {
				break
			}

			time.Sleep(time.Millisecond)
		}

		srv.mu.Lock()
		first, second := srv.requests[0], srv.requests[1]
		srv.mu.Unlock()

		_ = srv.transport.WriteMessage(map[string]any{"jsonrpc": "2.0", "id": second.ID, "result": "second"})
		_ = srv.transport.WriteMessage(map[string]any{"jsonrpc": "2.0", "id": first.ID, "result": "first"})
		firstID <- first.ID
	}()

	var wg sync.WaitGroup
	results := make([]string, 2)

	for i, method := range []string{"req/first", "req/second"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			raw, err := client.SendRequest(method, nil)
			require.NoError(t, err)
			results[i] = string(raw)
		}()

		// Keep request registration ordered so ids map to methods
		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()
	<-firstID

	assert.Equal(t, `"first"`, results[0])
	assert.Equal(t, `"second"`, results[1])
}

func TestSendRequestTimeoutEvictsPendingEntry(t *testing.T) {
	client, _ := newTestClient(t, func(msg *Message) (any, bool) {
		if msg.Method == "fast" {
			return "ok", true
		}

		return nil, false // never answer "slow"
	})
	client.markReady()
	client.timeout = 50 * time.Millisecond

	_, err := client.SendRequest("slow", nil)
	assert.ErrorIs(t, err, ErrTimeout)

	client.mu.Lock()
	pendingAfter := len(client.pending)
	client.mu.Unlock()
	assert.Zero(t, pendingAfter, "timed-out request left its pending entry behind")

	// The client must still work for unrelated requests
	raw, err := client.SendRequest("fast", nil)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(raw))
}

func TestSendRequestServerError(t *testing.T) {
	client, srv := newTestClient(t, nil)
	client.markReady()

	go func() {
		for {
			srv.mu.Lock()
			n := len(srv.requests)
			srv.mu.Unlock()

			if n == 1 {
				break
			}

			time.Sleep(time.Millisecond)
		}

		srv.mu.Lock()
		id := srv.requests[0].ID
		srv.mu.Unlock()

		_ = srv.transport.WriteMessage(map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"error":   map[string]any{"code": -32601, "message": "method not found"},
		})
	}()

	_, err := client.SendRequest("bogus/method", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestSendRequestStringIDResponse(t *testing.T) {
	client, srv := newTestClient(t, nil)
	client.markReady()

	go func() {
		for {
			srv.mu.Lock()
			n := len(srv.requests)
			srv.mu.Unlock()

			if n == 1 {
				break
			}

			time.Sleep(time.Millisecond)
		}

		// Echo the id back as a string, as some servers do
		_ = srv.transport.WriteMessage(map[string]any{"jsonrpc": "2.0", "id": "1", "result": "ok"})
	}()

	raw, err := client.SendRequest("test", nil)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(raw))
}

func TestSendNotificationCarriesNoID(t *testing.T) {
	client, srv := newTestClient(t, echoHandler)
	client.markReady()

	require.NoError(t, client.SendNotification("test/notify", map[string]any{"a": 1}))

	_, err := client.SendRequest("test/request", nil)
	require.NoError(t, err)

	// The notification must not have consumed a request id
	srv.mu.Lock()
	defer srv.mu.Unlock()

	require.Len(t, srv.requests, 1)
	assert.Equal(t, "1", string(srv.requests[0].ID))
	require.Len(t, srv.notifs, 1)
	assert.True(t, srv.notifs[0].IsNotification())
}

func TestSendNotificationEmptyMethod(t *testing.T) {
	client, _ := newTestClient(t, nil)

	assert.Error(t, client.SendNotification("", nil))
}

func TestServerNotificationsDiscarded(t *testing.T) {
	client, srv := newTestClient(t, echoHandler)
	client.markReady()

	// Unsolicited diagnostics must not disturb request correlation
	_ = srv.transport.WriteMessage(map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params":  map[string]any{"uri": "file:///a.py"},
	})

	raw, err := client.SendRequest("test", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"test"}`, string(raw))
}

func TestFramingErrorFailsPendingImmediately(t *testing.T) {
	client, srv := newTestClient(t, nil)
	client.markReady()
	client.timeout = 10 * time.Second

	go func() {
		for {
			srv.mu.Lock()
			n := len(srv.requests)
			srv.mu.Unlock()

			if n == 1 {
				break
			}

			time.Sleep(time.Millisecond)
		}

		// A header block with no Content-Length kills the reader loop
		_, _ = srv.rawWriter.Write([]byte("X-Broken: yes\r\n\r\n"))
	}()

	start := time.Now()
	_, err := client.SendRequest("test", nil)

	assert.ErrorIs(t, err, ErrCorrelationLost)
	assert.Less(t, time.Since(start), 5*time.Second, "waiter hung until its deadline instead of failing fast")

	// The client is unusable from here on and must fail fast
	_, err = client.SendRequest("another", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestRequestsBlockUntilInitializeCompletes(t *testing.T) {
	client, srv := newTestClient(t, func(msg *Message) (any, bool) {
		switch msg.Method {
		case "initialize":
			return map[string]any{"capabilities": map[string]any{}}, true
		default:
			return []any{}, true
		}
	})
	client.workspace = t.TempDir()

	started := make(chan struct{})
	finished := make(chan error, 1)

	go func() {
		close(started)

		_, err := client.SendRequest("textDocument/definition", nil)
		finished <- err
	}()

	<-started

	select {
	case err := <-finished:
		t.Fatalf("request completed before initialize: %v", err)
	case <-time.After(50 * time.Millisecond):
		// Still blocked on the readiness gate, as it should be
	}

	require.NoError(t, client.Initialize())
	require.NoError(t, <-finished)

	assert.Equal(t, []string{"initialize", "textDocument/definition"}, srv.requestMethods())
	assert.Equal(t, []string{"initialized"}, srv.notificationMethods())
}

func TestInitializeRunsOnce(t *testing.T) {
	client, srv := newTestClient(t, func(msg *Message) (any, bool) {
		return map[string]any{}, true
	})
	client.workspace = t.TempDir()

	require.NoError(t, client.Initialize())
	require.NoError(t, client.Initialize())

	assert.Equal(t, []string{"initialize"}, srv.requestMethods())
}

func TestShutdownSequence(t *testing.T) {
	client, srv := newTestClient(t, func(msg *Message) (any, bool) {
		switch msg.Method {
		case "shutdown":
			return nil, true
		case "hang":
			return nil, false
		default:
			return map[string]any{}, true
		}
	})
	client.workspace = t.TempDir()
	require.NoError(t, client.Initialize())

	hung := make(chan error, 1)

	go func() {
		_, err := client.SendRequest("hang", nil)
		hung <- err
	}()

	// Let the hanging request register before shutting down
	for {
		client.mu.Lock()
		n := len(client.pending)
		client.mu.Unlock()

		if n == 1 {
			break
		}

		time.Sleep(time.Millisecond)
	}

	require.NoError(t, client.Shutdown())

	// The in-flight request was cancelled, not left to time out
	err := <-hung
	assert.ErrorIs(t, err, ErrClientClosed)

	// exit follows the shutdown ack, never precedes it
	assert.Equal(t, []string{"initialize", "shutdown"}, srv.requestMethods())
	assert.Equal(t, []string{"initialized", "exit"}, srv.notificationMethods())

	_, err = client.SendRequest("after", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestGetMetricsCountsFailures(t *testing.T) {
	client, _ := newTestClient(t, func(msg *Message) (any, bool) {
		if msg.Method == "fast" {
			return "ok", true
		}

		return nil, false
	})
	client.markReady()
	client.timeout = 50 * time.Millisecond

	_, err := client.SendRequest("fast", nil)
	require.NoError(t, err)

	_, err = client.SendRequest("slow", nil)
	require.ErrorIs(t, err, ErrTimeout)

	metrics := client.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalRequests)
	assert.Equal(t, int64(1), metrics.FailedRequests)
	assert.Contains(t, metrics.LastError, "slow")
}

func TestNewLanguageClientSpawnFailure(t *testing.T) {
	_, err := NewLanguageClient(t.TempDir(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start language server")
}
