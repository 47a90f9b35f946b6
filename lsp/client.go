package lsp

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"waypoint/logger"
)

const (
	// requestTimeout bounds every request, including shutdown.
	requestTimeout = 15 * time.Second

	// exitGracePeriod is how long Shutdown waits for the child to exit on
	// its own before killing it.
	exitGracePeriod = 15 * time.Second
)

// outgoingMessage is the wire shape of client-to-server traffic. Request
// ids start at 1, so omitempty doubles as the notification form.
type outgoingMessage struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// LanguageClient manages a single language server subprocess: its stdio
// transport, the reader loop correlating responses to requests, and the
// initialize/shutdown lifecycle.
type LanguageClient struct {
	transport *Transport
	workspace string
	command   string
	args      []string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	// mu guards pending, nextID, closing and readErr. writeMu serializes
	// frames onto the child's stdin, which is a single byte stream.
	mu      sync.Mutex
	writeMu sync.Mutex
	pending map[int64]chan *Message
	nextID  int64
	closing bool
	readErr error

	// ready is closed once the initialize/initialized handshake finishes;
	// SendRequest blocks on it. done is closed when the reader loop exits.
	ready chan struct{}
	done  chan struct{}

	// exited receives the child's wait status once it terminates
	exited chan error

	initOnce     sync.Once
	shutdownOnce sync.Once

	totalRequests  int64
	failedRequests int64
	lastError      atomic.Value

	timeout time.Duration
}

// NewLanguageClient spawns the language server with the workspace as its
// working directory and starts the reader loop. The client is not usable
// for ordinary requests until Initialize has completed.
func NewLanguageClient(workspace, command string, args ...string) (*LanguageClient, error) {
	logger.Info(fmt.Sprintf("Starting language server: %s %v (workspace %s)", command, args, workspace))

	cmd := exec.Command(command, args...)
	cmd.Dir = workspace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to start language server %q: %w", command, err)
	}

	client := newClient(NewTransport(stdout, stdin))
	client.workspace = workspace
	client.command = command
	client.args = args
	client.cmd = cmd
	client.stdin = stdin
	client.stdout = stdout

	go func() {
		client.exited <- cmd.Wait()
	}()

	// Surface the server's diagnostic stream in the debug log
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				logger.Debug(fmt.Sprintf("[%s stderr] %s", command, buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return client, nil
}

// newClient wires a client onto an existing transport and starts the
// reader loop. Tests use it to talk to an in-process server over pipes.
func newClient(transport *Transport) *LanguageClient {
	client := &LanguageClient{
		transport: transport,
		pending:   make(map[int64]chan *Message),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
		exited:    make(chan error, 1),
		timeout:   requestTimeout,
	}

	go client.readLoop()

	return client
}

// readLoop is the only reader of the server's output stream. It delivers
// responses to their pending slots and drops everything else. Any read
// error is terminal: all pending requests fail immediately rather than
// waiting out their deadlines.
func (lc *LanguageClient) readLoop() {
	for {
		msg, err := lc.transport.ReadMessage()
		if err != nil {
			lc.failPending(err)
			return
		}

		if msg.IsNotification() {
			logger.Debug(fmt.Sprintf("Discarding server notification: %s", msg.Method))
			continue
		}

		lc.mu.Lock()
		delivered := false
		for id, ch := range lc.pending {
			if msg.MatchesID(id) {
				ch <- msg
				delete(lc.pending, id)
				delivered = true
				break
			}
		}
		lc.mu.Unlock()

		if !delivered {
			// Either a response whose waiter already timed out, or a
			// server-to-client request, which this client does not serve.
			logger.Debug(fmt.Sprintf("Discarding unmatched message: id=%s method=%q", msg.ID, msg.Method))
		}
	}
}

// failPending records the reader loop's exit reason, fails every waiter
// and marks the client unusable.
func (lc *LanguageClient) failPending(err error) {
	lc.mu.Lock()
	lc.readErr = err
	lc.closing = true
	for id, ch := range lc.pending {
		close(ch)
		delete(lc.pending, id)
	}
	lc.mu.Unlock()

	close(lc.done)

	if err != io.EOF {
		logger.Error(fmt.Sprintf("Language server read loop terminated: %v", err))
	}
}

// SendRequest sends a JSON-RPC request and waits for its correlated
// response. It blocks until the initialize handshake has completed, then
// until a response arrives, the deadline passes, or the reader loop dies.
// The returned payload is the response's raw result.
func (lc *LanguageClient) SendRequest(method string, params any) (json.RawMessage, error) {
	select {
	case <-lc.ready:
	case <-lc.done:
		return nil, fmt.Errorf("%w: %s", ErrClientClosed, method)
	}

	lc.mu.Lock()
	closing := lc.closing
	lc.mu.Unlock()

	if closing {
		return nil, fmt.Errorf("%w: %s", ErrClientClosed, method)
	}

	return lc.call(method, params)
}

// call performs the request without waiting on the readiness gate. The
// lifecycle methods (initialize, shutdown) use it directly.
func (lc *LanguageClient) call(method string, params any) (json.RawMessage, error) {
	atomic.AddInt64(&lc.totalRequests, 1)

	lc.mu.Lock()
	if lc.readErr != nil {
		err := lc.readErr
		lc.mu.Unlock()
		return nil, lc.fail(fmt.Errorf("%w: %s: %v", ErrClientClosed, method, err))
	}

	lc.nextID++
	id := lc.nextID
	ch := make(chan *Message, 1)
	lc.pending[id] = ch
	lc.mu.Unlock()

	err := lc.write(outgoingMessage{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		lc.removePending(id)
		return nil, lc.fail(fmt.Errorf("failed to send %q request: %w", method, err))
	}

	timer := time.NewTimer(lc.timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			if loopErr := lc.loopError(); loopErr != nil {
				return nil, lc.fail(fmt.Errorf("%w while waiting for %q: %v", ErrCorrelationLost, method, loopErr))
			}
			return nil, lc.fail(fmt.Errorf("%w: %q cancelled by shutdown", ErrClientClosed, method))
		}

		if msg.Error != nil {
			return nil, lc.fail(fmt.Errorf("%q failed: %w", method, msg.Error))
		}

		return msg.Result, nil

	case <-timer.C:
		lc.removePending(id)
		return nil, lc.fail(fmt.Errorf("%w: no response to %q within %s", ErrTimeout, method, lc.timeout))
	}
}

// SendNotification sends a JSON-RPC notification. It allocates no id and
// never waits for a reply.
func (lc *LanguageClient) SendNotification(method string, params any) error {
	if method == "" {
		return fmt.Errorf("empty notification method")
	}

	if err := lc.write(outgoingMessage{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}); err != nil {
		return fmt.Errorf("failed to send %q notification: %w", method, err)
	}

	return nil
}

func (lc *LanguageClient) write(msg outgoingMessage) error {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()

	return lc.transport.WriteMessage(msg)
}

func (lc *LanguageClient) removePending(id int64) {
	lc.mu.Lock()
	delete(lc.pending, id)
	lc.mu.Unlock()
}

// fail bumps the failure counter, records the error as the most recent
// one and passes it through.
func (lc *LanguageClient) fail(err error) error {
	atomic.AddInt64(&lc.failedRequests, 1)
	lc.lastError.Store(err.Error())

	return err
}

func (lc *LanguageClient) loopError() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.readErr
}

// markReady releases requests blocked on the initialize handshake.
func (lc *LanguageClient) markReady() {
	close(lc.ready)
}

// cancelPending fails every outstanding request with a cancellation error
// and stops new ones from being accepted. The shutdown request itself goes
// through call, which only refuses once the reader loop is gone.
func (lc *LanguageClient) cancelPending() {
	lc.mu.Lock()
	lc.closing = true
	for id, ch := range lc.pending {
		close(ch)
		delete(lc.pending, id)
	}
	lc.mu.Unlock()
}

// Workspace returns the workspace directory the server was started in.
func (lc *LanguageClient) Workspace() string {
	return lc.workspace
}

// Metrics is a snapshot of the client's request counters.
type Metrics struct {
	Command        string `json:"command"`
	TotalRequests  int64  `json:"total_requests"`
	FailedRequests int64  `json:"failed_requests"`
	LastError      string `json:"last_error,omitempty"`
}

// GetMetrics returns the current request counters.
func (lc *LanguageClient) GetMetrics() Metrics {
	lastError, _ := lc.lastError.Load().(string)

	return Metrics{
		Command:        lc.command,
		TotalRequests:  atomic.LoadInt64(&lc.totalRequests),
		FailedRequests: atomic.LoadInt64(&lc.failedRequests),
		LastError:      lastError,
	}
}
