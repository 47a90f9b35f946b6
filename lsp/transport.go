package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Message is a decoded JSON-RPC message read off the wire. ID is kept raw
// because servers may echo request ids as either numbers or strings.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error object of a JSON-RPC response.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// IsNotification reports whether the message carries no id.
func (m *Message) IsNotification() bool {
	return len(m.ID) == 0 || string(m.ID) == "null"
}

// MatchesID reports whether the message id equals the given request id,
// accepting both numeric and string encodings.
func (m *Message) MatchesID(id int64) bool {
	raw := string(m.ID)
	return raw == strconv.FormatInt(id, 10) || raw == strconv.Quote(strconv.FormatInt(id, 10))
}

// Transport frames JSON-RPC messages with Content-Length headers over a
// byte stream pair, one JSON value per frame. It performs no locking; the
// client serializes writers and dedicates a single reader.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewTransport creates a transport reading frames from r and writing them to w.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// WriteMessage serializes v and writes it as a single framed message.
// Header and body go out in one Write so partial frames cannot interleave
// on the underlying stream.
func (t *Transport) WriteMessage(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	frame := make([]byte, 0, len(body)+32)
	frame = append(frame, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))...)
	frame = append(frame, body...)

	if _, err := t.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

// ReadMessage reads the next framed message. It returns io.EOF when the
// stream ends cleanly between frames, ErrFraming on a malformed header and
// ErrDecoding on a body that is not valid UTF-8 JSON.
func (t *Transport) ReadMessage() (*Message, error) {
	length, err := t.readHeaders()
	if err != nil {
		return nil, err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("stream closed reading %d-byte payload: %w", length, err)
	}

	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrDecoding)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	return &msg, nil
}

// readHeaders consumes header lines up to the blank separator and returns
// the declared body length. Content-Length is mandatory; unknown headers
// and stray non-header lines are tolerated.
func (t *Transport) readHeaders() (int, error) {
	length := -1
	sawHeader := false

	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && !sawHeader && line == "" {
				return 0, io.EOF
			}

			return 0, fmt.Errorf("%w: stream ended inside header block: %v", ErrFraming, err)
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !sawHeader {
				// Blank lines before any header are noise from the server
				continue
			}

			break
		}

		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		sawHeader = true

		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%w: bad Content-Length %q", ErrFraming, strings.TrimSpace(value))
			}

			length = n
		}
	}

	if length < 0 {
		return 0, fmt.Errorf("%w: missing Content-Length header", ErrFraming)
	}

	return length, nil
}
