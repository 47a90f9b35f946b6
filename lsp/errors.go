package lsp

import "errors"

var (
	// ErrFraming reports a malformed frame header (missing or unparsable
	// Content-Length). The reader loop does not survive it.
	ErrFraming = errors.New("malformed frame")

	// ErrDecoding reports a frame body that is not valid UTF-8 JSON.
	ErrDecoding = errors.New("invalid frame payload")

	// ErrTimeout reports a request that received no response before its
	// deadline. Local to that request; its pending entry is removed.
	ErrTimeout = errors.New("request timed out")

	// ErrCorrelationLost reports that the reader loop terminated while the
	// request was still pending; no response can ever arrive.
	ErrCorrelationLost = errors.New("connection to language server lost")

	// ErrClientClosed reports an operation on a client that has been shut
	// down or rendered unusable by a transport failure.
	ErrClientClosed = errors.New("language client is closed")
)
