// Package interfaces holds the contracts the MCP tool layer depends on,
// keeping it decoupled from the concrete bridge for testing.
package interfaces

import (
	"github.com/myleshyson/lsprotocol-go/protocol"
)

// BridgeInterface is what a tool handler may ask of the bridge.
type BridgeInterface interface {
	// FindSymbolDefinitions resolves definition targets for a 0-based
	// position, syncing the document first.
	FindSymbolDefinitions(uri string, line, character uint32) ([]protocol.Location, error)

	// HandlesURI reports whether the configured language server covers
	// the file's extension.
	HandlesURI(uri string) bool

	// Workspace returns the resolved workspace root.
	Workspace() string

	// Shutdown tears down the language server; the process must not exit
	// before it returns.
	Shutdown() error
}
