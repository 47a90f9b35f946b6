package bridge

import (
	"encoding/json"

	"waypoint/lsp"
)

// LanguageClientInterface is the slice of lsp.LanguageClient the bridge
// uses, abstracted so tests can substitute a scripted client.
type LanguageClientInterface interface {
	lsp.DocumentSyncer

	Initialize() error
	Shutdown() error
	Definition(uri string, line, character uint32) (json.RawMessage, error)
}
