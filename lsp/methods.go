package lsp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"waypoint/logger"
	"waypoint/utils"

	"github.com/myleshyson/lsprotocol-go/protocol"
)

// LSP protocol method implementations built on SendRequest/SendNotification.

// Initialize performs the initialize/initialized handshake and releases
// the request gate. It runs exactly once per client and must complete
// before any other request proceeds.
func (lc *LanguageClient) Initialize() error {
	var err error

	lc.initOnce.Do(func() {
		err = lc.initialize()
		if err == nil {
			lc.markReady()
		}
	})

	return err
}

func (lc *LanguageClient) initialize() error {
	pid := int32(os.Getpid())

	workspaceFolders := []protocol.WorkspaceFolder{
		{
			Uri:  protocol.URI(utils.FilePathToURI(lc.workspace)),
			Name: filepath.Base(lc.workspace),
		},
	}

	params := protocol.InitializeParams{
		ProcessId: &pid,
		ClientInfo: &protocol.ClientInfo{
			Name:    "waypoint",
			Version: "1.0.0",
		},
		Capabilities:     protocol.ClientCapabilities{},
		WorkspaceFolders: &workspaceFolders,
	}

	result, err := lc.call("initialize", params)
	if err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	logger.Debug(fmt.Sprintf("Initialize result: %s", result))

	if err := lc.SendNotification("initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification failed: %w", err)
	}

	logger.Info("Language server initialized")

	return nil
}

// Shutdown drives the shutdown/exit sequence: cancel whatever is still
// pending, send shutdown and await its ack, send exit, close the pipes,
// then give the child a grace period before killing it. Safe to call more
// than once; only the first call does the work.
func (lc *LanguageClient) Shutdown() error {
	var err error

	lc.shutdownOnce.Do(func() {
		err = lc.shutdown()
	})

	return err
}

func (lc *LanguageClient) shutdown() error {
	logger.Info("Shutting down language server")

	lc.cancelPending()

	if _, err := lc.call("shutdown", nil); err != nil {
		logger.Warn(fmt.Sprintf("Shutdown request failed: %v", err))
	}

	// Exit always follows the shutdown ack (or its failure), never precedes it
	if err := lc.SendNotification("exit", nil); err != nil {
		logger.Warn(fmt.Sprintf("Exit notification failed: %v", err))
	}

	if lc.stdin != nil {
		lc.stdin.Close()
	}
	if lc.stdout != nil {
		lc.stdout.Close()
	}

	if lc.cmd == nil {
		return nil
	}

	select {
	case waitErr := <-lc.exited:
		logger.Debug(fmt.Sprintf("Language server exited: %v", waitErr))
	case <-time.After(exitGracePeriod):
		logger.Warn(fmt.Sprintf("Language server did not exit within %s; killing", exitGracePeriod))

		if err := lc.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill unresponsive language server: %w", err)
		}

		<-lc.exited
	}

	return nil
}

// DidOpen sends a textDocument/didOpen notification
func (lc *LanguageClient) DidOpen(uri string, languageID string, text string, version int32) error {
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			Uri:        protocol.DocumentUri(uri),
			LanguageId: protocol.LanguageKind(languageID),
			Version:    version,
			Text:       text,
		},
	}

	return lc.SendNotification("textDocument/didOpen", params)
}

// DidChange sends a textDocument/didChange notification replacing the
// document's full content. Incremental sync is never negotiated.
func (lc *LanguageClient) DidChange(uri string, version int32, text string) error {
	params := map[string]any{
		"textDocument": protocol.VersionedTextDocumentIdentifier{
			Uri:     protocol.DocumentUri(uri),
			Version: version,
		},
		"contentChanges": []map[string]any{
			{"text": text},
		},
	}

	return lc.SendNotification("textDocument/didChange", params)
}

// DidClose sends a textDocument/didClose notification
func (lc *LanguageClient) DidClose(uri string) error {
	params := map[string]any{
		"textDocument": map[string]any{
			"uri": uri,
		},
	}

	return lc.SendNotification("textDocument/didClose", params)
}

// Definition sends a textDocument/definition request and returns the raw
// result. Servers answer with several shapes (Location, Location[],
// LocationLink[], null); normalization is the caller's concern.
func (lc *LanguageClient) Definition(uri string, line, character uint32) (json.RawMessage, error) {
	params := protocol.DefinitionParams{
		TextDocument: protocol.TextDocumentIdentifier{Uri: protocol.DocumentUri(uri)},
		Position: protocol.Position{
			Line:      line,
			Character: character,
		},
	}

	return lc.SendRequest("textDocument/definition", params)
}
