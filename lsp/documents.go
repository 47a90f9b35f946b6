package lsp

import (
	"fmt"
	"os"
	"sync"
	"time"

	"waypoint/logger"
	"waypoint/utils"
)

// DocumentSyncer is the slice of the language client the document manager
// needs. The manager never stores one; callers pass it per operation.
type DocumentSyncer interface {
	DidOpen(uri string, languageID string, text string, version int32) error
	DidChange(uri string, version int32, text string) error
	DidClose(uri string) error
}

// documentState tracks what the server believes about one open document.
type documentState struct {
	version int32
	mtime   time.Time
}

// DocumentManager keeps the language server's view of file content in
// step with disk, re-syncing only when a file's mtime has moved.
type DocumentManager struct {
	mu   sync.Mutex
	open map[string]*documentState
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		open: make(map[string]*documentState),
	}
}

// EnsureSynced guarantees the document is open on the server with its
// current on-disk content before returning. Unknown documents get a
// didOpen at version 1; known documents whose mtime changed get a
// full-content didChange with the version bumped; unchanged documents
// cause no traffic at all. A failed read or send leaves the record as it
// was.
func (dm *DocumentManager) EnsureSynced(client DocumentSyncer, uri string) error {
	path := utils.URIToFilePath(utils.NormalizeURI(uri))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	state, exists := dm.open[uri]

	if exists && !info.ModTime().After(state.mtime) {
		logger.Debug(fmt.Sprintf("Document already synchronized: %s", uri))
		return nil
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if exists {
		nextVersion := state.version + 1

		logger.Debug(fmt.Sprintf("Document modified, sending didChange v%d: %s", nextVersion, uri))

		if err := client.DidChange(uri, nextVersion, string(text)); err != nil {
			return err
		}

		state.version = nextVersion
		state.mtime = info.ModTime()

		return nil
	}

	logger.Debug(fmt.Sprintf("Opening document: %s", uri))

	if err := client.DidOpen(uri, utils.LanguageIDForPath(path), string(text), 1); err != nil {
		return err
	}

	dm.open[uri] = &documentState{
		version: 1,
		mtime:   info.ModTime(),
	}

	return nil
}

// Close tells the server the document is closed and forgets it. Closing
// an unknown document is a no-op.
func (dm *DocumentManager) Close(client DocumentSyncer, uri string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if _, exists := dm.open[uri]; !exists {
		return nil
	}

	if err := client.DidClose(uri); err != nil {
		return err
	}

	delete(dm.open, uri)

	return nil
}

// CloseAll closes every open document, best effort. Used at shutdown.
func (dm *DocumentManager) CloseAll(client DocumentSyncer) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for uri := range dm.open {
		if err := client.DidClose(uri); err != nil {
			logger.Warn(fmt.Sprintf("Failed to close %s: %v", uri, err))
		}

		delete(dm.open, uri)
	}
}

// OpenCount returns how many documents the server currently has open.
func (dm *DocumentManager) OpenCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return len(dm.open)
}
