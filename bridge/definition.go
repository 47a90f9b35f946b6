package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"waypoint/logger"
	"waypoint/utils"

	"github.com/myleshyson/lsprotocol-go/protocol"
)

const (
	// Servers that are still indexing answer definition requests with an
	// empty result instead of an error, so an empty result is retried a
	// few times before being believed.
	maxDefinitionAttempts = 3
	definitionRetryDelay  = 150 * time.Millisecond
)

// FindSymbolDefinitions resolves the definition targets for the symbol at
// a 0-based position. The document is synced to the server before the
// request goes out. Empty results are retried with a short delay; every
// other failure (timeout included) surfaces immediately. An empty result
// after the final attempt is a valid answer, not an error.
func (b *Bridge) FindSymbolDefinitions(uri string, line, character uint32) ([]protocol.Location, error) {
	if b.client == nil {
		return nil, errNotConnected
	}

	uri = utils.NormalizeURI(uri)

	if err := b.documents.EnsureSynced(b.client, uri); err != nil {
		return nil, fmt.Errorf("failed to prepare document %s: %w", uri, err)
	}

	for attempt := 1; attempt <= maxDefinitionAttempts; attempt++ {
		raw, err := b.client.Definition(uri, line, character)
		if err != nil {
			return nil, fmt.Errorf("definition request failed for %s:%d:%d: %w", uri, line, character, err)
		}

		locations, err := normalizeDefinitionResult(raw)
		if err != nil {
			return nil, fmt.Errorf("bad definition result for %s: %w", uri, err)
		}

		if len(locations) > 0 {
			if attempt > 1 {
				logger.Debug(fmt.Sprintf("Definition for %s succeeded on attempt %d", uri, attempt))
			}

			return locations, nil
		}

		if attempt < maxDefinitionAttempts {
			logger.Debug(fmt.Sprintf("Definition for %s empty on attempt %d, retrying", uri, attempt))
			time.Sleep(definitionRetryDelay)
		}
	}

	return []protocol.Location{}, nil
}

// definitionEntry covers both result shapes a server may use for one
// target: Location carries uri/range, LocationLink carries targetUri and
// target ranges. Which fields are present decides the variant.
type definitionEntry struct {
	Uri                  string          `json:"uri"`
	Range                *protocol.Range `json:"range"`
	TargetUri            string          `json:"targetUri"`
	TargetSelectionRange *protocol.Range `json:"targetSelectionRange"`
}

// normalizeDefinitionResult collapses the shapes servers answer
// textDocument/definition with (null, Location, Location[],
// LocationLink[]) into plain locations.
func normalizeDefinitionResult(raw json.RawMessage) ([]protocol.Location, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode definition result array: %w", err)
		}

		locations := make([]protocol.Location, 0, len(entries))

		for _, entry := range entries {
			location, err := convertDefinitionEntry(entry)
			if err != nil {
				return nil, err
			}

			locations = append(locations, location)
		}

		return locations, nil

	case '{':
		location, err := convertDefinitionEntry(trimmed)
		if err != nil {
			return nil, err
		}

		return []protocol.Location{location}, nil

	default:
		return nil, fmt.Errorf("unexpected definition result shape: %s", trimmed)
	}
}

// convertDefinitionEntry turns one Location or LocationLink object into a
// Location. LocationLinks contribute their target selection range, the
// span of the symbol itself rather than its whole declaration.
func convertDefinitionEntry(raw json.RawMessage) (protocol.Location, error) {
	var entry definitionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return protocol.Location{}, fmt.Errorf("failed to decode definition entry: %w", err)
	}

	switch {
	case entry.Uri != "" && entry.Range != nil:
		return protocol.Location{
			Uri:   protocol.DocumentUri(entry.Uri),
			Range: *entry.Range,
		}, nil

	case entry.TargetUri != "" && entry.TargetSelectionRange != nil:
		return protocol.Location{
			Uri:   protocol.DocumentUri(entry.TargetUri),
			Range: *entry.TargetSelectionRange,
		}, nil

	default:
		return protocol.Location{}, fmt.Errorf("definition entry has neither location nor location-link fields: %s", raw)
	}
}
