// Package bridge connects the MCP tool surface to a single language
// server subprocess, keeping documents synchronized and normalizing
// definition results.
package bridge

import (
	"errors"
	"fmt"

	"waypoint/logger"
	"waypoint/lsp"
	"waypoint/utils"

	"github.com/mark3labs/mcp-go/server"
)

// Bridge owns one language client and the document state shared by every
// tool call. It is created unconnected; Connect spawns and initializes
// the language server before any tool is served.
type Bridge struct {
	config        *lsp.ServerConfig
	workspaceBase string
	workspace     string

	client    LanguageClientInterface
	documents *lsp.DocumentManager

	server *server.MCPServer
}

// NewBridge creates a bridge for the given server configuration. The
// workspace base is the directory rootDir is resolved against.
func NewBridge(config *lsp.ServerConfig, workspaceBase string) *Bridge {
	return &Bridge{
		config:        config,
		workspaceBase: workspaceBase,
		documents:     lsp.NewDocumentManager(),
	}
}

// Connect resolves the workspace, spawns the language server and runs the
// initialize handshake. It blocks until the server is ready for requests.
func (b *Bridge) Connect() error {
	workspace, err := b.config.ResolveRootDir(b.workspaceBase)
	if err != nil {
		return err
	}

	b.workspace = workspace

	client, err := lsp.NewLanguageClient(workspace, b.config.Command[0], b.config.Command[1:]...)
	if err != nil {
		return err
	}

	if err := client.Initialize(); err != nil {
		shutdownErr := client.Shutdown()
		if shutdownErr != nil {
			logger.Warn(fmt.Sprintf("Failed to shut down half-initialized server: %v", shutdownErr))
		}

		return fmt.Errorf("language server initialization failed: %w", err)
	}

	b.client = client

	return nil
}

// HandlesURI reports whether the configured server covers the file's
// extension.
func (b *Bridge) HandlesURI(uri string) bool {
	return b.config.HasExtension(utils.ExtensionFromURI(uri))
}

// Workspace returns the resolved workspace root.
func (b *Bridge) Workspace() string {
	return b.workspace
}

// SetServer stores the MCP server reference.
func (b *Bridge) SetServer(s *server.MCPServer) {
	b.server = s
}

// GetServer returns the MCP server reference.
func (b *Bridge) GetServer() *server.MCPServer {
	return b.server
}

// Shutdown closes every open document and drives the language server
// shutdown sequence. The process should only exit after this returns.
func (b *Bridge) Shutdown() error {
	if b.client == nil {
		return nil
	}

	b.documents.CloseAll(b.client)

	return b.client.Shutdown()
}

// errNotConnected is returned for tool calls issued before Connect.
var errNotConnected = errors.New("language server is not connected")
