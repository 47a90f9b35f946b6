package mcpserver

import (
	"context"

	"waypoint/interfaces"
	"waypoint/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SetupMCPServer configures the MCP server exposing the language server
// bridge as tools.
func SetupMCPServer(bridge interfaces.BridgeInterface) *server.MCPServer {
	hooks := &server.Hooks{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		logger.Debug("beforeCallTool:", id, message)
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		logger.Debug("afterCallTool:", id, message, result)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Error("onError:", method, id, message, err)
	})

	mcpServer := server.NewMCPServer(
		"waypoint",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithHooks(hooks),
		server.WithInstructions(`This MCP server bridges to a single Language Server Protocol (LSP) server.

Use the definition tool to resolve where a symbol is defined: pass a file:// URI
and a 0-based line/character position, and it returns the definition targets as
{uri, range} objects. The server only handles files matching its configured
extensions.`),
	)

	RegisterAllTools(mcpServer, bridge)

	return mcpServer
}
