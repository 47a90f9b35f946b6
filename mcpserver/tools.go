package mcpserver

import (
	"waypoint/interfaces"
	"waypoint/mcpserver/tools"

	"github.com/mark3labs/mcp-go/server"
)

// RegisterAllTools registers every bridge tool on the MCP server.
func RegisterAllTools(mcpServer *server.MCPServer, bridge interfaces.BridgeInterface) {
	tools.RegisterDefinitionTool(mcpServer, bridge)
}
