package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"waypoint/interfaces"
	"waypoint/logger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ToolServer is the part of the MCP server tools register themselves on.
type ToolServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// RegisterDefinitionTool registers the definition tool
func RegisterDefinitionTool(mcpServer ToolServer, bridge interfaces.BridgeInterface) {
	mcpServer.AddTool(DefinitionTool(bridge))
}

func DefinitionTool(bridge interfaces.BridgeInterface) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("definition",
			mcp.WithDescription("Find where the symbol at a position is defined"),
			mcp.WithString("uri", mcp.Description("URI to the file")),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)")),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)")),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, err := request.RequireString("uri")
			if err != nil {
				logger.Error("definition: URI parsing failed", err)
				return mcp.NewToolResultError(err.Error()), nil
			}

			line, err := request.RequireInt("line")
			if err != nil {
				logger.Error("definition: Line parsing failed", err)
				return mcp.NewToolResultError(err.Error()), nil
			}

			character, err := request.RequireInt("character")
			if err != nil {
				logger.Error("definition: Character parsing failed", err)
				return mcp.NewToolResultError(err.Error()), nil
			}

			if line < 0 || character < 0 {
				return mcp.NewToolResultError("line and character must be non-negative"), nil
			}

			if !bridge.HandlesURI(uri) {
				logger.Info(fmt.Sprintf("definition: Unsupported file extension: %s", uri))
				return mcp.NewToolResultError(fmt.Sprintf("The configured language server does not handle %s", uri)), nil
			}

			locations, err := bridge.FindSymbolDefinitions(uri, uint32(line), uint32(character))
			if err != nil {
				logger.Error("definition: Request failed", fmt.Sprintf("URI: %s, Line: %d, Character: %d, Error: %v", uri, line, character, err))
				return mcp.NewToolResultError(fmt.Sprintf("Failed to find definition: %v", err)), nil
			}

			if len(locations) == 0 {
				logger.Info(fmt.Sprintf("definition: No definition found for %s:%d:%d", uri, line, character))
				return mcp.NewToolResultText("No definition found"), nil
			}

			content, err := json.MarshalIndent(locations, "", "  ")
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize definition locations: %v", err)), nil
			}

			return mcp.NewToolResultText(string(content)), nil
		}
}
