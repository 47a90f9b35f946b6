package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"waypoint/bridge"
	"waypoint/directories"
	"waypoint/logger"
	"waypoint/lsp"
	"waypoint/mcpserver"
	"waypoint/security"

	"github.com/mark3labs/mcp-go/server"
)

// extensionList collects repeated -extension flags.
type extensionList []string

func (e *extensionList) String() string {
	return strings.Join(*e, ",")
}

func (e *extensionList) Set(value string) error {
	value = strings.TrimPrefix(strings.TrimSpace(value), ".")
	if value == "" {
		return fmt.Errorf("extension cannot be empty")
	}

	*e = append(*e, value)

	return nil
}

// buildConfig produces the server configuration either from a config file
// or from the -extension flags plus the positional server command.
func buildConfig(confPath string, configDir string, extensions extensionList, command []string) (*lsp.ServerConfig, error) {
	if confPath != "" {
		workingDir, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %v", err)
		}

		return lsp.LoadServerConfig(confPath, security.ConfigAllowedDirectories(configDir, workingDir))
	}

	return lsp.NewServerConfig(extensions, command)
}

func main() {
	dirResolver := directories.NewDirectoryResolver("waypoint", directories.DefaultUserProvider{}, directories.DefaultEnvProvider{}, true)

	configDir, err := dirResolver.GetConfigDirectory()
	if err != nil {
		log.Fatalf("Failed to get config directory: %v", err)
	}

	logDir, err := dirResolver.GetLogDirectory()
	if err != nil {
		log.Fatalf("Failed to get log directory: %v", err)
	}

	defaultLogPath := filepath.Join(logDir, "waypoint.log")

	var extensions extensionList

	var confPath string
	var workspace string
	var logPath string
	var logLevel string
	flag.Var(&extensions, "extension", "File extension the language server handles, without the dot (repeatable)")
	flag.Var(&extensions, "e", "File extension the language server handles (short)")
	flag.StringVar(&confPath, "config", "", "Path to server configuration file")
	flag.StringVar(&confPath, "c", "", "Path to server configuration file (short)")
	flag.StringVar(&workspace, "workspace", ".", "Workspace root the language server is started in")
	flag.StringVar(&workspace, "w", ".", "Workspace root (short)")
	flag.StringVar(&logPath, "log-path", defaultLogPath, "Path to log file")
	flag.StringVar(&logPath, "l", defaultLogPath, "Path to log file (short)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	config, err := buildConfig(confPath, configDir, extensions, flag.Args())
	if err != nil {
		log.Fatalf("Failed to build server configuration: %v", err)
	}

	logConfig := logger.LoggerConfig{
		LogPath:     logPath,
		LogLevel:    logLevel,
		MaxLogFiles: 10,
	}

	if err := logger.InitLogger(logConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	logger.Info("Starting waypoint...")

	workspaceBase, err := filepath.Abs(workspace)
	if err != nil {
		logger.Error("Failed to resolve workspace path: " + err.Error())
		os.Exit(1)
	}

	bridgeInstance := bridge.NewBridge(config, workspaceBase)

	// The language server is started and initialized up front so the first
	// tool call does not pay the handshake cost.
	if err := bridgeInstance.Connect(); err != nil {
		logger.Error("Failed to connect to language server: " + err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := bridgeInstance.Shutdown(); err != nil {
			logger.Warn("Bridge shutdown failed: " + err.Error())
		}
	}()

	mcpServer := mcpserver.SetupMCPServer(bridgeInstance)

	// Store the server reference in the bridge
	bridgeInstance.SetServer(mcpServer)

	logger.Info("Starting MCP server...")

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("MCP server error: " + err.Error())
	}
}
