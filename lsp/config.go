package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"waypoint/security"
)

// ServerConfig describes the one language server this process fronts:
// which file extensions it handles, how to launch it, and where its
// workspace root lives relative to the workspace base.
type ServerConfig struct {
	Extensions []string `json:"extensions"`
	Command    []string `json:"command"`
	RootDir    string   `json:"rootDir"`
}

// LoadServerConfig reads a server configuration from a JSON file after
// validating the path against the allowed directories.
func LoadServerConfig(path string, allowedDirectories []string) (config *ServerConfig, err error) {
	cleanPath, err := security.ValidateConfigPath(path, allowedDirectories)
	if err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	file, err := os.Open(cleanPath) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// NewServerConfig assembles a configuration from command-line pieces.
func NewServerConfig(extensions, command []string) (*ServerConfig, error) {
	config := &ServerConfig{
		Extensions: extensions,
		Command:    command,
		RootDir:    ".",
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the invariants the rest of the system assumes.
func (c *ServerConfig) Validate() error {
	if len(c.Extensions) == 0 {
		return errors.New("server config has no extensions")
	}

	if len(c.Command) == 0 || c.Command[0] == "" {
		return errors.New("server config has an empty command")
	}

	return nil
}

// HasExtension reports whether this server handles the given extension.
func (c *ServerConfig) HasExtension(extension string) bool {
	return slices.Contains(c.Extensions, extension)
}

// ResolveRootDir resolves the configured root directory against a base
// path and requires the result to exist.
func (c *ServerConfig) ResolveRootDir(base string) (string, error) {
	path := c.RootDir
	if path == "" {
		path = "."
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory %s: %w", path, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("workspace root does not exist: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("workspace root is not a directory: %s", resolved)
	}

	return resolved, nil
}
