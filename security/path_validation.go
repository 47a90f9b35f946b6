package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// CleanAbsPath validates a path and returns it cleaned and absolute
func CleanAbsPath(path string) (string, error) {
	if path == "" || path == "." {
		return "", errors.New("path cannot be empty or current directory")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	return absPath, nil
}

// IsWithinAllowedDirectory checks if a path is within an allowed base directory.
// Parent directories are never considered "within" their children.
func IsWithinAllowedDirectory(path, baseDir string) bool {
	absBase, _ := filepath.Abs(baseDir)
	absPath, _ := filepath.Abs(path)

	cleanBase := filepath.Clean(absBase)
	cleanPath := filepath.Clean(absPath)

	if cleanPath == cleanBase {
		return true
	}

	return strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator))
}

// ValidateConfigPath validates a configuration file path against allowed directories
func ValidateConfigPath(path string, allowedDirectories []string) (string, error) {
	cleanPath, err := CleanAbsPath(path)
	if err != nil {
		return "", fmt.Errorf("invalid config path: %w", err)
	}

	if !slices.Contains(allowedDirectories, ".") {
		allowedDirectories = append(allowedDirectories, ".")
	}

	for _, allowedDir := range allowedDirectories {
		if IsWithinAllowedDirectory(cleanPath, allowedDir) {
			return cleanPath, nil
		}
	}

	return "", fmt.Errorf("file path is not allowed: %s", cleanPath)
}

// ConfigAllowedDirectories returns the directories config files may be loaded from
func ConfigAllowedDirectories(configDir, workingDir string) []string {
	allowedDirs := []string{}

	if configDir != "" {
		allowedDirs = append(allowedDirs, configDir)
	}

	if workingDir != "" {
		allowedDirs = append(allowedDirs, workingDir)
	}

	return append(allowedDirs, ".")
}
