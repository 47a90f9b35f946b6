// Package directories resolves per-user configuration and log directories
// following platform conventions (XDG on Unix, known folders on Windows).
package directories

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// EnvProvider provides access to environment variables.
type EnvProvider interface {
	Getenv(key string) string
}

// DefaultEnvProvider reads environment variables via os.Getenv.
type DefaultEnvProvider struct{}

func (d DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

// UserProvider provides access to the current user's information.
type UserProvider interface {
	Current() (*user.User, error)
}

// DefaultUserProvider looks up the current user via user.Current().
type DefaultUserProvider struct{}

func (d DefaultUserProvider) Current() (*user.User, error) {
	return user.Current()
}

// DirectoryResolver handles directory resolution for an application
type DirectoryResolver struct {
	appName         string
	userProvider    UserProvider
	envProvider     EnvProvider
	shouldEnsureDir bool
}

// NewDirectoryResolver creates a resolver with the given providers.
// shouldEnsureDir controls whether resolved directories are created.
func NewDirectoryResolver(appName string, userProvider UserProvider, envProvider EnvProvider, shouldEnsureDir bool) *DirectoryResolver {
	return &DirectoryResolver{
		appName:         appName,
		userProvider:    userProvider,
		envProvider:     envProvider,
		shouldEnsureDir: shouldEnsureDir,
	}
}

func (dr *DirectoryResolver) isRoot() (bool, error) {
	u, err := dr.userProvider.Current()
	if err != nil {
		return false, fmt.Errorf("failed to get current user: %w", err)
	}

	return u.Uid == "0", nil
}

func (dr *DirectoryResolver) maybeEnsureDir(dir string) (string, error) {
	if !dr.shouldEnsureDir {
		return dir, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDirectory returns the configuration directory for the user.
// For root: /etc/{appName}
// For regular users: ~/.config/{appName} (Unix) or %APPDATA%\{appName} (Windows)
func (dr *DirectoryResolver) GetConfigDirectory() (string, error) {
	isR, err := dr.isRoot()
	if err != nil {
		return "", err
	}

	if isR {
		return dr.maybeEnsureDir(filepath.Join("/", "etc", dr.appName))
	}

	u, err := dr.userProvider.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	if runtime.GOOS == "windows" {
		configDir := dr.envProvider.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(u.HomeDir, "AppData", "Roaming")
		}

		return dr.maybeEnsureDir(filepath.Join(configDir, dr.appName))
	}

	xdgConfigHome := dr.envProvider.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		xdgConfigHome = filepath.Join(u.HomeDir, ".config")
	}

	return dr.maybeEnsureDir(filepath.Join(xdgConfigHome, dr.appName))
}

// GetLogDirectory returns the log directory for the user.
// For root: /var/log/{appName}
// For regular users: ~/.local/share/{appName}/logs (Unix) or
// %LOCALAPPDATA%\{appName}\logs (Windows)
func (dr *DirectoryResolver) GetLogDirectory() (string, error) {
	isR, err := dr.isRoot()
	if err != nil {
		return "", err
	}

	if isR {
		return dr.maybeEnsureDir(filepath.Join("/", "var", "log", dr.appName))
	}

	u, err := dr.userProvider.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	if runtime.GOOS == "windows" {
		baseDir := dr.envProvider.Getenv("LOCALAPPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(u.HomeDir, "AppData", "Local")
		}

		return dr.maybeEnsureDir(filepath.Join(baseDir, dr.appName, "logs"))
	}

	xdgDataHome := dr.envProvider.Getenv("XDG_DATA_HOME")
	if xdgDataHome == "" {
		xdgDataHome = filepath.Join(u.HomeDir, ".local", "share")
	}

	return dr.maybeEnsureDir(filepath.Join(xdgDataHome, dr.appName, "logs"))
}
