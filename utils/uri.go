package utils

import (
	"path/filepath"
	"strings"
)

// NormalizeURI ensures the URI has the proper file:// scheme
func NormalizeURI(uri string) string {
	// If it already has a file scheme, return as-is
	if strings.HasPrefix(uri, "file://") {
		return uri
	}

	// If it has any other scheme (http://, https://, etc.), return as-is
	if strings.Contains(uri, "://") {
		return uri
	}

	// If it's an absolute path, convert to file URI
	if strings.HasPrefix(uri, "/") {
		return "file://" + uri
	}

	// If it's a relative path, convert to absolute path first, then to file URI
	if absPath, err := filepath.Abs(uri); err == nil {
		return "file://" + absPath
	}

	// Fallback: assume it's a file path and add file:// prefix
	return "file://" + uri
}

// URIToFilePath converts a file URI to a local file path
func URIToFilePath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// FilePathToURI converts a local file path to a file URI
func FilePathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path // Already a URI
	}

	// Convert to absolute path if relative
	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}

	return "file://" + path
}

// ExtensionFromURI extracts the file extension (without the dot) from a
// file URI or path. Returns "" when there is none.
func ExtensionFromURI(uri string) string {
	ext := filepath.Ext(URIToFilePath(uri))
	return strings.TrimPrefix(ext, ".")
}

// LanguageIDForPath maps a file path to the languageId the LSP protocol
// expects in textDocument/didOpen. Servers use it for parser selection, so
// extensions that share a server still need distinct ids (ts vs tsx).
// Unknown extensions fall back to the extension itself.
func LanguageIDForPath(path string) string {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "rs":
		return "rust"
	case "go":
		return "go"
	case "py", "pyi":
		return "python"
	case "ts":
		return "typescript"
	case "tsx":
		return "typescriptreact"
	case "js":
		return "javascript"
	case "jsx":
		return "javascriptreact"
	case "c", "h":
		return "c"
	case "cpp", "hpp", "cc":
		return "cpp"
	case "json":
		return "json"
	case "toml":
		return "toml"
	case "yaml", "yml":
		return "yaml"
	case "md":
		return "markdown"
	case "":
		return "plaintext"
	default:
		return strings.TrimPrefix(filepath.Ext(path), ".")
	}
}
