package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionListSet(t *testing.T) {
	var extensions extensionList

	require.NoError(t, extensions.Set("py"))
	require.NoError(t, extensions.Set(".rs"))
	require.NoError(t, extensions.Set(" ts "))

	assert.Equal(t, extensionList{"py", "rs", "ts"}, extensions)
	assert.Equal(t, "py,rs,ts", extensions.String())

	assert.Error(t, extensions.Set(""))
	assert.Error(t, extensions.Set("."))
}

func TestBuildConfigFromFlags(t *testing.T) {
	config, err := buildConfig("", t.TempDir(), extensionList{"py"}, []string{"pylsp", "--stdio"})
	require.NoError(t, err)

	assert.Equal(t, []string{"py"}, config.Extensions)
	assert.Equal(t, []string{"pylsp", "--stdio"}, config.Command)
}

func TestBuildConfigFromFlagsMissingCommand(t *testing.T) {
	_, err := buildConfig("", t.TempDir(), extensionList{"py"}, nil)
	assert.Error(t, err)
}

func TestBuildConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"extensions":["go"],"command":["gopls"],"rootDir":"."}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	// The config dir is the allowed directory here
	config, err := buildConfig(path, dir, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"go"}, config.Extensions)
	assert.Equal(t, []string{"gopls"}, config.Command)
	assert.Equal(t, ".", config.RootDir)
}
