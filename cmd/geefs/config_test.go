package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUnsetenv removes key for the duration of the test
func testUnsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"BLOCK_SIZE", "FREE_MAPS", "INODE_BLOCKS", "LOG_LEVEL", "COMPRESSION"} {
		testUnsetenv(t, envVarPrefix+"_"+key)
	}
	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, &Config{
		BlockSize:   512,
		FreeMaps:    1,
		InodeBlocks: 4,
		LogLevel:    "info",
		Compression: "zstd",
	}, c)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("GEEFS_BLOCK_SIZE", "1024")
	t.Setenv("GEEFS_FREE_MAPS", "3")
	t.Setenv("GEEFS_INODE_BLOCKS", "16")
	t.Setenv("GEEFS_LOG_LEVEL", "debug")
	t.Setenv("GEEFS_COMPRESSION", "xz")
	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), c.BlockSize)
	assert.Equal(t, uint32(3), c.FreeMaps)
	assert.Equal(t, uint32(16), c.InodeBlocks)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "xz", c.Compression)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("GEEFS_BLOCK_SIZE", "big")
	_, err := LoadConfig()
	assert.Error(t, err)

	testUnsetenv(t, "GEEFS_BLOCK_SIZE")
	t.Setenv("GEEFS_LOG_LEVEL", "chatty")
	_, err = LoadConfig()
	assert.Error(t, err)
}
