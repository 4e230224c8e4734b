package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point the fallback search away from any real home config.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ext4", cfg.FSType)
	assert.Equal(t, "mdadm", cfg.MdadmPath)
	assert.Equal(t, "/var/run/raidlab", cfg.ScriptDir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fs_type: xfs\nscript_dir: /tmp/raidlab\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xfs", cfg.FSType)
	assert.Equal(t, "/tmp/raidlab", cfg.ScriptDir)
	// Unset keys keep their defaults.
	assert.Equal(t, "mdadm", cfg.MdadmPath)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ext4", cfg.FSType)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fs_type: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
