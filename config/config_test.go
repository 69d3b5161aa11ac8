package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSyntax(t *testing.T) {
	d := Default()
	assert.Equal(t, "{{", d.Tags.VariableStart)
	assert.Equal(t, "}}", d.Tags.VariableEnd)
	assert.Equal(t, "{%", d.Tags.BlockStart)
	assert.Equal(t, "%}", d.Tags.BlockEnd)
	assert.False(t, d.Whitespace.KeepTrailingNewline)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syntax.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  block_start: \"<%\"\n  block_end: \"%>\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "<%", cfg.Tags.BlockStart)
	assert.Equal(t, "%>", cfg.Tags.BlockEnd)
	assert.Equal(t, "{{", cfg.Tags.VariableStart, "unset fields keep the default")
}

func TestLoadRejectsCollidingTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syntax.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tags:\n  block_start: \"{{\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
