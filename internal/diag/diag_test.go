package diag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave(t *testing.T) {
	dir := t.TempDir()

	path, err := Save(dir, "debug_social", "Bitcoin Cash / BCH", "<html></html>")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "debug_social_Bitcoin_Cash___BCH.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestSave_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "debug")

	_, err := Save(dir, "debug_repo", "Solana", "<body/>")
	require.NoError(t, err)
}
