package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "B.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	paths, err := listPDFs(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "B.PDF"),
	}, paths)
}

func TestListPDFs_MissingDirectory(t *testing.T) {
	_, err := listPDFs(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
