package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterWritesArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewFileWriter(filepath.Join(dir, "out", "digest-{date}.md"), "")

	path, err := w.Write(context.Background(), "# Digest\n", time.Date(2025, time.November, 8, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "digest-2025-11-08.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Digest\n", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileWriterUpdatesReadme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("# Project\n\nIntro.\n\n## Features\n\n- fast\n"), 0o644))

	w := NewFileWriter(filepath.Join(dir, "blog_summaries.md"), readme)
	_, err := w.Write(context.Background(), "# Digest\n\n## Post one\n\ntext", time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(readme)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.Index(content, readmeSection) < strings.Index(content, readmeAnchor))
	assert.Contains(t, content, "### Digest")
	assert.Contains(t, content, "#### Post one")
}

func TestReplaceSection(t *testing.T) {
	t.Parallel()

	t.Run("replaces existing section only", func(t *testing.T) {
		readme := "# P\n\n## Daily Blog Summary\n\nold stuff\n\n## Setup\n\nsteps\n"
		got := ReplaceSection(readme, "new stuff")

		assert.NotContains(t, got, "old stuff")
		assert.Contains(t, got, "## Daily Blog Summary\n\nnew stuff\n\n## Setup\n\nsteps\n")
	})

	t.Run("replaces trailing section", func(t *testing.T) {
		readme := "# P\n\n## Daily Blog Summary\n\nold stuff\n"
		got := ReplaceSection(readme, "fresh")

		assert.Equal(t, "# P\n\n## Daily Blog Summary\n\nfresh\n\n", got)
	})

	t.Run("appends when no anchor", func(t *testing.T) {
		got := ReplaceSection("# P\n", "fresh")
		assert.Equal(t, "# P\n\n## Daily Blog Summary\n\nfresh\n\n", got)
	})
}
