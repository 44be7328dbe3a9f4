package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadPromptTable_MissingFileUsesDefaults(t *testing.T) {
	table, err := LoadPromptTable(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	require.NoError(t, err)

	p := table.Get()
	assert.NotEmpty(t, p.ClassifierSystem)
	assert.NotEmpty(t, p.RewriteDefault)
	assert.NotEmpty(t, p.SummarizerSystem)
	assert.Contains(t, p.RewriteSystem, "WORK_SEARCH")
}

func TestLoadPromptTable_FileOverridesSelectedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	data := "classifier_system: custom classifier\nrewrite_system:\n  WORK_SEARCH: custom work rewrite\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	table, err := LoadPromptTable(path, zap.NewNop())
	require.NoError(t, err)

	p := table.Get()
	assert.Equal(t, "custom classifier", p.ClassifierSystem)
	assert.Equal(t, "custom work rewrite", p.RewriteSystem["WORK_SEARCH"])
	// Entries absent from the file keep their defaults.
	assert.NotEmpty(t, p.SummarizerSystem)
	assert.NotEmpty(t, p.RewriteDefault)
}

func TestLoadPromptTable_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifier_system: [unclosed"), 0o644))

	_, err := LoadPromptTable(path, zap.NewNop())
	assert.Error(t, err)
}

func TestRewriteFor_FallsBackToDefault(t *testing.T) {
	table, err := LoadPromptTable(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	require.NoError(t, err)

	p := table.Get()
	assert.Equal(t, p.RewriteSystem["WORK_SEARCH"], table.RewriteFor("WORK_SEARCH"))
	assert.Equal(t, p.RewriteDefault, table.RewriteFor("OUT_OF_SCOPE"))
}
