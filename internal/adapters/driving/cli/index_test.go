package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmd_Use(t *testing.T) {
	assert.Equal(t, "index [root]", indexCmd.Use)
}

func TestIndexCmd_HasWatchFlag(t *testing.T) {
	flag := indexCmd.Flags().Lookup("watch")
	require.NotNil(t, flag, "watch flag should exist")
	assert.Equal(t, "w", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestIndexCmd_IndexesCorpus(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"index", t.TempDir()})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Indexed 3 files")
	assert.Contains(t, buf.String(), "6 added")
}

func TestIndexCmd_IndexesSingleFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"index", "--file", "docs/auth.md", t.TempDir()})
	defer func() {
		rootCmd.SetArgs(nil)
		indexFile = ""
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "docs/auth.md: 2 added")
}

func TestCleanupCmd_DryRunByDefault(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"cleanup", t.TempDir()})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Would mark 2")
	assert.Contains(t, buf.String(), "docs/gone.md")
	assert.Contains(t, buf.String(), "--commit")
}

func TestRecoverCmd_PrintsCount(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"recover"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Recovered 3 points.")
}

func TestPurgeCmd_RequiresConfirm(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"purge"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestStatsCmd_PrintsBackends(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"stats"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "nomic-embed-text")
	assert.Contains(t, buf.String(), "768 dimensions")
	assert.Contains(t, buf.String(), "cloud")
	assert.Contains(t, buf.String(), "120 points")
}
