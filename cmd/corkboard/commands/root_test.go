package commands

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["list"])
	assert.True(t, names["get"])
	assert.True(t, names["watch"])
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-08-31")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-08-31)", rootCmd.Version)
}

// setupCommandEnv points the shared command flags at a miniredis backend with
// no config file present.
func setupCommandEnv(t *testing.T) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	configPath = filepath.Join(t.TempDir(), "missing.yml")
	boardName = "default"
}

func TestListCommandEmptyBoard(t *testing.T) {
	setupCommandEnv(t)
	require.NoError(t, runList(listCmd, nil))
}

func TestListCommandRejectsBadOutputFormat(t *testing.T) {
	setupCommandEnv(t)

	listOutputFormat = "xml"
	t.Cleanup(func() { listOutputFormat = "default" })

	assert.Error(t, runList(listCmd, nil))
}

func TestGetCommandUnknownItem(t *testing.T) {
	setupCommandEnv(t)

	err := runGet(getCmd, []string{uuid.New().String()})
	assert.Error(t, err)
}
