package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.DiscordToken)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, 5, cfg.XPPerMessage)
	assert.Equal(t, 10, cfg.LeaderboardSize)
	assert.Equal(t, "xp", cfg.LeaderboardKey)
	assert.Equal(t, 10*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 64, cfg.EventBuffer)
	assert.True(t, cfg.InitSlashCommands)
	assert.Equal(t, ":8080", cfg.KeepaliveAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.WelcomeChannelID)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "secret")
	t.Setenv("WELCOME_CHANNEL_ID", "123")
	t.Setenv("DISCORD_GUILD_BLACKLIST", " 1, 2,,3 ")
	t.Setenv("LEADERBOARD_KEY", "Level")
	t.Setenv("ACTION_TIMEOUT", "3s")
	t.Setenv("INIT_SLASH_COMMANDS", "false")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_FILE", "/tmp/warden.log")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "123", cfg.WelcomeChannelID)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.GuildBlacklist)
	assert.True(t, cfg.IsGuildBlacklisted("2"))
	assert.False(t, cfg.IsGuildBlacklisted("4"))
	assert.Equal(t, "level", cfg.LeaderboardKey)
	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.False(t, cfg.InitSlashCommands)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "/tmp/warden.log", cfg.Log.File)
}

func TestMissingTokenFails(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN is not set")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "secret")
	t.Setenv("LEADERBOARD_SIZE", "0")
	t.Setenv("LEADERBOARD_KEY", "karma")
	t.Setenv("EVENT_BUFFER", "-1")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEADERBOARD_SIZE")
	assert.Contains(t, err.Error(), "LEADERBOARD_KEY")
	assert.Contains(t, err.Error(), "EVENT_BUFFER")
}

func TestMalformedValueFails(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "secret")
	t.Setenv("XP_PER_MESSAGE", "lots")

	_, err := Parse()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	os.Unsetenv("DISCORD_TOKEN")
	t.Setenv("COMMAND_PREFIX", "?")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_TOKEN=from-file\nCOMMAND_PREFIX=%\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DiscordToken)
	// Variables already in the environment win over the file.
	assert.Equal(t, "?", cfg.CommandPrefix)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.DiscordToken)
}
