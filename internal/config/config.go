// Package config loads the bot's settings from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when present; its absence is not an error.
const DefaultEnvFile = ".env"

type Config struct {
	DiscordToken     string   `env:"DISCORD_TOKEN"`
	WelcomeChannelID string   `env:"WELCOME_CHANNEL_ID"`
	GuildBlacklist   []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	CommandPrefix   string `env:"COMMAND_PREFIX" envDefault:"!"`
	XPPerMessage    int    `env:"XP_PER_MESSAGE" envDefault:"5"`
	LeaderboardSize int    `env:"LEADERBOARD_SIZE" envDefault:"10"`
	LeaderboardKey  string `env:"LEADERBOARD_KEY" envDefault:"xp"`

	ActionTimeout     time.Duration `env:"ACTION_TIMEOUT" envDefault:"10s"`
	EventBuffer       int           `env:"EVENT_BUFFER" envDefault:"64"`
	InitSlashCommands bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	KeepaliveAddr     string        `env:"KEEPALIVE_ADDR" envDefault:":8080"`

	Log LogConfig `envPrefix:"LOG_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	// File, when set, receives a copy of every log line with rotation.
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
}

// Load reads envFile into the process environment (without overriding
// variables that are already set), then parses and validates the config.
// An empty envFile means DefaultEnvFile, which may be missing; an explicit
// file must exist.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse builds the config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.GuildBlacklist = compact(cfg.GuildBlacklist)
	cfg.LeaderboardKey = strings.ToLower(strings.TrimSpace(cfg.LeaderboardKey))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DiscordToken) == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be empty"))
	}
	if c.XPPerMessage < 0 {
		errs = append(errs, fmt.Errorf("XP_PER_MESSAGE must be >= 0, got %d", c.XPPerMessage))
	}
	if c.LeaderboardSize <= 0 {
		errs = append(errs, fmt.Errorf("LEADERBOARD_SIZE must be > 0, got %d", c.LeaderboardSize))
	}
	if c.LeaderboardKey != "xp" && c.LeaderboardKey != "level" {
		errs = append(errs, fmt.Errorf("LEADERBOARD_KEY must be xp or level, got %q", c.LeaderboardKey))
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ACTION_TIMEOUT must be positive, got %s", c.ActionTimeout))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_BUFFER must be > 0, got %d", c.EventBuffer))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// IsGuildBlacklisted reports whether the bot should leave guildID.
func (c *Config) IsGuildBlacklisted(guildID string) bool {
	return slices.Contains(c.GuildBlacklist, guildID)
}

func compact(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
