package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keshon/server-warden/internal/config"
	"github.com/keshon/server-warden/internal/discord"
	"github.com/keshon/server-warden/internal/keepalive"
	"github.com/keshon/server-warden/internal/logging"
	"github.com/keshon/server-warden/internal/moderation"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/internal/router"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/internal/voice"
	"github.com/keshon/server-warden/pkg/jobmgr"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and start handling events",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer := logging.New(cfg.Log, os.Stdout)
	defer closer.Close()
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("prefix", cfg.CommandPrefix).
		Bool("welcome", cfg.WelcomeChannelID != "").
		Int("blacklisted_guilds", len(cfg.GuildBlacklist)).
		Msg("Starting warden")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := discord.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}

	engine := progression.NewEngine(cfg.XPPerMessage, logger)
	ranker := progression.NewRanker(engine, progression.RankKey(cfg.LeaderboardKey))
	usageTracker := usage.NewTracker(logger)
	voiceTracker := voice.NewTracker(logger)

	dispatcher := moderation.NewDispatcher(adapter, engine, usageTracker, moderation.Config{
		ActionTimeout: cfg.ActionTimeout,
	}, logger)

	r := router.New(router.Deps{
		Gateway:    adapter,
		Engine:     engine,
		Ranker:     ranker,
		Usage:      usageTracker,
		Voice:      voiceTracker,
		Moderation: dispatcher,
	}, router.Config{
		WelcomeChannelID: cfg.WelcomeChannelID,
		Prefix:           cfg.CommandPrefix,
		LeaderboardSize:  cfg.LeaderboardSize,
		ReplyTimeout:     cfg.ActionTimeout,
	}, logger)

	jobs := jobmgr.NewManager(ctx, logger)
	if err := jobs.Start("router", func(ctx context.Context) error {
		return r.Run(ctx, adapter.Events())
	}); err != nil {
		return err
	}
	if err := jobs.Start("discord", adapter.Run); err != nil {
		return err
	}
	if cfg.KeepaliveAddr != "" {
		if err := jobs.Start("keepalive", keepaliveJob(cfg.KeepaliveAddr, logger)); err != nil {
			return err
		}
	}

	logger.Info().Str("jobs", jobs.Status()).Msg("Bot is running, press Ctrl+C to stop")

	err = jobs.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("Stopped with error")
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// A keep-alive listener that cannot bind is logged and left down; the bot
// itself keeps running.
func keepaliveJob(addr string, logger zerolog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := keepalive.Run(ctx, addr, logger); err != nil {
			logger.Error().Err(err).Str("addr", addr).Msg("Keep-alive server stopped")
		}
		return nil
	}
}
