package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keshon/server-warden/internal/config"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Discord moderation and engagement bot",
	Long: `Warden moderates a Discord server and keeps members engaged.

It runs slash and prefix moderation commands, tracks XP, levels and voice
time, greets members and answers a few chat triggers. Running without a
subcommand is the same as "warden run".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default \""+config.DefaultEnvFile+"\" when present)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
