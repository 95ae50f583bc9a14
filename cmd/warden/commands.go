package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/keshon/server-warden/internal/docs"
	"github.com/keshon/server-warden/internal/moderation"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/internal/router"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/internal/voice"
)

var (
	readmeTemplate string
	readmeOut      string
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Print the command reference as Markdown",
	Long: `Print every slash command the bot serves as Markdown.

With --readme, render the given template into --out instead. The template
receives the reference as {{.CommandSections}}.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sections := commandSections()
		if readmeTemplate != "" {
			return docs.UpdateReadme(readmeTemplate, readmeOut, sections...)
		}
		return docs.WriteCommands(cmd.OutOrStdout(), sections...)
	},
}

func init() {
	commandsCmd.Flags().StringVar(&readmeTemplate, "readme", "", "README template to render")
	commandsCmd.Flags().StringVarP(&readmeOut, "out", "o", "README.md", "output file for --readme")
	rootCmd.AddCommand(commandsCmd)
}

// commandSections builds the registries offline; nothing is sent anywhere.
func commandSections() []docs.Section {
	logger := zerolog.Nop()
	engine := progression.NewEngine(0, logger)
	tracker := usage.NewTracker(logger)
	dispatcher := moderation.NewDispatcher(nil, engine, tracker, moderation.Config{}, logger)
	r := router.New(router.Deps{
		Engine:     engine,
		Ranker:     progression.NewRanker(engine, progression.RankByXP),
		Usage:      tracker,
		Voice:      voice.NewTracker(logger),
		Moderation: dispatcher,
	}, router.Config{}, logger)

	return []docs.Section{
		{Title: "Moderation", Prefix: "/", Commands: dispatcher.Commands()},
		{Title: "Queries", Prefix: "/", Commands: r.QueryCommands()},
	}
}
