package main

import (
	"code_duel/internal/common/security"
	"code_duel/internal/platform/config"
	"code_duel/internal/platform/logger"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "code-duel",
	Short: "Head-to-head coding duels: matchmaking, judging and ratings",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.Init(cfg.LogLevel, cfg.LogFormat)
		security.InitJWT()
	},
	// Running the binary without a subcommand serves.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}
