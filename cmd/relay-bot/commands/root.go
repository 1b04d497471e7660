// Package commands implements the relay-bot CLI using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/situation-relay/internal/config"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay-bot",
		Short: "Discord situation relay",
		Long: `relay-bot relays Discord channel conversations to a language model.
Each channel keeps its own situation (system prompt) and conversation log;
reacting with the recycle emoji regenerates a reply or rewinds the conversation.

Examples:
  relay-bot serve
  relay-bot serve --register-commands
  relay-bot register-commands --guild 123456789`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newRegisterCmd(),
	)

	rootCmd.PersistentFlags().String("env-file", ".env", "path to a .env file (ignored when missing)")
	rootCmd.PersistentFlags().String("log-level", "", "overrides LOG_LEVEL (debug, info, warn, error)")

	return rootCmd
}

// loadConfig reads the optional .env file, the environment and the profiles
// file, then sets up the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	loaded, err := config.LoadDotEnv(envFile)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	logger := observability.Setup(os.Stdout, cfg.LogLevel)
	if loaded {
		logger.Debug("loaded env file", "path", envFile)
	}
	return cfg, logger, nil
}
