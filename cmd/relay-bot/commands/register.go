package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/situation-relay/internal/adapters/discord"
)

// newRegisterCmd creates `relay-bot register-commands`.
func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-commands",
		Short: "Register the slash commands with Discord and exit",
		RunE:  runRegister,
	}
	cmd.Flags().String("guild", "", "guild id (overrides DISCORD_GUILD_ID; empty registers globally)")
	return cmd
}

func runRegister(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Discord.AppID == "" {
		return fmt.Errorf("DISCORD_APP_ID is required to register commands")
	}

	guild := cfg.Discord.GuildID
	if g, _ := cmd.Flags().GetString("guild"); g != "" {
		guild = g
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	registered, err := discord.RegisterCommands(session, cfg.Discord.AppID, guild)
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}

	logger.Info("slash commands registered", "count", len(registered), "guild", guild)
	fmt.Fprintf(cmd.OutOrStdout(), "registered %d commands\n", len(registered))
	return nil
}
