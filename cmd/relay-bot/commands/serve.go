package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/situation-relay/internal/adapters/discord"
	httpadapter "github.com/PabloGalante/situation-relay/internal/adapters/http"
	"github.com/PabloGalante/situation-relay/internal/app/conversation"
	"github.com/PabloGalante/situation-relay/internal/app/expansion"
	"github.com/PabloGalante/situation-relay/internal/domain"
)

// newServeCmd creates `relay-bot serve`.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and relay conversations",
		Long: `Connect to the Discord gateway and relay messages of the allowed
channels to the configured model backends. When RELAY_HTTP_ADDR is set, a
read-only admin API is served alongside.`,
		RunE: runServe,
	}
	cmd.Flags().Bool("register-commands", false, "register slash commands before connecting")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storage ──
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Models ──
	models, err := buildModels(ctx, cfg, logger)
	if err != nil {
		return err
	}
	policy, err := conversation.NewProfilePolicy(cfg.Profiles, cfg.DefaultBackend, cfg.DefaultSystemPrompt, models)
	if err != nil {
		return err
	}

	var expander conversation.Expander
	if sc, ok := models[cfg.DefaultBackend].(domain.StructuredLLMClient); ok {
		expander = expansion.NewService(sc)
	}

	// ── Discord ──
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}

	allowed := make([]domain.ChannelID, 0, len(cfg.AllowedChannels))
	for _, id := range cfg.AllowedChannels {
		allowed = append(allowed, domain.ChannelID(id))
	}

	svc := conversation.NewService(store, discord.NewReplier(session), policy, expander, conversation.Options{
		AllowedChannels: allowed,
		HistoryLimit:    cfg.HistoryLimit,
		ModelTimeout:    cfg.ModelTimeout,
		CommandPrefix:   cfg.CommandPrefix,
		RecycleEmoji:    cfg.RecycleEmoji,
		AcceptEmoji:     cfg.AcceptEmoji,
	})

	if register, _ := cmd.Flags().GetBool("register-commands"); register {
		registered, err := discord.RegisterCommands(session, cfg.Discord.AppID, cfg.Discord.GuildID)
		if err != nil {
			logger.Error("slash command registration failed", "error", err)
		} else {
			logger.Info("slash commands registered", "count", len(registered))
		}
	}

	bot := discord.NewBot(session, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})

	// ── Admin HTTP ──
	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpadapter.NewServer(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("admin api listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("relay started",
		"storage", cfg.StorageBackend,
		"default_backend", cfg.DefaultBackend,
		"allowed_channels", len(allowed))

	err = g.Wait()
	logger.Info("relay stopped")
	return err
}
