package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/PabloGalante/situation-relay/internal/app/conversation"
	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// Handler receives platform events converted to domain types.
type Handler interface {
	Allowed(ch domain.ChannelID) bool
	HandleMessage(ctx context.Context, msg domain.InboundMessage) error
	HandleReaction(ctx context.Context, ev domain.ReactionEvent) error
	HandleCommand(ctx context.Context, ch domain.ChannelID, cmd domain.Command) domain.CommandResult
}

// NewSession creates a gateway session with the intents the relay needs.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	return session, nil
}

// Bot routes gateway events to a Handler. discordgo dispatches every event on
// its own goroutine.
type Bot struct {
	session *discordgo.Session
	handler Handler
	logger  *slog.Logger

	ctx   context.Context
	botID atomic.Value // string
}

func NewBot(session *discordgo.Session, handler Handler) *Bot {
	b := &Bot{
		session: session,
		handler: handler,
		logger:  observability.WithFields("component", "discord"),
		ctx:     context.Background(),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.onInteractionCreate)
	return b
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}
	b.logger.Info("discord: connected")

	<-ctx.Done()

	if err := b.session.Close(); err != nil {
		b.logger.Warn("discord: closing gateway", "error", err)
	}
	b.logger.Info("discord: disconnected")
	return nil
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.botID.Store(r.User.ID)
	b.logger.Info("discord: ready", "bot", r.User.Username, "id", r.User.ID)
}

func (b *Bot) selfID(s *discordgo.Session) string {
	if id, _ := b.botID.Load().(string); id != "" {
		return id
	}
	if s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}

// isTextChannel reports whether id is a guild text channel. Lookup failures
// count as not text.
func (b *Bot) isTextChannel(s *discordgo.Session, id string) bool {
	if s.State != nil {
		if c, err := s.State.Channel(id); err == nil {
			return c.Type == discordgo.ChannelTypeGuildText
		}
	}
	c, err := s.Channel(id, discordgo.WithContext(b.ctx))
	if err != nil {
		return false
	}
	return c.Type == discordgo.ChannelTypeGuildText
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == b.selfID(s) {
		return
	}
	msg := toInbound(m)
	if msg.AuthorIsBot || !b.handler.Allowed(msg.ChannelID) || !b.isTextChannel(s, m.ChannelID) {
		return
	}

	ctx := observability.WithEvent(b.ctx, m.ChannelID)
	if err := b.handler.HandleMessage(ctx, msg); err != nil {
		observability.LoggerFromContext(ctx).Error("discord: handling message", "error", err)
	}
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	self := b.selfID(s)
	if r.UserID == self || (r.Member != nil && r.Member.User != nil && r.Member.User.Bot) {
		return
	}
	if !b.handler.Allowed(domain.ChannelID(r.ChannelID)) || !b.isTextChannel(s, r.ChannelID) {
		return
	}

	ctx := observability.WithEvent(b.ctx, r.ChannelID)
	log := observability.LoggerFromContext(ctx)

	target, err := s.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		// target deleted or not visible; nothing to act on
		log.Debug("discord: fetching reacted message", "error", err)
		return
	}

	if err := b.handler.HandleReaction(ctx, toReaction(r, target, self)); err != nil {
		log.Error("discord: handling reaction", "error", err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := observability.WithEvent(b.ctx, i.ChannelID)
	log := observability.LoggerFromContext(ctx)

	var res domain.CommandResult
	switch {
	case !b.handler.Allowed(domain.ChannelID(i.ChannelID)):
		res = domain.CommandResult{Content: conversation.MsgChannelNotAllowed, Ephemeral: true}
	case !b.isTextChannel(s, i.ChannelID):
		res = domain.CommandResult{Content: conversation.MsgTextChannelOnly, Ephemeral: true}
	default:
		cmd := domain.Command(i.ApplicationCommandData().Name)
		res = b.handler.HandleCommand(ctx, domain.ChannelID(i.ChannelID), cmd)
	}

	if err := s.InteractionRespond(i.Interaction, interactionResponse(res), discordgo.WithContext(ctx)); err != nil {
		log.Error("discord: responding to command", "error", err)
	}
}

func toInbound(m *discordgo.MessageCreate) domain.InboundMessage {
	msg := domain.InboundMessage{
		ChannelID: domain.ChannelID(m.ChannelID),
		MessageID: domain.MessageRef(m.ID),
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorIsBot = m.Author.Bot
	}
	return msg
}

// toReaction builds the event for a reaction on target. TargetAuthorIsBot
// means posted by this bot, not by any bot.
func toReaction(r *discordgo.MessageReactionAdd, target *discordgo.Message, selfID string) domain.ReactionEvent {
	ev := domain.ReactionEvent{
		ChannelID: domain.ChannelID(r.ChannelID),
		MessageID: domain.MessageRef(r.MessageID),
		Emoji:     r.Emoji.Name,
	}
	if r.Member != nil && r.Member.User != nil {
		ev.ReactorIsBot = r.Member.User.Bot
	}
	if target != nil {
		ev.TargetAuthorIsBot = target.Author != nil && selfID != "" && target.Author.ID == selfID
	}
	return ev
}
