package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// Replier posts on behalf of the bot. Long messages are split; the id of the
// first chunk identifies the whole reply.
type Replier struct {
	session *discordgo.Session
}

func NewReplier(session *discordgo.Session) *Replier {
	return &Replier{session: session}
}

func (r *Replier) Reply(ctx context.Context, ch domain.ChannelID, to domain.MessageRef, content string) (domain.MessageRef, error) {
	return r.post(ctx, ch, to, content)
}

func (r *Replier) Send(ctx context.Context, ch domain.ChannelID, content string) (domain.MessageRef, error) {
	return r.post(ctx, ch, "", content)
}

func (r *Replier) post(ctx context.Context, ch domain.ChannelID, to domain.MessageRef, content string) (domain.MessageRef, error) {
	var first domain.MessageRef
	for i, chunk := range splitMessage(content, MaxMessageLength) {
		msgSend := &discordgo.MessageSend{Content: chunk}
		if i == 0 && to != "" {
			msgSend.Reference = &discordgo.MessageReference{MessageID: string(to), ChannelID: string(ch)}
		}
		sent, err := r.session.ChannelMessageSendComplex(string(ch), msgSend, discordgo.WithContext(ctx))
		if err != nil {
			return first, fmt.Errorf("discord: sending message: %w", err)
		}
		if i == 0 {
			first = domain.MessageRef(sent.ID)
		}
	}
	return first, nil
}

func (r *Replier) React(ctx context.Context, ch domain.ChannelID, msg domain.MessageRef, emoji string) error {
	if err := r.session.MessageReactionAdd(string(ch), string(msg), emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: adding reaction: %w", err)
	}
	return nil
}

func (r *Replier) Typing(ctx context.Context, ch domain.ChannelID) error {
	return r.session.ChannelTyping(string(ch), discordgo.WithContext(ctx))
}

var _ domain.Replier = (*Replier)(nil)
