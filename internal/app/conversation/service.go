// Package conversation is the event-driven controller of the relay: it routes
// inbound messages, reactions and commands through the channel state machine,
// the conversation log, the recycle planners and the prompt assembler.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/PabloGalante/situation-relay/internal/app/chatlog"
	"github.com/PabloGalante/situation-relay/internal/app/recycle"
	"github.com/PabloGalante/situation-relay/internal/app/statemachine"
	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// Expander turns a short situation into a full system prompt.
type Expander interface {
	Expand(ctx context.Context, situation string) (string, error)
}

type Options struct {
	// AllowedChannels is copied at construction. Empty allows every channel.
	AllowedChannels []domain.ChannelID

	HistoryLimit  int
	ModelTimeout  time.Duration
	CommandPrefix string
	RecycleEmoji  string
	AcceptEmoji   string

	// Location is used by the time command. Nil means Asia/Tokyo.
	Location *time.Location
}

type Service struct {
	machine  *statemachine.Machine
	log      *chatlog.Log
	replier  domain.Replier
	policy   Policy
	expander Expander

	allowed    map[domain.ChannelID]struct{}
	opts       Options
	locks      *channelLocks
	expansions *expansionPosts
	now        func() time.Time
}

func NewService(
	store domain.ConversationStore,
	replier domain.Replier,
	policy Policy,
	expander Expander,
	opts Options,
) *Service {
	allowed := make(map[domain.ChannelID]struct{}, len(opts.AllowedChannels))
	for _, ch := range opts.AllowedChannels {
		allowed[ch] = struct{}{}
	}
	opts.AllowedChannels = nil

	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "/"
	}
	if opts.RecycleEmoji == "" {
		opts.RecycleEmoji = "♻️"
	}
	if opts.AcceptEmoji == "" {
		opts.AcceptEmoji = "✅"
	}
	if opts.Location == nil {
		opts.Location = tokyo()
	}

	return &Service{
		machine:    statemachine.New(store),
		log:        chatlog.New(store),
		replier:    replier,
		policy:     policy,
		expander:   expander,
		allowed:    allowed,
		opts:       opts,
		locks:      newChannelLocks(),
		expansions: newExpansionPosts(),
		now:        time.Now,
	}
}

func tokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Allowed reports whether the relay serves ch.
func (s *Service) Allowed(ch domain.ChannelID) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[ch]
	return ok
}

// AcceptEmoji is the reaction that installs a generated situation.
func (s *Service) AcceptEmoji() string {
	return s.opts.AcceptEmoji
}

// ─────────────────────────────────────────
// Messages
// ─────────────────────────────────────────

// HandleMessage processes one inbound text message. Store and model failures
// are answered with fixed messages; the returned error is only a failure to
// talk to the platform.
func (s *Service) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	if msg.AuthorIsBot || !s.Allowed(msg.ChannelID) {
		return nil
	}

	unlock := s.locks.lock(msg.ChannelID)
	defer unlock()

	log := observability.LoggerFromContext(ctx).With("message_id", msg.MessageID)

	if strings.HasPrefix(msg.Content, s.opts.CommandPrefix) {
		// leaves any pending input mode, never a conversation turn
		if err := s.machine.Transition(ctx, msg.ChannelID, statemachine.Next(domain.ModeUnset, statemachine.EventPrefixedMessage)); err != nil {
			log.Warn("resetting mode on prefixed message failed", "error", err)
		}
		return nil
	}

	st, err := s.machine.State(ctx, msg.ChannelID)
	if err != nil {
		log.Error("failed to read channel state", "error", err)
		return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
	}

	next := statemachine.Next(st.Mode, statemachine.EventTextMessage)
	log.Info("handling message", "mode", st.Mode.String())

	switch st.Mode {
	case domain.ModeAwaitingSituationInput:
		if err := s.machine.SetSituation(ctx, msg.ChannelID, msg.Content, next); err != nil {
			log.Error("failed to store situation", "error", err)
			return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
		}
		return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgSituationRegistered)

	case domain.ModeAwaitingPromptExpansionInput:
		if err := s.machine.Transition(ctx, msg.ChannelID, next); err != nil {
			log.Error("failed to leave expansion mode", "error", err)
			return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
		}
		return s.expand(ctx, msg.ChannelID, msg.Content)

	case domain.ModeAwaitingReinput:
		if err := s.machine.Transition(ctx, msg.ChannelID, next); err != nil {
			log.Error("failed to leave reinput mode", "error", err)
			return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
		}
	}

	return s.turn(ctx, st, msg)
}

// turn appends msg as a user entry and answers it from the history window.
func (s *Service) turn(ctx context.Context, st domain.ChannelState, msg domain.InboundMessage) error {
	log := observability.LoggerFromContext(ctx)
	profile := s.policy.For(msg.ChannelID)

	if profile.Assembler.RequireSituation && strings.TrimSpace(st.Situation) == "" {
		return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgSituationRequired)
	}

	if err := s.log.Append(ctx, msg.ChannelID, domain.NewUserMessage(msg.Content, msg.MessageID)); err != nil {
		log.Error("failed to append user message", "error", err)
		return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
	}

	history, err := s.log.Window(ctx, msg.ChannelID, s.opts.HistoryLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return s.reply(ctx, msg.ChannelID, msg.MessageID, MsgStoreUnavailable)
	}

	return s.answer(ctx, msg.ChannelID, msg.MessageID, st.Situation, history, profile)
}

// answer calls the model on history and records the reply. A model failure
// sends the fallback and leaves the log untouched.
func (s *Service) answer(
	ctx context.Context,
	ch domain.ChannelID,
	replyTo domain.MessageRef,
	situation string,
	history []*domain.ConversationMessage,
	profile ChannelProfile,
) error {
	log := observability.LoggerFromContext(ctx).With("backend", profile.Backend)

	msgs, ok := profile.Assembler.Assemble(situation, history)
	if !ok {
		return s.reply(ctx, ch, replyTo, MsgSituationRequired)
	}
	if profile.Model == nil {
		log.Error("no model client configured")
		return s.reply(ctx, ch, replyTo, MsgModelFailure)
	}

	s.typing(ctx, ch)

	start := s.now()
	text, err := s.generate(ctx, profile.Model, msgs)
	if err != nil {
		log.Error("model call failed", "error", err, "duration_ms", s.now().Sub(start).Milliseconds())
		return s.reply(ctx, ch, replyTo, MsgModelFailure)
	}
	if strings.TrimSpace(text) == "" {
		text = EmptyReplyPlaceholder
	}

	ref, err := s.replier.Reply(ctx, ch, replyTo, text)
	if err != nil {
		return err
	}

	if err := s.log.Append(ctx, ch, domain.NewAssistantMessage(text, ref)); err != nil {
		// the reply is already visible; the turn is just not remembered
		log.Error("failed to append assistant message", "error", err)
	}

	log.Info("turn completed",
		"history", len(history),
		"reply_chars", len([]rune(text)),
		"duration_ms", s.now().Sub(start).Milliseconds())
	return nil
}

func (s *Service) generate(ctx context.Context, model domain.LLMClient, msgs []domain.ChatMessage) (string, error) {
	if s.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ModelTimeout)
		defer cancel()
	}
	return model.GenerateReply(ctx, msgs)
}

func (s *Service) expand(ctx context.Context, ch domain.ChannelID, situation string) error {
	log := observability.LoggerFromContext(ctx)

	if s.expander == nil {
		log.Error("prompt expansion is not configured")
		_, err := s.replier.Send(ctx, ch, MsgExpansionFailed)
		return err
	}

	s.typing(ctx, ch)

	expandCtx := ctx
	if s.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		expandCtx, cancel = context.WithTimeout(ctx, s.opts.ModelTimeout)
		defer cancel()
	}

	markdown, err := s.expander.Expand(expandCtx, situation)
	if err != nil {
		log.Error("prompt expansion failed", "error", err)
		_, err := s.replier.Send(ctx, ch, MsgExpansionFailed)
		return err
	}

	ref, err := s.replier.Send(ctx, ch, markdown)
	if err != nil {
		return err
	}
	s.expansions.add(ch, ref, markdown)
	if err := s.replier.React(ctx, ch, ref, s.opts.AcceptEmoji); err != nil {
		log.Warn("failed to pre-react to expanded prompt", "error", err)
	}
	return nil
}

// ─────────────────────────────────────────
// Reactions
// ─────────────────────────────────────────

// HandleReaction processes a reaction added to a message.
func (s *Service) HandleReaction(ctx context.Context, ev domain.ReactionEvent) error {
	if ev.ReactorIsBot || !s.Allowed(ev.ChannelID) {
		return nil
	}

	switch {
	case ev.Emoji == s.opts.RecycleEmoji:
		unlock := s.locks.lock(ev.ChannelID)
		defer unlock()

		if ev.TargetAuthorIsBot {
			return s.regenerate(ctx, ev)
		}
		return s.rewind(ctx, ev)

	case ev.Emoji == s.opts.AcceptEmoji:
		unlock := s.locks.lock(ev.ChannelID)
		defer unlock()

		return s.acceptSituation(ctx, ev)
	}
	return nil
}

// regenerate drops the reacted-to reply and everything after it, then answers
// again from the history before it.
func (s *Service) regenerate(ctx context.Context, ev domain.ReactionEvent) error {
	log := observability.LoggerFromContext(ctx).With("target", ev.MessageID)

	st, err := s.machine.State(ctx, ev.ChannelID)
	if err != nil {
		log.Error("failed to read channel state", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	history, err := s.log.Window(ctx, ev.ChannelID, s.opts.HistoryLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	plan, ok := recycle.AssistantRecycle(history, ev.MessageID)
	if !ok {
		log.Info("regenerate target not in history")
		return nil
	}

	if _, err := s.log.TruncateFrom(ctx, ev.ChannelID, plan.DeleteAnchor); err != nil {
		log.Error("failed to truncate log", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	log.Info("regenerating reply", "replay", len(plan.Replay))
	return s.answer(ctx, ev.ChannelID, ev.MessageID, st.Situation, plan.Replay, s.policy.For(ev.ChannelID))
}

// rewind keeps the reacted-to user message, drops everything after it and
// waits for the user to restate the continuation.
func (s *Service) rewind(ctx context.Context, ev domain.ReactionEvent) error {
	log := observability.LoggerFromContext(ctx).With("target", ev.MessageID)

	history, err := s.log.Window(ctx, ev.ChannelID, s.opts.HistoryLimit)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	plan, ok := recycle.UserRecycle(history, ev.MessageID)
	if !ok {
		log.Info("rewind target not in history")
		return nil
	}

	if _, err := s.log.TruncateAfter(ctx, ev.ChannelID, plan.Anchor); err != nil {
		log.Error("failed to truncate log", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}
	if err := s.machine.Rewind(ctx, ev.ChannelID, plan.Anchor); err != nil {
		log.Error("failed to enter reinput mode", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	log.Info("rewound conversation", "kept", plan.KeepUntilIndex+1, "dropped", len(history)-plan.DeleteFromIndex)

	// the prompt is not part of the conversation
	return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgEnterReinput)
}

// acceptSituation installs a generated prompt as the channel's situation. The
// old conversation is dropped because the situation changed. Reactions on
// anything but a recorded expansion post are ignored.
func (s *Service) acceptSituation(ctx context.Context, ev domain.ReactionEvent) error {
	log := observability.LoggerFromContext(ctx).With("target", ev.MessageID)

	text, ok := s.expansions.lookup(ev.ChannelID, ev.MessageID)
	if !ok {
		return nil
	}
	situation := strings.TrimSpace(text)
	if situation == "" {
		return nil
	}

	if err := s.machine.SetSituation(ctx, ev.ChannelID, situation, statemachine.Next(domain.ModeUnset, statemachine.EventSituationAccepted)); err != nil {
		log.Error("failed to install situation", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}
	if err := s.log.Clear(ctx, ev.ChannelID); err != nil {
		log.Error("failed to clear log", "error", err)
		return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgStoreUnavailable)
	}

	s.expansions.forget(ev.ChannelID)

	log.Info("situation accepted", "chars", len([]rune(situation)))
	return s.reply(ctx, ev.ChannelID, ev.MessageID, MsgSituationRegistered)
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

// reply posts a message that is not recorded in the log.
func (s *Service) reply(ctx context.Context, ch domain.ChannelID, to domain.MessageRef, content string) error {
	_, err := s.replier.Reply(ctx, ch, to, content)
	return err
}

func (s *Service) typing(ctx context.Context, ch domain.ChannelID) {
	if err := s.replier.Typing(ctx, ch); err != nil {
		observability.LoggerFromContext(ctx).Debug("typing indicator failed", "error", err)
	}
}
