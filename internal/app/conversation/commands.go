package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/situation-relay/internal/app/statemachine"
	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// HandleCommand runs a slash command for ch and returns what to answer.
func (s *Service) HandleCommand(ctx context.Context, ch domain.ChannelID, cmd domain.Command) domain.CommandResult {
	if !s.Allowed(ch) {
		return domain.CommandResult{Content: MsgChannelNotAllowed, Ephemeral: true}
	}

	log := observability.LoggerFromContext(ctx).With("command", string(cmd))
	log.Info("handling command")

	if cmd == domain.CommandTime {
		return domain.CommandResult{
			Content: "現在時刻: " + s.now().In(s.opts.Location).Format("2006/1/2 15:04:05"),
		}
	}

	unlock := s.locks.lock(ch)
	defer unlock()

	switch cmd {
	case domain.CommandInit:
		if err := s.log.Clear(ctx, ch); err != nil {
			log.Error("failed to clear log", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable}
		}
		if _, err := s.machine.Fire(ctx, ch, statemachine.EventStartSituationSetup); err != nil {
			log.Error("failed to enter situation input", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable}
		}
		return domain.CommandResult{Content: MsgEnterSituation}

	case domain.CommandClear:
		if err := s.log.Clear(ctx, ch); err != nil {
			log.Error("failed to clear log", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable}
		}
		return domain.CommandResult{Content: MsgCleared}

	case domain.CommandShow:
		st, err := s.machine.State(ctx, ch)
		if err != nil {
			log.Error("failed to read channel state", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable}
		}
		if strings.TrimSpace(st.Situation) == "" {
			return domain.CommandResult{Content: MsgNoSituation}
		}
		return domain.CommandResult{EmbedTitle: ShowSituationTitle, EmbedBody: st.Situation}

	case domain.CommandPrompt:
		if _, err := s.machine.Fire(ctx, ch, statemachine.EventStartPromptExpansion); err != nil {
			log.Error("failed to enter expansion input", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable, Ephemeral: true}
		}
		return domain.CommandResult{Content: MsgEnterExpansion, Ephemeral: true}

	case domain.CommandPending:
		msgs, ok, err := s.pendingPrompt(ctx, ch)
		if err != nil {
			log.Error("failed to build pending prompt", "error", err)
			return domain.CommandResult{Content: MsgStoreUnavailable, Ephemeral: true}
		}
		if !ok {
			return domain.CommandResult{Content: MsgSituationRequired, Ephemeral: true}
		}
		return domain.CommandResult{Content: FormatPrompt(msgs), Ephemeral: true}

	default:
		log.Warn("unknown command")
		return domain.CommandResult{Content: MsgGenericError, Ephemeral: true}
	}
}

// Snapshot is a read-only view of one channel.
type Snapshot struct {
	State    domain.ChannelState
	Messages []*domain.ConversationMessage
	Backend  string
}

// Inspect returns the channel's state and history window.
func (s *Service) Inspect(ctx context.Context, ch domain.ChannelID) (*Snapshot, error) {
	st, err := s.machine.State(ctx, ch)
	if err != nil {
		return nil, err
	}
	msgs, err := s.log.Window(ctx, ch, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	return &Snapshot{State: st, Messages: msgs, Backend: s.policy.For(ch).Backend}, nil
}

// PendingPrompt returns the model input the channel's current history would
// produce. ok is false when the channel's profile requires a situation and
// none is set.
func (s *Service) PendingPrompt(ctx context.Context, ch domain.ChannelID) ([]domain.ChatMessage, bool, error) {
	unlock := s.locks.lock(ch)
	defer unlock()
	return s.pendingPrompt(ctx, ch)
}

func (s *Service) pendingPrompt(ctx context.Context, ch domain.ChannelID) ([]domain.ChatMessage, bool, error) {
	st, err := s.machine.State(ctx, ch)
	if err != nil {
		return nil, false, err
	}
	history, err := s.log.Window(ctx, ch, s.opts.HistoryLimit)
	if err != nil {
		return nil, false, err
	}
	msgs, ok := s.policy.For(ch).Assembler.Assemble(st.Situation, history)
	return msgs, ok, nil
}

// FormatPrompt renders model input for humans, one role-tagged block per entry.
func FormatPrompt(msgs []domain.ChatMessage) string {
	if len(msgs) == 0 {
		return MsgNoPendingPrompt
	}
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", m.Role, m.Content)
	}
	return b.String()
}
