// Package statemachine owns the mode of each channel and the rules that move
// it between modes.
package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/PabloGalante/situation-relay/internal/domain"
	"github.com/PabloGalante/situation-relay/internal/observability"
)

// Event is an inbound trigger that can move a channel's mode.
type Event uint8

const (
	// EventStartSituationSetup is the "start situation setup" command.
	EventStartSituationSetup Event = iota
	// EventStartPromptExpansion is the "expand situation" command.
	EventStartPromptExpansion
	// EventTextMessage is an ordinary text message.
	EventTextMessage
	// EventPrefixedMessage is a message starting with the command prefix.
	EventPrefixedMessage
	// EventUserRewind is a recycle reaction on a user message.
	EventUserRewind
	// EventSituationAccepted is the accept reaction on a generated situation.
	EventSituationAccepted
)

// AllEvents lists every event kind.
func AllEvents() []Event {
	return []Event{
		EventStartSituationSetup,
		EventStartPromptExpansion,
		EventTextMessage,
		EventPrefixedMessage,
		EventUserRewind,
		EventSituationAccepted,
	}
}

func (e Event) String() string {
	switch e {
	case EventStartSituationSetup:
		return "start_situation_setup"
	case EventStartPromptExpansion:
		return "start_prompt_expansion"
	case EventTextMessage:
		return "text_message"
	case EventPrefixedMessage:
		return "prefixed_message"
	case EventUserRewind:
		return "user_rewind"
	case EventSituationAccepted:
		return "situation_accepted"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Next is the transition table. It is total and permissive: the current mode
// never blocks a transition, it only matters for how the text message itself
// is handled by the caller.
func Next(current domain.Mode, ev Event) domain.Mode {
	switch ev {
	case EventStartSituationSetup:
		return domain.ModeAwaitingSituationInput
	case EventStartPromptExpansion:
		return domain.ModeAwaitingPromptExpansionInput
	case EventUserRewind:
		return domain.ModeAwaitingReinput
	case EventTextMessage, EventPrefixedMessage, EventSituationAccepted:
		return domain.ModeIdle
	default:
		return current.Effective()
	}
}

// Machine reads and writes channel modes through a StateStore.
type Machine struct {
	store domain.StateStore
}

func New(store domain.StateStore) *Machine {
	return &Machine{store: store}
}

// State returns the channel's state document. A channel never seen before
// yields an Idle default and no error; any other store failure is returned.
func (m *Machine) State(ctx context.Context, ch domain.ChannelID) (domain.ChannelState, error) {
	st, err := m.store.GetChannelState(ctx, ch)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ChannelState{ChannelID: ch, Mode: domain.ModeIdle}, nil
	}
	if err != nil {
		return domain.ChannelState{ChannelID: ch, Mode: domain.ModeIdle}, err
	}
	out := *st
	out.Mode = out.Mode.Effective()
	return out, nil
}

// GetMode never fails: missing state and store errors both read as Idle.
func (m *Machine) GetMode(ctx context.Context, ch domain.ChannelID) domain.Mode {
	st, err := m.State(ctx, ch)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("reading channel mode failed, assuming idle", "error", err)
		return domain.ModeIdle
	}
	return st.Mode
}

// Transition stores target as the channel's mode.
func (m *Machine) Transition(ctx context.Context, ch domain.ChannelID, target domain.Mode) error {
	target = target.Effective()
	if err := m.store.MergeChannelState(ctx, ch, domain.StatePatch{Mode: &target}); err != nil {
		return fmt.Errorf("transition %s to %s: %w", ch, target, err)
	}
	return nil
}

// Fire applies ev to the channel's current mode and stores the result.
func (m *Machine) Fire(ctx context.Context, ch domain.ChannelID, ev Event) (domain.Mode, error) {
	next := Next(m.GetMode(ctx, ch), ev)
	return next, m.Transition(ctx, ch, next)
}

// SetSituation installs situation and moves the channel to target in one write.
func (m *Machine) SetSituation(ctx context.Context, ch domain.ChannelID, situation string, target domain.Mode) error {
	target = target.Effective()
	if err := m.store.MergeChannelState(ctx, ch, domain.StatePatch{Mode: &target, Situation: &situation}); err != nil {
		return fmt.Errorf("set situation for %s: %w", ch, err)
	}
	return nil
}

// Rewind moves the channel to AwaitingReinput and records the kept anchor.
func (m *Machine) Rewind(ctx context.Context, ch domain.ChannelID, anchor domain.MessageRef) error {
	target := Next(domain.ModeIdle, EventUserRewind)
	if err := m.store.MergeChannelState(ctx, ch, domain.StatePatch{Mode: &target, RebaseAnchor: &anchor}); err != nil {
		return fmt.Errorf("rewind %s: %w", ch, err)
	}
	return nil
}
