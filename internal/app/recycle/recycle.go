// Package recycle computes how a conversation log is rewritten when a user
// asks to regenerate a reply or to rewind to one of their own messages.
// Both planners are pure; callers perform the truncation.
package recycle

import "github.com/PabloGalante/situation-relay/internal/domain"

// AssistantPlan describes regenerating an assistant reply.
type AssistantPlan struct {
	// Replay is the history strictly before the target reply. It is the
	// model input for the regenerated answer.
	Replay []*domain.ConversationMessage

	// DeleteAnchor is the target reply. It and everything after it are dropped.
	DeleteAnchor domain.MessageRef
}

// UserPlan describes rewinding to a user message.
type UserPlan struct {
	// KeepUntilIndex is the index of the target user entry; entries
	// [0, KeepUntilIndex] survive.
	KeepUntilIndex int

	// DeleteFromIndex is always KeepUntilIndex+1.
	DeleteFromIndex int

	Anchor domain.MessageRef
}

// AssistantRecycle locates the assistant entry posted as ref. It reports
// false when ref is not an assistant reply inside history.
func AssistantRecycle(history []*domain.ConversationMessage, ref domain.MessageRef) (*AssistantPlan, bool) {
	i := indexOf(history, domain.RoleAssistant, ref)
	if i < 0 {
		return nil, false
	}

	replay := make([]*domain.ConversationMessage, i)
	copy(replay, history[:i])
	return &AssistantPlan{Replay: replay, DeleteAnchor: ref}, true
}

// UserRecycle locates the user entry posted as ref. It reports false when ref
// is not a user message inside history.
func UserRecycle(history []*domain.ConversationMessage, ref domain.MessageRef) (*UserPlan, bool) {
	i := indexOf(history, domain.RoleUser, ref)
	if i < 0 {
		return nil, false
	}
	return &UserPlan{KeepUntilIndex: i, DeleteFromIndex: i + 1, Anchor: ref}, true
}

func indexOf(history []*domain.ConversationMessage, role domain.Role, ref domain.MessageRef) int {
	if ref == "" {
		return -1
	}
	for i, m := range history {
		if m.Role == role && m.Ref() == ref {
			return i
		}
	}
	return -1
}
