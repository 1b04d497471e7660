// Package chatlog is the ordered, append-only conversation log of a channel.
//
// Ordering is defined only by store-assigned CreatedAt. Reads always fetch the
// log in ascending order and slice the tail; a descending fetch limited to N
// is not equivalent while the newest server timestamps may still be settling.
package chatlog

import (
	"context"
	"fmt"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

type Log struct {
	store domain.MessageStore
}

func New(store domain.MessageStore) *Log {
	return &Log{store: store}
}

// Append stores msg; the store assigns its ID and CreatedAt.
func (l *Log) Append(ctx context.Context, ch domain.ChannelID, msg *domain.ConversationMessage) error {
	if err := l.store.AddMessage(ctx, ch, msg); err != nil {
		return fmt.Errorf("append to %s: %w", ch, err)
	}
	return nil
}

// Window returns the most recent maxCount entries in ascending time order.
// maxCount <= 0 returns the whole log.
func (l *Log) Window(ctx context.Context, ch domain.ChannelID, maxCount int) ([]*domain.ConversationMessage, error) {
	all, err := l.store.ListMessages(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("window of %s: %w", ch, err)
	}
	return Tail(all, maxCount), nil
}

// Tail is the slicing half of Window, exposed for callers that already hold
// an ascending listing.
func Tail(ascending []*domain.ConversationMessage, maxCount int) []*domain.ConversationMessage {
	if maxCount <= 0 || len(ascending) <= maxCount {
		return ascending
	}
	return ascending[len(ascending)-maxCount:]
}

// TruncateAfter deletes every entry strictly after the one matching anchor,
// in either ref slot. A missing anchor is a successful no-op and reports
// found=false.
func (l *Log) TruncateAfter(ctx context.Context, ch domain.ChannelID, anchor domain.MessageRef) (bool, error) {
	return l.truncate(ctx, ch, anchor, false)
}

// TruncateFrom is TruncateAfter but also deletes the anchor entry itself.
func (l *Log) TruncateFrom(ctx context.Context, ch domain.ChannelID, anchor domain.MessageRef) (bool, error) {
	return l.truncate(ctx, ch, anchor, true)
}

func (l *Log) truncate(ctx context.Context, ch domain.ChannelID, anchor domain.MessageRef, inclusive bool) (bool, error) {
	all, err := l.store.ListMessages(ctx, ch)
	if err != nil {
		return false, fmt.Errorf("truncate %s: %w", ch, err)
	}

	idx := -1
	for i, m := range all {
		if m.Matches(anchor) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	from := idx + 1
	if inclusive {
		from = idx
	}
	if err := l.deleteAll(ctx, ch, all[from:]); err != nil {
		return true, fmt.Errorf("truncate %s: %w", ch, err)
	}
	return true, nil
}

// Clear deletes the whole log in one batch.
func (l *Log) Clear(ctx context.Context, ch domain.ChannelID) error {
	all, err := l.store.ListMessages(ctx, ch)
	if err != nil {
		return fmt.Errorf("clear %s: %w", ch, err)
	}
	if err := l.deleteAll(ctx, ch, all); err != nil {
		return fmt.Errorf("clear %s: %w", ch, err)
	}
	return nil
}

func (l *Log) deleteAll(ctx context.Context, ch domain.ChannelID, msgs []*domain.ConversationMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]domain.MessageID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return l.store.DeleteMessages(ctx, ch, ids)
}
