package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// MessageStore is an in-memory domain.MessageStore. Entries are kept in
// insertion order, which is also CreatedAt order.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[domain.ChannelID][]*domain.ConversationMessage
	now      func() time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[domain.ChannelID][]*domain.ConversationMessage),
		now:      time.Now,
	}
}

func (s *MessageStore) AddMessage(_ context.Context, ch domain.ChannelID, msg *domain.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	if log := s.messages[ch]; len(log) > 0 {
		if last := log[len(log)-1].CreatedAt; !createdAt.After(last) {
			createdAt = last.Add(time.Nanosecond)
		}
	}

	stored := *msg
	stored.ID = domain.MessageID(uuid.NewString())
	stored.CreatedAt = createdAt

	s.messages[ch] = append(s.messages[ch], &stored)

	msg.ID = stored.ID
	msg.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MessageStore) ListMessages(_ context.Context, ch domain.ChannelID) ([]*domain.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[ch]
	out := make([]*domain.ConversationMessage, 0, len(log))
	for _, m := range log {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MessageStore) DeleteMessages(_ context.Context, ch domain.ChannelID, ids []domain.MessageID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[domain.MessageID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	log := s.messages[ch]
	kept := make([]*domain.ConversationMessage, 0, len(log))
	for _, m := range log {
		if drop[m.ID] {
			delete(drop, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	if len(drop) > 0 {
		// all-or-nothing: nothing has been written yet
		return fmt.Errorf("memory DeleteMessages: %d ids not in channel %s", len(drop), ch)
	}

	s.messages[ch] = kept
	return nil
}
