package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// StateStore is an in-memory domain.StateStore.
// It is NOT persistent and is only suitable for development / local mode.
type StateStore struct {
	mu     sync.RWMutex
	states map[domain.ChannelID]domain.ChannelState
	now    func() time.Time
}

func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[domain.ChannelID]domain.ChannelState),
		now:    time.Now,
	}
}

func (s *StateStore) GetChannelState(_ context.Context, ch domain.ChannelID) (*domain.ChannelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[ch]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (s *StateStore) MergeChannelState(_ context.Context, ch domain.ChannelID, patch domain.StatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.states[ch]
	st.ChannelID = ch
	if patch.Mode != nil {
		st.Mode = *patch.Mode
	}
	if patch.Situation != nil {
		st.Situation = *patch.Situation
	}
	if patch.RebaseAnchor != nil {
		st.RebaseAnchor = *patch.RebaseAnchor
	}

	now := s.now()
	if now.Before(st.UpdatedAt) {
		now = st.UpdatedAt
	}
	st.UpdatedAt = now

	s.states[ch] = st
	return nil
}
