package memory

import "github.com/PabloGalante/situation-relay/internal/domain"

// Store bundles both in-memory stores into a domain.ConversationStore.
type Store struct {
	*StateStore
	*MessageStore
}

func NewStore() *Store {
	return &Store{
		StateStore:   NewStateStore(),
		MessageStore: NewMessageStore(),
	}
}

var _ domain.ConversationStore = (*Store)(nil)
