package domain

import "context"

// LLMClient defines how the core application interacts with a model backend.
// An empty reply is valid and is not an error.
type LLMClient interface {
	GenerateReply(ctx context.Context, messages []ChatMessage) (string, error)
}

// StructuredRequest asks a model for JSON matching Schema, decoded into the
// caller's result value.
type StructuredRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
}

// StructuredLLMClient produces schema-constrained output.
type StructuredLLMClient interface {
	GenerateStructured(ctx context.Context, req StructuredRequest, result any) error
}

// StateStore persists per-channel state documents.
type StateStore interface {
	// GetChannelState returns ErrNotFound when the channel has no document.
	GetChannelState(ctx context.Context, ch ChannelID) (*ChannelState, error)
	// MergeChannelState writes the patch with merge semantics and stamps UpdatedAt.
	MergeChannelState(ctx context.Context, ch ChannelID, patch StatePatch) error
}

// MessageStore persists the append-only per-channel log.
type MessageStore interface {
	// AddMessage stores msg, assigning ID and a strictly increasing CreatedAt.
	AddMessage(ctx context.Context, ch ChannelID, msg *ConversationMessage) error
	// ListMessages returns the whole log in ascending CreatedAt order.
	ListMessages(ctx context.Context, ch ChannelID) ([]*ConversationMessage, error)
	// DeleteMessages removes ids all-or-nothing.
	DeleteMessages(ctx context.Context, ch ChannelID, ids []MessageID) error
}

// ConversationStore is the document-store collaborator.
type ConversationStore interface {
	StateStore
	MessageStore
}

// Replier posts to the platform on behalf of the bot.
type Replier interface {
	Reply(ctx context.Context, ch ChannelID, to MessageRef, content string) (MessageRef, error)
	Send(ctx context.Context, ch ChannelID, content string) (MessageRef, error)
	React(ctx context.Context, ch ChannelID, msg MessageRef, emoji string) error
	Typing(ctx context.Context, ch ChannelID) error
}
