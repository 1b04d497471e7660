package domain

// ChannelState is the per-channel configuration and mode document.
type ChannelState struct {
	ChannelID ChannelID
	Mode      Mode
	Situation string

	// RebaseAnchor is the last user message kept after a rewind. Audit only.
	RebaseAnchor MessageRef
	UpdatedAt    Timestamp
}

// StatePatch is a set-with-merge update. Nil fields are left untouched.
type StatePatch struct {
	Mode         *Mode
	Situation    *string
	RebaseAnchor *MessageRef
}

// ConversationMessage is one turn of a channel's log. Entries are immutable
// once written; the store assigns ID and CreatedAt.
type ConversationMessage struct {
	ID      MessageID
	Role    Role
	Content string

	// Exactly one of the two refs is set, depending on Role.
	UserMessageRef      MessageRef
	AssistantMessageRef MessageRef

	CreatedAt Timestamp
}

// NewUserMessage builds a user turn tied to the user's platform post.
func NewUserMessage(content string, ref MessageRef) *ConversationMessage {
	return &ConversationMessage{Role: RoleUser, Content: content, UserMessageRef: ref}
}

// NewAssistantMessage builds an assistant turn tied to the bot's reply.
func NewAssistantMessage(content string, ref MessageRef) *ConversationMessage {
	return &ConversationMessage{Role: RoleAssistant, Content: content, AssistantMessageRef: ref}
}

// Ref returns whichever external reference slot is populated.
func (m *ConversationMessage) Ref() MessageRef {
	if m.Role == RoleAssistant {
		return m.AssistantMessageRef
	}
	return m.UserMessageRef
}

// Matches reports whether ref identifies this entry, checking both slots.
func (m *ConversationMessage) Matches(ref MessageRef) bool {
	if ref == "" {
		return false
	}
	return m.UserMessageRef == ref || m.AssistantMessageRef == ref
}

// ChatRole tags an entry of the model input.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one role-tagged entry sent to the language model.
type ChatMessage struct {
	Role    ChatRole
	Content string
}
