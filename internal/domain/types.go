package domain

import (
	"errors"
	"time"
)

// ChannelID identifies a chat-platform channel. A channel owns exactly one
// ChannelState and one conversation log.
type ChannelID string

// MessageRef is the platform-assigned id of a posted message.
type MessageRef string

// MessageID is the store-assigned id of a conversation log entry.
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

// ErrNotFound is returned by stores when a keyed document does not exist.
var ErrNotFound = errors.New("not found")
