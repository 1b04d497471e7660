package domain

// InboundMessage is a text message delivered by the platform.
type InboundMessage struct {
	ChannelID   ChannelID
	AuthorID    string
	MessageID   MessageRef
	Content     string
	AuthorIsBot bool
}

// ReactionEvent is a reaction added to a message in a channel.
type ReactionEvent struct {
	ChannelID ChannelID
	MessageID MessageRef
	Emoji     string

	// TargetAuthorIsBot tells whether the reacted-to message was posted by this bot.
	TargetAuthorIsBot bool
	ReactorIsBot      bool
}

// Command is a slash command from the command surface.
type Command string

const (
	CommandTime    Command = "time"
	CommandInit    Command = "init"
	CommandClear   Command = "clear"
	CommandShow    Command = "show"
	CommandPrompt  Command = "prompt"
	CommandPending Command = "pending"
)

// CommandResult is what the platform should answer to a command.
type CommandResult struct {
	Content string

	// EmbedTitle/EmbedBody, when set, render as a rich embed.
	EmbedTitle string
	EmbedBody  string
	Ephemeral  bool
}
