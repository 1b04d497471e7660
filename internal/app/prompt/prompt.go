// Package prompt turns a channel's situation and history window into the
// ordered message list sent to a language model.
package prompt

import (
	"strings"

	"github.com/PabloGalante/situation-relay/internal/domain"
)

// DefaultSystemPrompt is used when a channel has no situation.
const DefaultSystemPrompt = "You are a helpful chatbot."

// Build returns a system entry followed by history, in order and with roles
// unchanged. A situation that is blank after trimming falls back to
// defaultPrompt; otherwise it is used verbatim.
func Build(situation string, history []*domain.ConversationMessage, defaultPrompt string) []domain.ChatMessage {
	system := defaultPrompt
	if strings.TrimSpace(situation) != "" {
		system = situation
	}
	return assemble(system, history)
}

// BuildStrict is Build without the fallback: it reports false when no
// situation is configured so the caller can ask for one before calling a model.
func BuildStrict(situation string, history []*domain.ConversationMessage) ([]domain.ChatMessage, bool) {
	if strings.TrimSpace(situation) == "" {
		return nil, false
	}
	return assemble(situation, history), true
}

func assemble(system string, history []*domain.ConversationMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history)+1)
	out = append(out, domain.ChatMessage{Role: domain.ChatRoleSystem, Content: system})
	for _, m := range history {
		out = append(out, domain.ChatMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	return out
}

func chatRole(r domain.Role) domain.ChatRole {
	if r == domain.RoleAssistant {
		return domain.ChatRoleAssistant
	}
	return domain.ChatRoleUser
}

// Assembler applies a channel profile's prompt policy on top of Build.
type Assembler struct {
	Default string

	// Suffix, when set, is appended to the system entry on its own paragraph.
	Suffix string

	// RequireSituation selects BuildStrict.
	RequireSituation bool
}

// Assemble reports false only when RequireSituation is set and the channel
// has no situation.
func (a Assembler) Assemble(situation string, history []*domain.ConversationMessage) ([]domain.ChatMessage, bool) {
	var msgs []domain.ChatMessage
	if a.RequireSituation {
		var ok bool
		if msgs, ok = BuildStrict(situation, history); !ok {
			return nil, false
		}
	} else {
		def := a.Default
		if def == "" {
			def = DefaultSystemPrompt
		}
		msgs = Build(situation, history, def)
	}

	if suffix := strings.TrimSpace(a.Suffix); suffix != "" {
		msgs[0].Content = msgs[0].Content + "\n\n" + suffix
	}
	return msgs, true
}
