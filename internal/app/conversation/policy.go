package conversation

import (
	"fmt"
	"sort"

	"github.com/PabloGalante/situation-relay/internal/app/prompt"
	"github.com/PabloGalante/situation-relay/internal/config"
	"github.com/PabloGalante/situation-relay/internal/domain"
)

// ChannelProfile is what a channel's turns run with.
type ChannelProfile struct {
	Backend   string
	Model     domain.LLMClient
	Assembler prompt.Assembler
}

// Policy selects the profile of a channel. Implementations are fixed at
// startup and safe for concurrent use.
type Policy interface {
	For(ch domain.ChannelID) ChannelProfile
}

// StaticPolicy gives every channel the same profile.
type StaticPolicy struct {
	Profile ChannelProfile
}

func (p StaticPolicy) For(domain.ChannelID) ChannelProfile {
	return p.Profile
}

// ProfilePolicy maps channels to backends and prompt settings from a
// profiles file.
type ProfilePolicy struct {
	profiles       config.Profiles
	defaultBackend string
	defaultPrompt  string
	models         map[string]domain.LLMClient
}

// NewProfilePolicy fails when a profile names a backend missing from models.
func NewProfilePolicy(
	profiles config.Profiles,
	defaultBackend string,
	defaultPrompt string,
	models map[string]domain.LLMClient,
) (*ProfilePolicy, error) {
	p := &ProfilePolicy{
		profiles:       profiles,
		defaultBackend: defaultBackend,
		defaultPrompt:  defaultPrompt,
		models:         models,
	}

	ids := make([]string, 0, len(profiles.Channels)+1)
	ids = append(ids, "")
	for id := range profiles.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		backend := profiles.For(id, defaultBackend).Backend
		if models[backend] == nil {
			return nil, fmt.Errorf("profile %q: no model client for backend %q", id, backend)
		}
	}
	return p, nil
}

func (p *ProfilePolicy) For(ch domain.ChannelID) ChannelProfile {
	prof := p.profiles.For(string(ch), p.defaultBackend)
	return ChannelProfile{
		Backend: prof.Backend,
		Model:   p.models[prof.Backend],
		Assembler: prompt.Assembler{
			Default:          p.defaultPrompt,
			Suffix:           prof.PromptSuffix,
			RequireSituation: prof.RequireSituation,
		},
	}
}
