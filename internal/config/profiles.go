package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the per-channel deployment policy: which model backend answers,
// whether a situation is mandatory, and text appended to the system prompt.
type Profile struct {
	Backend          string `yaml:"backend"`
	RequireSituation bool   `yaml:"require_situation"`
	PromptSuffix     string `yaml:"prompt_suffix"`
}

// Profiles is the content of the profiles file:
//
//	default:
//	  backend: openai
//	channels:
//	  "1005750360301912210":
//	    backend: vertex
//	    require_situation: true
//	    prompt_suffix: "..."
type Profiles struct {
	Default  Profile            `yaml:"default"`
	Channels map[string]Profile `yaml:"channels"`
}

// LoadProfiles parses a YAML profiles file.
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profiles{}, fmt.Errorf("reading profiles %s: %w", path, err)
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (Profiles, error) {
	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profiles{}, fmt.Errorf("parsing profiles: %w", err)
	}
	p.Default.Backend = strings.ToLower(p.Default.Backend)
	for id, prof := range p.Channels {
		prof.Backend = strings.ToLower(prof.Backend)
		p.Channels[id] = prof
	}
	return p, nil
}

// For returns the profile of a channel, falling back to the default profile
// and then to defaultBackend for the backend name.
func (p Profiles) For(channelID, defaultBackend string) Profile {
	prof, ok := p.Channels[channelID]
	if !ok {
		prof = p.Default
	}
	if prof.Backend == "" {
		prof.Backend = p.Default.Backend
	}
	if prof.Backend == "" {
		prof.Backend = defaultBackend
	}
	return prof
}
