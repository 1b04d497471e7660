package domain

// Mode is the closed set of channel modes. The zero value is ModeUnset, which
// is what a channel without stored state (or with an unknown stored value)
// reports; Effective maps it to ModeIdle.
type Mode uint8

const (
	ModeUnset Mode = iota
	ModeIdle
	ModeAwaitingSituationInput
	ModeAwaitingReinput
	ModeAwaitingPromptExpansionInput
)

// Stored names. They match the documents written by earlier deployments.
const (
	modeNameIdle            = "idle"
	modeNameSituationInput  = "situation_input"
	modeNameAwaitingReinput = "awaiting_reinput"
	modeNamePromptExpansion = "prompt_situation_input"
)

// ParseMode maps a stored mode name to a Mode. Empty or unknown names yield ModeUnset.
func ParseMode(s string) Mode {
	switch s {
	case modeNameIdle:
		return ModeIdle
	case modeNameSituationInput:
		return ModeAwaitingSituationInput
	case modeNameAwaitingReinput:
		return ModeAwaitingReinput
	case modeNamePromptExpansion:
		return ModeAwaitingPromptExpansionInput
	default:
		return ModeUnset
	}
}

// Effective is the single defaulting rule: an unset mode behaves as idle.
func (m Mode) Effective() Mode {
	if m == ModeUnset {
		return ModeIdle
	}
	return m
}

// String returns the stored name of the mode. ModeUnset stores as idle.
func (m Mode) String() string {
	switch m.Effective() {
	case ModeAwaitingSituationInput:
		return modeNameSituationInput
	case ModeAwaitingReinput:
		return modeNameAwaitingReinput
	case ModeAwaitingPromptExpansionInput:
		return modeNamePromptExpansion
	default:
		return modeNameIdle
	}
}

// AllModes lists every mode a channel can be observed in.
func AllModes() []Mode {
	return []Mode{ModeIdle, ModeAwaitingSituationInput, ModeAwaitingReinput, ModeAwaitingPromptExpansionInput}
}
