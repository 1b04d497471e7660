package discord

// MaxMessageLength is Discord's per-message character limit.
const MaxMessageLength = 2000

// splitMessage splits text into chunks of at most maxLen characters,
// preferring to cut after a newline in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		// Try to split at a newline.
		cutAt := maxLen
		if idx := lastNewline(runes[:maxLen]); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, string(runes[:cutAt]))
		runes = runes[cutAt:]
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// truncate cuts text to maxLen characters.
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}
