package session

import (
	"strings"
)

// EmptyHistory is the sentinel formatted value for a session with no prior
// conversation. The query rewriter short-circuits on it.
const EmptyHistory = "(no prior conversation)"

// TruncationMarker prefixes formatted history when older lines were dropped
// to fit the character budget.
const TruncationMarker = "(earlier conversation truncated)"

// roleLabels maps stored roles to prompt-facing labels.
var roleLabels = map[string]string{
	RoleUser:      "User",
	RoleAssistant: "Assistant",
}

// FormatHistory renders messages as "<role-label>: <text>" lines for prompt
// assembly. When the character budget is exceeded, whole lines are dropped
// from the oldest end and the truncation marker is prefixed. Empty history
// renders as the EmptyHistory sentinel.
func FormatHistory(msgs []Message, charBudget int) string {
	if len(msgs) == 0 {
		return EmptyHistory
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label, ok := roleLabels[m.Role]
		if !ok {
			label = m.Role
		}
		lines = append(lines, label+": "+m.Text)
	}

	full := strings.Join(lines, "\n")
	if charBudget <= 0 || len([]rune(full)) <= charBudget {
		return full
	}

	// Drop oldest lines until the budget fits, keeping at least one line.
	start := 0
	for start < len(lines)-1 {
		start++
		candidate := TruncationMarker + "\n" + strings.Join(lines[start:], "\n")
		if len([]rune(candidate)) <= charBudget {
			return candidate
		}
	}
	return TruncationMarker + "\n" + lines[len(lines)-1]
}

// FormatForPrompt reads a session's recent history and renders it under the
// store's configured character budget.
func (s *Store) FormatForPrompt(msgs []Message) string {
	return FormatHistory(msgs, s.cfg.HistoryCharBudget)
}
