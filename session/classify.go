package session

import "strings"

// Classifier reports whether a freshly created session looks like a
// sub-agent session that lost its parent linkage on the wire. It exists as
// a standalone func type so the matching heuristic can be swapped without
// touching store logic.
type Classifier func(s Session) bool

// DefaultClassifier matches the synthetic titles hosts assign to spawned
// sub-agent sessions. Best-effort string matching; concurrent root-session
// creation with a matching title would be misclassified.
func DefaultClassifier(s Session) bool {
	title := strings.ToLower(strings.TrimSpace(s.Title))
	switch {
	case strings.HasPrefix(title, "task:"),
		strings.HasPrefix(title, "subagent"),
		strings.HasPrefix(title, "agent session"),
		title == "generate a title",
		title == "new agent session":
		return true
	}
	return false
}
