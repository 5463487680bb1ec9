package domain

import "fmt"

// SentinelID is the reserved participant id meaning "no real actor".
// It is never stored and never drawn.
const SentinelID = "0"

// MentionAllID is the id Feishu uses for an @all mention
const MentionAllID = "all"

// Member represents a chat member (value object)
type Member struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

// FormatDisplay formats for display
func (m *Member) FormatDisplay() string {
	return fmt.Sprintf("%s (user_id: %s)", m.Name, m.UserID)
}

// PlaceholderName synthesizes a display name for a participant whose name is unknown
func PlaceholderName(userID string) string {
	return fmt.Sprintf("用户(%s)", userID)
}

// ResolveMemberName looks up a display name in a member snapshot,
// returning fallback when the user is not present or has no name.
func ResolveMemberName(members []Member, userID, fallback string) string {
	for _, m := range members {
		if m.UserID == userID && m.Name != "" {
			return m.Name
		}
	}
	return fallback
}

// MemberNames builds a userID -> name map from a member snapshot
func MemberNames(members []Member) map[string]string {
	names := make(map[string]string, len(members))
	for _, m := range members {
		name := m.Name
		if name == "" {
			name = m.UserID
		}
		names[m.UserID] = name
	}
	return names
}
