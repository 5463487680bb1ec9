package domain

import "time"

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeP2P   ChatType = "p2p"
)

// Message represents an inbound chat message
type Message struct {
	ID          string
	ChatID      string
	ChatType    ChatType
	Content     string // Text with the bot's own mention stripped
	SenderID    string
	SenderName  string
	Mentions    []string // Mentioned user IDs, in message order, bot excluded
	MentionsBot bool
	CreateTime  time.Time
}

// IsGroup checks if the message comes from a group chat
func (m *Message) IsGroup() bool {
	return m.ChatType == ChatTypeGroup
}

// IsFromBot checks if the message is from the bot
func (m *Message) IsFromBot(botID string) bool {
	return m.SenderID == botID
}

// FirstMention returns the first mentioned user, or "" when nobody is mentioned
func (m *Message) FirstMention() string {
	if len(m.Mentions) == 0 {
		return ""
	}
	return m.Mentions[0]
}
