package repo

import (
	"context"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
)

// ChatInfo represents chat information
type ChatInfo struct {
	ChatID    string
	Name      string
	OwnerID   string
	UserCount int
}

// MessageRepo is the chat transport interface.
// Send operations return the platform message ID so replies can be recalled later.
type MessageRepo interface {
	// GetChatMembers gets the current member list of a chat
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)

	// GetChatInfo gets chat information
	GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error)

	// SendText sends a text message
	SendText(ctx context.Context, chatID, text string) (string, error)

	// SendTextWithMentions sends a text message with @ mentions prepended
	SendTextWithMentions(ctx context.Context, chatID, text string, mentions []domain.Member) (string, error)

	// SendImage uploads a PNG and sends it as an image message
	SendImage(ctx context.Context, chatID string, png []byte) (string, error)

	// DeleteMessage recalls a message the bot sent
	DeleteMessage(ctx context.Context, msgID string) error
}
