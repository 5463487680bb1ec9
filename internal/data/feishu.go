package data

import (
	"context"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/infra/feishu"
)

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// GetChatMembers gets chat member list
func (r *feishuRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.MemberID == "" {
			continue
		}
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}

// GetChatInfo gets chat info
func (r *feishuRepo) GetChatInfo(ctx context.Context, chatID string) (*repo.ChatInfo, error) {
	info, err := r.client.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return &repo.ChatInfo{
		ChatID:    info.ChatID,
		Name:      info.Name,
		OwnerID:   info.OwnerID,
		UserCount: info.MemberCount,
	}, nil
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) (string, error) {
	return r.client.SendText(ctx, chatID, text)
}

// SendTextWithMentions sends a text message with @ mentions
func (r *feishuRepo) SendTextWithMentions(ctx context.Context, chatID, text string, mentions []domain.Member) (string, error) {
	feishuMentions := make([]feishu.Mention, 0, len(mentions))
	for _, m := range mentions {
		feishuMentions = append(feishuMentions, feishu.Mention{
			UserID:   m.UserID,
			UserName: m.Name,
		})
	}
	return r.client.SendTextWithMentions(ctx, chatID, text, feishuMentions)
}

// SendImage uploads and sends a PNG
func (r *feishuRepo) SendImage(ctx context.Context, chatID string, png []byte) (string, error) {
	return r.client.SendImage(ctx, chatID, png)
}

// DeleteMessage recalls a message
func (r *feishuRepo) DeleteMessage(ctx context.Context, msgID string) error {
	return r.client.DeleteMessage(ctx, msgID)
}
