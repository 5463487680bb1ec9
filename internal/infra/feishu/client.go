package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"golang.org/x/time/rate"
)

// MentionAllKey is the placeholder Feishu uses for @all
const MentionAllKey = "@_all"

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	MsgType     string            // text, post
	ChatType    string            // p2p (private), group
	Content     string            // Text content, bot mention removed, other mentions as @Name
	Sender      *Sender           // Message sender info
	Mentions    []string          // Mentioned user IDs in order (including bot, "all" for @all)
	MentionMap  map[string]string // Map from mention key (@_user_1) to its replacement text
	MentionsBot bool              // True if the bot was mentioned
	CreateTime  int64             // Message creation time (milliseconds Unix timestamp from Feishu)
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // User ID or bot ID
	SenderType string // user, app
	TenantKey  string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID   string `json:"member_id"`
	MemberType string `json:"member_type"`
	Name       string `json:"name"`
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	ChatType    string `json:"chat_type"` // p2p, group
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"user_count"`
}

// Mention represents a user to be mentioned in a message
type Mention struct {
	UserID   string // open_id (ou_xxx)
	UserName string // Display name for the mention
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	limiter   *rate.Limiter
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	botOpenID string // Bot's own open_id, fetched at startup
}

// NewClient creates a new Feishu client. qps limits outgoing OpenAPI calls.
func NewClient(appID, appSecret string, qps float64) *Client {
	if qps <= 0 {
		qps = 10
	}
	burst := int(math.Ceil(qps))
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		limiter:   rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// BotOpenID returns the bot's own open_id ("" until Start has fetched it)
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// Start connects to Feishu via WebSocket and starts listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Fetch bot's own open_id at startup
	if err := c.fetchBotOpenID(); err != nil {
		fmt.Printf("[Feishu] Warning: failed to fetch bot open_id: %v\n", err)
	}

	// Register event handler
	// Note: Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	// Start WebSocket (blocking)
	return c.wsCli.Start(c.ctx)
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID() error {
	// 1. First get tenant_access_token
	tokenReq, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		bytes.NewReader(tokenReq),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	// 2. Get bot info
	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}

	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	fmt.Printf("[Feishu] Bot open_id: %s (name=%s)\n", c.botOpenID, botResult.Bot.AppName)
	return nil
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// handleMessage converts an incoming Feishu event and hands it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	msg := c.convertEvent(event)
	if msg == nil {
		return
	}

	fmt.Printf("[Feishu] Received %s from %s chat %s: %s\n", msg.MsgType, msg.ChatType, msg.ChatID, truncate(msg.Content, 50))

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// convertEvent builds a Message; nil means the event is ignored
func (c *Client) convertEvent(event *larkim.P2MessageReceiveV1) *Message {
	rawMsg := event.Event.Message

	// Filter out messages sent by apps (including this bot) to prevent loops
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return nil
	}
	if rawMsg.ChatId == nil || rawMsg.MessageId == nil || rawMsg.MessageType == nil || rawMsg.Content == nil {
		return nil
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	if event.Event.Sender != nil {
		msg.Sender = &Sender{}
		if event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
			msg.Sender.SenderID = *event.Event.Sender.SenderId.OpenId
		}
		if event.Event.Sender.SenderType != nil {
			msg.Sender.SenderType = *event.Event.Sender.SenderType
		}
		if event.Event.Sender.TenantKey != nil {
			msg.Sender.TenantKey = *event.Event.Sender.TenantKey
		}
	}

	// Parse mentions. The bot's own placeholder is removed from the text so that
	// "@Bot 今日老婆" reads as "今日老婆".
	msg.MentionMap = make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		key := ""
		if mention.Key != nil {
			key = *mention.Key
		}
		openID := ""
		if mention.Id != nil && mention.Id.OpenId != nil {
			openID = *mention.Id.OpenId
		}

		switch {
		case key == MentionAllKey:
			msg.Mentions = append(msg.Mentions, "all")
			msg.MentionMap[key] = "@all"
		case openID != "" && openID == c.botOpenID:
			msg.MentionsBot = true
			msg.Mentions = append(msg.Mentions, openID)
			msg.MentionMap[key] = ""
		case openID != "":
			msg.Mentions = append(msg.Mentions, openID)
			name := openID
			if mention.Name != nil {
				name = *mention.Name
			}
			msg.MentionMap[key] = "@" + name
		}
	}

	if _, ok := msg.MentionMap[MentionAllKey]; !ok && strings.Contains(*rawMsg.Content, MentionAllKey) {
		msg.Mentions = append(msg.Mentions, "all")
		msg.MentionMap[MentionAllKey] = "@all"
	}

	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(*rawMsg.Content, msg.MentionMap)
	case "post":
		msg.Content = parsePostContent(*rawMsg.Content, msg.MentionMap)
	default:
		// Images, stickers and files carry no command text but still count as activity
		msg.Content = ""
	}
	return msg
}

// parseTextContent extracts text from a text message
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return strings.TrimSpace(replaceMentions(parsed.Text, mentionMap))
}

// parsePostContent extracts text from a rich text message
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if text, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, text)
				} else {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return strings.TrimSpace(replaceMentions(strings.Join(textParts, "\n"), mentionMap))
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with their text.
// Longer keys go first so @_user_10 is not clobbered by @_user_1.
func replaceMentions(text string, mentionMap map[string]string) string {
	if len(mentionMap) == 0 {
		return text
	}
	keys := make([]string, 0, len(mentionMap))
	for key := range mentionMap {
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && len(keys[j]) > len(keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	result := text
	for _, key := range keys {
		result = strings.ReplaceAll(result, key, mentionMap[key])
	}
	return result
}

// SendText sends a text message to a chat and returns its message ID
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	content, _ := json.Marshal(map[string]string{"text": text})
	msgID, err := c.createMessage(ctx, chatID, larkim.MsgTypeText, string(content))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return msgID, nil
}

// SendTextWithMentions sends a text message with @ mentions prepended
// Format: text with <at user_id="ou_xxx">@name</at> tags
func (c *Client) SendTextWithMentions(ctx context.Context, chatID, text string, mentions []Mention) (string, error) {
	var b strings.Builder
	for _, m := range mentions {
		fmt.Fprintf(&b, "<at user_id=\"%s\">@%s</at> ", m.UserID, m.UserName)
	}
	b.WriteString(text)

	content, _ := json.Marshal(map[string]string{"text": b.String()})
	msgID, err := c.createMessage(ctx, chatID, larkim.MsgTypeText, string(content))
	if err != nil {
		return "", fmt.Errorf("send message with mentions: %w", err)
	}
	fmt.Printf("[Feishu] Message with %d mentions sent to %s\n", len(mentions), chatID)
	return msgID, nil
}

// SendImage uploads a PNG and sends it to a chat
func (c *Client) SendImage(ctx context.Context, chatID string, png []byte) (string, error) {
	imageKey, err := c.UploadImage(ctx, png)
	if err != nil {
		return "", err
	}
	content, _ := json.Marshal(map[string]string{"image_key": imageKey})
	msgID, err := c.createMessage(ctx, chatID, larkim.MsgTypeImage, string(content))
	if err != nil {
		return "", fmt.Errorf("send image: %w", err)
	}
	fmt.Printf("[Feishu] Image sent to %s\n", chatID)
	return msgID, nil
}

// UploadImage uploads an image for use in messages and returns its image_key
func (c *Client) UploadImage(ctx context.Context, png []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType("message").
			Image(bytes.NewReader(png)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload image error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.ImageKey == nil {
		return "", fmt.Errorf("upload image: empty image_key")
	}
	return *resp.Data.ImageKey, nil
}

// DeleteMessage recalls a message sent by the bot
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}

	fmt.Printf("[Feishu] Message %s recalled\n", messageID)
	return nil
}

func (c *Client) createMessage(ctx context.Context, chatID, msgType, content string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.Success() {
		return "", fmt.Errorf("%s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", nil
	}
	return *resp.Data.MessageId, nil
}

// GetChatMembers retrieves members of a chat (group)
// Uses pagination to get all members
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	var pageToken string

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)

		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.MemberIdType != nil {
				member.MemberType = *item.MemberIdType
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	fmt.Printf("[Feishu] Retrieved %d members from chat %s\n", len(members), chatID)
	return members, nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data.Name != nil {
		info.Name = *resp.Data.Name
	}
	if resp.Data.ChatMode != nil {
		info.ChatType = *resp.Data.ChatMode
	}
	if resp.Data.OwnerId != nil {
		info.OwnerID = *resp.Data.OwnerId
	}
	if resp.Data.UserCount != nil {
		if count, err := strconv.Atoi(*resp.Data.UserCount); err == nil {
			info.MemberCount = count
		}
	}

	return info, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
