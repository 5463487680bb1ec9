package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/infra/feishu"
	"github.com/devricklin/feishu-random-wife/internal/service"
)

// dedupWindow is how long a message ID is remembered
const dedupWindow = 5 * time.Minute

// handleTimeout bounds one message's processing, member queries and replies included
const handleTimeout = 2 * time.Minute

// MessageSource delivers Feishu messages
type MessageSource interface {
	OnMessage(handler feishu.MessageHandler)
	BotOpenID() string
	Start() error
	Stop()
}

// MessageHandler consumes converted messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *domain.Message, botID string) error
}

// FeishuServer handles Feishu message processing
type FeishuServer struct {
	source    MessageSource
	handler   MessageHandler
	scheduler *service.MaintenanceScheduler

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server. The scheduler may be nil.
func NewFeishuServer(source MessageSource, handler MessageHandler, scheduler *service.MaintenanceScheduler) *FeishuServer {
	return &FeishuServer{
		source:    source,
		handler:   handler,
		scheduler: scheduler,
		seenMsgs:  make(map[string]time.Time),
	}
}

// Start starts the scheduler and the Feishu connection. It blocks while connected.
func (s *FeishuServer) Start() error {
	if s.scheduler != nil {
		s.scheduler.Start(context.Background())
	}

	s.source.OnMessage(s.handleMessage)
	return s.source.Start()
}

// Stop stops the server and flushes state through the scheduler
func (s *FeishuServer) Stop() {
	s.source.Stop()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// handleMessage handles Feishu messages. A panic is contained to the message that caused it.
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Server] Panic while handling %s: %v\n%s\n", msg.MsgID, r, debug.Stack())
		}
	}()

	// Message deduplication: Feishu redelivers events it considers unacknowledged
	if !s.markMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}

	botID := s.source.BotOpenID()
	domainMsg := toDomainMessage(msg, botID)
	if domainMsg == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := s.handler.HandleMessage(ctx, domainMsg, botID); err != nil {
		fmt.Printf("[Server] Handle message error in %s: %v\n", msg.ChatID, err)
	}
}

// toDomainMessage converts a Feishu message; the bot is dropped from the mention list
func toDomainMessage(msg *feishu.Message, botID string) *domain.Message {
	if msg.Sender == nil || msg.Sender.SenderID == "" {
		return nil
	}

	chatType := domain.ChatTypeP2P
	if msg.ChatType == "group" {
		chatType = domain.ChatTypeGroup
	}

	mentions := make([]string, 0, len(msg.Mentions))
	for _, id := range msg.Mentions {
		if id == "" || (botID != "" && id == botID) {
			continue
		}
		mentions = append(mentions, id)
	}

	var created time.Time
	if msg.CreateTime > 0 {
		created = time.UnixMilli(msg.CreateTime)
	}

	return &domain.Message{
		ID:          msg.MsgID,
		ChatID:      msg.ChatID,
		ChatType:    chatType,
		Content:     msg.Content,
		SenderID:    msg.Sender.SenderID,
		Mentions:    mentions,
		MentionsBot: msg.MentionsBot,
		CreateTime:  created,
	}
}

// markMessageSeen records a message ID. Returns false if it was already seen.
func (s *FeishuServer) markMessageSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	if ts, ok := s.seenMsgs[msgID]; ok && now.Sub(ts) < dedupWindow {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired message records to bound memory
	cutoff := now.Add(-dedupWindow)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
