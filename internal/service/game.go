package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
)

// GameServiceConfig controls how chat text reaches the game
type GameServiceConfig struct {
	KeywordTriggerEnabled bool
	MatchMode             domain.MatchMode
	Routes                []domain.KeywordRoute
	AutoWithdraw          bool
	WithdrawDelay         time.Duration
	GraphIterations       int
}

// GameService routes chat messages to game operations and sends the replies
type GameService struct {
	gameUC      *usecase.GameUsecase
	messageRepo repo.MessageRepo
	renderRepo  repo.RenderRepo // optional
	intentRepo  repo.IntentRepo // optional
	router      *domain.KeywordRouter
	withdrawer  *Withdrawer // nil unless auto-withdraw is enabled
	config      GameServiceConfig
}

// NewGameService creates a new game service
func NewGameService(
	gameUC *usecase.GameUsecase,
	messageRepo repo.MessageRepo,
	renderRepo repo.RenderRepo,
	intentRepo repo.IntentRepo,
	config GameServiceConfig,
) *GameService {
	if len(config.Routes) == 0 {
		config.Routes = domain.DefaultKeywordRoutes()
	}
	if config.GraphIterations <= 0 {
		config.GraphIterations = 140
	}
	s := &GameService{
		gameUC:      gameUC,
		messageRepo: messageRepo,
		renderRepo:  renderRepo,
		intentRepo:  intentRepo,
		router:      domain.NewKeywordRouter(config.Routes),
		config:      config,
	}
	if config.AutoWithdraw {
		s.withdrawer = NewWithdrawer(messageRepo, config.WithdrawDelay)
	}
	return s
}

// Close cancels pending withdraw timers
func (s *GameService) Close() {
	if s.withdrawer != nil {
		if n := s.withdrawer.CancelAll(); n > 0 {
			fmt.Printf("[GameSvc] Cancelled %d pending withdrawals\n", n)
		}
	}
}

// HandleMessage processes one inbound message. At most one action runs per message.
func (s *GameService) HandleMessage(ctx context.Context, msg *domain.Message, botID string) error {
	if msg == nil || msg.ChatID == "" || msg.SenderID == "" || msg.IsFromBot(botID) {
		return nil
	}

	if !msg.IsGroup() {
		if _, ok := s.resolveRoute(ctx, msg); ok {
			s.reply(ctx, msg.ChatID, "此功能仅在群聊中可用哦~")
		}
		return nil
	}

	// Denied groups are ignored entirely, activity included
	if !s.gameUC.Allowed(msg.ChatID) {
		return nil
	}
	s.gameUC.Observe(msg.ChatID, msg.SenderID, botID)

	route, ok := s.resolveRoute(ctx, msg)
	if !ok {
		return nil
	}

	if route.Permission == domain.PermissionAdmin && !s.gameUC.IsAdmin(ctx, msg.ChatID, msg.SenderID) {
		fmt.Printf("[GameSvc] %s denied %s in %s\n", msg.SenderID, route.Action, msg.ChatID)
		s.reply(ctx, msg.ChatID, "该指令仅限管理员使用。")
		return nil
	}

	fmt.Printf("[GameSvc] %s -> %s in %s\n", msg.SenderID, route.Action, msg.ChatID)
	return s.dispatch(ctx, route.Action, msg, botID)
}

// resolveRoute finds the route for a message.
// Prefixed or bot-addressed messages take the explicit path; everything else goes through
// keyword matching, which never sees explicit commands.
func (s *GameService) resolveRoute(ctx context.Context, msg *domain.Message) (domain.KeywordRoute, bool) {
	text := strings.TrimSpace(msg.Content)

	if domain.HasCommandPrefix(text) || msg.MentionsBot {
		if route, ok := s.router.MatchCommand(domain.StripCommandPrefix(text)); ok {
			return route, true
		}
		if msg.MentionsBot {
			return s.classify(ctx, text)
		}
		return domain.KeywordRoute{}, false
	}

	if !s.config.KeywordTriggerEnabled || text == "" {
		return domain.KeywordRoute{}, false
	}
	if route, ok := s.router.Match(text, s.config.MatchMode); ok {
		return route, true
	}
	return s.router.MatchCommand(text)
}

// classify asks the intent repo which action a bot-addressed message wants
func (s *GameService) classify(ctx context.Context, text string) (domain.KeywordRoute, bool) {
	if s.intentRepo == nil || text == "" {
		return domain.KeywordRoute{}, false
	}
	action, err := s.intentRepo.Classify(ctx, text, s.router.Actions())
	if err != nil {
		fmt.Printf("[GameSvc] Intent classification failed: %v\n", err)
		return domain.KeywordRoute{}, false
	}
	if action == "" {
		return domain.KeywordRoute{}, false
	}
	return s.router.Route(action)
}

func (s *GameService) dispatch(ctx context.Context, action string, msg *domain.Message, botID string) error {
	switch action {
	case domain.ActionDrawWife:
		return s.drawWife(ctx, msg, botID)
	case domain.ActionShowHistory:
		return s.showHistory(ctx, msg)
	case domain.ActionForceMarry:
		return s.forceMarry(ctx, msg, botID)
	case domain.ActionShowGraph:
		return s.showGraph(ctx, msg)
	case domain.ActionRanking:
		return s.showRanking(ctx, msg)
	case domain.ActionShowHelp:
		return s.showHelp(ctx, msg)
	case domain.ActionResetRecords:
		return s.resetRecords(ctx, msg)
	case domain.ActionResetForceCD:
		return s.resetForceCD(ctx, msg)
	default:
		fmt.Printf("[GameSvc] Unknown action %q\n", action)
		return nil
	}
}

// reply sends text and schedules its withdrawal when enabled
func (s *GameService) reply(ctx context.Context, chatID, text string) {
	msgID, err := s.messageRepo.SendText(ctx, chatID, text)
	if err != nil {
		fmt.Printf("[GameSvc] Failed to send reply: %v\n", err)
		return
	}
	s.scheduleWithdraw(msgID)
}

// replyTo sends text that @mentions the actor, falling back to plain text
func (s *GameService) replyTo(ctx context.Context, msg *domain.Message, text string) {
	actor := domain.Member{UserID: msg.SenderID, Name: msg.SenderName}
	if actor.Name == "" {
		actor.Name = domain.PlaceholderName(msg.SenderID)
	}
	msgID, err := s.messageRepo.SendTextWithMentions(ctx, msg.ChatID, text, []domain.Member{actor})
	if err != nil {
		fmt.Printf("[GameSvc] Failed to send reply with mentions: %v\n", err)
		s.reply(ctx, msg.ChatID, text)
		return
	}
	s.scheduleWithdraw(msgID)
}

func (s *GameService) replyImage(ctx context.Context, chatID string, png []byte) error {
	msgID, err := s.messageRepo.SendImage(ctx, chatID, png)
	if err != nil {
		return err
	}
	s.scheduleWithdraw(msgID)
	return nil
}

func (s *GameService) scheduleWithdraw(msgID string) {
	if s.withdrawer == nil || msgID == "" {
		return
	}
	s.withdrawer.Schedule(msgID)
}
