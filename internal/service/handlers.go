package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devricklin/feishu-random-wife/internal/biz/domain"
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/biz/usecase"
)

// Image layout and display formats
const (
	rankingWidth      = 400
	rankingHeaderH    = 100
	rankingItemH      = 60
	rankingFooterH    = 50
	rankingTitle      = "❤️ 群rbq月榜 ❤️"
	graphWidth        = 1920
	graphBaseHeight   = 1080
	graphNodeHeight   = 60
	graphFreeNodes    = 10
	resetTimeLayout   = "01-02 15:04"
	historyTimeLayout = "15:04"
)

func (s *GameService) drawWife(ctx context.Context, msg *domain.Message, botID string) error {
	res, err := s.gameUC.Draw(ctx, usecase.DrawRequest{
		GroupID:   msg.ChatID,
		ActorID:   msg.SenderID,
		ActorName: msg.SenderName,
		BotID:     botID,
	})

	var drawn *domain.AlreadyDrawnError
	switch {
	case err == nil:
	case errors.As(err, &drawn):
		if drawn.Record != nil {
			s.replyTo(ctx, msg, fmt.Sprintf(" 你今天已经有老婆了哦❤️~\n她是：【%s】", drawn.Record.TargetName))
		} else {
			s.reply(ctx, msg.ChatID, fmt.Sprintf("你今天已经抽了%d次老婆了，明天再来吧！", drawn.Count))
		}
		return nil
	case errors.Is(err, domain.ErrEmptyPool):
		s.reply(ctx, msg.ChatID, "老婆池为空（需有人在30天内发言）。")
		return nil
	case errors.Is(err, domain.ErrGroupNotAllowed):
		return nil
	default:
		return fmt.Errorf("draw: %w", err)
	}

	s.replyTo(ctx, msg, formatDrawResult(res))
	return nil
}

func formatDrawResult(res *usecase.DrawResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, " 你的今日老婆是：\n\n【%s】\n", res.Record.TargetName)
	if res.Reciprocal {
		b.WriteString("对方今天的老婆也自动设置为你啦~\n")
	}
	fmt.Fprintf(&b, "剩余抽取次数：%d次", res.Remaining)
	return b.String()
}

func (s *GameService) showHistory(ctx context.Context, msg *domain.Message) error {
	view := s.gameUC.History(msg.ChatID, msg.SenderID)
	s.reply(ctx, msg.ChatID, formatHistory(view))
	return nil
}

func formatHistory(view *usecase.HistoryView) string {
	if len(view.Records) == 0 {
		return "你今天还没有抽过老婆哦~"
	}
	lines := []string{fmt.Sprintf("🌸 你今日的老婆记录 (%d/%d)：", len(view.Records), view.Limit)}
	for i, r := range view.Records {
		tag := ""
		if r.Forced {
			tag = " [强娶]"
		}
		lines = append(lines, fmt.Sprintf("%d. 【%s】 (%s)%s", i+1, r.TargetName, r.Timestamp.Format(historyTimeLayout), tag))
	}
	lines = append(lines, fmt.Sprintf("\n剩余次数：%d次", view.Remaining))
	return strings.Join(lines, "\n")
}

func (s *GameService) forceMarry(ctx context.Context, msg *domain.Message, botID string) error {
	res, err := s.gameUC.Force(ctx, usecase.ForceRequest{
		GroupID:   msg.ChatID,
		ActorID:   msg.SenderID,
		ActorName: msg.SenderName,
		TargetID:  msg.FirstMention(),
		BotID:     botID,
	})

	var cooling *domain.CooldownError
	var invalid *domain.InvalidTargetError
	switch {
	case err == nil:
	case errors.As(err, &cooling):
		s.reply(ctx, msg.ChatID, formatCooldown(cooling))
		return nil
	case errors.As(err, &invalid):
		s.reply(ctx, msg.ChatID, formatInvalidTarget(invalid.Reason))
		return nil
	case errors.Is(err, domain.ErrGroupNotAllowed):
		return nil
	default:
		return fmt.Errorf("force: %w", err)
	}

	text := fmt.Sprintf(" 你今天强娶了【%s】哦❤️~\n请对她好一点哦~。", res.Record.TargetName)
	if res.Reciprocal {
		text += "\n对方今天的老婆也自动设置为你啦~"
	}
	s.replyTo(ctx, msg, text)
	return nil
}

func formatCooldown(err *domain.CooldownError) string {
	w := domain.SplitRemaining(err.Remaining)
	return fmt.Sprintf("你已经强娶过啦！\n请等待：%d天%d小时%d分后再试。\n(重置时间：%s)",
		w.Days, w.Hours, w.Minutes, err.ResetAt.Format(resetTimeLayout))
}

func formatInvalidTarget(reason domain.InvalidTargetReason) string {
	switch reason {
	case domain.TargetSelf:
		return "不能娶自己！"
	case domain.TargetExcluded:
		return "该用户在强娶排除列表中，无法被强娶。"
	default:
		return "请 @ 一个你想强娶的人。"
	}
}

func (s *GameService) showRanking(ctx context.Context, msg *domain.Message) error {
	entries := s.gameUC.Ranking(ctx, msg.ChatID)
	if len(entries) == 0 {
		s.reply(ctx, msg.ChatID, "本群近30天还没有人被强娶过，大家都很有礼貌呢。")
		return nil
	}

	if s.renderRepo == nil {
		s.reply(ctx, msg.ChatID, formatRankingText(entries))
		return nil
	}

	data := map[string]any{
		"group_id": msg.ChatID,
		"ranking":  entries,
		"title":    rankingTitle,
	}
	opts := repo.RenderOptions{
		Width:  rankingWidth,
		Height: rankingHeaderH + len(entries)*rankingItemH + rankingFooterH,
	}
	png, err := s.renderRepo.RenderImage(ctx, repo.TemplateRanking, data, opts)
	if err != nil {
		fmt.Printf("[GameSvc] Ranking render failed for %s: %v\n", msg.ChatID, err)
		s.reply(ctx, msg.ChatID, "排行榜渲染失败，请稍后再试。")
		return nil
	}
	if err := s.replyImage(ctx, msg.ChatID, png); err != nil {
		fmt.Printf("[GameSvc] Failed to send ranking image: %v\n", err)
		s.reply(ctx, msg.ChatID, "排行榜渲染失败，请稍后再试。")
	}
	return nil
}

func formatRankingText(entries []domain.RankEntry) string {
	lines := []string{rankingTitle}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s - %d次", e.Rank, e.Name, e.Count))
	}
	return strings.Join(lines, "\n")
}

func (s *GameService) showGraph(ctx context.Context, msg *domain.Message) error {
	view := s.gameUC.Graph(ctx, msg.ChatID)
	if len(view.Records) == 0 {
		s.reply(ctx, msg.ChatID, "今天还没有人抽过老婆哦~")
		return nil
	}

	if s.renderRepo == nil {
		s.reply(ctx, msg.ChatID, formatGraphText(view))
		return nil
	}

	data := map[string]any{
		"group_id":   view.GroupID,
		"group_name": view.GroupName,
		"user_map":   view.Names,
		"records":    view.Records,
		"iterations": s.config.GraphIterations,
	}
	opts := repo.RenderOptions{
		Width:  graphWidth,
		Height: graphHeight(view.NodeCount()),
	}
	png, err := s.renderRepo.RenderImage(ctx, repo.TemplateGraph, data, opts)
	if err != nil {
		fmt.Printf("[GameSvc] Graph render failed for %s: %v\n", msg.ChatID, err)
		s.reply(ctx, msg.ChatID, "关系图渲染失败，请稍后再试。")
		return nil
	}
	if err := s.replyImage(ctx, msg.ChatID, png); err != nil {
		fmt.Printf("[GameSvc] Failed to send graph image: %v\n", err)
		s.reply(ctx, msg.ChatID, "关系图渲染失败，请稍后再试。")
	}
	return nil
}

// graphHeight grows the clip by one row per node above the first ten
func graphHeight(nodes int) int {
	return graphBaseHeight + max(0, nodes-graphFreeNodes)*graphNodeHeight
}

func formatGraphText(view *usecase.GraphView) string {
	lines := []string{fmt.Sprintf("💞 %s 今日老婆关系：", view.GroupName)}
	for _, r := range view.Records {
		arrow := "→"
		if r.Forced {
			arrow = "⇒(强娶)"
		}
		target := view.Names[r.TargetID]
		if target == "" {
			target = r.TargetName
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", view.Names[r.ActorID], arrow, target))
	}
	return strings.Join(lines, "\n")
}

func (s *GameService) showHelp(ctx context.Context, msg *domain.Message) error {
	s.reply(ctx, msg.ChatID, helpText(s.gameUC.Config().DailyLimit))
	return nil
}

func helpText(dailyLimit int) string {
	return "===== 🌸 抽老婆帮助 =====\n" +
		"1. 【抽老婆】：随机抽取今日老婆\n" +
		"2. 【强娶@某人】或【强娶 @某人】：强行更换今日老婆（有冷却期）\n" +
		"3. 【我的老婆】：查看今日历史与次数\n" +
		"4. 【重置记录】：(管理员) 清空本群今日记录（强娶冷却不会清除）\n" +
		"5. 【重置强娶时间】：(管理员) 清空本群强娶冷却\n" +
		"6. 【关系图】：查看群友老婆的关系\n" +
		"7. 【rbq排行】：展示近30天被强娶的次数排行\n" +
		fmt.Sprintf("当前每日上限：%d次\n", dailyLimit) +
		"提示：开启关键词触发后，直接发送关键词即可，无需 / 前缀。\n" +
		"注：仅限30天内发言且当前在群的活跃群友。"
}

func (s *GameService) resetRecords(ctx context.Context, msg *domain.Message) error {
	n := s.gameUC.ResetRecords(ctx, msg.ChatID)
	fmt.Printf("[GameSvc] Reset %d records in %s\n", n, msg.ChatID)
	s.reply(ctx, msg.ChatID, "今日抽取记录已重置！")
	return nil
}

func (s *GameService) resetForceCD(ctx context.Context, msg *domain.Message) error {
	if s.gameUC.ResetCooldowns(ctx, msg.ChatID) {
		s.reply(ctx, msg.ChatID, "✅ 本群强娶冷却时间已重置！现在大家可以再次强娶了。")
	} else {
		s.reply(ctx, msg.ChatID, "💡 本群目前没有人在冷却期内。")
	}
	return nil
}
