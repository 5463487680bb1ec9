package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/infra/openai"
)

// actionDescriptions tells the model what each action does
var actionDescriptions = map[string]string{
	"draw_wife":      "draw today's random wife (今日老婆/抽老婆)",
	"show_history":   "show who I drew today (我的老婆/抽取历史)",
	"force_marry":    "force-marry a mentioned member (强娶)",
	"show_graph":     "show today's relationship graph (关系图)",
	"rbq_ranking":    "show the monthly force-marry ranking (rbq排行)",
	"show_help":      "show usage help (帮助)",
	"reset_records":  "admin: reset today's draw records (重置记录)",
	"reset_force_cd": "admin: reset force-marry cooldowns (重置强娶时间)",
}

const intentSystemPrompt = `You route chat messages sent to a group game bot "%s".
Pick the single action the user is asking for, or NONE if the message asks for none of them.

Actions:
%s
Reply with only the action name or NONE.`

// intentRepo classifies free text with an LLM
type intentRepo struct {
	client  *openai.Client
	botName string
}

// NewIntentRepo creates an intent repository; a nil client disables classification
func NewIntentRepo(client *openai.Client, botName string) repo.IntentRepo {
	if client == nil {
		return nil
	}
	if botName == "" {
		botName = "老婆机器人"
	}
	return &intentRepo{client: client, botName: botName}
}

// Classify asks the model which action the text requests
func (r *intentRepo) Classify(ctx context.Context, text string, actions []string) (string, error) {
	resp, err := r.client.Chat(ctx, buildIntentPrompt(r.botName, actions), text)
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}
	action := parseIntent(resp, actions)
	fmt.Printf("[Intent] Response: %q -> action=%q\n", strings.TrimSpace(resp), action)
	return action, nil
}

func buildIntentPrompt(botName string, actions []string) string {
	var b strings.Builder
	for _, a := range actions {
		desc, ok := actionDescriptions[a]
		if !ok {
			desc = a
		}
		fmt.Fprintf(&b, "- %s: %s\n", a, desc)
	}
	return fmt.Sprintf(intentSystemPrompt, botName, b.String())
}

// parseIntent accepts a reply only when it names one of actions exactly
func parseIntent(resp string, actions []string) string {
	answer := strings.ToLower(strings.Trim(strings.TrimSpace(resp), "`\"'。."))
	for _, a := range actions {
		if answer == a {
			return a
		}
	}
	return ""
}
