package repo

import "context"

// IntentRepo classifies free-form text addressed to the bot
type IntentRepo interface {
	// Classify returns one of actions, or "" when the text asks for none of them
	Classify(ctx context.Context, text string, actions []string) (string, error)
}
