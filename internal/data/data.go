package data

import (
	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
	"github.com/devricklin/feishu-random-wife/internal/infra/feishu"
	"github.com/devricklin/feishu-random-wife/internal/infra/openai"
)

// Repositories contains all repositories.
// Render and Intent are nil when their services are not configured.
type Repositories struct {
	State   repo.StateRepo
	Message repo.MessageRepo
	Render  repo.RenderRepo
	Intent  repo.IntentRepo
}

// NewRepositories creates all repositories
func NewRepositories(
	feishuClient *feishu.Client,
	openaiClient *openai.Client,
	stateDBPath string,
	renderEndpoint string,
	botName string,
) (*Repositories, error) {
	stateRepo, err := NewStateRepo(stateDBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		State:   stateRepo,
		Message: NewFeishuRepo(feishuClient),
		Render:  NewRenderRepo(renderEndpoint),
		Intent:  NewIntentRepo(openaiClient, botName),
	}, nil
}
