package advisor

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

// ChatAdvisor backs one agent with an OpenAI-compatible chat endpoint. The
// provider is picked purely by base URL and model from the agent table.
type ChatAdvisor struct {
	name    string
	persona string
	client  *openai.Client
	model   string
	agent   config.AgentConfig
	logger  *logger.Logger
}

func NewChatAdvisor(agent config.AgentConfig, log *logger.Logger) *ChatAdvisor {
	ocfg := openai.DefaultConfig(agent.APIKey)
	if agent.BaseURL != "" {
		ocfg.BaseURL = agent.BaseURL
	}

	return &ChatAdvisor{
		name:    agent.Name,
		persona: agent.Persona,
		client:  openai.NewClientWithConfig(ocfg),
		model:   agent.Model,
		agent:   agent,
		logger:  log,
	}
}

func (a *ChatAdvisor) Name() string {
	return a.name
}

func (a *ChatAdvisor) Propose(ctx context.Context, c Context, round int) (*Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, a.agent.Timeout())
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(a.persona, a.agent.SoloBudget)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(c, round)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor %s: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("advisor %s returned no choices", a.name)
	}

	raw := resp.Choices[0].Message.Content
	a.logger.Debug("advisor reply", "agent", a.name, "symbol", c.Symbol, "round", round, "content", raw)

	p, err := ParseProposal(raw)
	if err != nil {
		return nil, fmt.Errorf("advisor %s: %w", a.name, err)
	}

	p.Agent = a.name
	p.Symbol = c.Symbol
	p.Price = c.LastPrice
	p.Round = round
	return p, nil
}
