package sentiment

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/quorum-trader/internal/config"
	"github.com/camuig/quorum-trader/internal/logger"
)

const scorerSystemPrompt = `You rate market sentiment for a single stock from its recent headlines.
Reply with ONE number between -1.0 (very bearish) and 1.0 (very bullish).
No headlines means neutral. Reply with the number only.`

// LLMScorer asks an OpenAI-compatible chat model for a single sentiment
// number. Any error yields neutral 0.0.
type LLMScorer struct {
	client  *openai.Client
	model   string
	timeout func() (context.Context, context.CancelFunc)
	logger  *logger.Logger
}

func NewLLMScorer(cfg *config.Config, log *logger.Logger) *LLMScorer {
	ocfg := openai.DefaultConfig(cfg.Sentiment.APIKey)
	if cfg.Sentiment.BaseURL != "" {
		ocfg.BaseURL = cfg.Sentiment.BaseURL
	}

	timeout := cfg.SentimentTimeout()
	return &LLMScorer{
		client: openai.NewClientWithConfig(ocfg),
		model:  cfg.Sentiment.Model,
		timeout: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), timeout)
		},
		logger: log,
	}
}

func (s *LLMScorer) Score(ctx context.Context, symbol string, headlines []string) float64 {
	if len(headlines) == 0 {
		return 0
	}

	callCtx, cancel := s.timeout()
	defer cancel()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s\nHeadlines:\n", symbol)
	for _, h := range headlines {
		fmt.Fprintf(&sb, "- %s\n", h)
	}

	resp, err := s.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scorerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		s.logger.Error("sentiment model call failed, using neutral", "symbol", symbol, "error", err)
		return 0
	}
	if len(resp.Choices) == 0 {
		return 0
	}

	score, ok := parseScore(resp.Choices[0].Message.Content)
	if !ok {
		s.logger.Error("unparseable sentiment reply, using neutral",
			"symbol", symbol, "reply", resp.Choices[0].Message.Content)
		return 0
	}
	return score
}
