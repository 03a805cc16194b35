package ai

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
)

var ErrNoChoices = errors.New("ai: completion returned no choices")

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("ai: OPENAI_API_KEY not set")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: opts.Timeout,
	}, nil
}

// Complete sends prompt as a single user turn and returns the first
// candidate with surrounding whitespace removed.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		logger.Log.Warn("openai_completion_failed", zap.String("model", c.model), zap.Error(err))
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.Log.Debug("openai_completion",
		zap.String("model", c.model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("reply", short(out)),
	)
	return out, nil
}

// short caps s at 180 runes for logging.
func short(s string) string {
	const limit = 180
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
