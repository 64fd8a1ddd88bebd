// Package generator produces script text through a hosted language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/core"
)

const systemPrompt = "You are a scriptwriter for short-form video. Reply with the script only: " +
	"a hook, the body and a call to action, with no commentary."

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("model returned no script")

// OpenAIGenerator implements core.ScriptGenerator with the chat completions API.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAIGenerator creates a generator for apiKey.
func NewOpenAIGenerator(apiKey, model string, logger *zap.Logger) *OpenAIGenerator {
	return NewOpenAIGeneratorWithConfig(openai.DefaultConfig(apiKey), model, logger)
}

// NewOpenAIGeneratorWithConfig creates a generator from a client config, e.g. to point at another base URL.
func NewOpenAIGeneratorWithConfig(cfg openai.ClientConfig, model string, logger *zap.Logger) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: 800,
		logger:    logger.Named("generator"),
	}
}

// Generate asks the model for one script.
func (g *OpenAIGenerator) Generate(ctx context.Context, req core.GenerationRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(req),
			},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	script := strings.TrimSpace(resp.Choices[0].Message.Content)
	if script == "" {
		return "", ErrEmptyCompletion
	}
	g.logger.Debug("script generated", zap.String("model", g.model), zap.Int("tokens", resp.Usage.TotalTokens))
	return script, nil
}

// BuildPrompt renders the user message for req. Empty options are left out.
func BuildPrompt(req core.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a video script about: %s\n", strings.TrimSpace(req.Topic))
	for _, opt := range []struct{ label, value string }{
		{"Platform", req.Platform},
		{"Tone", req.Tone},
		{"Length", req.Length},
		{"Language", req.Language},
	} {
		if v := strings.TrimSpace(opt.value); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", opt.label, v)
		}
	}
	return b.String()
}

var _ core.ScriptGenerator = (*OpenAIGenerator)(nil)
