package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/RichardoC/simple-chatbot/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"

	Temperature = 0.7
	MaxTokens   = 512
)

var errEmptyResponse = errors.New("provider returned no choices")

// CompletionError is the single failure kind reported by the gateway. It
// covers transport errors, provider errors and unusable responses alike.
type CompletionError struct {
	Description string
	Err         error
}

func (e *CompletionError) Error() string {
	return "completion failed: " + e.Description
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

func completionFailure(err error) *CompletionError {
	return &CompletionError{Description: err.Error(), Err: err}
}

// Gateway sends whole conversation logs to an OpenAI-compatible provider.
// It keeps no conversation state between calls.
type Gateway struct {
	llm    llms.Model
	model  string
	logger *zap.Logger
}

type Option func(*Gateway)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithLLM swaps the underlying model client.
func WithLLM(model llms.Model) Option {
	return func(g *Gateway) {
		g.llm = model
	}
}

func New(baseURL, token, model string, opts ...Option) (*Gateway, error) {
	if model == "" {
		model = DefaultModel
	}
	g := &Gateway{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	if g.llm != nil {
		return g, nil
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion client: %w", err)
	}
	g.llm = client
	return g, nil
}

func (g *Gateway) Model() string {
	return g.model
}

// Complete makes exactly one provider call for the given log and returns the
// generated assistant text. Every failure is a *CompletionError.
func (g *Gateway) Complete(ctx context.Context, messages []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	promptChars := 0
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
		promptChars += len(msg.Content)
	}

	g.logger.Debug("Sending completion request",
		zap.String("model", g.model),
		zap.Int("messages", len(messages)),
		zap.Int("promptChars", promptChars))

	resp, err := g.llm.GenerateContent(ctx, content,
		llms.WithModel(g.model),
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxTokens),
	)
	if err != nil {
		return "", completionFailure(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", completionFailure(errEmptyResponse)
	}

	return resp.Choices[0].Content, nil
}

func chatMessageType(role string) schema.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return schema.ChatMessageTypeSystem
	case models.RoleUser:
		return schema.ChatMessageTypeHuman
	case models.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		// The client refuses roles it has no mapping for, so anything else is
		// sent as plain user text.
		return schema.ChatMessageTypeGeneric
	}
}
