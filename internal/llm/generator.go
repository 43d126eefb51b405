package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"medichat-server/internal/config"
	"medichat-server/internal/logging"
	"medichat-server/internal/models"
)

// MockResponse is returned by the generator in mock mode.
const MockResponse = "This is a mock response for debugging purposes."

// ErrUnknownProvider is returned for a provider with no configured endpoint.
var ErrUnknownProvider = errors.New("unknown model provider")

// GenerateRequest is one generation call.
type GenerateRequest struct {
	Memory      []models.Turn
	Prompt      string
	Images      []string // base64-encoded image data
	Model       string
	Provider    string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Mock        bool
}

// GenerateResult holds the generated text and the trailing user/assistant
// pair, which is what gets persisted for the turn.
type GenerateResult struct {
	Text  string
	Turns []models.Turn
}

// Generator produces an answer for a prompt given the conversation memory.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// chatCompleter is the part of the go-openai client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client talks to OpenAI-compatible chat completion endpoints: Groq, OpenAI
// or a local Ollama server, selected per request by provider name.
type Client struct {
	providers       map[string]chatCompleter
	defaultProvider string
	defaultModel    string
	logger          *zap.Logger
}

// NewClient builds one go-openai client per configured provider.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	return &Client{
		providers: map[string]chatCompleter{
			"groq":   newOpenAIClient(cfg.GroqAPIKey, cfg.GroqBaseURL),
			"openai": newOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
			"local":  newOpenAIClient("ollama", cfg.LocalBaseURL),
		},
		defaultProvider: cfg.DefaultProvider,
		defaultModel:    cfg.DefaultModel,
		logger:          logger,
	}
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = baseURL
	return openai.NewClientWithConfig(clientConfig)
}

// Generate answers the prompt. In mock mode no endpoint is contacted.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	userTurn := UserTurn(req.Prompt, req.Images)
	if req.Mock {
		return &GenerateResult{
			Text:  MockResponse,
			Turns: []models.Turn{userTurn, models.TextTurn(models.RoleAssistantTurn, MockResponse)},
		}, nil
	}

	provider := req.Provider
	if provider == "" {
		provider = c.defaultProvider
	}
	completer, ok := c.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	defer logging.LogDuration(ctx, c.logger, "llm_generate")()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Memory)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt})
	for _, turn := range req.Memory {
		messages = append(messages, toOpenAIMessage(turn))
	}
	messages = append(messages, toOpenAIMessage(userTurn))

	resp, err := completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion via %s: %w", provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion via %s returned no choices", provider)
	}

	text := resp.Choices[0].Message.Content
	c.logger.Info("generated response",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("memory_turns", len(req.Memory)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return &GenerateResult{
		Text:  text,
		Turns: []models.Turn{userTurn, models.TextTurn(models.RoleAssistantTurn, text)},
	}, nil
}

// UserTurn builds the stored user turn: image blocks first, then the prompt text.
func UserTurn(prompt string, images []string) models.Turn {
	blocks := make([]models.ContentBlock, 0, len(images)+1)
	for _, img := range images {
		blocks = append(blocks, models.ContentBlock{Type: models.BlockImage, Image: "data:image;base64," + img})
	}
	blocks = append(blocks, models.ContentBlock{Type: models.BlockText, Text: prompt})
	return models.Turn{Role: models.RoleUserTurn, Content: blocks}
}

// toOpenAIMessage converts a stored turn. Only user turns carry image parts;
// other roles are flattened to text.
func toOpenAIMessage(turn models.Turn) openai.ChatCompletionMessage {
	role := turn.Role
	if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
		role = openai.ChatMessageRoleUser
	}

	hasImage := false
	for _, b := range turn.Content {
		if b.Type == models.BlockImage {
			hasImage = true
			break
		}
	}
	if !hasImage || role != openai.ChatMessageRoleUser {
		return openai.ChatCompletionMessage{Role: role, Content: turn.Text()}
	}

	parts := make([]openai.ChatMessagePart, 0, len(turn.Content))
	for _, b := range turn.Content {
		switch b.Type {
		case models.BlockImage:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: imageURL(b.Image)},
			})
		case models.BlockText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}

// imageURL turns the stored "data:image;base64," reference into a data URL
// with a concrete media type, which the OpenAI-compatible APIs require.
func imageURL(ref string) string {
	const stored = "data:image;base64,"
	if strings.HasPrefix(ref, stored) {
		return "data:image/png;base64," + strings.TrimPrefix(ref, stored)
	}
	return ref
}

// wireTemperature keeps a zero temperature on the wire. The request field is
// omitempty, so 0 would otherwise fall back to the provider default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
