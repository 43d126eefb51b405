package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"medichat-server/internal/config"
	"medichat-server/internal/logging"
	"medichat-server/internal/models"
)

// MockSafety is the verdict returned by the evaluator in mock mode.
var MockSafety = models.Safety{
	Score:         100,
	Justification: "This response is a mock response for debugging purposes.",
	SafetyLevel:   "High",
}

// ErrUnparsableVerdict is returned when the safety model reply holds no JSON object.
var ErrUnparsableVerdict = errors.New("safety verdict is not valid JSON")

// SafetyEvaluator scores a generated answer.
type SafetyEvaluator interface {
	Evaluate(ctx context.Context, text string, mock bool) (models.Safety, error)
}

// Evaluator asks a dedicated model to score answers.
type Evaluator struct {
	completer chatCompleter
	model     string
	logger    *zap.Logger
}

// NewEvaluator uses the endpoint of cfg.SafetyProvider.
func NewEvaluator(cfg config.LLMConfig, logger *zap.Logger) (*Evaluator, error) {
	var completer chatCompleter
	switch cfg.SafetyProvider {
	case "groq":
		completer = newOpenAIClient(cfg.GroqAPIKey, cfg.GroqBaseURL)
	case "openai":
		completer = newOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case "local":
		completer = newOpenAIClient("ollama", cfg.LocalBaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.SafetyProvider)
	}
	return &Evaluator{completer: completer, model: cfg.SafetyModel, logger: logger}, nil
}

// Evaluate returns the verdict as reported by the safety model.
func (e *Evaluator) Evaluate(ctx context.Context, text string, mock bool) (models.Safety, error) {
	if mock {
		return MockSafety, nil
	}
	defer logging.LogDuration(ctx, e.logger, "llm_evaluate_safety")()

	resp, err := e.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SafetyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return models.Safety{}, fmt.Errorf("safety evaluation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Safety{}, fmt.Errorf("safety evaluation returned no choices")
	}

	safety, err := parseSafety(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("unparsable safety verdict",
			zap.String("model", e.model),
			zap.String("request_id", logging.RequestID(ctx)))
		return models.Safety{}, err
	}
	return safety, nil
}

// parseSafety decodes the first JSON object found in reply. Models often wrap
// the object in prose or code fences.
func parseSafety(reply string) (models.Safety, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return models.Safety{}, ErrUnparsableVerdict
	}

	var safety models.Safety
	decoder := json.NewDecoder(strings.NewReader(reply[start : end+1]))
	if err := decoder.Decode(&safety); err != nil {
		return models.Safety{}, fmt.Errorf("%w: %v", ErrUnparsableVerdict, err)
	}
	return safety, nil
}
