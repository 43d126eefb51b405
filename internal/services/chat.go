package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/events"
	"medichat-server/internal/llm"
	"medichat-server/internal/logging"
	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// ChatRequest is one prompt sent to a session.
type ChatRequest struct {
	SessionID   string
	CaseID      string
	PatientID   string
	Prompt      string
	Images      []string // base64-encoded
	Model       string
	Provider    string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Debug       bool
}

// ChatResult is returned to the client after a turn has been stored.
type ChatResult struct {
	Response    string        `json:"response"`
	SafetyScore models.Safety `json:"safety_score"`
	MessageID   string        `json:"message_id"`
}

// ChatOptions configures a ChatService.
type ChatOptions struct {
	// MemoryMaxTurns caps the stored turns replayed to the model. 0 means no cap.
	MemoryMaxTurns int
	// Timeout bounds the model call. 0 means no bound beyond the request context.
	Timeout time.Duration
}

// ChatService runs a chat turn: memory assembly, generation, safety scoring
// and persistence.
type ChatService struct {
	db        *gorm.DB
	messages  *MessageService
	generator llm.Generator
	evaluator llm.SafetyEvaluator
	publisher events.Publisher
	logger    *zap.Logger
	opts      ChatOptions
	locks     *keyedMutex
}

// NewChatService creates a new ChatService. A nil publisher disables events.
func NewChatService(db *gorm.DB, messages *MessageService, generator llm.Generator, evaluator llm.SafetyEvaluator,
	publisher events.Publisher, logger *zap.Logger, opts ChatOptions) *ChatService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ChatService{
		db:        db,
		messages:  messages,
		generator: generator,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		locks:     newKeyedMutex(),
	}
}

// Chat answers req.Prompt in the context of the session history. Turns of
// the same session are processed one at a time so each sees the previous one.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := validateChatRequest(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	if err := s.ensureExists(ctx, &models.Case{}, "case_id", req.CaseID, "Case"); err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, &models.Patient{}, "patient_id", req.PatientID, "Patient"); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := checkCaseOwner(db, req.CaseID, req.PatientID); err != nil {
		return nil, err
	}
	if err := checkSessionOwner(db, req.SessionID, req.CaseID, req.PatientID); err != nil {
		return nil, err
	}

	history, err := s.messages.GetHistory(ctx, req.SessionID, nil)
	if err != nil {
		return nil, err
	}
	memory := windowMemory(flattenHistory(history), s.opts.MemoryMaxTurns)

	generated, err := s.generate(ctx, llm.GenerateRequest{
		Memory:      memory,
		Prompt:      req.Prompt,
		Images:      req.Images,
		Model:       req.Model,
		Provider:    req.Provider,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Mock:        req.Debug,
	})
	if err != nil {
		return nil, err
	}

	safety, err := s.evaluator.Evaluate(ctx, generated.Text, req.Debug)
	if err != nil {
		return nil, utils.ExternalServiceError("Failed to evaluate response safety", err)
	}

	history, err = s.messages.AppendTurn(ctx, TurnInput{
		CaseID:    req.CaseID,
		PatientID: req.PatientID,
		SessionID: req.SessionID,
		Content:   generated.Turns,
		Safety:    safety,
	}, history)
	if err != nil {
		return nil, err
	}
	stored := history[len(history)-1]

	s.publish(ctx, req, stored)

	return &ChatResult{
		Response:    generated.Text,
		SafetyScore: safety,
		MessageID:   stored.MessageID,
	}, nil
}

func (s *ChatService) generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	result, err := s.generator.Generate(callCtx, req)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, llm.ErrUnknownProvider):
		return nil, utils.ValidationError("Unknown model provider")
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return nil, utils.ExternalServiceError("model call timed out", err)
	default:
		return nil, utils.ExternalServiceError("Failed to generate response", err)
	}
}

func (s *ChatService) ensureExists(ctx context.Context, model interface{}, column, id, entity string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return utils.PersistenceError("fetch "+strings.ToLower(entity), err)
	}
	if count == 0 {
		s.logger.Warn(entity+" not found", zap.String(column, id))
		return utils.NotFoundError(entity)
	}
	return nil
}

func (s *ChatService) publish(ctx context.Context, req ChatRequest, stored HistoryEntry) {
	err := s.publisher.PublishTurn(ctx, events.TurnRecorded{
		MessageID: stored.MessageID,
		SessionID: req.SessionID,
		CaseID:    req.CaseID,
		PatientID: req.PatientID,
		Safety:    stored.Safety,
		Timestamp: stored.Timestamp,
	})
	if err != nil {
		s.logger.Warn("failed to publish turn event",
			zap.String("message_id", stored.MessageID),
			zap.String("request_id", logging.RequestID(ctx)),
			zap.Error(err))
	}
}

func validateChatRequest(req ChatRequest) error {
	switch {
	case req.SessionID == "" || req.CaseID == "" || req.PatientID == "":
		return utils.ValidationError("session_id, case_id and patient_id are required")
	case req.Prompt == "":
		return utils.ValidationError("Prompt is required")
	case req.Temperature < 0:
		return utils.ValidationError("Temperature must not be negative")
	case req.TopP <= 0 || req.TopP > 1:
		return utils.ValidationError("top_p must be greater than 0 and at most 1")
	case req.MaxTokens <= 0:
		return utils.ValidationError("max_tokens must be positive")
	}
	return nil
}

// flattenHistory concatenates the turns of every stored message in order.
func flattenHistory(history []HistoryEntry) []models.Turn {
	var memory []models.Turn
	for _, entry := range history {
		memory = append(memory, entry.Content...)
	}
	return memory
}

// windowMemory keeps at most maxTurns of the most recent turns, dropping
// whole turns from the front. The kept window starts on a user turn.
func windowMemory(memory []models.Turn, maxTurns int) []models.Turn {
	if maxTurns <= 0 || len(memory) <= maxTurns {
		return memory
	}
	window := memory[len(memory)-maxTurns:]
	for len(window) > 0 && window[0].Role != models.RoleUserTurn {
		window = window[1:]
	}
	return window
}

// keyedMutex serializes work per key. Entries are removed once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
