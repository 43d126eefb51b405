package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// HistoryEntry is one stored turn as returned to callers.
type HistoryEntry struct {
	MessageID string        `json:"message_id"`
	SessionID string        `json:"session_id"`
	Content   []models.Turn `json:"content"`
	Safety    models.Safety `json:"safety"`
	Feedback  *string       `json:"feedback"`
	Like      *bool         `json:"like"`
	Stars     int           `json:"stars"`
	Timestamp time.Time     `json:"timestamp"`
}

// TurnInput is what AppendTurn persists.
type TurnInput struct {
	CaseID    string
	PatientID string
	SessionID string
	Content   []models.Turn
	Safety    models.Safety
}

// MessageService stores chat turns and their annotations.
type MessageService struct {
	db    *gorm.DB
	clock *monotonicClock
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db, clock: newMonotonicClock(time.Now)}
}

// AppendTurn persists a turn, creating the session titled "New Session" if it
// does not exist yet. The case must belong to the patient and an existing
// session must carry the same case and patient. The stored entry is appended
// to history, which is a request-scoped copy and never read back as a source
// of truth.
func (s *MessageService) AppendTurn(ctx context.Context, in TurnInput, history []HistoryEntry) ([]HistoryEntry, error) {
	if len(in.Content) == 0 {
		return history, utils.ValidationError("Message content is required")
	}

	now := s.clock.Next()
	message := models.SessionMessage{
		MessageID: uuid.NewString(),
		SessionID: in.SessionID,
		CaseID:    in.CaseID,
		PatientID: in.PatientID,
		Content:   datatypes.JSONSlice[models.Turn](in.Content),
		Safety:    datatypes.NewJSONType(in.Safety),
		Timestamp: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCaseOwner(tx, in.CaseID, in.PatientID); err != nil {
			return err
		}
		if err := createSessionIfAbsent(tx, in.SessionID, models.DefaultSessionTitle, in.CaseID, in.PatientID, now); err != nil {
			return err
		}
		if err := checkSessionOwner(tx, in.SessionID, in.CaseID, in.PatientID); err != nil {
			return err
		}
		return tx.Create(&message).Error
	})
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return history, appErr
	}
	if err != nil {
		return history, utils.PersistenceError("store message", err)
	}

	return append(history, toHistoryEntry(message)), nil
}

// GetHistory returns the messages of a session ordered by timestamp ascending.
// A non-nil since keeps only messages stored strictly after it.
func (s *MessageService) GetHistory(ctx context.Context, sessionID string, since *time.Time) ([]HistoryEntry, error) {
	query := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}})
	if since != nil {
		query = query.Where(clause.Gt{Column: clause.Column{Name: "timestamp"}, Value: since.UTC()})
	}

	var messages []models.SessionMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, utils.PersistenceError("fetch chat history", err)
	}

	history := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		history = append(history, toHistoryEntry(m))
	}
	return history, nil
}

// GetMessage returns a single message or a NotFound error.
func (s *MessageService) GetMessage(ctx context.Context, messageID string) (*HistoryEntry, error) {
	message, err := s.find(s.db.WithContext(ctx), messageID)
	if err != nil {
		return nil, err
	}
	entry := toHistoryEntry(*message)
	return &entry, nil
}

// LikeMessage sets the like flag. nil clears it; the latest value wins.
func (s *MessageService) LikeMessage(ctx context.Context, messageID string, like *bool) (*HistoryEntry, error) {
	db := s.db.WithContext(ctx)
	message, err := s.find(db, messageID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(message).Update("like", like).Error; err != nil {
		return nil, utils.PersistenceError("update like", err)
	}
	message.Like = like
	entry := toHistoryEntry(*message)
	return &entry, nil
}

// SubmitFeedback records feedback text and a star rating. Each field is only
// written when provided: empty text or zero stars keep the stored value.
func (s *MessageService) SubmitFeedback(ctx context.Context, messageID, feedback string, stars int) (*HistoryEntry, error) {
	return s.mergeFeedback(ctx, messageID, feedback, stars)
}

// EditFeedback changes previously submitted feedback with the same merge rules.
func (s *MessageService) EditFeedback(ctx context.Context, messageID, feedback string, stars int) (*HistoryEntry, error) {
	return s.mergeFeedback(ctx, messageID, feedback, stars)
}

func (s *MessageService) mergeFeedback(ctx context.Context, messageID, feedback string, stars int) (*HistoryEntry, error) {
	if stars < 0 || stars > 5 {
		return nil, utils.ValidationError("Stars must be between 0 and 5")
	}

	db := s.db.WithContext(ctx)
	message, err := s.find(db, messageID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if feedback != "" {
		updates["feedback"] = feedback
		message.Feedback = &feedback
	}
	if stars != 0 {
		updates["stars"] = stars
		message.Stars = stars
	}
	if len(updates) > 0 {
		if err := db.Model(message).Updates(updates).Error; err != nil {
			return nil, utils.PersistenceError("update feedback", err)
		}
	}

	entry := toHistoryEntry(*message)
	return &entry, nil
}

// DeleteHistory removes every message of a session and reports how many were deleted.
func (s *MessageService) DeleteHistory(ctx context.Context, sessionID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.SessionMessage{})
	if res.Error != nil {
		return 0, utils.PersistenceError("delete chat history", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *MessageService) find(db *gorm.DB, messageID string) (*models.SessionMessage, error) {
	var message models.SessionMessage
	if err := db.First(&message, "message_id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("Message")
		}
		return nil, utils.PersistenceError("fetch message", err)
	}
	return &message, nil
}

func toHistoryEntry(m models.SessionMessage) HistoryEntry {
	return HistoryEntry{
		MessageID: m.MessageID,
		SessionID: m.SessionID,
		Content:   []models.Turn(m.Content),
		Safety:    m.Safety.Data(),
		Feedback:  m.Feedback,
		Like:      m.Like,
		Stars:     m.Stars,
		Timestamp: m.Timestamp,
	}
}

// monotonicClock hands out UTC timestamps that never go backwards, so the
// storage order of a process's messages matches their timestamp order.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	return &monotonicClock{now: now}
}

// Next truncates to milliseconds, the coarsest precision of the supported databases.
func (c *monotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
