package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// SessionService creates and edits chat sessions.
type SessionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

// SessionFilter narrows ListSessions. Empty fields match everything.
type SessionFilter struct {
	SessionID string
	CaseID    string
	PatientID string
}

// CreateSession inserts the session unless one with the same id exists.
// Either way the id is returned; an existing row is left untouched. The case
// must belong to the patient.
func (s *SessionService) CreateSession(ctx context.Context, sessionID, title, caseID, patientID string) (string, error) {
	db := s.db.WithContext(ctx)
	if err := checkCaseOwner(db, caseID, patientID); err != nil {
		return "", err
	}
	if err := createSessionIfAbsent(db, sessionID, title, caseID, patientID, s.now().UTC()); err != nil {
		return "", utils.PersistenceError("create session", err)
	}
	return sessionID, nil
}

// checkCaseOwner fails with NotFound for an unknown case and with a
// validation error when the case belongs to another patient.
func checkCaseOwner(db *gorm.DB, caseID, patientID string) error {
	var medicalCase models.Case
	if err := db.Select("case_id", "patient_id").First(&medicalCase, "case_id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundError("Case")
		}
		return utils.PersistenceError("fetch case", err)
	}
	if medicalCase.PatientID != patientID {
		return utils.ValidationError("Case does not belong to patient")
	}
	return nil
}

// checkSessionOwner fails when the session exists under another case or
// patient. A missing session passes.
func checkSessionOwner(db *gorm.DB, sessionID, caseID, patientID string) error {
	var sessions []models.ChatSession
	err := db.Select("session_id", "case_id", "patient_id").
		Where("session_id = ?", sessionID).
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return utils.PersistenceError("fetch session", err)
	}
	if len(sessions) == 0 {
		return nil
	}
	if sessions[0].CaseID != caseID || sessions[0].PatientID != patientID {
		return utils.ValidationError("Session belongs to a different case or patient")
	}
	return nil
}

// createSessionIfAbsent relies on the primary key so concurrent creators
// cannot produce duplicate rows.
func createSessionIfAbsent(tx *gorm.DB, sessionID, title, caseID, patientID string, now time.Time) error {
	session := models.ChatSession{
		SessionID: sessionID,
		Title:     title,
		CaseID:    caseID,
		PatientID: patientID,
	}
	session.Touch(now)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(&session).Error
}

// EditSession renames a session. ok is false when the session does not exist.
func (s *SessionService) EditSession(ctx context.Context, sessionID, title string) (id string, ok bool, err error) {
	db := s.db.WithContext(ctx)
	var session models.ChatSession
	if err := db.First(&session, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, utils.PersistenceError("edit session", err)
	}
	err = db.Model(&session).Updates(map[string]interface{}{
		"title":        title,
		"time_updated": s.now().UTC(),
	}).Error
	if err != nil {
		return "", false, utils.PersistenceError("edit session", err)
	}
	return session.SessionID, true, nil
}

// GetSession returns the session or a NotFound error.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.db.WithContext(ctx).First(&session, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("Session")
		}
		return nil, utils.PersistenceError("fetch session", err)
	}
	return &session, nil
}

// ListSessions returns matching sessions, most recently updated first.
func (s *SessionService) ListSessions(ctx context.Context, filter SessionFilter) ([]models.ChatSession, error) {
	query := s.db.WithContext(ctx).Order("time_updated desc")
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.CaseID != "" {
		query = query.Where("case_id = ?", filter.CaseID)
	}
	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}

	sessions := []models.ChatSession{}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, utils.PersistenceError("list sessions", err)
	}
	return sessions, nil
}

// DeleteSession removes the session and all of its messages.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = models.DeleteSessionCascade(tx, sessionID)
		return err
	})
	if err != nil {
		return utils.PersistenceError("delete session", err)
	}
	if deleted == 0 {
		return utils.NotFoundError("Session")
	}
	return nil
}
