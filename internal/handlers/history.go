package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/models"
	"medichat-server/internal/services"
	"medichat-server/internal/utils"
)

// HistoryHandler exposes chat sessions and their stored messages.
type HistoryHandler struct {
	DB       *gorm.DB
	Sessions *services.SessionService
	Messages *services.MessageService
	Logger   *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(db *gorm.DB, sessions *services.SessionService, messages *services.MessageService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{DB: db, Sessions: sessions, Messages: messages, Logger: logger}
}

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Title     string `json:"title"`
	CaseID    string `json:"case_id" binding:"required"`
	PatientID string `json:"patient_id" binding:"required"`
}

// CreateSession creates the session unless it already exists. The case and
// patient must exist.
func (h *HistoryHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Title == "" {
		req.Title = models.DefaultSessionTitle
	}

	db := h.DB.WithContext(c.Request.Context())
	if err := findByID(db, &models.Case{}, "case_id", req.CaseID, "Case"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if err := findByID(db, &models.Patient{}, "patient_id", req.PatientID, "Patient"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	sessionID, err := h.Sessions.CreateSession(c.Request.Context(), req.SessionID, req.Title, req.CaseID, req.PatientID)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Created(c, "Session created successfully", gin.H{"session_id": sessionID})
}

// EditSessionRequest represents the request body for renaming a session.
type EditSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

// EditSession renames a session.
func (h *HistoryHandler) EditSession(c *gin.Context) {
	var req EditSessionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	sessionID, ok, err := h.Sessions.EditSession(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if !ok {
		utils.NotFound(c, "Session not found")
		return
	}
	utils.Success(c, "Session updated successfully", gin.H{"session_id": sessionID})
}

// ListSessionsQuery filters ListSessions.
type ListSessionsQuery struct {
	SessionID string `form:"session_id"`
	CaseID    string `form:"case_id"`
	PatientID string `form:"patient_id"`
}

// ListSessions lists sessions, most recently updated first.
func (h *HistoryHandler) ListSessions(c *gin.Context) {
	var query ListSessionsQuery
	if !utils.BindFormAndValidate(c, &query) {
		return
	}

	sessions, err := h.Sessions.ListSessions(c.Request.Context(), services.SessionFilter{
		SessionID: query.SessionID,
		CaseID:    query.CaseID,
		PatientID: query.PatientID,
	})
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Sessions fetched successfully", sessions)
}

// GetMessages returns the ordered history of a session. The optional since
// query parameter ("2006-01-02 15:04:05", UTC) keeps only later messages.
func (h *HistoryHandler) GetMessages(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := models.ParseTimestamp(raw)
		if err != nil {
			utils.RespondError(c, h.Logger, utils.ValidationError(err.Error()))
			return
		}
		since = &t
	}

	history, err := h.Messages.GetHistory(c.Request.Context(), c.Param("session_id"), since)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "History fetched successfully", gin.H{"conversations": history})
}

// DeleteMessages removes the messages of a session and keeps the session.
func (h *HistoryHandler) DeleteMessages(c *gin.Context) {
	deleted, err := h.Messages.DeleteHistory(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "History deleted successfully", gin.H{"deleted": deleted})
}

// DeleteSession removes a session with its messages.
func (h *HistoryHandler) DeleteSession(c *gin.Context) {
	if err := h.Sessions.DeleteSession(c.Request.Context(), c.Param("session_id")); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Session deleted successfully", nil)
}
