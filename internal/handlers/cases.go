package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// CaseHandler handles patient cases.
type CaseHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(db *gorm.DB, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{DB: db, Logger: logger}
}

// CreateCaseRequest represents the request body for creating a case.
type CreateCaseRequest struct {
	CaseID      string              `json:"case_id" binding:"required"`
	PatientID   string              `json:"patient_id" binding:"required"`
	CaseName    string              `json:"case_name" binding:"required"`
	Description string              `json:"description" binding:"required"`
	Tags        []string            `json:"tags"`
	Priority    models.CasePriority `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// CreateCase handles creating a case for an existing patient.
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	found, err := exists(db, &models.Patient{}, "patient_id", req.PatientID)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if !found {
		utils.NotFound(c, "Patient not found")
		return
	}

	taken, err := exists(db, &models.Case{}, "case_id", req.CaseID)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if taken {
		utils.BadRequest(c, "Case ID already exists")
		return
	}

	if req.Tags == nil {
		req.Tags = []string{}
	}
	medicalCase := models.Case{
		CaseID:      req.CaseID,
		PatientID:   req.PatientID,
		CaseName:    req.CaseName,
		Description: req.Description,
		Tags:        datatypes.JSONSlice[string](req.Tags),
		Priority:    req.Priority,
	}
	medicalCase.Touch(time.Now().UTC())
	if err := db.Create(&medicalCase).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("create case", err))
		return
	}

	utils.Created(c, "Case created successfully", medicalCase)
}

// GetCases lists cases, optionally filtered by the patient_id query parameter.
func (h *CaseHandler) GetCases(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Order("time_created desc")
	if patientID := c.Query("patient_id"); patientID != "" {
		query = query.Where("patient_id = ?", patientID)
	}

	cases := []models.Case{}
	if err := query.Find(&cases).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("fetch cases", err))
		return
	}
	utils.Success(c, "Cases fetched successfully", cases)
}

// GetCaseByID returns a single case.
func (h *CaseHandler) GetCaseByID(c *gin.Context) {
	var medicalCase models.Case
	if err := findByID(h.DB.WithContext(c.Request.Context()), &medicalCase, "case_id", c.Param("id"), "Case"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Case fetched successfully", medicalCase)
}

// UpdateCaseRequest holds the optional fields of a case update. The owning
// patient cannot be changed.
type UpdateCaseRequest struct {
	CaseName    *string              `json:"case_name"`
	Description *string              `json:"description"`
	Tags        *[]string            `json:"tags"`
	Priority    *models.CasePriority `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// UpdateCase applies the provided fields and leaves the rest unchanged.
func (h *CaseHandler) UpdateCase(c *gin.Context) {
	var req UpdateCaseRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var medicalCase models.Case
	if err := findByID(db, &medicalCase, "case_id", c.Param("id"), "Case"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	if req.CaseName != nil {
		medicalCase.CaseName = *req.CaseName
	}
	if req.Description != nil {
		medicalCase.Description = *req.Description
	}
	if req.Tags != nil {
		medicalCase.Tags = datatypes.JSONSlice[string](*req.Tags)
	}
	if req.Priority != nil {
		medicalCase.Priority = *req.Priority
	}
	medicalCase.TimeUpdated = time.Now().UTC()

	if err := db.Save(&medicalCase).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("update case", err))
		return
	}
	utils.Success(c, "Case updated successfully", medicalCase)
}

// DeleteCase removes the case with its sessions and messages.
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	caseID := c.Param("id")

	var deleted int64
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = models.DeleteCaseCascade(tx, caseID)
		return err
	})
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("delete case", err))
		return
	}
	if deleted == 0 {
		utils.NotFound(c, "Case not found")
		return
	}

	utils.Success(c, "Case deleted successfully", nil)
}
