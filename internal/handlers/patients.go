package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medichat-server/internal/models"
	"medichat-server/internal/utils"
)

// PatientHandler handles patient records.
type PatientHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(db *gorm.DB, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{DB: db, Logger: logger}
}

// CreatePatientRequest represents the request body for creating a patient.
type CreatePatientRequest struct {
	PatientID      string `json:"patient_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Age            int    `json:"age" binding:"gte=0"`
	Gender         string `json:"gender" binding:"required"`
	DOB            string `json:"dob" binding:"required"`
	Height         string `json:"height"`
	Weight         string `json:"weight"`
	MedicalHistory string `json:"medical_history"`
}

// CreatePatient handles creating a patient.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	taken, err := exists(db, &models.Patient{}, "patient_id", req.PatientID)
	if err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	if taken {
		utils.BadRequest(c, "Patient ID already exists")
		return
	}

	patient := models.Patient{
		PatientID:      req.PatientID,
		Name:           req.Name,
		Age:            req.Age,
		Gender:         req.Gender,
		DOB:            req.DOB,
		Height:         req.Height,
		Weight:         req.Weight,
		MedicalHistory: req.MedicalHistory,
	}
	patient.Touch(time.Now().UTC())
	if err := db.Create(&patient).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("create patient", err))
		return
	}

	utils.Created(c, "Patient created successfully", patient)
}

// GetPatients lists all patients.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	patients := []models.Patient{}
	if err := h.DB.WithContext(c.Request.Context()).Order("time_created desc").Find(&patients).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("fetch patients", err))
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// GetPatientByID returns a single patient.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	var patient models.Patient
	if err := findByID(h.DB.WithContext(c.Request.Context()), &patient, "patient_id", c.Param("id"), "Patient"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}
	utils.Success(c, "Patient fetched successfully", patient)
}

// UpdatePatientRequest holds the optional fields of a patient update.
type UpdatePatientRequest struct {
	Name           *string `json:"name"`
	Age            *int    `json:"age" binding:"omitempty,gte=0"`
	Gender         *string `json:"gender"`
	DOB            *string `json:"dob"`
	Height         *string `json:"height"`
	Weight         *string `json:"weight"`
	MedicalHistory *string `json:"medical_history"`
}

// UpdatePatient applies the provided fields and leaves the rest unchanged.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req UpdatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	db := h.DB.WithContext(c.Request.Context())
	var patient models.Patient
	if err := findByID(db, &patient, "patient_id", c.Param("id"), "Patient"); err != nil {
		utils.RespondError(c, h.Logger, err)
		return
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Age != nil {
		patient.Age = *req.Age
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.DOB != nil {
		patient.DOB = *req.DOB
	}
	if req.Height != nil {
		patient.Height = *req.Height
	}
	if req.Weight != nil {
		patient.Weight = *req.Weight
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = *req.MedicalHistory
	}
	patient.TimeUpdated = time.Now().UTC()

	if err := db.Save(&patient).Error; err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("update patient", err))
		return
	}
	utils.Success(c, "Patient updated successfully", patient)
}

// DeletePatient removes the patient with all cases, sessions and messages.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	patientID := c.Param("id")

	var deleted int64
	err := h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = models.DeletePatientCascade(tx, patientID)
		return err
	})
	if err != nil {
		utils.RespondError(c, h.Logger, utils.PersistenceError("delete patient", err))
		return
	}
	if deleted == 0 {
		utils.NotFound(c, "Patient not found")
		return
	}

	h.Logger.Info("patient deleted", zap.String("patient_id", patientID))
	utils.Success(c, "Patient deleted successfully", nil)
}
