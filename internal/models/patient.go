package models

import (
	"gorm.io/datatypes"
)

// Patient is the subject of cases and chat sessions.
type Patient struct {
	PatientID      string `gorm:"primaryKey;size:64" json:"patient_id"`
	Name           string `gorm:"size:255;not null" json:"name"`
	Age            int    `gorm:"not null" json:"age"`
	Gender         string `gorm:"size:32;not null" json:"gender"`
	DOB            string `gorm:"column:dob;size:32;not null" json:"dob"`
	Height         string `gorm:"size:32" json:"height,omitempty"`
	Weight         string `gorm:"size:32" json:"weight,omitempty"`
	MedicalHistory string `gorm:"type:text" json:"medical_history,omitempty"`
	Timestamps

	Cases    []Case           `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions []ChatSession    `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []SessionMessage `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

// CasePriority labels how urgent a case is.
type CasePriority string

const (
	PriorityLow    CasePriority = "low"
	PriorityMedium CasePriority = "medium"
	PriorityHigh   CasePriority = "high"
)

// Case groups the chat sessions held about one clinical question for a patient.
type Case struct {
	CaseID      string                      `gorm:"primaryKey;size:64" json:"case_id"`
	PatientID   string                      `gorm:"size:64;not null;index" json:"patient_id"`
	CaseName    string                      `gorm:"size:255;not null" json:"case_name"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Priority    CasePriority                `gorm:"size:20" json:"priority,omitempty"`
	Timestamps

	Sessions []ChatSession    `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []SessionMessage `gorm:"foreignKey:CaseID;constraint:OnDelete:CASCADE" json:"-"`
}
