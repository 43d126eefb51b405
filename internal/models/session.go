package models

// DefaultSessionTitle is used when a turn is appended to a session that was
// never created explicitly.
const DefaultSessionTitle = "New Session"

// ChatSession is a conversation thread about one case of one patient.
// CaseID and PatientID never change after creation.
type ChatSession struct {
	SessionID string `gorm:"primaryKey;size:64" json:"session_id"`
	Title     string `gorm:"size:255" json:"title"`
	CaseID    string `gorm:"size:64;not null;index" json:"case_id"`
	PatientID string `gorm:"size:64;not null;index" json:"patient_id"`
	Timestamps

	Messages []SessionMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the table name used by ChatSession
func (ChatSession) TableName() string {
	return "chat_session"
}
