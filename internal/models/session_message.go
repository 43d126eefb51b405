package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Conversation roles used in stored turns.
const (
	RoleSystemTurn    = "system"
	RoleUserTurn      = "user"
	RoleAssistantTurn = "assistant"
)

// Content block types.
const (
	BlockText  = "text"
	BlockImage = "image"
)

// TimestampLayout is the fixed text layout for message timestamps exchanged as strings.
const TimestampLayout = "2006-01-02 15:04:05"

// ContentBlock is one piece of a turn: text or an image reference.
type ContentBlock struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Turn is a role-tagged list of content blocks.
type Turn struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextTurn builds a turn holding a single text block.
func TextTurn(role, text string) Turn {
	return Turn{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// Text concatenates the text blocks of the turn.
func (t Turn) Text() string {
	var out string
	for _, b := range t.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// Safety is the evaluator's verdict on a generated answer.
type Safety struct {
	Score         int    `json:"score"`
	Justification string `json:"justification"`
	SafetyLevel   string `json:"safety_level"`
}

// SessionMessage stores one turn pair (user prompt + assistant answer).
type SessionMessage struct {
	MessageID string                     `gorm:"primaryKey;size:36" json:"message_id"`
	SessionID string                     `gorm:"size:64;not null;index" json:"session_id"`
	CaseID    string                     `gorm:"size:64;not null;index" json:"case_id"`
	PatientID string                     `gorm:"size:64;not null;index" json:"patient_id"`
	Content   datatypes.JSONSlice[Turn]  `gorm:"not null" json:"content"`
	Safety    datatypes.JSONType[Safety] `gorm:"not null" json:"safety"`
	Feedback  *string                    `gorm:"type:text" json:"feedback"`
	Like      *bool                      `gorm:"column:like" json:"like"`
	Stars     int                        `gorm:"not null;default:0" json:"stars"`
	Timestamp time.Time                  `gorm:"not null;index" json:"timestamp"`
}

// ParseTimestamp parses a timestamp in TimestampLayout as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: expected layout %s", value, TimestampLayout)
	}
	return t, nil
}
