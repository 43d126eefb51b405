package models

// Token records an issued access/refresh pair. Status true means active.
type Token struct {
	TokenID      string `gorm:"primaryKey;size:36" json:"token_id"`
	UserID       string `gorm:"size:64;not null;index" json:"user_id"`
	AccessToken  string `gorm:"type:text;not null" json:"-"`
	RefreshToken string `gorm:"type:text;not null" json:"-"`
	Status       bool   `gorm:"not null;default:false" json:"status"`
	Timestamps
}
