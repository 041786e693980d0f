package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey lives in the local database, not in the row store.
type APIKey struct {
	gorm.Model
	UserID     string     `json:"user_id" gorm:"index"`
	Key        string     `json:"key" gorm:"uniqueIndex"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}
