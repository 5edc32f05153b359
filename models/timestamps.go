package models

import "time"

// Timestamps adds GORM auto-times. Rows are hard-deleted, so there is no DeletedAt.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
