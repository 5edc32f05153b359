package models

// PushSubscription is the single web-push registration kept per user.
type PushSubscription struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"uniqueIndex;not null"`
	Endpoint string `json:"endpoint" gorm:"type:text;not null"`
	P256dh   string `json:"p256dh" gorm:"not null"`
	Auth     string `json:"auth" gorm:"not null"`
	Timestamps
}
