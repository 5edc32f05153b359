package models

// Profile is one per authenticated identity. ID matches the identity provider's user id.
type Profile struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	Username    string  `json:"username" gorm:"uniqueIndex;not null;size:50"`
	UsernameKey string  `json:"-" gorm:"uniqueIndex;not null;size:200"` // case-folded Username
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Timestamps
}
