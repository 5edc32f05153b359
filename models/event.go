package models

import "time"

// Event is a hosted bingo session.
type Event struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name" gorm:"not null;size:100"`
	Slug        string     `json:"slug" gorm:"index"`
	Description *string    `json:"description,omitempty" gorm:"size:500"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	IsPublic    bool       `json:"is_public" gorm:"not null"`
	AccessCode  *string    `json:"access_code,omitempty" gorm:"size:50"`
	CreatorID   string     `json:"creator_id" gorm:"not null;index"`
	Timestamps

	// Relationships
	Creator      *Profile           `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Participants []EventParticipant `json:"participants,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// IsCreator reports whether userID created the event.
func (e *Event) IsCreator(userID string) bool {
	return userID != "" && e.CreatorID == userID
}

// EventParticipant joins a Profile to an Event. At most one row per (event, user).
type EventParticipant struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	EventID  string    `json:"event_id" gorm:"not null;uniqueIndex:idx_event_participant_event_user"`
	UserID   string    `json:"user_id" gorm:"not null;uniqueIndex:idx_event_participant_event_user;index"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`

	// Relationships
	User      *Profile   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Event     *Event     `json:"event,omitempty" gorm:"foreignKey:EventID"`
	BingoCard *BingoCard `json:"bingo_card,omitempty" gorm:"foreignKey:EventParticipantID;constraint:OnDelete:CASCADE"`
}
