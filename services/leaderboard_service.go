package services

import (
	"context"
	"log"
	"time"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/metrics"
	"bingo-event-system/models"

	"gorm.io/gorm"
)

// LeaderboardEntry is one participant's standing in an event.
type LeaderboardEntry struct {
	Rank          int       `json:"rank" gorm:"-"`
	ParticipantID string    `json:"participant_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	Score         int       `json:"score"`
	HasCard       bool      `json:"has_card"`
	JoinedAt      time.Time `json:"joined_at"`
}

// EventLeaderboard is the ranked view of one event.
type EventLeaderboard struct {
	EventID   string             `json:"event_id"`
	EventName string             `json:"event_name"`
	IsPublic  bool               `json:"is_public"`
	Entries   []LeaderboardEntry `json:"entries"`
}

// GlobalEntry is one profile's total across every event.
type GlobalEntry struct {
	Rank       int     `json:"rank" gorm:"-"`
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	TotalScore int     `json:"total_score"`
}

const eventLeaderboardSQL = `
SELECT ep.id AS participant_id,
       ep.user_id AS user_id,
       COALESCE(p.username, '') AS username,
       p.avatar_url AS avatar_url,
       COALESCE(bc.score, 0) AS score,
       CASE WHEN bc.id IS NULL THEN 0 ELSE 1 END AS has_card,
       ep.joined_at AS joined_at
FROM event_participants ep
LEFT JOIN profiles p ON p.id = ep.user_id
LEFT JOIN bingo_cards bc ON bc.event_participant_id = ep.id
WHERE ep.event_id = ?
ORDER BY COALESCE(bc.score, 0) DESC, ep.joined_at ASC, has_card DESC, ep.id ASC`

const globalLeaderboardSQL = `
SELECT p.id AS user_id,
       p.username AS username,
       p.avatar_url AS avatar_url,
       CAST(COALESCE(SUM(bc.score), 0) AS BIGINT) AS total_score
FROM profiles p
LEFT JOIN event_participants ep ON ep.user_id = p.id
LEFT JOIN bingo_cards bc ON bc.event_participant_id = ep.id
GROUP BY p.id, p.username, p.avatar_url
ORDER BY total_score DESC, p.username ASC`

type LeaderboardService struct {
	DB    *gorm.DB
	Views cache.ViewCache
}

func NewLeaderboardService(db *gorm.DB, views cache.ViewCache) *LeaderboardService {
	return &LeaderboardService{DB: db, Views: orNoopCache(views)}
}

// EventLeaderboard ranks participants by score, then by join time.
// Private events are visible to their participants and creator only.
func (s *LeaderboardService) EventLeaderboard(ctx context.Context, viewerID, eventID string) (*EventLeaderboard, error) {
	var event models.Event
	if err := s.DB.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Event")
		}
		return nil, apperrors.Internal("load event", err)
	}

	if !event.IsPublic && !event.IsCreator(viewerID) {
		if viewerID == "" {
			return nil, unauthenticated()
		}
		var n int64
		if err := s.DB.WithContext(ctx).Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", eventID, viewerID).
			Count(&n).Error; err != nil {
			return nil, apperrors.Internal("check participation", err)
		}
		if n == 0 {
			return nil, forbidden("private leaderboard")
		}
	}

	out := &EventLeaderboard{EventID: event.ID, EventName: event.Name, IsPublic: event.IsPublic}
	key := cache.EventLeaderboardKey(eventID)
	hit, err := s.Views.Get(ctx, key, &out.Entries)
	if err != nil {
		log.Printf("[CACHE] read %s: %v", key, err)
	}
	if hit {
		return out, nil
	}

	entries := []LeaderboardEntry{}
	if err := s.DB.WithContext(ctx).Raw(eventLeaderboardSQL, eventID).Scan(&entries).Error; err != nil {
		return nil, apperrors.Internal("event leaderboard", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	out.Entries = entries

	if err := s.Views.Set(ctx, key, entries); err != nil {
		log.Printf("[CACHE] write %s: %v", key, err)
	}
	return out, nil
}

// GlobalLeaderboard sums every profile's card scores across all events.
// It is recomputed on every call.
func (s *LeaderboardService) GlobalLeaderboard(ctx context.Context) ([]GlobalEntry, error) {
	start := time.Now()
	defer func() { metrics.ObserveGlobalLeaderboard(time.Since(start)) }()

	entries := []GlobalEntry{}
	if err := s.DB.WithContext(ctx).Raw(globalLeaderboardSQL).Scan(&entries).Error; err != nil {
		return nil, apperrors.Internal("global leaderboard", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
