package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/dbtest"
	"bingo-event-system/models"
	"bingo-event-system/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu        sync.Mutex
	direct    []notifications.Message
	broadcast []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, msg)
}

func (r *recordingNotifier) NotifyAllSubscribers(_ context.Context, msg notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, msg)
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	views    *cache.Memory
	notifier *recordingNotifier
	events   *EventService
	cards    *CardService
	boards   *LeaderboardService
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.SeedProfiles(t, db, "alice", "bob", "carol", "dave")

	views := cache.NewMemory()
	notifier := &recordingNotifier{}
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		views:    views,
		notifier: notifier,
		events:   NewEventService(db, notifier, views),
		cards:    NewCardService(db, notifier, views, false),
		boards:   NewLeaderboardService(db, views),
		profiles: NewProfileService(db, nil, views),
	}
}

func strPtr(s string) *string { return &s }

func (f *fixture) createEvent(t *testing.T, creator, name string, public bool, code *string) *models.Event {
	t.Helper()
	event, err := f.events.CreateEvent(f.ctx, creator, CreateEventInput{
		EventFields: EventFields{Name: name, IsPublic: public, AccessCode: code},
		CreatorID:   creator,
	})
	require.NoError(t, err)
	return event
}

func (f *fixture) join(t *testing.T, user, eventID, code string) *models.EventParticipant {
	t.Helper()
	p, err := f.events.JoinEvent(f.ctx, user, eventID, user, code)
	require.NoError(t, err)
	return p
}

func (f *fixture) participant(t *testing.T, user, eventID string) *models.EventParticipant {
	t.Helper()
	var p models.EventParticipant
	require.NoError(t, f.db.Where("event_id = ? AND user_id = ?", eventID, user).First(&p).Error)
	return &p
}

func cellInputs(prefix string) []CellInput {
	cells := make([]CellInput, models.CellCount)
	for i := range cells {
		cells[i] = CellInput{ID: i + 1, Text: fmt.Sprintf("%s%d", prefix, i+1)}
	}
	return cells
}

func (f *fixture) createCard(t *testing.T, user, eventID, participantID, prefix string) *models.BingoCard {
	t.Helper()
	card, err := f.cards.SaveCard(f.ctx, user, SaveCardInput{
		EventID:            eventID,
		EventParticipantID: participantID,
		Cells:              cellInputs(prefix),
		UserID:             user,
	})
	require.NoError(t, err)
	return card
}

func (f *fixture) advance(t *testing.T, user, eventID, cardID string, cellID int) *models.BingoCard {
	t.Helper()
	card, err := f.cards.AdvanceCellStatus(f.ctx, user, AdvanceCellInput{
		BingoCardID: cardID,
		CellID:      cellID,
		EventID:     eventID,
	})
	require.NoError(t, err)
	return card
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.CodeOf(err), "unexpected error: %v", err)
}

// afterFirstQuery runs fn once, right after the first query that reads table.
// It lets a test slip a conflicting row in between a service's existence check
// and its insert.
func (f *fixture) afterFirstQuery(t *testing.T, table string, fn func()) {
	t.Helper()
	var once sync.Once
	err := f.db.Callback().Query().After("gorm:query").Register("test:after_first_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			once.Do(fn)
		}
	})
	require.NoError(t, err)
}

func cellStatus(t *testing.T, card *models.BingoCard, id int) models.CellStatus {
	t.Helper()
	c, err := card.Cells.Get(id)
	require.NoError(t, err)
	return c.Status
}
