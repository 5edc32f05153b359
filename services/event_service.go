package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/models"
	"bingo-event-system/notifications"
	"bingo-event-system/validation"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// EventFields are the editable attributes of an event.
type EventFields struct {
	Name        string     `json:"name" validate:"min=3,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	EventDate   *EventDate `json:"event_date"`
	IsPublic    bool       `json:"is_public"`
	AccessCode  *string    `json:"access_code" validate:"omitempty,max=50"`
}

// EventDate is the scheduled day of an event. It accepts a plain YYYY-MM-DD
// date, as sent by date pickers, or a full RFC 3339 timestamp.
type EventDate struct {
	time.Time
}

const eventDateLayout = "2006-01-02"

func (d *EventDate) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("event_date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(eventDateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("event_date %q is neither YYYY-MM-DD nor RFC 3339", raw)
	}
	d.Time = t
	return nil
}

// Ptr returns the date as stored on the event, or nil when unset.
func (d *EventDate) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// normalize trims text fields, turns blanks into nil and clears the access
// code of public events.
func (f *EventFields) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = trimmedOrNil(f.Description)
	f.AccessCode = trimmedOrNil(f.AccessCode)
	if f.IsPublic {
		f.AccessCode = nil
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// CreateEventInput is the payload of CreateEvent. CreatorID must be the requester.
type CreateEventInput struct {
	EventFields
	CreatorID string `json:"creator_id"`
}

// MyEvents splits the events a user is involved in.
type MyEvents struct {
	Created       []models.Event `json:"created"`
	Participating []models.Event `json:"participating"`
}

type EventService struct {
	DB       *gorm.DB
	Notifier Notifier
	Views    cache.ViewCache
}

func NewEventService(db *gorm.DB, notifier Notifier, views cache.ViewCache) *EventService {
	return &EventService{DB: db, Notifier: orNoopNotifier(notifier), Views: orNoopCache(views)}
}

// CreateEvent inserts the event and its creator's participant row in one transaction.
func (s *EventService) CreateEvent(ctx context.Context, requesterID string, in CreateEventInput) (event *models.Event, err error) {
	defer observe("create_event", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if in.CreatorID == "" {
		in.CreatorID = requesterID
	}
	if in.CreatorID != requesterID {
		return nil, forbidden("events can only be created for oneself")
	}
	in.normalize()
	if err := validation.Struct(in.EventFields); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event = &models.Event{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        slug.Make(in.Name),
		Description: in.Description,
		EventDate:   in.EventDate.Ptr(),
		IsPublic:    in.IsPublic,
		AccessCode:  in.AccessCode,
		CreatorID:   requesterID,
	}
	participant := models.EventParticipant{
		ID:       uuid.NewString(),
		EventID:  event.ID,
		UserID:   requesterID,
		JoinedAt: now,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Wrap(apperrors.CodeConstraintViolated, "Event could not be created.", err)
		}
		return nil, apperrors.Internal("create event", err)
	}
	log.Printf("✅ [EVENTS] %s created event %s (%s)", requesterID, event.ID, event.Name)

	if event.IsPublic {
		s.Notifier.NotifyAllSubscribers(ctx, notifications.Message{
			Title: "New public event",
			Body:  fmt.Sprintf("%s is open. Join and fill your card!", event.Name),
			URL:   "/events/" + event.ID,
		})
	}
	return event, nil
}

// UpdateEvent replaces the editable fields. Only the creator may call it.
func (s *EventService) UpdateEvent(ctx context.Context, requesterID, eventID string, in EventFields) (event *models.Event, err error) {
	defer observe("update_event", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	event = &models.Event{}
	if err := s.DB.WithContext(ctx).First(event, "id = ?", eventID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Event")
		}
		return nil, apperrors.Internal("load event", err)
	}
	if !event.IsCreator(requesterID) {
		return nil, forbidden("only the creator can edit an event")
	}
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Model(event).Updates(map[string]any{
		"name":        in.Name,
		"slug":        slug.Make(in.Name),
		"description": in.Description,
		"event_date":  in.EventDate.Ptr(),
		"is_public":   in.IsPublic,
		"access_code": in.AccessCode,
	}).Error
	if err != nil {
		return nil, apperrors.Internal("update event", err)
	}
	if err := s.DB.WithContext(ctx).First(event, "id = ?", eventID).Error; err != nil {
		return nil, apperrors.Internal("reload event", err)
	}
	invalidateEvent(ctx, s.Views, eventID)
	return event, nil
}

// JoinEvent adds userID to the event. Private events need the matching access code.
func (s *EventService) JoinEvent(ctx context.Context, requesterID, eventID, userID, accessCode string) (participant *models.EventParticipant, err error) {
	defer observe("join_event", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if requesterID != userID {
		return nil, forbidden("cannot join on behalf of another user")
	}

	var event models.Event
	if err := s.DB.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Event")
		}
		return nil, apperrors.Internal("load event", err)
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.EventParticipant{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&existing).Error; err != nil {
		return nil, apperrors.Internal("check participation", err)
	}
	if existing > 0 {
		return nil, apperrors.New(apperrors.CodeAlreadyParticipant, "You are already participating in this event.")
	}

	if !event.IsPublic {
		if event.AccessCode == nil || *event.AccessCode == "" {
			return nil, apperrors.New(apperrors.CodeJoinBlocked, "This private event cannot be joined.")
		}
		if strings.TrimSpace(accessCode) != *event.AccessCode {
			return nil, apperrors.New(apperrors.CodeAccessCodeMismatch, "Incorrect access code.")
		}
	}

	participant = &models.EventParticipant{
		ID:       uuid.NewString(),
		EventID:  eventID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(participant).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Wrap(apperrors.CodeAlreadyParticipant, "You are already participating in this event.", err)
		}
		return nil, apperrors.Internal("join event", err)
	}
	log.Printf("[EVENTS] %s joined event %s", userID, eventID)
	invalidateEvent(ctx, s.Views, eventID)
	return participant, nil
}

// LeaveEvent removes userID's participation and card. The creator cannot leave.
func (s *EventService) LeaveEvent(ctx context.Context, requesterID, eventID, userID string) (err error) {
	defer observe("leave_event", &err)

	if requesterID == "" {
		return unauthenticated()
	}
	if requesterID != userID {
		return forbidden("cannot leave on behalf of another user")
	}

	var participant models.EventParticipant
	err = s.DB.WithContext(ctx).Preload("Event").
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&participant).Error
	if err != nil {
		if isNotFound(err) {
			return apperrors.New(apperrors.CodeNotParticipant, "You are not participating in this event.")
		}
		return apperrors.Internal("load participation", err)
	}
	if participant.Event != nil && participant.Event.IsCreator(userID) {
		return apperrors.New(apperrors.CodeCreatorCannotLeave, "The creator cannot leave their own event.")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_participant_id = ?", participant.ID).Delete(&models.BingoCard{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", participant.ID).Delete(&models.EventParticipant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return apperrors.New(apperrors.CodeNotParticipant, "You are not participating in this event.")
		}
		return apperrors.Internal("leave event", err)
	}
	log.Printf("[EVENTS] %s left event %s", userID, eventID)
	invalidateEvent(ctx, s.Views, eventID)
	return nil
}

// ListEvents returns public events plus the viewer's own private ones, newest first.
func (s *EventService) ListEvents(ctx context.Context, viewerID string) ([]models.Event, error) {
	q := s.DB.WithContext(ctx).Preload("Creator")
	if viewerID == "" {
		q = q.Where("is_public = ?", true)
	} else {
		q = q.Where("is_public = ? OR creator_id = ?", true, viewerID)
	}

	var events []models.Event
	if err := q.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, apperrors.Internal("list events", err)
	}
	redactAccessCodes(events, viewerID)
	return events, nil
}

// MyEvents returns events the user created and events they joined without creating.
func (s *EventService) MyEvents(ctx context.Context, userID string) (*MyEvents, error) {
	if userID == "" {
		return nil, unauthenticated()
	}
	out := &MyEvents{Created: []models.Event{}, Participating: []models.Event{}}

	if err := s.DB.WithContext(ctx).Preload("Creator").
		Where("creator_id = ?", userID).
		Order("created_at DESC").
		Find(&out.Created).Error; err != nil {
		return nil, apperrors.Internal("list created events", err)
	}

	joined := s.DB.Model(&models.EventParticipant{}).Select("event_id").Where("user_id = ?", userID)
	if err := s.DB.WithContext(ctx).Preload("Creator").
		Where("id IN (?) AND creator_id <> ?", joined, userID).
		Order("created_at DESC").
		Find(&out.Participating).Error; err != nil {
		return nil, apperrors.Internal("list joined events", err)
	}
	redactAccessCodes(out.Participating, userID)
	return out, nil
}

// GetEvent returns the event with its creator and every participant's profile
// and card, participants ordered by username.
func (s *EventService) GetEvent(ctx context.Context, viewerID, eventID string) (*models.Event, error) {
	var event models.Event
	hit, err := s.Views.Get(ctx, cache.EventKey(eventID), &event)
	if err != nil {
		log.Printf("[CACHE] read %s: %v", cache.EventKey(eventID), err)
	}
	if !hit {
		event = models.Event{}
		err := s.DB.WithContext(ctx).
			Preload("Creator").
			Preload("Participants.User").
			Preload("Participants.BingoCard").
			First(&event, "id = ?", eventID).Error
		if err != nil {
			if isNotFound(err) {
				return nil, notFound("Event")
			}
			return nil, apperrors.Internal("load event", err)
		}
		sortParticipants(event.Participants)
		if err := s.Views.Set(ctx, cache.EventKey(eventID), &event); err != nil {
			log.Printf("[CACHE] write %s: %v", cache.EventKey(eventID), err)
		}
	}

	if !event.IsCreator(viewerID) {
		event.AccessCode = nil
	}
	return &event, nil
}

func sortParticipants(ps []models.EventParticipant) {
	name := func(p models.EventParticipant) string {
		if p.User == nil {
			return ""
		}
		return p.User.Username
	}
	sort.SliceStable(ps, func(i, j int) bool { return name(ps[i]) < name(ps[j]) })
}

func redactAccessCodes(events []models.Event, viewerID string) {
	for i := range events {
		if !events[i].IsCreator(viewerID) {
			events[i].AccessCode = nil
		}
	}
}
