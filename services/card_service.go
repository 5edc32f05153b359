package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/metrics"
	"bingo-event-system/models"
	"bingo-event-system/notifications"
	"bingo-event-system/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxWriteAttempts bounds the read-modify-write loop when another writer
// bumps the card revision first.
const maxWriteAttempts = 3

// CellInput is one cell of a card payload. Status is accepted for
// compatibility and always ignored.
type CellInput struct {
	ID     int               `json:"id" validate:"min=1,max=9"`
	Text   string            `json:"text" validate:"max=50"`
	Status models.CellStatus `json:"status,omitempty"`
}

// SaveCardInput creates a card when BingoCardID is nil and updates its texts otherwise.
type SaveCardInput struct {
	EventID            string      `json:"event_id" validate:"required"`
	EventParticipantID string      `json:"event_participant_id" validate:"required"`
	BingoCardID        *string     `json:"bingo_card_id"`
	Cells              []CellInput `json:"cells" validate:"len=9,dive"`
	UserID             string      `json:"user_id"`
	ExpectedRevision   *int        `json:"expected_revision,omitempty"`
}

// AdvanceCellInput moves one cell a single step along the status cycle.
type AdvanceCellInput struct {
	BingoCardID      string `json:"bingo_card_id" validate:"required"`
	CellID           int    `json:"cell_id"`
	EventID          string `json:"event_id" validate:"required"`
	ExpectedRevision *int   `json:"expected_revision,omitempty"`
}

// MyCard is the caller's participation in an event and their card, if any.
type MyCard struct {
	EventParticipantID string            `json:"event_participant_id"`
	Card               *models.BingoCard `json:"bingo_card"`
}

type CardService struct {
	DB       *gorm.DB
	Notifier Notifier
	Views    cache.ViewCache

	// AllowOwnerValidation lets card owners advance cells on their own card.
	AllowOwnerValidation bool
}

func NewCardService(db *gorm.DB, notifier Notifier, views cache.ViewCache, allowOwnerValidation bool) *CardService {
	return &CardService{
		DB:                   db,
		Notifier:             orNoopNotifier(notifier),
		Views:                orNoopCache(views),
		AllowOwnerValidation: allowOwnerValidation,
	}
}

var errStaleWrite = errors.New("card revision changed")

func revisionConflict() error {
	return apperrors.New(apperrors.CodeRevisionConflict, "The card was modified concurrently. Reload and try again.")
}

// SaveCard writes the owner's cell texts. Statuses are never taken from the payload.
func (s *CardService) SaveCard(ctx context.Context, requesterID string, in SaveCardInput) (card *models.BingoCard, err error) {
	defer observe("save_card", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if in.UserID == "" {
		in.UserID = requesterID
	}
	if in.UserID != requesterID {
		return nil, forbidden("cards can only be edited by their owner")
	}
	for i := range in.Cells {
		in.Cells[i].Text = strings.TrimSpace(in.Cells[i].Text)
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	texts, err := cellTexts(in.Cells)
	if err != nil {
		return nil, err
	}

	var participant models.EventParticipant
	err = s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND event_id = ?", in.EventParticipantID, in.UserID, in.EventID).
		First(&participant).Error
	if err != nil {
		if isNotFound(err) {
			return nil, forbidden("participant does not match user and event")
		}
		return nil, apperrors.Internal("load participant", err)
	}

	if in.BingoCardID == nil || *in.BingoCardID == "" {
		card, err = s.createCard(ctx, participant.ID, texts)
	} else {
		card, err = s.updateCardTexts(ctx, participant.ID, *in.BingoCardID, texts, in.ExpectedRevision)
	}
	if err != nil {
		return nil, err
	}
	invalidateEvent(ctx, s.Views, in.EventID)
	return card, nil
}

// cellTexts maps the payload by ordinal, rejecting repeated ordinals.
func cellTexts(cells []CellInput) (map[int]string, error) {
	texts := make(map[int]string, len(cells))
	for i, c := range cells {
		if _, dup := texts[c.ID]; dup {
			return nil, apperrors.Validation(apperrors.FieldError{
				Field:   fmt.Sprintf("cells[%d].id", i),
				Message: fmt.Sprintf("cell %d appears more than once", c.ID),
			})
		}
		texts[c.ID] = c.Text
	}
	return texts, nil
}

func (s *CardService) createCard(ctx context.Context, participantID string, texts map[int]string) (*models.BingoCard, error) {
	cells, err := models.NewCells(texts, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailed, "Validation failed: card must contain cells 1 to 9", err)
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.BingoCard{}).
		Where("event_participant_id = ?", participantID).
		Count(&existing).Error; err != nil {
		return nil, apperrors.Internal("check existing card", err)
	}
	if existing > 0 {
		return nil, apperrors.New(apperrors.CodeCardAlreadyExists, "A card already exists for this participant.")
	}

	card := &models.BingoCard{
		ID:                 uuid.NewString(),
		EventParticipantID: participantID,
		Cells:              cells,
		Score:              cells.Score(),
		Revision:           1,
	}
	if err := s.DB.WithContext(ctx).Create(card).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Wrap(apperrors.CodeCardAlreadyExists, "A card already exists for this participant.", err)
		}
		return nil, apperrors.Internal("create card", err)
	}
	log.Printf("[CARDS] card %s created for participant %s", card.ID, participantID)
	return card, nil
}

func (s *CardService) updateCardTexts(ctx context.Context, participantID, cardID string, texts map[int]string, expected *int) (*models.BingoCard, error) {
	return s.casWrite(ctx, cardID, expected, func(card *models.BingoCard) error {
		if card.EventParticipantID != participantID {
			return apperrors.New(apperrors.CodeCardMismatch, "card does not belong to participant")
		}
		cells, err := models.NewCells(texts, &card.Cells)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeValidationFailed, "Validation failed: card must contain cells 1 to 9", err)
		}
		card.Cells = cells
		return nil
	}, func() error {
		return apperrors.New(apperrors.CodeCardMismatch, "card does not exist")
	})
}

// AdvanceCellStatus moves one cell one step along PENDING -> VALIDATED -> REJECTED -> PENDING.
func (s *CardService) AdvanceCellStatus(ctx context.Context, requesterID string, in AdvanceCellInput) (card *models.BingoCard, err error) {
	defer observe("advance_cell", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var requester models.EventParticipant
	err = s.DB.WithContext(ctx).Preload("Event").
		Where("event_id = ? AND user_id = ?", in.EventID, requesterID).
		First(&requester).Error
	if err != nil {
		if isNotFound(err) {
			return nil, forbidden("requester is not a participant of the event")
		}
		return nil, apperrors.Internal("load requester participation", err)
	}

	var owner models.EventParticipant
	err = s.DB.WithContext(ctx).
		Joins("JOIN bingo_cards ON bingo_cards.event_participant_id = event_participants.id").
		Where("bingo_cards.id = ?", in.BingoCardID).
		First(&owner).Error
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("Card")
		}
		return nil, apperrors.Internal("load card owner", err)
	}
	if owner.EventID != in.EventID {
		return nil, apperrors.New(apperrors.CodeEventMismatch, "card does not belong to the event")
	}
	if owner.UserID == requesterID && !s.AllowOwnerValidation {
		return nil, forbidden("owners cannot validate their own card")
	}

	var next models.CellStatus
	card, err = s.casWrite(ctx, in.BingoCardID, in.ExpectedRevision, func(card *models.BingoCard) error {
		status, err := card.Cells.Advance(in.CellID)
		if err != nil {
			return notFound("Cell")
		}
		next = status
		return nil
	}, func() error {
		return notFound("Card")
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveCellTransition(string(next))
	log.Printf("[CARDS] %s advanced cell %d of card %s to %s (score %d)", requesterID, in.CellID, card.ID, next, card.Score)
	invalidateEvent(ctx, s.Views, in.EventID)

	if requester.Event != nil {
		s.Notifier.Notify(ctx, notifications.Message{
			Title:   "Bingo card updated",
			Body:    fmt.Sprintf("Cell %d is now %s on a card in %s.", in.CellID, next, requester.Event.Name),
			URL:     "/events/" + in.EventID,
			UserIDs: []string{requester.Event.CreatorID},
		})
	}
	return card, nil
}

// casWrite reads the card, applies mutate and writes it back only if the
// revision is unchanged. A lost race is retried unless the caller pinned a
// revision, in which case it surfaces as REVISION_CONFLICT.
func (s *CardService) casWrite(ctx context.Context, cardID string, expected *int, mutate func(*models.BingoCard) error, missing func() error) (*models.BingoCard, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var card models.BingoCard
		if err := s.DB.WithContext(ctx).First(&card, "id = ?", cardID).Error; err != nil {
			if isNotFound(err) {
				return nil, missing()
			}
			return nil, apperrors.Internal("load card", err)
		}
		if expected != nil && *expected != card.Revision {
			return nil, revisionConflict()
		}

		read := card.Revision
		if err := mutate(&card); err != nil {
			return nil, err
		}
		card.Score = card.Cells.Score()
		card.Revision = read + 1

		err := s.writeIfRevision(ctx, &card, read)
		if err == nil {
			return &card, nil
		}
		if !errors.Is(err, errStaleWrite) {
			return nil, apperrors.Internal("save card", err)
		}
		if expected != nil {
			return nil, revisionConflict()
		}
		log.Printf("[CARDS] card %s changed during write, retrying (%d/%d)", cardID, attempt, maxWriteAttempts)
	}
	return nil, revisionConflict()
}

func (s *CardService) writeIfRevision(ctx context.Context, card *models.BingoCard, read int) error {
	res := s.DB.WithContext(ctx).Model(&models.BingoCard{}).
		Where("id = ? AND revision = ?", card.ID, read).
		Updates(map[string]any{
			"cells":    card.Cells,
			"score":    card.Score,
			"revision": card.Revision,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleWrite
	}
	return nil
}

// GetMyCard returns the requester's participant id in the event and their card.
func (s *CardService) GetMyCard(ctx context.Context, requesterID, eventID string) (*MyCard, error) {
	if requesterID == "" {
		return nil, unauthenticated()
	}
	var participant models.EventParticipant
	err := s.DB.WithContext(ctx).Preload("BingoCard").
		Where("event_id = ? AND user_id = ?", eventID, requesterID).
		First(&participant).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotParticipant, "You are not participating in this event.")
		}
		return nil, apperrors.Internal("load participation", err)
	}
	return &MyCard{EventParticipantID: participant.ID, Card: participant.BingoCard}, nil
}
