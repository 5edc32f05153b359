package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/models"
	"bingo-event-system/storage"
	"bingo-event-system/validation"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 2 << 20

// UsernameInput is the payload of UpdateProfile and Provision.
type UsernameInput struct {
	Username string `json:"username" validate:"min=3,max=50"`
}

// AvatarUpload is an image file posted by the profile owner.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProfileView is a public profile page.
type ProfileView struct {
	Profile        models.Profile            `json:"profile"`
	CreatedEvents  []models.Event            `json:"created_events"`
	Participations []models.EventParticipant `json:"participations"`
}

type ProfileService struct {
	DB       *gorm.DB
	Uploader storage.Uploader
	Views    cache.ViewCache
}

func NewProfileService(db *gorm.DB, uploader storage.Uploader, views cache.ViewCache) *ProfileService {
	return &ProfileService{DB: db, Uploader: uploader, Views: orNoopCache(views)}
}

// normalizeUsername returns the NFC display form and its case-folded uniqueness key.
func normalizeUsername(raw string) (string, string) {
	name := norm.NFC.String(strings.TrimSpace(raw))
	return name, cases.Fold().String(name)
}

func defaultUsername(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "user-" + short
}

// EnsureProfile creates the caller's profile on first sight. It is idempotent.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.WithContext(ctx).First(&profile, "id = ?", userID).Error
	if err == nil {
		return &profile, nil
	}
	if !isNotFound(err) {
		return nil, apperrors.Internal("load profile", err)
	}

	name, key := normalizeUsername(defaultUsername(userID))
	if err := s.insertProfile(ctx, userID, name, key); err != nil {
		// The default name collides with someone else's; fall back to the full id.
		name, key = normalizeUsername("user-" + userID)
		if err := s.insertProfile(ctx, userID, name, key); err != nil {
			return nil, apperrors.Internal("create profile", err)
		}
	}

	if err := s.DB.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, apperrors.Internal("reload profile", err)
	}
	return &profile, nil
}

func (s *ProfileService) insertProfile(ctx context.Context, userID, name, key string) error {
	profile := models.Profile{ID: userID, Username: name, UsernameKey: key}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&profile)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("👤 [PROFILES] created profile %s as %q", userID, name)
	}
	return nil
}

// Provision creates a profile with a chosen display name on behalf of the identity provider.
func (s *ProfileService) Provision(ctx context.Context, userID string, in UsernameInput) (profile *models.Profile, err error) {
	defer observe("provision_profile", &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.Validation(apperrors.FieldError{Field: "id", Message: "id is required"})
	}
	name, key := normalizeUsername(in.Username)
	in.Username = name
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var existing models.Profile
	err = s.DB.WithContext(ctx).First(&existing, "id = ?", userID).Error
	if err == nil {
		return &existing, nil
	}
	if !isNotFound(err) {
		return nil, apperrors.Internal("load profile", err)
	}

	profile = &models.Profile{ID: userID, Username: name, UsernameKey: key}
	if err := s.DB.WithContext(ctx).Create(profile).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperrors.Wrap(apperrors.CodeUsernameTaken, "This username is already taken.", err)
		}
		return nil, apperrors.Internal("create profile", err)
	}
	return profile, nil
}

// UpdateProfile changes the owner's display name. Names are unique ignoring case.
func (s *ProfileService) UpdateProfile(ctx context.Context, requesterID, userID string, in UsernameInput) (profile *models.Profile, err error) {
	defer observe("update_profile", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if requesterID != userID {
		return nil, forbidden("profiles can only be edited by their owner")
	}
	name, key := normalizeUsername(in.Username)
	in.Username = name
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var taken int64
	if err := s.DB.WithContext(ctx).Model(&models.Profile{}).
		Where("username_key = ? AND id <> ?", key, userID).
		Count(&taken).Error; err != nil {
		return nil, apperrors.Internal("check username", err)
	}
	if taken > 0 {
		return nil, apperrors.New(apperrors.CodeUsernameTaken, "This username is already taken.")
	}

	res := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).
		Updates(map[string]any{"username": name, "username_key": key})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return nil, apperrors.Wrap(apperrors.CodeUsernameTaken, "This username is already taken.", res.Error)
		}
		return nil, apperrors.Internal("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("Profile")
	}

	profile = &models.Profile{}
	if err := s.DB.WithContext(ctx).First(profile, "id = ?", userID).Error; err != nil {
		return nil, apperrors.Internal("reload profile", err)
	}
	s.invalidateParticipantViews(ctx, userID)
	return profile, nil
}

// GetProfile returns a profile with its created and joined events. Private
// events are only listed for the profile owner.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, userID string) (*ProfileView, error) {
	view := &ProfileView{CreatedEvents: []models.Event{}, Participations: []models.EventParticipant{}}
	if err := s.DB.WithContext(ctx).First(&view.Profile, "id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, notFound("Profile")
		}
		return nil, apperrors.Internal("load profile", err)
	}
	self := viewerID != "" && viewerID == userID

	created := s.DB.WithContext(ctx).Where("creator_id = ?", userID)
	if !self {
		created = created.Where("is_public = ?", true)
	}
	if err := created.Order("created_at DESC").Find(&view.CreatedEvents).Error; err != nil {
		return nil, apperrors.Internal("load created events", err)
	}

	joined := s.DB.WithContext(ctx).
		Joins("Event").
		Preload("BingoCard").
		Where("event_participants.user_id = ?", userID)
	if !self {
		joined = joined.Where(`"Event"."is_public" = ?`, true)
	}
	if err := joined.Order("event_participants.joined_at DESC").Find(&view.Participations).Error; err != nil {
		return nil, apperrors.Internal("load participations", err)
	}
	if !self {
		redactAccessCodes(view.CreatedEvents, viewerID)
	}
	for i := range view.Participations {
		if e := view.Participations[i].Event; e != nil && !e.IsCreator(viewerID) {
			e.AccessCode = nil
		}
	}
	return view, nil
}

// UploadAvatar stores an image and points the owner's profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, requesterID string, file AvatarUpload) (profile *models.Profile, err error) {
	defer observe("upload_avatar", &err)

	if requesterID == "" {
		return nil, unauthenticated()
	}
	if s.Uploader == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "Avatar uploads are not configured.")
	}
	var fields []apperrors.FieldError
	if !strings.HasPrefix(file.ContentType, "image/") {
		fields = append(fields, apperrors.FieldError{Field: "avatar", Message: "avatar must be an image"})
	}
	if file.Size <= 0 || file.Size > MaxAvatarBytes {
		fields = append(fields, apperrors.FieldError{Field: "avatar", Message: fmt.Sprintf("avatar must be between 1 byte and %d bytes", MaxAvatarBytes)})
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields...)
	}

	key := fmt.Sprintf("avatars/%s/%s%s", requesterID, uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	url, err := s.Uploader.Upload(ctx, key, file.ContentType, io.LimitReader(file.Body, MaxAvatarBytes))
	if err != nil {
		return nil, apperrors.Internal("upload avatar", err)
	}

	res := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", requesterID).Update("avatar_url", url)
	if res.Error != nil {
		return nil, apperrors.Internal("save avatar", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFound("Profile")
	}

	profile = &models.Profile{}
	if err := s.DB.WithContext(ctx).First(profile, "id = ?", requesterID).Error; err != nil {
		return nil, apperrors.Internal("reload profile", err)
	}
	log.Printf("👤 [PROFILES] avatar updated for %s", requesterID)
	s.invalidateParticipantViews(ctx, requesterID)
	return profile, nil
}

// invalidateParticipantViews drops the cached views of every event the user
// takes part in, since they embed the username and avatar.
func (s *ProfileService) invalidateParticipantViews(ctx context.Context, userID string) {
	var eventIDs []string
	if err := s.DB.WithContext(ctx).Model(&models.EventParticipant{}).
		Where("user_id = ?", userID).
		Pluck("event_id", &eventIDs).Error; err != nil {
		log.Printf("[CACHE] failed to list events of %s: %v", userID, err)
		return
	}
	for _, eventID := range eventIDs {
		invalidateEvent(ctx, s.Views, eventID)
	}
}
