// Package notifications fans push messages out to registered browsers.
package notifications

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"bingo-event-system/apperrors"
	"bingo-event-system/metrics"
	"bingo-event-system/models"
	"bingo-event-system/validation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Message is one notification addressed to a set of users.
type Message struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	URL     string   `json:"url"`
	UserIDs []string `json:"-"`
}

// Sender delivers one encoded payload and returns the push service's status code.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub *models.PushSubscription) (int, error)
}

// SubscriptionKeys mirrors the keys object of a browser PushSubscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// SubscriptionInput is the browser PushSubscription JSON.
type SubscriptionInput struct {
	Endpoint string           `json:"endpoint" validate:"required,url"`
	Keys     SubscriptionKeys `json:"keys"`
}

// Dispatcher stores subscriptions and delivers messages best effort.
type Dispatcher struct {
	DB          *gorm.DB
	Sender      Sender
	Concurrency int
}

func NewDispatcher(db *gorm.DB, sender Sender, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{DB: db, Sender: sender, Concurrency: concurrency}
}

// Subscribe registers (or replaces) the caller's push subscription.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string, in SubscriptionInput) (*models.PushSubscription, error) {
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "Authentication required.")
	}
	in.Endpoint = strings.TrimSpace(in.Endpoint)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sub := models.PushSubscription{
		ID:       uuid.NewString(),
		UserID:   userID,
		Endpoint: in.Endpoint,
		P256dh:   in.Keys.P256dh,
		Auth:     in.Keys.Auth,
	}
	err := d.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return nil, apperrors.Internal("save push subscription", err)
	}

	var saved models.PushSubscription
	if err := d.DB.WithContext(ctx).Where("user_id = ?", userID).First(&saved).Error; err != nil {
		return nil, apperrors.Internal("load push subscription", err)
	}
	log.Printf("[PUSH] subscription stored for user %s", userID)
	return &saved, nil
}

// Notify delivers msg to every subscription of msg.UserIDs.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	ids := uniqueNonEmpty(msg.UserIDs)
	if len(ids) == 0 {
		return
	}
	var subs []models.PushSubscription
	if err := d.DB.WithContext(ctx).Where("user_id IN ?", ids).Find(&subs).Error; err != nil {
		log.Printf("[PUSH] failed to load subscriptions: %v", err)
		return
	}
	d.deliver(ctx, subs, msg)
}

// NotifyAllSubscribers delivers msg to every stored subscription.
func (d *Dispatcher) NotifyAllSubscribers(ctx context.Context, msg Message) {
	var subs []models.PushSubscription
	if err := d.DB.WithContext(ctx).Find(&subs).Error; err != nil {
		log.Printf("[PUSH] failed to load subscriptions: %v", err)
		return
	}
	d.deliver(ctx, subs, msg)
}

// deliver sends to subs concurrently, waits for the batch, then prunes
// subscriptions the push service reported as gone.
func (d *Dispatcher) deliver(ctx context.Context, subs []models.PushSubscription, msg Message) {
	if len(subs) == 0 {
		return
	}
	if d.Sender == nil {
		log.Printf("[PUSH] push disabled, skipping %d recipients", len(subs))
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[PUSH] failed to encode message: %v", err)
		return
	}

	var (
		mu   sync.Mutex
		gone []string
		g    errgroup.Group
	)
	g.SetLimit(d.Concurrency)
	for i := range subs {
		sub := &subs[i]
		g.Go(func() error {
			status, err := d.Sender.Send(ctx, payload, sub)
			switch {
			case status == http.StatusGone || status == http.StatusNotFound:
				metrics.ObservePushDelivery("gone")
				mu.Lock()
				gone = append(gone, sub.ID)
				mu.Unlock()
			case err != nil || status >= 400:
				metrics.ObservePushDelivery("failed")
				log.Printf("[PUSH] delivery to user %s failed (status %d): %v", sub.UserID, status, err)
			default:
				metrics.ObservePushDelivery("sent")
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(gone) == 0 {
		return
	}
	if err := d.DB.WithContext(ctx).Where("id IN ?", gone).Delete(&models.PushSubscription{}).Error; err != nil {
		log.Printf("[PUSH] failed to prune %d expired subscriptions: %v", len(gone), err)
		return
	}
	log.Printf("[PUSH] pruned %d expired subscriptions", len(gone))
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
