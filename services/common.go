package services

import (
	"context"
	"errors"
	"log"

	"bingo-event-system/apperrors"
	"bingo-event-system/cache"
	"bingo-event-system/metrics"
	"bingo-event-system/notifications"

	"gorm.io/gorm"
)

// Notifier is the best-effort push fan-out used after mutations.
type Notifier interface {
	Notify(ctx context.Context, msg notifications.Message)
	NotifyAllSubscribers(ctx context.Context, msg notifications.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, notifications.Message)               {}
func (noopNotifier) NotifyAllSubscribers(context.Context, notifications.Message) {}

func orNoopNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func orNoopCache(v cache.ViewCache) cache.ViewCache {
	if v == nil {
		return cache.Noop{}
	}
	return v
}

func unauthenticated() error {
	return apperrors.New(apperrors.CodeUnauthenticated, "Authentication required.")
}

// forbidden keeps the reason for logs; callers only ever see the generic message.
func forbidden(reason string) error {
	return apperrors.New(apperrors.CodeForbidden, reason)
}

func notFound(what string) error {
	return apperrors.New(apperrors.CodeNotFound, what+" not found.")
}

// observe records the mutation outcome and guarantees a typed error leaves the service.
func observe(operation string, errp *error) {
	if *errp != nil {
		*errp = apperrors.From(*errp)
	}
	metrics.ObserveMutation(operation, string(apperrors.CodeOf(*errp)))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// invalidateEvent drops every cached view of the event. Failures are logged only.
func invalidateEvent(ctx context.Context, views cache.ViewCache, eventID string) {
	if err := views.Invalidate(ctx, cache.EventKeys(eventID)...); err != nil {
		log.Printf("[CACHE] failed to invalidate views for event %s: %v", eventID, err)
	}
}
