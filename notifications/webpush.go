package notifications

import (
	"context"
	"net/http"
	"time"

	"bingo-event-system/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// VAPIDConfig identifies this server to push services.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// WebPushSender delivers through the standard Web Push protocol.
type WebPushSender struct {
	opts webpush.Options
}

func NewWebPushSender(cfg VAPIDConfig) *WebPushSender {
	return &WebPushSender{opts: webpush.Options{
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		Subscriber:      cfg.Subject,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             60 * 60 * 24,
	}}
}

func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub *models.PushSubscription) (int, error) {
	opts := s.opts
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
