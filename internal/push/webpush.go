package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
)

type webPushGateway struct {
	logger          zerolog.Logger
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
	ttl             int
}

// NewWebPushGateway builds a Gateway speaking the Web Push protocol
// with VAPID authentication. subscriber is the contact address the
// push service may use to reach the operator.
func NewWebPushGateway(
	logger zerolog.Logger,
	subscriber string,
	vapidPublicKey string,
	vapidPrivateKey string,
	ttl int,
) Gateway {
	return &webPushGateway{
		logger:          logger,
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
		ttl:             ttl,
	}
}

func (g *webPushGateway) Send(ctx context.Context, sub models.PushSubscription, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      g.subscriber,
		VAPIDPublicKey:  g.vapidPublicKey,
		VAPIDPrivateKey: g.vapidPrivateKey,
		TTL:             g.ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		g.logger.Warn().
			Str("endpoint", sub.Endpoint).
			Int("status", resp.StatusCode).
			Msg("push endpoint gone")
		return ErrEndpointGone
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("push service responded with status %d", resp.StatusCode)
	}

	g.logger.Debug().
		Str("endpoint", sub.Endpoint).
		Int("status", resp.StatusCode).
		Msg("sent push")
	return nil
}
