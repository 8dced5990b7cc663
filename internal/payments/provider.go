package payments

import (
	"context"

	"invitedoffer/offerroom/internal/models"
)

// CheckoutSession is the subset of a hosted checkout session the app needs.
type CheckoutSession struct {
	ID      string
	URL     string
	PriceID string
}

// WebhookEvent is a verified event received from the payment provider.
type WebhookEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
}

// EventCheckoutCompleted is the event type that activates a room.
const EventCheckoutCompleted = "checkout.session.completed"

// Provider abstracts the hosted checkout provider. Implementations must
// verify webhook signatures in ParseWebhookEvent before returning an event.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, room *models.Room, successURL, cancelURL string) (*CheckoutSession, error)
	IsSessionPaid(ctx context.Context, sessionID string) (bool, error)
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}
