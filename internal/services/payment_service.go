package services

import (
	"context"
	"fmt"
	"log"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/payments"
)

// VerifyResult is the outcome of a synchronous payment verification.
type VerifyResult struct {
	Paid    bool
	Pending bool
	Room    *models.Room
}

// IPaymentService bridges hosted checkout to room activation.
type IPaymentService interface {
	StartCheckout(ctx context.Context, roomID, baseURL string) (string, error)
	VerifyPayment(ctx context.Context, roomID, sessionID, baseURL string) (*VerifyResult, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, signature, baseURL string) error
}

// paymentService implements IPaymentService.
type paymentService struct {
	cfg         *config.Config
	provider    payments.Provider
	roomService IRoomService
	notifier    INotificationService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(cfg *config.Config, provider payments.Provider, roomService IRoomService, notifier INotificationService) IPaymentService {
	return &paymentService{
		cfg:         cfg,
		provider:    provider,
		roomService: roomService,
		notifier:    notifier,
	}
}

// StartCheckout opens a hosted checkout session for the room's plan and
// records the session on the room. Re-running checkout on an unpaid room
// replaces the previous session.
func (s *paymentService) StartCheckout(ctx context.Context, roomID, baseURL string) (string, error) {
	room, err := s.roomService.FindRoomByID(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.IsPaid {
		return "", invalidStateErr("room already paid")
	}

	successURL := baseURL + "/room/ready/" + roomID + "?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := baseURL + "/create"

	session, err := s.provider.CreateCheckoutSession(ctx, room, successURL, cancelURL)
	if err != nil {
		return "", upstreamErr(err, "failed to create checkout session")
	}

	if err := s.roomService.AttachCheckoutSession(ctx, roomID, session.ID, session.PriceID); err != nil {
		return "", fmt.Errorf("failed to record checkout session %s: %w", session.ID, err)
	}

	return session.URL, nil
}

// VerifyPayment is the synchronous fallback for clients landing on the
// success page before the webhook arrives. The session must match the one
// recorded for the room; a paid room short-circuits without touching the
// provider.
func (s *paymentService) VerifyPayment(ctx context.Context, roomID, sessionID, baseURL string) (*VerifyResult, error) {
	room, err := s.roomService.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.PaymentSessionID == nil || *room.PaymentSessionID != sessionID {
		return nil, unauthorizedErr("invalid session for this room")
	}
	if room.IsPaid {
		return &VerifyResult{Paid: true, Room: room}, nil
	}

	paid, err := s.provider.IsSessionPaid(ctx, sessionID)
	if err != nil {
		// Provider hiccups degrade to "still pending"; the client polls again.
		log.Printf("Payment verification fallback failed for room %s: %v", roomID, err)
		return &VerifyResult{Pending: true, Room: room}, nil
	}
	if !paid {
		return &VerifyResult{Pending: true, Room: room}, nil
	}

	activated, err := s.roomService.MarkRoomPaid(ctx, roomID, sessionID)
	if err != nil {
		return nil, err
	}
	if activated {
		s.notifier.RoomActivated(ctx, room, baseURL)
	}
	room.IsPaid = true
	return &VerifyResult{Paid: true, Room: room}, nil
}

// HandleWebhookEvent verifies and applies a provider webhook. Signature
// failures propagate as unauthorized before any room state is consulted.
// Events that cannot activate anything (unknown room, replayed delivery)
// are acknowledged so the provider stops retrying.
func (s *paymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature, baseURL string) error {
	event, err := s.provider.ParseWebhookEvent(payload, signature)
	if err != nil {
		return unauthorizedErr("webhook verification failed: %v", err)
	}
	if event.Type != payments.EventCheckoutCompleted {
		log.Printf("Ignoring webhook event type %s", event.Type)
		return nil
	}

	roomID := event.RoomID
	if roomID == "" {
		room, err := s.roomService.FindRoomByPaymentSession(ctx, event.SessionID)
		if err != nil {
			log.Printf("Webhook for session %s matches no room: %v", event.SessionID, err)
			return nil
		}
		roomID = room.ID
	}

	activated, err := s.roomService.MarkRoomPaid(ctx, roomID, event.SessionID)
	if err != nil {
		switch ErrKind(err) {
		case KindNotFound, KindUnauthorized:
			log.Printf("Webhook activation skipped for room %s: %v", roomID, err)
			return nil
		}
		return err
	}
	if !activated {
		// Duplicate delivery or the poll got there first.
		return nil
	}

	room, err := s.roomService.FindRoomByID(ctx, roomID)
	if err != nil {
		log.Printf("Room %s activated but fetch for notification failed: %v", roomID, err)
		return nil
	}
	s.notifier.RoomActivated(ctx, room, baseURL)
	return nil
}
