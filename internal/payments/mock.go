package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"invitedoffer/offerroom/internal/models"
)

// MockProvider is an in-memory Provider used when MOCK_SERVICES is enabled.
// Every created session is immediately payable, which lets the verify-payment
// poll activate rooms without a real checkout round trip.
type MockProvider struct {
	mu       sync.Mutex
	sessions map[string]string // session ID -> room ID
}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{sessions: make(map[string]string)}
}

func (p *MockProvider) CreateCheckoutSession(ctx context.Context, room *models.Room, successURL, cancelURL string) (*CheckoutSession, error) {
	sessionID := "cs_test_" + uuid.NewString()
	p.mu.Lock()
	p.sessions[sessionID] = room.ID
	p.mu.Unlock()
	return &CheckoutSession{
		ID:      sessionID,
		URL:     "https://checkout.invalid/pay/" + sessionID,
		PriceID: "price_mock_" + string(room.PlanType),
	}, nil
}

func (p *MockProvider) IsSessionPaid(ctx context.Context, sessionID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; !ok {
		return false, fmt.Errorf("unknown mock session %s", sessionID)
	}
	return true, nil
}

// ParseWebhookEvent accepts an unsigned JSON body of the shape
// {"type": "...", "session_id": "...", "room_id": "..."}.
// The signature is ignored; this provider only runs in mock mode.
func (p *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid mock webhook payload: %w", err)
	}
	return &event, nil
}
