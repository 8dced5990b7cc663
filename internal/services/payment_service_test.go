package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/payments"
	"invitedoffer/offerroom/internal/utils"
)

func setupTestDBPayment(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "rooms", "bids")
}

// recordingNotifier counts notification calls instead of enqueueing tasks.
type recordingNotifier struct {
	mu             sync.Mutex
	roomActivated  int
	bidPlaced      int
	auctionsClosed int
}

func (n *recordingNotifier) RoomActivated(ctx context.Context, room *models.Room, baseURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roomActivated++
}

func (n *recordingNotifier) BidPlaced(ctx context.Context, room *models.Room, bid *models.Bid, baseURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bidPlaced++
}

func (n *recordingNotifier) AuctionClosed(ctx context.Context, room *models.Room, winner *models.Bid, baseURL string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.auctionsClosed++
}

func (n *recordingNotifier) activations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.roomActivated
}

func TestPaymentService_CheckoutAndVerify(t *testing.T) {
	db := setupTestDBPayment(t, "testdb_payment_service_verify")
	cfg := testConfig()
	roomSvc := NewRoomService(db, cfg)
	notifier := &recordingNotifier{}
	svc := NewPaymentService(cfg, payments.NewMockProvider(), roomSvc, notifier)
	ctx := context.Background()

	room, err := roomSvc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	url, err := svc.StartCheckout(ctx, room.ID, "https://offers.test")
	assert.NoError(t, err)
	assert.NotEmpty(t, url)

	stored, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored.PaymentSessionID)
	sessionID := *stored.PaymentSessionID

	// A session that is not the recorded one is rejected
	_, err = svc.VerifyPayment(ctx, room.ID, "cs_forged", "https://offers.test")
	assert.Equal(t, KindUnauthorized, ErrKind(err))

	// The recorded session activates the room and notifies the seller once
	result, err := svc.VerifyPayment(ctx, room.ID, sessionID, "https://offers.test")
	assert.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, 1, notifier.activations())

	activated, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.True(t, activated.IsPaid)

	// Verifying again short-circuits without a second notification
	result, err = svc.VerifyPayment(ctx, room.ID, sessionID, "https://offers.test")
	assert.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, 1, notifier.activations())
}

func TestPaymentService_StartCheckoutGuards(t *testing.T) {
	db := setupTestDBPayment(t, "testdb_payment_service_start")
	cfg := testConfig()
	roomSvc := NewRoomService(db, cfg)
	svc := NewPaymentService(cfg, payments.NewMockProvider(), roomSvc, &recordingNotifier{})
	ctx := context.Background()

	_, err := svc.StartCheckout(ctx, "no-such-room", "https://offers.test")
	assert.Equal(t, KindNotFound, ErrKind(err))

	room, err := roomSvc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	activateRoom(t, db, room.ID)

	_, err = svc.StartCheckout(ctx, room.ID, "https://offers.test")
	assert.Equal(t, KindInvalidState, ErrKind(err))
}

func TestPaymentService_Webhook(t *testing.T) {
	db := setupTestDBPayment(t, "testdb_payment_service_webhook")
	cfg := testConfig()
	roomSvc := NewRoomService(db, cfg)
	notifier := &recordingNotifier{}
	svc := NewPaymentService(cfg, payments.NewMockProvider(), roomSvc, notifier)
	ctx := context.Background()

	room, err := roomSvc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	_, err = svc.StartCheckout(ctx, room.ID, "https://offers.test")
	assert.NoError(t, err)

	stored, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	sessionID := *stored.PaymentSessionID

	payload, _ := json.Marshal(payments.WebhookEvent{
		Type:      payments.EventCheckoutCompleted,
		SessionID: sessionID,
		RoomID:    room.ID,
	})

	assert.NoError(t, svc.HandleWebhookEvent(ctx, payload, "", "https://offers.test"))
	assert.Equal(t, 1, notifier.activations())

	activated, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.True(t, activated.IsPaid)

	// Replayed delivery is acknowledged without a second notification
	assert.NoError(t, svc.HandleWebhookEvent(ctx, payload, "", "https://offers.test"))
	assert.Equal(t, 1, notifier.activations())

	// Unknown event types are ignored
	other, _ := json.Marshal(payments.WebhookEvent{Type: "invoice.created"})
	assert.NoError(t, svc.HandleWebhookEvent(ctx, other, "", "https://offers.test"))

	// Unparseable payloads are rejected as unauthorized
	err = svc.HandleWebhookEvent(ctx, []byte("not json"), "", "https://offers.test")
	assert.Equal(t, KindUnauthorized, ErrKind(err))
}

func TestPaymentService_WebhookResolvesRoomBySession(t *testing.T) {
	db := setupTestDBPayment(t, "testdb_payment_service_webhook_session")
	cfg := testConfig()
	roomSvc := NewRoomService(db, cfg)
	notifier := &recordingNotifier{}
	svc := NewPaymentService(cfg, payments.NewMockProvider(), roomSvc, notifier)
	ctx := context.Background()

	room, err := roomSvc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	_, err = svc.StartCheckout(ctx, room.ID, "https://offers.test")
	assert.NoError(t, err)

	stored, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)

	// Event carries no room ID; the session lookup must find it
	payload := []byte(fmt.Sprintf(`{"type":%q,"session_id":%q}`,
		payments.EventCheckoutCompleted, *stored.PaymentSessionID))
	assert.NoError(t, svc.HandleWebhookEvent(ctx, payload, "", "https://offers.test"))

	activated, err := roomSvc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.True(t, activated.IsPaid)
	assert.Equal(t, 1, notifier.activations())

	// Events for sessions nobody recorded are acknowledged and dropped
	orphan := []byte(fmt.Sprintf(`{"type":%q,"session_id":"cs_orphan"}`, payments.EventCheckoutCompleted))
	assert.NoError(t, svc.HandleWebhookEvent(ctx, orphan, "", "https://offers.test"))
	assert.Equal(t, 1, notifier.activations())
}
