package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/services"
)

// --- Mocks ---

// MockRoomService
type MockRoomService struct {
	mock.Mock
}

func (m *MockRoomService) CreateRoom(ctx context.Context, in services.CreateRoomInput) (*models.Room, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomService) FindRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomService) FindRoomByOwnerToken(ctx context.Context, token string) (*models.Room, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomService) FindRoomByPaymentSession(ctx context.Context, sessionID string) (*models.Room, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomService) AttachCheckoutSession(ctx context.Context, roomID, sessionID, priceID string) error {
	args := m.Called(ctx, roomID, sessionID, priceID)
	return args.Error(0)
}

func (m *MockRoomService) MarkRoomPaid(ctx context.Context, roomID, sessionID string) (bool, error) {
	args := m.Called(ctx, roomID, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomService) CloseAuction(ctx context.Context, roomID, ownerToken, bidID string) (*models.Room, *models.Bid, error) {
	args := m.Called(ctx, roomID, ownerToken, bidID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Room), args.Get(1).(*models.Bid), args.Error(2)
}

func (m *MockRoomService) AddImageToRoom(ctx context.Context, roomID, imageKey string) error {
	args := m.Called(ctx, roomID, imageKey)
	return args.Error(0)
}

func (m *MockRoomService) PublicView(ctx context.Context, roomID string) (*models.PublicRoomView, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PublicRoomView), args.Error(1)
}

func (m *MockRoomService) OwnerView(ctx context.Context, ownerToken string) (*models.OwnerRoomView, error) {
	args := m.Called(ctx, ownerToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OwnerRoomView), args.Error(1)
}

func (m *MockRoomService) CleanupUnpaidRooms(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

// MockBidService
type MockBidService struct {
	mock.Mock
}

func (m *MockBidService) PlaceBid(ctx context.Context, roomID string, amount int64, bidderEmail string) (*models.Bid, error) {
	args := m.Called(ctx, roomID, amount, bidderEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *MockBidService) FindBidByID(ctx context.Context, bidID string) (*models.Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *MockBidService) GetBidsForRoom(ctx context.Context, roomID string) ([]models.Bid, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *MockBidService) GetHighestBid(ctx context.Context, roomID string) (*models.Bid, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

// MockPaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) StartCheckout(ctx context.Context, roomID, baseURL string) (string, error) {
	args := m.Called(ctx, roomID, baseURL)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, roomID, sessionID, baseURL string) (*services.VerifyResult, error) {
	args := m.Called(ctx, roomID, sessionID, baseURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerifyResult), args.Error(1)
}

func (m *MockPaymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature, baseURL string) error {
	args := m.Called(ctx, payload, signature, baseURL)
	return args.Error(0)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) RoomActivated(ctx context.Context, room *models.Room, baseURL string) {
	m.Called(ctx, room, baseURL)
}

func (m *MockNotificationService) BidPlaced(ctx context.Context, room *models.Room, bid *models.Bid, baseURL string) {
	m.Called(ctx, room, bid, baseURL)
}

func (m *MockNotificationService) AuctionClosed(ctx context.Context, room *models.Room, winner *models.Bid, baseURL string) {
	m.Called(ctx, room, winner, baseURL)
}

// MockObjectStorage implements storage.IObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) GeneratePresignedPutURL(ctx context.Context, roomID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, roomID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockObjectStorage) IsManagedKey(key string) bool {
	args := m.Called(key)
	return args.Bool(0)
}

// MockAsynqClient implements services.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
