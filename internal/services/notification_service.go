package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/email"
	"invitedoffer/offerroom/internal/models"
)

// IAsynqClient is the subset of asynq.Client used for enqueueing.
// Defined as an interface so handlers and tests can substitute a mock.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// INotificationService triggers the fixed notification emails.
// All methods are fire-and-forget: enqueue failures are logged and swallowed
// so a broken broker never blocks or fails the request that triggered them.
type INotificationService interface {
	RoomActivated(ctx context.Context, room *models.Room, baseURL string)
	BidPlaced(ctx context.Context, room *models.Room, bid *models.Bid, baseURL string)
	AuctionClosed(ctx context.Context, room *models.Room, winner *models.Bid, baseURL string)
}

// notificationService implements INotificationService on top of asynq.
type notificationService struct {
	cfg        *config.Config
	taskClient IAsynqClient
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(cfg *config.Config, taskClient IAsynqClient) INotificationService {
	return &notificationService{cfg: cfg, taskClient: taskClient}
}

func (s *notificationService) baseURL(requestBase string) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}
	return requestBase
}

func (s *notificationService) enqueue(ctx context.Context, to string, kind email.Kind, data email.TemplateData) {
	payload, err := json.Marshal(email.TaskPayload{To: to, Kind: kind, Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s email payload for %s: %v", kind, to, err)
		return
	}
	task := asynq.NewTask(email.TaskTypeDeliver, payload)
	if _, err := s.taskClient.EnqueueContext(ctx, task, asynq.Queue("critical")); err != nil {
		log.Printf("Failed to enqueue %s email for %s: %v", kind, to, err)
	}
}

// RoomActivated notifies the seller that payment completed and the room is live.
func (s *notificationService) RoomActivated(ctx context.Context, room *models.Room, baseURL string) {
	base := s.baseURL(baseURL)
	s.enqueue(ctx, room.SellerEmail, email.KindRoomReady, email.TemplateData{
		RoomTitle: room.Title,
		OwnerLink: base + "/room/owner/" + room.OwnerToken,
	})
}

// BidPlaced notifies the seller of the new bid and confirms it to the bidder.
func (s *notificationService) BidPlaced(ctx context.Context, room *models.Room, bid *models.Bid, baseURL string) {
	base := s.baseURL(baseURL)
	s.enqueue(ctx, room.SellerEmail, email.KindNewBid, email.TemplateData{
		RoomTitle: room.Title,
		Amount:    bid.Amount,
		OwnerLink: base + "/room/owner/" + room.OwnerToken,
	})
	s.enqueue(ctx, bid.BidderEmail, email.KindBidConfirmation, email.TemplateData{
		RoomTitle: room.Title,
		Amount:    bid.Amount,
		RoomLink:  base + "/room/" + room.ID,
	})
}

// AuctionClosed exchanges contact addresses between seller and winner.
// This is the only point where either side learns the other's email.
func (s *notificationService) AuctionClosed(ctx context.Context, room *models.Room, winner *models.Bid, baseURL string) {
	s.enqueue(ctx, room.SellerEmail, email.KindAuctionClosedSeller, email.TemplateData{
		RoomTitle:   room.Title,
		Amount:      winner.Amount,
		WinnerEmail: winner.BidderEmail,
	})
	s.enqueue(ctx, winner.BidderEmail, email.KindAuctionClosedWinner, email.TemplateData{
		RoomTitle:   room.Title,
		Amount:      winner.Amount,
		SellerEmail: room.SellerEmail,
	})
}
