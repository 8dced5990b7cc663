package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/db"
	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/utils"
)

// IBidService defines the interface for bid operations.
type IBidService interface {
	PlaceBid(ctx context.Context, roomID string, amount int64, bidderEmail string) (*models.Bid, error)
	FindBidByID(ctx context.Context, bidID string) (*models.Bid, error)
	GetBidsForRoom(ctx context.Context, roomID string) ([]models.Bid, error)
	GetHighestBid(ctx context.Context, roomID string) (*models.Bid, error)
}

// bidService implements IBidService.
type bidService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewBidService creates a new BidService.
func NewBidService(db *mongo.Database, cfg *config.Config) IBidService {
	return &bidService{db: db, cfg: cfg}
}

// PlaceBid admits a bid through a single guarded update on the room document.
// The filter encodes every admission rule (activated, not closed, before the
// deadline, strictly above the running highest), so two racing bids of the
// same amount can never both win: only the first update matches, the loser
// rediagnoses against the fresh room state.
func (s *bidService) PlaceBid(ctx context.Context, roomID string, amount int64, bidderEmail string) (*models.Bid, error) {
	if amount <= 0 {
		return nil, validationErr("bid amount must be positive")
	}
	if _, err := mail.ParseAddress(bidderEmail); err != nil {
		return nil, validationErr("invalid bidder email")
	}

	now := time.Now().UTC()
	roomColl := s.db.Collection(roomsCollection)
	filter := bson.M{
		"_id":            roomID,
		"is_paid":        true,
		"winning_bid_id": bson.M{"$exists": false},
		"deadline":       bson.M{"$gt": now},
		"highest_amount": bson.M{"$lt": amount},
	}
	update := bson.M{
		"$set": bson.M{"highest_amount": amount},
		"$inc": bson.M{"bid_count": 1},
	}

	// The pre-image is kept so a failed bid insert can restore the running
	// highest instead of leaving the room advertising an amount no stored
	// bid carries.
	var before models.Room
	err := roomColl.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.diagnoseRejection(ctx, roomID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("db error admitting bid on room %s: %w", roomID, err)
	}

	// Admission won; record the bid itself.
	bidColl := s.db.Collection(bidsCollection)
	var newBid *models.Bid

	operation := func() error {
		newBid = &models.Bid{
			ID:          utils.NewID(),
			RoomID:      roomID,
			Amount:      amount,
			BidderEmail: bidderEmail,
			CreatedAt:   now,
		}
		_, insertErr := bidColl.InsertOne(ctx, newBid)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		s.revertAdmission(roomID, amount, before.HighestAmount)
		return nil, fmt.Errorf("failed to insert bid on room %s after multiple retries: %w", roomID, err)
	}

	return newBid, nil
}

// revertAdmission undoes a won admission whose bid document never reached
// storage. The highest_amount guard in the filter means a later admission
// that has already raised the running highest is left untouched. A fresh
// context is used because the insert may have failed on cancellation.
func (s *bidService) revertAdmission(roomID string, amount, previous int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": roomID, "highest_amount": amount}
	update := bson.M{
		"$set": bson.M{"highest_amount": previous},
		"$inc": bson.M{"bid_count": -1},
	}
	if _, err := s.db.Collection(roomsCollection).UpdateOne(ctx, filter, update); err != nil {
		log.Printf("Failed to revert bid admission on room %s: %v", roomID, err)
	}
}

// diagnoseRejection re-reads the room to report which admission guard failed.
// State may have moved since the guarded update; the rejection reflects what
// is true now, which is what the caller can act on.
func (s *bidService) diagnoseRejection(ctx context.Context, roomID string, at time.Time) error {
	var room models.Room
	err := s.db.Collection(roomsCollection).FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFoundErr("room %s not found", roomID)
	}
	if err != nil {
		return fmt.Errorf("error checking room %s after bid rejection: %w", roomID, err)
	}
	if !room.IsPaid {
		return invalidStateErr("room not activated")
	}
	if room.WinningBidID != nil {
		return invalidStateErr("auction has been closed")
	}
	if !at.Before(room.Deadline) {
		return invalidStateErr("bidding has ended")
	}
	return bidTooLowErr(room.HighestAmount)
}

// FindBidByID fetches a single bid.
func (s *bidService) FindBidByID(ctx context.Context, bidID string) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.Collection(bidsCollection).FindOne(ctx, bson.M{"_id": bidID}).Decode(&bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundErr("bid %s not found", bidID)
		}
		return nil, fmt.Errorf("error finding bid %s: %w", bidID, err)
	}
	return &bid, nil
}

// GetBidsForRoom returns bids sorted highest first, oldest first among ties.
func (s *bidService) GetBidsForRoom(ctx context.Context, roomID string) ([]models.Bid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "amount", Value: -1}, {Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(bidsCollection).Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing bids for room %s: %w", roomID, err)
	}
	defer cursor.Close(ctx)

	var bids []models.Bid
	if err := cursor.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("error decoding bids for room %s: %w", roomID, err)
	}
	return bids, nil
}

// GetHighestBid returns the current top bid, or nil if the room has none.
func (s *bidService) GetHighestBid(ctx context.Context, roomID string) (*models.Bid, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "amount", Value: -1}, {Key: "created_at", Value: 1}})
	var bid models.Bid
	err := s.db.Collection(bidsCollection).FindOne(ctx, bson.M{"room_id": roomID}, opts).Decode(&bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding highest bid for room %s: %w", roomID, err)
	}
	return &bid, nil
}
