package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/db"
	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/utils"
)

const (
	roomsCollection = "rooms"
	bidsCollection  = "bids"
)

// CreateRoomInput carries the caller-supplied fields for a new room.
type CreateRoomInput struct {
	Title       string
	Description string
	Images      []string
	Deadline    time.Time
	SellerEmail string
	PlanType    string
}

// IRoomService defines the interface for room lifecycle operations.
type IRoomService interface {
	CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error)
	FindRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	FindRoomByOwnerToken(ctx context.Context, token string) (*models.Room, error)
	FindRoomByPaymentSession(ctx context.Context, sessionID string) (*models.Room, error)
	AttachCheckoutSession(ctx context.Context, roomID, sessionID, priceID string) error
	MarkRoomPaid(ctx context.Context, roomID, sessionID string) (bool, error)
	CloseAuction(ctx context.Context, roomID, ownerToken, bidID string) (*models.Room, *models.Bid, error)
	AddImageToRoom(ctx context.Context, roomID, imageKey string) error
	PublicView(ctx context.Context, roomID string) (*models.PublicRoomView, error)
	OwnerView(ctx context.Context, ownerToken string) (*models.OwnerRoomView, error)
	CleanupUnpaidRooms(ctx context.Context, maxAge time.Duration) (int64, error)
}

// roomService implements IRoomService.
type roomService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewRoomService creates a new RoomService.
func NewRoomService(db *mongo.Database, cfg *config.Config) IRoomService {
	return &roomService{db: db, cfg: cfg}
}

// CreateRoom validates the input and inserts a new unpaid room.
// The owner token is returned once on the created document and never
// appears on any public read path afterwards.
func (s *roomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	if len(strings.TrimSpace(in.Title)) < 5 {
		return nil, validationErr("title must be at least 5 characters")
	}
	if len(strings.TrimSpace(in.Description)) < 20 {
		return nil, validationErr("description must be at least 20 characters")
	}
	if _, err := mail.ParseAddress(in.SellerEmail); err != nil {
		return nil, validationErr("invalid seller email")
	}
	if !models.ValidPlanType(in.PlanType) {
		return nil, validationErr("unknown plan type: %s", in.PlanType)
	}
	if !in.Deadline.After(time.Now().UTC()) {
		return nil, validationErr("deadline must be in the future")
	}
	if len(in.Images) > s.cfg.MaxImagesPerRoom {
		return nil, validationErr("too many images (max %d)", s.cfg.MaxImagesPerRoom)
	}
	for _, key := range in.Images {
		if !strings.HasPrefix(key, "rooms/") {
			return nil, validationErr("invalid image key: %s", key)
		}
	}

	ownerToken, err := utils.NewOwnerToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner token: %w", err)
	}

	collection := s.db.Collection(roomsCollection)
	now := time.Now().UTC()
	images := in.Images
	if images == nil {
		images = []string{}
	}

	var newRoom *models.Room

	operation := func() error {
		newRoom = &models.Room{
			ID:            utils.NewID(),
			OwnerToken:    ownerToken,
			Title:         in.Title,
			Description:   in.Description,
			Images:        images,
			Deadline:      in.Deadline.UTC(),
			SellerEmail:   in.SellerEmail,
			PlanType:      models.PlanType(in.PlanType),
			IsPaid:        false,
			HighestAmount: 0,
			BidCount:      0,
			CreatedAt:     now,
		}
		_, insertErr := collection.InsertOne(ctx, newRoom)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert new room after multiple retries: %w", err)
	}

	return newRoom, nil
}

// FindRoomByID fetches a room by its public identifier.
func (s *roomService) FindRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.db.Collection(roomsCollection).FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundErr("room %s not found", roomID)
		}
		return nil, fmt.Errorf("error finding room %s: %w", roomID, err)
	}
	return &room, nil
}

// FindRoomByOwnerToken fetches a room by its management token.
func (s *roomService) FindRoomByOwnerToken(ctx context.Context, token string) (*models.Room, error) {
	var room models.Room
	err := s.db.Collection(roomsCollection).FindOne(ctx, bson.M{"owner_token": token}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundErr("room not found")
		}
		return nil, fmt.Errorf("error finding room by owner token: %w", err)
	}
	return &room, nil
}

// FindRoomByPaymentSession fetches the room linked to a checkout session.
func (s *roomService) FindRoomByPaymentSession(ctx context.Context, sessionID string) (*models.Room, error) {
	var room models.Room
	err := s.db.Collection(roomsCollection).FindOne(ctx, bson.M{"payment_session_id": sessionID}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundErr("no room for payment session")
		}
		return nil, fmt.Errorf("error finding room by payment session: %w", err)
	}
	return &room, nil
}

// AttachCheckoutSession records the hosted checkout session on an unpaid room.
// Re-running checkout replaces the previous session; a paid room is immutable.
func (s *roomService) AttachCheckoutSession(ctx context.Context, roomID, sessionID, priceID string) error {
	collection := s.db.Collection(roomsCollection)
	filter := bson.M{"_id": roomID, "is_paid": false}
	update := bson.M{"$set": bson.M{
		"payment_session_id": sessionID,
		"payment_price_id":   priceID,
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error attaching checkout session to room %s: %w", roomID, err)
	}
	if result.MatchedCount == 0 {
		var room models.Room
		checkErr := collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return notFoundErr("room %s not found", roomID)
		}
		if room.IsPaid {
			return invalidStateErr("room already paid")
		}
		return fmt.Errorf("failed to attach checkout session to room %s", roomID)
	}
	return nil
}

// MarkRoomPaid flips the room to paid, guarded by the recorded session ID.
// Returns true only for the write that performed the activation, so duplicate
// webhook deliveries and webhook/poll races degrade to no-ops.
func (s *roomService) MarkRoomPaid(ctx context.Context, roomID, sessionID string) (bool, error) {
	collection := s.db.Collection(roomsCollection)
	filter := bson.M{
		"_id":                roomID,
		"payment_session_id": sessionID,
		"is_paid":            false,
	}
	update := bson.M{"$set": bson.M{"is_paid": true}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("db error marking room %s paid: %w", roomID, err)
	}
	if result.ModifiedCount == 1 {
		return true, nil
	}

	// Diagnose why the guarded update matched nothing.
	var room models.Room
	checkErr := collection.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(checkErr, mongo.ErrNoDocuments) {
		return false, notFoundErr("room %s not found", roomID)
	}
	if checkErr != nil {
		return false, fmt.Errorf("error checking room %s after paid update: %w", roomID, checkErr)
	}
	if room.PaymentSessionID == nil || *room.PaymentSessionID != sessionID {
		return false, unauthorizedErr("invalid session for this room")
	}
	// Already paid via the other activation path.
	return false, nil
}

// CloseAuction accepts a bid, ending the room. The winning_bid_id guard in the
// filter makes at most one close per room ever succeed.
func (s *roomService) CloseAuction(ctx context.Context, roomID, ownerToken, bidID string) (*models.Room, *models.Bid, error) {
	room, err := s.FindRoomByID(ctx, roomID)
	if err != nil {
		if ErrKind(err) == KindNotFound {
			// Do not reveal whether the room exists to callers with a bad token.
			return nil, nil, unauthorizedErr("unauthorized")
		}
		return nil, nil, err
	}
	if room.OwnerToken != ownerToken {
		return nil, nil, unauthorizedErr("unauthorized")
	}
	if !room.IsPaid {
		return nil, nil, invalidStateErr("room not activated")
	}
	if room.WinningBidID != nil {
		return nil, nil, invalidStateErr("auction already closed")
	}

	var bid models.Bid
	err = s.db.Collection(bidsCollection).FindOne(ctx, bson.M{"_id": bidID, "room_id": roomID}).Decode(&bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, validationErr("invalid bid for this room")
		}
		return nil, nil, fmt.Errorf("error finding bid %s for room %s: %w", bidID, roomID, err)
	}

	now := time.Now().UTC()
	collection := s.db.Collection(roomsCollection)
	filter := bson.M{
		"_id":            roomID,
		"is_paid":        true,
		"winning_bid_id": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{
		"winning_bid_id": bidID,
		"closed_at":      now,
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, nil, fmt.Errorf("db error closing room %s: %w", roomID, err)
	}
	if result.MatchedCount == 0 {
		// Lost the race to another close request.
		return nil, nil, invalidStateErr("auction already closed")
	}

	room.WinningBidID = &bid.ID
	room.ClosedAt = &now
	return room, &bid, nil
}

// AddImageToRoom appends a processed image key to the room's image list.
func (s *roomService) AddImageToRoom(ctx context.Context, roomID, imageKey string) error {
	collection := s.db.Collection(roomsCollection)
	update := bson.M{"$addToSet": bson.M{"images": imageKey}}

	result, err := collection.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to room %s: %w", imageKey, roomID, err)
	}
	if result.MatchedCount == 0 {
		return notFoundErr("room %s not found", roomID)
	}
	if result.ModifiedCount == 0 {
		log.Printf("Image key %s already present on room %s", imageKey, roomID)
	}
	return nil
}

// bidsForRoom returns the room's bids sorted by amount descending,
// oldest first among equal amounts.
func (s *roomService) bidsForRoom(ctx context.Context, roomID string) ([]models.Bid, error) {
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

// PublicView builds the anonymized room read for link holders.
// Basic rooms expose only amounts and times; standard/pro add rank labels
// counting down from the total so the highest bid is the largest buyer number.
func (s *roomService) PublicView(ctx context.Context, roomID string) (*models.PublicRoomView, error) {
	room, err := s.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsPaid {
		return nil, invalidStateErr("room not activated")
	}

	bids, err := s.bidsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	view := &models.PublicRoomView{}
	view.Room.ID = room.ID
	view.Room.Title = room.Title
	view.Room.Description = room.Description
	view.Room.Images = room.Images
	view.Room.Deadline = room.Deadline
	view.Room.PlanType = room.PlanType
	view.Room.Status = room.Status(time.Now().UTC())

	view.Bids = make([]models.PublicBid, 0, len(bids))
	for i, bid := range bids {
		pb := models.PublicBid{
			ID:        bid.ID,
			Amount:    bid.Amount,
			CreatedAt: bid.CreatedAt,
		}
		if room.PlanType != models.PlanBasic {
			pb.BidderLabel = fmt.Sprintf("Buyer %d", len(bids)-i)
		}
		view.Bids = append(view.Bids, pb)
	}
	if len(bids) > 0 {
		view.HighestBid = bids[0].Amount
	}
	// bid_count is maintained by the admission update, so the total stays
	// consistent with the highest_amount the admission guard enforces.
	view.TotalBids = room.BidCount
	return view, nil
}

// OwnerView builds the full room read for the management token holder.
func (s *roomService) OwnerView(ctx context.Context, ownerToken string) (*models.OwnerRoomView, error) {
	room, err := s.FindRoomByOwnerToken(ctx, ownerToken)
	if err != nil {
		return nil, err
	}
	if !room.IsPaid {
		// The success page polls this endpoint while the webhook is in
		// flight; flag the rejection so it knows to keep waiting.
		return nil, paymentPendingErr()
	}

	bids, err := s.bidsForRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	view := &models.OwnerRoomView{}
	view.Room.ID = room.ID
	view.Room.Title = room.Title
	view.Room.Description = room.Description
	view.Room.Images = room.Images
	view.Room.Deadline = room.Deadline
	view.Room.SellerEmail = room.SellerEmail
	view.Room.PlanType = room.PlanType
	view.Room.Status = room.Status(time.Now().UTC())
	view.Room.WinningBidID = room.WinningBidID

	if bids == nil {
		bids = []models.Bid{}
	}
	view.Bids = bids
	if len(bids) > 0 {
		view.HighestBid = bids[0].Amount
	}
	view.TotalBids = room.BidCount
	return view, nil
}

// CleanupUnpaidRooms deletes rooms that never completed payment, along with
// any bids referencing them. Returns the number of rooms removed.
func (s *roomService) CleanupUnpaidRooms(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	roomColl := s.db.Collection(roomsCollection)
	filter := bson.M{"is_paid": false, "created_at": bson.M{"$lt": cutoff}}

	cursor, err := roomColl.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("error finding stale unpaid rooms: %w", err)
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, fmt.Errorf("error decoding stale unpaid rooms: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.ID)
	}

	result, err := roomColl.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}, "is_paid": false})
	if err != nil {
		return 0, fmt.Errorf("error deleting stale unpaid rooms: %w", err)
	}
	// Unpaid rooms should have no bids, but remove strays to keep the
	// bids collection free of orphans.
	if _, err := s.db.Collection(bidsCollection).DeleteMany(ctx, bson.M{"room_id": bson.M{"$in": ids}}); err != nil {
		log.Printf("Warning: failed to delete bids of cleaned-up rooms: %v", err)
	}

	return result.DeletedCount, nil
}
