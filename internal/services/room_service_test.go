package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/models"
	"invitedoffer/offerroom/internal/utils"
)

func setupTestDBRoom(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "rooms", "bids")
}

func testConfig() *config.Config {
	return &config.Config{MaxImagesPerRoom: 10}
}

func validRoomInput() CreateRoomInput {
	return CreateRoomInput{
		Title:       "Vintage synthesizer",
		Description: "A well kept analogue synthesizer from 1978, fully serviced.",
		Deadline:    time.Now().Add(48 * time.Hour),
		SellerEmail: "seller@example.com",
		PlanType:    "basic",
	}
}

// activateRoom flips a room to paid directly, bypassing the payment flow.
func activateRoom(t *testing.T, db *mongo.Database, roomID string) {
	_, err := db.Collection(roomsCollection).UpdateOne(context.Background(),
		bson.M{"_id": roomID}, bson.M{"$set": bson.M{"is_paid": true}})
	assert.NoError(t, err)
}

func TestRoomService_CreateRoomValidation(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_validation")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRoomInput)
	}{
		{"short title", func(in *CreateRoomInput) { in.Title = "abc" }},
		{"whitespace title", func(in *CreateRoomInput) { in.Title = "   ab   " }},
		{"short description", func(in *CreateRoomInput) { in.Description = "too short" }},
		{"bad email", func(in *CreateRoomInput) { in.SellerEmail = "not-an-email" }},
		{"unknown plan", func(in *CreateRoomInput) { in.PlanType = "platinum" }},
		{"past deadline", func(in *CreateRoomInput) { in.Deadline = time.Now().Add(-time.Hour) }},
		{"foreign image key", func(in *CreateRoomInput) { in.Images = []string{"etc/passwd"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRoomInput()
			tc.mutate(&in)
			room, err := svc.CreateRoom(ctx, in)
			assert.Error(t, err)
			assert.Nil(t, room)
			assert.Equal(t, KindValidation, ErrKind(err))
		})
	}
}

func TestRoomService_CreateAndFind(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_create")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	assert.NotNil(t, room)
	assert.NotEmpty(t, room.ID)
	assert.NotEmpty(t, room.OwnerToken)
	assert.False(t, room.IsPaid)
	assert.Equal(t, models.PlanBasic, room.PlanType)
	assert.Equal(t, models.RoomStatusDraft, room.Status(time.Now().UTC()))

	found, err := svc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)

	byToken, err := svc.FindRoomByOwnerToken(ctx, room.OwnerToken)
	assert.NoError(t, err)
	assert.Equal(t, room.ID, byToken.ID)

	// Distinct rooms get distinct tokens
	other, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	assert.NotEqual(t, room.OwnerToken, other.OwnerToken)

	missing, err := svc.FindRoomByID(ctx, "no-such-room")
	assert.Error(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, KindNotFound, ErrKind(err))

	_, err = svc.FindRoomByOwnerToken(ctx, "no-such-token")
	assert.Equal(t, KindNotFound, ErrKind(err))
}

func TestRoomService_PaymentSessionLifecycle(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_payment")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	err = svc.AttachCheckoutSession(ctx, room.ID, "cs_1", "price_1")
	assert.NoError(t, err)

	bySession, err := svc.FindRoomByPaymentSession(ctx, "cs_1")
	assert.NoError(t, err)
	assert.Equal(t, room.ID, bySession.ID)

	// Re-running checkout replaces the session
	err = svc.AttachCheckoutSession(ctx, room.ID, "cs_2", "price_1")
	assert.NoError(t, err)
	_, err = svc.FindRoomByPaymentSession(ctx, "cs_1")
	assert.Equal(t, KindNotFound, ErrKind(err))

	// Wrong session cannot activate
	activated, err := svc.MarkRoomPaid(ctx, room.ID, "cs_1")
	assert.False(t, activated)
	assert.Equal(t, KindUnauthorized, ErrKind(err))

	// Correct session activates exactly once
	activated, err = svc.MarkRoomPaid(ctx, room.ID, "cs_2")
	assert.NoError(t, err)
	assert.True(t, activated)

	// Duplicate delivery is a no-op, not an error
	activated, err = svc.MarkRoomPaid(ctx, room.ID, "cs_2")
	assert.NoError(t, err)
	assert.False(t, activated)

	// A paid room cannot get a new checkout session
	err = svc.AttachCheckoutSession(ctx, room.ID, "cs_3", "price_1")
	assert.Equal(t, KindInvalidState, ErrKind(err))

	// Unknown room
	_, err = svc.MarkRoomPaid(ctx, "no-such-room", "cs_2")
	assert.Equal(t, KindNotFound, ErrKind(err))
}

func TestRoomService_CloseAuction(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_close")
	cfg := testConfig()
	svc := NewRoomService(db, cfg)
	bidSvc := NewBidService(db, cfg)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	activateRoom(t, db, room.ID)

	bid1, err := bidSvc.PlaceBid(ctx, room.ID, 1000, "alice@example.com")
	assert.NoError(t, err)
	bid2, err := bidSvc.PlaceBid(ctx, room.ID, 1500, "bob@example.com")
	assert.NoError(t, err)

	// Wrong token is indistinguishable from a missing room
	_, _, err = svc.CloseAuction(ctx, room.ID, "wrong-token", bid2.ID)
	assert.Equal(t, KindUnauthorized, ErrKind(err))
	_, _, err = svc.CloseAuction(ctx, "no-such-room", room.OwnerToken, bid2.ID)
	assert.Equal(t, KindUnauthorized, ErrKind(err))

	// Bid must belong to this room
	_, _, err = svc.CloseAuction(ctx, room.ID, room.OwnerToken, "no-such-bid")
	assert.Equal(t, KindValidation, ErrKind(err))

	// Owner may accept any bid, not only the highest
	closed, winner, err := svc.CloseAuction(ctx, room.ID, room.OwnerToken, bid1.ID)
	assert.NoError(t, err)
	assert.Equal(t, bid1.ID, *closed.WinningBidID)
	assert.Equal(t, "alice@example.com", winner.BidderEmail)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, models.RoomStatusClosed, closed.Status(time.Now().UTC()))

	// Closing twice fails
	_, _, err = svc.CloseAuction(ctx, room.ID, room.OwnerToken, bid2.ID)
	assert.Equal(t, KindInvalidState, ErrKind(err))

	// Bidding after close fails
	_, err = bidSvc.PlaceBid(ctx, room.ID, 2000, "carol@example.com")
	assert.Equal(t, KindInvalidState, ErrKind(err))
}

func TestRoomService_CloseAuctionRequiresActivation(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_close_unpaid")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	_, _, err = svc.CloseAuction(ctx, room.ID, room.OwnerToken, "any-bid")
	assert.Equal(t, KindInvalidState, ErrKind(err))
}

func TestRoomService_PublicViewBasicPlanHidesRanks(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_view_basic")
	cfg := testConfig()
	svc := NewRoomService(db, cfg)
	bidSvc := NewBidService(db, cfg)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	// Draft rooms have no public view
	_, err = svc.PublicView(ctx, room.ID)
	assert.Equal(t, KindInvalidState, ErrKind(err))

	activateRoom(t, db, room.ID)
	_, err = bidSvc.PlaceBid(ctx, room.ID, 1000, "alice@example.com")
	assert.NoError(t, err)
	_, err = bidSvc.PlaceBid(ctx, room.ID, 1500, "bob@example.com")
	assert.NoError(t, err)

	view, err := svc.PublicView(ctx, room.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, view.Room.Status)
	assert.Equal(t, int64(1500), view.HighestBid)
	assert.Equal(t, 2, view.TotalBids)
	assert.Len(t, view.Bids, 2)

	// The view total is the room's admission counter
	stored, err := svc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, stored.BidCount)
	// Sorted highest first
	assert.Equal(t, int64(1500), view.Bids[0].Amount)
	assert.Equal(t, int64(1000), view.Bids[1].Amount)
	// Basic plan shows no bidder identity at all
	for _, b := range view.Bids {
		assert.Empty(t, b.BidderLabel)
	}
}

func TestRoomService_PublicViewStandardPlanLabelsBidders(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_view_standard")
	cfg := testConfig()
	svc := NewRoomService(db, cfg)
	bidSvc := NewBidService(db, cfg)
	ctx := context.Background()

	in := validRoomInput()
	in.PlanType = "standard"
	room, err := svc.CreateRoom(ctx, in)
	assert.NoError(t, err)
	activateRoom(t, db, room.ID)

	_, err = bidSvc.PlaceBid(ctx, room.ID, 1000, "alice@example.com")
	assert.NoError(t, err)
	_, err = bidSvc.PlaceBid(ctx, room.ID, 1500, "bob@example.com")
	assert.NoError(t, err)
	_, err = bidSvc.PlaceBid(ctx, room.ID, 2000, "carol@example.com")
	assert.NoError(t, err)

	view, err := svc.PublicView(ctx, room.ID)
	assert.NoError(t, err)
	assert.Len(t, view.Bids, 3)
	// Labels count down from the total; the highest bid gets the largest number
	assert.Equal(t, "Buyer 3", view.Bids[0].BidderLabel)
	assert.Equal(t, "Buyer 2", view.Bids[1].BidderLabel)
	assert.Equal(t, "Buyer 1", view.Bids[2].BidderLabel)
}

func TestRoomService_OwnerViewExposesBidderEmails(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_view_owner")
	cfg := testConfig()
	svc := NewRoomService(db, cfg)
	bidSvc := NewBidService(db, cfg)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	activateRoom(t, db, room.ID)

	_, err = bidSvc.PlaceBid(ctx, room.ID, 1000, "alice@example.com")
	assert.NoError(t, err)

	view, err := svc.OwnerView(ctx, room.OwnerToken)
	assert.NoError(t, err)
	assert.Equal(t, room.ID, view.Room.ID)
	assert.Equal(t, "seller@example.com", view.Room.SellerEmail)
	assert.Len(t, view.Bids, 1)
	assert.Equal(t, "alice@example.com", view.Bids[0].BidderEmail)

	_, err = svc.OwnerView(ctx, "no-such-token")
	assert.Equal(t, KindNotFound, ErrKind(err))
}

func TestRoomService_OwnerViewBeforePaymentReportsPending(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_view_owner_pending")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	_, err = svc.OwnerView(ctx, room.OwnerToken)
	assert.Equal(t, KindInvalidState, ErrKind(err))
	var se *Error
	assert.ErrorAs(t, err, &se)
	assert.True(t, se.Pending, "unpaid owner read should flag payment as pending")
}

func TestRoomService_AddImageToRoom(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_image")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)

	key := "rooms/" + room.ID + "/abc_photo.jpg"
	assert.NoError(t, svc.AddImageToRoom(ctx, room.ID, key))
	// Re-adding the same key is a no-op
	assert.NoError(t, svc.AddImageToRoom(ctx, room.ID, key))

	found, err := svc.FindRoomByID(ctx, room.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{key}, found.Images)

	err = svc.AddImageToRoom(ctx, "no-such-room", key)
	assert.Equal(t, KindNotFound, ErrKind(err))
}

func TestRoomService_CleanupUnpaidRooms(t *testing.T) {
	db := setupTestDBRoom(t, "testdb_room_service_cleanup")
	svc := NewRoomService(db, testConfig())
	ctx := context.Background()

	stale, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	fresh, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	paid, err := svc.CreateRoom(ctx, validRoomInput())
	assert.NoError(t, err)
	activateRoom(t, db, paid.ID)

	// Age the stale and paid rooms past the cutoff
	old := time.Now().UTC().Add(-72 * time.Hour)
	for _, id := range []string{stale.ID, paid.ID} {
		_, err := db.Collection(roomsCollection).UpdateOne(ctx,
			bson.M{"_id": id}, bson.M{"$set": bson.M{"created_at": old}})
		assert.NoError(t, err)
	}

	deleted, err := svc.CleanupUnpaidRooms(ctx, 48*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = svc.FindRoomByID(ctx, stale.ID)
	assert.Equal(t, KindNotFound, ErrKind(err))
	_, err = svc.FindRoomByID(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = svc.FindRoomByID(ctx, paid.ID)
	assert.NoError(t, err)

	// Nothing left to clean
	deleted, err = svc.CleanupUnpaidRooms(ctx, 48*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
