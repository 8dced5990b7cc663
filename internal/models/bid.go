package models

import (
	"time"
)

// Bid represents a single offer placed in a room.
// Amounts are positive integers in the smallest currency unit.
type Bid struct {
	ID          string    `bson:"_id" json:"id"`
	RoomID      string    `bson:"room_id" json:"room_id"`
	Amount      int64     `bson:"amount" json:"amount"`
	BidderEmail string    `bson:"bidder_email" json:"bidder_email"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
