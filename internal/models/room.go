package models

import (
	"time"
)

// PlanType identifies the pricing tier a room was created under.
// The tier controls how much bidder identity is revealed on the public view.
type PlanType string

const (
	PlanBasic    PlanType = "basic"
	PlanStandard PlanType = "standard"
	PlanPro      PlanType = "pro"
)

// ValidPlanType reports whether s is a known plan type.
func ValidPlanType(s string) bool {
	switch PlanType(s) {
	case PlanBasic, PlanStandard, PlanPro:
		return true
	}
	return false
}

// RoomStatus is the derived lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusDraft   RoomStatus = "draft"   // Created, payment not completed
	RoomStatusActive  RoomStatus = "active"  // Paid, deadline not reached, no winner
	RoomStatusExpired RoomStatus = "expired" // Paid, deadline passed, no winner yet
	RoomStatusClosed  RoomStatus = "closed"  // Owner accepted a bid
)

// Room represents a private bidding room for a single asset.
type Room struct {
	ID               string     `bson:"_id" json:"id"`
	OwnerToken       string     `bson:"owner_token" json:"-"`
	Title            string     `bson:"title" json:"title"`
	Description      string     `bson:"description" json:"description"`
	Images           []string   `bson:"images" json:"images"` // S3 keys
	Deadline         time.Time  `bson:"deadline" json:"deadline"`
	SellerEmail      string     `bson:"seller_email" json:"-"`
	PlanType         PlanType   `bson:"plan_type" json:"plan_type"`
	PaymentSessionID *string    `bson:"payment_session_id,omitempty" json:"-"`
	PaymentPriceID   *string    `bson:"payment_price_id,omitempty" json:"-"`
	IsPaid           bool       `bson:"is_paid" json:"is_paid"`
	WinningBidID     *string    `bson:"winning_bid_id,omitempty" json:"winning_bid_id,omitempty"`
	HighestAmount    int64      `bson:"highest_amount" json:"-"`
	BidCount         int        `bson:"bid_count" json:"-"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
	ClosedAt         *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}

// Status derives the lifecycle state of the room at the given instant.
// Closed is terminal and takes precedence over expiry.
func (r *Room) Status(now time.Time) RoomStatus {
	if !r.IsPaid {
		return RoomStatusDraft
	}
	if r.WinningBidID != nil {
		return RoomStatusClosed
	}
	if !now.Before(r.Deadline) {
		return RoomStatusExpired
	}
	return RoomStatusActive
}
