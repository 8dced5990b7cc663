package models

import (
	"time"
)

// PublicBid is a bid as shown to anyone holding the public room link.
// Bidder emails never appear here; standard/pro rooms get rank labels instead.
type PublicBid struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
	BidderLabel string    `json:"bidder_label,omitempty"`
}

// PublicRoomView is the response shape of the public room read.
type PublicRoomView struct {
	Room struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Images      []string   `json:"images"`
		Deadline    time.Time  `json:"deadline"`
		PlanType    PlanType   `json:"plan_type"`
		Status      RoomStatus `json:"status"`
	} `json:"room"`
	Bids       []PublicBid `json:"bids"`
	HighestBid int64       `json:"highest_bid"`
	TotalBids  int         `json:"total_bids"`
}

// OwnerRoomView is the response shape of the owner room read.
// It is the only read surface that exposes bidder emails.
type OwnerRoomView struct {
	Room struct {
		ID           string     `json:"id"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Images       []string   `json:"images"`
		Deadline     time.Time  `json:"deadline"`
		SellerEmail  string     `json:"seller_email"`
		PlanType     PlanType   `json:"plan_type"`
		Status       RoomStatus `json:"status"`
		WinningBidID *string    `json:"winning_bid_id,omitempty"`
	} `json:"room"`
	Bids       []Bid `json:"bids"`
	HighestBid int64 `json:"highest_bid"`
	TotalBids  int   `json:"total_bids"`
}
