package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"invitedoffer/offerroom/internal/services"
)

// RestBidHandler serves the bid placement endpoint.
type RestBidHandler struct {
	bidService  services.IBidService
	roomService services.IRoomService
	notifier    services.INotificationService
}

// NewRestBidHandler creates a new RestBidHandler.
func NewRestBidHandler(bidService services.IBidService, roomService services.IRoomService, notifier services.INotificationService) *RestBidHandler {
	return &RestBidHandler{
		bidService:  bidService,
		roomService: roomService,
		notifier:    notifier,
	}
}

type placeBidRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	BidderEmail string `json:"bidder_email" binding:"required,email"`
}

// PlaceBid places a bid in a room. Admission is decided atomically in the
// bid service; on success the seller and bidder are notified asynchronously.
func (h *RestBidHandler) PlaceBid(c *gin.Context) {
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	roomID := c.Param("id")
	bid, err := h.bidService.PlaceBid(c.Request.Context(), roomID, req.Amount, req.BidderEmail)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Notifications need the room's seller email and owner link. A fetch
	// failure here only costs the emails, never the accepted bid.
	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		log.Printf("Bid %s accepted but room fetch for notification failed: %v", bid.ID, err)
	} else {
		h.notifier.BidPlaced(c.Request.Context(), room, bid, requestBaseURL(c))
	}

	c.JSON(http.StatusOK, gin.H{"bid": gin.H{
		"id":         bid.ID,
		"amount":     bid.Amount,
		"created_at": bid.CreatedAt,
	}})
}
