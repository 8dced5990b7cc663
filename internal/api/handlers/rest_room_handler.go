package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invitedoffer/offerroom/internal/services"
)

// RestRoomHandler serves the room lifecycle endpoints.
type RestRoomHandler struct {
	roomService    services.IRoomService
	paymentService services.IPaymentService
	notifier       services.INotificationService
}

// NewRestRoomHandler creates a new RestRoomHandler.
func NewRestRoomHandler(roomService services.IRoomService, paymentService services.IPaymentService, notifier services.INotificationService) *RestRoomHandler {
	return &RestRoomHandler{
		roomService:    roomService,
		paymentService: paymentService,
		notifier:       notifier,
	}
}

type createRoomRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Images      []string  `json:"images"`
	Deadline    time.Time `json:"deadline" binding:"required"`
	SellerEmail string    `json:"seller_email" binding:"required,email"`
	PlanType    string    `json:"plan_type" binding:"required"`
}

// CreateRoom creates a new unpaid room. The owner token is included in this
// response only; it never appears on any later public read.
func (h *RestRoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), services.CreateRoomInput{
		Title:       req.Title,
		Description: req.Description,
		Images:      req.Images,
		Deadline:    req.Deadline,
		SellerEmail: req.SellerEmail,
		PlanType:    req.PlanType,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": gin.H{
		"id":           room.ID,
		"owner_token":  room.OwnerToken,
		"title":        room.Title,
		"description":  room.Description,
		"images":       room.Images,
		"deadline":     room.Deadline,
		"seller_email": room.SellerEmail,
		"plan_type":    room.PlanType,
		"is_paid":      room.IsPaid,
		"created_at":   room.CreatedAt,
	}})
}

// GetRoom is the public, anonymized room read for share-link holders.
func (h *RestRoomHandler) GetRoom(c *gin.Context) {
	view, err := h.roomService.PublicView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetOwnerRoom is the full room read for the management-token holder.
func (h *RestRoomHandler) GetOwnerRoom(c *gin.Context) {
	view, err := h.roomService.OwnerView(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartCheckout opens a hosted checkout session for the room's plan fee and
// returns the redirect URL.
func (h *RestRoomHandler) StartCheckout(c *gin.Context) {
	url, err := h.paymentService.StartCheckout(c.Request.Context(), c.Param("id"), requestBaseURL(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// VerifyPayment is the synchronous activation fallback polled by the
// checkout success page.
func (h *RestRoomHandler) VerifyPayment(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID required"})
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), c.Param("id"), sessionID, requestBaseURL(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !result.Paid {
		c.JSON(http.StatusOK, gin.H{
			"paid":    false,
			"pending": true,
			"message": "Payment is being processed. Please wait...",
		})
		return
	}

	// The owner token here lets the success page hand the seller their
	// management link after payment.
	c.JSON(http.StatusOK, gin.H{
		"paid": true,
		"room": gin.H{
			"id":          result.Room.ID,
			"title":       result.Room.Title,
			"plan_type":   result.Room.PlanType,
			"owner_token": result.Room.OwnerToken,
		},
	})
}

type closeRoomRequest struct {
	Token string `json:"token" binding:"required"`
	BidID string `json:"bid_id" binding:"required"`
}

// CloseRoom accepts a bid and ends the auction.
func (h *RestRoomHandler) CloseRoom(c *gin.Context) {
	var req closeRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	room, winner, err := h.roomService.CloseAuction(c.Request.Context(), c.Param("id"), req.Token, req.BidID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.notifier.AuctionClosed(c.Request.Context(), room, winner, requestBaseURL(c))

	c.JSON(http.StatusOK, gin.H{"room": gin.H{
		"id":             room.ID,
		"title":          room.Title,
		"winning_bid_id": room.WinningBidID,
		"closed_at":      room.ClosedAt,
	}})
}
