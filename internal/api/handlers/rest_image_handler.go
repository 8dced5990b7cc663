package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"invitedoffer/offerroom/internal/services"
	"invitedoffer/offerroom/internal/storage"
	"invitedoffer/offerroom/internal/tasks"
)

// RestImageHandler serves the room image upload flow: presigned PUT URL
// issuance and post-upload processing.
type RestImageHandler struct {
	roomService services.IRoomService
	storage     storage.IObjectStorage
	taskClient  services.IAsynqClient
}

// NewRestImageHandler creates a new RestImageHandler.
func NewRestImageHandler(roomService services.IRoomService, store storage.IObjectStorage, taskClient services.IAsynqClient) *RestImageHandler {
	return &RestImageHandler{
		roomService: roomService,
		storage:     store,
		taskClient:  taskClient,
	}
}

type requestUploadRequest struct {
	Token       string `json:"token" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// RequestUpload issues a presigned PUT URL for a room image. Only the
// management-token holder may upload.
func (h *RestImageHandler) RequestUpload(c *gin.Context) {
	var req requestUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content type must be an image"})
		return
	}

	roomID := c.Param("id")
	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if room.OwnerToken != req.Token {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return
	}

	url, key, err := h.storage.GeneratePresignedPutURL(c.Request.Context(), roomID, req.Filename, req.ContentType)
	if err != nil {
		log.Printf("Failed to presign upload for room %s: %v", roomID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to prepare upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

type processImageRequest struct {
	Token string `json:"token" binding:"required"`
	Key   string `json:"key" binding:"required"`
}

// ProcessImage enqueues normalization of an uploaded image. The key must be
// one issued for this room.
func (h *RestImageHandler) ProcessImage(c *gin.Context) {
	var req processImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	roomID := c.Param("id")
	if !h.storage.IsManagedKey(req.Key) || !strings.HasPrefix(req.Key, "rooms/"+roomID+"/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image key for this room"})
		return
	}

	room, err := h.roomService.FindRoomByID(c.Request.Context(), roomID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if room.OwnerToken != req.Token {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return
	}

	payload, err := json.Marshal(tasks.ImageTaskPayload{S3Key: req.Key, RoomID: roomID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	task := asynq.NewTask(tasks.TypeImageProcess, payload)
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task, asynq.Queue("images")); err != nil {
		log.Printf("Failed to enqueue image processing for room %s key %s: %v", roomID, req.Key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue image processing"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queued": true, "key": req.Key})
}
