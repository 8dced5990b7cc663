package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"invitedoffer/offerroom/internal/api/handlers"
	"invitedoffer/offerroom/internal/api/middleware"
	"invitedoffer/offerroom/internal/config"
	"invitedoffer/offerroom/internal/payments"
	"invitedoffer/offerroom/internal/services"
	"invitedoffer/offerroom/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient services.IAsynqClient, provider payments.Provider) *gin.Engine {
	// Initialize services needed by API handlers HERE
	roomService := services.NewRoomService(db, cfg)
	bidService := services.NewBidService(db, cfg)
	notifier := services.NewNotificationService(cfg, taskClient)
	paymentService := services.NewPaymentService(cfg, provider, roomService, notifier)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	roomHandler := handlers.NewRestRoomHandler(roomService, paymentService, notifier)
	bidHandler := handlers.NewRestBidHandler(bidService, roomService, notifier)
	webhookHandler := handlers.NewRestWebhookHandler(paymentService)
	imageHandler := handlers.NewRestImageHandler(roomService, s3StorageService, taskClient)

	v1 := r.Group("/v1")
	{
		v1.POST("/rooms", roomHandler.CreateRoom)
		v1.POST("/rooms/:id/checkout", roomHandler.StartCheckout)
		v1.GET("/rooms/:id/verify-payment", roomHandler.VerifyPayment)
		v1.GET("/rooms/:id", roomHandler.GetRoom)
		v1.POST("/rooms/:id/bids", bidHandler.PlaceBid)
		v1.POST("/rooms/:id/close", roomHandler.CloseRoom)
		v1.POST("/rooms/:id/images", imageHandler.RequestUpload)
		v1.POST("/rooms/:id/images/process", imageHandler.ProcessImage)

		// Owner reads live under their own prefix so a token never
		// collides with a room ID.
		v1.GET("/rooms/owner/:token", roomHandler.GetOwnerRoom)

		v1.POST("/payments/webhook", webhookHandler.HandlePaymentWebhook)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
	}

	return r
}

// SetupServiceRouter configures and returns the internal service Gin engine.
// Requires the Redis client for the getTestEmail endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			kind := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, kind)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
