package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware sets the necessary CORS headers.
// The public room link is meant to be opened from anywhere, so all origins
// are allowed; no credentials are ever carried in requests.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Stripe-Signature"},
		MaxAge:          12 * time.Hour,
	})
}
