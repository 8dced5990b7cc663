package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"invitedoffer/offerroom/internal/services"
)

// respondServiceError maps a service error to an HTTP response.
// Status codes follow the error taxonomy: not found 404, bad token 403,
// wrong lifecycle state 409, bad input 400, provider failure 502.
func respondServiceError(c *gin.Context, err error) {
	var se *services.Error
	if errors.As(err, &se) {
		body := gin.H{"error": se.Message}
		if se.CurrentHighest > 0 {
			body["current_highest"] = se.CurrentHighest
		}
		if se.Pending {
			body["pending"] = true
		}
		switch se.Kind {
		case services.KindNotFound:
			c.JSON(http.StatusNotFound, body)
		case services.KindUnauthorized:
			c.JSON(http.StatusForbidden, body)
		case services.KindInvalidState:
			c.JSON(http.StatusConflict, body)
		case services.KindValidation:
			c.JSON(http.StatusBadRequest, body)
		case services.KindUpstream:
			log.Printf("Upstream error on %s: %v", c.FullPath(), err)
			c.JSON(http.StatusBadGateway, body)
		default:
			log.Printf("Unclassified service error on %s: %v", c.FullPath(), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		}
		return
	}

	log.Printf("Internal error on %s: %v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

// requestBaseURL reconstructs the externally visible base URL of the request
// for building redirect and email links.
func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
