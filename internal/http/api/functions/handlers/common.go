package handlers

import (
	"errors"
	"net/http"

	"github.com/avnova/sqyros/internal/assist"
	"github.com/avnova/sqyros/internal/logging"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Preflight answers CORS preflight requests; the CORS middleware sets the headers.
func Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// caller builds the assist caller from the authenticated context.
func caller(c *gin.Context) assist.Caller {
	return assist.Caller{
		UserID:    c.GetString("userID"),
		RequestID: logging.GinRequestID(c),
	}
}

// writeError renders a service failure. Only the public message is sent to the client.
func writeError(c *gin.Context, err error) {
	var apiErr *assist.Error
	if !errors.As(err, &apiErr) {
		log.WithError(err).WithField("request_id", logging.GinRequestID(c)).Error("functions: unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if apiErr.Status == http.StatusTooManyRequests {
		c.JSON(apiErr.Status, gin.H{
			"error":      apiErr.Code,
			"message":    apiErr.Message,
			"upgradeUrl": apiErr.UpgradeURL,
		})
		return
	}
	c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
}
