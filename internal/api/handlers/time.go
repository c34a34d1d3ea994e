package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetServerTime returns the server clock in millis. No side effects; clients
// use it to sync countdowns against start_at.
func GetServerTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"timestamp_millis": time.Now().UnixMilli()})
	}
}
