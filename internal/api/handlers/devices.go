package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/puzzlerush/backend/internal/middleware"
)

// RegisterDevice upserts a push token with its alert preferences. Omitted
// preferences stay NULL and default to enabled at fan-out time.
func RegisterDevice(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var req struct {
			PushToken         string `json:"push_token"`
			BackgroundEnabled *bool  `json:"background_enabled"`
			ForegroundEnabled *bool  `json:"foreground_enabled"`
		}
		if err := c.BindJSON(&req); err != nil || req.PushToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "push_token required"})
			return
		}

		_, err := db.Exec(
			`INSERT INTO devices (user_id, push_token, background_enabled, foreground_enabled)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (push_token) DO UPDATE SET
			   user_id = EXCLUDED.user_id,
			   background_enabled = EXCLUDED.background_enabled,
			   foreground_enabled = EXCLUDED.foreground_enabled,
			   updated_at = NOW()`,
			userID, req.PushToken, req.BackgroundEnabled, req.ForegroundEnabled)
		if err != nil {
			log.Printf("[DEVICES] failed to register device for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
