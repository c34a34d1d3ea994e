package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/events"
	"github.com/puzzlerush/backend/internal/middleware"
	"github.com/puzzlerush/backend/internal/models"
)

// JoinQueue creates (or refreshes) the caller's queue entry and publishes
// the matchmaking triggers. Re-joining just bumps joined_at; the pairing
// engine treats creation and update as the same signal.
func JoinQueue(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var user models.User
		err := db.Get(&user, `SELECT id, username, avatar FROM users WHERE id = $1`, userID)
		if err != nil {
			log.Printf("[QUEUE] user lookup failed for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// xmax = 0 distinguishes a fresh insert from a conflict update, so a
		// re-join refreshes joined_at without re-alerting everyone.
		var entry struct {
			models.QueueEntry
			Inserted bool `db:"inserted"`
		}
		err = db.Get(&entry,
			`INSERT INTO queue_entries (user_id, username, avatar, joined_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (user_id) DO UPDATE SET joined_at = NOW()
			 RETURNING user_id, username, avatar, joined_at, (xmax = 0) AS inserted`,
			user.ID, user.Username, user.Avatar)
		if err != nil {
			log.Printf("[QUEUE] failed to enqueue %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join queue"})
			return
		}

		ctx := context.Background()
		if entry.Inserted {
			events.PublishQueueCreated(ctx, rdb, entry.QueueEntry)
		}
		events.PublishQueueChanged(ctx, rdb, entry.UserID)

		c.JSON(http.StatusOK, gin.H{"queued": true, "joined_at": entry.JoinedAt})
	}
}

// LeaveQueue withdraws the caller's entry. Leaving when not queued is fine.
func LeaveQueue(db *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		if _, err := db.Exec(`DELETE FROM queue_entries WHERE user_id = $1`, userID); err != nil {
			log.Printf("[QUEUE] failed to dequeue %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave queue"})
			return
		}

		events.PublishQueueChanged(context.Background(), rdb, userID)

		c.JSON(http.StatusOK, gin.H{"queued": false})
	}
}

// QueueStatus reports whether the caller is still waiting or already matched.
func QueueStatus(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var entry models.QueueEntry
		err := db.Get(&entry,
			`SELECT user_id, username, avatar, joined_at FROM queue_entries WHERE user_id = $1`, userID)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "queued", "joined_at": entry.JoinedAt})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[QUEUE] status lookup failed for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var matchID string
		err = db.Get(&matchID,
			`SELECT id FROM matches
			 WHERE (player1_id = $1 OR player2_id = $1) AND completed_at IS NULL
			 ORDER BY start_at DESC LIMIT 1`, userID)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "matched", "match_id": matchID})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[QUEUE] match lookup failed for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "idle"})
	}
}
