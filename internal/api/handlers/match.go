package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/puzzlerush/backend/internal/database"
	"github.com/puzzlerush/backend/internal/game"
	"github.com/puzzlerush/backend/internal/middleware"
	"github.com/puzzlerush/backend/internal/models"
)

// CompleteMatch is the explicit settlement entry point. Validation failures
// reject the call before any store access; internal failures surface as a
// wrapped error message.
func CompleteMatch(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MatchID string `json:"match_id"`
		}
		if err := c.BindJSON(&req); err != nil || req.MatchID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "match_id required"})
			return
		}

		result, err := svc.CompleteMatch(c.Request.Context(), req.MatchID)
		if err != nil {
			log.Printf("[MATCH] completion of %s failed: %v", req.MatchID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to complete match: %v", err)})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"match_id": result.MatchID,
			"winner":   result.WinnerID,
			"is_draw":  result.IsDraw,
		})
	}
}

// GetMatch returns one match the caller participates in.
func GetMatch(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		matchID := c.Param("id")

		var m models.Match
		err := db.Get(&m,
			`SELECT id, player1_id, player2_id, player_states, puzzle_id,
			        created_at, start_at, max_duration_secs, winner_id, is_draw, completed_at
			 FROM matches WHERE id = $1`, matchID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		}
		if err != nil {
			log.Printf("[MATCH] lookup of %s failed: %v", matchID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if m.Player1ID != userID && m.Player2ID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}

		c.JSON(http.StatusOK, m)
	}
}

// UpdateProgress lets a playing client report its own in-match state. The
// settlement paths only ever read these values.
func UpdateProgress(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		matchID := c.Param("id")

		var req struct {
			Progress float64 `json:"progress"`
			Finished bool    `json:"finished"`
		}
		if err := c.BindJSON(&req); err != nil || req.Progress < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "non-negative progress required"})
			return
		}

		err := database.WithTx(c.Request.Context(), db, func(tx *sqlx.Tx) error {
			var m models.Match
			err := tx.Get(&m,
				`SELECT id, player1_id, player2_id, player_states, completed_at
				 FROM matches WHERE id = $1 FOR UPDATE`, matchID)
			if err != nil {
				return err
			}
			if m.Player1ID != userID && m.Player2ID != userID {
				return errNotParticipant
			}
			if m.Settled() {
				return errMatchSettled
			}

			state := m.PlayerStates[userID]
			state.Progress = req.Progress
			if req.Finished && state.FinishedAt == nil {
				now := time.Now()
				state.FinishedAt = &now
			}
			m.PlayerStates[userID] = state

			_, err = tx.Exec(`UPDATE matches SET player_states = $1 WHERE id = $2`, m.PlayerStates, m.ID)
			return err
		})

		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		case errors.Is(err, errNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		case errors.Is(err, errMatchSettled):
			c.JSON(http.StatusConflict, gin.H{"error": "match already settled"})
		case err != nil:
			log.Printf("[MATCH] progress update for %s failed: %v", matchID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, gin.H{"success": true})
		}
	}
}

var (
	errNotParticipant = errors.New("not a participant")
	errMatchSettled   = errors.New("match already settled")
)

// GetHistory returns the caller's recent match history, newest first.
func GetHistory(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		entries := []models.MatchHistoryEntry{}
		err := db.Select(&entries,
			`SELECT id, match_id, player_id, opponent_id, opponent_username, puzzle_id, result,
			        player_progress, opponent_progress, player_finished_at, opponent_finished_at,
			        match_duration_ms, completed_at, created_at
			 FROM match_history WHERE player_id = $1
			 ORDER BY completed_at DESC LIMIT 50`, userID)
		if err != nil {
			log.Printf("[MATCH] history lookup for %s failed: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"history": entries})
	}
}
