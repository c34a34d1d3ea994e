package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/puzzlerush/backend/internal/config"
	"github.com/puzzlerush/backend/internal/middleware"
	"github.com/puzzlerush/backend/internal/models"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

// Register creates a user account and returns a session token.
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || len(req.Password) < 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and a password of 6+ characters required"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[AUTH] failed to hash password: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		user := models.User{
			ID:       generateUserID(),
			Username: req.Username,
			Avatar:   req.Avatar,
		}
		_, err = db.Exec(
			`INSERT INTO users (id, username, avatar, password_hash) VALUES ($1, $2, $3, $4)`,
			user.ID, user.Username, user.Avatar, string(hash))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}

		issueSession(c, cfg, user)
	}
}

// Login verifies credentials and returns a session token.
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		var user models.User
		err := db.Get(&user,
			`SELECT id, username, avatar, password_hash, created_at FROM users WHERE username = $1`,
			strings.TrimSpace(req.Username))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("[AUTH] login lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		issueSession(c, cfg, user)
	}
}

func issueSession(c *gin.Context, cfg *config.Config, user models.User) {
	ttl := time.Duration(cfg.SessionTimeoutMin) * time.Minute
	token, err := middleware.IssueUserToken(user.ID, cfg.JWTSecret, ttl)
	if err != nil {
		log.Printf("[AUTH] failed to sign token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"avatar":   user.Avatar,
		},
	})
}
