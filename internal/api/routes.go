package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/puzzlerush/backend/internal/api/handlers"
	"github.com/puzzlerush/backend/internal/config"
	"github.com/puzzlerush/backend/internal/game"
	"github.com/puzzlerush/backend/internal/middleware"
	"github.com/puzzlerush/backend/internal/ws"
	"github.com/redis/go-redis/v9"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, hub *ws.Hub, gameSvc *game.Service, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/time", handlers.GetServerTime())

		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db, cfg))
			auth.POST("/login", handlers.Login(db, cfg))
		}

		// Alert stream upgrades to a websocket, auth comes from the
		// token query param instead of a header
		v1.GET("/alerts/ws", ws.HandleAlerts(hub, cfg.JWTSecret))

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(cfg.JWTSecret))
		{
			queue := authed.Group("/queue")
			{
				queue.POST("/join", handlers.JoinQueue(db, rdb))
				queue.DELETE("/leave", handlers.LeaveQueue(db, rdb))
				queue.GET("/status", handlers.QueueStatus(db))
			}

			match := authed.Group("/match")
			{
				match.POST("/complete", handlers.CompleteMatch(gameSvc))
				match.GET("/:id", handlers.GetMatch(db))
				match.POST("/:id/progress", handlers.UpdateProgress(db))
			}

			authed.GET("/player/history", handlers.GetHistory(db))

			authed.POST("/devices", handlers.RegisterDevice(db))
		}
	}
}
