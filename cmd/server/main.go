package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/puzzlerush/backend/internal/alerts"
	"github.com/puzzlerush/backend/internal/api"
	"github.com/puzzlerush/backend/internal/config"
	"github.com/puzzlerush/backend/internal/database"
	"github.com/puzzlerush/backend/internal/events"
	"github.com/puzzlerush/backend/internal/game"
	"github.com/puzzlerush/backend/internal/migrations"
	"github.com/puzzlerush/backend/internal/notify"
	"github.com/puzzlerush/backend/internal/push"
	"github.com/puzzlerush/backend/internal/redis"
	"github.com/puzzlerush/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Initialize push gateway client (if configured)
	if cfg.PushServiceBaseURL != "" && cfg.PushServiceUsername != "" && cfg.PushServicePassword != "" {
		pushClient := push.NewClient(cfg, rdb)
		if pushClient != nil {
			push.SetDefault(pushClient)
			log.Printf("[PUSH] push client initialized (base=%s)", cfg.PushServiceBaseURL)
		}
	} else {
		log.Printf("[PUSH] push gateway is not configured (PUSH_SERVICE_BASE_URL/PUSH_SERVICE_USERNAME missing)")
	}

	// Initialize ops webhook alerts (if configured)
	if alertClient := alerts.NewClient(cfg); alertClient != nil {
		alerts.SetDefault(alertClient)
		log.Println("[ALERTS] ops webhook alerts enabled")
	} else {
		log.Println("[ALERTS] ops webhook not configured - join alerts disabled")
	}

	// Websocket hub for in-app alerts and match notifications
	hub := ws.NewHub()

	gameSvc := game.NewService(db, rdb, hub)
	notifySvc := notify.NewService(db, rdb, hub)

	// Queue and match events drive pairing, settlement and fan-out
	events.StartSubscriber(context.Background(), rdb, events.Handlers{
		QueueChanged: gameSvc.HandleQueueEntryChanged,
		QueueCreated: notifySvc.HandleQueueEntryCreated,
		MatchRemoved: gameSvc.HandleMatchRemoved,
	})

	// Start expiry sweeper (removes matches past their play window)
	go gameSvc.StartExpirySweeper(context.Background(), time.Duration(cfg.MatchExpirySweepSeconds)*time.Second)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, rdb, hub, gameSvc, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PuzzleRush server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
