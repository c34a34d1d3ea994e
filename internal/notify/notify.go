package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/alerts"
	"github.com/puzzlerush/backend/internal/models"
	"github.com/puzzlerush/backend/internal/push"
	"github.com/puzzlerush/backend/internal/ws"
)

// rateLimitWindow suppresses repeat join alerts for the same user.
const rateLimitWindow = 5 * time.Second

// Service fans a queue-join alert out to other registered clients: live over
// the websocket hub, push through the gateway, and a one-line ops webhook.
type Service struct {
	db  *sqlx.DB
	rdb *redis.Client
	hub *ws.Hub
}

func NewService(db *sqlx.DB, rdb *redis.Client, hub *ws.Hub) *Service {
	return &Service{db: db, rdb: rdb, hub: hub}
}

// HandleQueueEntryCreated is the fan-out trigger handler. Everything here is
// best-effort: a failed push batch or webhook never affects the join itself,
// and redelivery of the same event is absorbed by the rate-limit marker.
func (s *Service) HandleQueueEntryCreated(ctx context.Context, entry models.QueueEntry) {
	if s.rdb != nil {
		key := fmt.Sprintf("join_alert:%s", entry.UserID)
		ok, err := s.rdb.SetNX(ctx, key, "1", rateLimitWindow).Result()
		if err == nil && !ok {
			log.Printf("[NOTIFY] join alert for %s suppressed (within %v)", entry.UserID, rateLimitWindow)
			return
		}
		// ignore Redis errors and proceed
	}

	if s.hub != nil {
		s.hub.NotifyQueueJoin(entry)
	}

	s.sendPushAlerts(ctx, entry)

	if alerts.Default != nil {
		alerts.Default.NotifyUserJoined(ctx, entry.UserID, entry.Username)
	}
}

func (s *Service) sendPushAlerts(ctx context.Context, entry models.QueueEntry) {
	if push.Default == nil {
		return
	}

	var devices []models.Device
	err := s.db.SelectContext(ctx, &devices,
		`SELECT id, user_id, push_token, background_enabled, foreground_enabled, created_at, updated_at
		 FROM devices WHERE user_id <> $1`, entry.UserID)
	if err != nil {
		log.Printf("[NOTIFY] failed to load devices: %v", err)
		return
	}

	background, foreground := partitionTokens(devices)
	if len(background) == 0 && len(foreground) == 0 {
		return
	}

	data := map[string]string{
		"type":     "queue_join",
		"user_id":  entry.UserID,
		"username": entry.Username,
	}

	var report push.Report
	if len(background) > 0 {
		r := push.Default.SendMulticast(ctx, background, push.Message{
			Title: "An opponent is waiting",
			Body:  fmt.Sprintf("%s just joined the queue. Jump in!", entry.Username),
			Data:  data,
		})
		report.Success += r.Success
		report.Failure += r.Failure
	}
	if len(foreground) > 0 {
		r := push.Default.SendMulticast(ctx, foreground, push.Message{
			Data:   data,
			Silent: true,
		})
		report.Success += r.Success
		report.Failure += r.Failure
	}

	log.Printf("[NOTIFY] join alert for %s pushed: background=%d foreground=%d ok=%d failed=%d",
		entry.UserID, len(background), len(foreground), report.Success, report.Failure)
}

// partitionTokens splits device tokens into the visible-notification group
// (background alerts enabled) and the silent-data group (only foreground
// alerts enabled). An unset preference counts as enabled; devices with both
// disabled are skipped.
func partitionTokens(devices []models.Device) (background, foreground []string) {
	for _, d := range devices {
		if d.PushToken == "" {
			continue
		}
		bg := !d.BackgroundEnabled.Valid || d.BackgroundEnabled.Bool
		fg := !d.ForegroundEnabled.Valid || d.ForegroundEnabled.Bool
		switch {
		case bg:
			background = append(background, d.PushToken)
		case fg:
			foreground = append(foreground, d.PushToken)
		}
	}
	return background, foreground
}
