package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/models"
)

// Trigger channels. Delivery is at-least-once with no ordering guarantee
// across documents, so every handler must be re-entrant and idempotent for
// the same logical event.
const (
	ChannelQueueChanged = "queue:changed"
	ChannelQueueCreated = "queue:created"
	ChannelMatchRemoved = "match:removed"
)

// QueueEvent is published when a queue entry is created, updated or removed.
// The created channel additionally carries the entry for the fan-out.
type QueueEvent struct {
	UserID string             `json:"user_id"`
	Entry  *models.QueueEntry `json:"entry,omitempty"`
}

// MatchRemovedEvent carries the last known snapshot of a removed match; the
// document itself is already gone from the store by the time this fires.
type MatchRemovedEvent struct {
	MatchID  string       `json:"match_id"`
	Snapshot models.Match `json:"snapshot"`
}

// PublishQueueChanged signals the pairing engine that userID's entry changed.
func PublishQueueChanged(ctx context.Context, rdb *redis.Client, userID string) {
	publish(ctx, rdb, ChannelQueueChanged, QueueEvent{UserID: userID})
}

// PublishQueueCreated signals the notification fan-out that a player joined.
func PublishQueueCreated(ctx context.Context, rdb *redis.Client, entry models.QueueEntry) {
	publish(ctx, rdb, ChannelQueueCreated, QueueEvent{UserID: entry.UserID, Entry: &entry})
}

// PublishMatchRemoved signals the settlement coordinator with the pre-delete
// snapshot of a removed match.
func PublishMatchRemoved(ctx context.Context, rdb *redis.Client, snapshot models.Match) {
	publish(ctx, rdb, ChannelMatchRemoved, MatchRemovedEvent{MatchID: snapshot.ID, Snapshot: snapshot})
}

// publish is best-effort: a lost trigger is recovered by the next event for
// the same document, never by blocking the caller.
func publish(ctx context.Context, rdb *redis.Client, channel string, payload interface{}) {
	if rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] failed to encode %s payload: %v", channel, err)
		return
	}
	if err := rdb.Publish(ctx, channel, b).Err(); err != nil {
		log.Printf("[EVENTS] failed to publish to %s: %v", channel, err)
	}
}
