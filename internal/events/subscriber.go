package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/puzzlerush/backend/internal/models"
)

// Handlers receives decoded trigger payloads. Each invocation runs on its own
// goroutine; implementations must tolerate duplicate delivery.
type Handlers struct {
	QueueChanged func(ctx context.Context, userID string)
	QueueCreated func(ctx context.Context, entry models.QueueEntry)
	MatchRemoved func(ctx context.Context, snapshot models.Match)
}

// StartSubscriber subscribes to the trigger channels and dispatches incoming
// events until ctx is cancelled.
func StartSubscriber(ctx context.Context, rdb *redis.Client, h Handlers) {
	if rdb == nil {
		log.Println("[EVENTS] Redis client not set; trigger subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, ChannelQueueChanged, ChannelQueueCreated, ChannelMatchRemoved)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[EVENTS] trigger subscriber started")
		for {
			select {
			case <-ctx.Done():
				log.Println("[EVENTS] trigger subscriber stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Println("[EVENTS] trigger channel closed")
					return
				}
				dispatch(ctx, h, msg.Channel, []byte(msg.Payload))
			}
		}
	}()
}

func dispatch(ctx context.Context, h Handlers, channel string, payload []byte) {
	switch channel {
	case ChannelQueueChanged:
		var ev QueueEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.UserID == "" {
			log.Printf("[EVENTS] invalid %s payload: %v", channel, err)
			return
		}
		if h.QueueChanged != nil {
			go h.QueueChanged(ctx, ev.UserID)
		}

	case ChannelQueueCreated:
		var ev QueueEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Entry == nil {
			log.Printf("[EVENTS] invalid %s payload: %v", channel, err)
			return
		}
		if h.QueueCreated != nil {
			go h.QueueCreated(ctx, *ev.Entry)
		}

	case ChannelMatchRemoved:
		var ev MatchRemovedEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.MatchID == "" {
			log.Printf("[EVENTS] invalid %s payload: %v", channel, err)
			return
		}
		if h.MatchRemoved != nil {
			go h.MatchRemoved(ctx, ev.Snapshot)
		}

	default:
		log.Printf("[EVENTS] unknown channel: %s", channel)
	}
}
