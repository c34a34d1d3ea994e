package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/puzzlerush/backend/internal/models"
)

// Client is one connected alert stream.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub tracks connected clients by user id and fans alert messages out to
// them. It carries only lightweight signals (queue joins, match found); all
// in-match traffic happens elsewhere.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect replaces the previous stream for the same user.
	if old, exists := h.clients[c.UserID]; exists {
		close(old.Send)
	}
	h.clients[c.UserID] = c
	log.Printf("[WS] client %s connected", c.UserID)
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, exists := h.clients[c.UserID]; exists && cur == c {
		delete(h.clients, c.UserID)
		close(c.Send)
		log.Printf("[WS] client %s disconnected", c.UserID)
	}
}

// SendToUser delivers one message to a single connected user. Slow consumers
// are skipped rather than blocking the caller.
func (h *Hub) SendToUser(userID string, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[userID]
	if !exists {
		return false
	}

	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// BroadcastExcept sends a message to every connected client except the given
// user.
func (h *Hub) BroadcastExcept(exceptUserID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		if id == exceptUserID {
			continue
		}
		select {
		case client.Send <- message:
		default:
		}
	}
}

// NotifyMatchFound implements game.MatchNotifier: both players get a live
// match_found signal if they are connected.
func (h *Hub) NotifyMatchFound(m models.Match) {
	payload := struct {
		Type     string `json:"type"`
		MatchID  string `json:"match_id"`
		PuzzleID int    `json:"puzzle_id"`
		StartAt  int64  `json:"start_at_ms"`
	}{
		Type:     "match_found",
		MatchID:  m.ID,
		PuzzleID: m.PuzzleID,
		StartAt:  m.StartAt.UnixMilli(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WS] failed to encode match_found: %v", err)
		return
	}

	for _, playerID := range m.Players() {
		if !h.SendToUser(playerID, b) {
			log.Printf("[WS] player %s not connected for match_found", playerID)
		}
	}
}

// NotifyQueueJoin broadcasts a join alert to everyone except the joiner.
func (h *Hub) NotifyQueueJoin(entry models.QueueEntry) {
	payload := struct {
		Type     string `json:"type"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}{
		Type:     "queue_join",
		UserID:   entry.UserID,
		Username: entry.Username,
		Avatar:   entry.Avatar,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WS] failed to encode queue_join: %v", err)
		return
	}
	h.BroadcastExcept(entry.UserID, b)
}
