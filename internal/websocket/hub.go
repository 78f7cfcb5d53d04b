package websocket

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBalance      = "balance"
	EventAnnouncement = "announcement"
	EventRoom         = "room"
)

// Envelope is the frame written to every socket.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type BalanceUpdate struct {
	Main    string `json:"main"`
	Winning string `json:"winning"`
	Total   string `json:"total"`
	Reason  string `json:"reason,omitempty"`
}

type Notification struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"`
	Content      string    `json:"content"`
	TournamentID *string   `json:"tournament_id,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Online reports how many users currently hold at least one socket.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.send(userID, Envelope{Type: EventBalance, Data: update})
}

// Notify pushes n to every user in userIDs and returns how many were targeted.
// Offline users are counted; delivery is best effort.
func (h *Hub) Notify(userIDs []string, n Notification) int {
	payload, err := json.Marshal(Envelope{Type: EventAnnouncement, Data: n})
	if err != nil {
		return 0
	}
	for _, userID := range userIDs {
		h.deliver(userID, payload)
	}
	return len(userIDs)
}

// RoomsPublished tells the given users that room credentials are available.
func (h *Hub) RoomsPublished(userIDs []string, tournamentID string) {
	payload, err := json.Marshal(Envelope{Type: EventRoom, Data: map[string]string{"tournament_id": tournamentID}})
	if err != nil {
		return
	}
	for _, userID := range userIDs {
		h.deliver(userID, payload)
	}
}

func (h *Hub) send(userID string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.deliver(userID, payload)
}

func (h *Hub) deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
