// internal/socket/hub.go
package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageDuePaid          MessageType = "due_paid"
	MessageInviteAccepted   MessageType = "invite_accepted"
	MessageDonationReceived MessageType = "donation_received"

	// System messages
	MessagePing MessageType = "ping"
	MessagePong MessageType = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte

	mu       sync.Mutex
	lastPing time.Time
}

// DirectMessage represents a message to be sent to a specific user
type DirectMessage struct {
	UserID  string
	Message []byte
}

// Hub tracks connected clients per user and delivers direct messages.
// A user may hold several connections; each receives every message.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool

	directMessage chan *DirectMessage

	mu  sync.RWMutex
	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		directMessage: make(chan *DirectMessage, 256),
		log:           log.Named("hub"),
	}
}

// Run delivers queued messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("websocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case dm := <-h.directMessage:
			h.sendToUser(dm)

		case <-pingTicker.C:
			h.pingClients()

		case <-ctx.Done():
			h.closeAll()
			h.log.Info("websocket hub stopped")
			return
		}
	}
}

// Register adds a client. It is visible to SendToUser as soon as it returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	h.log.Debug("client registered",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if clients, ok := h.userClients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	close(client.Send)

	h.log.Debug("client disconnected",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *Hub) sendToUser(dm *DirectMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.userClients[dm.UserID] {
		h.deliverLocked(client, dm.Message)
	}
}

// sendToClient delivers to one connection if it is still registered.
func (h *Hub) sendToClient(client *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		h.deliverLocked(client, data)
	}
}

func (h *Hub) pingClients() {
	data, _ := json.Marshal(Message{Type: MessagePing, Timestamp: time.Now()})

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.deliverLocked(client, data)
	}
}

// deliverLocked drops a client whose buffer is full; it is too slow to keep up.
func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.log.Warn("dropping slow client", zap.String("user_id", client.UserID))
		h.removeLocked(client)
	}
}

// ============================================
// Public Methods for Sending Messages
// ============================================

// SendToUser queues a message for every connection of userID. It never blocks;
// if the hub is saturated the message is dropped.
func (h *Hub) SendToUser(userID string, msgType MessageType, payload map[string]interface{}) {
	data, err := json.Marshal(Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("marshal message", zap.Error(err))
		return
	}

	select {
	case h.directMessage <- &DirectMessage{UserID: userID, Message: data}:
	default:
		h.log.Warn("hub queue full, dropping message",
			zap.String("user_id", userID),
			zap.String("type", string(msgType)),
		)
	}
}

// ============================================
// Query Methods
// ============================================

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
