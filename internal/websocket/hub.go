package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"strive-chatbot-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule = "Hub"

	// ClusterChannel is the redis channel every instance relays session events through.
	ClusterChannel = "chatbot_session_events"
)

// Envelope is the frame pushed to clients for asynchronous session events.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionId string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

// Hub tracks the websocket clients of each chat session.
type Hub struct {
	// Registered clients: SessionId -> connections (several tabs may share a session)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out; nil runs the hub standalone.
	rdb      *redis.Client
	instance string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instance:   uuid.NewString(),
		logger:     log,
	}
}

// Run serves register/unregister requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionId] = append(h.clients[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"session_id": client.SessionId})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// join registers a client; it reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client. After Run returns it only closes the client.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.SessionId]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionId] = append(clients[:i], clients[i+1:]...)
			client.closeSend()
			break
		}
	}
	if len(h.clients[client.SessionId]) == 0 {
		delete(h.clients, client.SessionId)
		h.logger.Info(hubModule, "Session has no more clients", map[string]interface{}{"session_id": client.SessionId})
	}
}

// Send delivers an event to the session's local clients and relays it to the other instances.
func (h *Hub) Send(ctx context.Context, sessionId, eventType string, data interface{}) {
	frame, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode session event", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
		return
	}

	h.deliver(sessionId, frame)

	if h.rdb == nil {
		return
	}
	payload, _ := json.Marshal(clusterMessage{Origin: h.instance, SessionId: sessionId, Message: frame})
	if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn(hubModule, "Failed to relay session event", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
}

// Connected reports how many local clients watch the session.
func (h *Hub) Connected(sessionId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionId])
}

func (h *Hub) deliver(sessionId string, frame []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[sessionId]...)
	h.mu.RUnlock()

	for _, client := range clients {
		if client.enqueue(frame) || !client.startDrop() {
			continue
		}
		h.logger.Warn(hubModule, "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionId})
		go h.leave(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn(hubModule, "Malformed cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		// Our own relays were delivered locally in Send.
		if payload.Origin == h.instance {
			continue
		}
		h.deliver(payload.SessionId, payload.Message)
	}
}
