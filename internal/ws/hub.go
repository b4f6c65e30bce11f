package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/mozilla/clouseau/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "clouseau:view_changed"

// EventViewChanged tells a browser its session state moved after a fetch
const EventViewChanged = "view_changed"

// Event is a push message sent to the browsers of one session
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ViewChangedPayload is the payload of EventViewChanged
type ViewChangedPayload struct {
	Idle bool `json:"idle"`
}

// Hub fans push events out to the WebSocket clients of each session
type Hub struct {
	// Registered clients grouped by session ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *targetedEvent

	mu          sync.RWMutex
	id          string
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

type targetedEvent struct {
	Origin    string `json:"origin,omitempty"`
	SessionID string `json:"session_id"`
	Event     *Event `json:"event"`

	// relay is set for events raised here that other instances should see
	relay bool
}

// NewHub creates a new Hub. With a Redis client, events are also relayed to
// other dashboard instances, whose browsers may hold sockets for sessions
// living here.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *targetedEvent, 256),
		id:          uuid.NewString(),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.sessionID] == nil {
				h.clients[client.sessionID] = make(map[*Client]bool)
			}
			h.clients[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			if msg.relay && h.redisClient != nil {
				h.publish(msg)
			}
			data, err := json.Marshal(msg.Event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients[msg.SessionID] {
				client.queue(data)
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// drop removes client; h.mu must be held
func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.sessionID)
	}
}

// ViewChanged notifies the browsers of sessionID. It never blocks; when the
// hub is backed up the event is dropped.
func (h *Hub) ViewChanged(sessionID string, idle bool) {
	h.SendToSession(sessionID, &Event{Type: EventViewChanged, Payload: ViewChangedPayload{Idle: idle}})
}

// SendToSession queues an event for one session, delivered locally and
// published to Redis by the hub loop
func (h *Hub) SendToSession(sessionID string, event *Event) {
	h.local(&targetedEvent{Origin: h.id, SessionID: sessionID, Event: event, relay: true})
}

func (h *Hub) publish(msg *targetedEvent) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("failed to relay push event")
	}
}

func (h *Hub) local(msg *targetedEvent) {
	select {
	case h.broadcast <- msg:
	default:
		logger.GetLogger().Warn().Str("session_id", msg.SessionID).Msg("push queue full, dropping event")
	}
}

// Clients returns the number of sockets registered for sessionID
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// subscribeRedis relays events published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var te targetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &te); err != nil || te.Origin == h.id {
				continue
			}
			// local only, never re-published
			h.local(&te)
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down
func (h *Hub) Stop() {
	h.cancel()
}
