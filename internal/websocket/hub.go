package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"lecture-anki-backend/internal/models"
	"lecture-anki-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SnapshotSource returns the last progress update recorded for a request.
type SnapshotSource interface {
	Latest(ctx context.Context, requestID string) (*models.ProgressUpdate, error)
}

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans progress updates out to the sockets watching a request id. With a Redis
// client it relays the pub/sub channel of each watched request; without one it is
// itself the progress publisher of this process.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	snapshots   SnapshotSource
	cancelFuncs map[string]context.CancelFunc
	log         *logrus.Entry
}

func NewHub(redisClient *redis.Client, snapshots SnapshotSource, log *logrus.Entry) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		snapshots:   snapshots,
		cancelFuncs: make(map[string]context.CancelFunc),
		log:         log.WithField("component", "websocket"),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.registerConnection(requestID, c)
	h.sendSnapshot(r.Context(), requestID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(requestID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) sendSnapshot(ctx context.Context, requestID string, c *client) {
	if h.snapshots == nil {
		return
	}
	update, err := h.snapshots.Latest(ctx, requestID)
	if err != nil {
		h.log.WithError(err).WithField("request_id", requestID).Warn("failed to load progress snapshot")
		return
	}
	if update == nil {
		return
	}
	data, err := json.Marshal(models.WSMessage{Type: "progress", Payload: update})
	if err != nil {
		return
	}
	c.write(data)
}

func (h *Hub) registerConnection(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[requestID] = append(h.connections[requestID], c)

	// The first watcher of a request starts its subscription.
	if len(h.connections[requestID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[requestID] = cancel
		go h.subscribeToPubSub(ctx, requestID)
	}

	h.log.WithFields(logrus.Fields{"request_id": requestID, "watchers": len(h.connections[requestID])}).Debug("websocket connected")
}

func (h *Hub) unregisterConnection(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[requestID]
	for i, existing := range conns {
		if existing == c {
			h.connections[requestID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[requestID]) == 0 {
		delete(h.connections, requestID)
		if cancel, ok := h.cancelFuncs[requestID]; ok {
			cancel()
			delete(h.cancelFuncs, requestID)
		}
	}

	h.log.WithField("request_id", requestID).Debug("websocket disconnected")
}

func (h *Hub) subscribeToPubSub(ctx context.Context, requestID string) {
	pubsub := h.redisClient.Subscribe(ctx, services.ProgressChannel(requestID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(requestID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(requestID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[requestID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.log.WithError(err).WithField("request_id", requestID).Debug("dropping progress for closed socket")
		}
	}
}

// Publish delivers an update straight to local watchers. It serves as the progress
// publisher when no Redis is configured.
func (h *Hub) Publish(_ context.Context, update models.ProgressUpdate) {
	if update.RequestID == "" {
		return
	}
	data, err := json.Marshal(models.WSMessage{Type: "progress", Payload: update})
	if err != nil {
		return
	}
	h.broadcast(update.RequestID, data)
}

// Watchers reports how many sockets follow requestID.
func (h *Hub) Watchers(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[requestID])
}
