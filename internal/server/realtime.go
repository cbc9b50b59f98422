package server

import (
	"encoding/json"
	"sync"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/relay"
	"go.uber.org/zap"
)

const defaultSendBuffer = 256

// Hub tracks the outbound queue of every open websocket and implements relay.Transport.
// Delivery never blocks: a frame that does not fit a connection's queue is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan []byte
	bufferSize  int
	logger      *zap.Logger
}

// NewHub constructs a Hub whose per-connection queues hold bufferSize frames.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]chan []byte),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe opens a queue for the connection. The returned cleanup closes the queue
// and is safe to call more than once.
func (h *Hub) Subscribe(connectionID string) (<-chan []byte, func()) {
	stream := make(chan []byte, h.bufferSize)
	h.mu.Lock()
	if previous, ok := h.subscribers[connectionID]; ok {
		close(previous)
	}
	h.subscribers[connectionID] = stream
	h.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.unsubscribe(connectionID, stream)
		})
	}
	return stream, cleanup
}

// Send queues the envelope for one connection. Unknown connections are ignored.
func (h *Hub) Send(connectionID string, envelope relay.Envelope) {
	frame, ok := h.encode(envelope)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if stream, found := h.subscribers[connectionID]; found {
		h.enqueue(connectionID, stream, envelope.Event, frame)
	}
}

// Broadcast queues the envelope for every open connection.
func (h *Hub) Broadcast(envelope relay.Envelope) {
	frame, ok := h.encode(envelope)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connectionID, stream := range h.subscribers {
		h.enqueue(connectionID, stream, envelope.Event, frame)
	}
}

// Len reports the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close ends every queue, which makes each connection send a close frame and hang up.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connectionID, stream := range h.subscribers {
		delete(h.subscribers, connectionID)
		close(stream)
	}
}

func (h *Hub) enqueue(connectionID string, stream chan []byte, event string, frame []byte) {
	select {
	case stream <- frame:
	default:
		h.logger.Warn("dropping frame for slow connection",
			zap.String("connection_id", connectionID),
			zap.String("event", event))
	}
}

func (h *Hub) encode(envelope relay.Envelope) ([]byte, bool) {
	frame, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.String("event", envelope.Event), zap.Error(err))
		return nil, false
	}
	return frame, true
}

func (h *Hub) unsubscribe(connectionID string, stream chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.subscribers[connectionID]; ok && current == stream {
		delete(h.subscribers, connectionID)
		close(stream)
	}
}
