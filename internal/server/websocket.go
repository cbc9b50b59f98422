package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait           = 10 * time.Second
	defaultPingInterval = 25 * time.Second
	defaultMaxMessage   = 1 << 20
	connectionIDPrefix  = "conn_"
)

func newConnectionID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return connectionIDPrefix + value.String(), nil
}

func (h *httpHandler) handleWebsocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	connectionID, err := h.connectionIDs()
	if err != nil {
		h.logger.Error("failed to allocate connection id", zap.Error(err))
		_ = conn.Close()
		return
	}

	logger := h.logger.With(zap.String("connection_id", connectionID))
	stream, unsubscribe := h.hub.Subscribe(connectionID)
	logger.Info("websocket connected", zap.String("remote_addr", c.Request.RemoteAddr))
	h.sessions.Connect(connectionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, stream, logger)
	}()

	h.readPump(c.Request.Context(), conn, connectionID, logger)

	h.sessions.Disconnect(connectionID)
	unsubscribe()
	<-done
	logger.Info("websocket disconnected")
}

// readPump feeds inbound frames to the session coordinator until the socket fails.
func (h *httpHandler) readPump(ctx context.Context, conn *websocket.Conn, connectionID string, logger *zap.Logger) {
	conn.SetReadLimit(h.maxMessageBytes)
	pongWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			continue
		}

		var message session.InboundMessage
		if err := json.Unmarshal(data, &message); err != nil || message.Event == "" {
			logger.Debug("ignoring malformed frame", zap.Error(err))
			continue
		}
		h.sessions.Handle(ctx, connectionID, message)
	}
}

// writePump drains the connection's queue and keeps the socket alive with pings. It
// closes the socket when it stops, which unblocks readPump.
func (h *httpHandler) writePump(conn *websocket.Conn, stream <-chan []byte, logger *zap.Logger) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-stream:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
