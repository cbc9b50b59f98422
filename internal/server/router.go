package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/session"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wildcardOrigin = "*"

var (
	errMissingSessions = errors.New("session coordinator dependency required")
	errMissingHub      = errors.New("hub dependency required")
)

// SessionCoordinator is the state owner the HTTP and websocket handlers talk to.
type SessionCoordinator interface {
	Connect(connectionID string)
	Disconnect(connectionID string)
	Handle(ctx context.Context, connectionID string, message session.InboundMessage)
	PublicRooms() []rooms.Room
	OnlineUsers() []users.User
	RoomDrawings(ctx context.Context, roomID string) ([]drawings.SavedDrawing, error)
}

// Dependencies lists what NewHTTPHandler needs. Zero limits fall back to defaults.
type Dependencies struct {
	Sessions        SessionCoordinator
	Hub             *Hub
	Logger          *zap.Logger
	AllowedOrigins  []string
	MaxMessageBytes int64
	PingInterval    time.Duration
	ConnectionIDs   func() (string, error)
}

// NewHTTPHandler builds the gin engine serving the websocket endpoint and read-only JSON views.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxMessageBytes := deps.MaxMessageBytes
	if maxMessageBytes <= 0 {
		maxMessageBytes = defaultMaxMessage
	}
	pingInterval := deps.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	connectionIDs := deps.ConnectionIDs
	if connectionIDs == nil {
		connectionIDs = newConnectionID
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{wildcardOrigin}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(origins))

	handler := &httpHandler{
		sessions:        deps.Sessions,
		hub:             deps.Hub,
		logger:          logger,
		maxMessageBytes: maxMessageBytes,
		pingInterval:    pingInterval,
		connectionIDs:   connectionIDs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/ws", handler.handleWebsocket)

	api := router.Group("/api")
	api.GET("/rooms", handler.handleListRooms)
	api.GET("/rooms/:roomId/drawings", handler.handleListDrawings)
	api.GET("/users", handler.handleListUsers)

	return router, nil
}

type httpHandler struct {
	sessions        SessionCoordinator
	hub             *Hub
	logger          *zap.Logger
	upgrader        websocket.Upgrader
	maxMessageBytes int64
	pingInterval    time.Duration
	connectionIDs   func() (string, error)
}

type roomsResponsePayload struct {
	Rooms []rooms.Room `json:"rooms"`
}

type usersResponsePayload struct {
	Users []users.User `json:"users"`
}

type drawingsResponsePayload struct {
	RoomID   string                  `json:"roomId"`
	Drawings []drawings.SavedDrawing `json:"drawings"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.hub.Len()})
}

func (h *httpHandler) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, roomsResponsePayload{Rooms: h.sessions.PublicRooms()})
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, usersResponsePayload{Users: h.sessions.OnlineUsers()})
}

func (h *httpHandler) handleListDrawings(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_room"})
		return
	}
	list, err := h.sessions.RoomDrawings(c.Request.Context(), roomID)
	if err != nil {
		h.logger.Error("failed to list drawings", zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "drawings_unavailable"})
		return
	}
	c.JSON(http.StatusOK, drawingsResponsePayload{RoomID: roomID, Drawings: list})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if slices.Contains(origins, wildcardOrigin) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func originChecker(origins []string) func(*http.Request) bool {
	if slices.Contains(origins, wildcardOrigin) {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
