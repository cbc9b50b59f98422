package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/errs"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/relay"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/users"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

var (
	errMissingTransport = errors.New("transport dependency required")
	errMissingDrawings  = errors.New("drawing store dependency required")
)

// DrawingStore is the persistence surface the coordinator needs.
type DrawingStore interface {
	Save(ctx context.Context, request drawings.SaveRequest) (drawings.SavedDrawing, error)
	Load(ctx context.Context, drawingID drawings.DrawingID) (drawings.SavedDrawing, error)
	Delete(ctx context.Context, drawingID drawings.DrawingID, requesterName string) (drawings.SavedDrawing, error)
	ListForRoom(ctx context.Context, roomID string) ([]drawings.SavedDrawing, error)
}

// Config describes the dependencies of a Coordinator.
type Config struct {
	Transport relay.Transport
	Drawings  DrawingStore
	Directory *rooms.Directory
	Registry  *users.Registry
	Logger    *zap.Logger
}

// Coordinator owns every piece of shared session state. Each inbound event is handled
// to completion under one lock, so no observer sees a connection in two rooms or
// mid-transfer. Transport sends only enqueue, which keeps the lock short.
type Coordinator struct {
	mu        sync.Mutex
	registry  *users.Registry
	directory *rooms.Directory
	drawings  DrawingStore
	relay     *relay.Relay
	transport relay.Transport
	logger    *zap.Logger
	handlers  map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, connectionID string, payload json.RawMessage)

// NewCoordinator wires the registry, directory, drawing store and relay together.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Transport == nil {
		return nil, errMissingTransport
	}
	if cfg.Drawings == nil {
		return nil, errMissingDrawings
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	directory := cfg.Directory
	if directory == nil {
		directory = rooms.NewDirectory(rooms.DirectoryConfig{})
	}
	registry := cfg.Registry
	if registry == nil {
		registry = users.NewRegistry()
	}

	coordinator := &Coordinator{
		registry:  registry,
		directory: directory,
		drawings:  cfg.Drawings,
		relay:     relay.New(directory, cfg.Transport, logger),
		transport: cfg.Transport,
		logger:    logger,
	}
	coordinator.handlers = map[string]handlerFunc{
		EventUserJoin:      coordinator.handleAnnounce,
		EventCreateRoom:    coordinator.handleCreateRoom,
		EventJoinRoom:      coordinator.handleJoinRoom,
		EventLeaveRoom:     coordinator.handleLeaveRoom,
		EventGetRooms:      coordinator.handleGetRooms,
		EventDrawLine:      coordinator.relayHandler(EventDrawLine),
		EventClearCanvas:   coordinator.relayHandler(EventClearCanvas),
		EventUndoAction:    coordinator.relayHandler(EventUndoAction),
		EventRedoAction:    coordinator.relayHandler(EventRedoAction),
		EventSaveDrawing:   coordinator.handleSaveDrawing,
		EventLoadDrawing:   coordinator.handleLoadDrawing,
		EventDeleteDrawing: coordinator.handleDeleteDrawing,
		EventGetDrawings:   coordinator.handleGetDrawings,
	}
	return coordinator, nil
}

// Connect records nothing until the connection announces an identity; it only tells
// the client which id it was given.
func (c *Coordinator) Connect(connectionID string) {
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventConnected,
		Payload: connectedMessage{ConnectionID: connectionID},
	})
}

// Disconnect unwinds the connection's identity and room membership.
func (c *Coordinator) Disconnect(connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if departure, ok := c.directory.Leave(connectionID); ok {
		c.announceDeparture(departure)
		c.broadcastRooms()
	}
	if user, ok := c.registry.Unregister(connectionID); ok {
		c.logger.Info("user disconnected",
			zap.String("connection_id", connectionID),
			zap.String("user_name", user.Name))
		c.broadcastUsers()
	}
}

// Handle processes one inbound event. Unknown events and undecodable payloads are dropped.
func (c *Coordinator) Handle(ctx context.Context, connectionID string, message InboundMessage) {
	handler, ok := c.handlers[message.Event]
	if !ok {
		c.logger.Debug("ignoring unknown event",
			zap.String("connection_id", connectionID),
			zap.String("event", message.Event))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	handler(ctx, connectionID, message.Payload)
}

// PublicRooms returns the current public room list.
func (c *Coordinator) PublicRooms() []rooms.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.ListPublic()
}

// OnlineUsers returns every announced user.
func (c *Coordinator) OnlineUsers() []users.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.List()
}

// RoomDrawings returns the drawings saved for a room.
func (c *Coordinator) RoomDrawings(ctx context.Context, roomID string) ([]drawings.SavedDrawing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawings.ListForRoom(ctx, roomID)
}

func (c *Coordinator) handleAnnounce(_ context.Context, connectionID string, payload json.RawMessage) {
	var request announcePayload
	if !c.decode(connectionID, EventUserJoin, payload, &request) {
		return
	}
	if c.registry.Register(connectionID, users.User{Name: request.Name, Color: request.Color}) {
		c.logger.Info("user announced",
			zap.String("connection_id", connectionID),
			zap.String("user_name", strings.TrimSpace(request.Name)))
	}
	c.broadcastUsers()
}

func (c *Coordinator) handleCreateRoom(_ context.Context, connectionID string, payload json.RawMessage) {
	user, ok := c.registry.Lookup(connectionID)
	if !ok {
		return
	}
	var request createRoomPayload
	if !c.decode(connectionID, EventCreateRoom, payload, &request) {
		return
	}

	transition, err := c.directory.Create(connectionID, user.Name, request.Name, request.IsPrivate, request.Password)
	if err != nil {
		c.reportError(connectionID, EventRoomError, EventCreateRoom, err)
		return
	}
	if transition.Previous != nil {
		c.announceDeparture(*transition.Previous)
	}
	c.logger.Info("room created",
		zap.String("room_id", transition.Room.ID),
		zap.String("connection_id", connectionID),
		zap.Bool("private", transition.Room.IsPrivate))

	c.transport.Send(connectionID, relay.Envelope{
		Event: EventRoomCreated,
		Payload: roomStateMessage{
			Room:  transition.Room,
			Users: c.registry.Resolve(transition.Members),
		},
	})
	c.broadcastRooms()
}

func (c *Coordinator) handleJoinRoom(_ context.Context, connectionID string, payload json.RawMessage) {
	if _, ok := c.registry.Lookup(connectionID); !ok {
		return
	}
	var request joinRoomPayload
	if !c.decode(connectionID, EventJoinRoom, payload, &request) {
		return
	}

	transition, err := c.directory.Join(connectionID, request.RoomID, request.Password)
	if err != nil {
		c.reportError(connectionID, EventRoomError, EventJoinRoom, err)
		return
	}
	if transition.Previous != nil {
		c.announceDeparture(*transition.Previous)
	}

	members := c.registry.Resolve(transition.Members)
	update := relay.Envelope{
		Event:   EventRoomMembersUpdated,
		Payload: roomMembersMessage{RoomID: transition.Room.ID, Users: members},
	}
	for _, memberID := range transition.Members {
		if memberID != connectionID {
			c.transport.Send(memberID, update)
		}
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventRoomJoined,
		Payload: roomStateMessage{Room: transition.Room, Users: members},
	})
	c.logger.Debug("room joined",
		zap.String("room_id", transition.Room.ID),
		zap.String("connection_id", connectionID),
		zap.Int("members", transition.Room.UserCount))
	c.broadcastRooms()
}

func (c *Coordinator) handleLeaveRoom(_ context.Context, connectionID string, _ json.RawMessage) {
	if _, ok := c.registry.Lookup(connectionID); !ok {
		return
	}
	departure, ok := c.directory.Leave(connectionID)
	if !ok {
		return
	}
	c.announceDeparture(departure)
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventRoomLeft,
		Payload: roomLeftMessage{RoomID: departure.RoomID},
	})
	c.broadcastRooms()
}

func (c *Coordinator) handleGetRooms(_ context.Context, connectionID string, _ json.RawMessage) {
	c.transport.Send(connectionID, c.roomsEnvelope())
}

func (c *Coordinator) relayHandler(event string) handlerFunc {
	return func(_ context.Context, connectionID string, payload json.RawMessage) {
		if _, ok := c.registry.Lookup(connectionID); !ok {
			return
		}
		var scope roomScopedPayload
		if !c.decode(connectionID, event, payload, &scope) {
			return
		}
		c.relay.Forward(scope.RoomID, connectionID, relay.Envelope{
			Event:   event,
			Payload: payload,
		})
	}
}

func (c *Coordinator) handleSaveDrawing(ctx context.Context, connectionID string, payload json.RawMessage) {
	user, ok := c.registry.Lookup(connectionID)
	if !ok {
		return
	}
	var request saveDrawingPayload
	if !c.decode(connectionID, EventSaveDrawing, payload, &request) {
		return
	}

	saved, err := c.drawings.Save(ctx, drawings.SaveRequest{
		Name:      request.Name,
		RoomID:    request.RoomID,
		CreatedBy: user.Name,
		Actions:   request.Actions,
		Thumbnail: request.Thumbnail,
	})
	if err != nil {
		c.reportError(connectionID, EventDrawingError, EventSaveDrawing, err)
		return
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventDrawingSaved,
		Payload: drawingMessage{Drawing: saved},
	})
	c.publishDrawings(ctx, saved.RoomID, connectionID)
}

func (c *Coordinator) handleLoadDrawing(ctx context.Context, connectionID string, payload json.RawMessage) {
	if _, ok := c.registry.Lookup(connectionID); !ok {
		return
	}
	drawingID, ok := c.decodeDrawingRef(connectionID, EventLoadDrawing, payload)
	if !ok {
		return
	}

	drawing, err := c.drawings.Load(ctx, drawingID)
	if err != nil {
		c.reportError(connectionID, EventDrawingError, EventLoadDrawing, err)
		return
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventDrawingLoaded,
		Payload: drawingMessage{Drawing: drawing},
	})
}

func (c *Coordinator) handleDeleteDrawing(ctx context.Context, connectionID string, payload json.RawMessage) {
	user, ok := c.registry.Lookup(connectionID)
	if !ok {
		return
	}
	drawingID, ok := c.decodeDrawingRef(connectionID, EventDeleteDrawing, payload)
	if !ok {
		return
	}

	deleted, err := c.drawings.Delete(ctx, drawingID, user.Name)
	if err != nil {
		c.reportError(connectionID, EventDrawingError, EventDeleteDrawing, err)
		return
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventDrawingDeleted,
		Payload: drawingDeletedMessage{DrawingID: deleted.ID},
	})
	c.publishDrawings(ctx, deleted.RoomID, "")
}

func (c *Coordinator) handleGetDrawings(ctx context.Context, connectionID string, payload json.RawMessage) {
	if _, ok := c.registry.Lookup(connectionID); !ok {
		return
	}
	var request roomScopedPayload
	if !c.decode(connectionID, EventGetDrawings, payload, &request) {
		return
	}
	list, err := c.drawings.ListForRoom(ctx, request.RoomID)
	if err != nil {
		c.reportError(connectionID, EventDrawingError, EventGetDrawings, err)
		return
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   EventDrawingsList,
		Payload: drawingsListMessage{RoomID: request.RoomID, Drawings: list},
	})
}

// publishDrawings pushes the room's drawing list to its members, skipping excludeID.
func (c *Coordinator) publishDrawings(ctx context.Context, roomID, excludeID string) {
	members := c.directory.Members(roomID)
	if len(members) == 0 {
		return
	}
	list, err := c.drawings.ListForRoom(ctx, roomID)
	if err != nil {
		c.logger.Warn("failed to list drawings for broadcast", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	envelope := relay.Envelope{
		Event:   EventDrawingsList,
		Payload: drawingsListMessage{RoomID: roomID, Drawings: list},
	}
	for _, memberID := range members {
		if memberID != excludeID {
			c.transport.Send(memberID, envelope)
		}
	}
}

func (c *Coordinator) announceDeparture(departure rooms.Departure) {
	if departure.Deleted {
		c.logger.Info("room deleted", zap.String("room_id", departure.RoomID))
		return
	}
	update := relay.Envelope{
		Event: EventRoomMembersUpdated,
		Payload: roomMembersMessage{
			RoomID: departure.RoomID,
			Users:  c.registry.Resolve(departure.Remaining),
		},
	}
	for _, memberID := range departure.Remaining {
		c.transport.Send(memberID, update)
	}
}

func (c *Coordinator) broadcastUsers() {
	c.transport.Broadcast(relay.Envelope{
		Event:   EventUsersList,
		Payload: usersListMessage{Users: c.registry.List()},
	})
}

func (c *Coordinator) broadcastRooms() {
	c.transport.Broadcast(c.roomsEnvelope())
}

func (c *Coordinator) roomsEnvelope() relay.Envelope {
	return relay.Envelope{
		Event:   EventRoomsList,
		Payload: roomsListMessage{Rooms: c.directory.ListPublic()},
	}
}

func (c *Coordinator) decode(connectionID, event string, payload json.RawMessage, target any) bool {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, target); err != nil {
		c.logger.Debug("dropping malformed payload",
			zap.String("connection_id", connectionID),
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	return true
}

func (c *Coordinator) decodeDrawingRef(connectionID, event string, payload json.RawMessage) (drawings.DrawingID, bool) {
	var request drawingRefPayload
	if !c.decode(connectionID, event, payload, &request) {
		return "", false
	}
	drawingID, err := drawings.NewDrawingID(request.DrawingID)
	if err != nil {
		c.transport.Send(connectionID, relay.Envelope{
			Event:   EventDrawingError,
			Payload: errorMessage{Message: "drawing not found"},
		})
		return "", false
	}
	return drawingID, true
}

// reportError sends a taxonomy error back to the requester only. Anything outside the
// taxonomy is logged and reported without detail.
func (c *Coordinator) reportError(connectionID, errorEvent, requestEvent string, err error) {
	kind := errs.Kind(err)
	message := internalErrorMessage
	if kind != nil {
		message = strings.TrimPrefix(err.Error(), kind.Error()+": ")
		c.logger.Debug("request rejected",
			zap.String("connection_id", connectionID),
			zap.String("event", requestEvent),
			zap.Error(err))
	} else {
		c.logger.Error("request failed",
			zap.String("connection_id", connectionID),
			zap.String("event", requestEvent),
			zap.Error(err))
	}
	c.transport.Send(connectionID, relay.Envelope{
		Event:   errorEvent,
		Payload: errorMessage{Message: message},
	})
}
