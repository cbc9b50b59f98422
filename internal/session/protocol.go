package session

import (
	"encoding/json"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/rooms"
	"github.com/MarcoPoloResearchLab/canvas/backend/internal/users"
)

// Inbound event names.
const (
	EventUserJoin      = "user-join"
	EventCreateRoom    = "create-room"
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventGetRooms      = "get-rooms"
	EventDrawLine      = "draw-line"
	EventClearCanvas   = "clear-canvas"
	EventUndoAction    = "undo-action"
	EventRedoAction    = "redo-action"
	EventSaveDrawing   = "save-drawing"
	EventLoadDrawing   = "load-drawing"
	EventDeleteDrawing = "delete-drawing"
	EventGetDrawings   = "get-drawings"
)

// Outbound event names. Relayed events reuse their inbound name.
const (
	EventConnected          = "connected"
	EventUsersList          = "users-list"
	EventRoomCreated        = "room-created"
	EventRoomJoined         = "room-joined"
	EventRoomMembersUpdated = "room-members-updated"
	EventRoomLeft           = "room-left"
	EventRoomsList          = "rooms-list"
	EventRoomError          = "room-error"
	EventDrawingSaved       = "drawing-saved"
	EventDrawingLoaded      = "drawing-loaded"
	EventDrawingDeleted     = "drawing-deleted"
	EventDrawingsList       = "drawings-list"
	EventDrawingError       = "drawing-error"
)

// InboundMessage is the frame a client sends.
type InboundMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type announcePayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type createRoomPayload struct {
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password"`
}

type joinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

// roomScopedPayload reads only the routing key of a relayed event; the rest of the
// payload is forwarded untouched.
type roomScopedPayload struct {
	RoomID string `json:"roomId"`
}

type saveDrawingPayload struct {
	Name      string                `json:"name"`
	RoomID    string                `json:"roomId"`
	Actions   []drawings.DrawAction `json:"actions"`
	Thumbnail string                `json:"thumbnail"`
}

type drawingRefPayload struct {
	DrawingID string `json:"drawingId"`
}

type connectedMessage struct {
	ConnectionID string `json:"connectionId"`
}

type usersListMessage struct {
	Users []users.User `json:"users"`
}

type roomStateMessage struct {
	Room  rooms.Room   `json:"room"`
	Users []users.User `json:"users"`
}

type roomMembersMessage struct {
	RoomID string       `json:"roomId"`
	Users  []users.User `json:"users"`
}

type roomLeftMessage struct {
	RoomID string `json:"roomId"`
}

type roomsListMessage struct {
	Rooms []rooms.Room `json:"rooms"`
}

type errorMessage struct {
	Message string `json:"message"`
}

type drawingMessage struct {
	Drawing drawings.SavedDrawing `json:"drawing"`
}

type drawingDeletedMessage struct {
	DrawingID string `json:"drawingId"`
}

type drawingsListMessage struct {
	RoomID   string                  `json:"roomId"`
	Drawings []drawings.SavedDrawing `json:"drawings"`
}
