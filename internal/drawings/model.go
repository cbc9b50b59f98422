package drawings

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// ErrInvalidDrawingID indicates that a drawing identifier is empty or exceeds storage bounds.
var ErrInvalidDrawingID = errors.New("drawings: invalid drawing id")

// Point is one canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawAction is one replayable stroke or shape. Actions are immutable once saved.
type DrawAction struct {
	Type      string  `json:"type"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brushSize"`
	UserID    string  `json:"userId"`
	UserName  string  `json:"userName"`
	Timestamp int64   `json:"timestamp"`
}

// SavedDrawing is a named snapshot of a room's action log.
type SavedDrawing struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	RoomID    string       `json:"roomId"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt int64        `json:"createdAt"`
	UpdatedAt int64        `json:"updatedAt"`
	Actions   []DrawAction `json:"actions"`
	Thumbnail string       `json:"thumbnail,omitempty"`
}

// SaveRequest carries the input for Store.Save. CreatedBy is the saver's display name.
type SaveRequest struct {
	Name      string
	RoomID    string
	CreatedBy string
	Actions   []DrawAction
	Thumbnail string
}

// DrawingID represents a validated drawing identifier.
type DrawingID string

// NewDrawingID validates raw input and returns a DrawingID.
func NewDrawingID(rawInput string) (DrawingID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDrawingID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDrawingID, maxIdentifierLength)
	}
	return DrawingID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DrawingID) String() string {
	return string(id)
}

// Record is the storage row backing a SavedDrawing.
type Record struct {
	DrawingID       string `gorm:"column:drawing_id;primaryKey;size:190;not null"`
	Sequence        int64  `gorm:"column:sequence;not null;index:idx_drawings_room_sequence,priority:2"`
	RoomID          string `gorm:"column:room_id;size:190;not null;index:idx_drawings_room_sequence,priority:1"`
	Name            string `gorm:"column:name;not null;default:''"`
	CreatedBy       string `gorm:"column:created_by;not null;default:''"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
	ActionsJSON     string `gorm:"column:actions_json;type:text;not null"`
	Thumbnail       string `gorm:"column:thumbnail;type:text;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "saved_drawings"
}
