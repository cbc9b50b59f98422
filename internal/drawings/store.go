package drawings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// StoreError reports an infrastructure failure inside the store, as opposed to
// the client-facing taxonomy in package errs.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew    = "drawings.store.new"
	opSave        = "drawings.save"
	opLoad        = "drawings.load"
	opDelete      = "drawings.delete"
	opListForRoom = "drawings.list_for_room"

	fieldDrawingID     = "drawing_id"
	fieldRoomID        = "room_id"
	queryDrawingID     = fieldDrawingID + " = ?"
	queryRoomID        = fieldRoomID + " = ?"
	orderSequenceAsc   = "sequence ASC"
	reasonEncodeFailed = "encode_actions_failed"
	reasonDecodeFailed = "decode_actions_failed"
	reasonIDFailed     = "id_generation_failed"
	reasonInsertFailed = "insert_failed"
	reasonQueryFailed  = "query_failed"
	reasonDeleteFailed = "delete_failed"
)

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store keeps saved drawings. Listing order is save order.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	sequence   atomic.Int64
}

// NewStore validates the configuration and constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Save stores a new drawing stamped with the current time. Names are not validated.
func (s *Store) Save(ctx context.Context, request SaveRequest) (SavedDrawing, error) {
	actions := request.Actions
	if actions == nil {
		actions = []DrawAction{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		s.logError(opSave, reasonEncodeFailed, err, zap.String(fieldRoomID, request.RoomID))
		return SavedDrawing{}, newStoreError(opSave, reasonEncodeFailed, err)
	}
	drawingID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSave, reasonIDFailed, err, zap.String(fieldRoomID, request.RoomID))
		return SavedDrawing{}, newStoreError(opSave, reasonIDFailed, err)
	}

	now := s.clock().UnixMilli()
	record := Record{
		DrawingID:       drawingID,
		Sequence:        s.sequence.Add(1),
		RoomID:          request.RoomID,
		Name:            request.Name,
		CreatedBy:       request.CreatedBy,
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
		ActionsJSON:     string(actionsJSON),
		Thumbnail:       request.Thumbnail,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opSave, reasonInsertFailed, err,
			zap.String(fieldRoomID, request.RoomID),
			zap.String(fieldDrawingID, drawingID))
		return SavedDrawing{}, newStoreError(opSave, reasonInsertFailed, err)
	}

	return SavedDrawing{
		ID:        record.DrawingID,
		Name:      record.Name,
		RoomID:    record.RoomID,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAtMillis,
		UpdatedAt: record.UpdatedAtMillis,
		Actions:   actions,
		Thumbnail: record.Thumbnail,
	}, nil
}

// Load returns the drawing or an errs.ErrNotFound wrapped error.
func (s *Store) Load(ctx context.Context, drawingID DrawingID) (SavedDrawing, error) {
	record, err := s.find(s.db.WithContext(ctx), opLoad, drawingID)
	if err != nil {
		return SavedDrawing{}, err
	}
	return s.toDrawing(opLoad, record)
}

// Delete removes the drawing when requesterName matches the name it was saved under.
// A mismatch yields errs.ErrAuth and leaves the store unchanged.
func (s *Store) Delete(ctx context.Context, drawingID DrawingID, requesterName string) (SavedDrawing, error) {
	var deleted Record
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.find(tx, opDelete, drawingID)
		if err != nil {
			return err
		}
		if record.CreatedBy != requesterName {
			return fmt.Errorf("%w: only %q may delete drawing %q", errs.ErrAuth, record.CreatedBy, drawingID)
		}
		if err := tx.Where(queryDrawingID, drawingID.String()).Delete(&Record{}).Error; err != nil {
			s.logError(opDelete, reasonDeleteFailed, err, zap.String(fieldDrawingID, drawingID.String()))
			return newStoreError(opDelete, reasonDeleteFailed, err)
		}
		deleted = record
		return nil
	})
	if txErr != nil {
		return SavedDrawing{}, txErr
	}
	return s.toDrawing(opDelete, deleted)
}

// ListForRoom returns the room's drawings in save order.
func (s *Store) ListForRoom(ctx context.Context, roomID string) ([]SavedDrawing, error) {
	var records []Record
	if err := s.db.WithContext(ctx).
		Where(queryRoomID, roomID).
		Order(orderSequenceAsc).
		Find(&records).Error; err != nil {
		s.logError(opListForRoom, reasonQueryFailed, err, zap.String(fieldRoomID, roomID))
		return nil, newStoreError(opListForRoom, reasonQueryFailed, err)
	}

	list := make([]SavedDrawing, 0, len(records))
	for _, record := range records {
		drawing, err := s.toDrawing(opListForRoom, record)
		if err != nil {
			return nil, err
		}
		list = append(list, drawing)
	}
	return list, nil
}

func (s *Store) find(db *gorm.DB, operation string, drawingID DrawingID) (Record, error) {
	var record Record
	err := db.Where(queryDrawingID, drawingID.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: drawing %q does not exist", errs.ErrNotFound, drawingID)
	}
	if err != nil {
		s.logError(operation, reasonQueryFailed, err, zap.String(fieldDrawingID, drawingID.String()))
		return Record{}, newStoreError(operation, reasonQueryFailed, err)
	}
	return record, nil
}

func (s *Store) toDrawing(operation string, record Record) (SavedDrawing, error) {
	actions := []DrawAction{}
	if err := json.Unmarshal([]byte(record.ActionsJSON), &actions); err != nil {
		s.logError(operation, reasonDecodeFailed, err, zap.String(fieldDrawingID, record.DrawingID))
		return SavedDrawing{}, newStoreError(operation, reasonDecodeFailed, err)
	}
	return SavedDrawing{
		ID:        record.DrawingID,
		Name:      record.Name,
		RoomID:    record.RoomID,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAtMillis,
		UpdatedAt: record.UpdatedAtMillis,
		Actions:   actions,
		Thumbnail: record.Thumbnail,
	}, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := noOpLogger
	if s != nil && s.logger != nil {
		logger = s.logger
	}
	logger.Error("drawings store error", attrs...)
}
