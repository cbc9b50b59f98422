package rooms

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/errs"
)

const maxIDAttempts = 8

var errIDExhausted = errors.New("rooms: could not allocate a unique room id")

// DirectoryConfig describes the collaborators of a Directory.
type DirectoryConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
}

// Directory owns room lifecycle and membership. A connection belongs to at most one room
// and a room exists only while it has members. The session coordinator serializes every
// call, so the Directory itself performs no locking.
type Directory struct {
	clock      func() time.Time
	idProvider IDProvider
	rooms      map[string]*room
	order      []string
	membership map[string]string
}

// Departure describes the effect of removing a connection from its room.
type Departure struct {
	RoomID string
	// Deleted reports that the departure emptied the room and it no longer exists.
	Deleted bool
	// Remaining holds the members left behind, in join order.
	Remaining []string
}

// Transition is the outcome of a successful create or join.
type Transition struct {
	Room    Room
	Members []string
	// Previous is set when the connection had to leave another room first.
	Previous *Departure
}

// NewDirectory constructs an empty Directory.
func NewDirectory(cfg DirectoryConfig) *Directory {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	return &Directory{
		clock:      clock,
		idProvider: idProvider,
		rooms:      make(map[string]*room),
		membership: make(map[string]string),
	}
}

// Create opens a new room with the connection as its sole member. The connection leaves
// any room it was in beforehand. A password must be absent or exactly six digits.
func (d *Directory) Create(connectionID, creatorName, name string, isPrivate bool, password string) (Transition, error) {
	if err := ValidatePassword(password); err != nil {
		return Transition{}, err
	}
	roomID, err := d.allocateID()
	if err != nil {
		return Transition{}, err
	}

	previous := d.depart(connectionID)
	created := &room{
		id:        roomID,
		name:      strings.TrimSpace(name),
		createdBy: creatorName,
		createdAt: d.clock().UnixMilli(),
		isPrivate: isPrivate,
		password:  password,
		members:   []string{connectionID},
	}
	d.rooms[roomID] = created
	d.order = append(d.order, roomID)
	d.membership[connectionID] = roomID

	return Transition{
		Room:     created.snapshot(),
		Members:  created.memberIDs(),
		Previous: previous,
	}, nil
}

// Join adds the connection to an existing room, moving it out of any other room first.
// Unknown rooms and wrong passwords fail without touching membership.
func (d *Directory) Join(connectionID, roomID, password string) (Transition, error) {
	target, ok := d.rooms[roomID]
	if !ok {
		return Transition{}, fmt.Errorf("%w: room %q does not exist", errs.ErrNotFound, roomID)
	}
	if target.password != "" && target.password != password {
		return Transition{}, fmt.Errorf("%w: incorrect room password", errs.ErrAuth)
	}

	var previous *Departure
	if current, member := d.membership[connectionID]; !member || current != roomID {
		previous = d.depart(connectionID)
		target.members = append(target.members, connectionID)
		d.membership[connectionID] = roomID
	}

	return Transition{
		Room:     target.snapshot(),
		Members:  target.memberIDs(),
		Previous: previous,
	}, nil
}

// Leave removes the connection from its room. It reports false when the connection had no room.
func (d *Directory) Leave(connectionID string) (Departure, bool) {
	departure := d.depart(connectionID)
	if departure == nil {
		return Departure{}, false
	}
	return *departure, true
}

// RoomOf returns the room the connection currently belongs to.
func (d *Directory) RoomOf(connectionID string) (string, bool) {
	roomID, ok := d.membership[connectionID]
	return roomID, ok
}

// Get returns a snapshot of the room.
func (d *Directory) Get(roomID string) (Room, bool) {
	target, ok := d.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return target.snapshot(), true
}

// Members returns the room's connection ids in join order; unknown rooms have none.
func (d *Directory) Members(roomID string) []string {
	target, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	return target.memberIDs()
}

// ListPublic returns non-private rooms in creation order.
func (d *Directory) ListPublic() []Room {
	list := make([]Room, 0, len(d.order))
	for _, roomID := range d.order {
		target := d.rooms[roomID]
		if target.isPrivate {
			continue
		}
		list = append(list, target.snapshot())
	}
	return list
}

// Len reports the number of live rooms.
func (d *Directory) Len() int {
	return len(d.rooms)
}

func (d *Directory) depart(connectionID string) *Departure {
	roomID, ok := d.membership[connectionID]
	if !ok {
		return nil
	}
	delete(d.membership, connectionID)

	target := d.rooms[roomID]
	if index := slices.Index(target.members, connectionID); index >= 0 {
		target.members = slices.Delete(target.members, index, index+1)
	}

	departure := &Departure{RoomID: roomID, Remaining: target.memberIDs()}
	if len(target.members) == 0 {
		delete(d.rooms, roomID)
		if index := slices.Index(d.order, roomID); index >= 0 {
			d.order = slices.Delete(d.order, index, index+1)
		}
		departure.Deleted = true
	}
	return departure
}

func (d *Directory) allocateID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate, err := d.idProvider.NewID()
		if err != nil {
			return "", err
		}
		if _, taken := d.rooms[candidate]; !taken && candidate != "" {
			return candidate, nil
		}
	}
	return "", errIDExhausted
}
