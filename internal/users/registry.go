package users

import (
	"slices"
	"strings"
)

// User is the identity a connection announces after the websocket opens.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	IsActive bool   `json:"isActive"`
}

// Registry maps live connection identifiers to announced users in announcement order.
// It performs no locking; the session coordinator serializes every call.
type Registry struct {
	users map[string]User
	order []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]User),
	}
}

// Register stores the user for the connection. A repeated announcement replaces the
// name and colour but keeps the original position. It reports whether the connection was new.
func (r *Registry) Register(connectionID string, user User) bool {
	user.ID = connectionID
	user.Name = normalize(user.Name)
	user.Color = normalize(user.Color)
	user.IsActive = true

	_, existed := r.users[connectionID]
	r.users[connectionID] = user
	if !existed {
		r.order = append(r.order, connectionID)
	}
	return !existed
}

// Unregister removes the connection and returns the user it held. Unknown ids are a no-op.
func (r *Registry) Unregister(connectionID string) (User, bool) {
	user, ok := r.users[connectionID]
	if !ok {
		return User{}, false
	}
	delete(r.users, connectionID)
	if index := slices.Index(r.order, connectionID); index >= 0 {
		r.order = slices.Delete(r.order, index, index+1)
	}
	return user, true
}

// Lookup returns the user announced on the connection.
func (r *Registry) Lookup(connectionID string) (User, bool) {
	user, ok := r.users[connectionID]
	return user, ok
}

// List returns every online user in announcement order.
func (r *Registry) List() []User {
	list := make([]User, 0, len(r.order))
	for _, connectionID := range r.order {
		list = append(list, r.users[connectionID])
	}
	return list
}

// Resolve maps connection ids to users, skipping ids that never announced.
func (r *Registry) Resolve(connectionIDs []string) []User {
	list := make([]User, 0, len(connectionIDs))
	for _, connectionID := range connectionIDs {
		if user, ok := r.users[connectionID]; ok {
			list = append(list, user)
		}
	}
	return list
}

// Len reports the number of online users.
func (r *Registry) Len() int {
	return len(r.order)
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
