package rooms

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/errs"
)

const passwordLength = 6

// Room is the client-facing snapshot of a room. UserCount is always derived from membership.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   int64  `json:"createdAt"`
	UserCount   int    `json:"userCount"`
	IsPrivate   bool   `json:"isPrivate"`
	HasPassword bool   `json:"hasPassword"`
}

type room struct {
	id        string
	name      string
	createdBy string
	createdAt int64
	isPrivate bool
	password  string
	members   []string
}

func (r *room) snapshot() Room {
	return Room{
		ID:          r.id,
		Name:        r.name,
		CreatedBy:   r.createdBy,
		CreatedAt:   r.createdAt,
		UserCount:   len(r.members),
		IsPrivate:   r.isPrivate,
		HasPassword: r.password != "",
	}
}

func (r *room) memberIDs() []string {
	return append([]string(nil), r.members...)
}

// ValidatePassword accepts an absent PIN or exactly six ASCII decimal digits.
func ValidatePassword(password string) error {
	if password == "" {
		return nil
	}
	if len(password) != passwordLength {
		return fmt.Errorf("%w: room password must be exactly %d digits", errs.ErrValidation, passwordLength)
	}
	for _, character := range password {
		if character < '0' || character > '9' {
			return fmt.Errorf("%w: room password must be exactly %d digits", errs.ErrValidation, passwordLength)
		}
	}
	return nil
}
