package authtoken

import (
	"time"

	"call-insights/internal/response"

	"github.com/google/uuid"
)

// MaxNameLength bounds AuthToken.Name.
const MaxNameLength = 255

// AuthToken is an opaque bearer credential scoped to a list of organizations.
// Revocation rotates Token; the row itself survives.
type AuthToken struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Orgs      []int64   `json:"orgs"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Name string  `json:"name"`
	Orgs []int64 `json:"orgs"`
}

// Shape is the wire projection. Orgs stay internal.
var Shape = response.NewShape(response.Expose("id", "name", "token")...)
