package idgen

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New returns a UUIDv7 identifier string.
// If UUIDv7 generation fails, it falls back to a random UUIDv4.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Correlation returns a lexicographically sortable ULID, used to tie
// together event-bus traffic belonging to one unit of work.
func Correlation() string {
	return ulid.Make().String()
}
