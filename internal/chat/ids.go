package chat

import (
	"strings"

	"github.com/google/uuid"
)

// LocalIDPrefix marks identifiers minted on the client. Server ids are numeric, so the
// prefix keeps the two namespaces apart.
const LocalIDPrefix = "local-"

// IDGenerator mints identifiers for optimistic messages.
type IDGenerator interface {
	NextID() string
}

// LocalIDs generates random client-side message identifiers.
type LocalIDs struct{}

// NextID returns a new identifier such as "local-0b6c3e4e-...".
func (LocalIDs) NextID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was minted by LocalIDs.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
