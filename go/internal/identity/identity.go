package identity

import (
	"context"

	"github.com/google/uuid"
)

// User is a resolved authenticated identity.
type User struct {
	ID          uuid.UUID
	DisplayName string
}

// Resolver resolves an authenticated participant's stable external ID.
// Guests bypass this entirely.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (User, error)
}
