package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StaticResolver maps external IDs to users from an in-memory table. Used in
// tests and single-node deployments without an identity service.
type StaticResolver struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{users: make(map[string]User)}
}

// Add registers a user under an external ID and returns it.
func (r *StaticResolver) Add(externalID, displayName string) User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := User{ID: uuid.New(), DisplayName: displayName}
	r.users[externalID] = u
	return u
}

func (r *StaticResolver) Resolve(_ context.Context, externalID string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[externalID]
	if !ok {
		return User{}, fmt.Errorf("unknown external id %q", externalID)
	}
	return u, nil
}
