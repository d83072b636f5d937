package content

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/models"
)

// Provider fetches immutable items from the content system. The coordinator
// calls it once per item ref when a session is created; items never change
// for the session's duration.
type Provider interface {
	GetItem(ctx context.Context, itemID uuid.UUID) (models.Item, error)
}
