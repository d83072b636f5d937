package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/models"
)

// StaticProvider serves items from an in-memory table. Used in tests and the
// seed path.
type StaticProvider struct {
	mu    sync.RWMutex
	items map[uuid.UUID]models.Item
}

func NewStaticProvider(items ...models.Item) *StaticProvider {
	p := &StaticProvider{items: make(map[uuid.UUID]models.Item, len(items))}
	for _, item := range items {
		p.items[item.ID] = item
	}
	return p
}

// Add registers an item.
func (p *StaticProvider) Add(item models.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[item.ID] = item
}

func (p *StaticProvider) GetItem(_ context.Context, itemID uuid.UUID) (models.Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[itemID]
	if !ok {
		return models.Item{}, fmt.Errorf("item %s not found", itemID)
	}
	return item, nil
}
