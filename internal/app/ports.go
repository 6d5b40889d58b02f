package app

import (
	"context"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// ItemRepository persists collection items.
type ItemRepository interface {
	CreateItem(context.Context, domain.Item) error
	UpdateItem(context.Context, domain.Item) error
	GetItem(context.Context, domain.Collection, string) (domain.Item, error)
	ListItems(context.Context, domain.ItemFilter) ([]domain.Item, error)
	DeleteItem(context.Context, domain.Collection, string) error
	UpdateItemOrder(ctx context.Context, collection domain.Collection, id string, order int, at time.Time) error
	UpdateItemStatus(ctx context.Context, collection domain.Collection, id string, status string, at time.Time) error
}

// ItemOrderBatcher is implemented by repositories that can write many orders atomically.
type ItemOrderBatcher interface {
	ApplyItemOrder(ctx context.Context, collection domain.Collection, updates []OrderUpdate, at time.Time) error
}

// CollectionStore is the contract both engines consume.
type CollectionStore interface {
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	UpdateOrder(ctx context.Context, collection domain.Collection, itemID string, order int) error
	UpdateStatus(ctx context.Context, collection domain.Collection, itemID string, status string) error
	Invalidate(ctx context.Context, collection domain.Collection)
}

// BatchOrderer is the optional transactional batch endpoint of a CollectionStore.
type BatchOrderer interface {
	ApplyOrder(ctx context.Context, collection domain.Collection, updates []OrderUpdate) error
}

// Subscriber is the optional invalidation feed of a CollectionStore.
type Subscriber interface {
	Subscribe(collection domain.Collection) (<-chan Invalidation, func())
}

// Invalidator signals dependent views that a collection changed.
type Invalidator interface {
	Invalidate(ctx context.Context, collection domain.Collection)
}

// ListCache caches list results per collection and filter.
type ListCache interface {
	Load(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, bool)
	Store(ctx context.Context, filter domain.ItemFilter, items []domain.Item)
	Evict(ctx context.Context, collection domain.Collection)
}

// OrderUpdate assigns one display order.
type OrderUpdate struct {
	ItemID       string `json:"id"`
	DisplayOrder int    `json:"display_order"`
}
