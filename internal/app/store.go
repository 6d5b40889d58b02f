package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// StoreConfig holds optional collaborators for Store.
type StoreConfig struct {
	Cache    ListCache
	Hub      *Invalidations
	Pipeline domain.Pipeline
	Clock    Clock
}

// Store is the local CollectionStore: reads through an optional cache,
// writes through to the repository, and invalidates instead of patching.
type Store struct {
	repo     ItemRepository
	cache    ListCache
	hub      *Invalidations
	pipeline domain.Pipeline
	clock    Clock

	// cacheMu orders cache fills against evictions; generations counts
	// invalidations per collection so a fill that straddles one is dropped.
	cacheMu     sync.Mutex
	generations map[domain.Collection]uint64
}

// NewStore constructs a Store over repo.
func NewStore(repo ItemRepository, cfg StoreConfig) *Store {
	if cfg.Hub == nil {
		cfg.Hub = NewInvalidations()
	}
	if len(cfg.Pipeline) == 0 {
		cfg.Pipeline = domain.DefaultPipeline()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Store{
		repo:        repo,
		cache:       cfg.Cache,
		hub:         cfg.Hub,
		pipeline:    cfg.Pipeline,
		clock:       cfg.Clock,
		generations: map[domain.Collection]uint64{},
	}
}

// Pipeline returns the configured status categories.
func (s *Store) Pipeline() domain.Pipeline {
	return s.pipeline
}

// List returns the filtered items ordered by display order.
func (s *Store) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if err := filter.Validate(); err != nil {
		return nil, validationError("list items", err)
	}
	var generation uint64
	if s.cache != nil {
		if items, ok := s.cache.Load(ctx, filter); ok {
			return items, nil
		}
		generation = s.generation(filter.Collection)
	}
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", filter.Collection, err)
	}
	domain.SortItems(items)
	if s.cache != nil {
		s.fill(ctx, filter, generation, items)
	}
	return items, nil
}

func (s *Store) generation(collection domain.Collection) uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generations[collection]
}

// fill caches items unless collection was invalidated after the read began.
func (s *Store) fill(ctx context.Context, filter domain.ItemFilter, generation uint64, items []domain.Item) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generations[filter.Collection] != generation {
		return
	}
	s.cache.Store(ctx, filter, items)
}

// UpdateOrder writes one display order.
func (s *Store) UpdateOrder(ctx context.Context, collection domain.Collection, itemID string, order int) error {
	if order < 0 {
		return &ValidationError{Op: "update order", Reason: fmt.Sprintf("order %d", order), Err: domain.ErrInvalidOrder}
	}
	if err := s.repo.UpdateItemOrder(ctx, collection, itemID, order, s.clock()); err != nil {
		return fmt.Errorf("update order %s/%s: %w", collection, itemID, err)
	}
	return nil
}

// UpdateStatus moves one item to another pipeline category. The item's
// display order is left as is.
func (s *Store) UpdateStatus(ctx context.Context, collection domain.Collection, itemID string, status string) error {
	if !collection.IsBoard() {
		return &ValidationError{Op: "update status", Reason: fmt.Sprintf("%s has no status", collection), Err: domain.ErrInvalidStatus}
	}
	item, err := s.repo.GetItem(ctx, collection, itemID)
	if err != nil {
		return fmt.Errorf("update status %s/%s: %w", collection, itemID, err)
	}
	if err := item.SetStatus(status, s.pipeline, s.clock()); err != nil {
		return &ValidationError{Op: "update status", Reason: fmt.Sprintf("unknown category %q", status), Err: err}
	}
	if err := s.repo.UpdateItemStatus(ctx, collection, itemID, item.Status, item.UpdatedAt); err != nil {
		return fmt.Errorf("update status %s/%s: %w", collection, itemID, err)
	}
	return nil
}

// ApplyOrder writes every update in one repository transaction.
func (s *Store) ApplyOrder(ctx context.Context, collection domain.Collection, updates []OrderUpdate) error {
	batcher, ok := s.repo.(ItemOrderBatcher)
	if !ok {
		return ErrBatchUnsupported
	}
	for _, update := range updates {
		if update.DisplayOrder < 0 {
			return &ValidationError{Op: "apply order", Reason: update.ItemID, Err: domain.ErrInvalidOrder}
		}
	}
	if err := batcher.ApplyItemOrder(ctx, collection, updates, s.clock()); err != nil {
		return fmt.Errorf("apply %s order: %w", collection, err)
	}
	return nil
}

// Invalidate evicts cached lists and notifies subscribers.
func (s *Store) Invalidate(ctx context.Context, collection domain.Collection) {
	if s.cache != nil {
		s.cacheMu.Lock()
		s.generations[collection]++
		s.cache.Evict(ctx, collection)
		s.cacheMu.Unlock()
	}
	s.hub.Publish(Invalidation{Collection: collection, At: s.clock().UTC()})
}

// Subscribe registers for invalidations of collection.
func (s *Store) Subscribe(collection domain.Collection) (<-chan Invalidation, func()) {
	return s.hub.Subscribe(collection)
}
