package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Pipeline      domain.Pipeline
	PublicBaseURL string
	Invalidator   Invalidator
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns item CRUD and the public read feeds.
type Service struct {
	repo          ItemRepository
	idGen         IDGenerator
	clock         Clock
	pipeline      domain.Pipeline
	publicBaseURL string
	invalidator   Invalidator
}

// NewService constructs a new value for this package.
func NewService(repo ItemRepository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if len(cfg.Pipeline) == 0 {
		cfg.Pipeline = domain.DefaultPipeline()
	}
	return &Service{
		repo:          repo,
		idGen:         idGen,
		clock:         clock,
		pipeline:      cfg.Pipeline,
		publicBaseURL: strings.TrimSpace(cfg.PublicBaseURL),
		invalidator:   cfg.Invalidator,
	}
}

// Pipeline returns the configured status categories.
func (s *Service) Pipeline() domain.Pipeline {
	return s.pipeline
}

// CreateItemInput holds input values for create item operations.
type CreateItemInput struct {
	Collection domain.Collection
	Kind       string
	Title      string
	Status     string
	Visible    bool
	Details    domain.Details
}

// CreateItem validates and stores one item at the end of its ordering scope.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	now := s.clock()
	item, err := domain.NewItem(domain.ItemInput{
		ID:         s.idGen(),
		Collection: in.Collection,
		Kind:       in.Kind,
		Title:      in.Title,
		Status:     in.Status,
		Visible:    in.Visible,
		Details:    in.Details,
	}, s.pipeline, now)
	if err != nil {
		return domain.Item{}, validationError("create item", err)
	}
	order, err := s.nextOrder(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}
	item.DisplayOrder = order
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.Item{}, fmt.Errorf("create %s item: %w", item.Collection, err)
	}
	s.invalidate(ctx, item.Collection)
	return item, nil
}

// UpdateItemInput holds input values for update item operations.
type UpdateItemInput struct {
	Collection domain.Collection
	ID         string
	Kind       *string
	Title      *string
	Visible    *bool
	Details    *domain.Details
}

// UpdateItem edits one item. Moving an item to another kind-scoped list
// appends it to the end of that list.
func (s *Service) UpdateItem(ctx context.Context, in UpdateItemInput) (domain.Item, error) {
	item, err := s.repo.GetItem(ctx, in.Collection, strings.TrimSpace(in.ID))
	if err != nil {
		return domain.Item{}, err
	}
	previousScope := item.OrderScope()
	if err := item.Apply(domain.ItemUpdate{
		Kind:    in.Kind,
		Title:   in.Title,
		Visible: in.Visible,
		Details: in.Details,
	}, s.clock()); err != nil {
		return domain.Item{}, validationError("update item", err)
	}
	if item.OrderScope() != previousScope {
		order, err := s.nextOrder(ctx, item)
		if err != nil {
			return domain.Item{}, err
		}
		item.DisplayOrder = order
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return domain.Item{}, fmt.Errorf("update %s item: %w", item.Collection, err)
	}
	s.invalidate(ctx, item.Collection)
	return item, nil
}

// DeleteItem removes one item.
func (s *Service) DeleteItem(ctx context.Context, collection domain.Collection, id string) error {
	if err := s.repo.DeleteItem(ctx, collection, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.invalidate(ctx, collection)
	return nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, collection domain.Collection, id string) (domain.Item, error) {
	return s.repo.GetItem(ctx, collection, strings.TrimSpace(id))
}

// ListItems lists items in display order.
func (s *Service) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if err := filter.Validate(); err != nil {
		return nil, validationError("list items", err)
	}
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	domain.SortItems(items)
	return items, nil
}

// PublicMedia is one visible media item with its resolved URL.
type PublicMedia struct {
	domain.Item
	URL string `json:"url"`
}

// PublicMedia returns the visible media feed, optionally restricted to one kind.
func (s *Service) PublicMedia(ctx context.Context, kind string) ([]PublicMedia, error) {
	items, err := s.ListItems(ctx, domain.ItemFilter{
		Collection: domain.CollectionMedia,
		Kind:       strings.ToLower(strings.TrimSpace(kind)),
		Visibility: domain.VisibilityVisible,
	})
	if err != nil {
		return nil, err
	}
	out := make([]PublicMedia, 0, len(items))
	for _, item := range items {
		out = append(out, PublicMedia{Item: item, URL: s.MediaURL(item)})
	}
	return out, nil
}

// PublicExperience returns the visible experience feed for one category, or all.
func (s *Service) PublicExperience(ctx context.Context, kind string) ([]domain.Item, error) {
	return s.ListItems(ctx, domain.ItemFilter{
		Collection: domain.CollectionExperience,
		Kind:       strings.ToLower(strings.TrimSpace(kind)),
		Visibility: domain.VisibilityVisible,
	})
}

// MediaURL resolves a media item's storage path to a public URL.
func (s *Service) MediaURL(item domain.Item) string {
	path := strings.TrimSpace(item.Details.StoragePath)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if s.publicBaseURL == "" {
		return path
	}
	bucket := "photos"
	if item.Kind == domain.KindVideo {
		bucket = "videos"
	}
	out, err := url.JoinPath(s.publicBaseURL, bucket, strings.TrimPrefix(path, "/"))
	if err != nil {
		return path
	}
	return out
}

func (s *Service) nextOrder(ctx context.Context, item domain.Item) (int, error) {
	filter := domain.ItemFilter{Collection: item.Collection}
	if item.Collection.Spec().KindScoped {
		filter.Kind = item.Kind
	}
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("list %s items: %w", item.Collection, err)
	}
	next := 0
	for _, existing := range items {
		if existing.ID == item.ID {
			continue
		}
		if existing.DisplayOrder >= next {
			next = existing.DisplayOrder + 1
		}
	}
	return next, nil
}

func (s *Service) invalidate(ctx context.Context, collection domain.Collection) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, collection)
	}
}
