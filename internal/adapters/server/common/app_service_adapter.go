package common

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// AdapterConfig holds optional collaborators for AppServiceAdapter.
type AdapterConfig struct {
	Sink    app.NotificationSink
	Logger  app.Logger
	Reorder app.ReorderOptions
}

// AppServiceAdapter maps transport contracts onto app.Service, the collection
// store and the two ordering engines.
type AppServiceAdapter struct {
	service *app.Service
	store   app.CollectionStore
	cfg     AdapterConfig
}

// NewAppServiceAdapter builds one common adapter over an app.Service and a collection store.
func NewAppServiceAdapter(service *app.Service, store app.CollectionStore, cfg AdapterConfig) *AppServiceAdapter {
	return &AppServiceAdapter{service: service, store: store, cfg: cfg}
}

// Subscribe forwards to the store's invalidation feed when it has one.
func (a *AppServiceAdapter) Subscribe(collection domain.Collection) (<-chan app.Invalidation, func()) {
	if sub, ok := a.store.(app.Subscriber); ok {
		return sub.Subscribe(collection)
	}
	ch := make(chan app.Invalidation)
	close(ch)
	return ch, func() {}
}

// ListCollections returns every collection spec and the pipeline.
func (a *AppServiceAdapter) ListCollections(context.Context) (CollectionsView, error) {
	if err := a.ready(); err != nil {
		return CollectionsView{}, err
	}
	specs := domain.Collections()
	out := CollectionsView{
		Collections: make([]CollectionInfo, 0, len(specs)),
		Pipeline:    slices.Clone(a.service.Pipeline()),
	}
	for _, spec := range specs {
		out.Collections = append(out.Collections, CollectionInfo{
			ID:         spec.ID,
			Label:      spec.Label,
			Mode:       spec.Mode,
			Kinds:      slices.Clone(spec.Kinds),
			KindScoped: spec.KindScoped,
		})
	}
	return out, nil
}

// ListItems lists one collection through the store.
func (a *AppServiceAdapter) ListItems(ctx context.Context, in ListItemsRequest) ([]domain.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	filter, err := parseFilter(in)
	if err != nil {
		return nil, err
	}
	items, err := a.store.List(ctx, filter)
	if err != nil {
		return nil, mapAppError("list items", err)
	}
	return items, nil
}

// GetItem returns one item.
func (a *AppServiceAdapter) GetItem(ctx context.Context, in ItemRef) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.GetItem(ctx, collection, id)
	if err != nil {
		return domain.Item{}, mapAppError("get item", err)
	}
	return item, nil
}

// CreateItem creates one item at the end of its ordering scope.
func (a *AppServiceAdapter) CreateItem(ctx context.Context, in CreateItemRequest) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	collection, err := parseCollection(in.Collection)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.CreateItem(ctx, app.CreateItemInput{
		Collection: collection,
		Kind:       in.Kind,
		Title:      in.Title,
		Status:     in.Status,
		Visible:    in.Visible,
		Details:    in.Details,
	})
	if err != nil {
		return domain.Item{}, mapAppError("create item", err)
	}
	return item, nil
}

// UpdateItem applies one partial edit.
func (a *AppServiceAdapter) UpdateItem(ctx context.Context, in UpdateItemRequest) (domain.Item, error) {
	if err := a.ready(); err != nil {
		return domain.Item{}, err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := a.service.UpdateItem(ctx, app.UpdateItemInput{
		Collection: collection,
		ID:         id,
		Kind:       in.Kind,
		Title:      in.Title,
		Visible:    in.Visible,
		Details:    in.Details,
	})
	if err != nil {
		return domain.Item{}, mapAppError("update item", err)
	}
	return item, nil
}

// DeleteItem removes one item.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, in ItemRef) error {
	if err := a.ready(); err != nil {
		return err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return err
	}
	if err := a.service.DeleteItem(ctx, collection, id); err != nil {
		return mapAppError("delete item", err)
	}
	return nil
}

// UpdateOrder writes one display order and invalidates the collection.
func (a *AppServiceAdapter) UpdateOrder(ctx context.Context, in UpdateOrderRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return err
	}
	if err := a.store.UpdateOrder(ctx, collection, id, in.DisplayOrder); err != nil {
		return mapAppError("update order", err)
	}
	a.store.Invalidate(ctx, collection)
	return nil
}

// UpdateStatus writes one status and invalidates the collection.
func (a *AppServiceAdapter) UpdateStatus(ctx context.Context, in UpdateStatusRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return err
	}
	if err := a.store.UpdateStatus(ctx, collection, id, strings.ToLower(strings.TrimSpace(in.Status))); err != nil {
		return mapAppError("update status", err)
	}
	a.store.Invalidate(ctx, collection)
	return nil
}

// MoveStatus drags one item onto a category through a Board engine and waits
// for the mutation. Drops the engine ignores are reported, not failed.
func (a *AppServiceAdapter) MoveStatus(ctx context.Context, in MoveStatusRequest) (MoveStatusResult, error) {
	if err := a.ready(); err != nil {
		return MoveStatusResult{}, err
	}
	collection, id, err := parseRef(in.Collection, in.ID)
	if err != nil {
		return MoveStatusResult{}, err
	}
	board, err := app.NewBoard(a.store, app.BoardConfig{
		Collection: collection,
		Pipeline:   a.service.Pipeline(),
		Sink:       a.cfg.Sink,
		Logger:     a.cfg.Logger,
	})
	if err != nil {
		return MoveStatusResult{}, mapAppError("move status", err)
	}
	if err := board.Load(ctx); err != nil {
		return MoveStatusResult{}, mapAppError("move status", err)
	}
	if err := board.BeginDrag(id); err != nil {
		if _, ok := board.Item(id); !ok {
			return MoveStatusResult{}, fmt.Errorf("move status %s/%s: %w", collection, id, ErrNotFound)
		}
		return MoveStatusResult{}, mapAppError("move status", err)
	}
	result := board.EndDrag(ctx, strings.ToLower(strings.TrimSpace(in.Status)))
	out := MoveStatusResult{
		Outcome: result.Outcome,
		ItemID:  result.ItemID,
		From:    result.From,
		To:      result.To,
		Mutated: result.Mutated(),
	}
	if err := result.Wait(ctx); err != nil {
		return out, mapAppError("move status", err)
	}
	return out, nil
}

// ApplyOrder writes a full ordering scope in one transaction.
func (a *AppServiceAdapter) ApplyOrder(ctx context.Context, in ReorderRequest) (ReorderResult, error) {
	if err := a.ready(); err != nil {
		return ReorderResult{}, err
	}
	filter, err := scopeFilter(in.Collection, in.Kind, false)
	if err != nil {
		return ReorderResult{}, err
	}
	batcher, ok := a.store.(app.BatchOrderer)
	if !ok {
		return ReorderResult{}, fmt.Errorf("apply order: %w", ErrUnavailable)
	}

	var updates []app.OrderUpdate
	switch {
	case len(in.IDs) > 0 && len(in.Updates) > 0:
		return ReorderResult{}, fmt.Errorf("ids and updates are mutually exclusive: %w", ErrInvalidRequest)
	case len(in.IDs) > 0:
		items, err := a.store.List(ctx, filter)
		if err != nil {
			return ReorderResult{}, mapAppError("apply order", err)
		}
		ids, err := app.ValidatePermutation(in.IDs, items)
		if err != nil {
			return ReorderResult{}, mapAppError("apply order", err)
		}
		updates = make([]app.OrderUpdate, 0, len(ids))
		for idx, id := range ids {
			updates = append(updates, app.OrderUpdate{ItemID: id, DisplayOrder: idx})
		}
	case len(in.Updates) > 0:
		updates, err = normalizeUpdates(in.Updates)
		if err != nil {
			return ReorderResult{}, err
		}
	default:
		return ReorderResult{}, fmt.Errorf("ids or updates are required: %w", ErrInvalidRequest)
	}

	if err := batcher.ApplyOrder(ctx, filter.Collection, updates); err != nil {
		if errors.Is(err, app.ErrBatchUnsupported) {
			return ReorderResult{}, fmt.Errorf("apply order: %w", errors.Join(ErrUnavailable, err))
		}
		return ReorderResult{}, mapAppError("apply order", err)
	}
	a.store.Invalidate(ctx, filter.Collection)
	return ReorderResult{Collection: filter.Collection, Kind: filter.Kind, Updates: updates}, nil
}

// Reorder drives a Reorder engine from the stored order to ids and commits.
// A partial commit returns the report together with ErrPartialBatch.
func (a *AppServiceAdapter) Reorder(ctx context.Context, in ReorderRequest) (ReorderResult, error) {
	if err := a.ready(); err != nil {
		return ReorderResult{}, err
	}
	if len(in.Updates) > 0 {
		return ReorderResult{}, fmt.Errorf("reorder takes ids, not updates: %w", ErrInvalidRequest)
	}
	filter, err := scopeFilter(in.Collection, in.Kind, true)
	if err != nil {
		return ReorderResult{}, err
	}
	engine, err := app.NewReorder(a.store, app.ReorderConfig{
		Filter:  filter,
		Sink:    a.cfg.Sink,
		Options: a.cfg.Reorder,
	})
	if err != nil {
		return ReorderResult{}, mapAppError("reorder", err)
	}
	if err := engine.Load(ctx); err != nil {
		return ReorderResult{}, mapAppError("reorder", err)
	}
	if err := engine.StartReorder(); err != nil {
		return ReorderResult{}, mapAppError("reorder", err)
	}
	if err := engine.ApplyPermutation(in.IDs); err != nil {
		_ = engine.CancelReorder()
		return ReorderResult{}, mapAppError("reorder", err)
	}
	report, err := engine.CommitReorder(ctx)
	out := ReorderResult{
		Collection: filter.Collection,
		Kind:       filter.Kind,
		Updates:    report.Applied,
		Failed:     report.Failed,
	}
	if err != nil {
		return out, mapAppError("reorder", err)
	}
	return out, nil
}

// Invalidate drops cached lists of one collection and notifies subscribers.
func (a *AppServiceAdapter) Invalidate(ctx context.Context, rawCollection string) error {
	if err := a.ready(); err != nil {
		return err
	}
	collection, err := parseCollection(rawCollection)
	if err != nil {
		return err
	}
	a.store.Invalidate(ctx, collection)
	return nil
}

// Board returns one board collection partitioned by category.
func (a *AppServiceAdapter) Board(ctx context.Context, rawCollection string) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	collection, err := parseCollection(rawCollection)
	if err != nil {
		return BoardView{}, err
	}
	board, err := app.NewBoard(a.store, app.BoardConfig{
		Collection: collection,
		Pipeline:   a.service.Pipeline(),
		Logger:     a.cfg.Logger,
	})
	if err != nil {
		return BoardView{}, mapAppError("board", err)
	}
	if err := board.Load(ctx); err != nil {
		return BoardView{}, mapAppError("board", err)
	}
	return BoardView{
		Collection: collection,
		Columns:    board.Columns(),
		Unplaced:   board.Unplaced(),
	}, nil
}

// PublicMedia returns the visible media feed.
func (a *AppServiceAdapter) PublicMedia(ctx context.Context, kind string) ([]app.PublicMedia, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.PublicMedia(ctx, kind)
	if err != nil {
		return nil, mapAppError("public media", err)
	}
	return items, nil
}

// PublicExperience returns the visible experience feed.
func (a *AppServiceAdapter) PublicExperience(ctx context.Context, kind string) ([]domain.Item, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	items, err := a.service.PublicExperience(ctx, kind)
	if err != nil {
		return nil, mapAppError("public experience", err)
	}
	return items, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil || a.store == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// parseCollection validates one collection id.
func parseCollection(raw string) (domain.Collection, error) {
	collection, err := domain.ParseCollection(raw)
	if err != nil {
		return "", fmt.Errorf("collection %q: %w", strings.TrimSpace(raw), errors.Join(ErrInvalidRequest, err))
	}
	return collection, nil
}

// parseRef validates one collection/id pair.
func parseRef(rawCollection, rawID string) (domain.Collection, string, error) {
	collection, err := parseCollection(rawCollection)
	if err != nil {
		return "", "", err
	}
	id := strings.TrimSpace(rawID)
	if id == "" {
		return "", "", fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	return collection, id, nil
}

// parseFilter validates list query filters.
func parseFilter(in ListItemsRequest) (domain.ItemFilter, error) {
	collection, err := parseCollection(in.Collection)
	if err != nil {
		return domain.ItemFilter{}, err
	}
	visibility, err := domain.ParseVisibility(in.Visibility)
	if err != nil {
		return domain.ItemFilter{}, fmt.Errorf("visibility %q: %w", in.Visibility, errors.Join(ErrInvalidRequest, err))
	}
	filter := domain.ItemFilter{
		Collection: collection,
		Kind:       strings.ToLower(strings.TrimSpace(in.Kind)),
		Visibility: visibility,
	}
	if err := filter.Validate(); err != nil {
		return domain.ItemFilter{}, fmt.Errorf("list filter: %w", errors.Join(ErrInvalidRequest, err))
	}
	return filter, nil
}

// scopeFilter resolves one ordering scope. Kind-scoped collections require a kind.
func scopeFilter(rawCollection, rawKind string, reorderOnly bool) (domain.ItemFilter, error) {
	collection, err := parseCollection(rawCollection)
	if err != nil {
		return domain.ItemFilter{}, err
	}
	spec := collection.Spec()
	if reorderOnly && spec.Mode != domain.ModeReorder {
		return domain.ItemFilter{}, fmt.Errorf("%s is ordered by the status board: %w", collection, ErrInvalidRequest)
	}
	kind := strings.ToLower(strings.TrimSpace(rawKind))
	switch {
	case spec.KindScoped && kind == "":
		return domain.ItemFilter{}, fmt.Errorf("%s ordering is per kind; kind is required: %w", collection, ErrInvalidRequest)
	case !spec.KindScoped && kind != "":
		return domain.ItemFilter{}, fmt.Errorf("%s ordering spans every kind; omit kind: %w", collection, ErrInvalidRequest)
	}
	filter := domain.ItemFilter{Collection: collection, Kind: kind}
	if err := filter.Validate(); err != nil {
		return domain.ItemFilter{}, fmt.Errorf("order scope: %w", errors.Join(ErrInvalidRequest, err))
	}
	return filter, nil
}

// normalizeUpdates validates explicit display orders.
func normalizeUpdates(raw []app.OrderUpdate) ([]app.OrderUpdate, error) {
	out := make([]app.OrderUpdate, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, update := range raw {
		update.ItemID = strings.TrimSpace(update.ItemID)
		if update.ItemID == "" {
			return nil, fmt.Errorf("update id is required: %w", ErrInvalidRequest)
		}
		if update.DisplayOrder < 0 {
			return nil, fmt.Errorf("display_order for %q must be >= 0: %w", update.ItemID, ErrInvalidRequest)
		}
		if _, dup := seen[update.ItemID]; dup {
			return nil, fmt.Errorf("id %q listed twice: %w", update.ItemID, ErrInvalidRequest)
		}
		seen[update.ItemID] = struct{}{}
		out = append(out, update)
	}
	return out, nil
}

// mapAppError maps app and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrPartialBatch):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrPartialBatch, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidCollection),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidVisibility):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrDragInProgress),
		errors.Is(err, app.ErrReorderActive),
		errors.Is(err, app.ErrCommitInFlight):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrPersistence):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrPersistence, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
