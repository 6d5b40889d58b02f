package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

type fakeRepo struct {
	mu         sync.Mutex
	items      map[string]domain.Item
	failOrder  map[string]error
	failStatus map[string]error
	batches    [][]OrderUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:      map[string]domain.Item{},
		failOrder:  map[string]error{},
		failStatus: map[string]error{},
	}
}

func (f *fakeRepo) key(collection domain.Collection, id string) string {
	return string(collection) + "/" + id
}

func (f *fakeRepo) put(item domain.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.key(item.Collection, item.ID)] = item
}

func (f *fakeRepo) CreateItem(_ context.Context, item domain.Item) error {
	f.put(item)
	return nil
}

func (f *fakeRepo) UpdateItem(_ context.Context, item domain.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[f.key(item.Collection, item.ID)]; !ok {
		return ErrNotFound
	}
	f.items[f.key(item.Collection, item.ID)] = item
	return nil
}

func (f *fakeRepo) GetItem(_ context.Context, collection domain.Collection, id string) (domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[f.key(collection, id)]
	if !ok {
		return domain.Item{}, ErrNotFound
	}
	return item, nil
}

func (f *fakeRepo) ListItems(_ context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Item, 0, len(f.items))
	for _, item := range f.items {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	domain.SortItems(out)
	return out, nil
}

func (f *fakeRepo) DeleteItem(_ context.Context, collection domain.Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[f.key(collection, id)]; !ok {
		return ErrNotFound
	}
	delete(f.items, f.key(collection, id))
	return nil
}

func (f *fakeRepo) UpdateItemOrder(_ context.Context, collection domain.Collection, id string, order int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOrder[id]; err != nil {
		return err
	}
	item, ok := f.items[f.key(collection, id)]
	if !ok {
		return ErrNotFound
	}
	item.DisplayOrder = order
	item.UpdatedAt = at
	f.items[f.key(collection, id)] = item
	return nil
}

func (f *fakeRepo) UpdateItemStatus(_ context.Context, collection domain.Collection, id string, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failStatus[id]; err != nil {
		return err
	}
	item, ok := f.items[f.key(collection, id)]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = at
	f.items[f.key(collection, id)] = item
	return nil
}

func (f *fakeRepo) ApplyItemOrder(_ context.Context, collection domain.Collection, updates []OrderUpdate, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, update := range updates {
		if err := f.failOrder[update.ItemID]; err != nil {
			return err
		}
		if _, ok := f.items[f.key(collection, update.ItemID)]; !ok {
			return ErrNotFound
		}
	}
	for _, update := range updates {
		item := f.items[f.key(collection, update.ItemID)]
		item.DisplayOrder = update.DisplayOrder
		item.UpdatedAt = at
		f.items[f.key(collection, update.ItemID)] = item
	}
	f.batches = append(f.batches, append([]OrderUpdate(nil), updates...))
	return nil
}

func (f *fakeRepo) order(collection domain.Collection, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[f.key(collection, id)].DisplayOrder
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []domain.Collection
}

func (r *recordingInvalidator) Invalidate(_ context.Context, collection domain.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, collection)
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestCreateItemAppendsWithinScope(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inv := &recordingInvalidator{}
	svc := NewService(repo, sequentialIDs(), func() time.Time { return now }, ServiceConfig{Invalidator: inv})

	first, err := svc.CreateItem(context.Background(), CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindTraining, Title: "Meisner intensive"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	second, err := svc.CreateItem(context.Background(), CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindTraining, Title: "Stage combat"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	other, err := svc.CreateItem(context.Background(), CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindExperience, Title: "Hamlet"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if first.DisplayOrder != 0 || second.DisplayOrder != 1 {
		t.Fatalf("unexpected training orders %d, %d", first.DisplayOrder, second.DisplayOrder)
	}
	if other.DisplayOrder != 0 {
		t.Fatalf("expected independent experience scope, got %d", other.DisplayOrder)
	}
	if len(inv.calls) != 3 {
		t.Fatalf("expected one invalidation per write, got %v", inv.calls)
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), sequentialIDs(), nil, ServiceConfig{})
	_, err := svc.CreateItem(context.Background(), CreateItemInput{Collection: domain.CollectionPeople, Title: "Dana", Status: "signed"})
	if !errors.Is(err, ErrValidation) || !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected validation error wrapping ErrInvalidStatus, got %v", err)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Op != "create item" {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestUpdateItemMovesKindToEndOfNewScope(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, sequentialIDs(), nil, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindSkills, Title: "Accents"})
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindTraining, Title: "Voice"})
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionExperience, Kind: domain.KindTraining, Title: "Movement"})

	kind := domain.KindTraining
	updated, err := svc.UpdateItem(ctx, UpdateItemInput{Collection: domain.CollectionExperience, ID: a.ID, Kind: &kind})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.DisplayOrder != 2 {
		t.Fatalf("expected append to order 2, got %d", updated.DisplayOrder)
	}

	if _, err := svc.UpdateItem(ctx, UpdateItemInput{Collection: domain.CollectionExperience, ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, sequentialIDs(), nil, ServiceConfig{})
	item, _ := svc.CreateItem(context.Background(), CreateItemInput{Collection: domain.CollectionStudios, Title: "Northlight"})
	if err := svc.DeleteItem(context.Background(), domain.CollectionStudios, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := svc.GetItem(context.Background(), domain.CollectionStudios, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPublicMediaResolvesURLs(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, sequentialIDs(), nil, ServiceConfig{PublicBaseURL: "https://cdn.example.com/storage/v1/object/public/"})
	ctx := context.Background()
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionMedia, Kind: domain.KindVideo, Title: "Reel", Visible: true, Details: domain.Details{StoragePath: "reel.mp4"}})
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionMedia, Kind: domain.KindPhoto, Title: "Headshot", Visible: true, Details: domain.Details{StoragePath: "/head.jpg"}})
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionMedia, Kind: domain.KindVideo, Title: "Vimeo", Visible: true, Details: domain.Details{StoragePath: "https://vimeo.com/1"}})
	_, _ = svc.CreateItem(ctx, CreateItemInput{Collection: domain.CollectionMedia, Kind: domain.KindVideo, Title: "Draft", Details: domain.Details{StoragePath: "draft.mp4"}})

	all, err := svc.PublicMedia(ctx, "")
	if err != nil {
		t.Fatalf("PublicMedia() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected hidden item filtered, got %d items", len(all))
	}
	want := []string{
		"https://cdn.example.com/storage/v1/object/public/videos/reel.mp4",
		"https://cdn.example.com/storage/v1/object/public/photos/head.jpg",
		"https://vimeo.com/1",
	}
	for i, media := range all {
		if media.URL != want[i] {
			t.Fatalf("media[%d].URL = %q, want %q", i, media.URL, want[i])
		}
	}

	videos, err := svc.PublicMedia(ctx, "VIDEO")
	if err != nil {
		t.Fatalf("PublicMedia(video) error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 visible videos, got %d", len(videos))
	}
	if _, err := svc.PublicMedia(ctx, "audio"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
}
