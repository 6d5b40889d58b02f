package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "reeldesk.snapshot.v1"

// Snapshot is a portable export of every collection.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Pipeline   []domain.Category `json:"pipeline"`
	Items      []SnapshotItem    `json:"items"`
}

// SnapshotItem represents snapshot item data used by this package.
type SnapshotItem struct {
	ID           string            `json:"id"`
	Collection   domain.Collection `json:"collection"`
	Kind         string            `json:"kind,omitempty"`
	Title        string            `json:"title"`
	Status       string            `json:"status,omitempty"`
	DisplayOrder int               `json:"display_order"`
	Visible      bool              `json:"visible"`
	Details      domain.Details    `json:"details"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Pipeline:   slices.Clone(s.pipeline),
		Items:      make([]SnapshotItem, 0),
	}
	for _, spec := range domain.Collections() {
		items, err := s.repo.ListItems(ctx, domain.ItemFilter{Collection: spec.ID})
		if err != nil {
			return Snapshot{}, fmt.Errorf("export %s: %w", spec.ID, err)
		}
		for _, item := range items {
			snap.Items = append(snap.Items, snapshotItemFromDomain(item))
		}
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts every snapshot item and invalidates each touched collection.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(s.pipeline); err != nil {
		return validationError("import snapshot", err)
	}
	snap.sort()

	touched := map[domain.Collection]struct{}{}
	for _, raw := range snap.Items {
		item := raw.toDomain()
		if _, err := s.repo.GetItem(ctx, item.Collection, item.ID); err == nil {
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		} else if err := s.repo.CreateItem(ctx, item); err != nil {
			return err
		}
		touched[item.Collection] = struct{}{}
	}
	for _, spec := range domain.Collections() {
		if _, ok := touched[spec.ID]; ok {
			s.invalidate(ctx, spec.ID)
		}
	}
	return nil
}

// Validate checks every item against its collection and pipeline.
func (s *Snapshot) Validate(pipeline domain.Pipeline) error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	seen := map[string]struct{}{}
	for i, raw := range s.Items {
		key := string(raw.Collection) + "/" + strings.TrimSpace(raw.ID)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("items[%d]: duplicate id %q", i, raw.ID)
		}
		seen[key] = struct{}{}
		if _, err := domain.NewItem(domain.ItemInput{
			ID:           raw.ID,
			Collection:   raw.Collection,
			Kind:         raw.Kind,
			Title:        raw.Title,
			Status:       raw.Status,
			DisplayOrder: raw.DisplayOrder,
			Visible:      raw.Visible,
			Details:      raw.Details,
		}, pipeline, raw.CreatedAt); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Items, func(a, b SnapshotItem) int {
		if c := strings.Compare(string(a.Collection), string(b.Collection)); c != 0 {
			return c
		}
		if c := strings.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func snapshotItemFromDomain(item domain.Item) SnapshotItem {
	return SnapshotItem{
		ID:           item.ID,
		Collection:   item.Collection,
		Kind:         item.Kind,
		Title:        item.Title,
		Status:       item.Status,
		DisplayOrder: item.DisplayOrder,
		Visible:      item.Visible,
		Details:      item.Details,
		CreatedAt:    item.CreatedAt.UTC(),
		UpdatedAt:    item.UpdatedAt.UTC(),
	}
}

func (i SnapshotItem) toDomain() domain.Item {
	updatedAt := i.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = i.CreatedAt
	}
	return domain.Item{
		ID:           strings.TrimSpace(i.ID),
		Collection:   i.Collection,
		Kind:         strings.ToLower(strings.TrimSpace(i.Kind)),
		Title:        strings.TrimSpace(i.Title),
		Status:       strings.ToLower(strings.TrimSpace(i.Status)),
		DisplayOrder: i.DisplayOrder,
		Visible:      i.Visible,
		Details:      i.Details,
		CreatedAt:    i.CreatedAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}
}
