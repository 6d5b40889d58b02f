// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// ErrInvalidRequest reports malformed or out-of-domain input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrPersistence reports a store write the backend rejected.
var ErrPersistence = errors.New("persistence failed")

// ErrPartialBatch reports a batch where only some writes landed.
var ErrPartialBatch = errors.New("partial batch failure")

// ErrConflict reports an engine that is busy with another gesture.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a transport surface with no backing service.
var ErrUnavailable = errors.New("service unavailable")

// CollectionInfo describes one collection for clients.
type CollectionInfo struct {
	ID         domain.Collection     `json:"id"`
	Label      string                `json:"label"`
	Mode       domain.CollectionMode `json:"mode"`
	Kinds      []string              `json:"kinds,omitempty"`
	KindScoped bool                  `json:"kind_scoped"`
}

// CollectionsView lists every collection plus the board pipeline.
type CollectionsView struct {
	Collections []CollectionInfo  `json:"collections"`
	Pipeline    []domain.Category `json:"pipeline"`
}

// ListItemsRequest captures list query filters.
type ListItemsRequest struct {
	Collection string `json:"collection"`
	Kind       string `json:"kind,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// ItemRef names one item.
type ItemRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// CreateItemRequest captures input for new items.
type CreateItemRequest struct {
	Collection string         `json:"collection"`
	Kind       string         `json:"kind,omitempty"`
	Title      string         `json:"title"`
	Status     string         `json:"status,omitempty"`
	Visible    bool           `json:"visible"`
	Details    domain.Details `json:"details"`
}

// UpdateItemRequest captures a partial edit. Nil fields are left untouched.
type UpdateItemRequest struct {
	Collection string          `json:"-"`
	ID         string          `json:"-"`
	Kind       *string         `json:"kind,omitempty"`
	Title      *string         `json:"title,omitempty"`
	Visible    *bool           `json:"visible,omitempty"`
	Details    *domain.Details `json:"details,omitempty"`
}

// UpdateOrderRequest sets one display order.
type UpdateOrderRequest struct {
	Collection   string `json:"-"`
	ID           string `json:"-"`
	DisplayOrder int    `json:"display_order"`
}

// UpdateStatusRequest sets one status without the drag workflow.
type UpdateStatusRequest struct {
	Collection string `json:"-"`
	ID         string `json:"-"`
	Status     string `json:"status"`
}

// MoveStatusRequest moves one board item to another category.
type MoveStatusRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Status     string `json:"status"`
}

// MoveStatusResult reports how a board move resolved.
type MoveStatusResult struct {
	Outcome app.DropOutcome `json:"outcome"`
	ItemID  string          `json:"item_id"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Mutated bool            `json:"mutated"`
}

// ReorderRequest resequences one ordering scope. IDs lists the full scope in
// the desired order; Updates carries explicit display orders instead.
type ReorderRequest struct {
	Collection string            `json:"collection"`
	Kind       string            `json:"kind,omitempty"`
	IDs        []string          `json:"ids,omitempty"`
	Updates    []app.OrderUpdate `json:"updates,omitempty"`
}

// ReorderResult reports committed positions.
type ReorderResult struct {
	Collection domain.Collection `json:"collection"`
	Kind       string            `json:"kind,omitempty"`
	Updates    []app.OrderUpdate `json:"updates"`
	Failed     []app.ItemError   `json:"failed,omitempty"`
}

// BoardView is one board partitioned by category.
type BoardView struct {
	Collection domain.Collection `json:"collection"`
	Columns    []app.Column      `json:"columns"`
	Unplaced   []domain.Item     `json:"unplaced,omitempty"`
}

// CollectionService captures every operation HTTP and MCP adapters expose.
type CollectionService interface {
	ListCollections(context.Context) (CollectionsView, error)
	ListItems(context.Context, ListItemsRequest) ([]domain.Item, error)
	GetItem(context.Context, ItemRef) (domain.Item, error)
	CreateItem(context.Context, CreateItemRequest) (domain.Item, error)
	UpdateItem(context.Context, UpdateItemRequest) (domain.Item, error)
	DeleteItem(context.Context, ItemRef) error
	UpdateOrder(context.Context, UpdateOrderRequest) error
	UpdateStatus(context.Context, UpdateStatusRequest) error
	MoveStatus(context.Context, MoveStatusRequest) (MoveStatusResult, error)
	ApplyOrder(context.Context, ReorderRequest) (ReorderResult, error)
	Reorder(context.Context, ReorderRequest) (ReorderResult, error)
	Invalidate(context.Context, string) error
	Board(context.Context, string) (BoardView, error)
	PublicMedia(context.Context, string) ([]app.PublicMedia, error)
	PublicExperience(context.Context, string) ([]domain.Item, error)
}

// InvalidationFeed streams collection invalidations to long-lived clients.
type InvalidationFeed interface {
	Subscribe(collection domain.Collection) (<-chan app.Invalidation, func())
}
