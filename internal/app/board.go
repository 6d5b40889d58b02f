package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// BoardState is the per-gesture state of a Board.
type BoardState string

const (
	BoardIdle      BoardState = "idle"
	BoardDragging  BoardState = "dragging"
	BoardResolving BoardState = "resolving"
)

// Logger is the subset of a structured logger the engines write to.
type Logger interface {
	Debug(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// BoardConfig configures a Board.
type BoardConfig struct {
	Collection domain.Collection
	Pipeline   domain.Pipeline
	Sink       NotificationSink
	Logger     Logger
}

// Column is one rendered pipeline category.
type Column struct {
	Category domain.Category `json:"category"`
	Items    []domain.Item   `json:"items"`
}

// boardMove is an optimistic status shown until a load that started after
// it settled.
type boardMove struct {
	status    string
	settled   bool
	settledAt uint64
}

// Board partitions a collection into pipeline categories and moves items
// between them with drag gestures.
type Board struct {
	store      CollectionStore
	collection domain.Collection
	pipeline   domain.Pipeline
	sink       NotificationSink
	logger     Logger

	mu       sync.Mutex
	state    BoardState
	session  domain.DragSession
	items    []domain.Item
	moves    map[string]boardMove
	inflight sync.WaitGroup
	// loads numbers every Load at start; applied is the newest one installed.
	loads   uint64
	applied uint64
}

// NewBoard constructs a Board over store.
func NewBoard(store CollectionStore, cfg BoardConfig) (*Board, error) {
	if store == nil {
		return nil, fmt.Errorf("board store is required")
	}
	if !cfg.Collection.IsBoard() {
		return nil, &ValidationError{Op: "new board", Reason: fmt.Sprintf("%q is not a board collection", cfg.Collection), Err: domain.ErrInvalidCollection}
	}
	if len(cfg.Pipeline) == 0 {
		cfg.Pipeline = domain.DefaultPipeline()
	}
	if cfg.Sink == nil {
		cfg.Sink = DiscardNotifications
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Board{
		store:      store,
		collection: cfg.Collection,
		pipeline:   cfg.Pipeline,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		state:      BoardIdle,
		moves:      map[string]boardMove{},
	}, nil
}

// Collection returns the board's collection.
func (b *Board) Collection() domain.Collection {
	return b.collection
}

// Pipeline returns the board's categories.
func (b *Board) Pipeline() domain.Pipeline {
	return b.pipeline
}

// State returns the current gesture state.
func (b *Board) State() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Session returns the current drag session.
func (b *Board) Session() domain.DragSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Load refetches the collection. A settled move is dropped in favor of
// server truth only by a load that started after it settled, and a load
// that finishes behind a newer one is discarded.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	b.loads++
	seq := b.loads
	b.mu.Unlock()

	items, err := b.store.List(ctx, domain.ItemFilter{Collection: b.collection})
	if err != nil {
		return fmt.Errorf("load %s board: %w", b.collection, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.applied {
		b.logger.Debug("stale board load discarded", "collection", b.collection, "load", seq, "applied", b.applied)
		return nil
	}
	b.items = items
	b.applied = seq
	for id, move := range b.moves {
		if move.settled && seq > move.settledAt {
			delete(b.moves, id)
		}
	}
	return nil
}

// Columns returns items partitioned by category in pipeline order.
func (b *Board) Columns() []Column {
	b.mu.Lock()
	defer b.mu.Unlock()

	byStatus := make(map[string][]domain.Item, len(b.pipeline))
	for _, item := range b.items {
		item.Status = b.statusLocked(item)
		byStatus[item.Status] = append(byStatus[item.Status], item)
	}
	out := make([]Column, 0, len(b.pipeline))
	for _, category := range b.pipeline {
		items := byStatus[category.ID]
		domain.SortItems(items)
		out = append(out, Column{Category: category, Items: items})
	}
	return out
}

// Unplaced returns items whose status is outside the pipeline.
func (b *Board) Unplaced() []domain.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Item
	for _, item := range b.items {
		if !b.pipeline.Contains(b.statusLocked(item)) {
			out = append(out, item)
		}
	}
	return out
}

// Item returns one rendered item with its displayed status.
func (b *Board) Item(itemID string) (domain.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.renderedLocked(itemID)
	return item, ok
}

// BeginDrag picks up itemID, which must be rendered on the board.
func (b *Board) BeginDrag(itemID string) error {
	itemID = strings.TrimSpace(itemID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BoardIdle {
		return ErrDragInProgress
	}
	if _, ok := b.renderedLocked(itemID); !ok {
		return &ValidationError{Op: "begin drag", Reason: fmt.Sprintf("item %q is not on the board", itemID)}
	}
	b.state = BoardDragging
	b.session = domain.DragSession{ActiveItemID: itemID}
	return nil
}

// Hover records the category under the pointer while dragging.
func (b *Board) Hover(targetID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BoardDragging {
		return
	}
	b.session.OverTargetID = strings.TrimSpace(targetID)
}

// EndDrag resolves the active drag against targetID and always returns the
// board to Idle. Empty, unknown and same-category targets are no-ops. A
// valid move starts the status mutation in the background and returns at once.
func (b *Board) EndDrag(ctx context.Context, targetID string) DropResult {
	targetID = strings.TrimSpace(targetID)

	b.mu.Lock()
	if b.state != BoardDragging {
		b.mu.Unlock()
		return DropResult{Outcome: DropNoSession, To: targetID}
	}
	b.state = BoardResolving
	itemID := b.session.ActiveItemID
	result := DropResult{ItemID: itemID, To: targetID}
	if item, ok := b.renderedLocked(itemID); ok {
		result.From = item.Status
	}
	switch {
	case targetID == "":
		result.Outcome = DropNoTarget
	case !b.pipeline.Contains(targetID):
		result.Outcome = DropInvalidTarget
	case targetID == result.From:
		result.Outcome = DropSameTarget
	default:
		result.Outcome = DropMoved
		b.moves[itemID] = boardMove{status: targetID}
	}
	b.state = BoardIdle
	b.session = domain.DragSession{}
	b.mu.Unlock()

	if result.Outcome != DropMoved {
		b.logger.Debug("drop ignored", "collection", b.collection, "item", itemID, "target", targetID, "outcome", result.Outcome)
		return result
	}

	pending := newPendingMutation()
	result.pending = pending
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		pending.finish(b.MutateStatus(ctx, itemID, targetID))
	}()
	return result
}

// MutateStatus persists one status change, invalidates the collection on
// success and notifies either way.
func (b *Board) MutateStatus(ctx context.Context, itemID, status string) error {
	if err := b.store.UpdateStatus(ctx, b.collection, itemID, status); err != nil {
		b.mu.Lock()
		if move, ok := b.moves[itemID]; ok && move.status == status {
			delete(b.moves, itemID)
		}
		b.mu.Unlock()
		b.sink.Emit(NotifyError, "Failed to update status: "+err.Error())
		return &PersistenceError{Op: "update status", ItemID: itemID, Err: err}
	}

	b.mu.Lock()
	if move, ok := b.moves[itemID]; ok && move.status == status {
		b.moves[itemID] = boardMove{status: status, settled: true, settledAt: b.loads}
	}
	b.mu.Unlock()
	b.store.Invalidate(ctx, b.collection)
	b.sink.Emit(NotifySuccess, "Status updated")
	return nil
}

// Wait blocks until every background mutation has finished.
func (b *Board) Wait() {
	b.inflight.Wait()
}

// OnPick implements DragSource.
func (b *Board) OnPick(itemID string) error {
	return b.BeginDrag(itemID)
}

// OnRelease implements DragSource for a release outside any target.
func (b *Board) OnRelease(ctx context.Context) DropResult {
	return b.EndDrag(ctx, "")
}

// OnHover implements DropTarget.
func (b *Board) OnHover(targetID string) {
	b.Hover(targetID)
}

// OnDrop implements DropTarget.
func (b *Board) OnDrop(ctx context.Context, targetID string) DropResult {
	return b.EndDrag(ctx, targetID)
}

func (b *Board) statusLocked(item domain.Item) string {
	if move, ok := b.moves[item.ID]; ok {
		return move.status
	}
	return item.Status
}

func (b *Board) renderedLocked(itemID string) (domain.Item, bool) {
	for _, item := range b.items {
		if item.ID != itemID {
			continue
		}
		item.Status = b.statusLocked(item)
		if !b.pipeline.Contains(item.Status) {
			return domain.Item{}, false
		}
		return item, true
	}
	return domain.Item{}, false
}
