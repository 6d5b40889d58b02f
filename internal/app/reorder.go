package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/evanschultz/reeldesk/internal/domain"
)

// ReorderState is the lifecycle state of a Reorder engine.
type ReorderState string

const (
	ReorderViewing    ReorderState = "viewing"
	ReorderReordering ReorderState = "reordering"
)

// defaultCommitConcurrency bounds simultaneous per-item writes on commit.
const defaultCommitConcurrency = 8

// ReorderOptions tunes how a commit is written.
type ReorderOptions struct {
	MaxConcurrency int
	// Transactional uses the store's BatchOrderer when it has one.
	Transactional bool
}

// ReorderConfig configures a Reorder engine.
type ReorderConfig struct {
	Filter  domain.ItemFilter
	Sink    NotificationSink
	Options ReorderOptions
}

// CommitReport lists per-item commit results.
type CommitReport struct {
	Applied []OrderUpdate `json:"applied"`
	Failed  []ItemError   `json:"failed,omitempty"`
}

// Reorder resequences one ordering scope through an explicit
// start/move/commit-or-cancel workflow over an in-memory draft.
type Reorder struct {
	store  CollectionStore
	filter domain.ItemFilter
	sink   NotificationSink
	opts   ReorderOptions

	mu         sync.Mutex
	state      ReorderState
	items      []domain.Item
	draft      []domain.Item
	session    domain.DragSession
	pickIndex  int
	committing bool
}

// NewReorder constructs a Reorder engine for one ordering scope.
func NewReorder(store CollectionStore, cfg ReorderConfig) (*Reorder, error) {
	if store == nil {
		return nil, fmt.Errorf("reorder store is required")
	}
	if err := cfg.Filter.Validate(); err != nil {
		return nil, validationError("new reorder", err)
	}
	spec := cfg.Filter.Collection.Spec()
	if spec.Mode != domain.ModeReorder {
		return nil, &ValidationError{Op: "new reorder", Reason: fmt.Sprintf("%q is not a reorder collection", spec.ID), Err: domain.ErrInvalidCollection}
	}
	if cfg.Filter.Visibility != domain.VisibilityAny {
		return nil, &ValidationError{Op: "new reorder", Reason: "reorder scope must include hidden items", Err: domain.ErrInvalidVisibility}
	}
	if spec.KindScoped != (cfg.Filter.Kind != "") {
		return nil, &ValidationError{Op: "new reorder", Reason: fmt.Sprintf("kind %q does not match %s ordering scope", cfg.Filter.Kind, spec.ID), Err: domain.ErrInvalidKind}
	}
	if cfg.Sink == nil {
		cfg.Sink = DiscardNotifications
	}
	if cfg.Options.MaxConcurrency <= 0 {
		cfg.Options.MaxConcurrency = defaultCommitConcurrency
	}
	return &Reorder{
		store:  store,
		filter: cfg.Filter,
		sink:   cfg.Sink,
		opts:   cfg.Options,
		state:  ReorderViewing,
	}, nil
}

// Filter returns the engine's ordering scope.
func (r *Reorder) Filter() domain.ItemFilter {
	return r.filter
}

// State returns the lifecycle state.
func (r *Reorder) State() ReorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns the current drag session.
func (r *Reorder) Session() domain.DragSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Load refreshes the persisted snapshot. While reordering the draft is the
// only source of truth, so Load does nothing.
func (r *Reorder) Load(ctx context.Context) error {
	r.mu.Lock()
	reordering := r.state == ReorderReordering
	r.mu.Unlock()
	if reordering {
		return nil
	}
	items, err := r.store.List(ctx, r.filter)
	if err != nil {
		return fmt.Errorf("load %s order: %w", r.filter.Collection, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == ReorderReordering {
		return nil
	}
	r.items = items
	return nil
}

// Items returns the draft while reordering, otherwise the persisted order.
func (r *Reorder) Items() []domain.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == ReorderReordering {
		return slices.Clone(r.draft)
	}
	return slices.Clone(r.items)
}

// StartReorder snapshots the persisted order into a draft.
func (r *Reorder) StartReorder() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReorderViewing {
		return ErrReorderActive
	}
	r.draft = slices.Clone(r.items)
	r.state = ReorderReordering
	r.session = domain.DragSession{}
	return nil
}

// MoveItem removes the draft item at from and reinserts it at to.
func (r *Reorder) MoveItem(from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveLocked(from, to)
}

// ApplyPermutation rearranges the draft so it follows ids. The draft is
// left untouched when ids is not a permutation of the scope.
func (r *Reorder) ApplyPermutation(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReorderReordering {
		return ErrNotReordering
	}
	ids, err := ValidatePermutation(ids, r.draft)
	if err != nil {
		return err
	}
	for to, id := range ids {
		if err := r.moveLocked(r.indexLocked(id), to); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePermutation checks that ids lists every item exactly once and
// returns the trimmed ids.
func ValidatePermutation(ids []string, items []domain.Item) ([]string, error) {
	want := make(map[string]struct{}, len(items))
	for _, item := range items {
		want[item.ID] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := want[id]; !ok {
			return nil, &ValidationError{Op: "apply permutation", Reason: fmt.Sprintf("id %q is not in this ordering scope", id)}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Op: "apply permutation", Reason: fmt.Sprintf("id %q listed twice", id)}
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) != len(items) {
		return nil, &ValidationError{Op: "apply permutation", Reason: fmt.Sprintf("ids must list all %d items of the scope, got %d", len(items), len(out))}
	}
	return out, nil
}

// CancelReorder discards the draft without issuing any mutation.
func (r *Reorder) CancelReorder() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReorderReordering {
		return ErrNotReordering
	}
	if r.committing {
		return ErrCommitInFlight
	}
	r.draft = nil
	r.session = domain.DragSession{}
	r.state = ReorderViewing
	return nil
}

// CommitReorder writes the draft as a contiguous 0..N-1 order. Writes are
// independent and joined; there is no retry and no rollback. On any failure
// the draft stays open so the user can commit again or cancel.
func (r *Reorder) CommitReorder(ctx context.Context) (CommitReport, error) {
	r.mu.Lock()
	if r.state != ReorderReordering {
		r.mu.Unlock()
		return CommitReport{}, ErrNotReordering
	}
	if r.committing {
		r.mu.Unlock()
		return CommitReport{}, ErrCommitInFlight
	}
	updates := make([]OrderUpdate, 0, len(r.draft))
	for idx, item := range r.draft {
		updates = append(updates, OrderUpdate{ItemID: item.ID, DisplayOrder: idx})
	}
	r.committing = true
	r.session = domain.DragSession{}
	r.mu.Unlock()

	report := r.write(ctx, updates)
	collection := r.filter.Collection

	r.mu.Lock()
	r.committing = false
	switch {
	case len(report.Failed) == 0:
		committed := slices.Clone(r.draft)
		for idx := range committed {
			committed[idx].DisplayOrder = idx
		}
		// The normalized draft stands in until the next successful fetch.
		r.items = committed
		r.draft = nil
		r.state = ReorderViewing
		r.mu.Unlock()

		r.store.Invalidate(ctx, collection)
		_ = r.Load(ctx)
		r.sink.Emit(NotifySuccess, "Order saved")
		return report, nil

	case len(report.Applied) == 0:
		r.mu.Unlock()
		errs := make([]error, 0, len(report.Failed))
		for _, failed := range report.Failed {
			errs = append(errs, failed)
		}
		err := &PersistenceError{Op: "commit reorder", Err: errors.Join(errs...)}
		r.sink.Emit(NotifyError, "Failed to save order: "+firstLine(err.Err.Error()))
		return report, err

	default:
		r.mu.Unlock()
		r.store.Invalidate(ctx, collection)
		err := &PartialBatchFailure{Op: "commit reorder", Applied: report.Applied, Failed: report.Failed}
		r.sink.Emit(NotifyWarning, fmt.Sprintf(
			"Order partially saved: %d of %d positions failed; some positions may not reflect your intent",
			len(report.Failed), len(updates)))
		return report, err
	}
}

// OnPick implements DragSource. Only draft items can be picked.
func (r *Reorder) OnPick(itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReorderReordering {
		return ErrNotReordering
	}
	if r.session.Active() {
		return ErrDragInProgress
	}
	idx := r.indexLocked(itemID)
	if idx < 0 {
		return &ValidationError{Op: "pick", Reason: fmt.Sprintf("item %q is not in the draft", itemID)}
	}
	r.session = domain.DragSession{ActiveItemID: itemID}
	r.pickIndex = idx
	return nil
}

// OnHover implements DropTarget. Hovering another draft item reflows the
// active item into that item's position.
func (r *Reorder) OnHover(targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hoverLocked(strings.TrimSpace(targetID))
}

// OnDrop implements DropTarget.
func (r *Reorder) OnDrop(ctx context.Context, targetID string) DropResult {
	targetID = strings.TrimSpace(targetID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.session.Active() {
		return DropResult{Outcome: DropNoSession, To: targetID}
	}
	itemID := r.session.ActiveItemID
	result := DropResult{ItemID: itemID, From: strconv.Itoa(r.pickIndex)}

	switch {
	case targetID == "":
		r.restorePickLocked()
		result.Outcome = DropNoTarget
	case r.indexLocked(targetID) < 0:
		r.restorePickLocked()
		result.Outcome = DropInvalidTarget
	default:
		r.hoverLocked(targetID)
		if r.indexLocked(itemID) == r.pickIndex {
			result.Outcome = DropSameTarget
		} else {
			result.Outcome = DropReflowed
		}
	}
	result.To = strconv.Itoa(r.indexLocked(itemID))
	r.session = domain.DragSession{}
	return result
}

// OnRelease implements DragSource. Releasing outside the list puts the item back.
func (r *Reorder) OnRelease(ctx context.Context) DropResult {
	return r.OnDrop(ctx, "")
}

func (r *Reorder) write(ctx context.Context, updates []OrderUpdate) CommitReport {
	if r.opts.Transactional {
		if batcher, ok := r.store.(BatchOrderer); ok {
			err := batcher.ApplyOrder(ctx, r.filter.Collection, updates)
			if !errors.Is(err, ErrBatchUnsupported) {
				if err == nil {
					return CommitReport{Applied: slices.Clone(updates)}
				}
				report := CommitReport{}
				for _, update := range updates {
					report.Failed = append(report.Failed, ItemError{ItemID: update.ItemID, DisplayOrder: update.DisplayOrder, Err: err})
				}
				return report
			}
		}
	}

	var (
		mu     sync.Mutex
		report CommitReport
		group  errgroup.Group
	)
	group.SetLimit(r.opts.MaxConcurrency)
	for _, update := range updates {
		group.Go(func() error {
			err := r.store.UpdateOrder(ctx, r.filter.Collection, update.ItemID, update.DisplayOrder)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, ItemError{ItemID: update.ItemID, DisplayOrder: update.DisplayOrder, Err: err})
				return nil
			}
			report.Applied = append(report.Applied, update)
			return nil
		})
	}
	_ = group.Wait()

	slices.SortFunc(report.Applied, func(a, b OrderUpdate) int { return cmp.Compare(a.DisplayOrder, b.DisplayOrder) })
	slices.SortFunc(report.Failed, func(a, b ItemError) int { return cmp.Compare(a.DisplayOrder, b.DisplayOrder) })
	return report
}

func (r *Reorder) moveLocked(from, to int) error {
	if r.state != ReorderReordering {
		return ErrNotReordering
	}
	if r.committing {
		return ErrCommitInFlight
	}
	n := len(r.draft)
	if from < 0 || from >= n || to < 0 || to >= n {
		return &ValidationError{Op: "move item", Reason: fmt.Sprintf("move %d -> %d outside [0,%d)", from, to, n)}
	}
	if from == to {
		return nil
	}
	item := r.draft[from]
	r.draft = slices.Delete(r.draft, from, from+1)
	r.draft = slices.Insert(r.draft, to, item)
	return nil
}

func (r *Reorder) hoverLocked(targetID string) {
	if !r.session.Active() || targetID == "" {
		return
	}
	to := r.indexLocked(targetID)
	if to < 0 {
		return
	}
	from := r.indexLocked(r.session.ActiveItemID)
	if err := r.moveLocked(from, to); err != nil {
		return
	}
	r.session.OverTargetID = targetID
}

func (r *Reorder) restorePickLocked() {
	from := r.indexLocked(r.session.ActiveItemID)
	_ = r.moveLocked(from, r.pickIndex)
}

func (r *Reorder) indexLocked(itemID string) int {
	return slices.IndexFunc(r.draft, func(item domain.Item) bool { return item.ID == itemID })
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
