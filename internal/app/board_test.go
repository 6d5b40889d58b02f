package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/evanschultz/reeldesk/internal/domain"
)

type statusCall struct {
	ItemID string
	Status string
}

type orderCall struct {
	ItemID string
	Order  int
}

// spyStore records every contract call and forwards to a real Store.
type spyStore struct {
	*Store

	mu            sync.Mutex
	statusCalls   []statusCall
	orderCalls    []orderCall
	batchCalls    int
	invalidations []domain.Collection
	lists         int
}

func newSpyStore(repo *fakeRepo, pipeline domain.Pipeline) *spyStore {
	return &spyStore{Store: NewStore(repo, StoreConfig{Pipeline: pipeline})}
}

func (s *spyStore) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.Store.List(ctx, filter)
}

func (s *spyStore) UpdateOrder(ctx context.Context, collection domain.Collection, itemID string, order int) error {
	s.mu.Lock()
	s.orderCalls = append(s.orderCalls, orderCall{ItemID: itemID, Order: order})
	s.mu.Unlock()
	return s.Store.UpdateOrder(ctx, collection, itemID, order)
}

func (s *spyStore) UpdateStatus(ctx context.Context, collection domain.Collection, itemID string, status string) error {
	s.mu.Lock()
	s.statusCalls = append(s.statusCalls, statusCall{ItemID: itemID, Status: status})
	s.mu.Unlock()
	return s.Store.UpdateStatus(ctx, collection, itemID, status)
}

func (s *spyStore) ApplyOrder(ctx context.Context, collection domain.Collection, updates []OrderUpdate) error {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	return s.Store.ApplyOrder(ctx, collection, updates)
}

func (s *spyStore) Invalidate(ctx context.Context, collection domain.Collection) {
	s.mu.Lock()
	s.invalidations = append(s.invalidations, collection)
	s.mu.Unlock()
	s.Store.Invalidate(ctx, collection)
}

func (s *spyStore) statusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statusCalls)
}

func (s *spyStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderCalls)
}

func (s *spyStore) invalidationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invalidations)
}

type debugLog struct {
	mu   sync.Mutex
	msgs []string
}

func (l *debugLog) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func twoStagePipeline() domain.Pipeline {
	return domain.Pipeline{{ID: "soon", Title: "Soon"}, {ID: "contacted", Title: "Contacted"}}
}

func newTestBoard(t *testing.T, items ...domain.Item) (*Board, *spyStore, *fakeRepo, *Notifications) {
	t.Helper()
	repo := newFakeRepo()
	for _, item := range items {
		repo.put(item)
	}
	store := newSpyStore(repo, twoStagePipeline())
	sink := NewNotifications(8, nil)
	board, err := NewBoard(store, BoardConfig{Collection: domain.CollectionPeople, Pipeline: twoStagePipeline(), Sink: sink})
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return board, store, repo, sink
}

func person(id, status string, order int) domain.Item {
	return domain.Item{
		ID:           id,
		Collection:   domain.CollectionPeople,
		Title:        id,
		Status:       status,
		DisplayOrder: order,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBoardDropOnOtherCategoryIssuesOneUpdate(t *testing.T) {
	defer goleak.VerifyNone(t)

	board, store, repo, sink := newTestBoard(t, person("X", "soon", 0))
	if err := board.BeginDrag("X"); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	if board.State() != BoardDragging || board.Session().ActiveItemID != "X" {
		t.Fatalf("unexpected state %q session %#v", board.State(), board.Session())
	}

	result := board.EndDrag(context.Background(), "contacted")
	if board.State() != BoardIdle {
		t.Fatalf("expected idle immediately after drop, got %q", board.State())
	}
	if result.Outcome != DropMoved || !result.Mutated() {
		t.Fatalf("unexpected drop result %#v", result)
	}
	if err := result.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	board.Wait()

	if store.statusCount() != 1 || store.statusCalls[0] != (statusCall{ItemID: "X", Status: "contacted"}) {
		t.Fatalf("expected exactly one UpdateStatus(X, contacted), got %#v", store.statusCalls)
	}
	if store.invalidationCount() != 1 {
		t.Fatalf("expected one invalidation, got %d", store.invalidationCount())
	}
	if got, _ := repo.GetItem(context.Background(), domain.CollectionPeople, "X"); got.Status != "contacted" {
		t.Fatalf("expected persisted contacted, got %q", got.Status)
	}
	if latest, ok := sink.Latest(); !ok || latest.Kind != NotifySuccess || latest.Message != "Status updated" {
		t.Fatalf("unexpected notification %#v", latest)
	}
}

func TestBoardNoopDrops(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		name    string
		target  string
		outcome DropOutcome
	}{
		{"origin category", "soon", DropSameTarget},
		{"unknown target", "archive", DropInvalidTarget},
		{"outside any column", "", DropNoTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			board, store, _, sink := newTestBoard(t, person("X", "soon", 0))
			logger := &debugLog{}
			board.logger = logger
			if err := board.BeginDrag("X"); err != nil {
				t.Fatalf("BeginDrag() error = %v", err)
			}
			result := board.EndDrag(context.Background(), tc.target)
			board.Wait()
			if result.Outcome != tc.outcome || result.Mutated() {
				t.Fatalf("unexpected drop result %#v", result)
			}
			if board.State() != BoardIdle || board.Session().Active() {
				t.Fatalf("expected idle with cleared session, got %q %#v", board.State(), board.Session())
			}
			if store.statusCount() != 0 {
				t.Fatalf("expected zero UpdateStatus calls, got %#v", store.statusCalls)
			}
			if _, ok := sink.Latest(); ok {
				t.Fatal("expected no notification for a no-op drop")
			}
			if len(logger.msgs) != 1 {
				t.Fatalf("expected one debug line, got %v", logger.msgs)
			}
		})
	}
}

func TestBoardBeginDragValidation(t *testing.T) {
	board, _, _, _ := newTestBoard(t, person("X", "soon", 0), person("Y", "retired", 0))
	if err := board.BeginDrag("missing"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown item, got %v", err)
	}
	if err := board.BeginDrag("Y"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unrendered item, got %v", err)
	}
	if err := board.BeginDrag("X"); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	if err := board.BeginDrag("X"); !errors.Is(err, ErrDragInProgress) {
		t.Fatalf("expected ErrDragInProgress, got %v", err)
	}
	if got := board.EndDrag(context.Background(), ""); got.Outcome != DropNoTarget {
		t.Fatalf("unexpected outcome %q", got.Outcome)
	}
	if got := board.EndDrag(context.Background(), "contacted"); got.Outcome != DropNoSession {
		t.Fatalf("expected no-session drop, got %q", got.Outcome)
	}
	if len(board.Unplaced()) != 1 {
		t.Fatalf("expected Y to be unplaced, got %#v", board.Unplaced())
	}
}

func TestBoardColumnsKeepDisplayOrderAcrossMoves(t *testing.T) {
	defer goleak.VerifyNone(t)

	board, _, _, _ := newTestBoard(t,
		person("A", "soon", 5),
		person("B", "contacted", 1),
		person("C", "contacted", 9),
	)
	columns := board.Columns()
	if len(columns) != 2 || columns[0].Category.ID != "soon" || columns[1].Category.ID != "contacted" {
		t.Fatalf("unexpected columns %#v", columns)
	}

	if err := board.OnPick("A"); err != nil {
		t.Fatalf("OnPick() error = %v", err)
	}
	board.OnHover("contacted")
	if board.Session().OverTargetID != "contacted" {
		t.Fatalf("expected hover target, got %#v", board.Session())
	}
	result := board.OnDrop(context.Background(), "contacted")
	if err := result.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	board.Wait()
	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	contacted := board.Columns()[1].Items
	got := []string{contacted[0].ID, contacted[1].ID, contacted[2].ID}
	want := []string{"B", "A", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("contacted order = %v, want %v", got, want)
		}
	}
	if contacted[1].DisplayOrder != 5 {
		t.Fatalf("expected moved item to keep order 5, got %d", contacted[1].DisplayOrder)
	}
}

func TestBoardFailedMutationRevertsAndNotifies(t *testing.T) {
	defer goleak.VerifyNone(t)

	board, store, repo, sink := newTestBoard(t, person("X", "soon", 0))
	repo.failStatus["X"] = errors.New("backend rejected")

	if err := board.BeginDrag("X"); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	result := board.EndDrag(context.Background(), "contacted")
	err := result.Wait(context.Background())
	board.Wait()

	var pErr *PersistenceError
	if !errors.As(err, &pErr) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected *PersistenceError, got %v", err)
	}
	if store.invalidationCount() != 0 {
		t.Fatalf("expected no invalidation on failure, got %d", store.invalidationCount())
	}
	if item, _ := board.Item("X"); item.Status != "soon" {
		t.Fatalf("expected optimistic move reverted to soon, got %q", item.Status)
	}
	latest, ok := sink.Latest()
	if !ok || latest.Kind != NotifyError || latest.Message != "Failed to update status: update status people/X: backend rejected" {
		t.Fatalf("unexpected notification %#v", latest)
	}
}

func TestBoardOptimisticMoveSurvivesLoadWhileInFlight(t *testing.T) {
	board, _, _, _ := newTestBoard(t, person("X", "soon", 0))
	board.mu.Lock()
	board.moves["X"] = boardMove{status: "contacted"}
	board.mu.Unlock()

	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, _ := board.Item("X"); item.Status != "contacted" {
		t.Fatalf("expected in-flight move to stay visible, got %q", item.Status)
	}

	board.mu.Lock()
	board.moves["X"] = boardMove{status: "contacted", settled: true}
	board.mu.Unlock()
	if err := board.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, _ := board.Item("X"); item.Status != "soon" {
		t.Fatalf("expected settled move replaced by server truth, got %q", item.Status)
	}
}

// gatedListStore pauses the next armed List after its rows are read.
type gatedListStore struct {
	*spyStore

	gate    sync.Mutex
	read    chan struct{}
	release chan struct{}
}

func (g *gatedListStore) arm() (read, release chan struct{}) {
	g.gate.Lock()
	defer g.gate.Unlock()
	g.read, g.release = make(chan struct{}), make(chan struct{})
	return g.read, g.release
}

func (g *gatedListStore) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	items, err := g.spyStore.List(ctx, filter)
	g.gate.Lock()
	read, release := g.read, g.release
	g.read, g.release = nil, nil
	g.gate.Unlock()
	if read != nil {
		close(read)
		<-release
	}
	return items, err
}

func TestBoardLoadStartedBeforeSettleKeepsMove(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newFakeRepo()
	repo.put(person("X", "soon", 0))
	store := &gatedListStore{spyStore: newSpyStore(repo, twoStagePipeline())}
	board, err := NewBoard(store, BoardConfig{Collection: domain.CollectionPeople, Pipeline: twoStagePipeline()})
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	ctx := context.Background()
	if err := board.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// The slow load finishes after the move settles.
	read, release := store.arm()
	loaded := make(chan error)
	go func() { loaded <- board.Load(ctx) }()
	<-read
	if err := board.BeginDrag("X"); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	if err := board.EndDrag(ctx, "contacted").Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	board.Wait()
	close(release)
	if err := <-loaded; err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if item, _ := board.Item("X"); item.Status != "contacted" {
		t.Fatalf("expected settled move to survive a load that started before it, got %q", item.Status)
	}

	// The slow load finishes after a newer load.
	repo.put(person("Y", "soon", 1))
	read, release = store.arm()
	go func() { loaded <- board.Load(ctx) }()
	<-read
	if err := repo.UpdateItemStatus(ctx, domain.CollectionPeople, "Y", "contacted", time.Now()); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	if err := board.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	close(release)
	if err := <-loaded; err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, id := range []string{"X", "Y"} {
		if item, _ := board.Item(id); item.Status != "contacted" {
			t.Fatalf("expected %s rendered in persisted category contacted, got %q", id, item.Status)
		}
	}
	board.mu.Lock()
	moves := len(board.moves)
	board.mu.Unlock()
	if moves != 0 {
		t.Fatalf("expected settled move cleared by the newer load, got %d overlays", moves)
	}
}

func TestNewBoardRejectsReorderCollection(t *testing.T) {
	store := NewStore(newFakeRepo(), StoreConfig{})
	if _, err := NewBoard(store, BoardConfig{Collection: domain.CollectionMedia}); !errors.Is(err, domain.ErrInvalidCollection) {
		t.Fatalf("expected ErrInvalidCollection, got %v", err)
	}
}
