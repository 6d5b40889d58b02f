package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/evanschultz/reeldesk/internal/domain"
)

func mediaItem(id string, order int) domain.Item {
	return domain.Item{
		ID:           id,
		Collection:   domain.CollectionMedia,
		Kind:         domain.KindVideo,
		Title:        id,
		DisplayOrder: order,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestReorder(t *testing.T, opts ReorderOptions, ids ...string) (*Reorder, *spyStore, *fakeRepo, *Notifications) {
	t.Helper()
	repo := newFakeRepo()
	for idx, id := range ids {
		repo.put(mediaItem(id, idx))
	}
	store := newSpyStore(repo, nil)
	sink := NewNotifications(8, nil)
	engine, err := NewReorder(store, ReorderConfig{
		Filter:  domain.ItemFilter{Collection: domain.CollectionMedia},
		Sink:    sink,
		Options: opts,
	})
	if err != nil {
		t.Fatalf("NewReorder() error = %v", err)
	}
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return engine, store, repo, sink
}

func itemIDs(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestReorderMoveToEndAndCommit(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, store, repo, sink := newTestReorder(t, ReorderOptions{}, "A", "B", "C")
	if err := engine.StartReorder(); err != nil {
		t.Fatalf("StartReorder() error = %v", err)
	}
	if err := engine.MoveItem(0, 2); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"B", "C", "A"}) {
		t.Fatalf("draft = %v, want [B C A]", got)
	}

	report, err := engine.CommitReorder(context.Background())
	if err != nil {
		t.Fatalf("CommitReorder() error = %v", err)
	}
	if len(report.Applied) != 3 || len(report.Failed) != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	for id, want := range map[string]int{"B": 0, "C": 1, "A": 2} {
		if got := repo.order(domain.CollectionMedia, id); got != want {
			t.Fatalf("persisted order %s = %d, want %d", id, got, want)
		}
	}
	if store.orderCount() != 3 {
		t.Fatalf("expected one write per item, got %d", store.orderCount())
	}
	if engine.State() != ReorderViewing {
		t.Fatalf("expected viewing after commit, got %q", engine.State())
	}
	if store.invalidationCount() != 1 {
		t.Fatalf("expected one invalidation, got %d", store.invalidationCount())
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"B", "C", "A"}) {
		t.Fatalf("refetched order = %v, want [B C A]", got)
	}
	if latest, _ := sink.Latest(); latest.Kind != NotifySuccess {
		t.Fatalf("unexpected notification %#v", latest)
	}
}

func TestReorderApplyPermutation(t *testing.T) {
	engine, store, _, _ := newTestReorder(t, ReorderOptions{}, "A", "B", "C", "D")
	if err := engine.ApplyPermutation([]string{"D", "A", "C", "B"}); !errors.Is(err, ErrNotReordering) {
		t.Fatalf("expected ErrNotReordering before start, got %v", err)
	}
	if err := engine.StartReorder(); err != nil {
		t.Fatalf("StartReorder() error = %v", err)
	}

	invalid := map[string][]string{
		"short":    {"A", "B", "C"},
		"repeated": {"A", "A", "B", "C"},
		"unknown":  {"A", "B", "C", "Z"},
	}
	for name, ids := range invalid {
		t.Run(name, func(t *testing.T) {
			if err := engine.ApplyPermutation(ids); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
				t.Fatalf("draft changed on invalid permutation: %v", got)
			}
		})
	}

	if err := engine.ApplyPermutation([]string{" D ", "A", "C", "B"}); err != nil {
		t.Fatalf("ApplyPermutation() error = %v", err)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"D", "A", "C", "B"}) {
		t.Fatalf("draft = %v, want [D A C B]", got)
	}
	if store.orderCount() != 0 {
		t.Fatalf("expected no writes before commit, got %d", store.orderCount())
	}
}

func TestReorderCommitIsContiguousForRandomMoves(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 20; round++ {
		engine, _, repo, _ := newTestReorder(t, ReorderOptions{MaxConcurrency: 3}, ids...)
		// Start from gapped orders to check normalization.
		for idx, id := range ids {
			_ = repo.UpdateItemOrder(context.Background(), domain.CollectionMedia, id, idx*10, time.Now())
		}
		if err := engine.Load(context.Background()); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := engine.StartReorder(); err != nil {
			t.Fatalf("StartReorder() error = %v", err)
		}
		for move := 0; move < 10; move++ {
			if err := engine.MoveItem(rng.IntN(len(ids)), rng.IntN(len(ids))); err != nil {
				t.Fatalf("MoveItem() error = %v", err)
			}
		}
		draft := itemIDs(engine.Items())
		if _, err := engine.CommitReorder(context.Background()); err != nil {
			t.Fatalf("CommitReorder() error = %v", err)
		}
		for want, id := range draft {
			if got := repo.order(domain.CollectionMedia, id); got != want {
				t.Fatalf("round %d: %s order = %d, want %d", round, id, got, want)
			}
		}
	}
}

func TestReorderMoveItemBoundsAndNoop(t *testing.T) {
	engine, _, _, _ := newTestReorder(t, ReorderOptions{}, "A", "B", "C")
	if err := engine.MoveItem(0, 1); !errors.Is(err, ErrNotReordering) {
		t.Fatalf("expected ErrNotReordering before start, got %v", err)
	}
	if err := engine.StartReorder(); err != nil {
		t.Fatalf("StartReorder() error = %v", err)
	}
	if err := engine.StartReorder(); !errors.Is(err, ErrReorderActive) {
		t.Fatalf("expected ErrReorderActive, got %v", err)
	}
	for _, tc := range [][2]int{{-1, 0}, {0, 3}, {3, 0}, {0, -1}} {
		if err := engine.MoveItem(tc[0], tc[1]); !errors.Is(err, ErrValidation) {
			t.Fatalf("MoveItem(%d, %d) expected ErrValidation, got %v", tc[0], tc[1], err)
		}
	}
	if err := engine.MoveItem(1, 1); err != nil {
		t.Fatalf("MoveItem(1, 1) error = %v", err)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("no-op move changed draft to %v", got)
	}
	if err := engine.MoveItem(2, 0); err != nil {
		t.Fatalf("MoveItem(2, 0) error = %v", err)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"C", "A", "B"}) {
		t.Fatalf("draft = %v, want [C A B]", got)
	}
}

func TestReorderCancelRestoresWithoutMutations(t *testing.T) {
	engine, store, _, _ := newTestReorder(t, ReorderOptions{}, "A", "B", "C", "D")
	if err := engine.CancelReorder(); !errors.Is(err, ErrNotReordering) {
		t.Fatalf("expected ErrNotReordering, got %v", err)
	}
	if err := engine.StartReorder(); err != nil {
		t.Fatalf("StartReorder() error = %v", err)
	}
	_ = engine.MoveItem(0, 3)
	_ = engine.MoveItem(2, 1)
	_ = engine.MoveItem(3, 0)
	if err := engine.CancelReorder(); err != nil {
		t.Fatalf("CancelReorder() error = %v", err)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
		t.Fatalf("restored order = %v", got)
	}
	if store.orderCount() != 0 || store.invalidationCount() != 0 {
		t.Fatalf("expected zero mutations, got orders=%d invalidations=%d", store.orderCount(), store.invalidationCount())
	}
}

func TestReorderPartialBatchFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine, store, repo, sink := newTestReorder(t, ReorderOptions{}, "A", "B", "C")
	repo.failOrder["A"] = errors.New("row locked")
	if err := engine.StartReorder(); err != nil {
		t.Fatalf("StartReorder() error = %v", err)
	}
	// Draft [C, A, B]: the second write (A -> 1) fails.
	if err := engine.MoveItem(2, 0); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}

	report, err := engine.CommitReorder(context.Background())
	var partial *PartialBatchFailure
	if !errors.As(err, &partial) || !errors.Is(err, ErrPartialBatch) {
		t.Fatalf("expected *PartialBatchFailure, got %v", err)
	}
	if len(partial.Failed) != 1 || partial.Failed[0].ItemID != "A" || partial.Failed[0].DisplayOrder != 1 {
		t.Fatalf("unexpected failed writes %#v", partial.Failed)
	}
	if len(report.Applied) != 2 {
		t.Fatalf("expected two applied writes, got %#v", report.Applied)
	}
	if repo.order(domain.CollectionMedia, "C") != 0 || repo.order(domain.CollectionMedia, "B") != 2 {
		t.Fatalf("expected first and third writes applied without rollback")
	}
	if repo.order(domain.CollectionMedia, "A") != 0 {
		t.Fatalf("expected A unchanged, got %d", repo.order(domain.CollectionMedia, "A"))
	}
	if engine.State() != ReorderReordering {
		t.Fatalf("expected draft to stay open, got %q", engine.State())
	}
	if store.invalidationCount() != 1 {
		t.Fatalf("expected invalidation after partial write, got %d", store.invalidationCount())
	}
	if latest, _ := sink.Latest(); latest.Kind != NotifyWarning {
		t.Fatalf("expected warning notification, got %#v", latest)
	}

	delete(repo.failOrder, "A")
	if _, err := engine.CommitReorder(context.Background()); err != nil {
		t.Fatalf("re-commit error = %v", err)
	}
	if repo.order(domain.CollectionMedia, "A") != 1 {
		t.Fatalf("expected manual re-commit to land A at 1")
	}
}

func TestReorderTotalFailureKeepsDraft(t *testing.T) {
	engine, store, repo, sink := newTestReorder(t, ReorderOptions{}, "A", "B")
	repo.failOrder["A"] = errors.New("offline")
	repo.failOrder["B"] = errors.New("offline")
	_ = engine.StartReorder()
	_ = engine.MoveItem(0, 1)

	_, err := engine.CommitReorder(context.Background())
	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected *PersistenceError, got %v", err)
	}
	if errors.Is(err, ErrPartialBatch) {
		t.Fatal("total failure must not report as partial")
	}
	if engine.State() != ReorderReordering {
		t.Fatalf("expected draft to stay open, got %q", engine.State())
	}
	if store.invalidationCount() != 0 {
		t.Fatalf("expected no invalidation, got %d", store.invalidationCount())
	}
	if latest, _ := sink.Latest(); latest.Kind != NotifyError {
		t.Fatalf("expected error notification, got %#v", latest)
	}
}

func TestReorderTransactionalCommitUsesBatch(t *testing.T) {
	engine, store, repo, _ := newTestReorder(t, ReorderOptions{Transactional: true}, "A", "B", "C")
	_ = engine.StartReorder()
	_ = engine.MoveItem(0, 2)
	if _, err := engine.CommitReorder(context.Background()); err != nil {
		t.Fatalf("CommitReorder() error = %v", err)
	}
	if store.batchCalls != 1 || store.orderCount() != 0 {
		t.Fatalf("expected one batch call and no single writes, got batch=%d single=%d", store.batchCalls, store.orderCount())
	}
	if len(repo.batches) != 1 || len(repo.batches[0]) != 3 {
		t.Fatalf("unexpected batches %#v", repo.batches)
	}

	repo.failOrder["C"] = errors.New("constraint")
	_ = engine.StartReorder()
	_ = engine.MoveItem(2, 0)
	report, err := engine.CommitReorder(context.Background())
	if !errors.Is(err, ErrPersistence) || len(report.Failed) != 3 {
		t.Fatalf("expected atomic failure of all writes, got %v %#v", err, report)
	}
}

func TestReorderLoadIsIgnoredWhileReordering(t *testing.T) {
	engine, store, repo, _ := newTestReorder(t, ReorderOptions{}, "A", "B")
	_ = engine.StartReorder()
	_ = engine.MoveItem(0, 1)
	repo.put(mediaItem("Z", 2))
	before := store.lists
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.lists != before {
		t.Fatal("expected no refetch while reordering")
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"B", "A"}) {
		t.Fatalf("draft = %v", got)
	}
}

func TestReorderDragReflow(t *testing.T) {
	engine, _, _, _ := newTestReorder(t, ReorderOptions{}, "A", "B", "C", "D")
	if err := engine.OnPick("A"); !errors.Is(err, ErrNotReordering) {
		t.Fatalf("expected ErrNotReordering, got %v", err)
	}
	_ = engine.StartReorder()
	if err := engine.OnPick("B"); err != nil {
		t.Fatalf("OnPick() error = %v", err)
	}
	engine.OnHover("D")
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "C", "D", "B"}) {
		t.Fatalf("live reflow = %v", got)
	}
	engine.OnHover("A")
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"B", "A", "C", "D"}) {
		t.Fatalf("live reflow = %v", got)
	}
	result := engine.OnDrop(context.Background(), "C")
	if result.Outcome != DropReflowed || result.From != "1" || result.To != "2" {
		t.Fatalf("unexpected drop %#v", result)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "C", "B", "D"}) {
		t.Fatalf("dropped order = %v", got)
	}

	_ = engine.OnPick("D")
	engine.OnHover("A")
	released := engine.OnRelease(context.Background())
	if released.Outcome != DropNoTarget {
		t.Fatalf("unexpected release %#v", released)
	}
	if got := itemIDs(engine.Items()); !slices.Equal(got, []string{"A", "C", "B", "D"}) {
		t.Fatalf("release outside should restore pick position, got %v", got)
	}
	if engine.Session().Active() {
		t.Fatal("expected session cleared")
	}
}

func TestNewReorderScopeValidation(t *testing.T) {
	store := NewStore(newFakeRepo(), StoreConfig{})
	cases := []domain.ItemFilter{
		{Collection: domain.CollectionPeople},
		{Collection: domain.CollectionExperience},
		{Collection: domain.CollectionMedia, Kind: domain.KindVideo},
		{Collection: domain.CollectionMedia, Visibility: domain.VisibilityVisible},
	}
	for _, filter := range cases {
		if _, err := NewReorder(store, ReorderConfig{Filter: filter}); !errors.Is(err, ErrValidation) {
			t.Fatalf("NewReorder(%#v) expected ErrValidation, got %v", filter, err)
		}
	}
	if _, err := NewReorder(store, ReorderConfig{Filter: domain.ItemFilter{Collection: domain.CollectionExperience, Kind: domain.KindSkills}}); err != nil {
		t.Fatalf("NewReorder(experience/skills) error = %v", err)
	}
}
