package app

import (
	"context"
	"sync"
)

// DragSource is the pick/release half of a drag gesture.
type DragSource interface {
	OnPick(itemID string) error
	OnRelease(ctx context.Context) DropResult
}

// DropTarget is the hover/drop half of a drag gesture.
type DropTarget interface {
	OnHover(targetID string)
	OnDrop(ctx context.Context, targetID string) DropResult
}

// DropOutcome names how a drop resolved.
type DropOutcome string

const (
	DropMoved         DropOutcome = "moved"
	DropReflowed      DropOutcome = "reflowed"
	DropSameTarget    DropOutcome = "same_target"
	DropInvalidTarget DropOutcome = "invalid_target"
	DropNoTarget      DropOutcome = "no_target"
	DropNoSession     DropOutcome = "no_session"
)

// DropResult describes one resolved drop. A moved drop may carry an
// asynchronous mutation that Wait blocks on.
type DropResult struct {
	Outcome DropOutcome `json:"outcome"`
	ItemID  string      `json:"item_id,omitempty"`
	From    string      `json:"from,omitempty"`
	To      string      `json:"to,omitempty"`

	pending *pendingMutation
}

// Mutated reports whether the drop issued a store mutation.
func (r DropResult) Mutated() bool {
	return r.pending != nil
}

// Wait blocks until the drop's mutation finishes and returns its error.
func (r DropResult) Wait(ctx context.Context) error {
	if r.pending == nil {
		return nil
	}
	select {
	case <-r.pending.done:
		return r.pending.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type pendingMutation struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newPendingMutation() *pendingMutation {
	return &pendingMutation{done: make(chan struct{})}
}

func (p *pendingMutation) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
