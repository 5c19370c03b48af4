package dispatch

import (
	"context"
	"fmt"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

// Enqueuer persists an emitted instruction.
type Enqueuer interface {
	EnqueueInstruction(ctx context.Context, in domain.Instruction) error
}

// Outbox is the engine's post-commit notification. The document store has
// already persisted the instruction; Emit copies it into the relay outbox
// (a no-op when that is the same SQLite table), drops it from Pending when
// the document store keeps its own, and wakes the relay.
type Outbox struct {
	Store   Enqueuer
	Pending lifecycle.PendingOutbox
	Wake    func()
}

var _ lifecycle.Dispatcher = Outbox{}

func (o Outbox) Emit(ctx context.Context, in domain.Instruction) error {
	if err := o.forward(ctx, in); err != nil {
		return err
	}
	if o.Wake != nil {
		o.Wake()
	}
	return nil
}

func (o Outbox) forward(ctx context.Context, in domain.Instruction) error {
	if err := o.Store.EnqueueInstruction(ctx, in); err != nil {
		return err
	}
	if o.Pending == nil {
		return nil
	}
	return o.Pending.MarkForwarded(ctx, in)
}

// Sweep forwards instructions the document store committed but whose
// notification never completed, oldest first.
func (o Outbox) Sweep(ctx context.Context, limit int) (int, error) {
	if o.Pending == nil {
		return 0, nil
	}
	list, err := o.Pending.PendingInstructions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("read pending instructions: %w", err)
	}
	for i, in := range list {
		if err := o.forward(ctx, in); err != nil {
			return i, fmt.Errorf("forward %s: %w", in.ID, err)
		}
	}
	return len(list), nil
}
