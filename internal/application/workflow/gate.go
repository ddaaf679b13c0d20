package workflow

import (
	"context"

	"github.com/garyjia/budget-gate/internal/application/port"
)

// CommitmentGate serializes operations that change the budget aggregate.
// Each Run holds a process-wide slot for the whole transaction, so the
// aggregate read, the budget check and the status write of one call are never
// interleaved with another call's. Run must not be nested.
type CommitmentGate interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type commitmentGate struct {
	slot      chan struct{}
	txManager port.TransactionManager
}

// NewCommitmentGate creates a gate whose critical sections run inside txManager transactions
func NewCommitmentGate(txManager port.TransactionManager) CommitmentGate {
	return &commitmentGate{
		slot:      make(chan struct{}, 1),
		txManager: txManager,
	}
}

// Run waits for the gate, honoring ctx cancellation, then runs fn in a transaction
func (g *commitmentGate) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	return g.txManager.WithTransaction(ctx, fn)
}
