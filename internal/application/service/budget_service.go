package service

import (
	"context"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// BudgetService computes the available budget across all projects
type BudgetService interface {
	// ComputeAvailable returns total budget minus realized spend minus commitments,
	// leaving out the commitment of excludePOID when it is set
	ComputeAvailable(ctx context.Context, excludePOID *int64) (decimal.Decimal, error)
	Summary(ctx context.Context) (*entity.BudgetSummary, error)
}

type budgetServiceImpl struct {
	budgetRepo port.BudgetRepository
	logger     Logger
}

// NewBudgetService creates a new BudgetService
func NewBudgetService(budgetRepo port.BudgetRepository, logger Logger) BudgetService {
	return &budgetServiceImpl{
		budgetRepo: budgetRepo,
		logger:     logger,
	}
}

// ComputeAvailable is a pure read. Called with a transaction context it sees that transaction's view.
func (s *budgetServiceImpl) ComputeAvailable(ctx context.Context, excludePOID *int64) (decimal.Decimal, error) {
	summary, err := s.summarize(ctx, excludePOID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Available, nil
}

// Summary returns the terms of the available-budget formula over all purchase orders
func (s *budgetServiceImpl) Summary(ctx context.Context) (*entity.BudgetSummary, error) {
	return s.summarize(ctx, nil)
}

func (s *budgetServiceImpl) summarize(ctx context.Context, excludePOID *int64) (*entity.BudgetSummary, error) {
	snap, err := s.budgetRepo.Snapshot(ctx, excludePOID)
	if err != nil {
		s.logger.Error("Failed to read budget snapshot", "error", err)
		return nil, apperr.Storage("read budget aggregate", err)
	}
	return Summarize(snap), nil
}

// Summarize applies the available-budget formula to a snapshot
func Summarize(snap *port.BudgetSnapshot) *entity.BudgetSummary {
	sum := &entity.BudgetSummary{
		TotalBudget:   decimal.Zero,
		RealizedSpend: decimal.Zero,
		Committed:     decimal.Zero,
	}
	for _, b := range snap.ProjectBudgets {
		sum.TotalBudget = sum.TotalBudget.Add(b)
	}
	for _, e := range snap.RealizedExpenses {
		sum.RealizedSpend = sum.RealizedSpend.Add(e)
	}
	for _, c := range snap.Commitments {
		sum.Committed = sum.Committed.Add(entity.CommitmentFor(c.Status, c.Total))
	}
	sum.Available = sum.TotalBudget.Sub(sum.RealizedSpend).Sub(sum.Committed)
	return sum
}
