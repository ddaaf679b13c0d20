package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/application/workflow"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SubmitExpenseInput carries the data of a new expense
type SubmitExpenseInput struct {
	ProjectID   *int64          `json:"project_id" validate:"omitempty,gt=0"`
	Description string          `json:"description" validate:"required,max=1000"`
	Amount      decimal.Decimal `json:"amount"`
	Actor       string          `json:"actor" validate:"required"`
}

// ExpenseService drives the expense payment workflow
type ExpenseService interface {
	Submit(ctx context.Context, input SubmitExpenseInput) (*entity.Expense, error)
	Get(ctx context.Context, id int64) (*entity.Expense, error)
	List(ctx context.Context, projectID *int64, limit, offset int) ([]*entity.Expense, error)
	SetPaymentStatus(ctx context.Context, id int64, status, actor string) (*entity.Expense, error)
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	projectRepo port.ProjectRepository
	gate        workflow.CommitmentGate
	dispatcher  dispatcher.Dispatcher
	validate    *validator.Validate
	logger      Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	projectRepo port.ProjectRepository,
	gate workflow.CommitmentGate,
	d dispatcher.Dispatcher,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenseRepo: expenseRepo,
		projectRepo: projectRepo,
		gate:        gate,
		dispatcher:  d,
		validate:    NewValidator(),
		logger:      logger,
	}
}

// Submit records a new PENDING expense
func (s *expenseServiceImpl) Submit(ctx context.Context, input SubmitExpenseInput) (*entity.Expense, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be positive, got %s", input.Amount)
	}

	if input.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *input.ProjectID)
		if err != nil {
			return nil, apperr.Storage("load project", err)
		}
		if project == nil {
			return nil, apperr.NotFound(entity.EntityProject, *input.ProjectID)
		}
	}

	expense := &entity.Expense{
		ProjectID:     input.ProjectID,
		Description:   strings.TrimSpace(input.Description),
		Amount:        input.Amount,
		PaymentStatus: entity.PaymentStatusPending,
		CreatedBy:     input.Actor,
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		s.logger.Error("Failed to submit expense", "error", err, "actor", input.Actor)
		return nil, apperr.Storage("create expense", err)
	}

	s.logger.Info("Expense submitted", "id", expense.ID, "amount", expense.Amount.String())

	publish(ctx, s.dispatcher, event.NewEvent(event.TypeExpenseSubmitted, entity.EntityExpense, expense.ID, input.Actor, map[string]interface{}{
		event.KeyAction: entity.ActionSubmitExpense,
		event.KeyAmount: expense.Amount.String(),
		event.KeyStatus: expense.PaymentStatus,
	}))

	return expense, nil
}

// Get returns an expense by ID
func (s *expenseServiceImpl) Get(ctx context.Context, id int64) (*entity.Expense, error) {
	return s.load(ctx, id)
}

// List returns expenses, optionally restricted to one project
func (s *expenseServiceImpl) List(ctx context.Context, projectID *int64, limit, offset int) ([]*entity.Expense, error) {
	expenses, err := s.expenseRepo.List(ctx, projectID, limit, offset)
	if err != nil {
		return nil, apperr.Storage("list expenses", err)
	}
	return expenses, nil
}

// SetPaymentStatus moves an expense to APPROVED, REJECTED or PAID. The change
// alters realized spend, so it runs behind the commitment gate.
func (s *expenseServiceImpl) SetPaymentStatus(ctx context.Context, id int64, status, actor string) (*entity.Expense, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	trigger, ok := workflow.PaymentTrigger(status)
	if !ok {
		return nil, apperr.Validation("status", "must be one of APPROVED, REJECTED, PAID; got %q", status)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, apperr.Validation("actor", "is required")
	}

	var (
		expense  *entity.Expense
		previous string
	)
	err := s.gate.Run(ctx, func(txCtx context.Context) error {
		var err error
		expense, err = s.load(txCtx, id)
		if err != nil {
			return err
		}
		previous = expense.PaymentStatus

		machine, err := workflow.BuildExpenseMachine(expense.PaymentStatus)
		if err != nil {
			return transitionError(entity.EntityExpense, id, expense.PaymentStatus, trigger, err)
		}
		if err := machine.Fire(txCtx, trigger); err != nil {
			return transitionError(entity.EntityExpense, id, expense.PaymentStatus, trigger, err)
		}

		paidBy := expense.PaidBy
		if status == entity.PaymentStatusPaid {
			paidBy = actor
		}
		if err := s.expenseRepo.UpdatePaymentStatus(txCtx, id, status, actor, paidBy); err != nil {
			return apperr.Storage("update expense payment status", err)
		}

		expense.PaymentStatus = status
		expense.ApprovedBy = actor
		expense.PaidBy = paidBy
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to set expense payment status", "error", err, "id", id, "status", status)
		return nil, err
	}

	s.logger.Info("Expense payment status changed", "id", id, "from", previous, "to", status, "actor", actor)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypeExpenseStatusChanged, entity.EntityExpense, id, actor, map[string]interface{}{
		event.KeyAction:   entity.ActionSetExpensePaymentStatus,
		event.KeyMessage:  fmt.Sprintf("Your expense %d is now %s", id, status),
		event.KeyOwner:    expense.CreatedBy,
		event.KeyPrevious: previous,
		event.KeyStatus:   status,
		event.KeyAmount:   expense.Amount.String(),
	}))

	return expense, nil
}

func (s *expenseServiceImpl) load(ctx context.Context, id int64) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load expense", err)
	}
	if expense == nil {
		return nil, apperr.NotFound(entity.EntityExpense, id)
	}
	return expense, nil
}
