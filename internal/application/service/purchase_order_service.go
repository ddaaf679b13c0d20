package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/application/workflow"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
	domainwf "github.com/garyjia/budget-gate/internal/domain/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderItemInput is one requested line of a new purchase order
type PurchaseOrderItemInput struct {
	MaterialID int64           `json:"material_id" validate:"gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// CreatePurchaseOrderInput carries the data of a new purchase order
type CreatePurchaseOrderInput struct {
	SupplierID       int64                    `json:"supplier_id" validate:"gt=0"`
	Items            []PurchaseOrderItemInput `json:"items" validate:"required,min=1,dive"`
	OrderDate        *time.Time               `json:"order_date"`
	ExpectedDelivery *time.Time               `json:"expected_delivery"`
	Notes            string                   `json:"notes" validate:"max=4000"`
	Actor            string                   `json:"actor" validate:"required"`
}

// CreatedPurchaseOrder identifies a newly created purchase order
type CreatedPurchaseOrder struct {
	ID          int64           `json:"id"`
	PONumber    string          `json:"po_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// FinanceStatusResult is the outcome of a finance decision
type FinanceStatusResult struct {
	Status          string          `json:"status"`
	AvailableBudget decimal.Decimal `json:"available_budget"`
}

// PurchaseOrderService drives the purchase order workflow
type PurchaseOrderService interface {
	Create(ctx context.Context, input CreatePurchaseOrderInput) (*CreatedPurchaseOrder, error)
	Get(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error)
	SetFinanceStatus(ctx context.Context, id int64, action, notes, actor string) (*FinanceStatusResult, error)
	RecordDelivery(ctx context.Context, id int64, deliveryDate time.Time, status, notes, actor string) error
}

type purchaseOrderServiceImpl struct {
	poRepo      port.PurchaseOrderRepository
	expenseRepo port.ExpenseRepository
	budget      BudgetService
	txManager   port.TransactionManager
	gate        workflow.CommitmentGate
	dispatcher  dispatcher.Dispatcher
	validate    *validator.Validate
	clock       Clock
	logger      Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(
	poRepo port.PurchaseOrderRepository,
	expenseRepo port.ExpenseRepository,
	budget BudgetService,
	txManager port.TransactionManager,
	gate workflow.CommitmentGate,
	d dispatcher.Dispatcher,
	logger Logger,
) PurchaseOrderService {
	return &purchaseOrderServiceImpl{
		poRepo:      poRepo,
		expenseRepo: expenseRepo,
		budget:      budget,
		txManager:   txManager,
		gate:        gate,
		dispatcher:  d,
		validate:    NewValidator(),
		clock:       time.Now,
		logger:      logger,
	}
}

// Create validates the input, prices the items and inserts order and items atomically
func (s *purchaseOrderServiceImpl) Create(ctx context.Context, input CreatePurchaseOrderInput) (*CreatedPurchaseOrder, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	now := s.clock()
	orderDate := now
	if input.OrderDate != nil {
		orderDate = *input.OrderDate
	}

	items := make([]entity.PurchaseOrderItem, 0, len(input.Items))
	total := decimal.Zero
	for i, in := range input.Items {
		if !in.Quantity.IsPositive() {
			return nil, apperr.Validation(fmt.Sprintf("items[%d].quantity", i), "must be positive, got %s", in.Quantity)
		}
		if !in.UnitPrice.IsPositive() {
			return nil, apperr.Validation(fmt.Sprintf("items[%d].unit_price", i), "must be positive, got %s", in.UnitPrice)
		}
		line := in.Quantity.Mul(in.UnitPrice)
		total = total.Add(line)
		items = append(items, entity.PurchaseOrderItem{
			MaterialID: in.MaterialID,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			TotalPrice: line,
		})
	}

	po := &entity.PurchaseOrder{
		PONumber:         generatePONumber(orderDate),
		SupplierID:       input.SupplierID,
		CreatedBy:        input.Actor,
		TotalAmount:      total,
		Status:           entity.POStatusPending,
		Notes:            strings.TrimSpace(input.Notes),
		OrderDate:        orderDate,
		ExpectedDelivery: input.ExpectedDelivery,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}
		for i := range items {
			items[i].PurchaseOrderID = po.ID
			if err := s.poRepo.CreateItem(txCtx, &items[i]); err != nil {
				return fmt.Errorf("create purchase order item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create purchase order", "error", err, "po_number", po.PONumber)
		return nil, apperr.Storage("create purchase order", err)
	}
	po.Items = items

	s.logger.Info("Purchase order created",
		"id", po.ID,
		"po_number", po.PONumber,
		"total_amount", po.TotalAmount.String(),
		"item_count", len(items),
	)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypePurchaseOrderCreated, entity.EntityPurchaseOrder, po.ID, input.Actor, map[string]interface{}{
		event.KeyAction:  entity.ActionCreatePurchaseOrder,
		event.KeyMessage: fmt.Sprintf("Purchase order %s for %s awaits finance review", po.PONumber, po.TotalAmount.StringFixed(2)),
		event.KeyAmount:  po.TotalAmount.String(),
		event.KeyStatus:  po.Status,
	}))

	return &CreatedPurchaseOrder{ID: po.ID, PONumber: po.PONumber, TotalAmount: po.TotalAmount}, nil
}

// Get returns a purchase order with its items
func (s *purchaseOrderServiceImpl) Get(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.poRepo.GetItems(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load purchase order items", err)
	}
	po.Items = items
	return po, nil
}

// List returns purchase orders newest first
func (s *purchaseOrderServiceImpl) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	orders, err := s.poRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, apperr.Storage("list purchase orders", err)
	}
	return orders, nil
}

// SetFinanceStatus applies APPROVE, REJECT or DRAFT. Approval requires the
// order's total to fit in the budget left by everything else.
func (s *purchaseOrderServiceImpl) SetFinanceStatus(ctx context.Context, id int64, action, notes, actor string) (*FinanceStatusResult, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	trigger, ok := workflow.FinanceTrigger(action)
	if !ok {
		return nil, apperr.Validation("action", "must be one of APPROVE, REJECT, DRAFT; got %q", action)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, apperr.Validation("actor", "is required")
	}

	var (
		result   FinanceStatusResult
		previous string
	)
	err := s.gate.Run(ctx, func(txCtx context.Context) error {
		po, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		previous = po.Status

		var (
			available decimal.Decimal
			guardErr  error
		)
		budgetGuard := func(context.Context) bool {
			available, guardErr = s.budget.ComputeAvailable(txCtx, &po.ID)
			return guardErr == nil && po.TotalAmount.LessThanOrEqual(available)
		}

		machine, err := workflow.BuildPurchaseOrderMachine(po.Status, budgetGuard)
		if err != nil {
			return transitionError(entity.EntityPurchaseOrder, id, po.Status, trigger, err)
		}
		if err := machine.Fire(txCtx, trigger); err != nil {
			if errors.Is(err, domainwf.ErrGuardFailed) {
				if guardErr != nil {
					return guardErr
				}
				return apperr.InsufficientBudget(available, po.TotalAmount)
			}
			return transitionError(entity.EntityPurchaseOrder, id, po.Status, trigger, err)
		}

		newStatus := machine.State().String()
		note := appendNote(po.Notes, auditNote(s.clock(), action, actor, notes))
		updated, err := s.poRepo.CompareAndSetStatus(txCtx, id, po.Status, newStatus, note)
		if err != nil {
			return apperr.Storage("update purchase order status", err)
		}
		if !updated {
			return apperr.Conflict(apperr.CodeInvalidState, "purchase order %d changed concurrently", id)
		}

		after, err := s.budget.ComputeAvailable(txCtx, nil)
		if err != nil {
			return err
		}
		result = FinanceStatusResult{Status: newStatus, AvailableBudget: after}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to set purchase order finance status", "error", err, "id", id, "action", action)
		return nil, err
	}

	s.logger.Info("Purchase order finance status changed",
		"id", id,
		"from", previous,
		"to", result.Status,
		"actor", actor,
		"available_budget", result.AvailableBudget.String(),
	)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypePurchaseOrderFinanceStatus, entity.EntityPurchaseOrder, id, actor, map[string]interface{}{
		event.KeyAction:    entity.ActionSetPurchaseOrderFinance,
		event.KeyMessage:   fmt.Sprintf("Purchase order %d was set to %s by finance", id, result.Status),
		event.KeyPrevious:  previous,
		event.KeyStatus:    result.Status,
		event.KeyNotes:     notes,
		event.KeyAvailable: result.AvailableBudget.String(),
	}))

	return &result, nil
}

// RecordDelivery closes an APPROVED order as DELIVERED or CANCELLED. Delivery
// books the order total as a PAID expense in the same transaction.
func (s *purchaseOrderServiceImpl) RecordDelivery(ctx context.Context, id int64, deliveryDate time.Time, status, notes, actor string) error {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		status = entity.POStatusDelivered
	}
	trigger, ok := workflow.DeliveryTrigger(status)
	if !ok {
		return apperr.Validation("status", "must be DELIVERED or CANCELLED; got %q", status)
	}
	if strings.TrimSpace(actor) == "" {
		return apperr.Validation("actor", "is required")
	}
	if deliveryDate.IsZero() {
		deliveryDate = s.clock()
	}

	var po *entity.PurchaseOrder
	err := s.gate.Run(ctx, func(txCtx context.Context) error {
		var err error
		po, err = s.load(txCtx, id)
		if err != nil {
			return err
		}

		machine, err := workflow.BuildPurchaseOrderMachine(po.Status, nil)
		if err != nil {
			return transitionError(entity.EntityPurchaseOrder, id, po.Status, trigger, err)
		}
		if err := machine.Fire(txCtx, trigger); err != nil {
			return transitionError(entity.EntityPurchaseOrder, id, po.Status, trigger, err)
		}

		note := appendNote(po.Notes, auditNote(s.clock(), status, actor, notes))
		updated, err := s.poRepo.MarkDelivery(txCtx, id, status, deliveryDate, note)
		if err != nil {
			return apperr.Storage("record purchase order delivery", err)
		}
		if !updated {
			return apperr.Conflict(apperr.CodeInvalidState, "purchase order %d is no longer APPROVED", id)
		}

		if status != entity.POStatusDelivered {
			return nil
		}
		poID := po.ID
		expense := &entity.Expense{
			PurchaseOrderID: &poID,
			Description:     fmt.Sprintf("Delivery of purchase order %s", po.PONumber),
			Amount:          po.TotalAmount,
			PaymentStatus:   entity.PaymentStatusPaid,
			CreatedBy:       po.CreatedBy,
			ApprovedBy:      actor,
			PaidBy:          actor,
		}
		if err := s.expenseRepo.Create(txCtx, expense); err != nil {
			return apperr.Storage("create delivery expense", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record purchase order delivery", "error", err, "id", id, "status", status)
		return err
	}

	s.logger.Info("Purchase order delivery recorded",
		"id", id,
		"status", status,
		"actor", actor,
	)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypePurchaseOrderDelivered, entity.EntityPurchaseOrder, id, actor, map[string]interface{}{
		event.KeyAction:   entity.ActionRecordPurchaseOrderDeliver,
		event.KeyMessage:  fmt.Sprintf("Purchase order %s was marked %s", po.PONumber, status),
		event.KeyPrevious: entity.POStatusApproved,
		event.KeyStatus:   status,
		event.KeyAmount:   po.TotalAmount.String(),
		event.KeyNotes:    notes,
	}))

	return nil
}

func (s *purchaseOrderServiceImpl) load(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load purchase order", err)
	}
	if po == nil {
		return nil, apperr.NotFound(entity.EntityPurchaseOrder, id)
	}
	return po, nil
}

// generatePONumber returns PO-YYYYMMDD-XXXXXXXX with a random hex suffix
func generatePONumber(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PO-%s-%s", date.Format("20060102"), suffix)
}
