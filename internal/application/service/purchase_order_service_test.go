package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/application/workflow"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/repository"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPurchaseOrderService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.po.Create(ctx, CreatePurchaseOrderInput{
		SupplierID: 3,
		Items: []PurchaseOrderItemInput{
			{MaterialID: 10, Quantity: dec("4"), UnitPrice: dec("2.50")},
			{MaterialID: 11, Quantity: dec("1.5"), UnitPrice: dec("100")},
		},
		Notes: "  urgent  ",
		Actor: "buyer-1",
	})
	require.NoError(t, err)
	assert.True(t, created.TotalAmount.Equal(dec("160")))
	assert.Regexp(t, `^PO-\d{8}-[0-9A-F]{8}$`, created.PONumber)

	po, err := env.po.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusPending, po.Status)
	assert.Equal(t, "urgent", po.Notes)
	require.Len(t, po.Items, 2)
	assert.True(t, po.Items[0].TotalPrice.Equal(dec("10")))
	assert.True(t, po.Items[1].TotalPrice.Equal(dec("150")))

	assert.Equal(t, []event.Type{event.TypePurchaseOrderCreated}, env.dispatcher.Types())

	notes, err := env.notifications.ListByEntity(ctx, entity.EntityPurchaseOrder, created.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, entity.RoleProjectManager, notes[0].TargetRole)
	assert.Equal(t, entity.RoleFinanceOfficer, notes[1].TargetRole)

	trail, err := env.activity.ListByEntity(ctx, entity.EntityPurchaseOrder, created.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, entity.ActionCreatePurchaseOrder, trail[0].Action)
	assert.Equal(t, "buyer-1", trail[0].UserID)
}

func TestPurchaseOrderService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	one := decimal.NewFromInt(1)

	tests := []struct {
		name      string
		input     CreatePurchaseOrderInput
		wantField string
	}{
		{
			name:      "missing supplier",
			input:     CreatePurchaseOrderInput{Items: []PurchaseOrderItemInput{{MaterialID: 1, Quantity: one, UnitPrice: one}}, Actor: "a"},
			wantField: "supplier_id",
		},
		{
			name:      "no items",
			input:     CreatePurchaseOrderInput{SupplierID: 1, Actor: "a"},
			wantField: "items",
		},
		{
			name:      "missing actor",
			input:     CreatePurchaseOrderInput{SupplierID: 1, Items: []PurchaseOrderItemInput{{MaterialID: 1, Quantity: one, UnitPrice: one}}},
			wantField: "actor",
		},
		{
			name:      "zero quantity",
			input:     CreatePurchaseOrderInput{SupplierID: 1, Items: []PurchaseOrderItemInput{{MaterialID: 1, Quantity: decimal.Zero, UnitPrice: one}}, Actor: "a"},
			wantField: "items[0].quantity",
		},
		{
			name:      "negative price",
			input:     CreatePurchaseOrderInput{SupplierID: 1, Items: []PurchaseOrderItemInput{{MaterialID: 1, Quantity: one, UnitPrice: dec("-1")}}, Actor: "a"},
			wantField: "items[0].unit_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.po.Create(context.Background(), tt.input)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}

	orders, err := env.po.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPurchaseOrderService_CreateRollsBackOnItemFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	logger := zap.NewNop()
	txManager := sqlite.NewDB(sqlDB, logger)
	orders := repository.NewPurchaseOrderRepository(sqlDB, logger)
	d := newRecordingDispatcher()
	svc := NewPurchaseOrderService(orders, nil, nil, txManager, workflow.NewCommitmentGate(txManager), d, &mockLogger{})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO purchase_orders").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO purchase_order_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO purchase_order_items").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = svc.Create(context.Background(), CreatePurchaseOrderInput{
		SupplierID: 1,
		Items: []PurchaseOrderItemInput{
			{MaterialID: 1, Quantity: dec("1"), UnitPrice: dec("10")},
			{MaterialID: 2, Quantity: dec("1"), UnitPrice: dec("20")},
		},
		Actor: "buyer-1",
	})

	var serr *apperr.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "disk I/O error")
	assert.Empty(t, d.Types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseOrderService_BudgetScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "100000")

	poA := env.createPO(t, "60000")
	poB := env.createPO(t, "50000")

	res, err := env.po.SetFinanceStatus(ctx, poA, "approve", "within plan", "fin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusApproved, res.Status)
	assert.True(t, res.AvailableBudget.Equal(dec("40000")), "available = %s", res.AvailableBudget)

	_, err = env.po.SetFinanceStatus(ctx, poB, "APPROVE", "", "fin-1")
	conflict, ok := apperr.AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, apperr.CodeInsufficientBudget, conflict.Code)
	require.NotNil(t, conflict.Available)
	require.NotNil(t, conflict.Required)
	assert.True(t, conflict.Available.Equal(dec("40000")))
	assert.True(t, conflict.Required.Equal(dec("50000")))

	unchanged, err := env.po.Get(ctx, poB)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusPending, unchanged.Status)
	assert.Empty(t, unchanged.Notes)

	res, err = env.po.SetFinanceStatus(ctx, poB, "DRAFT", "revisit next quarter", "fin-1")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusDraft, res.Status)
	assert.True(t, res.AvailableBudget.Equal(dec("15000")), "available = %s", res.AvailableBudget)

	available, err := env.budget.ComputeAvailable(ctx, nil)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("15000")))

	draft, err := env.po.Get(ctx, poB)
	require.NoError(t, err)
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\] DRAFT by fin-1: revisit next quarter$`, draft.Notes)
}

func TestPurchaseOrderService_ApproveExcludesOwnCommitment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "100")

	id := env.createPO(t, "80")
	_, err := env.po.SetFinanceStatus(ctx, id, "DRAFT", "", "fin-1")
	require.NoError(t, err)

	// The DRAFT half of this order must not count against its own approval
	res, err := env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-1")
	require.NoError(t, err)
	assert.True(t, res.AvailableBudget.Equal(dec("20")))

	// Re-approving an approved order is still checked against everything else
	res, err = env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-2")
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusApproved, res.Status)

	po, err := env.po.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, strings.Split(po.Notes, "\n"), 3)
}

func TestPurchaseOrderService_SetFinanceStatusErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "1000")
	id := env.createPO(t, "100")

	_, err := env.po.SetFinanceStatus(ctx, id, "SHIP", "", "fin-1")
	assert.True(t, apperr.IsValidation(err))

	_, err = env.po.SetFinanceStatus(ctx, id, "APPROVE", "", " ")
	assert.True(t, apperr.IsValidation(err))

	_, err = env.po.SetFinanceStatus(ctx, 9999, "APPROVE", "", "fin-1")
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, entity.EntityPurchaseOrder, nf.Entity)

	_, err = env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-1")
	require.NoError(t, err)
	require.NoError(t, env.po.RecordDelivery(ctx, id, time.Time{}, "", "", "store-1"))

	for _, action := range []string{"APPROVE", "REJECT", "DRAFT"} {
		_, err = env.po.SetFinanceStatus(ctx, id, action, "", "fin-1")
		conflict, ok := apperr.AsConflict(err)
		require.True(t, ok, "%s: expected conflict, got %v", action, err)
		assert.Equal(t, apperr.CodeFinalized, conflict.Code)
		assert.Contains(t, conflict.Message, "DELIVERED")
	}
}

func TestPurchaseOrderService_RecordDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "1000")
	id := env.createPO(t, "300")

	err := env.po.RecordDelivery(ctx, id, time.Time{}, "DELIVERED", "", "store-1")
	conflict, ok := apperr.AsConflict(err)
	require.True(t, ok, "delivery of a PENDING order must conflict, got %v", err)
	assert.Equal(t, apperr.CodeInvalidState, conflict.Code)

	_, err = env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-1")
	require.NoError(t, err)

	err = env.po.RecordDelivery(ctx, id, time.Time{}, "RETURNED", "", "store-1")
	assert.True(t, apperr.IsValidation(err))

	deliveredAt := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, env.po.RecordDelivery(ctx, id, deliveredAt, "", "all pallets", "store-1"))

	po, err := env.po.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusDelivered, po.Status)
	require.NotNil(t, po.DeliveryDate)
	assert.True(t, po.DeliveryDate.Equal(deliveredAt))

	expense, err := env.expenses.GetByPurchaseOrderID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, expense)
	assert.Nil(t, expense.ProjectID)
	assert.Equal(t, entity.PaymentStatusPaid, expense.PaymentStatus)
	assert.True(t, expense.Amount.Equal(dec("300")))
	assert.Equal(t, "buyer-1", expense.CreatedBy)
	assert.Equal(t, "store-1", expense.ApprovedBy)
	assert.Equal(t, "store-1", expense.PaidBy)

	// Delivered orders still commit their total while the PAID expense is realized
	available, err := env.budget.ComputeAvailable(ctx, nil)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("400")))

	err = env.po.RecordDelivery(ctx, id, time.Time{}, "DELIVERED", "", "store-1")
	conflict, ok = apperr.AsConflict(err)
	require.True(t, ok, "second delivery must conflict, got %v", err)
	assert.Equal(t, apperr.CodeFinalized, conflict.Code)

	all, err := env.expenses.List(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	notes, err := env.notifications.ListByEntity(ctx, entity.EntityPurchaseOrder, id)
	require.NoError(t, err)
	var roles []string
	for _, n := range notes {
		roles = append(roles, n.TargetRole)
	}
	// created, approved, delivered
	assert.Equal(t, []string{
		entity.RoleProjectManager,
		entity.RoleFinanceOfficer,
		entity.RoleProcurement,
		entity.RoleProjectManager,
	}, roles)
}

func TestPurchaseOrderService_CancelCreatesNoExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "1000")
	id := env.createPO(t, "300")

	_, err := env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-1")
	require.NoError(t, err)
	require.NoError(t, env.po.RecordDelivery(ctx, id, time.Time{}, "cancelled", "supplier gone", "store-1"))

	po, err := env.po.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.POStatusCancelled, po.Status)

	expense, err := env.expenses.GetByPurchaseOrderID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, expense)

	available, err := env.budget.ComputeAvailable(ctx, nil)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("1000")))
}

func TestPurchaseOrderService_ConcurrentApprovalsCannotOvercommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addProject(t, "100000")

	const n = 6
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = env.createPO(t, "30000")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approved  int
		conflicts int
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			_, err := env.po.SetFinanceStatus(ctx, id, "APPROVE", "", "fin-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, approved)
	assert.Equal(t, n-3, conflicts)

	available, err := env.budget.ComputeAvailable(ctx, nil)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("10000")), "available = %s", available)
}

func TestPurchaseOrderService_GuardStorageFailure(t *testing.T) {
	po := &entity.PurchaseOrder{ID: 5, Status: entity.POStatusPending, TotalAmount: dec("10")}
	orders := &mockPORepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.PurchaseOrder, error) { return po, nil },
	}
	budget := NewBudgetService(&mockBudgetRepo{
		snapshotFunc: func(ctx context.Context, excludePOID *int64) (*port.BudgetSnapshot, error) {
			return nil, errors.New("no such table: projects")
		},
	}, &mockLogger{})
	svc := NewPurchaseOrderService(orders, nil, budget, &mockTxManager{}, workflow.NewCommitmentGate(&mockTxManager{}), nil, &mockLogger{})

	_, err := svc.SetFinanceStatus(context.Background(), 5, "APPROVE", "", "fin-1")
	var serr *apperr.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "read budget aggregate", serr.Op)
	assert.False(t, orders.statusChanged)
}
