package service

import (
	"context"
	"testing"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/application/workflow"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/repository"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/budget-gate/internal/testutil"
	"github.com/garyjia/budget-gate/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv wires the services over a migrated in-memory database
type testEnv struct {
	projects      port.ProjectRepository
	expenses      port.ExpenseRepository
	orders        port.PurchaseOrderRepository
	quotations    port.QuotationRepository
	activity      port.ActivityLogRepository
	notifications port.NotificationRepository

	dispatcher *recordingDispatcher
	budget     BudgetService
	po         PurchaseOrderService
	expense    ExpenseService
	quotation  QuotationService
	audit      AuditService
	notify     NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t).DB
	logger := zap.NewNop()
	kv := utils.NewKVLogger(logger)

	env := &testEnv{
		projects:      repository.NewProjectRepository(db, logger),
		expenses:      repository.NewExpenseRepository(db, logger),
		orders:        repository.NewPurchaseOrderRepository(db, logger),
		quotations:    repository.NewQuotationRepository(db, logger),
		activity:      repository.NewActivityLogRepository(db, logger),
		notifications: repository.NewNotificationRepository(db, logger),
		dispatcher:    newRecordingDispatcher(),
	}

	txManager := sqlite.NewDB(db, logger)
	gate := workflow.NewCommitmentGate(txManager)

	env.budget = NewBudgetService(repository.NewBudgetRepository(db, logger), kv)
	env.po = NewPurchaseOrderService(env.orders, env.expenses, env.budget, txManager, gate, env.dispatcher, kv)
	env.expense = NewExpenseService(env.expenses, env.projects, gate, env.dispatcher, kv)
	env.quotation = NewQuotationService(env.quotations, env.projects, env.dispatcher, kv)
	env.audit = NewAuditService(env.activity, kv)
	env.notify = NewNotificationService(env.notifications, nil, kv)
	RegisterSideEffects(env.dispatcher, env.audit, env.notify)

	return env
}

func (e *testEnv) addProject(t *testing.T, budget string) *entity.Project {
	t.Helper()
	p := &entity.Project{Name: "Project " + budget, Budget: dec(budget)}
	require.NoError(t, e.projects.Create(context.Background(), p))
	return p
}

// createPO creates a single-line purchase order worth total
func (e *testEnv) createPO(t *testing.T, total string) int64 {
	t.Helper()
	created, err := e.po.Create(context.Background(), CreatePurchaseOrderInput{
		SupplierID: 7,
		Items: []PurchaseOrderItemInput{
			{MaterialID: 1, Quantity: decimal.NewFromInt(1), UnitPrice: dec(total)},
		},
		Actor: "buyer-1",
	})
	require.NoError(t, err)
	return created.ID
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}
