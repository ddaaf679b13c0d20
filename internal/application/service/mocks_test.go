package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockBudgetRepo struct {
	snapshotFunc func(ctx context.Context, excludePOID *int64) (*port.BudgetSnapshot, error)
}

func (m *mockBudgetRepo) Snapshot(ctx context.Context, excludePOID *int64) (*port.BudgetSnapshot, error) {
	if m.snapshotFunc != nil {
		return m.snapshotFunc(ctx, excludePOID)
	}
	return &port.BudgetSnapshot{}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// recordingDispatcher runs async dispatches inline and keeps the events
type recordingDispatcher struct {
	dispatcher.Dispatcher
	mu     sync.Mutex
	events []*event.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: dispatcher.NewDispatcher()}
}

func (r *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	_ = r.Dispatcher.Dispatch(ctx, evt)
}

func (r *recordingDispatcher) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type mockPORepo struct {
	getByIDFunc   func(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	statusChanged bool
}

func (m *mockPORepo) Create(ctx context.Context, po *entity.PurchaseOrder) error { return nil }

func (m *mockPORepo) CreateItem(ctx context.Context, item *entity.PurchaseOrderItem) error {
	return nil
}

func (m *mockPORepo) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPORepo) GetItems(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	return nil, nil
}

func (m *mockPORepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	return nil, nil
}

func (m *mockPORepo) CompareAndSetStatus(ctx context.Context, id int64, from, to, notes string) (bool, error) {
	m.statusChanged = true
	return true, nil
}

func (m *mockPORepo) MarkDelivery(ctx context.Context, id int64, status string, deliveryDate time.Time, notes string) (bool, error) {
	m.statusChanged = true
	return true, nil
}

type mockActivityRepo struct {
	byAction map[string][]*entity.ActivityLog
	created  []*entity.ActivityLog
}

func (m *mockActivityRepo) Create(ctx context.Context, log *entity.ActivityLog) error {
	m.created = append(m.created, log)
	return nil
}

// ListByActionBetween filters the canned rows of action to since < created_at <= until
func (m *mockActivityRepo) ListByActionBetween(ctx context.Context, action string, since, until time.Time) ([]*entity.ActivityLog, error) {
	var out []*entity.ActivityLog
	for _, l := range m.byAction[action] {
		if l.CreatedAt.After(since) && !l.CreatedAt.After(until) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockActivityRepo) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.ActivityLog, error) {
	return m.created, nil
}

type mockExpenseRepo struct {
	recent []*entity.Expense
	err    error
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error { return nil }

func (m *mockExpenseRepo) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) GetByPurchaseOrderID(ctx context.Context, poID int64) (*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) UpdatePaymentStatus(ctx context.Context, id int64, status, approvedBy, paidBy string) error {
	return nil
}

func (m *mockExpenseRepo) List(ctx context.Context, projectID *int64, limit, offset int) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) ListCreatedBetween(ctx context.Context, since, until time.Time) ([]*entity.Expense, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.Expense
	for _, e := range m.recent {
		if e.CreatedAt.After(since) && !e.CreatedAt.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockNotificationRepo struct {
	pending []*entity.Notification
	created []*entity.Notification
	sent    []int64
	failed  map[int64]string
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	n.ID = int64(len(m.created) + 1)
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	if limit < len(m.pending) {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *mockNotificationRepo) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*entity.Notification, error) {
	return m.created, nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = errMsg
	return nil
}

type mockSender struct {
	sendFunc func(ctx context.Context, to port.Recipient, text string) error
	sent     []port.Recipient
}

func (m *mockSender) Send(ctx context.Context, to port.Recipient, text string) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, to, text); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, to)
	return nil
}

type mockNarrator struct {
	narrateFunc func(ctx context.Context, alerts []entity.Alert) (string, error)
}

func (m *mockNarrator) Narrate(ctx context.Context, alerts []entity.Alert) (string, error) {
	return m.narrateFunc(ctx, alerts)
}

type mockReportWriter struct {
	summary *entity.BudgetSummary
	alerts  []entity.Alert
}

func (m *mockReportWriter) WriteAuditReport(w io.Writer, asOf time.Time, summary *entity.BudgetSummary, alerts []entity.Alert) error {
	m.summary = summary
	m.alerts = alerts
	_, err := io.WriteString(w, "xlsx")
	return err
}
