package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_HandleEventRouting(t *testing.T) {
	tests := []struct {
		name      string
		evt       *event.Event
		wantRoles []string
		wantUser  string
		wantErr   bool
	}{
		{
			name:      "created goes to managers and finance",
			evt:       event.NewEvent(event.TypePurchaseOrderCreated, entity.EntityPurchaseOrder, 1, "buyer", map[string]interface{}{event.KeyMessage: "new"}),
			wantRoles: []string{entity.RoleProjectManager, entity.RoleFinanceOfficer},
		},
		{
			name:      "finance decision goes to procurement",
			evt:       event.NewEvent(event.TypePurchaseOrderFinanceStatus, entity.EntityPurchaseOrder, 1, "fin", map[string]interface{}{event.KeyMessage: "approved"}),
			wantRoles: []string{entity.RoleProcurement},
		},
		{
			name:      "delivery goes to managers",
			evt:       event.NewEvent(event.TypePurchaseOrderDelivered, entity.EntityPurchaseOrder, 1, "store", map[string]interface{}{event.KeyMessage: "delivered", event.KeyStatus: entity.POStatusDelivered}),
			wantRoles: []string{entity.RoleProjectManager},
		},
		{
			name: "cancellation is not announced",
			evt:  event.NewEvent(event.TypePurchaseOrderDelivered, entity.EntityPurchaseOrder, 1, "store", map[string]interface{}{event.KeyMessage: "cancelled", event.KeyStatus: entity.POStatusCancelled}),
		},
		{
			name:     "expense decision goes to submitter",
			evt:      event.NewEvent(event.TypeExpenseStatusChanged, entity.EntityExpense, 2, "fin", map[string]interface{}{event.KeyMessage: "paid", event.KeyOwner: "pm-1"}),
			wantUser: "pm-1",
		},
		{
			name:     "quotation decision goes to submitter",
			evt:      event.NewEvent(event.TypeQuotationResolved, entity.EntityQuotation, 3, "pm", map[string]interface{}{event.KeyMessage: "accepted", event.KeyOwner: "vendor-mgr"}),
			wantUser: "vendor-mgr",
		},
		{
			name: "submissions are not announced",
			evt:  event.NewEvent(event.TypeExpenseSubmitted, entity.EntityExpense, 2, "pm", nil),
		},
		{
			name:    "decision without owner",
			evt:     event.NewEvent(event.TypeQuotationResolved, entity.EntityQuotation, 3, "pm", map[string]interface{}{event.KeyMessage: "x"}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockNotificationRepo{}
			svc := NewNotificationService(repo, nil, &mockLogger{})

			err := svc.HandleEvent(context.Background(), tt.evt)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, repo.created)
				return
			}
			require.NoError(t, err)

			var roles []string
			for _, n := range repo.created {
				assert.Equal(t, entity.NotificationStatusPending, n.Status)
				assert.Equal(t, tt.evt.EntityID, n.EntityID)
				if n.TargetRole != "" {
					roles = append(roles, n.TargetRole)
				}
				if tt.wantUser != "" {
					assert.Equal(t, tt.wantUser, n.TargetUser)
				}
			}
			assert.Equal(t, tt.wantRoles, roles)
			if tt.wantUser != "" {
				assert.Len(t, repo.created, 1)
			}
			if tt.wantRoles == nil && tt.wantUser == "" {
				assert.Empty(t, repo.created)
			}
		})
	}
}

func TestNotificationService_DeliverPending(t *testing.T) {
	repo := &mockNotificationRepo{pending: []*entity.Notification{
		{ID: 1, TargetRole: entity.RoleProcurement, Message: "a"},
		{ID: 2, TargetUser: "pm-1", Message: "b"},
		{ID: 3, TargetRole: entity.RoleProjectManager, Message: "c"},
	}}
	sender := &mockSender{sendFunc: func(ctx context.Context, to port.Recipient, text string) error {
		if text == "b" {
			return errors.New("user not found")
		}
		return nil
	}}
	svc := NewNotificationService(repo, sender, &mockLogger{})

	sent, err := svc.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, repo.sent)
	assert.Equal(t, map[int64]string{2: "user not found"}, repo.failed)
	assert.Equal(t, []port.Recipient{{Role: entity.RoleProcurement}, {Role: entity.RoleProjectManager}}, sender.sent)
}

func TestNotificationService_DeliverPendingHonorsCancel(t *testing.T) {
	repo := &mockNotificationRepo{pending: []*entity.Notification{{ID: 1, TargetRole: "R", Message: "a"}}}
	svc := NewNotificationService(repo, &mockSender{}, &mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, err := svc.DeliverPending(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
	assert.Empty(t, repo.sent)
}

func TestNotificationService_DisabledSenderKeepsQueue(t *testing.T) {
	repo := &mockNotificationRepo{pending: []*entity.Notification{{ID: 1, TargetRole: "R", Message: "a"}}}
	svc := NewNotificationService(repo, nil, &mockLogger{})

	sent, err := svc.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, repo.sent)
	assert.Empty(t, repo.failed)
}

func TestNotificationService_OutboxAgainstStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createPO(t, "10")

	sender := &mockSender{}
	svc := NewNotificationService(env.notifications, sender, &mockLogger{})

	sent, err := svc.DeliverPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = svc.DeliverPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	pending, err := env.notifications.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []port.Recipient{{Role: entity.RoleProjectManager}, {Role: entity.RoleFinanceOfficer}}, sender.sent)
}
