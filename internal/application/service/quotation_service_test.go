package service

import (
	"context"
	"sync"
	"testing"

	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitQuotation(t *testing.T, env *testEnv) *entity.Quotation {
	t.Helper()
	q, err := env.quotation.Submit(context.Background(), SubmitQuotationInput{SupplierID: 9, TotalAmount: dec("1200"), Actor: "vendor-mgr"})
	require.NoError(t, err)
	return q
}

func TestQuotationService_ApproveOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	q := submitQuotation(t, env)
	assert.Equal(t, entity.QuotationStatusPending, q.Status)

	approved, err := env.quotation.Approve(ctx, q.ID, "pm-1")
	require.NoError(t, err)
	assert.Equal(t, entity.QuotationStatusAccepted, approved.Status)
	assert.Equal(t, "pm-1", approved.ApprovedBy)

	_, err = env.quotation.Approve(ctx, q.ID, "pm-2")
	conflict, ok := apperr.AsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, apperr.CodeAlreadyResolved, conflict.Code)
	assert.Contains(t, conflict.Message, "already ACCEPTED")

	_, err = env.quotation.Reject(ctx, q.ID, "too late", "pm-2")
	conflict, ok = apperr.AsConflict(err)
	require.True(t, ok)
	assert.Contains(t, conflict.Message, "already ACCEPTED")

	stored, err := env.quotation.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuotationStatusAccepted, stored.Status)
	assert.Equal(t, "pm-1", stored.ApprovedBy)

	notes, err := env.notifications.ListByEntity(ctx, entity.EntityQuotation, q.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "vendor-mgr", notes[0].TargetUser)
}

func TestQuotationService_Reject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	q := submitQuotation(t, env)

	_, err := env.quotation.Reject(ctx, q.ID, "  ", "pm-1")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	rejected, err := env.quotation.Reject(ctx, q.ID, "over market price", "pm-1")
	require.NoError(t, err)
	assert.Equal(t, entity.QuotationStatusRejected, rejected.Status)

	stored, err := env.quotation.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "over market price", stored.RejectionReason)

	_, err = env.quotation.Approve(ctx, q.ID, "pm-2")
	conflict, ok := apperr.AsConflict(err)
	require.True(t, ok)
	assert.Contains(t, conflict.Message, "already REJECTED")
}

func TestQuotationService_RejectWithoutReasonAfterResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	q := submitQuotation(t, env)

	_, err := env.quotation.Approve(ctx, q.ID, "pm-1")
	require.NoError(t, err)

	_, err = env.quotation.Reject(ctx, q.ID, "", "pm-2")
	conflict, ok := apperr.AsConflict(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, conflict.Message, "already ACCEPTED")

	_, err = env.quotation.Reject(ctx, q.ID+30, "", "pm-1")
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestQuotationService_ConcurrentResolutionsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	q := submitQuotation(t, env)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = env.quotation.Approve(ctx, q.ID, "pm-1")
			} else {
				_, err = env.quotation.Reject(ctx, q.ID, "no", "pm-2")
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.True(t, apperr.IsConflict(err), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestQuotationService_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.quotation.Approve(ctx, 31, "pm-1")
	assert.True(t, apperr.IsNotFound(err))

	_, err = env.quotation.Approve(ctx, 31, "")
	assert.True(t, apperr.IsValidation(err))

	_, err = env.quotation.Submit(ctx, SubmitQuotationInput{SupplierID: 1, TotalAmount: dec("-3"), Actor: "a"})
	assert.True(t, apperr.IsValidation(err))

	_, err = env.quotation.Submit(ctx, SubmitQuotationInput{SupplierID: 1, ProjectID: int64Ptr(5), TotalAmount: dec("3"), Actor: "a"})
	assert.True(t, apperr.IsNotFound(err))
}
