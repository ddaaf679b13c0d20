package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommitmentFor(t *testing.T) {
	total := decimal.NewFromInt(50000)

	tests := []struct {
		status string
		want   decimal.Decimal
	}{
		{POStatusPending, decimal.Zero},
		{POStatusDraft, decimal.NewFromInt(25000)},
		{POStatusApproved, total},
		{POStatusDelivered, total},
		{POStatusRejected, decimal.Zero},
		{POStatusCancelled, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := CommitmentFor(tt.status, total)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestCommitmentFor_OddTotalKeepsCents(t *testing.T) {
	got := CommitmentFor(POStatusDraft, decimal.RequireFromString("100.01"))
	assert.Equal(t, "50.005", got.String())
}

func TestPurchaseOrder_IsFinalized(t *testing.T) {
	assert.True(t, (&PurchaseOrder{Status: POStatusDelivered}).IsFinalized())
	assert.True(t, (&PurchaseOrder{Status: POStatusCancelled}).IsFinalized())
	assert.False(t, (&PurchaseOrder{Status: POStatusApproved}).IsFinalized())
}

func TestExpense_CountsAgainstBudget(t *testing.T) {
	for status, want := range map[string]bool{
		PaymentStatusPending:  false,
		PaymentStatusApproved: true,
		PaymentStatusRejected: false,
		PaymentStatusPaid:     true,
	} {
		assert.Equal(t, want, (&Expense{PaymentStatus: status}).CountsAgainstBudget(), status)
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("UNKNOWN").Rank())
}
