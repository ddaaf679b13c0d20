package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project holds a budget allocation that purchase orders and expenses draw from
type Project struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Budget    decimal.Decimal `json:"budget"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// BudgetSummary breaks the available budget down into its terms
type BudgetSummary struct {
	TotalBudget   decimal.Decimal `json:"total_budget"`
	RealizedSpend decimal.Decimal `json:"realized_spend"`
	Committed     decimal.Decimal `json:"committed"`
	Available     decimal.Decimal `json:"available"`
}
