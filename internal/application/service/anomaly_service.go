package service

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sort"
	"time"

	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// AnomalyConfig holds the thresholds of the three auditor heuristics
type AnomalyConfig struct {
	FailedLoginWindow    time.Duration
	FailedLoginThreshold int

	ExpenseWindow          time.Duration
	ExpenseAmountThreshold decimal.Decimal
	ExpenseCountThreshold  int

	AfterHoursWindow    time.Duration
	AfterHoursThreshold int
	// Logins with a local hour before WorkdayStartHour or after WorkdayEndHour are after hours
	WorkdayStartHour int
	WorkdayEndHour   int
	Location         *time.Location
}

// DefaultAnomalyConfig returns the standard auditor thresholds
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		FailedLoginWindow:      24 * time.Hour,
		FailedLoginThreshold:   5,
		ExpenseWindow:          7 * 24 * time.Hour,
		ExpenseAmountThreshold: decimal.NewFromInt(100000),
		ExpenseCountThreshold:  50,
		AfterHoursWindow:       7 * 24 * time.Hour,
		AfterHoursThreshold:    3,
		WorkdayStartHour:       6,
		WorkdayEndHour:         22,
		Location:               time.Local,
	}
}

// Alerts is the ranked output of one detection run
type Alerts []entity.Alert

// Each yields the alerts in rank order
func (a Alerts) Each() iter.Seq[entity.Alert] {
	return func(yield func(entity.Alert) bool) {
		for _, alert := range a {
			if !yield(alert) {
				return
			}
		}
	}
}

// AnomalyService is the virtual auditor. It reads the store and never writes.
type AnomalyService interface {
	Detect(ctx context.Context, asOf time.Time) (Alerts, error)
	// Narrate summarizes alerts in prose; it returns an empty string when narration is disabled
	Narrate(ctx context.Context, alerts Alerts) (string, error)
	ExportReport(ctx context.Context, asOf time.Time, w io.Writer) error
}

type anomalyServiceImpl struct {
	activityRepo port.ActivityLogRepository
	expenseRepo  port.ExpenseRepository
	budget       BudgetService
	narrator     port.AlertNarrator
	reporter     port.ReportWriter
	cfg          AnomalyConfig
	logger       Logger
}

// NewAnomalyService creates a new AnomalyService. narrator and reporter may be nil.
func NewAnomalyService(
	activityRepo port.ActivityLogRepository,
	expenseRepo port.ExpenseRepository,
	budget BudgetService,
	narrator port.AlertNarrator,
	reporter port.ReportWriter,
	cfg AnomalyConfig,
	logger Logger,
) AnomalyService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &anomalyServiceImpl{
		activityRepo: activityRepo,
		expenseRepo:  expenseRepo,
		budget:       budget,
		narrator:     narrator,
		reporter:     reporter,
		cfg:          cfg,
		logger:       logger,
	}
}

// Detect runs every heuristic over the windows ending at asOf and ranks the result
func (s *anomalyServiceImpl) Detect(ctx context.Context, asOf time.Time) (Alerts, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var alerts Alerts
	for _, check := range []func(context.Context, time.Time) ([]entity.Alert, error){
		s.failedLoginBursts,
		s.unusualExpensePatterns,
		s.afterHoursAccess,
	} {
		found, err := check(ctx, asOf)
		if err != nil {
			s.logger.Error("Anomaly check failed", "error", err)
			return nil, apperr.Storage("scan activity", err)
		}
		alerts = append(alerts, found...)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
	})

	s.logger.Info("Anomaly scan completed", "as_of", asOf, "alerts", len(alerts))
	return alerts, nil
}

// userGroup accumulates rows of one user in first-seen order
type userGroup struct {
	userID string
	count  int
	last   time.Time
}

func groupByUser(logs []*entity.ActivityLog, keep func(*entity.ActivityLog) bool) []*userGroup {
	index := make(map[string]*userGroup)
	var groups []*userGroup
	for _, l := range logs {
		if keep != nil && !keep(l) {
			continue
		}
		g, ok := index[l.UserID]
		if !ok {
			g = &userGroup{userID: l.UserID}
			index[l.UserID] = g
			groups = append(groups, g)
		}
		g.count++
		if l.CreatedAt.After(g.last) {
			g.last = l.CreatedAt
		}
	}
	return groups
}

func (s *anomalyServiceImpl) failedLoginBursts(ctx context.Context, asOf time.Time) ([]entity.Alert, error) {
	logs, err := s.activityRepo.ListByActionBetween(ctx, entity.ActionLoginFailed, asOf.Add(-s.cfg.FailedLoginWindow), asOf)
	if err != nil {
		return nil, fmt.Errorf("list failed logins: %w", err)
	}

	var alerts []entity.Alert
	for _, g := range groupByUser(logs, nil) {
		if g.count < s.cfg.FailedLoginThreshold {
			continue
		}
		alerts = append(alerts, entity.Alert{
			Severity:    entity.SeverityHigh,
			Category:    entity.CategorySecurity,
			Title:       "Repeated failed logins",
			Description: fmt.Sprintf("User %s failed to log in %d times in the last %s", g.userID, g.count, s.cfg.FailedLoginWindow),
			Timestamp:   g.last,
			UserID:      g.userID,
		})
	}
	return alerts, nil
}

func (s *anomalyServiceImpl) unusualExpensePatterns(ctx context.Context, asOf time.Time) ([]entity.Alert, error) {
	expenses, err := s.expenseRepo.ListCreatedBetween(ctx, asOf.Add(-s.cfg.ExpenseWindow), asOf)
	if err != nil {
		return nil, fmt.Errorf("list recent expenses: %w", err)
	}

	type projectGroup struct {
		projectID int64
		count     int
		total     decimal.Decimal
		last      time.Time
	}
	index := make(map[int64]*projectGroup)
	var groups []*projectGroup
	for _, e := range expenses {
		// Delivery expenses carry no project
		if e.ProjectID == nil {
			continue
		}
		g, ok := index[*e.ProjectID]
		if !ok {
			g = &projectGroup{projectID: *e.ProjectID, total: decimal.Zero}
			index[*e.ProjectID] = g
			groups = append(groups, g)
		}
		g.count++
		g.total = g.total.Add(e.Amount)
		if e.CreatedAt.After(g.last) {
			g.last = e.CreatedAt
		}
	}

	var alerts []entity.Alert
	for _, g := range groups {
		if !g.total.GreaterThan(s.cfg.ExpenseAmountThreshold) && g.count <= s.cfg.ExpenseCountThreshold {
			continue
		}
		projectID := g.projectID
		alerts = append(alerts, entity.Alert{
			Severity:    entity.SeverityMedium,
			Category:    entity.CategoryFinancial,
			Title:       "Unusual expense pattern",
			Description: fmt.Sprintf("Project %d recorded %d expenses totalling %s in the last %s", g.projectID, g.count, g.total.StringFixed(2), s.cfg.ExpenseWindow),
			Timestamp:   g.last,
			ProjectID:   &projectID,
		})
	}
	return alerts, nil
}

func (s *anomalyServiceImpl) afterHoursAccess(ctx context.Context, asOf time.Time) ([]entity.Alert, error) {
	logs, err := s.activityRepo.ListByActionBetween(ctx, entity.ActionLoginSuccess, asOf.Add(-s.cfg.AfterHoursWindow), asOf)
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}

	afterHours := func(l *entity.ActivityLog) bool {
		hour := l.CreatedAt.In(s.cfg.Location).Hour()
		return hour < s.cfg.WorkdayStartHour || hour > s.cfg.WorkdayEndHour
	}

	var alerts []entity.Alert
	for _, g := range groupByUser(logs, afterHours) {
		if g.count < s.cfg.AfterHoursThreshold {
			continue
		}
		alerts = append(alerts, entity.Alert{
			Severity:    entity.SeverityLow,
			Category:    entity.CategoryAccess,
			Title:       "After-hours access",
			Description: fmt.Sprintf("User %s logged in %d times outside working hours in the last %s", g.userID, g.count, s.cfg.AfterHoursWindow),
			Timestamp:   g.last,
			UserID:      g.userID,
		})
	}
	return alerts, nil
}

// Narrate asks the configured narrator for an executive summary
func (s *anomalyServiceImpl) Narrate(ctx context.Context, alerts Alerts) (string, error) {
	if s.narrator == nil || len(alerts) == 0 {
		return "", nil
	}
	text, err := s.narrator.Narrate(ctx, alerts)
	if err != nil {
		s.logger.Error("Failed to narrate alerts", "error", err, "alerts", len(alerts))
		return "", fmt.Errorf("narrate alerts: %w", err)
	}
	return text, nil
}

// ExportReport writes the budget summary and the ranked alerts as a workbook
func (s *anomalyServiceImpl) ExportReport(ctx context.Context, asOf time.Time, w io.Writer) error {
	if s.reporter == nil {
		return fmt.Errorf("report export is not configured")
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	summary, err := s.budget.Summary(ctx)
	if err != nil {
		return err
	}
	alerts, err := s.Detect(ctx, asOf)
	if err != nil {
		return err
	}

	if err := s.reporter.WriteAuditReport(w, asOf, summary, alerts); err != nil {
		s.logger.Error("Failed to write audit report", "error", err)
		return fmt.Errorf("write audit report: %w", err)
	}
	return nil
}
