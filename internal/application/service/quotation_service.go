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
	domainwf "github.com/garyjia/budget-gate/internal/domain/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SubmitQuotationInput carries the data of a new supplier quotation
type SubmitQuotationInput struct {
	SupplierID  int64           `json:"supplier_id" validate:"gt=0"`
	ProjectID   *int64          `json:"project_id" validate:"omitempty,gt=0"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Actor       string          `json:"actor" validate:"required"`
}

// QuotationService resolves supplier quotations
type QuotationService interface {
	Submit(ctx context.Context, input SubmitQuotationInput) (*entity.Quotation, error)
	Get(ctx context.Context, id int64) (*entity.Quotation, error)
	Approve(ctx context.Context, id int64, actor string) (*entity.Quotation, error)
	Reject(ctx context.Context, id int64, reason, actor string) (*entity.Quotation, error)
}

type quotationServiceImpl struct {
	quotationRepo port.QuotationRepository
	projectRepo   port.ProjectRepository
	dispatcher    dispatcher.Dispatcher
	validate      *validator.Validate
	logger        Logger
}

// NewQuotationService creates a new QuotationService
func NewQuotationService(
	quotationRepo port.QuotationRepository,
	projectRepo port.ProjectRepository,
	d dispatcher.Dispatcher,
	logger Logger,
) QuotationService {
	return &quotationServiceImpl{
		quotationRepo: quotationRepo,
		projectRepo:   projectRepo,
		dispatcher:    d,
		validate:      NewValidator(),
		logger:        logger,
	}
}

// Submit records a new PENDING quotation
func (s *quotationServiceImpl) Submit(ctx context.Context, input SubmitQuotationInput) (*entity.Quotation, error) {
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}
	if !input.TotalAmount.IsPositive() {
		return nil, apperr.Validation("total_amount", "must be positive, got %s", input.TotalAmount)
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

	q := &entity.Quotation{
		SupplierID:  input.SupplierID,
		ProjectID:   input.ProjectID,
		TotalAmount: input.TotalAmount,
		Status:      entity.QuotationStatusPending,
		CreatedBy:   input.Actor,
	}
	if err := s.quotationRepo.Create(ctx, q); err != nil {
		s.logger.Error("Failed to submit quotation", "error", err, "supplier_id", input.SupplierID)
		return nil, apperr.Storage("create quotation", err)
	}

	s.logger.Info("Quotation submitted", "id", q.ID, "supplier_id", q.SupplierID)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypeQuotationSubmitted, entity.EntityQuotation, q.ID, input.Actor, map[string]interface{}{
		event.KeyAction: entity.ActionSubmitQuotation,
		event.KeyAmount: q.TotalAmount.String(),
		event.KeyStatus: q.Status,
	}))

	return q, nil
}

// Get returns a quotation by ID
func (s *quotationServiceImpl) Get(ctx context.Context, id int64) (*entity.Quotation, error) {
	return s.load(ctx, id)
}

// Approve accepts a PENDING quotation
func (s *quotationServiceImpl) Approve(ctx context.Context, id int64, actor string) (*entity.Quotation, error) {
	return s.resolve(ctx, id, domainwf.TriggerAccept, "", actor)
}

// Reject rejects a PENDING quotation with a reason
func (s *quotationServiceImpl) Reject(ctx context.Context, id int64, reason, actor string) (*entity.Quotation, error) {
	return s.resolve(ctx, id, domainwf.TriggerReject, strings.TrimSpace(reason), actor)
}

func (s *quotationServiceImpl) resolve(ctx context.Context, id int64, trigger domainwf.Trigger, reason, actor string) (*entity.Quotation, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, apperr.Validation("actor", "is required")
	}

	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	machine, err := workflow.BuildQuotationMachine(q.Status)
	if err != nil {
		return nil, apperr.Storage("load quotation", err)
	}
	if !machine.CanFire(trigger) {
		return nil, alreadyResolved(id, q.Status)
	}
	// A resolved or missing quotation reports that first; the reason only
	// matters for a rejection that can still happen.
	if trigger == domainwf.TriggerReject && reason == "" {
		return nil, apperr.Validation("reason", "is required")
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, transitionError(entity.EntityQuotation, id, q.Status, trigger, err)
	}
	status := machine.State().String()

	resolved, err := s.quotationRepo.Resolve(ctx, id, status, actor, reason)
	if err != nil {
		s.logger.Error("Failed to resolve quotation", "error", err, "id", id)
		return nil, apperr.Storage("resolve quotation", err)
	}
	if !resolved {
		// Lost the race against another resolution; report what won
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, alreadyResolved(id, current.Status)
	}

	q.Status = status
	q.ApprovedBy = actor
	q.RejectionReason = reason

	s.logger.Info("Quotation resolved", "id", id, "status", status, "actor", actor)

	publish(ctx, s.dispatcher, event.NewEvent(event.TypeQuotationResolved, entity.EntityQuotation, id, actor, map[string]interface{}{
		event.KeyAction:   entity.ActionResolveQuotation,
		event.KeyMessage:  fmt.Sprintf("Your quotation %d was %s", id, strings.ToLower(status)),
		event.KeyOwner:    q.CreatedBy,
		event.KeyPrevious: entity.QuotationStatusPending,
		event.KeyStatus:   status,
		event.KeyNotes:    reason,
	}))

	return q, nil
}

func alreadyResolved(id int64, status string) error {
	return apperr.Conflict(apperr.CodeAlreadyResolved, "quotation %d already %s", id, status)
}

func (s *quotationServiceImpl) load(ctx context.Context, id int64) (*entity.Quotation, error) {
	q, err := s.quotationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("load quotation", err)
	}
	if q == nil {
		return nil, apperr.NotFound(entity.EntityQuotation, id)
	}
	return q, nil
}
