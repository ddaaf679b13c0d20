package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/budget-gate/internal/application/service"
	"github.com/garyjia/budget-gate/internal/domain/apperr"
	"github.com/garyjia/budget-gate/internal/domain/entity"
	"github.com/garyjia/budget-gate/pkg/utils"
)

const (
	actorHeader = "X-User-ID"
	actorKey    = "actor"
	xlsxMIME    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Services bundles the application services the HTTP adapter calls
type Services struct {
	Budget         service.BudgetService
	PurchaseOrders service.PurchaseOrderService
	Expenses       service.ExpenseService
	Quotations     service.QuotationService
	Anomaly        service.AnomalyService
	Audit          service.AuditService
}

// HealthFunc reports whether the process can serve requests, plus component details
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		health:   health,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Kind      string           `json:"kind"`
	Code      string           `json:"code,omitempty"`
	Field     string           `json:"field,omitempty"`
	Message   string           `json:"message"`
	Available *decimal.Decimal `json:"available,omitempty"`
	Required  *decimal.Decimal `json:"required,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Version   string      `json:"version"`
	Details   interface{} `json:"details,omitempty"`
}

// AvailableBudgetResponse is the body of GET /api/budget/available
type AvailableBudgetResponse struct {
	Available   decimal.Decimal `json:"available"`
	ExcludePOID *int64          `json:"exclude_po_id,omitempty"`
}

// AlertsResponse is the body of GET /api/auditor/alerts
type AlertsResponse struct {
	AsOf     string         `json:"as_of"`
	Alerts   []entity.Alert `json:"alerts"`
	Briefing string         `json:"briefing,omitempty"`
}

// FinanceStatusRequest is the body of POST /api/purchase-orders/:id/finance-status
type FinanceStatusRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// DeliveryRequest is the body of POST /api/purchase-orders/:id/delivery
type DeliveryRequest struct {
	DeliveryDate *time.Time `json:"delivery_date"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes"`
}

// PaymentStatusRequest is the body of POST /api/expenses/:id/payment-status
type PaymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RejectRequest is the body of POST /api/quotations/:id/reject
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListRequest carries paging parameters
type ListRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// RequireActor reads the acting user from the X-User-ID header
func (h *Handlers) RequireActor(c *gin.Context) {
	actor := strings.TrimSpace(c.GetHeader(actorHeader))
	if err := utils.ValidateUserID(actor); err != nil {
		h.respondError(c, apperr.Validation(actorHeader, "missing or malformed acting user"))
		c.Abort()
		return
	}
	c.Set(actorKey, actor)
	c.Next()
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, details := true, interface{}(nil)
	if h.health != nil {
		healthy, details = h.health(c.Request.Context())
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Details:   details,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: response})
}

// GetAvailableBudget handles GET /api/budget/available
func (h *Handlers) GetAvailableBudget(c *gin.Context) {
	var exclude *int64
	if raw := c.Query("exclude_po_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.respondError(c, apperr.Validation("exclude_po_id", "must be a positive integer"))
			return
		}
		exclude = &id
	}

	available, err := h.services.Budget.ComputeAvailable(c.Request.Context(), exclude)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, AvailableBudgetResponse{Available: available, ExcludePOID: exclude})
}

// GetBudgetSummary handles GET /api/budget/summary
func (h *Handlers) GetBudgetSummary(c *gin.Context) {
	summary, err := h.services.Budget.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, summary)
}

// ListPurchaseOrders handles GET /api/purchase-orders
func (h *Handlers) ListPurchaseOrders(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	orders, err := h.services.PurchaseOrders.List(c.Request.Context(), strings.ToUpper(c.Query("status")), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, orders)
}

// CreatePurchaseOrder handles POST /api/purchase-orders
func (h *Handlers) CreatePurchaseOrder(c *gin.Context) {
	var input service.CreatePurchaseOrderInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Actor = actor(c)
	input.Notes = utils.SanitizeString(input.Notes)

	created, err := h.services.PurchaseOrders.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusCreated, created)
}

// GetPurchaseOrder handles GET /api/purchase-orders/:id
func (h *Handlers) GetPurchaseOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	po, err := h.services.PurchaseOrders.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, po)
}

// SetFinanceStatus handles POST /api/purchase-orders/:id/finance-status
func (h *Handlers) SetFinanceStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req FinanceStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.services.PurchaseOrders.SetFinanceStatus(c.Request.Context(), id, req.Action, utils.SanitizeString(req.Notes), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, result)
}

// RecordDelivery handles POST /api/purchase-orders/:id/delivery
func (h *Handlers) RecordDelivery(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req DeliveryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var date time.Time
	if req.DeliveryDate != nil {
		date = *req.DeliveryDate
	}
	ctx := c.Request.Context()
	if err := h.services.PurchaseOrders.RecordDelivery(ctx, id, date, req.Status, utils.SanitizeString(req.Notes), actor(c)); err != nil {
		h.respondError(c, err)
		return
	}

	po, err := h.services.PurchaseOrders.Get(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, po)
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	var projectID *int64
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.respondError(c, apperr.Validation("project_id", "must be a positive integer"))
			return
		}
		projectID = &id
	}

	expenses, err := h.services.Expenses.List(c.Request.Context(), projectID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, expenses)
}

// SubmitExpense handles POST /api/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var input service.SubmitExpenseInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Actor = actor(c)
	input.Description = utils.SanitizeString(input.Description)

	expense, err := h.services.Expenses.Submit(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusCreated, expense)
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	expense, err := h.services.Expenses.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, expense)
}

// SetPaymentStatus handles POST /api/expenses/:id/payment-status
func (h *Handlers) SetPaymentStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req PaymentStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	expense, err := h.services.Expenses.SetPaymentStatus(c.Request.Context(), id, req.Status, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, expense)
}

// SubmitQuotation handles POST /api/quotations
func (h *Handlers) SubmitQuotation(c *gin.Context) {
	var input service.SubmitQuotationInput
	if !h.bindJSON(c, &input) {
		return
	}
	input.Actor = actor(c)

	q, err := h.services.Quotations.Submit(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusCreated, q)
}

// GetQuotation handles GET /api/quotations/:id
func (h *Handlers) GetQuotation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	q, err := h.services.Quotations.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, q)
}

// ApproveQuotation handles POST /api/quotations/:id/approve
func (h *Handlers) ApproveQuotation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	q, err := h.services.Quotations.Approve(c.Request.Context(), id, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, q)
}

// RejectQuotation handles POST /api/quotations/:id/reject
func (h *Handlers) RejectQuotation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req RejectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	q, err := h.services.Quotations.Reject(c.Request.Context(), id, utils.SanitizeString(req.Reason), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, q)
}

// ListAlerts handles GET /api/auditor/alerts. With narrate=true the response
// also carries a prose briefing; a narration failure leaves it empty.
func (h *Handlers) ListAlerts(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	alerts, err := h.services.Anomaly.Detect(ctx, asOf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := AlertsResponse{AsOf: asOf.UTC().Format(time.RFC3339), Alerts: alerts}
	if resp.Alerts == nil {
		resp.Alerts = []entity.Alert{}
	}
	if narrate, _ := strconv.ParseBool(c.Query("narrate")); narrate {
		briefing, err := h.services.Anomaly.Narrate(ctx, alerts)
		if err != nil {
			h.logger.Error("Alert narration failed", "error", err)
		}
		resp.Briefing = briefing
	}
	h.respondOK(c, http.StatusOK, resp)
}

// DownloadReport handles GET /api/auditor/report.xlsx
func (h *Handlers) DownloadReport(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.services.Anomaly.ExportReport(c.Request.Context(), asOf, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	filename := "audit-report-" + asOf.UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

// GetAuditTrail handles GET /api/audit/:entity_type/:id
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	entityType := c.Param("entity_type")
	switch entityType {
	case entity.EntityPurchaseOrder, entity.EntityExpense, entity.EntityQuotation, entity.EntityProject:
	default:
		h.respondError(c, apperr.Validation("entity_type", "unknown entity type %q", entityType))
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	trail, err := h.services.Audit.Trail(c.Request.Context(), entityType, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondOK(c, http.StatusOK, trail)
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperr.Validation("id", "invalid id %q", idStr))
		return 0, false
	}
	return id, true
}

func (h *Handlers) page(c *gin.Context) (int, int, bool) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, apperr.Validation("", "invalid query parameters"))
		return 0, 0, false
	}
	limit, offset := utils.ClampPage(req.Limit, req.Offset)
	return limit, offset, true
}

func (h *Handlers) asOf(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.respondError(c, apperr.Validation("as_of", "must be an RFC3339 timestamp"))
		return time.Time{}, false
	}
	return t, true
}

func (h *Handlers) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperr.Validation("", "invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handlers) respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError maps the service error taxonomy onto HTTP status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
	}
	c.JSON(status, Response{Success: false, Error: body})
}
