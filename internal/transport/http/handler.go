package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/dms/internal/service/recovery"
	"github.com/vladislavdragonenkov/dms/internal/service/saga"
)

// Handler — тонкий HTTP-слой: парсит запросы, зовёт сервисы и переводит
// доменные ошибки в HTTP-статусы. Бизнес-логики здесь нет.
type Handler struct {
	orders    domain.OrderRepository
	runs      domain.RunRepository
	domains   domain.DomainRepository
	timeline  domain.TimelineRepository
	orch      saga.Orchestrator
	lifecycle *lifecycle.Service
	calc      *recovery.Calculator
	logger    *log.Entry
}

// NewHandler создаёт HTTP handler сервиса.
func NewHandler(
	orders domain.OrderRepository,
	runs domain.RunRepository,
	domains domain.DomainRepository,
	timeline domain.TimelineRepository,
	orch saga.Orchestrator,
	lifecycleSvc *lifecycle.Service,
	calc *recovery.Calculator,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		orders:    orders,
		runs:      runs,
		domains:   domains,
		timeline:  timeline,
		orch:      orch,
		lifecycle: lifecycleSvc,
		calc:      calc,
		logger:    logger,
	}
}

type createProvisioningRequest struct {
	CustomerID  string `json:"customer_id"`
	FQDN        string `json:"fqdn"`
	Years       int32  `json:"years"`
	PlanCode    string `json:"plan_code"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type createProvisioningResponse struct {
	OrderID string `json:"order_id"`
	RunID   string `json:"run_id"`
}

type stepResponse struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
}

type runResponse struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"order_id"`
	Outcome    string         `json:"outcome"`
	FailedStep string         `json:"failed_step,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Steps      []stepResponse `json:"steps"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

type domainResponse struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	FQDN            string     `json:"fqdn"`
	RegistrarStatus string     `json:"registrar_status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	GraceUntil      *time.Time `json:"grace_until,omitempty"`
	RedemptionUntil *time.Time `json:"redemption_until,omitempty"`
	LastPaymentAt   *time.Time `json:"last_payment_at,omitempty"`
	MonthlyFeeMinor int64      `json:"monthly_fee_minor"`
	Currency        string     `json:"currency"`
}

type quoteResponse struct {
	DomainID         string     `json:"domain_id"`
	Status           string     `json:"status"`
	MonthlyFeeMinor  int64      `json:"monthly_fee_minor"`
	RecoveryFeeMinor int64      `json:"recovery_fee_minor"`
	TotalMinor       int64      `json:"total_minor"`
	Currency         string     `json:"currency"`
	CanRecover       bool       `json:"can_recover"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

type recoveryPaymentRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// handleCreateProvisioning создаёт заказ и запускает сагу асинхронно.
func (h *Handler) handleCreateProvisioning(w http.ResponseWriter, r *http.Request) {
	var req createProvisioningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order := domain.DomainOrder{
		ID:                uuid.NewString(),
		CustomerID:        req.CustomerID,
		FQDN:              req.FQDN,
		Years:             req.Years,
		PlanCode:          req.PlanCode,
		AmountMinor:       req.AmountMinor,
		Currency:          req.Currency,
		FulfillmentStatus: domain.FulfillmentPending,
		CreatedAt:         time.Now().UTC(),
	}
	if violations := order.ValidateInvariants(); len(violations) > 0 {
		writeErrorMessage(w, http.StatusUnprocessableEntity, violations[0].Error())
		return
	}

	if err := h.orders.Create(order); err != nil {
		h.writeError(w, err)
		return
	}

	run, err := h.orch.Begin(order.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Шаги исполняются вне контекста запроса: клиент опрашивает run по ID.
	go func() {
		if _, err := h.orch.Execute(context.Background(), run.ID); err != nil {
			h.logger.WithError(err).WithField("run_id", run.ID).Warn("provisioning run execution error")
		}
	}()

	writeJSON(w, http.StatusAccepted, createProvisioningResponse{
		OrderID: order.ID,
		RunID:   run.ID,
	})
}

// handleResumeRun возобновляет провалившийся run.
func (h *Handler) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.runs.Get(runID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if run.Outcome == domain.RunOutcomeSucceeded {
		h.writeError(w, domain.ErrRunTerminal)
		return
	}

	go func() {
		if _, err := h.orch.Resume(context.Background(), runID); err != nil {
			h.logger.WithError(err).WithField("run_id", runID).Warn("provisioning run resume error")
		}
	}()

	writeJSON(w, http.StatusAccepted, createProvisioningResponse{
		OrderID: run.OrderID,
		RunID:   run.ID,
	})
}

// handleGetRun возвращает состояние run'а с записями шагов.
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// handleGetRunTimeline возвращает timeline событий run'а.
func (h *Handler) handleGetRunTimeline(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := h.runs.Get(runID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTimeline(w, runID)
}

// handleGetDomain возвращает состояние домена.
func (h *Handler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	d, err := h.domains.Get(chi.URLParam(r, "domainID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(d))
}

// handleGetDomainTimeline возвращает timeline событий домена.
func (h *Handler) handleGetDomainTimeline(w http.ResponseWriter, r *http.Request) {
	domainID := chi.URLParam(r, "domainID")
	if _, err := h.domains.Get(domainID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeTimeline(w, domainID)
}

// handleRecoveryQuote считает свежий quote. Quote невосстановимого домена
// возвращается с 422, чтобы клиент не пытался провести платёж.
func (h *Handler) handleRecoveryQuote(w http.ResponseWriter, r *http.Request) {
	d, err := h.domains.Get(chi.URLParam(r, "domainID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	quote := h.calc.Quote(d, time.Now().UTC())
	status := http.StatusOK
	if !quote.CanRecover {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toQuoteResponse(quote))
}

// handleRecoveryPayment применяет платёжное событие к домену.
func (h *Handler) handleRecoveryPayment(w http.ResponseWriter, r *http.Request) {
	var req recoveryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := h.lifecycle.SubmitRecoveryPayment(chi.URLParam(r, "domainID"), req.PaymentRef)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(d))
}

// handleListOrders возвращает заказы клиента.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByCustomer(chi.URLParam(r, "customerID"), 0)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		result = append(result, map[string]any{
			"id":                 order.ID,
			"fqdn":               order.FQDN,
			"years":              order.Years,
			"plan_code":          order.PlanCode,
			"amount_minor":       order.AmountMinor,
			"currency":           order.Currency,
			"fulfillment_status": string(order.FulfillmentStatus),
			"created_at":         order.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeTimeline(w http.ResponseWriter, aggregateID string) {
	events, err := h.timeline.List(aggregateID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func toRunResponse(run domain.ProvisioningRun) runResponse {
	steps := make([]stepResponse, 0, len(run.Steps))
	for _, step := range run.Steps {
		steps = append(steps, stepResponse{
			Name:        string(step.Name),
			Status:      string(step.Status),
			Attempts:    step.Attempts,
			LastError:   step.LastError,
			ExternalRef: step.ExternalRef,
		})
	}
	return runResponse{
		ID:         run.ID,
		OrderID:    run.OrderID,
		Outcome:    string(run.Outcome),
		FailedStep: string(run.FailedStep),
		LastError:  run.LastError,
		Steps:      steps,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func toDomainResponse(d domain.Domain) domainResponse {
	return domainResponse{
		ID:              d.ID,
		CustomerID:      d.CustomerID,
		FQDN:            d.FQDN,
		RegistrarStatus: string(d.RegistrarStatus),
		ExpiresAt:       d.ExpiresAt,
		GraceUntil:      d.GraceUntil,
		RedemptionUntil: d.RedemptionUntil,
		LastPaymentAt:   d.LastPaymentAt,
		MonthlyFeeMinor: d.MonthlyFeeMinor,
		Currency:        d.Currency,
	}
}

func toQuoteResponse(quote domain.RecoveryQuote) quoteResponse {
	return quoteResponse{
		DomainID:         quote.DomainID,
		Status:           string(quote.Status),
		MonthlyFeeMinor:  quote.MonthlyFeeMinor,
		RecoveryFeeMinor: quote.RecoveryFeeMinor,
		TotalMinor:       quote.TotalMinor,
		Currency:         quote.Currency,
		CanRecover:       quote.CanRecover,
		Deadline:         quote.Deadline,
	}
}

// writeError переводит доменные ошибки в HTTP-статусы таксономии:
// 404 not found, 409 конфликт/устаревшее окно, 422 бизнес-отказ.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrRunNotFound),
		errors.Is(err, domain.ErrDomainNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRunAlreadyActive),
		errors.Is(err, domain.ErrRunTerminal),
		errors.Is(err, domain.ErrOrderAlreadyExists),
		errors.Is(err, domain.ErrDomainAlreadyExists),
		errors.Is(err, domain.ErrStaleRecoveryWindow),
		domain.IsVersionConflict(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRecoveryNotAvailable):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).Error("internal error")
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
