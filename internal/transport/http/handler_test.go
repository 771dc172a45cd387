package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/dns"
	"github.com/vladislavdragonenkov/dms/internal/service/email"
	"github.com/vladislavdragonenkov/dms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
	"github.com/vladislavdragonenkov/dms/internal/service/recovery"
	"github.com/vladislavdragonenkov/dms/internal/service/registrar"
	"github.com/vladislavdragonenkov/dms/internal/service/saga"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

type apiEnv struct {
	orders   domain.OrderRepository
	runs     domain.RunRepository
	domains  domain.DomainRepository
	timeline domain.TimelineRepository
	orch     saga.Orchestrator
	router   http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	orders := memory.NewOrderRepository()
	runs := memory.NewRunRepository()
	domains := memory.NewDomainRepository()
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()

	adapters := saga.Adapters{
		Registrar: registrar.NewMockService(),
		Email:     email.NewMockService(),
		DNS:       dns.NewMockService(),
		Payments:  payment.NewMockService(),
	}
	orch := saga.NewOrchestrator(orders, runs, domains, outbox, timeline, adapters, testLogger(), saga.WithoutMetrics())

	machine := lifecycle.NewMachine(domain.DefaultLifecyclePolicy())
	lifecycleSvc := lifecycle.NewService(domains, outbox, timeline, machine, testLogger(), nil)
	calc := recovery.NewCalculator(domain.DefaultLifecyclePolicy())

	handler := NewHandler(orders, runs, domains, timeline, orch, lifecycleSvc, calc, testLogger())
	return &apiEnv{
		orders:   orders,
		runs:     runs,
		domains:  domains,
		timeline: timeline,
		orch:     orch,
		router:   NewRouter(handler),
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func seedGraceDomain(t *testing.T, repo domain.DomainRepository) domain.Domain {
	t.Helper()

	now := time.Now().UTC()
	graceUntil := now.Add(14 * 24 * time.Hour)
	d := domain.Domain{
		ID:              "dom-1",
		CustomerID:      "customer-1",
		FQDN:            "shop.example.com",
		RegistrarStatus: domain.StatusGrace,
		ExpiresAt:       now.Add(-24 * time.Hour),
		GraceUntil:      &graceUntil,
		MonthlyFeeMinor: 833,
		Currency:        "USD",
	}
	if err := repo.Create(d); err != nil {
		t.Fatalf("create domain: %v", err)
	}
	return d
}

func TestHandler_CreateProvisioning(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/provisioning", map[string]any{
		"customer_id":  "customer-1",
		"fqdn":         "shop.example.com",
		"years":        1,
		"plan_code":    "standard",
		"amount_minor": 1200,
		"currency":     "USD",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp createProvisioningResponse
	decodeBody(t, rec, &resp)
	if resp.OrderID == "" || resp.RunID == "" {
		t.Fatalf("response = %+v, want order_id and run_id", resp)
	}

	if _, err := env.runs.Get(resp.RunID); err != nil {
		t.Fatalf("run is not persisted: %v", err)
	}
	if _, err := env.orders.Get(resp.OrderID); err != nil {
		t.Fatalf("order is not persisted: %v", err)
	}
}

func TestHandler_CreateProvisioningValidation(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/provisioning", map[string]any{
		"customer_id": "customer-1",
		"fqdn":        "shop.example.com",
		"years":       0,
		"currency":    "USD",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandler_GetRun(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/provisioning/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run status = %d, want 404", rec.Code)
	}

	order := domain.DomainOrder{
		ID: "order-1", CustomerID: "customer-1", FQDN: "shop.example.com",
		Years: 1, AmountMinor: 100, Currency: "USD",
		FulfillmentStatus: domain.FulfillmentPending, CreatedAt: time.Now().UTC(),
	}
	if err := env.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	run, err := env.orch.Begin(order.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/v1/provisioning/"+run.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp runResponse
	decodeBody(t, rec, &resp)
	if resp.ID != run.ID || len(resp.Steps) != 4 {
		t.Fatalf("response = %+v, want 4 steps for run %s", resp, run.ID)
	}
	if resp.Outcome != string(domain.RunOutcomePending) {
		t.Fatalf("outcome = %s, want pending", resp.Outcome)
	}
}

func TestHandler_ResumeSucceededRunConflicts(t *testing.T) {
	env := newAPIEnv(t)

	order := domain.DomainOrder{
		ID: "order-1", CustomerID: "customer-1", FQDN: "shop.example.com",
		Years: 1, AmountMinor: 100, Currency: "USD",
		FulfillmentStatus: domain.FulfillmentPending, CreatedAt: time.Now().UTC(),
	}
	if err := env.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	run, err := env.orch.Start(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Outcome != domain.RunOutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", run.Outcome)
	}

	rec := env.do(t, http.MethodPost, "/v1/provisioning/"+run.ID+"/resume", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandler_RecoveryQuote(t *testing.T) {
	env := newAPIEnv(t)
	seedGraceDomain(t, env.domains)

	rec := env.do(t, http.MethodGet, "/v1/domains/dom-1/recovery-quote", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var quote quoteResponse
	decodeBody(t, rec, &quote)
	if !quote.CanRecover {
		t.Fatal("grace quote must be recoverable")
	}
	if quote.TotalMinor != 833 {
		t.Fatalf("total = %d, want 833", quote.TotalMinor)
	}

	rec = env.do(t, http.MethodGet, "/v1/domains/missing/recovery-quote", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing domain status = %d, want 404", rec.Code)
	}
}

func TestHandler_RecoveryQuoteNotRecoverable(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	released := domain.Domain{
		ID: "dom-gone", CustomerID: "customer-1", FQDN: "gone.example.com",
		RegistrarStatus: domain.StatusReleased, ExpiresAt: now.Add(-100 * 24 * time.Hour),
		MonthlyFeeMinor: 833, Currency: "USD",
	}
	if err := env.domains.Create(released); err != nil {
		t.Fatalf("create domain: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/v1/domains/dom-gone/recovery-quote", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var quote quoteResponse
	decodeBody(t, rec, &quote)
	if quote.CanRecover {
		t.Fatal("released quote must not be recoverable")
	}
}

func TestHandler_RecoveryPayment(t *testing.T) {
	env := newAPIEnv(t)
	seedGraceDomain(t, env.domains)

	rec := env.do(t, http.MethodPost, "/v1/domains/dom-1/recovery-payment", map[string]any{
		"payment_ref": "pay-42",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domainResponse
	decodeBody(t, rec, &resp)
	if resp.RegistrarStatus != string(domain.StatusActive) {
		t.Fatalf("status = %s, want active", resp.RegistrarStatus)
	}

	// Timeline фиксирует событие восстановления.
	rec = env.do(t, http.MethodGet, "/v1/domains/dom-1/timeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline status = %d, want 200", rec.Code)
	}
	var events []timelineEventResponse
	decodeBody(t, rec, &events)
	if len(events) != 1 {
		t.Fatalf("timeline events = %d, want 1", len(events))
	}
}

func TestHandler_RecoveryPaymentStaleWindowConflicts(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	stale := now.Add(-time.Hour)
	d := domain.Domain{
		ID: "dom-1", CustomerID: "customer-1", FQDN: "shop.example.com",
		RegistrarStatus: domain.StatusGrace, ExpiresAt: now.Add(-20 * 24 * time.Hour),
		GraceUntil: &stale, MonthlyFeeMinor: 833, Currency: "USD",
	}
	if err := env.domains.Create(d); err != nil {
		t.Fatalf("create domain: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/domains/dom-1/recovery-payment", map[string]any{
		"payment_ref": "pay-42",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandler_RecoveryPaymentNotRecoverable(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	active := domain.Domain{
		ID: "dom-1", CustomerID: "customer-1", FQDN: "shop.example.com",
		RegistrarStatus: domain.StatusActive, ExpiresAt: now.Add(30 * 24 * time.Hour),
		MonthlyFeeMinor: 833, Currency: "USD",
	}
	if err := env.domains.Create(active); err != nil {
		t.Fatalf("create domain: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/domains/dom-1/recovery-payment", map[string]any{
		"payment_ref": "pay-42",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandler_ListOrders(t *testing.T) {
	env := newAPIEnv(t)
	now := time.Now().UTC()
	for _, id := range []string{"order-1", "order-2"} {
		order := domain.DomainOrder{
			ID: id, CustomerID: "customer-1", FQDN: id + ".example.com",
			Years: 1, AmountMinor: 100, Currency: "USD",
			FulfillmentStatus: domain.FulfillmentPending, CreatedAt: now,
		}
		if err := env.orders.Create(order); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/customers/customer-1/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []map[string]any
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("orders = %d, want 2", len(list))
	}
}
