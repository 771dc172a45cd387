package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/dms/internal/domain"
	"github.com/vladislavdragonenkov/dms/internal/service/dns"
	"github.com/vladislavdragonenkov/dms/internal/service/email"
	"github.com/vladislavdragonenkov/dms/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/dms/internal/service/payment"
	"github.com/vladislavdragonenkov/dms/internal/service/recovery"
	"github.com/vladislavdragonenkov/dms/internal/service/registrar"
	"github.com/vladislavdragonenkov/dms/internal/service/saga"
	"github.com/vladislavdragonenkov/dms/internal/storage/memory"
	httptransport "github.com/vladislavdragonenkov/dms/internal/transport/http"
)

// ProvisioningLifecycleTestSuite тестирует полный путь домена через HTTP API:
// provisioning-сага, возобновление и восстановление после истечения.
type ProvisioningLifecycleTestSuite struct {
	suite.Suite
	router    http.Handler
	orders    domain.OrderRepository
	runs      domain.RunRepository
	domains   domain.DomainRepository
	timeline  domain.TimelineRepository
	registrar *registrar.MockService
	email     *email.MockService
	dns       *dns.MockService
	payments  *payment.MockService
}

func (suite *ProvisioningLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.orders = memory.NewOrderRepository()
	suite.runs = memory.NewRunRepository()
	suite.domains = memory.NewDomainRepository()
	suite.timeline = memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()

	suite.registrar = registrar.NewMockService()
	suite.email = email.NewMockService()
	suite.dns = dns.NewMockService()
	suite.payments = payment.NewMockService()

	orch := saga.NewOrchestrator(
		suite.orders,
		suite.runs,
		suite.domains,
		outbox,
		suite.timeline,
		saga.Adapters{
			Registrar: suite.registrar,
			Email:     suite.email,
			DNS:       suite.dns,
			Payments:  suite.payments,
		},
		logger,
		saga.WithoutMetrics(),
		saga.WithBackoff(saga.BackoffConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
		}),
	)

	machine := lifecycle.NewMachine(domain.DefaultLifecyclePolicy())
	lifecycleSvc := lifecycle.NewService(suite.domains, outbox, suite.timeline, machine, logger, nil)
	calc := recovery.NewCalculator(domain.DefaultLifecyclePolicy())

	handler := httptransport.NewHandler(
		suite.orders,
		suite.runs,
		suite.domains,
		suite.timeline,
		orch,
		lifecycleSvc,
		calc,
		logger,
	)
	suite.router = httptransport.NewRouter(handler)
}

func (suite *ProvisioningLifecycleTestSuite) TestSuccessfulProvisioning() {
	// 1. Создаём заказ на домен
	resp := suite.createProvisioning("customer-123", "shop.example.com")

	// Ждём завершения саги
	suite.waitForRunOutcome(resp.RunID, domain.RunOutcomeSucceeded, 5*time.Second)

	// 2. Проверяем run через API
	run := suite.getRun(resp.RunID)
	require.Equal(suite.T(), string(domain.RunOutcomeSucceeded), run.Outcome)
	require.Len(suite.T(), run.Steps, 4)
	for _, step := range run.Steps {
		require.Equal(suite.T(), "completed", step.Status, "step %s", step.Name)
	}

	// 3. Заказ исполнен, домен активен
	order, err := suite.orders.Get(resp.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.FulfillmentDone, order.FulfillmentStatus)

	d, err := suite.domains.GetByFQDN("shop.example.com")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.StatusActive, d.RegistrarStatus)

	// 4. Проверяем вызовы внешних сервисов
	require.Equal(suite.T(), 1, suite.payments.CaptureCalls)
	require.Equal(suite.T(), 1, suite.registrar.RegisterCalls)
	require.Equal(suite.T(), 1, suite.email.CreateDomainCalls)
	require.Equal(suite.T(), 1, suite.dns.ApplyCalls)
}

func (suite *ProvisioningLifecycleTestSuite) TestPaymentDeclinedIsTerminal() {
	// Платёж не проходит: сага должна остановиться на первом шаге
	suite.payments.Captured = false

	resp := suite.createProvisioning("customer-456", "declined.example.com")
	suite.waitForRunOutcome(resp.RunID, domain.RunOutcomeFailed, 5*time.Second)

	run := suite.getRun(resp.RunID)
	require.Equal(suite.T(), string(domain.StepCapturePayment), run.FailedStep)

	order, err := suite.orders.Get(resp.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.FulfillmentFailed, order.FulfillmentStatus)

	// До регистратора дело не дошло
	require.Equal(suite.T(), 1, suite.payments.CaptureCalls)
	require.Equal(suite.T(), 0, suite.registrar.RegisterCalls)
}

func (suite *ProvisioningLifecycleTestSuite) TestResumeAfterEmailOutage() {
	// Почтовый провайдер временно недоступен: попытки исчерпываются
	suite.email.CreateDomainErr = errors.New("smtp upstream unavailable")

	resp := suite.createProvisioning("customer-789", "mail.example.com")
	suite.waitForRunOutcome(resp.RunID, domain.RunOutcomeFailed, 5*time.Second)

	run := suite.getRun(resp.RunID)
	require.Equal(suite.T(), string(domain.StepProvisionEmail), run.FailedStep)
	require.Equal(suite.T(), 1, suite.registrar.RegisterCalls)

	// Провайдер ожил: возобновляем ту же сагу
	suite.email.CreateDomainErr = nil
	rec := suite.do(http.MethodPost, "/v1/provisioning/"+resp.RunID+"/resume", nil)
	require.Equal(suite.T(), http.StatusAccepted, rec.Code, rec.Body.String())

	suite.waitForRunOutcome(resp.RunID, domain.RunOutcomeSucceeded, 5*time.Second)

	// Завершённые шаги не выполнялись повторно
	require.Equal(suite.T(), 1, suite.payments.CaptureCalls)
	require.Equal(suite.T(), 1, suite.registrar.RegisterCalls)

	d, err := suite.domains.GetByFQDN("mail.example.com")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.StatusActive, d.RegistrarStatus)
}

func (suite *ProvisioningLifecycleTestSuite) TestRecoveryPaymentRestoresDomain() {
	now := time.Now().UTC()
	graceUntil := now.Add(14 * 24 * time.Hour)
	d := domain.Domain{
		ID:              "dom-1",
		CustomerID:      "customer-123",
		FQDN:            "expired.example.com",
		RegistrarStatus: domain.StatusGrace,
		ExpiresAt:       now.Add(-24 * time.Hour),
		GraceUntil:      &graceUntil,
		MonthlyFeeMinor: 833,
		Currency:        "USD",
	}
	require.NoError(suite.T(), suite.domains.Create(d))

	// 1. Котировка в grace: только просроченная помесячная плата
	rec := suite.do(http.MethodGet, "/v1/domains/dom-1/recovery-quote", nil)
	require.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	var quote struct {
		TotalMinor int64 `json:"total_minor"`
		CanRecover bool  `json:"can_recover"`
	}
	suite.decode(rec, &quote)
	require.True(suite.T(), quote.CanRecover)
	require.Equal(suite.T(), int64(833), quote.TotalMinor)

	// 2. Оплата восстановления возвращает домен в active
	rec = suite.do(http.MethodPost, "/v1/domains/dom-1/recovery-payment", map[string]any{
		"payment_ref": "pay-recovery-1",
	})
	require.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	restored, err := suite.domains.Get("dom-1")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.StatusActive, restored.RegistrarStatus)
	require.Nil(suite.T(), restored.GraceUntil)
	require.True(suite.T(), restored.ExpiresAt.After(now))

	// 3. Timeline фиксирует восстановление
	rec = suite.do(http.MethodGet, "/v1/domains/dom-1/timeline", nil)
	require.Equal(suite.T(), http.StatusOK, rec.Code)

	var events []struct {
		Type string `json:"type"`
	}
	suite.decode(rec, &events)
	require.Len(suite.T(), events, 1)
}

// Вспомогательные методы

type provisioningResponse struct {
	OrderID string `json:"order_id"`
	RunID   string `json:"run_id"`
}

type runView struct {
	ID         string `json:"id"`
	Outcome    string `json:"outcome"`
	FailedStep string `json:"failed_step"`
	Steps      []struct {
		Name     string `json:"name"`
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
	} `json:"steps"`
}

func (suite *ProvisioningLifecycleTestSuite) createProvisioning(customerID, fqdn string) provisioningResponse {
	rec := suite.do(http.MethodPost, "/v1/provisioning", map[string]any{
		"customer_id":  customerID,
		"fqdn":         fqdn,
		"years":        1,
		"plan_code":    "standard",
		"amount_minor": 1200,
		"currency":     "USD",
	})
	require.Equal(suite.T(), http.StatusAccepted, rec.Code, rec.Body.String())

	var resp provisioningResponse
	suite.decode(rec, &resp)
	require.NotEmpty(suite.T(), resp.OrderID)
	require.NotEmpty(suite.T(), resp.RunID)
	return resp
}

func (suite *ProvisioningLifecycleTestSuite) getRun(runID string) runView {
	rec := suite.do(http.MethodGet, "/v1/provisioning/"+runID, nil)
	require.Equal(suite.T(), http.StatusOK, rec.Code, rec.Body.String())

	var run runView
	suite.decode(rec, &run)
	return run
}

func (suite *ProvisioningLifecycleTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	return rec
}

func (suite *ProvisioningLifecycleTestSuite) decode(rec *httptest.ResponseRecorder, dst any) {
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (suite *ProvisioningLifecycleTestSuite) waitForRunOutcome(runID string, outcome domain.RunOutcome, timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		run, err := suite.runs.Get(runID)
		if err == nil && run.Outcome == outcome {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Если не дождались, показываем текущее состояние
	run, _ := suite.runs.Get(runID)
	suite.T().Fatalf("Run %s did not reach outcome %s within %v, current outcome: %s",
		runID, outcome, timeout, run.Outcome)
}

func TestProvisioningLifecycle(t *testing.T) {
	suite.Run(t, new(ProvisioningLifecycleTestSuite))
}
