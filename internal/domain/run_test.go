package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewProvisioningRun_StepOrder(t *testing.T) {
	run := NewProvisioningRun("run-1", "order-1", time.Now().UTC())

	if len(run.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(run.Steps))
	}
	want := []StepName{StepCapturePayment, StepRegisterDomain, StepProvisionEmail, StepConfigureDNS}
	for i, name := range want {
		if run.Steps[i].Name != name {
			t.Fatalf("step[%d] = %s, want %s", i, run.Steps[i].Name, name)
		}
		if run.Steps[i].Status != StepStatusPending {
			t.Fatalf("step %s status = %s, want pending", name, run.Steps[i].Status)
		}
	}
	if run.Outcome != RunOutcomePending {
		t.Fatalf("outcome = %s, want pending", run.Outcome)
	}
	if run.Terminal() {
		t.Fatal("fresh run must not be terminal")
	}
}

func TestStepRecord_BindExternalRefImmutable(t *testing.T) {
	step := StepRecord{Name: StepRegisterDomain}

	if err := step.BindExternalRef("reg-1"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	// Повторная запись того же значения — no-op.
	if err := step.BindExternalRef("reg-1"); err != nil {
		t.Fatalf("idempotent bind: %v", err)
	}
	if err := step.BindExternalRef("reg-2"); !errors.Is(err, ErrExternalRefImmutable) {
		t.Fatalf("rebind error = %v, want ErrExternalRefImmutable", err)
	}
	if step.ExternalRef != "reg-1" {
		t.Fatalf("external_ref = %s, want reg-1", step.ExternalRef)
	}
}

func TestProvisioningRun_FirstIncomplete(t *testing.T) {
	run := NewProvisioningRun("run-1", "order-1", time.Now().UTC())

	step, ok := run.FirstIncomplete()
	if !ok || step.Name != StepCapturePayment {
		t.Fatalf("first incomplete = %v, want capture_payment", step)
	}

	run.Steps[0].Status = StepStatusCompleted
	run.Steps[1].Status = StepStatusCompleted
	step, ok = run.FirstIncomplete()
	if !ok || step.Name != StepProvisionEmail {
		t.Fatalf("first incomplete = %v, want provision_email", step)
	}

	for i := range run.Steps {
		run.Steps[i].Status = StepStatusCompleted
	}
	if _, ok := run.FirstIncomplete(); ok {
		t.Fatal("completed run must have no incomplete steps")
	}
	if !run.Completed() {
		t.Fatal("run must report completed")
	}
}

func TestDomainOrder_ValidateInvariants(t *testing.T) {
	valid := DomainOrder{
		CustomerID:  "c1",
		FQDN:        "shop.example.com",
		Years:       1,
		AmountMinor: 100,
		Currency:    "USD",
	}
	if errs := valid.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("valid order violations = %v", errs)
	}

	invalid := DomainOrder{Years: -1, AmountMinor: -5}
	errs := invalid.ValidateInvariants()
	if len(errs) != 5 {
		t.Fatalf("violations = %d, want 5", len(errs))
	}
}

func TestDomain_DeadlinePerStatus(t *testing.T) {
	policy := DefaultLifecyclePolicy()
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	d := Domain{RegistrarStatus: StatusActive, ExpiresAt: expires}
	if deadline, ok := d.Deadline(policy); !ok || !deadline.Equal(expires) {
		t.Fatalf("active deadline = %v, want %v", deadline, expires)
	}

	// Без сохранённых окон дедлайны выводятся из политики.
	d.RegistrarStatus = StatusGrace
	if deadline, _ := d.Deadline(policy); !deadline.Equal(expires.Add(15 * day)) {
		t.Fatalf("grace deadline = %v, want expires+15d", deadline)
	}

	d.RegistrarStatus = StatusRedemption
	if deadline, _ := d.Deadline(policy); !deadline.Equal(expires.Add(45 * day)) {
		t.Fatalf("redemption deadline = %v, want expires+45d", deadline)
	}

	d.RegistrarStatus = StatusRegistryHold
	if deadline, _ := d.Deadline(policy); !deadline.Equal(expires.Add(60 * day)) {
		t.Fatalf("hold deadline = %v, want expires+60d", deadline)
	}

	d.RegistrarStatus = StatusAuction
	if deadline, _ := d.Deadline(policy); !deadline.Equal(expires.Add(65 * day)) {
		t.Fatalf("auction deadline = %v, want expires+65d", deadline)
	}

	d.RegistrarStatus = StatusReleased
	if _, ok := d.Deadline(policy); ok {
		t.Fatal("released must have no deadline")
	}

	// Сохранённое окно имеет приоритет над выводом из политики.
	until := expires.Add(10 * day)
	d.RegistrarStatus = StatusGrace
	d.GraceUntil = &until
	if deadline, _ := d.Deadline(policy); !deadline.Equal(until) {
		t.Fatalf("grace deadline = %v, want stored %v", deadline, until)
	}
}

func TestRegistrarStatus_Recoverable(t *testing.T) {
	recoverable := []RegistrarStatus{StatusGrace, StatusRedemption, StatusRegistryHold, StatusAuction}
	for _, status := range recoverable {
		if !status.Recoverable() {
			t.Fatalf("%s must be recoverable", status)
		}
	}
	for _, status := range []RegistrarStatus{StatusActive, StatusReleased} {
		if status.Recoverable() {
			t.Fatalf("%s must not be recoverable", status)
		}
	}
}

func TestTransientError_Marking(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := MarkTransient(base)

	if !IsTransient(wrapped) {
		t.Fatal("wrapped error must be transient")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("wrapped error must unwrap to base")
	}
	if IsTransient(base) {
		t.Fatal("bare error must not be transient")
	}
	if MarkTransient(nil) != nil {
		t.Fatal("marking nil must return nil")
	}
}
