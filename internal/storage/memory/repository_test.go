package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

func TestRunRepository_SingleActiveRunPerOrder(t *testing.T) {
	repo := NewRunRepository()
	now := time.Now().UTC()

	first := domain.NewProvisioningRun("run-1", "order-1", now)
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first run: %v", err)
	}

	second := domain.NewProvisioningRun("run-2", "order-1", now)
	if err := repo.Create(second); !errors.Is(err, domain.ErrRunAlreadyActive) {
		t.Fatalf("create second run error = %v, want ErrRunAlreadyActive", err)
	}

	// После терминального исхода первого run новый создать можно.
	first.Outcome = domain.RunOutcomeFailed
	if err := repo.Save(first); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := repo.Create(second); err != nil {
		t.Fatalf("create run after terminal: %v", err)
	}
}

func TestRunRepository_VersionConflict(t *testing.T) {
	repo := NewRunRepository()
	run := domain.NewProvisioningRun("run-1", "order-1", time.Now().UTC())
	if err := repo.Create(run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	if err := repo.Save(run); err != nil {
		t.Fatalf("first save: %v", err)
	}
	// Вторая запись с той же версией проигрывает CAS.
	if err := repo.Save(run); !errors.Is(err, domain.ErrRunVersionConflict) {
		t.Fatalf("stale save error = %v, want ErrRunVersionConflict", err)
	}
}

func TestRunRepository_GetActiveByOrder(t *testing.T) {
	repo := NewRunRepository()
	run := domain.NewProvisioningRun("run-1", "order-1", time.Now().UTC())
	if err := repo.Create(run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	active, err := repo.GetActiveByOrder("order-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != "run-1" {
		t.Fatalf("active run id = %s, want run-1", active.ID)
	}

	if _, err := repo.GetActiveByOrder("order-2"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("missing order error = %v, want ErrRunNotFound", err)
	}
}

func TestDomainRepository_UniqueFQDN(t *testing.T) {
	repo := NewDomainRepository()
	now := time.Now().UTC()

	d := domain.Domain{ID: "dom-1", CustomerID: "c1", FQDN: "shop.example.com", RegistrarStatus: domain.StatusActive, ExpiresAt: now}
	if err := repo.Create(d); err != nil {
		t.Fatalf("create domain: %v", err)
	}

	dup := domain.Domain{ID: "dom-2", CustomerID: "c1", FQDN: "shop.example.com", RegistrarStatus: domain.StatusActive, ExpiresAt: now}
	if err := repo.Create(dup); !errors.Is(err, domain.ErrDomainAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want ErrDomainAlreadyExists", err)
	}

	byName, err := repo.GetByFQDN("shop.example.com")
	if err != nil {
		t.Fatalf("get by fqdn: %v", err)
	}
	if byName.ID != "dom-1" {
		t.Fatalf("id = %s, want dom-1", byName.ID)
	}
}

func TestDomainRepository_SaveVersionConflict(t *testing.T) {
	repo := NewDomainRepository()
	d := domain.Domain{ID: "dom-1", CustomerID: "c1", FQDN: "shop.example.com", RegistrarStatus: domain.StatusActive, ExpiresAt: time.Now().UTC()}
	if err := repo.Create(d); err != nil {
		t.Fatalf("create domain: %v", err)
	}

	if err := repo.Save(d); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.Save(d); !errors.Is(err, domain.ErrDomainVersionConflict) {
		t.Fatalf("stale save error = %v, want ErrDomainVersionConflict", err)
	}
}

func TestDomainRepository_ListDue(t *testing.T) {
	repo := NewDomainRepository()
	now := time.Now().UTC()

	seed := []domain.Domain{
		{ID: "dom-old", CustomerID: "c1", FQDN: "old.example.com", RegistrarStatus: domain.StatusGrace, ExpiresAt: now.Add(-48 * time.Hour)},
		{ID: "dom-new", CustomerID: "c1", FQDN: "new.example.com", RegistrarStatus: domain.StatusActive, ExpiresAt: now.Add(-time.Hour)},
		{ID: "dom-future", CustomerID: "c1", FQDN: "future.example.com", RegistrarStatus: domain.StatusActive, ExpiresAt: now.Add(24 * time.Hour)},
		{ID: "dom-released", CustomerID: "c1", FQDN: "gone.example.com", RegistrarStatus: domain.StatusReleased, ExpiresAt: now.Add(-72 * time.Hour)},
	}
	for _, d := range seed {
		if err := repo.Create(d); err != nil {
			t.Fatalf("create %s: %v", d.ID, err)
		}
	}

	due, err := repo.ListDue(now, domain.DomainCursor{}, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2 (released and future excluded)", len(due))
	}
	if due[0].ID != "dom-old" || due[1].ID != "dom-new" {
		t.Fatalf("order = [%s %s], want [dom-old dom-new]", due[0].ID, due[1].ID)
	}

	limited, err := repo.ListDue(now, domain.DomainCursor{}, 1)
	if err != nil {
		t.Fatalf("list due limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "dom-old" {
		t.Fatalf("limited = %v, want [dom-old]", limited)
	}

	// Keyset-курсор продолжает список строго после последнего элемента.
	cursor := domain.DomainCursor{ExpiresAt: limited[0].ExpiresAt, ID: limited[0].ID}
	next, err := repo.ListDue(now, cursor, 1)
	if err != nil {
		t.Fatalf("list due after cursor: %v", err)
	}
	if len(next) != 1 || next[0].ID != "dom-new" {
		t.Fatalf("after cursor = %v, want [dom-new]", next)
	}

	tail, err := repo.ListDue(now, domain.DomainCursor{ExpiresAt: next[0].ExpiresAt, ID: next[0].ID}, 1)
	if err != nil {
		t.Fatalf("list due past end: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("past end = %v, want empty", tail)
	}
}

func TestOrderRepository_CreateAndList(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()

	orders := []domain.DomainOrder{
		{ID: "order-1", CustomerID: "c1", FQDN: "a.example.com", Years: 1, AmountMinor: 100, Currency: "USD", FulfillmentStatus: domain.FulfillmentPending, CreatedAt: now.Add(-time.Hour)},
		{ID: "order-2", CustomerID: "c1", FQDN: "b.example.com", Years: 1, AmountMinor: 100, Currency: "USD", FulfillmentStatus: domain.FulfillmentPending, CreatedAt: now},
		{ID: "order-3", CustomerID: "c2", FQDN: "c.example.com", Years: 1, AmountMinor: 100, Currency: "USD", FulfillmentStatus: domain.FulfillmentPending, CreatedAt: now},
	}
	for _, order := range orders {
		if err := repo.Create(order); err != nil {
			t.Fatalf("create %s: %v", order.ID, err)
		}
	}

	if err := repo.Create(orders[0]); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want ErrOrderAlreadyExists", err)
	}

	list, err := repo.ListByCustomer("c1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d, want 2", len(list))
	}

	if err := repo.SetFulfillmentStatus("order-1", domain.FulfillmentDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	stored, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.FulfillmentStatus != domain.FulfillmentDone {
		t.Fatalf("status = %s, want fulfilled", stored.FulfillmentStatus)
	}

	if err := repo.SetFulfillmentStatus("missing", domain.FulfillmentDone); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("missing order error = %v, want ErrOrderNotFound", err)
	}
}
