package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.DomainOrder) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_orders (
			id, customer_id, fqdn, years, plan_code, amount_minor, currency,
			fulfillment_status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.CustomerID, order.FQDN, order.Years, order.PlanCode,
		order.AmountMinor, order.Currency, string(order.FulfillmentStatus), order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert domain order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.DomainOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.DomainOrder
	var fulfillment string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, fqdn, years, plan_code, amount_minor, currency,
		       fulfillment_status, created_at
		FROM domain_orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.FQDN, &order.Years, &order.PlanCode,
		&order.AmountMinor, &order.Currency, &fulfillment, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DomainOrder{}, domain.ErrOrderNotFound
		}
		return domain.DomainOrder{}, fmt.Errorf("select domain order: %w", err)
	}
	order.FulfillmentStatus = domain.FulfillmentStatus(fulfillment)

	return order, nil
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.DomainOrder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, customer_id, fqdn, years, plan_code, amount_minor, currency,
		       fulfillment_status, created_at
		FROM domain_orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list domain orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.DomainOrder, 0)
	for rows.Next() {
		var order domain.DomainOrder
		var fulfillment string
		if err := rows.Scan(
			&order.ID, &order.CustomerID, &order.FQDN, &order.Years, &order.PlanCode,
			&order.AmountMinor, &order.Currency, &fulfillment, &order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan domain order row: %w", err)
		}
		order.FulfillmentStatus = domain.FulfillmentStatus(fulfillment)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domain order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) SetFulfillmentStatus(id string, status domain.FulfillmentStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE domain_orders
		SET fulfillment_status = $2
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update fulfillment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
