package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/dms/internal/domain"
)

type domainRepository struct {
	db *sql.DB
}

// NewDomainRepository создаёт PostgreSQL-реализацию DomainRepository.
func NewDomainRepository(store *Store) domain.DomainRepository {
	return &domainRepository{db: store.DB()}
}

func (r *domainRepository) Create(d domain.Domain) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domains (
			id, customer_id, fqdn, registrar_status, expires_at,
			grace_until, redemption_until, last_payment_at,
			monthly_fee_minor, currency, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		d.ID, d.CustomerID, d.FQDN, string(d.RegistrarStatus), d.ExpiresAt,
		d.GraceUntil, d.RedemptionUntil, d.LastPaymentAt,
		d.MonthlyFeeMinor, d.Currency, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDomainAlreadyExists
		}
		return fmt.Errorf("insert domain: %w", err)
	}

	return nil
}

func (r *domainRepository) Get(id string) (domain.Domain, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByQuery(ctx, `WHERE id = $1`, id)
}

func (r *domainRepository) GetByFQDN(fqdn string) (domain.Domain, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByQuery(ctx, `WHERE fqdn = $1`, fqdn)
}

func (r *domainRepository) getByQuery(ctx context.Context, where, arg string) (domain.Domain, error) {
	query := `
		SELECT id, customer_id, fqdn, registrar_status, expires_at,
		       grace_until, redemption_until, last_payment_at,
		       monthly_fee_minor, currency, version, created_at, updated_at
		FROM domains
	` + where

	d, err := scanDomain(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Domain{}, domain.ErrDomainNotFound
		}
		return domain.Domain{}, fmt.Errorf("select domain: %w", err)
	}

	return d, nil
}

// ListDue возвращает домены для sweep'а: срок истёк, статус не released,
// строго после keyset-курсора (expires_at, id). Частичный индекс
// idx_domains_due покрывает этот запрос.
func (r *domainRepository) ListDue(before time.Time, cursor domain.DomainCursor, limit int) ([]domain.Domain, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, fqdn, registrar_status, expires_at,
		       grace_until, redemption_until, last_payment_at,
		       monthly_fee_minor, currency, version, created_at, updated_at
		FROM domains
		WHERE expires_at <= $1
		  AND registrar_status <> 'released'
		  AND (expires_at, id) > ($2, $3)
		ORDER BY expires_at ASC, id ASC
		LIMIT $4
	`, before, cursor.ExpiresAt, cursor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list due domains: %w", err)
	}
	defer rows.Close()

	domains := make([]domain.Domain, 0, limit)
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due domains: %w", err)
	}

	return domains, nil
}

func (r *domainRepository) Save(d domain.Domain) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE domains
		SET registrar_status = $1,
		    expires_at = $2,
		    grace_until = $3,
		    redemption_until = $4,
		    last_payment_at = $5,
		    monthly_fee_minor = $6,
		    currency = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $9
		  AND version = $10
	`,
		string(d.RegistrarStatus), d.ExpiresAt, d.GraceUntil, d.RedemptionUntil,
		d.LastPaymentAt, d.MonthlyFeeMinor, d.Currency, d.UpdatedAt,
		d.ID, d.Version,
	)
	if err != nil {
		return fmt.Errorf("update domain: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.domainExists(ctx, d.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrDomainNotFound
		}
		return domain.ErrDomainVersionConflict
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (domain.Domain, error) {
	var (
		d               domain.Domain
		status          string
		graceUntil      sql.NullTime
		redemptionUntil sql.NullTime
		lastPaymentAt   sql.NullTime
	)

	if err := row.Scan(
		&d.ID, &d.CustomerID, &d.FQDN, &status, &d.ExpiresAt,
		&graceUntil, &redemptionUntil, &lastPaymentAt,
		&d.MonthlyFeeMinor, &d.Currency, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return domain.Domain{}, err
	}

	d.RegistrarStatus = domain.RegistrarStatus(status)
	if graceUntil.Valid {
		t := graceUntil.Time.UTC()
		d.GraceUntil = &t
	}
	if redemptionUntil.Valid {
		t := redemptionUntil.Time.UTC()
		d.RedemptionUntil = &t
	}
	if lastPaymentAt.Valid {
		t := lastPaymentAt.Time.UTC()
		d.LastPaymentAt = &t
	}

	return d, nil
}

func (r *domainRepository) domainExists(ctx context.Context, id string) (bool, error) {
	var got string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM domains WHERE id = $1`, id).Scan(&got)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check domain exists: %w", err)
}

var _ domain.DomainRepository = (*domainRepository)(nil)
