package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-labs/parley/internal/domain"
)

type TenantRepository struct {
	db dbtx
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: pool}
}

func NewTenantRepositoryWithTx(tx pgx.Tx) *TenantRepository {
	return &TenantRepository{db: tx}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tenants (id, key, name, created_at) VALUES ($1, $2, $3, $4)`,
		tenant.ID, string(tenant.Key), tenant.Name, tenant.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrTenantAlreadyExists
	}
	return err
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	var key string
	err := r.db.QueryRow(ctx,
		`SELECT id, key, name, created_at FROM tenants WHERE id = $1`,
		id,
	).Scan(&tenant.ID, &key, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	tenant.Key = domain.TenantKey(key)
	return &tenant, nil
}

func (r *TenantRepository) GetByKey(ctx context.Context, key domain.TenantKey) (*domain.Tenant, error) {
	var tenant domain.Tenant
	var rawKey string
	err := r.db.QueryRow(ctx,
		`SELECT id, key, name, created_at FROM tenants WHERE key = $1`,
		string(key),
	).Scan(&tenant.ID, &rawKey, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	tenant.Key = domain.TenantKey(rawKey)
	return &tenant, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, key, name, created_at FROM tenants ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		var key string
		if err := rows.Scan(&tenant.ID, &key, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, err
		}
		tenant.Key = domain.TenantKey(key)
		tenants = append(tenants, &tenant)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM tenants WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}
