package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const productColumns = `id::text, merchant_id::text, name, image, price::text, stock, status, created_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.MerchantID, &p.Name, &p.Image, &price, &p.Stock, &p.Status, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id::text = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Warn("product repo: get", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + productColumns + ` FROM products WHERE id::text = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products ORDER BY created_at, name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Debug("product repo: list", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (merchant_id, name, image, price, stock, status)
VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6)
ON CONFLICT (merchant_id, name) DO UPDATE
SET image = EXCLUDED.image,
    price = EXCLUDED.price,
    stock = EXCLUDED.stock,
    status = EXCLUDED.status
RETURNING ` + productColumns
	saved, err := scanProduct(r.pool.QueryRow(ctx, q, p.MerchantID, p.Name, p.Image, p.Price.String(), p.Stock, p.Status))
	if err != nil {
		r.logger.Warn("product repo: upsert", zap.String("name", p.Name), zap.Error(err))
		return nil, err
	}
	return &saved, nil
}

func (r *postgresRepo) MerchantsByIDs(ctx context.Context, ids []string) (map[string]domain.Merchant, error) {
	out := make(map[string]domain.Merchant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id::text, name, logo, created_at FROM merchants WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.Merchant
		if err := rows.Scan(&m.ID, &m.Name, &m.Logo, &m.CreatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (r *postgresRepo) UpsertMerchant(ctx context.Context, m domain.Merchant) (*domain.Merchant, error) {
	const q = `
INSERT INTO merchants (name, logo)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET logo = EXCLUDED.logo
RETURNING id::text, name, logo, created_at
`
	var saved domain.Merchant
	if err := r.pool.QueryRow(ctx, q, m.Name, m.Logo).Scan(&saved.ID, &saved.Name, &saved.Logo, &saved.CreatedAt); err != nil {
		return nil, err
	}
	return &saved, nil
}
