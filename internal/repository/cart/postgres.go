package cart

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

const lineColumns = `id::text, user_id, merchant_id::text, product_id::text, quantity, price::text, selected, created_at, updated_at`

func scanLine(row pgx.Row, extra ...any) (domain.CartLine, error) {
	var (
		line  domain.CartLine
		price string
	)
	dest := []any{
		&line.ID,
		&line.UserID,
		&line.MerchantID,
		&line.ProductID,
		&line.Quantity,
		&price,
		&line.Selected,
		&line.CreatedAt,
		&line.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.CartLine{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("cart line %s price %q: %w", line.ID, price, err)
	}
	line.Price = d
	return line, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 ORDER BY updated_at DESC, id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *postgresRepo) GetByID(ctx context.Context, userID, id string) (*domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 AND id::text = $2`
	return r.fetchLine(ctx, q, userID, id)
}

func (r *postgresRepo) GetByProduct(ctx context.Context, userID, productID string) (*domain.CartLine, error) {
	q := `SELECT ` + lineColumns + ` FROM cart_lines WHERE user_id = $1 AND product_id::text = $2`
	return r.fetchLine(ctx, q, userID, productID)
}

func (r *postgresRepo) fetchLine(ctx context.Context, q string, args ...any) (*domain.CartLine, error) {
	line, err := scanLine(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepo) Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	q := `
INSERT INTO cart_lines (user_id, merchant_id, product_id, quantity, price, selected)
VALUES ($1, $2::uuid, $3::uuid, $4, $5::numeric, $6)
RETURNING ` + lineColumns
	saved, err := scanLine(r.pool.QueryRow(ctx, q,
		line.UserID,
		line.MerchantID,
		line.ProductID,
		line.Quantity,
		line.Price.String(),
		line.Selected,
	))
	if err != nil {
		r.logger.Warn("cart repo: insert", zap.String("user_id", line.UserID), zap.String("product_id", line.ProductID), zap.Error(err))
		return nil, err
	}
	return &saved, nil
}

func (r *postgresRepo) Merge(ctx context.Context, line domain.CartLine, limit int) (*domain.CartLine, bool, error) {
	if line.Quantity > limit {
		return nil, false, domain.ErrQuantityLimit
	}
	// xmax is zero only for a freshly inserted row.
	q := `
INSERT INTO cart_lines (user_id, merchant_id, product_id, quantity, price, selected)
VALUES ($1, $2::uuid, $3::uuid, $4, $5::numeric, $6)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = cart_lines.quantity + EXCLUDED.quantity,
    updated_at = now()
WHERE cart_lines.quantity + EXCLUDED.quantity <= $7
RETURNING ` + lineColumns + `, (xmax = 0)`
	var inserted bool
	saved, err := scanLine(r.pool.QueryRow(ctx, q,
		line.UserID,
		line.MerchantID,
		line.ProductID,
		line.Quantity,
		line.Price.String(),
		line.Selected,
		limit,
	), &inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrQuantityLimit
		}
		r.logger.Warn("cart repo: merge", zap.String("user_id", line.UserID), zap.String("product_id", line.ProductID), zap.Error(err))
		return nil, false, err
	}
	return &saved, !inserted, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, userID, id string, quantity int) error {
	const q = `
UPDATE cart_lines
SET quantity = $3, updated_at = now()
WHERE user_id = $1 AND id::text = $2
`
	return r.execOne(ctx, q, userID, id, quantity)
}

func (r *postgresRepo) Delete(ctx context.Context, userID, id string) error {
	return r.execOne(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND id::text = $2`, userID, id)
}

func (r *postgresRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *postgresRepo) SetSelected(ctx context.Context, userID, id string, selected bool) error {
	const q = `
UPDATE cart_lines
SET selected = $3, updated_at = now()
WHERE user_id = $1 AND id::text = $2
`
	return r.execOne(ctx, q, userID, id, selected)
}

func (r *postgresRepo) SetSelectedByMerchant(ctx context.Context, userID, merchantID string, selected bool) (int64, error) {
	const q = `
UPDATE cart_lines
SET selected = $3, updated_at = now()
WHERE user_id = $1 AND merchant_id::text = $2
`
	tag, err := r.pool.Exec(ctx, q, userID, merchantID, selected)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *postgresRepo) SetSelectedAll(ctx context.Context, userID string, selected bool) (int64, error) {
	const q = `
UPDATE cart_lines
SET selected = $2, updated_at = now()
WHERE user_id = $1
`
	tag, err := r.pool.Exec(ctx, q, userID, selected)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// execOne runs a statement that must touch exactly one of the user's lines.
func (r *postgresRepo) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
