package cart

import (
	"context"

	"lingxian-cart/internal/domain"
)

// Repository persists cart lines. Every method is scoped to one user; a line
// owned by someone else behaves as if it did not exist.
type Repository interface {
	// ListByUser returns the user's lines, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetByID(ctx context.Context, userID, id string) (*domain.CartLine, error)
	GetByProduct(ctx context.Context, userID, productID string) (*domain.CartLine, error)
	Insert(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	// Merge inserts line, or adds its quantity to the user's existing line for
	// the same product, in one atomic step. A result above limit is rejected
	// with domain.ErrQuantityLimit and nothing is written. merged reports
	// whether an existing line was incremented.
	Merge(ctx context.Context, line domain.CartLine, limit int) (saved *domain.CartLine, merged bool, err error)
	UpdateQuantity(ctx context.Context, userID, id string, quantity int) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
	SetSelected(ctx context.Context, userID, id string, selected bool) error
	SetSelectedByMerchant(ctx context.Context, userID, merchantID string, selected bool) (int64, error)
	SetSelectedAll(ctx context.Context, userID string, selected bool) (int64, error)
}
