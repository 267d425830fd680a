package product

import (
	"context"

	"lingxian-cart/internal/domain"
)

// Repository stores the catalog the cart backend validates against.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// ListByIDs returns the products found among ids, keyed by id. Missing ids are absent.
	ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	// Upsert inserts a product or updates the one with the same merchant and name.
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)

	MerchantsByIDs(ctx context.Context, ids []string) (map[string]domain.Merchant, error)
	// UpsertMerchant inserts a merchant or updates the one with the same name.
	UpsertMerchant(ctx context.Context, m domain.Merchant) (*domain.Merchant, error)
}
