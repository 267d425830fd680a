package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
)

// Catalog is the part of the product repository the seed writes to.
type Catalog interface {
	UpsertMerchant(ctx context.Context, m domain.Merchant) (*domain.Merchant, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type productSeed struct {
	Merchant string
	Name     string
	Image    string
	Price    string
	Stock    int
}

var merchants = []domain.Merchant{
	{Name: "Green Valley Farm", Logo: "merchants/green-valley.png"},
	{Name: "Harbor Seafood", Logo: "merchants/harbor-seafood.png"},
}

var products = []productSeed{
	{Merchant: "Green Valley Farm", Name: "Fuji Apple 1kg", Image: "products/fuji-apple.jpg", Price: "12.90", Stock: 200},
	{Merchant: "Green Valley Farm", Name: "Organic Spinach 500g", Image: "products/spinach.jpg", Price: "6.50", Stock: 80},
	{Merchant: "Harbor Seafood", Name: "Live Prawns 500g", Image: "products/prawns.jpg", Price: "45.00", Stock: 30},
	{Merchant: "Harbor Seafood", Name: "Salmon Fillet 300g", Image: "products/salmon.jpg", Price: "39.80", Stock: 25},
}

// Apply upserts the demo merchants and products. It is idempotent.
func Apply(ctx context.Context, catalog Catalog, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := make(map[string]string, len(merchants))
	for _, m := range merchants {
		saved, err := catalog.UpsertMerchant(ctx, m)
		if err != nil {
			return fmt.Errorf("upsert merchant %s: %w", m.Name, err)
		}
		ids[m.Name] = saved.ID
	}

	for _, p := range products {
		saved, err := catalog.Upsert(ctx, domain.Product{
			MerchantID: ids[p.Merchant],
			Name:       p.Name,
			Image:      p.Image,
			Price:      decimal.RequireFromString(p.Price),
			Stock:      p.Stock,
			Status:     domain.ProductOnShelf,
		})
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
		logger.Debug("seeded product", zap.String("id", saved.ID), zap.String("name", saved.Name))
	}
	logger.Info("seed applied", zap.Int("merchants", len(merchants)), zap.Int("products", len(products)))
	return nil
}
