package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ProductOffShelf marks a product that can no longer be bought.
	ProductOffShelf = 0
	// ProductOnShelf marks a product that can be added to carts.
	ProductOnShelf = 1
)

type Product struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchantId"`
	Name       string          `json:"name"`
	Image      string          `json:"image,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Status     int             `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Merchant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
