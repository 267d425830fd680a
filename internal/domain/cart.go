package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the client-held, merchant-grouped view of a user's cart.
// The four aggregate fields are derived from Groups and are only ever written by
// the aggregation step.
type Cart struct {
	Groups        []MerchantGroup `json:"merchantGroups"`
	TotalCount    int             `json:"totalCount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	SelectedCount int             `json:"selectedCount"`
	SelectedPrice decimal.Decimal `json:"selectedPrice"`
}

// MerchantGroup holds every cart line of one seller, in server order.
type MerchantGroup struct {
	MerchantID   string     `json:"merchantId"`
	MerchantName string     `json:"merchantName"`
	MerchantLogo string     `json:"merchantLogo,omitempty"`
	Items        []CartItem `json:"items"`
	AllSelected  bool       `json:"allSelected"`
}

// CartItem is one product line within a merchant group.
type CartItem struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"productId"`
	MerchantID string          `json:"merchantId,omitempty"`
	Name       string          `json:"productName"`
	Image      string          `json:"productImage,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Selected   bool            `json:"selected"`
	Stock      int             `json:"stock,omitempty"`
	Status     int             `json:"status,omitempty"`
}

// Totals is the aggregate part of a Cart.
type Totals struct {
	TotalCount    int             `json:"totalCount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	SelectedCount int             `json:"selectedCount"`
	SelectedPrice decimal.Decimal `json:"selectedPrice"`
}

// Totals returns the aggregate fields of c.
func (c *Cart) Totals() Totals {
	return Totals{
		TotalCount:    c.TotalCount,
		TotalPrice:    c.TotalPrice,
		SelectedCount: c.SelectedCount,
		SelectedPrice: c.SelectedPrice,
	}
}

// Clone returns a deep copy of c that shares no slices with it.
func (c *Cart) Clone() Cart {
	out := *c
	out.Groups = make([]MerchantGroup, len(c.Groups))
	for i, g := range c.Groups {
		out.Groups[i] = g
		out.Groups[i].Items = append([]CartItem(nil), g.Items...)
	}
	return out
}

// CartLine is the persisted row behind a CartItem on the backend.
type CartLine struct {
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	MerchantID string          `json:"merchantId"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Selected   bool            `json:"selected"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
