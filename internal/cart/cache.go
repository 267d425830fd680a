package cart

import (
	"github.com/shopspring/decimal"

	"lingxian-cart/internal/domain"
)

// Recalculate recomputes the four aggregate fields of c from its groups in a
// single pass. It writes nothing else.
func Recalculate(c *domain.Cart) {
	var (
		totalCount    int
		selectedCount int
		totalPrice    = decimal.Zero
		selectedPrice = decimal.Zero
	)
	for gi := range c.Groups {
		for _, item := range c.Groups[gi].Items {
			line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			totalCount += item.Quantity
			totalPrice = totalPrice.Add(line)
			if item.Selected {
				selectedCount += item.Quantity
				selectedPrice = selectedPrice.Add(line)
			}
		}
	}
	c.TotalCount = totalCount
	c.TotalPrice = totalPrice
	c.SelectedCount = selectedCount
	c.SelectedPrice = selectedPrice
}

// AllItems flattens c in group order, then item order, into a fresh slice.
func AllItems(c *domain.Cart) []domain.CartItem {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Items)
	}
	out := make([]domain.CartItem, 0, n)
	for _, g := range c.Groups {
		out = append(out, g.Items...)
	}
	return out
}

// SelectedItems is AllItems restricted to selected lines.
func SelectedItems(c *domain.Cart) []domain.CartItem {
	var out []domain.CartItem
	for _, g := range c.Groups {
		for _, item := range g.Items {
			if item.Selected {
				out = append(out, item)
			}
		}
	}
	return out
}

// IsAllSelected reports whether c holds at least one item and every item is selected.
func IsAllSelected(c *domain.Cart) bool {
	seen := false
	for _, g := range c.Groups {
		for _, item := range g.Items {
			if !item.Selected {
				return false
			}
			seen = true
		}
	}
	return seen
}

func groupAllSelected(g *domain.MerchantGroup) bool {
	for _, item := range g.Items {
		if !item.Selected {
			return false
		}
	}
	return len(g.Items) > 0
}

func locateItem(c *domain.Cart, id string) (gi, ii int, ok bool) {
	for gi := range c.Groups {
		for ii := range c.Groups[gi].Items {
			if c.Groups[gi].Items[ii].ID == id {
				return gi, ii, true
			}
		}
	}
	return 0, 0, false
}

func locateGroup(c *domain.Cart, merchantID string) (int, bool) {
	for gi := range c.Groups {
		if c.Groups[gi].MerchantID == merchantID {
			return gi, true
		}
	}
	return 0, false
}

func totalsEqual(a, b domain.Totals) bool {
	return a.TotalCount == b.TotalCount &&
		a.SelectedCount == b.SelectedCount &&
		a.TotalPrice.Equal(b.TotalPrice) &&
		a.SelectedPrice.Equal(b.SelectedPrice)
}
