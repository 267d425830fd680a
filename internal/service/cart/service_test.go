package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"lingxian-cart/internal/domain"
	cartrepo "lingxian-cart/internal/repository/cart"
	productrepo "lingxian-cart/internal/repository/product"
)

type fixture struct {
	svc     *Service
	lines   *cartrepo.Memory
	catalog *productrepo.Memory
	farm    domain.Merchant
	bakery  domain.Merchant
	apple   domain.Product
	pear    domain.Product
	bread   domain.Product
	retired domain.Product
	ctx     context.Context
	userID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{ctx: ctx, userID: "u1", lines: cartrepo.NewMemory(), catalog: productrepo.NewMemory()}

	merchant := func(name string) domain.Merchant {
		m, err := f.catalog.UpsertMerchant(ctx, domain.Merchant{Name: name})
		if err != nil {
			t.Fatalf("UpsertMerchant: %v", err)
		}
		return *m
	}
	product := func(m domain.Merchant, name, price string, stock, status int) domain.Product {
		p, err := f.catalog.Upsert(ctx, domain.Product{
			MerchantID: m.ID,
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Stock:      stock,
			Status:     status,
		})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		return *p
	}

	f.farm = merchant("Green Farm")
	f.bakery = merchant("Corner Bakery")
	f.apple = product(f.farm, "Apple", "3.50", 10, domain.ProductOnShelf)
	f.pear = product(f.farm, "Pear", "2.00", 5, domain.ProductOnShelf)
	f.bread = product(f.bakery, "Bread", "6.25", 2, domain.ProductOnShelf)
	f.retired = product(f.bakery, "Old Cake", "9.00", 4, domain.ProductOffShelf)
	f.svc = New(f.lines, f.catalog, nil)
	return f
}

func (f *fixture) add(t *testing.T, productID string, qty int) {
	t.Helper()
	if err := f.svc.Add(f.ctx, f.userID, productID, qty); err != nil {
		t.Fatalf("Add(%s, %d): %v", productID, qty, err)
	}
}

func (f *fixture) lineFor(t *testing.T, productID string) domain.CartLine {
	t.Helper()
	line, err := f.lines.GetByProduct(f.ctx, f.userID, productID)
	if err != nil {
		t.Fatalf("GetByProduct(%s): %v", productID, err)
	}
	return *line
}

func expectCode(t *testing.T, err error, code int) {
	t.Helper()
	var be *domain.BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("expected business error %d, got %v", code, err)
	}
	if be.Code != code {
		t.Fatalf("expected code %d, got %d (%s)", code, be.Code, be.Message)
	}
}

func TestList_GroupsAndTotals(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.apple.ID, 2)
	f.add(t, f.bread.ID, 1)
	f.add(t, f.pear.ID, 3)
	if err := f.svc.Select(f.ctx, f.userID, f.lineFor(t, f.pear.ID).ID, false); err != nil {
		t.Fatalf("Select: %v", err)
	}

	view, err := f.svc.List(f.ctx, f.userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(view.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(view.Groups))
	}
	// Pear was touched last, so its merchant leads.
	farm := view.Groups[0]
	if farm.MerchantID != f.farm.ID || farm.MerchantName != "Green Farm" {
		t.Fatalf("unexpected first group %+v", farm)
	}
	if len(farm.Items) != 2 || farm.Items[0].ProductID != f.pear.ID {
		t.Fatalf("unexpected farm items %+v", farm.Items)
	}
	if farm.AllSelected {
		t.Fatalf("farm group should not be all selected")
	}
	if !farm.TotalPrice.Equal(decimal.RequireFromString("13")) || !farm.SelectedPrice.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("farm prices total=%s selected=%s", farm.TotalPrice, farm.SelectedPrice)
	}
	if !farm.Items[0].Subtotal.Equal(decimal.RequireFromString("6")) {
		t.Fatalf("pear subtotal %s", farm.Items[0].Subtotal)
	}
	if !view.Groups[1].AllSelected {
		t.Fatalf("bakery group should be all selected")
	}

	if view.TotalCount != 6 || view.SelectedCount != 3 {
		t.Fatalf("counts total=%d selected=%d", view.TotalCount, view.SelectedCount)
	}
	if !view.TotalPrice.Equal(decimal.RequireFromString("19.25")) || !view.SelectedPrice.Equal(decimal.RequireFromString("13.25")) {
		t.Fatalf("prices total=%s selected=%s", view.TotalPrice, view.SelectedPrice)
	}
}

func TestList_SkipsVanishedProductsAndNamesUnknownMerchants(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.apple.ID, 1)
	f.add(t, f.bread.ID, 1)
	orphan, err := f.catalog.Upsert(f.ctx, domain.Product{MerchantID: "gone", Name: "Orphan", Price: decimal.NewFromInt(1), Stock: 1, Status: domain.ProductOnShelf})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	f.add(t, orphan.ID, 1)
	f.catalog.Delete(f.bread.ID)

	view, err := f.svc.List(f.ctx, f.userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(view.Groups) != 2 {
		t.Fatalf("expected bakery group dropped, got %+v", view.Groups)
	}
	if view.Groups[0].MerchantName != UnknownMerchantName {
		t.Fatalf("expected unknown merchant first, got %q", view.Groups[0].MerchantName)
	}
	if view.TotalCount != 2 {
		t.Fatalf("expected vanished product excluded from totals, got %d", view.TotalCount)
	}
}

func TestList_Empty(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.List(f.ctx, f.userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if view.Groups == nil || len(view.Groups) != 0 || !view.TotalPrice.IsZero() {
		t.Fatalf("unexpected empty view %+v", view)
	}
}

func TestAdd_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name      string
		userID    string
		productID string
		qty       int
		code      int
	}{
		{"no user", "", f.apple.ID, 1, domain.CodeUnauthorized},
		{"no product", f.userID, " ", 1, domain.CodeBadRequest},
		{"zero quantity", f.userID, f.apple.ID, 0, domain.CodeBadRequest},
		{"unknown product", f.userID, "missing", 1, domain.CodeProductNotExist},
		{"off shelf", f.userID, f.retired.ID, 1, domain.CodeProductOffShelf},
		{"over stock", f.userID, f.bread.ID, 3, domain.CodeStockNotEnough},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectCode(t, f.svc.Add(f.ctx, tc.userID, tc.productID, tc.qty), tc.code)
		})
	}
}

func TestAdd_MergesExistingLine(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.apple.ID, 4)
	f.add(t, f.apple.ID, 3)

	line := f.lineFor(t, f.apple.ID)
	if line.Quantity != 7 || !line.Selected {
		t.Fatalf("unexpected merged line %+v", line)
	}
	if !line.Price.Equal(f.apple.Price) || line.MerchantID != f.farm.ID {
		t.Fatalf("line snapshot mismatch %+v", line)
	}
	expectCode(t, f.svc.Add(f.ctx, f.userID, f.apple.ID, 4), domain.CodeStockNotEnough)
	if got := f.lineFor(t, f.apple.ID).Quantity; got != 7 {
		t.Fatalf("rejected merge changed quantity to %d", got)
	}
}

func TestAdd_ConcurrentAddsAllCount(t *testing.T) {
	f := newFixture(t)
	const taps = 10

	var g errgroup.Group
	for i := 0; i < taps; i++ {
		g.Go(func() error {
			return f.svc.Add(f.ctx, f.userID, f.apple.ID, 1)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Add: %v", err)
	}

	if got := f.lineFor(t, f.apple.ID).Quantity; got != taps {
		t.Fatalf("expected quantity %d, got %d", taps, got)
	}
	lines, err := f.lines.ListByUser(f.ctx, f.userID)
	if err != nil || len(lines) != 1 {
		t.Fatalf("expected a single line, got %+v %v", lines, err)
	}
}

func TestAdd_ConcurrentAddsStopAtStock(t *testing.T) {
	f := newFixture(t)
	const taps = 8

	var g errgroup.Group
	results := make([]error, taps)
	for i := 0; i < taps; i++ {
		g.Go(func() error {
			results[i] = f.svc.Add(f.ctx, f.userID, f.pear.ID, 1)
			return nil
		})
	}
	_ = g.Wait()

	var rejected int
	for _, err := range results {
		if err == nil {
			continue
		}
		expectCode(t, err, domain.CodeStockNotEnough)
		rejected++
	}
	if got := f.lineFor(t, f.pear.ID).Quantity; got != f.pear.Stock || rejected != taps-f.pear.Stock {
		t.Fatalf("expected quantity %d and %d rejections, got %d and %d", f.pear.Stock, taps-f.pear.Stock, got, rejected)
	}
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.pear.ID, 1)
	id := f.lineFor(t, f.pear.ID).ID

	if err := f.svc.UpdateQuantity(f.ctx, f.userID, id, 5); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if got := f.lineFor(t, f.pear.ID).Quantity; got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}
	expectCode(t, f.svc.UpdateQuantity(f.ctx, f.userID, id, 6), domain.CodeStockNotEnough)
	expectCode(t, f.svc.UpdateQuantity(f.ctx, f.userID, id, 0), domain.CodeBadRequest)
	expectCode(t, f.svc.UpdateQuantity(f.ctx, "someone-else", id, 1), domain.CodeNotFound)
	expectCode(t, f.svc.UpdateQuantity(f.ctx, f.userID, "missing", 1), domain.CodeNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.apple.ID, 1)
	f.add(t, f.bread.ID, 1)
	id := f.lineFor(t, f.apple.ID).ID

	if err := f.svc.Remove(f.ctx, f.userID, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	expectCode(t, f.svc.Remove(f.ctx, f.userID, id), domain.CodeNotFound)

	if err := f.svc.Clear(f.ctx, f.userID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	view, err := f.svc.List(f.ctx, f.userID)
	if err != nil || len(view.Groups) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v %v", view, err)
	}
}

func TestSelectVariants(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.apple.ID, 1)
	f.add(t, f.pear.ID, 1)
	f.add(t, f.bread.ID, 1)

	if err := f.svc.SelectMerchant(f.ctx, f.userID, f.farm.ID, false); err != nil {
		t.Fatalf("SelectMerchant: %v", err)
	}
	if f.lineFor(t, f.apple.ID).Selected || f.lineFor(t, f.pear.ID).Selected || !f.lineFor(t, f.bread.ID).Selected {
		t.Fatalf("merchant select touched the wrong lines")
	}
	if err := f.svc.SelectMerchant(f.ctx, f.userID, "nobody", true); err != nil {
		t.Fatalf("SelectMerchant on empty merchant: %v", err)
	}

	if err := f.svc.SelectAll(f.ctx, f.userID, true); err != nil {
		t.Fatalf("SelectAll: %v", err)
	}
	view, _ := f.svc.List(f.ctx, f.userID)
	if view.SelectedCount != view.TotalCount {
		t.Fatalf("expected everything selected, got %d/%d", view.SelectedCount, view.TotalCount)
	}

	expectCode(t, f.svc.Select(f.ctx, f.userID, "missing", true), domain.CodeNotFound)
	expectCode(t, f.svc.SelectAll(f.ctx, "", true), domain.CodeUnauthorized)
}

type failingLines struct {
	cartrepo.Repository
	err error
}

func (f failingLines) ListByUser(context.Context, string) ([]domain.CartLine, error) {
	return nil, f.err
}

func (f failingLines) SetSelected(context.Context, string, string, bool) error {
	return f.err
}

func TestInfrastructureErrorsPassThrough(t *testing.T) {
	boom := errors.New("db down")
	svc := New(failingLines{Repository: cartrepo.NewMemory(), err: boom}, productrepo.NewMemory(), nil)

	if _, err := svc.List(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected db error, got %v", err)
	}
	if err := svc.Select(context.Background(), "u1", "x", true); !errors.Is(err, boom) {
		t.Fatalf("expected db error, got %v", err)
	}
}
