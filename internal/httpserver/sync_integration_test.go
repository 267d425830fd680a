package httpserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lingxian-cart/internal/auth"
	"lingxian-cart/internal/cart"
	"lingxian-cart/internal/client"
	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/metrics"
	cartrepo "lingxian-cart/internal/repository/cart"
	productrepo "lingxian-cart/internal/repository/product"
	cartsvc "lingxian-cart/internal/service/cart"
	"lingxian-cart/internal/session"
)

type syncEnv struct {
	ctx      context.Context
	server   *httptest.Server
	session  *session.Memory
	caller   *client.Client
	notifier *cart.LogNotifier
	observer *metrics.Registry
	store    *cart.Store

	farm  domain.Merchant
	apple domain.Product
	pear  domain.Product
	bread domain.Product
}

func newSyncEnv(t *testing.T) *syncEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	catalog := productrepo.NewMemory()
	farm, err := catalog.UpsertMerchant(ctx, domain.Merchant{Name: "Green Farm"})
	require.NoError(t, err)
	bakery, err := catalog.UpsertMerchant(ctx, domain.Merchant{Name: "Corner Bakery"})
	require.NoError(t, err)
	product := func(m *domain.Merchant, name, price string, stock int) domain.Product {
		p, err := catalog.Upsert(ctx, domain.Product{
			MerchantID: m.ID,
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Stock:      stock,
			Status:     domain.ProductOnShelf,
		})
		require.NoError(t, err)
		return *p
	}

	env := &syncEnv{ctx: ctx, farm: *farm}
	env.apple = product(farm, "Apple", "3.50", 10)
	env.pear = product(farm, "Pear", "2.00", 5)
	env.bread = product(bakery, "Bread", "6.25", 2)

	router := buildRouter(zap.NewNop(), Deps{
		CartSvc:  cartsvc.New(cartrepo.NewMemory(), catalog, nil),
		Tokens:   auth.NewService("test-secret", time.Hour),
		DevLogin: true,
	})
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)

	env.session = session.NewMemory(0)
	env.caller, err = client.New(client.Config{
		BaseURL: env.server.URL + "/api",
		Timeout: 5 * time.Second,
		Retry:   client.DefaultRetryConfig(),
	}, env.session, nil)
	require.NoError(t, err)

	_, err = client.Login(ctx, env.caller, env.session, "u1")
	require.NoError(t, err)

	env.notifier = cart.NewLogNotifier(nil)
	env.observer = metrics.NewRegistry()
	env.store = cart.NewStore(client.NewCartAPI(env.caller, client.DefaultCartRoot), env.notifier, cart.WithObserver(env.observer))
	require.NoError(t, env.store.FetchList(ctx))
	return env
}

func (e *syncEnv) lineID(t *testing.T, productID string) string {
	t.Helper()
	for _, item := range e.store.AllItems() {
		if item.ProductID == productID {
			return item.ID
		}
	}
	t.Fatalf("no cart line for product %s", productID)
	return ""
}

// serverTotals reloads the cart through a fresh store, as a second device would.
func (e *syncEnv) serverTotals(t *testing.T) domain.Totals {
	t.Helper()
	other := cart.NewStore(client.NewCartAPI(e.caller, client.DefaultCartRoot), nil)
	require.NoError(t, other.FetchList(e.ctx))
	return other.Totals()
}

func assertTotals(t *testing.T, got domain.Totals, count int, price string, selectedCount int, selectedPrice string) {
	t.Helper()
	assert.Equal(t, count, got.TotalCount, "total count")
	assert.True(t, decimal.RequireFromString(price).Equal(got.TotalPrice), "total price %s", got.TotalPrice)
	assert.Equal(t, selectedCount, got.SelectedCount, "selected count")
	assert.True(t, decimal.RequireFromString(selectedPrice).Equal(got.SelectedPrice), "selected price %s", got.SelectedPrice)
}

func TestSync_FullCartLifecycle(t *testing.T) {
	e := newSyncEnv(t)
	ctx := e.ctx
	assert.Equal(t, "", e.notifier.Badge())

	require.NoError(t, e.store.Add(ctx, e.apple.ID, 2))
	require.NoError(t, e.store.Add(ctx, e.bread.ID, 1))
	require.NoError(t, e.store.Add(ctx, e.pear.ID, 1))
	assert.Equal(t, cart.AddedMessage, e.notifier.LastToast())
	assertTotals(t, e.store.Totals(), 4, "15.25", 4, "15.25")
	assert.Equal(t, "4", e.notifier.Badge())

	pear := e.lineID(t, e.pear.ID)
	require.NoError(t, e.store.UpdateQuantity(ctx, pear, 3))
	assertTotals(t, e.store.Totals(), 6, "19.25", 6, "19.25")
	assertTotals(t, e.serverTotals(t), 6, "19.25", 6, "19.25")

	require.NoError(t, e.store.SelectMerchant(ctx, e.farm.ID, false))
	assertTotals(t, e.store.Totals(), 6, "19.25", 1, "6.25")
	assertTotals(t, e.serverTotals(t), 6, "19.25", 1, "6.25")
	assert.False(t, e.store.IsAllSelected())

	require.NoError(t, e.store.SelectAll(ctx, true))
	assert.True(t, e.store.IsAllSelected())
	assert.Len(t, e.store.SelectedItems(), 3)

	require.NoError(t, e.store.Remove(ctx, e.lineID(t, e.bread.ID)))
	assert.Len(t, e.store.Snapshot().Groups, 1, "emptied merchant group is pruned")
	assertTotals(t, e.serverTotals(t), 5, "13", 5, "13")

	require.NoError(t, e.store.Clear(ctx))
	assert.Empty(t, e.store.Snapshot().Groups)
	assertTotals(t, e.serverTotals(t), 0, "0", 0, "0")
	assert.Equal(t, "", e.notifier.Badge())
}

func TestSync_BusinessFailuresRollBack(t *testing.T) {
	e := newSyncEnv(t)
	ctx := e.ctx
	require.NoError(t, e.store.Add(ctx, e.pear.ID, 2))
	before := e.store.Snapshot()

	err := e.store.UpdateQuantity(ctx, e.lineID(t, e.pear.ID), 9)
	var be *domain.BusinessError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, domain.CodeStockNotEnough, be.Code)
	assert.Equal(t, before, e.store.Snapshot())
	assert.Equal(t, be.Message, e.notifier.LastToast())
	assert.Equal(t, "2", e.notifier.Badge())

	err = e.store.Add(ctx, e.bread.ID, 3)
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, domain.CodeStockNotEnough, be.Code)
	assert.Equal(t, before, e.store.Snapshot())

	err = e.store.Add(ctx, "00000000-0000-0000-0000-000000000000", 1)
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, domain.CodeProductNotExist, be.Code)
}

func TestSync_SessionExpiryClearsCredentials(t *testing.T) {
	e := newSyncEnv(t)
	ctx := e.ctx
	require.NoError(t, e.store.Add(ctx, e.apple.ID, 1))
	before := e.store.Snapshot()

	require.NoError(t, e.session.Set(ctx, session.KeyToken, "expired"))
	require.NoError(t, e.session.Set(ctx, session.KeyUserInfo, `{"userId":"u1"}`))

	err := e.store.Select(ctx, e.lineID(t, e.apple.ID), false)
	require.Error(t, err)
	assert.True(t, domain.IsSessionExpired(err))
	assert.Equal(t, before, e.store.Snapshot(), "optimistic select rolled back")

	_, err = e.session.Get(ctx, session.KeyToken)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.session.Get(ctx, session.KeyUserInfo)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
