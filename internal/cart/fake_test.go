package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"lingxian-cart/internal/domain"
)

// fakeBackend is an in-memory cart server. It applies successful calls to its
// own state, so List always returns what a real server would.
type fakeBackend struct {
	mu      sync.Mutex
	state   domain.Cart
	failOn  map[string]error
	calls   []string
	nextID  int
	catalog map[string]catalogEntry

	// hooks run before the call is applied; a non-nil error fails the call.
	updateHook func(ctx context.Context, id string, quantity int) error

	lastAddProduct string
	lastAddQty     int
	lastUpdateID   string
	lastUpdateQty  int
	lastSelectID   string
	lastSelected   bool
	lastMerchantID string
}

type catalogEntry struct {
	merchantID string
	name       string
	price      string
}

func newFakeBackend(initial domain.Cart) *fakeBackend {
	b := &fakeBackend{
		state:   initial.Clone(),
		failOn:  make(map[string]error),
		catalog: make(map[string]catalogEntry),
	}
	Recalculate(&b.state)
	return b
}

var errBoom = &domain.TransportError{Err: errors.New("connection reset")}

func (b *fakeBackend) record(op string) error {
	b.calls = append(b.calls, op)
	if err, ok := b.failOn[op]; ok {
		return err
	}
	return nil
}

func (b *fakeBackend) countCalls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (b *fakeBackend) setFail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failOn, op)
		return
	}
	b.failOn[op] = err
}

func (b *fakeBackend) List(_ context.Context) (*domain.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("list"); err != nil {
		return nil, err
	}
	out := b.state.Clone()
	return &out, nil
}

func (b *fakeBackend) Add(_ context.Context, productID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAddProduct = productID
	b.lastAddQty = quantity
	if err := b.record("add"); err != nil {
		return err
	}
	entry, ok := b.catalog[productID]
	if !ok {
		return domain.NewBusinessError(domain.CodeProductNotExist, "product does not exist")
	}
	for gi := range b.state.Groups {
		for ii := range b.state.Groups[gi].Items {
			if b.state.Groups[gi].Items[ii].ProductID == productID {
				b.state.Groups[gi].Items[ii].Quantity += quantity
				Recalculate(&b.state)
				return nil
			}
		}
	}
	b.nextID++
	item := domain.CartItem{
		ID:        "line-" + strconv.Itoa(b.nextID),
		ProductID: productID,
		Name:      entry.name,
		Price:     decimal.RequireFromString(entry.price),
		Quantity:  quantity,
		Selected:  true,
	}
	if gi, ok := locateGroup(&b.state, entry.merchantID); ok {
		b.state.Groups[gi].Items = append(b.state.Groups[gi].Items, item)
	} else {
		b.state.Groups = append(b.state.Groups, domain.MerchantGroup{MerchantID: entry.merchantID, Items: []domain.CartItem{item}})
	}
	b.refreshGroups()
	return nil
}

func (b *fakeBackend) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	b.mu.Lock()
	hook := b.updateHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id, quantity); err != nil {
			b.mu.Lock()
			b.calls = append(b.calls, "update_quantity")
			b.mu.Unlock()
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUpdateID = id
	b.lastUpdateQty = quantity
	if err := b.record("update_quantity"); err != nil {
		return err
	}
	gi, ii, ok := locateItem(&b.state, id)
	if !ok {
		return domain.NewBusinessError(domain.CodeNotFound, "cart item does not exist")
	}
	b.state.Groups[gi].Items[ii].Quantity = quantity
	Recalculate(&b.state)
	return nil
}

func (b *fakeBackend) Remove(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("remove"); err != nil {
		return err
	}
	gi, ii, ok := locateItem(&b.state, id)
	if !ok {
		return domain.NewBusinessError(domain.CodeNotFound, "cart item does not exist")
	}
	items := b.state.Groups[gi].Items
	b.state.Groups[gi].Items = append(items[:ii:ii], items[ii+1:]...)
	b.refreshGroups()
	return nil
}

func (b *fakeBackend) Select(_ context.Context, id string, selected bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSelectID = id
	b.lastSelected = selected
	if err := b.record("select"); err != nil {
		return err
	}
	gi, ii, ok := locateItem(&b.state, id)
	if !ok {
		return domain.NewBusinessError(domain.CodeNotFound, "cart item does not exist")
	}
	b.state.Groups[gi].Items[ii].Selected = selected
	b.refreshGroups()
	return nil
}

func (b *fakeBackend) SelectMerchant(_ context.Context, merchantID string, selected bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastMerchantID = merchantID
	b.lastSelected = selected
	if err := b.record("select_merchant"); err != nil {
		return err
	}
	if gi, ok := locateGroup(&b.state, merchantID); ok {
		for ii := range b.state.Groups[gi].Items {
			b.state.Groups[gi].Items[ii].Selected = selected
		}
	}
	b.refreshGroups()
	return nil
}

func (b *fakeBackend) SelectAll(_ context.Context, selected bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSelected = selected
	if err := b.record("select_all"); err != nil {
		return err
	}
	for gi := range b.state.Groups {
		for ii := range b.state.Groups[gi].Items {
			b.state.Groups[gi].Items[ii].Selected = selected
		}
	}
	b.refreshGroups()
	return nil
}

func (b *fakeBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("clear"); err != nil {
		return err
	}
	b.state = domain.Cart{}
	Recalculate(&b.state)
	return nil
}

// refreshGroups prunes empty groups and recomputes derived fields, as the server does on list.
func (b *fakeBackend) refreshGroups() {
	groups := b.state.Groups[:0]
	for _, g := range b.state.Groups {
		if len(g.Items) == 0 {
			continue
		}
		g.AllSelected = groupAllSelected(&g)
		groups = append(groups, g)
	}
	b.state.Groups = groups
	Recalculate(&b.state)
}

type recordingNotifier struct {
	mu      sync.Mutex
	badges  []string
	toasts  []string
	removed int
}

func (n *recordingNotifier) SetBadge(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, text)
}

func (n *recordingNotifier) RemoveBadge() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, "")
	n.removed++
}

func (n *recordingNotifier) Toast(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, message)
}

func (n *recordingNotifier) lastBadge() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.badges) == 0 {
		return ""
	}
	return n.badges[len(n.badges)-1]
}

func (n *recordingNotifier) lastToast() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.toasts) == 0 {
		return ""
	}
	return n.toasts[len(n.toasts)-1]
}

type recordingObserver struct {
	mu        sync.Mutex
	failures  map[string]int
	rollbacks map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failures: map[string]int{}, rollbacks: map[string]int{}}
}

func (o *recordingObserver) Mutation(op string, err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[op]++
}

func (o *recordingObserver) Rollback(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rollbacks[op]++
}

func item(id, price string, qty int, selected bool) domain.CartItem {
	return domain.CartItem{
		ID:        id,
		ProductID: "p-" + id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		Selected:  selected,
	}
}

func group(merchantID string, items ...domain.CartItem) domain.MerchantGroup {
	g := domain.MerchantGroup{MerchantID: merchantID, MerchantName: "Merchant " + merchantID, Items: items}
	g.AllSelected = groupAllSelected(&g)
	return g
}

func cartOf(groups ...domain.MerchantGroup) domain.Cart {
	c := domain.Cart{Groups: groups}
	Recalculate(&c)
	return c
}
