// Package cart keeps the client-side, merchant-grouped cart in step with the
// server-authoritative cart. Mutations are applied optimistically and rolled
// back when the backend call fails.
package cart

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
)

// AddedMessage is toasted after a product was added to the cart.
const AddedMessage = "Added to cart"

// API is the backend contract the Store synchronizes against.
type API interface {
	List(ctx context.Context) (*domain.Cart, error)
	Add(ctx context.Context, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	Remove(ctx context.Context, id string) error
	Select(ctx context.Context, id string, selected bool) error
	SelectMerchant(ctx context.Context, merchantID string, selected bool) error
	SelectAll(ctx context.Context, selected bool) error
	Clear(ctx context.Context) error
}

// Notifier renders the cart side effects: the count badge and transient messages.
// Methods are called without the cache locked and may read the Store.
type Notifier interface {
	SetBadge(text string)
	RemoveBadge()
	Toast(message string)
}

// Observer receives mutation outcomes, typically for metrics.
type Observer interface {
	Mutation(op string, err error)
	Rollback(op string)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the Store logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver reports every mutation outcome and rollback to o.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// Store owns the cart cache. It is the only writer of cart state.
type Store struct {
	api      API
	notifier Notifier
	observer Observer
	logger   *zap.Logger
	locks    *keyedLock

	mu   sync.Mutex
	cart domain.Cart
	// revs holds, per item id, the sequence number of the last write to that item.
	revs       map[string]uint64
	seq        uint64
	badgeCount int

	notifyMu sync.Mutex
	notified uint64
}

// NewStore builds an empty Store. Call FetchList to load the server cart.
func NewStore(api API, notifier Notifier, opts ...Option) *Store {
	s := &Store{
		api:        api,
		notifier:   notifier,
		observer:   nopObserver{},
		logger:     zap.NewNop(),
		locks:      newKeyedLock(),
		revs:       make(map[string]uint64),
		badgeCount: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	Recalculate(&s.cart)
	return s
}

// FetchList replaces the cache with the server cart. On failure the cache is left untouched.
func (s *Store) FetchList(ctx context.Context) error {
	const op = "fetch_list"
	fresh, err := s.api.List(ctx)
	if err != nil {
		s.fail(op, err)
		return err
	}
	if fresh == nil {
		fresh = &domain.Cart{}
	}

	s.mu.Lock()
	s.replaceLocked(fresh)
	u := s.publishLocked(true)
	s.mu.Unlock()
	s.notify(u)

	s.observer.Mutation(op, nil)
	return nil
}

// Add asks the backend to add quantity units of productID, then reloads the cart
// so the server-assigned line id and merchant grouping are known.
func (s *Store) Add(ctx context.Context, productID string, quantity int) error {
	const op = "add"
	if quantity < 1 {
		quantity = 1
	}
	if err := s.api.Add(ctx, productID, quantity); err != nil {
		s.fail(op, err)
		return err
	}
	s.observer.Mutation(op, nil)

	refreshErr := s.FetchList(ctx)
	s.notifier.Toast(AddedMessage)
	if refreshErr != nil {
		return fmt.Errorf("refresh after add: %w", refreshErr)
	}
	return nil
}

// UpdateQuantity sets the quantity of line id. A quantity below one removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	const op = "update_quantity"
	if quantity < 1 {
		return s.Remove(ctx, id)
	}

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	gi, ii, ok := locateItem(&s.cart, id)
	if !ok {
		s.mu.Unlock()
		return s.stale(op, domain.ErrItemNotFound, id)
	}
	prev := s.cart.Groups[gi].Items[ii].Quantity
	s.cart.Groups[gi].Items[ii].Quantity = quantity
	rev := s.stampLocked(id)
	u := s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	callErr := s.api.UpdateQuantity(ctx, id, quantity)
	if callErr == nil {
		s.observer.Mutation(op, nil)
		return nil
	}

	s.mu.Lock()
	restored := false
	if gi, ii, ok := locateItem(&s.cart, id); ok && s.revs[id] == rev {
		s.cart.Groups[gi].Items[ii].Quantity = prev
		restored = true
	}
	u = s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	s.rolledBack(op, restored, id)
	s.fail(op, callErr)
	return callErr
}

// Remove deletes line id on the backend and then reloads the cart whether or
// not the delete succeeded, so emptied merchant groups are pruned by the server.
func (s *Store) Remove(ctx context.Context, id string) error {
	const op = "remove"
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	callErr := s.api.Remove(ctx, id)
	unlock()

	if callErr != nil {
		s.fail(op, callErr)
	} else {
		s.observer.Mutation(op, nil)
	}

	refreshErr := s.FetchList(ctx)
	if callErr != nil {
		return callErr
	}
	if refreshErr != nil {
		return fmt.Errorf("refresh after remove: %w", refreshErr)
	}
	return nil
}

// Select marks line id as selected or not.
func (s *Store) Select(ctx context.Context, id string, selected bool) error {
	const op = "select"
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	gi, ii, ok := locateItem(&s.cart, id)
	if !ok {
		s.mu.Unlock()
		return s.stale(op, domain.ErrItemNotFound, id)
	}
	group := &s.cart.Groups[gi]
	prev := group.Items[ii].Selected
	group.Items[ii].Selected = selected
	group.AllSelected = groupAllSelected(group)
	rev := s.stampLocked(id)
	u := s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	callErr := s.api.Select(ctx, id, selected)
	if callErr == nil {
		s.observer.Mutation(op, nil)
		return nil
	}

	s.mu.Lock()
	restored := false
	if gi, ii, ok := locateItem(&s.cart, id); ok && s.revs[id] == rev {
		group := &s.cart.Groups[gi]
		group.Items[ii].Selected = prev
		group.AllSelected = groupAllSelected(group)
		restored = true
	}
	u = s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	s.rolledBack(op, restored, id)
	s.fail(op, callErr)
	return callErr
}

// SelectMerchant selects or clears every line of one merchant group.
func (s *Store) SelectMerchant(ctx context.Context, merchantID string, selected bool) error {
	const op = "select_merchant"
	s.mu.Lock()
	gi, ok := locateGroup(&s.cart, merchantID)
	var ids []string
	if ok {
		ids = itemIDs(s.cart.Groups[gi].Items)
	}
	s.mu.Unlock()
	if !ok {
		return s.stale(op, domain.ErrMerchantNotFound, merchantID)
	}

	unlock, err := s.locks.lock(ctx, ids...)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	gi, ok = locateGroup(&s.cart, merchantID)
	if !ok {
		s.mu.Unlock()
		return s.stale(op, domain.ErrMerchantNotFound, merchantID)
	}
	group := &s.cart.Groups[gi]
	prev := make(map[string]bool, len(group.Items))
	for ii := range group.Items {
		prev[group.Items[ii].ID] = group.Items[ii].Selected
		group.Items[ii].Selected = selected
	}
	group.AllSelected = selected
	rev := s.stampLocked(itemIDs(group.Items)...)
	u := s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	callErr := s.api.SelectMerchant(ctx, merchantID, selected)
	if callErr == nil {
		s.observer.Mutation(op, nil)
		return nil
	}

	s.mu.Lock()
	restored := false
	if gi, ok := locateGroup(&s.cart, merchantID); ok {
		group := &s.cart.Groups[gi]
		for ii := range group.Items {
			item := &group.Items[ii]
			was, tracked := prev[item.ID]
			if tracked && s.revs[item.ID] == rev {
				item.Selected = was
				restored = true
			}
		}
		group.AllSelected = groupAllSelected(group)
	}
	u = s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	s.rolledBack(op, restored, merchantID)
	s.fail(op, callErr)
	return callErr
}

// SelectAll selects or clears every line of the cart.
func (s *Store) SelectAll(ctx context.Context, selected bool) error {
	const op = "select_all"
	s.mu.Lock()
	ids := itemIDs(AllItems(&s.cart))
	s.mu.Unlock()

	unlock, err := s.locks.lock(ctx, ids...)
	if err != nil {
		return err
	}
	defer unlock()

	type groupSnapshot struct {
		allSelected bool
		items       map[string]bool
	}
	s.mu.Lock()
	snapshot := make(map[string]groupSnapshot, len(s.cart.Groups))
	var touched []string
	for gi := range s.cart.Groups {
		group := &s.cart.Groups[gi]
		gs := groupSnapshot{allSelected: group.AllSelected, items: make(map[string]bool, len(group.Items))}
		for ii := range group.Items {
			gs.items[group.Items[ii].ID] = group.Items[ii].Selected
			group.Items[ii].Selected = selected
			touched = append(touched, group.Items[ii].ID)
		}
		group.AllSelected = selected
		snapshot[group.MerchantID] = gs
	}
	rev := s.stampLocked(touched...)
	u := s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	callErr := s.api.SelectAll(ctx, selected)
	if callErr == nil {
		s.observer.Mutation(op, nil)
		return nil
	}

	s.mu.Lock()
	restored := false
	for gi := range s.cart.Groups {
		group := &s.cart.Groups[gi]
		gs, ok := snapshot[group.MerchantID]
		if !ok {
			continue
		}
		verbatim := len(group.Items) == len(gs.items)
		for ii := range group.Items {
			item := &group.Items[ii]
			was, tracked := gs.items[item.ID]
			if tracked && s.revs[item.ID] == rev {
				item.Selected = was
				restored = true
				continue
			}
			verbatim = false
		}
		if verbatim {
			group.AllSelected = gs.allSelected
		} else {
			group.AllSelected = groupAllSelected(group)
		}
	}
	u = s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	s.rolledBack(op, restored, "")
	s.fail(op, callErr)
	return callErr
}

// Clear empties the cart once the backend confirmed it. Nothing is changed locally on failure.
func (s *Store) Clear(ctx context.Context) error {
	const op = "clear"
	if err := s.api.Clear(ctx); err != nil {
		s.fail(op, err)
		return err
	}

	s.mu.Lock()
	s.cart = domain.Cart{}
	s.seq++
	s.revs = make(map[string]uint64)
	u := s.publishLocked(false)
	s.mu.Unlock()
	s.notify(u)

	s.observer.Mutation(op, nil)
	return nil
}

// Snapshot returns a deep copy of the cached cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Totals returns the current aggregates.
func (s *Store) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Totals()
}

// AllItems returns a copy of every cached line in group order.
func (s *Store) AllItems() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllItems(&s.cart)
}

// SelectedItems returns a copy of the selected lines, e.g. for a checkout summary.
func (s *Store) SelectedItems() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectedItems(&s.cart)
}

func (s *Store) IsAllSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsAllSelected(&s.cart)
}

func (s *Store) replaceLocked(fresh *domain.Cart) {
	server := fresh.Totals()
	s.cart = fresh.Clone()
	for gi := range s.cart.Groups {
		group := &s.cart.Groups[gi]
		group.AllSelected = groupAllSelected(group)
	}
	Recalculate(&s.cart)
	if !totalsEqual(server, s.cart.Totals()) {
		s.logger.Warn("cart totals from server disagree with its lines, using recomputed totals",
			zap.Int("server_total_count", server.TotalCount),
			zap.Int("total_count", s.cart.TotalCount),
			zap.String("server_total_price", server.TotalPrice.String()),
			zap.String("total_price", s.cart.TotalPrice.String()),
		)
	}

	s.seq++
	s.revs = make(map[string]uint64)
	for _, item := range AllItems(&s.cart) {
		if _, dup := s.revs[item.ID]; dup {
			s.logger.Warn("duplicate cart item id from server", zap.String("item_id", item.ID))
		}
		s.revs[item.ID] = s.seq
	}
}

func (s *Store) stampLocked(ids ...string) uint64 {
	s.seq++
	for _, id := range ids {
		s.revs[id] = s.seq
	}
	return s.seq
}

type badgeUpdate struct {
	seq   uint64
	count int
}

// publishLocked recomputes the aggregates and reports a badge change when the
// total count moved, or unconditionally when force is set.
func (s *Store) publishLocked(force bool) badgeUpdate {
	Recalculate(&s.cart)
	if !force && s.cart.TotalCount == s.badgeCount {
		return badgeUpdate{}
	}
	s.badgeCount = s.cart.TotalCount
	s.seq++
	return badgeUpdate{seq: s.seq, count: s.cart.TotalCount}
}

func (s *Store) notify(u badgeUpdate) {
	if u.seq == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	// An older update can arrive after a newer one when two mutations race.
	if u.seq <= s.notified {
		return
	}
	s.notified = u.seq
	if text, ok := BadgeText(u.count); ok {
		s.notifier.SetBadge(text)
		return
	}
	s.notifier.RemoveBadge()
}

func (s *Store) fail(op string, err error) {
	s.logger.Warn("cart call failed", zap.String("op", op), zap.Error(err))
	s.observer.Mutation(op, err)
	s.notifier.Toast(domain.UserMessage(err))
}

func (s *Store) stale(op string, sentinel error, id string) error {
	err := fmt.Errorf("%s %s: %w", op, id, sentinel)
	s.logger.Warn("cart mutation on stale cache", zap.String("op", op), zap.String("id", id))
	s.observer.Mutation(op, err)
	return err
}

func (s *Store) rolledBack(op string, restored bool, target string) {
	if !restored {
		s.logger.Debug("rollback skipped, state was overwritten since the optimistic write",
			zap.String("op", op), zap.String("target", target))
		return
	}
	s.logger.Debug("rolled back optimistic write", zap.String("op", op), zap.String("target", target))
	s.observer.Rollback(op)
}

func itemIDs(items []domain.CartItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

type nopObserver struct{}

func (nopObserver) Mutation(string, error) {}
func (nopObserver) Rollback(string)        {}

type nopNotifier struct{}

func (nopNotifier) SetBadge(string) {}
func (nopNotifier) RemoveBadge()    {}
func (nopNotifier) Toast(string)    {}
