package product

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingxian-cart/internal/domain"
)

// Memory is a process-local Repository used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	merchants map[string]domain.Merchant
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[string]domain.Product),
		merchants: make(map[string]domain.Merchant),
	}
}

func (m *Memory) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *Memory) List(_ context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.products {
		if existing.MerchantID == p.MerchantID && existing.Name == p.Name {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			m.products[id] = p
			return &p, nil
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.products[p.ID] = p
	return &p, nil
}

// Delete removes a product. Cart lines pointing at it are left alone.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	delete(m.products, id)
	m.mu.Unlock()
}

func (m *Memory) MerchantsByIDs(_ context.Context, ids []string) (map[string]domain.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.Merchant, len(ids))
	for _, id := range ids {
		if merchant, ok := m.merchants[id]; ok {
			out[id] = merchant
		}
	}
	return out, nil
}

func (m *Memory) UpsertMerchant(_ context.Context, merchant domain.Merchant) (*domain.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.merchants {
		if existing.Name == merchant.Name {
			existing.Logo = merchant.Logo
			m.merchants[id] = existing
			return &existing, nil
		}
	}
	if merchant.ID == "" {
		merchant.ID = uuid.NewString()
	}
	if merchant.CreatedAt.IsZero() {
		merchant.CreatedAt = time.Now().UTC()
	}
	m.merchants[merchant.ID] = merchant
	return &merchant, nil
}
