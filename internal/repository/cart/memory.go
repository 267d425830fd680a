package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingxian-cart/internal/domain"
)

var errDuplicateLine = errors.New("cart line for product already exists")

// Memory is a process-local Repository used when no database is configured.
type Memory struct {
	mu    sync.Mutex
	lines map[string]*memLine
	seq   int64
	now   func() time.Time
}

// memLine carries a touch sequence so ordering stays stable when two updates
// share a timestamp.
type memLine struct {
	domain.CartLine
	touched int64
}

func NewMemory() *Memory {
	return &Memory{
		lines: make(map[string]*memLine),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) touch(l *memLine) {
	m.seq++
	l.touched = m.seq
	l.UpdatedAt = m.now()
}

func (m *Memory) ListByUser(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make([]*memLine, 0)
	for _, l := range m.lines {
		if l.UserID == userID {
			owned = append(owned, l)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].touched > owned[j].touched })

	out := make([]domain.CartLine, len(owned))
	for i, l := range owned {
		out[i] = l.CartLine
	}
	return out, nil
}

func (m *Memory) GetByID(_ context.Context, userID, id string) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	line := l.CartLine
	return &line, nil
}

func (m *Memory) GetByProduct(_ context.Context, userID, productID string) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.byProduct(userID, productID)
	if l == nil {
		return nil, domain.ErrNotFound
	}
	line := l.CartLine
	return &line, nil
}

func (m *Memory) Insert(_ context.Context, line domain.CartLine) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byProduct(line.UserID, line.ProductID) != nil {
		return nil, errDuplicateLine
	}
	return m.insertLocked(line), nil
}

func (m *Memory) Merge(_ context.Context, line domain.CartLine, limit int) (*domain.CartLine, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.byProduct(line.UserID, line.ProductID); l != nil {
		if l.Quantity+line.Quantity > limit {
			return nil, false, domain.ErrQuantityLimit
		}
		l.Quantity += line.Quantity
		m.touch(l)
		saved := l.CartLine
		return &saved, true, nil
	}
	if line.Quantity > limit {
		return nil, false, domain.ErrQuantityLimit
	}
	return m.insertLocked(line), false, nil
}

func (m *Memory) byProduct(userID, productID string) *memLine {
	for _, l := range m.lines {
		if l.UserID == userID && l.ProductID == productID {
			return l
		}
	}
	return nil
}

func (m *Memory) insertLocked(line domain.CartLine) *domain.CartLine {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	stored := &memLine{CartLine: line}
	m.touch(stored)
	stored.CreatedAt = stored.UpdatedAt
	m.lines[line.ID] = stored
	saved := stored.CartLine
	return &saved
}

func (m *Memory) UpdateQuantity(_ context.Context, userID, id string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.owned(userID, id)
	if err != nil {
		return err
	}
	l.Quantity = quantity
	m.touch(l)
	return nil
}

func (m *Memory) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(userID, id); err != nil {
		return err
	}
	delete(m.lines, id)
	return nil
}

func (m *Memory) DeleteAll(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.lines {
		if l.UserID == userID {
			delete(m.lines, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) SetSelected(_ context.Context, userID, id string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.owned(userID, id)
	if err != nil {
		return err
	}
	l.Selected = selected
	m.touch(l)
	return nil
}

func (m *Memory) SetSelectedByMerchant(_ context.Context, userID, merchantID string, selected bool) (int64, error) {
	return m.setWhere(func(l *memLine) bool { return l.UserID == userID && l.MerchantID == merchantID }, selected), nil
}

func (m *Memory) SetSelectedAll(_ context.Context, userID string, selected bool) (int64, error) {
	return m.setWhere(func(l *memLine) bool { return l.UserID == userID }, selected), nil
}

func (m *Memory) setWhere(match func(*memLine) bool, selected bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hit []*memLine
	for _, l := range m.lines {
		if match(l) {
			hit = append(hit, l)
		}
	}
	// Touch in existing order so a bulk update keeps the lines' relative order.
	sort.Slice(hit, func(i, j int) bool { return hit[i].touched < hit[j].touched })
	for _, l := range hit {
		l.Selected = selected
		m.touch(l)
	}
	return int64(len(hit))
}

func (m *Memory) owned(userID, id string) (*memLine, error) {
	l, ok := m.lines[id]
	if !ok || l.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return l, nil
}
