package ordering

import (
	"context"
	"sort"
	"sync"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memState is one consistent snapshot of the fake store
type memState struct {
	parents  map[uuid.UUID]ordering.Parent
	students map[uuid.UUID]ordering.Student
	canteens map[uuid.UUID]ordering.Canteen
	items    map[uuid.UUID]ordering.MenuItem
	orders   map[uuid.UUID]ordering.Order
}

func newMemState() *memState {
	return &memState{
		parents:  map[uuid.UUID]ordering.Parent{},
		students: map[uuid.UUID]ordering.Student{},
		canteens: map[uuid.UUID]ordering.Canteen{},
		items:    map[uuid.UUID]ordering.MenuItem{},
		orders:   map[uuid.UUID]ordering.Order{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.parents {
		c.parents[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.canteens {
		c.canteens[k] = v
	}
	for k, v := range s.items {
		c.items[k] = copyMenuItem(v)
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

func copyMenuItem(m ordering.MenuItem) ordering.MenuItem {
	if m.DailyStockCount != nil {
		n := *m.DailyStockCount
		m.DailyStockCount = &n
	}
	return m
}

func copyOrder(o ordering.Order) ordering.Order {
	o.Items = append([]ordering.OrderItem(nil), o.Items...)
	o.ClearDomainEvents()
	return o
}

// memStore is a transactional in-memory store. Begin snapshots the committed
// state, Commit swaps the snapshot in and Rollback drops it.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// insertHook runs before each order insert; a non-nil error aborts it
	insertHook      func(s *memStore, order *ordering.Order) error
	updateParentErr error
	beginErr        error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (s *memStore) New() ordering.UnitOfWork {
	return &memUoW{store: s}
}

func (s *memStore) parent(id uuid.UUID) ordering.Parent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.parents[id]
}

func (s *memStore) item(id uuid.UUID) ordering.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMenuItem(s.state.items[id])
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// commitOrder writes an order straight into committed state, as another session would
func (s *memStore) commitOrder(order *ordering.Order) {
	s.state.orders[order.ID] = copyOrder(*order)
}

type memUoW struct {
	store *memStore
	tx    *memState
}

func (u *memUoW) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ordering.ErrTransactionActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.store.beginErr != nil {
		return u.store.beginErr
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.tx = u.store.state.clone()
	return nil
}

func (u *memUoW) Commit() error {
	if u.tx == nil {
		return ordering.ErrNoTransaction
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.state = u.tx
	u.tx = nil
	return nil
}

func (u *memUoW) Rollback() error {
	u.tx = nil
	return nil
}

func (u *memUoW) InTransaction() bool { return u.tx != nil }

// with runs fn against the active snapshot, or committed state when none is open
func (u *memUoW) with(fn func(s *memState) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.tx != nil {
		return fn(u.tx)
	}
	return fn(u.store.state)
}

func (u *memUoW) Parents() ordering.ParentRepository     { return memParents{u} }
func (u *memUoW) Students() ordering.StudentRepository   { return memStudents{u} }
func (u *memUoW) Canteens() ordering.CanteenRepository   { return memCanteens{u} }
func (u *memUoW) MenuItems() ordering.MenuItemRepository { return memMenuItems{u} }
func (u *memUoW) Orders() ordering.OrderRepository       { return memOrders{u} }

type memParents struct{ u *memUoW }

func (r memParents) FindByID(_ context.Context, id uuid.UUID) (*ordering.Parent, error) {
	var out *ordering.Parent
	err := r.u.with(func(s *memState) error {
		p, ok := s.parents[id]
		if !ok {
			return shared.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memParents) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ordering.Parent, error) {
	return r.FindByID(ctx, id)
}

func (r memParents) Update(_ context.Context, parent *ordering.Parent) error {
	if r.u.store.updateParentErr != nil {
		return r.u.store.updateParentErr
	}
	return r.u.with(func(s *memState) error {
		cur, ok := s.parents[parent.ID]
		if !ok || cur.Version != parent.Version {
			return shared.ErrConcurrencyConflict
		}
		parent.Version++
		s.parents[parent.ID] = *parent
		return nil
	})
}

type memStudents struct{ u *memUoW }

func (r memStudents) FindByID(_ context.Context, id uuid.UUID) (*ordering.Student, error) {
	var out *ordering.Student
	err := r.u.with(func(s *memState) error {
		st, ok := s.students[id]
		if !ok {
			return shared.ErrNotFound
		}
		out = &st
		return nil
	})
	return out, err
}

type memCanteens struct{ u *memUoW }

func (r memCanteens) FindByID(_ context.Context, id uuid.UUID) (*ordering.Canteen, error) {
	var out *ordering.Canteen
	err := r.u.with(func(s *memState) error {
		c, ok := s.canteens[id]
		if !ok {
			return shared.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

type memMenuItems struct{ u *memUoW }

func (r memMenuItems) FindByID(_ context.Context, id uuid.UUID) (*ordering.MenuItem, error) {
	var out *ordering.MenuItem
	err := r.u.with(func(s *memState) error {
		m, ok := s.items[id]
		if !ok {
			return shared.ErrNotFound
		}
		c := copyMenuItem(m)
		out = &c
		return nil
	})
	return out, err
}

func (r memMenuItems) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*ordering.MenuItem, error) {
	var out []*ordering.MenuItem
	err := r.u.with(func(s *memState) error {
		for _, id := range ids {
			if m, ok := s.items[id]; ok {
				c := copyMenuItem(m)
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r memMenuItems) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*ordering.MenuItem, error) {
	return r.FindByIDs(ctx, ids)
}

func (r memMenuItems) Update(_ context.Context, item *ordering.MenuItem) error {
	return r.u.with(func(s *memState) error {
		cur, ok := s.items[item.ID]
		if !ok || cur.Version != item.Version {
			return shared.ErrConcurrencyConflict
		}
		item.Version++
		s.items[item.ID] = copyMenuItem(*item)
		return nil
	})
}

type memOrders struct{ u *memUoW }

func (r memOrders) FindByID(_ context.Context, id uuid.UUID) (*ordering.Order, error) {
	var out *ordering.Order
	err := r.u.with(func(s *memState) error {
		o, ok := s.orders[id]
		if !ok {
			return shared.ErrNotFound
		}
		c := copyOrder(o)
		out = &c
		return nil
	})
	return out, err
}

func (r memOrders) FindByIdempotencyKey(_ context.Context, key string) (*ordering.Order, error) {
	var out *ordering.Order
	err := r.u.with(func(s *memState) error {
		for _, o := range s.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
				c := copyOrder(o)
				out = &c
				return nil
			}
		}
		return shared.ErrNotFound
	})
	return out, err
}

func (r memOrders) Insert(_ context.Context, order *ordering.Order) error {
	return r.u.with(func(s *memState) error {
		if hook := r.u.store.insertHook; hook != nil {
			if err := hook(r.u.store, order); err != nil {
				return err
			}
		}
		if order.IdempotencyKey != nil {
			for _, o := range s.orders {
				if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
					return ordering.ErrDuplicateIdempotencyKey
				}
			}
		}
		s.orders[order.ID] = copyOrder(*order)
		return nil
	})
}

func (r memOrders) Update(_ context.Context, order *ordering.Order) error {
	return r.u.with(func(s *memState) error {
		cur, ok := s.orders[order.ID]
		if !ok || cur.Version != order.Version {
			return shared.ErrConcurrencyConflict
		}
		order.Version++
		s.orders[order.ID] = copyOrder(*order)
		return nil
	})
}

func (r memOrders) List(_ context.Context, filter ordering.OrderFilter) ([]*ordering.Order, int64, error) {
	var matched []*ordering.Order
	err := r.u.with(func(s *memState) error {
		for _, o := range s.orders {
			if filter.ParentID != nil && o.ParentID != *filter.ParentID {
				continue
			}
			if filter.StudentID != nil && o.StudentID != *filter.StudentID {
				continue
			}
			if filter.CanteenID != nil && o.CanteenID != *filter.CanteenID {
				continue
			}
			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}
			if filter.FulfilmentDate != nil && !o.FulfilmentDate.Equal(*filter.FulfilmentDate) {
				continue
			}
			c := copyOrder(o)
			matched = append(matched, &c)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
