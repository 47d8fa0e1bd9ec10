package memrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/db"
)

// Store keeps detached copies of products in memory. Readers never share a
// product with the store or with each other.
type Store struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*allocation.Product
}

func NewStore(products ...*allocation.Product) *Store {
	s := &Store{products: make(map[uuid.UUID]*allocation.Product)}
	for _, p := range products {
		s.products[p.SkuID()] = p.Clone()
	}
	return s
}

func (s *Store) load(skuID uuid.UUID) (*allocation.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[skuID]
	if !ok {
		return nil, errors.WithStack(core.ErrNotFound)
	}
	return p.Clone(), nil
}

// loadAll pages over active products ordered by SKU id, the same order the
// Postgres store uses.
func (s *Store) loadAll(limit, offset int) []*allocation.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*allocation.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Discarded() {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].SkuID().String() < active[j].SkuID().String()
	})

	if offset > len(active) {
		offset = len(active)
	}
	active = active[offset:]
	if limit >= 0 && limit < len(active) {
		active = active[:limit]
	}

	products := make([]*allocation.Product, 0, len(active))
	for _, p := range active {
		products = append(products, p.Clone())
	}
	return products
}

// write is a pending change. loadedVersion is ignored for inserts.
type write struct {
	product       *allocation.Product
	insert        bool
	loadedVersion int64
}

// apply checks every write against the stored state and only then stores
// them, so a commit is all or nothing.
func (s *Store) apply(writes []write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		stored, ok := s.products[w.product.SkuID()]
		switch {
		case w.insert && ok:
			return errors.WithMessagef(allocation.ErrProductExists, "sku %s", w.product.SkuID())
		case !w.insert && !ok:
			return errors.WithMessagef(core.ErrNotFound, "sku %s", w.product.SkuID())
		case !w.insert && stored.Version() != w.loadedVersion:
			return errors.WithMessagef(core.ErrConflict, "sku %s is no longer at version %d", w.product.SkuID(), w.loadedVersion)
		}
	}

	for _, w := range writes {
		s.products[w.product.SkuID()] = w.product.Clone()
	}
	return nil
}

// Len counts stored products, discarded ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// staged is the ProductStore seen by one unit of work. Reads go to the
// shared store, writes wait for the commit.
type staged struct {
	store  *Store
	writes []write
}

func (s *staged) Load(_ context.Context, skuID uuid.UUID) (*allocation.Product, error) {
	m := db.StartMetric("LoadProduct")
	p, err := s.store.load(skuID)
	m.Complete(err)
	return p, err
}

func (s *staged) LoadAll(_ context.Context, limit, offset int) ([]*allocation.Product, error) {
	m := db.StartMetric("LoadAllProducts")
	products := s.store.loadAll(limit, offset)
	m.Complete(nil)
	return products, nil
}

func (s *staged) Insert(_ context.Context, product *allocation.Product) error {
	s.writes = append(s.writes, write{product: product, insert: true})
	return nil
}

func (s *staged) Update(_ context.Context, product *allocation.Product, loadedVersion int64) error {
	s.writes = append(s.writes, write{product: product, loadedVersion: loadedVersion})
	return nil
}
