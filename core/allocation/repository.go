package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core"
)

type ProductRepository interface {
	Get(ctx context.Context, skuID uuid.UUID) (*Product, error)
	Add(ctx context.Context, product *Product) error
	AddAll(ctx context.Context, products ...*Product) error
	List(ctx context.Context, limit, offset int) ([]*Product, error)
	Seen() []*Product
}

// ProductStore is the storage side of a repository, bound to one open
// transaction.
type ProductStore interface {
	// Load returns core.ErrNotFound when no product exists for the SKU.
	Load(ctx context.Context, skuID uuid.UUID) (*Product, error)
	// LoadAll returns active products only.
	LoadAll(ctx context.Context, limit, offset int) ([]*Product, error)
	// Insert returns ErrProductExists when the SKU is taken.
	Insert(ctx context.Context, product *Product) error
	// Update returns core.ErrConflict when the stored version is no longer
	// loadedVersion.
	Update(ctx context.Context, product *Product, loadedVersion int64) error
}

type tracked struct {
	product       *Product
	added         bool
	loadedVersion int64
}

// TrackingRepository is an identity map over a ProductStore. It remembers
// every product read or added so the unit of work can flush them and drain
// their events.
type TrackingRepository struct {
	store ProductStore
	seen  map[uuid.UUID]*tracked
	order []*tracked
}

func NewTrackingRepository(store ProductStore) *TrackingRepository {
	return &TrackingRepository{store: store, seen: make(map[uuid.UUID]*tracked)}
}

func (r *TrackingRepository) Get(ctx context.Context, skuID uuid.UUID) (*Product, error) {
	if t, ok := r.seen[skuID]; ok {
		if t.product.Discarded() {
			return nil, errors.WithMessagef(ErrInvalidSku, "sku %s", skuID)
		}
		return t.product, nil
	}

	p, err := r.store.Load(ctx, skuID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, errors.WithMessagef(ErrInvalidSku, "sku %s", skuID)
		}
		return nil, errors.WithStack(err)
	}

	r.track(p, false)
	if p.Discarded() {
		return nil, errors.WithMessagef(ErrInvalidSku, "sku %s", skuID)
	}
	return p, nil
}

func (r *TrackingRepository) Add(_ context.Context, product *Product) error {
	if t, ok := r.seen[product.SkuID()]; ok {
		if t.product == product {
			return nil
		}
		return errors.WithMessagef(ErrProductExists, "sku %s", product.SkuID())
	}
	r.track(product, true)
	return nil
}

func (r *TrackingRepository) AddAll(ctx context.Context, products ...*Product) error {
	for _, p := range products {
		if err := r.Add(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *TrackingRepository) List(ctx context.Context, limit, offset int) ([]*Product, error) {
	loaded, err := r.store.LoadAll(ctx, limit, offset)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	products := make([]*Product, 0, len(loaded))
	for _, p := range loaded {
		if t, ok := r.seen[p.SkuID()]; ok {
			p = t.product
		} else {
			r.track(p, false)
		}
		if !p.Discarded() {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *TrackingRepository) Seen() []*Product {
	products := make([]*Product, 0, len(r.order))
	for _, t := range r.order {
		products = append(products, t.product)
	}
	return products
}

// Flush writes added products and every seen product whose version moved.
// Products that were only read are left alone.
func (r *TrackingRepository) Flush(ctx context.Context) error {
	for _, t := range r.order {
		switch {
		case t.added:
			if err := r.store.Insert(ctx, t.product); err != nil {
				return err
			}
		case t.product.Version() != t.loadedVersion:
			if err := r.store.Update(ctx, t.product, t.loadedVersion); err != nil {
				return err
			}
		default:
			continue
		}
		t.added = false
		t.loadedVersion = t.product.Version()
	}
	return nil
}

func (r *TrackingRepository) track(p *Product, added bool) {
	t := &tracked{product: p, added: added, loadedVersion: p.Version()}
	r.seen[p.SkuID()] = t
	r.order = append(r.order, t)
}
