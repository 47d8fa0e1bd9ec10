package allocrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/db"
)

type store struct {
	conn core.Conn
}

// NewProductStore returns a store that runs every statement on conn, which
// is normally the transaction of a unit of work.
func NewProductStore(conn core.Conn) allocation.ProductStore {
	return &store{conn: conn}
}

func (s *store) Load(ctx context.Context, skuID uuid.UUID) (*allocation.Product, error) {
	m := db.StartMetric("LoadProduct")

	p, err := s.load(ctx, skuID)
	if err != nil {
		m.Complete(err)
		return nil, err
	}

	m.Complete(nil)
	return p, nil
}

func (s *store) load(ctx context.Context, skuID uuid.UUID) (*allocation.Product, error) {
	var (
		sku     allocation.SKU
		id      string
		version int64
		state   string
	)
	err := s.conn.QueryRow(ctx, `
		SELECT s.id::text, s.name, p.version_number, p.state
		  FROM products p
		  JOIN skus s ON s.id = p.sku_id
		 WHERE p.sku_id = $1::uuid`,
		skuID.String()).
		Scan(&id, &sku.Name, &version, &state)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.WithStack(core.ErrNotFound)
		}
		return nil, classify(err)
	}
	if sku.ID, err = uuid.Parse(id); err != nil {
		return nil, errors.WithStack(err)
	}
	productState, err := allocation.ParseState(state)
	if err != nil {
		return nil, err
	}

	batches, err := s.loadBatches(ctx, sku.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.loadOrderItems(ctx, sku.ID)
	if err != nil {
		return nil, err
	}
	allocations, err := s.loadAllocations(ctx, sku.ID)
	if err != nil {
		return nil, err
	}

	return allocation.RestoreProduct(sku, version, productState, batches, items, allocations)
}

func (s *store) loadBatches(ctx context.Context, skuID uuid.UUID) ([]*allocation.Batch, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, quantity, eta, state
		  FROM batches
		 WHERE sku_id = $1::uuid
		 ORDER BY seq`,
		skuID.String())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var batches []*allocation.Batch
	for rows.Next() {
		var (
			id       string
			quantity int64
			eta      pgtype.Date
			state    string
		)
		if err = rows.Scan(&id, &quantity, &eta, &state); err != nil {
			return nil, errors.WithStack(err)
		}

		batchID, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		batchState, err := allocation.ParseState(state)
		if err != nil {
			return nil, err
		}
		batches = append(batches, allocation.RestoreBatch(batchID, skuID, quantity, dateOf(eta), batchState))
	}
	if err = rows.Err(); err != nil {
		return nil, classify(err)
	}
	return batches, nil
}

func (s *store) loadOrderItems(ctx context.Context, skuID uuid.UUID) ([]*allocation.OrderItem, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, quantity, state
		  FROM order_items
		 WHERE sku_id = $1::uuid
		 ORDER BY seq`,
		skuID.String())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var items []*allocation.OrderItem
	for rows.Next() {
		var (
			id       string
			quantity int64
			state    string
		)
		if err = rows.Scan(&id, &quantity, &state); err != nil {
			return nil, errors.WithStack(err)
		}

		itemID, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		itemState, err := allocation.ParseState(state)
		if err != nil {
			return nil, err
		}
		items = append(items, &allocation.OrderItem{ID: itemID, SkuID: skuID, Quantity: quantity, State: itemState})
	}
	if err = rows.Err(); err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (s *store) loadAllocations(ctx context.Context, skuID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT a.order_item_id::text, a.batch_id::text
		  FROM allocations a
		  JOIN batches b ON b.id = a.batch_id
		 WHERE b.sku_id = $1::uuid`,
		skuID.String())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	allocations := make(map[uuid.UUID]uuid.UUID)
	for rows.Next() {
		var itemID, batchID string
		if err = rows.Scan(&itemID, &batchID); err != nil {
			return nil, errors.WithStack(err)
		}
		item, err := uuid.Parse(itemID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		batch, err := uuid.Parse(batchID)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		allocations[item] = batch
	}
	if err = rows.Err(); err != nil {
		return nil, classify(err)
	}
	return allocations, nil
}

func (s *store) LoadAll(ctx context.Context, limit, offset int) ([]*allocation.Product, error) {
	m := db.StartMetric("LoadAllProducts")

	rows, err := s.conn.Query(ctx, `
		SELECT sku_id::text
		  FROM products
		 WHERE state = $1
		 ORDER BY sku_id
		 LIMIT $2 OFFSET $3`,
		string(allocation.Active), limit, offset)
	if err != nil {
		m.Complete(err)
		return nil, classify(err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			break
		}
		var skuID uuid.UUID
		if skuID, err = uuid.Parse(id); err != nil {
			break
		}
		ids = append(ids, skuID)
	}
	rows.Close()
	if err == nil {
		err = rows.Err()
	}
	if err != nil {
		m.Complete(err)
		return nil, classify(err)
	}

	products := make([]*allocation.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.load(ctx, id)
		if err != nil {
			m.Complete(err)
			return nil, err
		}
		products = append(products, p)
	}

	m.Complete(nil)
	return products, nil
}

func (s *store) Insert(ctx context.Context, p *allocation.Product) error {
	m := db.StartMetric("InsertProduct")

	_, err := s.conn.Exec(ctx, `
		INSERT INTO skus (id, name)
		     VALUES ($1::uuid, $2)`,
		p.SkuID().String(), p.SKU().Name)
	if err != nil {
		m.Complete(err)
		return classify(err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO products (sku_id, version_number, state)
		     VALUES ($1::uuid, $2, $3)`,
		p.SkuID().String(), p.Version(), string(p.State()))
	if err != nil {
		m.Complete(err)
		return classify(err)
	}

	if err = s.writeChildren(ctx, p); err != nil {
		m.Complete(err)
		return err
	}

	m.Complete(nil)
	return nil
}

func (s *store) Update(ctx context.Context, p *allocation.Product, loadedVersion int64) error {
	m := db.StartMetric("UpdateProduct")

	ct, err := s.conn.Exec(ctx, `
		UPDATE products
		   SET version_number = $2, state = $3
		 WHERE sku_id = $1::uuid
		   AND version_number = $4`,
		p.SkuID().String(), p.Version(), string(p.State()), loadedVersion)
	if err != nil {
		m.Complete(err)
		return classify(err)
	}
	if ct.RowsAffected() == 0 {
		m.Conflict()
		return errors.WithMessagef(core.ErrConflict, "sku %s is no longer at version %d", p.SkuID(), loadedVersion)
	}

	_, err = s.conn.Exec(ctx, `
		UPDATE skus
		   SET name = $2
		 WHERE id = $1::uuid`,
		p.SkuID().String(), p.SKU().Name)
	if err != nil {
		m.Complete(err)
		return classify(err)
	}

	if err = s.writeChildren(ctx, p); err != nil {
		m.Complete(err)
		return err
	}

	m.Complete(nil)
	return nil
}

// writeChildren upserts every batch and order item and rewrites the
// allocation rows of the product. Discarded rows are kept.
func (s *store) writeChildren(ctx context.Context, p *allocation.Product) error {
	for _, b := range p.AllBatches() {
		_, err := s.conn.Exec(ctx, `
			INSERT INTO batches (id, sku_id, quantity, eta, state)
			     VALUES ($1::uuid, $2::uuid, $3, $4::date, $5)
			ON CONFLICT (id) DO UPDATE
			        SET quantity = EXCLUDED.quantity, eta = EXCLUDED.eta, state = EXCLUDED.state`,
			b.ID.String(), p.SkuID().String(), b.Quantity, dateParam(b.ETA), string(b.State))
		if err != nil {
			return classify(err)
		}
	}

	for _, oi := range p.AllOrderItems() {
		_, err := s.conn.Exec(ctx, `
			INSERT INTO order_items (id, sku_id, quantity, state)
			     VALUES ($1::uuid, $2::uuid, $3, $4)
			ON CONFLICT (id) DO UPDATE
			        SET quantity = EXCLUDED.quantity, state = EXCLUDED.state`,
			oi.ID.String(), p.SkuID().String(), oi.Quantity, string(oi.State))
		if err != nil {
			return classify(err)
		}
	}

	_, err := s.conn.Exec(ctx, `
		DELETE FROM allocations
		 WHERE batch_id IN (SELECT id FROM batches WHERE sku_id = $1::uuid)`,
		p.SkuID().String())
	if err != nil {
		return classify(err)
	}

	for _, b := range p.AllBatches() {
		for _, oi := range b.AllocatedOrderItems() {
			_, err = s.conn.Exec(ctx, `
				INSERT INTO allocations (order_item_id, batch_id)
				     VALUES ($1::uuid, $2::uuid)`,
				oi.ID.String(), b.ID.String())
			if err != nil {
				return classify(err)
			}
		}
	}
	return nil
}

// Primary keys whose violation means the product is already stored.
const (
	skusPkey     = "skus_pkey"
	productsPkey = "products_pkey"
)

func classify(err error) error {
	switch {
	case db.IsConflict(err):
		return errors.WithMessage(core.ErrConflict, err.Error())
	case db.IsDuplicateOf(err, skusPkey, productsPkey):
		return errors.WithMessage(allocation.ErrProductExists, err.Error())
	default:
		return errors.WithStack(err)
	}
}

func dateParam(eta *time.Time) pgtype.Date {
	if eta == nil {
		return pgtype.Date{Status: pgtype.Null}
	}
	return pgtype.Date{Time: *allocation.ArrivalDay(eta), Status: pgtype.Present}
}

func dateOf(d pgtype.Date) *time.Time {
	if d.Status != pgtype.Present {
		return nil
	}
	return allocation.ArrivalDay(&d.Time)
}
