package allocation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Product is the consistency boundary for one SKU: its batches, the order
// items registered against it and the events raised since it was loaded.
// A Product must only be used by one unit of work at a time.
type Product struct {
	sku     SKU
	version int64
	state   State
	batches []*Batch
	items   []*OrderItem
	events  []Event
}

func NewProduct(sku SKU) *Product {
	p := &Product{sku: sku, state: Active}
	p.record(NewProductCreated(sku.ID))
	return p
}

// RestoreProduct rebuilds a product from storage. allocations maps order
// item IDs to the batch holding them. The outbox starts empty.
func RestoreProduct(sku SKU, version int64, state State, batches []*Batch, items []*OrderItem, allocations map[uuid.UUID]uuid.UUID) (*Product, error) {
	p := &Product{sku: sku, version: version, state: state}

	for _, b := range batches {
		if b.SkuID != sku.ID {
			return nil, errors.WithMessagef(ErrSkuMismatch, "batch %s", b.ID)
		}
		p.batches = append(p.batches, b)
	}
	for _, oi := range items {
		if oi.SkuID != sku.ID {
			return nil, errors.WithMessagef(ErrSkuMismatch, "order item %s", oi.ID)
		}
		p.items = append(p.items, oi)
	}

	for itemID, batchID := range allocations {
		oi := p.orderItem(itemID)
		if oi == nil {
			return nil, errors.WithMessagef(ErrOrderItemNotFound, "allocation of %s", itemID)
		}
		b := p.batch(batchID)
		if b == nil {
			return nil, errors.WithMessagef(ErrBatchNotFound, "allocation to %s", batchID)
		}
		b.hold(oi)
	}

	return p, nil
}

func (p *Product) SKU() SKU {
	return p.sku
}

func (p *Product) SkuID() uuid.UUID {
	return p.sku.ID
}

func (p *Product) Version() int64 {
	return p.version
}

func (p *Product) State() State {
	return p.state
}

func (p *Product) Discarded() bool {
	return p.state == Discarded
}

// Equal reports whether both products describe the same SKU.
func (p *Product) Equal(o *Product) bool {
	return o != nil && p.sku.ID == o.sku.ID
}

// Batches returns the active batches in registration order.
func (p *Product) Batches() []*Batch {
	batches := make([]*Batch, 0, len(p.batches))
	for _, b := range p.batches {
		if !b.Discarded() {
			batches = append(batches, b)
		}
	}
	return batches
}

// AllBatches includes discarded batches, which are kept for audit.
func (p *Product) AllBatches() []*Batch {
	return append([]*Batch(nil), p.batches...)
}

// OrderItems returns the registered order items that are still active.
func (p *Product) OrderItems() []*OrderItem {
	items := make([]*OrderItem, 0, len(p.items))
	for _, oi := range p.items {
		if !oi.Discarded() {
			items = append(items, oi)
		}
	}
	return items
}

func (p *Product) AllOrderItems() []*OrderItem {
	return append([]*OrderItem(nil), p.items...)
}

func (p *Product) Batch(id uuid.UUID) (*Batch, error) {
	b := p.batch(id)
	if b == nil || b.Discarded() {
		return nil, errors.WithMessagef(ErrBatchNotFound, "batch %s", id)
	}
	return b, nil
}

// OrderItem returns a registered order item, discarded or not.
func (p *Product) OrderItem(id uuid.UUID) (*OrderItem, error) {
	oi := p.orderItem(id)
	if oi == nil {
		return nil, errors.WithMessagef(ErrOrderItemNotFound, "order item %s", id)
	}
	return oi, nil
}

// AllocatedBatch returns the batch currently holding the order item.
func (p *Product) AllocatedBatch(orderItemID uuid.UUID) (*Batch, bool) {
	b := p.holder(orderItemID)
	return b, b != nil
}

// PendingEvents returns the outbox without draining it.
func (p *Product) PendingEvents() []Event {
	return append([]Event(nil), p.events...)
}

func (p *Product) RegisterBatch(b *Batch) error {
	if b.SkuID != p.sku.ID {
		return errors.WithMessagef(ErrSkuMismatch, "batch %s sku %s product %s", b.ID, b.SkuID, p.sku.ID)
	}
	if p.batch(b.ID) != nil {
		return nil
	}

	p.batches = append(p.batches, b)
	p.bump()
	p.record(NewBatchCreated(p.sku.ID, b.ID, b.Quantity))
	return nil
}

// DeregisterBatch discards a batch and releases every order item it held.
// Discarding an already discarded batch does nothing.
func (p *Product) DeregisterBatch(batchID uuid.UUID) error {
	b := p.batch(batchID)
	if b == nil {
		return errors.WithMessagef(ErrBatchNotFound, "batch %s", batchID)
	}
	if b.Discarded() {
		return nil
	}

	for _, oi := range b.AllocatedOrderItems() {
		b.Deallocate(oi)
		p.record(NewOrderItemDeallocated(p.sku.ID, oi.ID, oi.Quantity))
	}
	b.State = Discarded
	p.bump()
	p.record(NewBatchDiscarded(p.sku.ID, b.ID))
	return nil
}

func (p *Product) RegisterOrderItem(oi *OrderItem) error {
	if oi.SkuID != p.sku.ID {
		return errors.WithMessagef(ErrSkuMismatch, "order item %s sku %s product %s", oi.ID, oi.SkuID, p.sku.ID)
	}
	if oi.Discarded() {
		return errors.WithMessagef(ErrOrderItemDiscarded, "order item %s", oi.ID)
	}
	if registered := p.orderItem(oi.ID); registered != nil {
		if registered.Discarded() {
			return errors.WithMessagef(ErrOrderItemDiscarded, "order item %s", oi.ID)
		}
		return nil
	}

	p.items = append(p.items, oi)
	p.bump()
	p.record(NewOrderItemCreated(p.sku.ID, oi.ID, oi.Quantity))
	return nil
}

// DeregisterOrderItem soft deletes an order item, releasing any stock it
// held. Unknown or already discarded items are ignored.
func (p *Product) DeregisterOrderItem(oi *OrderItem) error {
	if oi.SkuID != p.sku.ID {
		return errors.WithMessagef(ErrSkuMismatch, "order item %s sku %s product %s", oi.ID, oi.SkuID, p.sku.ID)
	}
	registered := p.orderItem(oi.ID)
	if registered == nil || registered.Discarded() {
		oi.State = Discarded
		return nil
	}

	if b := p.holder(registered.ID); b != nil {
		b.Deallocate(registered)
		p.record(NewOrderItemDeallocated(p.sku.ID, registered.ID, registered.Quantity))
	}
	registered.State = Discarded
	oi.State = Discarded
	p.bump()
	p.record(NewOrderItemDiscarded(p.sku.ID, registered.ID))
	return nil
}

// Allocate binds the order item to the first batch able to hold it,
// earliest ETA first and batches without an ETA last. Unregistered items are
// registered first. When nothing fits an OutOfStock event is recorded and a
// nil batch is returned without an error.
func (p *Product) Allocate(oi *OrderItem) (*Batch, error) {
	registered := p.orderItem(oi.ID)
	if registered == nil {
		if err := p.RegisterOrderItem(oi); err != nil {
			return nil, err
		}
		registered = oi
	}
	if registered.Discarded() {
		return nil, errors.WithMessagef(ErrOrderItemDiscarded, "order item %s", oi.ID)
	}

	return p.allocate(registered)
}

// ChangeBatchQuantity resizes a batch. If the batch ends up over-allocated,
// allocated items are released one at a time, in no particular order, until
// it is not.
func (p *Product) ChangeBatchQuantity(batchID uuid.UUID, quantity int64) (*Batch, error) {
	if quantity < 0 {
		return nil, errors.WithMessagef(ErrInvalidQuantity, "batch quantity %d", quantity)
	}
	b, err := p.Batch(batchID)
	if err != nil {
		return nil, err
	}

	b.Quantity = quantity
	for b.AvailableQuantity() < 0 {
		oi := b.anyAllocated()
		b.Deallocate(oi)
		p.record(NewOrderItemDeallocated(p.sku.ID, oi.ID, oi.Quantity))
	}
	p.bump()
	p.record(NewBatchQuantityChanged(p.sku.ID, b.ID, quantity))
	return b, nil
}

// UpdateOrderItemQuantity changes the requested quantity. An item that was
// allocated is released and allocated again at its new size; the returned
// batch is nil when it was not allocated or no longer fits.
func (p *Product) UpdateOrderItemQuantity(orderItemID uuid.UUID, quantity int64) (*Batch, error) {
	if quantity < 1 {
		return nil, errors.WithMessagef(ErrInvalidQuantity, "order item quantity %d", quantity)
	}
	oi, err := p.OrderItem(orderItemID)
	if err != nil {
		return nil, err
	}
	if oi.Discarded() {
		return nil, errors.WithMessagef(ErrOrderItemDiscarded, "order item %s", oi.ID)
	}

	held := p.holder(oi.ID)
	if held != nil {
		held.Deallocate(oi)
		p.record(NewOrderItemDeallocated(p.sku.ID, oi.ID, oi.Quantity))
	}
	oi.Quantity = quantity
	p.bump()
	p.record(NewOrderItemUpdated(p.sku.ID, oi.ID, quantity))

	if held == nil {
		return nil, nil
	}
	return p.allocate(oi)
}

func (p *Product) Rename(name string) {
	if p.sku.Name == name {
		return
	}
	p.sku.Name = name
	p.bump()
	p.record(NewProductRenamed(p.sku.ID, name))
}

func (p *Product) Discard() {
	if p.Discarded() {
		return
	}
	p.state = Discarded
	p.bump()
	p.record(NewProductDiscarded(p.sku.ID))
}

// Clone returns a deep copy sharing nothing with p. The copy's outbox is
// empty.
func (p *Product) Clone() *Product {
	c := &Product{sku: p.sku, version: p.version, state: p.state}

	items := make(map[uuid.UUID]*OrderItem, len(p.items))
	for _, oi := range p.items {
		cp := *oi
		items[cp.ID] = &cp
		c.items = append(c.items, &cp)
	}

	for _, b := range p.batches {
		eta := b.ETA
		if eta != nil {
			t := *eta
			eta = &t
		}
		cb := RestoreBatch(b.ID, b.SkuID, b.Quantity, eta, b.State)
		for id, held := range b.allocated {
			oi, ok := items[id]
			if !ok {
				cp := *held
				oi = &cp
			}
			cb.hold(oi)
		}
		c.batches = append(c.batches, cb)
	}

	return c
}

func (p *Product) allocate(oi *OrderItem) (*Batch, error) {
	if b := p.holder(oi.ID); b != nil {
		return nil, errors.WithMessagef(ErrAllocationConflict, "order item %s batch %s", oi.ID, b.ID)
	}

	for _, b := range p.candidates() {
		ok, err := b.CanAllocate(oi)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		b.hold(oi)
		p.bump()
		p.record(NewOrderItemAllocated(p.sku.ID, oi.ID, b.ID))
		return b, nil
	}

	p.record(NewOutOfStock(p.sku.ID, oi.ID))
	return nil, nil
}

// candidates returns the active batches sorted for allocation. The order
// between batches without an ETA is whatever order they were registered in.
func (p *Product) candidates() []*Batch {
	batches := p.Batches()
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if a.ETA == nil {
			return false
		}
		if b.ETA == nil {
			return true
		}
		return a.Less(b)
	})
	return batches
}

func (p *Product) batch(id uuid.UUID) *Batch {
	for _, b := range p.batches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (p *Product) orderItem(id uuid.UUID) *OrderItem {
	for _, oi := range p.items {
		if oi.ID == id {
			return oi
		}
	}
	return nil
}

func (p *Product) holder(orderItemID uuid.UUID) *Batch {
	for _, b := range p.batches {
		if _, ok := b.allocated[orderItemID]; ok {
			return b
		}
	}
	return nil
}

func (p *Product) bump() {
	p.version++
}

func (p *Product) record(e Event) {
	p.events = append(p.events, e)
}

func (p *Product) popEvent() (Event, bool) {
	if len(p.events) == 0 {
		return nil, false
	}
	e := p.events[0]
	p.events[0] = nil
	p.events = p.events[1:]
	return e, true
}
