package allocation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Batch is a lot of stock for one SKU. A nil ETA means the stock is
// already on hand. ETAs are calendar days, held as midnight UTC.
type Batch struct {
	ID       uuid.UUID
	SkuID    uuid.UUID
	Quantity int64
	ETA      *time.Time
	State    State

	allocated         map[uuid.UUID]*OrderItem
	allocatedQuantity int64
}

func NewBatch(skuID uuid.UUID, quantity int64, eta *time.Time) (*Batch, error) {
	if quantity < 0 {
		return nil, errors.WithMessagef(ErrInvalidQuantity, "batch quantity %d", quantity)
	}
	return RestoreBatch(uuid.New(), skuID, quantity, eta, Active), nil
}

// RestoreBatch rebuilds a batch read back from storage. Allocations are
// attached by the owning product.
func RestoreBatch(id, skuID uuid.UUID, quantity int64, eta *time.Time, state State) *Batch {
	return &Batch{
		ID:        id,
		SkuID:     skuID,
		Quantity:  quantity,
		ETA:       ArrivalDay(eta),
		State:     state,
		allocated: make(map[uuid.UUID]*OrderItem),
	}
}

// ArrivalDay truncates an ETA to its UTC calendar day. Nil stays nil.
func ArrivalDay(eta *time.Time) *time.Time {
	if eta == nil {
		return nil
	}
	u := eta.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func (b *Batch) AllocatedQuantity() int64 {
	return b.allocatedQuantity
}

func (b *Batch) AvailableQuantity() int64 {
	return b.Quantity - b.allocatedQuantity
}

func (b *Batch) Discarded() bool {
	return b.State == Discarded
}

// AllocatedOrderItems returns the items held by the batch ordered by ID.
func (b *Batch) AllocatedOrderItems() []*OrderItem {
	items := make([]*OrderItem, 0, len(b.allocated))
	for _, oi := range b.allocated {
		items = append(items, oi)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ID.String() < items[j].ID.String()
	})
	return items
}

// CanAllocate reports whether the batch has room for the item. Asking about
// an item the batch already holds is a caller bug and returns
// ErrAllocationConflict.
func (b *Batch) CanAllocate(oi *OrderItem) (bool, error) {
	if _, ok := b.allocated[oi.ID]; ok {
		return false, errors.WithMessagef(ErrAllocationConflict, "order item %s batch %s", oi.ID, b.ID)
	}
	return b.AvailableQuantity() >= oi.Quantity && b.SkuID == oi.SkuID, nil
}

// Allocate reserves quantity for the item. Insufficient stock or a foreign
// SKU leave the batch untouched without an error.
func (b *Batch) Allocate(oi *OrderItem) error {
	ok, err := b.CanAllocate(oi)
	if err != nil {
		return err
	}
	if ok {
		b.hold(oi)
	}
	return nil
}

func (b *Batch) CanDeallocate(oi *OrderItem) bool {
	_, ok := b.allocated[oi.ID]
	return ok
}

func (b *Batch) Deallocate(oi *OrderItem) {
	held, ok := b.allocated[oi.ID]
	if !ok {
		return
	}
	delete(b.allocated, oi.ID)
	b.allocatedQuantity -= held.Quantity
}

// Less orders batches by ETA. A batch without an ETA is never less than
// another batch, and no batch is less than it.
func (b *Batch) Less(o *Batch) bool {
	if b.ETA == nil || o.ETA == nil {
		return false
	}
	return b.ETA.Before(*o.ETA)
}

func (b *Batch) hold(oi *OrderItem) {
	b.allocated[oi.ID] = oi
	b.allocatedQuantity += oi.Quantity
}

// anyAllocated returns one allocated item. Callers must not depend on which.
func (b *Batch) anyAllocated() *OrderItem {
	for _, oi := range b.allocated {
		return oi
	}
	return nil
}
