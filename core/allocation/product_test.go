package allocation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core/allocation"
)

func countEvents(p *allocation.Product, name string) int {
	n := 0
	for _, e := range p.PendingEvents() {
		if e.Name() == name {
			n++
		}
	}
	return n
}

func newProduct(t *testing.T, batches ...func(sku allocation.SKU) *allocation.Batch) (*allocation.Product, []*allocation.Batch) {
	t.Helper()
	sku := allocation.NewSKU("SMALL-TABLE")
	p := allocation.NewProduct(sku)
	var registered []*allocation.Batch
	for _, mk := range batches {
		b := mk(sku)
		if err := p.RegisterBatch(b); err != nil {
			t.Fatal(err)
		}
		registered = append(registered, b)
	}
	return p, registered
}

func batchOf(t *testing.T, qty int64, offset *int) func(sku allocation.SKU) *allocation.Batch {
	return func(sku allocation.SKU) *allocation.Batch {
		if offset == nil {
			return newBatch(t, sku, qty, nil)
		}
		return newBatch(t, sku, qty, day(*offset))
	}
}

func intp(i int) *int { return &i }

func TestNewProductRecordsCreation(t *testing.T) {
	p := allocation.NewProduct(allocation.NewSKU("SMALL-TABLE"))

	events := p.PendingEvents()
	if len(events) != 1 || events[0].Name() != allocation.ProductCreatedEvent {
		t.Fatalf("events got=%v want one %s", events, allocation.ProductCreatedEvent)
	}
	if p.Version() != 0 {
		t.Errorf("version got=%d want=0", p.Version())
	}
}

func TestAllocateReducesAvailableQuantity(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, intp(0)))
	oi := newItem(t, p.SKU(), 2)

	b, err := p.Allocate(oi)
	if err != nil {
		t.Fatal(err)
	}

	if b == nil || b.ID != batches[0].ID {
		t.Fatalf("batch got=%v want=%v", b, batches[0].ID)
	}
	if b.AvailableQuantity() != 18 {
		t.Errorf("available got=%d want=18", b.AvailableQuantity())
	}
	if got := countEvents(p, allocation.OrderItemAllocatedEvent); got != 1 {
		t.Errorf("allocated events got=%d want=1", got)
	}
}

func TestAllocateOutOfStock(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, nil))
	oi := newItem(t, p.SKU(), 30)

	b, err := p.Allocate(oi)
	if err != nil {
		t.Fatalf("out of stock must not be an error: %v", err)
	}
	if b != nil {
		t.Errorf("batch got=%v want=nil", b.ID)
	}
	if got := countEvents(p, allocation.OutOfStockEvent); got != 1 {
		t.Errorf("out of stock events got=%d want=1", got)
	}
	if got := countEvents(p, allocation.OrderItemAllocatedEvent); got != 0 {
		t.Errorf("allocated events got=%d want=0", got)
	}
	if batches[0].AvailableQuantity() != 20 {
		t.Errorf("available got=%d want=20", batches[0].AvailableQuantity())
	}
}

func TestAllocatePrefersEarliestEta(t *testing.T) {
	tests := []struct {
		name    string
		batches []func(sku allocation.SKU) *allocation.Batch
		want    int
	}{
		{
			name:    "earliest of three",
			batches: []func(sku allocation.SKU) *allocation.Batch{batchOf(t, 10, intp(2)), batchOf(t, 10, intp(0)), batchOf(t, 10, intp(1))},
			want:    1,
		},
		{
			name:    "dated batch before undated",
			batches: []func(sku allocation.SKU) *allocation.Batch{batchOf(t, 10, nil), batchOf(t, 10, intp(5))},
			want:    1,
		},
		{
			name:    "skips a batch that is too small",
			batches: []func(sku allocation.SKU) *allocation.Batch{batchOf(t, 1, intp(0)), batchOf(t, 10, intp(3)), batchOf(t, 10, nil)},
			want:    1,
		},
		{
			name:    "falls back to undated",
			batches: []func(sku allocation.SKU) *allocation.Batch{batchOf(t, 1, intp(0)), batchOf(t, 10, nil)},
			want:    1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, batches := newProduct(t, test.batches...)
			oi := newItem(t, p.SKU(), 5)

			b, err := p.Allocate(oi)
			if err != nil {
				t.Fatal(err)
			}
			if b == nil || b.ID != batches[test.want].ID {
				t.Errorf("batch got=%v want=%v", b, batches[test.want].ID)
			}
		})
	}
}

func TestAllocateSameDayKeepsRegistrationOrder(t *testing.T) {
	evening := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	p, batches := newProduct(t,
		func(sku allocation.SKU) *allocation.Batch { return newBatch(t, sku, 10, &evening) },
		func(sku allocation.SKU) *allocation.Batch { return newBatch(t, sku, 10, &morning) },
	)

	b, err := p.Allocate(newItem(t, p.SKU(), 5))
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.ID != batches[0].ID {
		t.Errorf("batch got=%v want=%v", b, batches[0].ID)
	}

	restored := p.Clone()
	b, err = restored.Allocate(newItem(t, p.SKU(), 5))
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.ID != batches[0].ID {
		t.Errorf("batch after clone got=%v want=%v", b, batches[0].ID)
	}
}

func TestAllocateRegistersUnknownItem(t *testing.T) {
	p, _ := newProduct(t, batchOf(t, 20, nil))
	oi := newItem(t, p.SKU(), 2)

	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}

	if _, err := p.OrderItem(oi.ID); err != nil {
		t.Errorf("order item was not registered: %v", err)
	}
	if got := countEvents(p, allocation.OrderItemCreatedEvent); got != 1 {
		t.Errorf("created events got=%d want=1", got)
	}
	// batch registration, item registration, allocation
	if p.Version() != 3 {
		t.Errorf("version got=%d want=3", p.Version())
	}
}

func TestAllocateSameItemTwiceConflicts(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, intp(1)), batchOf(t, 20, intp(0)))
	oi := newItem(t, p.SKU(), 2)

	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}
	_, err := p.Allocate(oi)
	if !errors.Is(err, allocation.ErrAllocationConflict) {
		t.Fatalf("err got=%v want=%v", err, allocation.ErrAllocationConflict)
	}

	held := 0
	for _, b := range batches {
		if b.CanDeallocate(oi) {
			held++
		}
	}
	if held != 1 {
		t.Errorf("item held by %d batches want=1", held)
	}
}

func TestAllocateDiscardedItem(t *testing.T) {
	p, _ := newProduct(t, batchOf(t, 20, nil))
	oi := newItem(t, p.SKU(), 2)
	if err := p.RegisterOrderItem(oi); err != nil {
		t.Fatal(err)
	}
	if err := p.DeregisterOrderItem(oi); err != nil {
		t.Fatal(err)
	}

	_, err := p.Allocate(oi)
	if !errors.Is(err, allocation.ErrOrderItemDiscarded) {
		t.Errorf("err got=%v want=%v", err, allocation.ErrOrderItemDiscarded)
	}
}

func TestChangeBatchQuantityDeallocates(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, nil))
	first := newItem(t, p.SKU(), 10)
	second := newItem(t, p.SKU(), 10)
	for _, oi := range []*allocation.OrderItem{first, second} {
		if _, err := p.Allocate(oi); err != nil {
			t.Fatal(err)
		}
	}
	if batches[0].AvailableQuantity() != 0 {
		t.Fatalf("available got=%d want=0", batches[0].AvailableQuantity())
	}

	b, err := p.ChangeBatchQuantity(batches[0].ID, 15)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(b.AllocatedOrderItems()); got != 1 {
		t.Errorf("allocated items got=%d want=1", got)
	}
	if b.AllocatedQuantity() != 10 {
		t.Errorf("allocated quantity got=%d want=10", b.AllocatedQuantity())
	}
	if got := countEvents(p, allocation.OrderItemDeallocatedEvent); got != 1 {
		t.Errorf("deallocated events got=%d want=1", got)
	}
	if got := countEvents(p, allocation.BatchQuantityChangedEvent); got != 1 {
		t.Errorf("quantity changed events got=%d want=1", got)
	}
}

func TestChangeBatchQuantityToZeroReleasesEverything(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, nil))
	for _, qty := range []int64{3, 4, 5} {
		if _, err := p.Allocate(newItem(t, p.SKU(), qty)); err != nil {
			t.Fatal(err)
		}
	}

	b, err := p.ChangeBatchQuantity(batches[0].ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if b.AllocatedQuantity() != 0 || len(b.AllocatedOrderItems()) != 0 {
		t.Errorf("batch still holds %d units", b.AllocatedQuantity())
	}
	if got := countEvents(p, allocation.OrderItemDeallocatedEvent); got != 3 {
		t.Errorf("deallocated events got=%d want=3", got)
	}
}

func TestChangeBatchQuantityUnknownBatch(t *testing.T) {
	p, _ := newProduct(t, batchOf(t, 20, nil))

	_, err := p.ChangeBatchQuantity(uuid.New(), 5)
	if !errors.Is(err, allocation.ErrBatchNotFound) {
		t.Errorf("err got=%v want=%v", err, allocation.ErrBatchNotFound)
	}
}

func TestRegisterBatchSkuMismatch(t *testing.T) {
	p, _ := newProduct(t, batchOf(t, 20, nil))
	foreign := newBatch(t, allocation.NewSKU("BLUE-VASE"), 10, nil)
	version := p.Version()

	err := p.RegisterBatch(foreign)
	if !errors.Is(err, allocation.ErrSkuMismatch) {
		t.Fatalf("err got=%v want=%v", err, allocation.ErrSkuMismatch)
	}
	if got := len(p.Batches()); got != 1 {
		t.Errorf("batches got=%d want=1", got)
	}
	if p.Version() != version {
		t.Errorf("version got=%d want=%d", p.Version(), version)
	}
}

func TestRegisterOrderItemSkuMismatch(t *testing.T) {
	p, _ := newProduct(t)
	foreign := newItem(t, allocation.NewSKU("BLUE-VASE"), 1)

	if err := p.RegisterOrderItem(foreign); !errors.Is(err, allocation.ErrSkuMismatch) {
		t.Errorf("err got=%v want=%v", err, allocation.ErrSkuMismatch)
	}
	if len(p.OrderItems()) != 0 {
		t.Errorf("order items got=%d want=0", len(p.OrderItems()))
	}
}

func TestDeregisterOrderItemIsIdempotent(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 20, nil))
	oi := newItem(t, p.SKU(), 4)
	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}

	if err := p.DeregisterOrderItem(oi); err != nil {
		t.Fatal(err)
	}
	version := p.Version()
	events := len(p.PendingEvents())

	if err := p.DeregisterOrderItem(oi); err != nil {
		t.Fatalf("second deregister failed: %v", err)
	}

	if p.Version() != version {
		t.Errorf("version got=%d want=%d", p.Version(), version)
	}
	if len(p.PendingEvents()) != events {
		t.Errorf("events got=%d want=%d", len(p.PendingEvents()), events)
	}
	if !oi.Discarded() {
		t.Errorf("order item not marked discarded")
	}
	if len(p.OrderItems()) != 0 {
		t.Errorf("active order items got=%d want=0", len(p.OrderItems()))
	}
	if batches[0].AvailableQuantity() != 20 {
		t.Errorf("stock not released got=%d want=20", batches[0].AvailableQuantity())
	}
	if got := countEvents(p, allocation.OrderItemDiscardedEvent); got != 1 {
		t.Errorf("discarded events got=%d want=1", got)
	}
}

func TestDeregisterUnknownOrderItem(t *testing.T) {
	p, _ := newProduct(t)
	if err := p.DeregisterOrderItem(newItem(t, p.SKU(), 1)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if p.Version() != 0 {
		t.Errorf("version got=%d want=0", p.Version())
	}
}

func TestReRegisterDiscardedOrderItem(t *testing.T) {
	p, _ := newProduct(t)
	oi := newItem(t, p.SKU(), 1)
	if err := p.RegisterOrderItem(oi); err != nil {
		t.Fatal(err)
	}
	if err := p.DeregisterOrderItem(oi); err != nil {
		t.Fatal(err)
	}

	if err := p.RegisterOrderItem(oi); !errors.Is(err, allocation.ErrOrderItemDiscarded) {
		t.Errorf("err got=%v want=%v", err, allocation.ErrOrderItemDiscarded)
	}
}

func TestDeregisterBatch(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 10, intp(0)), batchOf(t, 10, nil))
	oi := newItem(t, p.SKU(), 4)
	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}

	if err := p.DeregisterBatch(batches[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := p.DeregisterBatch(batches[0].ID); err != nil {
		t.Fatalf("second discard failed: %v", err)
	}

	if _, err := p.Batch(batches[0].ID); !errors.Is(err, allocation.ErrBatchNotFound) {
		t.Errorf("discarded batch still visible err=%v", err)
	}
	if len(p.Batches()) != 1 || len(p.AllBatches()) != 2 {
		t.Errorf("batches active=%d all=%d want 1 and 2", len(p.Batches()), len(p.AllBatches()))
	}
	if got := countEvents(p, allocation.OrderItemDeallocatedEvent); got != 1 {
		t.Errorf("deallocated events got=%d want=1", got)
	}
	if got := countEvents(p, allocation.BatchDiscardedEvent); got != 1 {
		t.Errorf("batch discarded events got=%d want=1", got)
	}

	b, err := p.Allocate(oi)
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.ID != batches[1].ID {
		t.Errorf("reallocated to %v want=%v", b, batches[1].ID)
	}
}

func TestUpdateOrderItemQuantity(t *testing.T) {
	tests := []struct {
		name        string
		allocate    bool
		newQuantity int64

		wantBatch      bool
		wantAllocated  int64
		wantOutOfStock int
	}{
		{name: "unallocated item", allocate: false, newQuantity: 8, wantBatch: false, wantAllocated: 0},
		{name: "allocated item still fits", allocate: true, newQuantity: 8, wantBatch: true, wantAllocated: 8},
		{name: "allocated item no longer fits", allocate: true, newQuantity: 11, wantBatch: false, wantAllocated: 0, wantOutOfStock: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, batches := newProduct(t, batchOf(t, 10, nil))
			oi := newItem(t, p.SKU(), 2)
			if err := p.RegisterOrderItem(oi); err != nil {
				t.Fatal(err)
			}
			if test.allocate {
				if _, err := p.Allocate(oi); err != nil {
					t.Fatal(err)
				}
			}

			b, err := p.UpdateOrderItemQuantity(oi.ID, test.newQuantity)
			if err != nil {
				t.Fatal(err)
			}

			if (b != nil) != test.wantBatch {
				t.Errorf("batch got=%v want batch=%v", b, test.wantBatch)
			}
			if oi.Quantity != test.newQuantity {
				t.Errorf("quantity got=%d want=%d", oi.Quantity, test.newQuantity)
			}
			if batches[0].AllocatedQuantity() != test.wantAllocated {
				t.Errorf("allocated got=%d want=%d", batches[0].AllocatedQuantity(), test.wantAllocated)
			}
			if got := countEvents(p, allocation.OutOfStockEvent); got != test.wantOutOfStock {
				t.Errorf("out of stock events got=%d want=%d", got, test.wantOutOfStock)
			}
			if got := countEvents(p, allocation.OrderItemUpdatedEvent); got != 1 {
				t.Errorf("updated events got=%d want=1", got)
			}
		})
	}
}

func TestVersionPolicy(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 10, nil))
	oi := newItem(t, p.SKU(), 20)

	steps := []struct {
		name string
		do   func() error
		want int64
	}{
		{name: "register order item", do: func() error { return p.RegisterOrderItem(oi) }, want: 2},
		{name: "out of stock leaves version", do: func() error { _, err := p.Allocate(oi); return err }, want: 2},
		{name: "change quantity", do: func() error { _, err := p.ChangeBatchQuantity(batches[0].ID, 30); return err }, want: 3},
		{name: "allocate", do: func() error { _, err := p.Allocate(oi); return err }, want: 4},
		{name: "deregister order item", do: func() error { return p.DeregisterOrderItem(oi) }, want: 5},
		{name: "rename", do: func() error { p.Rename("LARGE-TABLE"); return nil }, want: 6},
		{name: "discard", do: func() error { p.Discard(); return nil }, want: 7},
		{name: "discard again", do: func() error { p.Discard(); return nil }, want: 7},
	}

	for _, step := range steps {
		if err := step.do(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if p.Version() != step.want {
			t.Errorf("%s: version got=%d want=%d", step.name, p.Version(), step.want)
		}
	}
}

func TestRestoreProduct(t *testing.T) {
	sku := allocation.NewSKU("SMALL-TABLE")
	b := allocation.RestoreBatch(uuid.New(), sku.ID, 10, day(1), allocation.Active)
	oi := &allocation.OrderItem{ID: uuid.New(), SkuID: sku.ID, Quantity: 4, State: allocation.Active}

	p, err := allocation.RestoreProduct(sku, 7, allocation.Active, []*allocation.Batch{b}, []*allocation.OrderItem{oi},
		map[uuid.UUID]uuid.UUID{oi.ID: b.ID})
	if err != nil {
		t.Fatal(err)
	}

	if p.Version() != 7 {
		t.Errorf("version got=%d want=7", p.Version())
	}
	if len(p.PendingEvents()) != 0 {
		t.Errorf("restored product has %d pending events", len(p.PendingEvents()))
	}
	if held, ok := p.AllocatedBatch(oi.ID); !ok || held.ID != b.ID {
		t.Errorf("allocation not restored")
	}
	if b.AvailableQuantity() != 6 {
		t.Errorf("available got=%d want=6", b.AvailableQuantity())
	}

	_, err = allocation.RestoreProduct(sku, 1, allocation.Active, nil, nil, map[uuid.UUID]uuid.UUID{uuid.New(): b.ID})
	if !errors.Is(err, allocation.ErrOrderItemNotFound) {
		t.Errorf("dangling allocation err got=%v want=%v", err, allocation.ErrOrderItemNotFound)
	}
}

func TestCloneIsDetached(t *testing.T) {
	p, batches := newProduct(t, batchOf(t, 10, intp(0)))
	oi := newItem(t, p.SKU(), 4)
	if _, err := p.Allocate(oi); err != nil {
		t.Fatal(err)
	}

	c := p.Clone()
	if len(c.PendingEvents()) != 0 {
		t.Errorf("clone carries %d events", len(c.PendingEvents()))
	}
	if c.Version() != p.Version() || !c.Equal(p) {
		t.Errorf("clone differs from original")
	}

	cb, err := c.Batch(batches[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = c.ChangeBatchQuantity(cb.ID, 0); err != nil {
		t.Fatal(err)
	}
	if batches[0].AllocatedQuantity() != 4 || batches[0].Quantity != 10 {
		t.Errorf("original batch changed through the clone")
	}
}
