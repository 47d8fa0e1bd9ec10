package allocation

import "github.com/google/uuid"

// Message is anything that travels over the message bus. Name is the wire
// discriminator and always equals the Go type name.
type Message interface {
	MessageID() uuid.UUID
	Name() string
}

// Event is a notification that something already happened. It may have any
// number of handlers.
type Event interface {
	Message
	event()
}

type Header struct {
	ID uuid.UUID `json:"uuid"`
}

func newHeader() Header {
	return Header{ID: uuid.New()}
}

func (h Header) MessageID() uuid.UUID {
	return h.ID
}

const (
	ProductCreatedEvent       = "ProductCreated"
	ProductRenamedEvent       = "ProductRenamed"
	ProductDiscardedEvent     = "ProductDiscarded"
	BatchCreatedEvent         = "BatchCreated"
	BatchQuantityChangedEvent = "BatchQuantityChanged"
	BatchDiscardedEvent       = "BatchDiscarded"
	OrderItemCreatedEvent     = "OrderItemCreated"
	OrderItemUpdatedEvent     = "OrderItemUpdated"
	OrderItemAllocatedEvent   = "OrderItemAllocated"
	OrderItemDeallocatedEvent = "OrderItemDeallocated"
	OrderItemDiscardedEvent   = "OrderItemDiscarded"
	OutOfStockEvent           = "OutOfStock"
)

func EventNames() []string {
	return []string{
		ProductCreatedEvent,
		ProductRenamedEvent,
		ProductDiscardedEvent,
		BatchCreatedEvent,
		BatchQuantityChangedEvent,
		BatchDiscardedEvent,
		OrderItemCreatedEvent,
		OrderItemUpdatedEvent,
		OrderItemAllocatedEvent,
		OrderItemDeallocatedEvent,
		OrderItemDiscardedEvent,
		OutOfStockEvent,
	}
}

type ProductCreated struct {
	Header
	SkuID uuid.UUID `json:"sku_id"`
}

func NewProductCreated(skuID uuid.UUID) *ProductCreated {
	return &ProductCreated{Header: newHeader(), SkuID: skuID}
}

func (*ProductCreated) Name() string { return ProductCreatedEvent }
func (*ProductCreated) event()       {}

type ProductRenamed struct {
	Header
	SkuID   uuid.UUID `json:"sku_id"`
	SkuName string    `json:"sku_name"`
}

func NewProductRenamed(skuID uuid.UUID, name string) *ProductRenamed {
	return &ProductRenamed{Header: newHeader(), SkuID: skuID, SkuName: name}
}

func (*ProductRenamed) Name() string { return ProductRenamedEvent }
func (*ProductRenamed) event()       {}

type ProductDiscarded struct {
	Header
	SkuID uuid.UUID `json:"sku_id"`
}

func NewProductDiscarded(skuID uuid.UUID) *ProductDiscarded {
	return &ProductDiscarded{Header: newHeader(), SkuID: skuID}
}

func (*ProductDiscarded) Name() string { return ProductDiscardedEvent }
func (*ProductDiscarded) event()       {}

type BatchCreated struct {
	Header
	SkuID    uuid.UUID `json:"sku_id"`
	BatchID  uuid.UUID `json:"batch_id"`
	Quantity int64     `json:"quantity"`
}

func NewBatchCreated(skuID, batchID uuid.UUID, quantity int64) *BatchCreated {
	return &BatchCreated{Header: newHeader(), SkuID: skuID, BatchID: batchID, Quantity: quantity}
}

func (*BatchCreated) Name() string { return BatchCreatedEvent }
func (*BatchCreated) event()       {}

type BatchQuantityChanged struct {
	Header
	SkuID    uuid.UUID `json:"sku_id"`
	BatchID  uuid.UUID `json:"batch_id"`
	Quantity int64     `json:"quantity"`
}

func NewBatchQuantityChanged(skuID, batchID uuid.UUID, quantity int64) *BatchQuantityChanged {
	return &BatchQuantityChanged{Header: newHeader(), SkuID: skuID, BatchID: batchID, Quantity: quantity}
}

func (*BatchQuantityChanged) Name() string { return BatchQuantityChangedEvent }
func (*BatchQuantityChanged) event()       {}

type BatchDiscarded struct {
	Header
	SkuID   uuid.UUID `json:"sku_id"`
	BatchID uuid.UUID `json:"batch_id"`
}

func NewBatchDiscarded(skuID, batchID uuid.UUID) *BatchDiscarded {
	return &BatchDiscarded{Header: newHeader(), SkuID: skuID, BatchID: batchID}
}

func (*BatchDiscarded) Name() string { return BatchDiscardedEvent }
func (*BatchDiscarded) event()       {}

type OrderItemCreated struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int64     `json:"quantity"`
}

func NewOrderItemCreated(skuID, orderItemID uuid.UUID, quantity int64) *OrderItemCreated {
	return &OrderItemCreated{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID, Quantity: quantity}
}

func (*OrderItemCreated) Name() string { return OrderItemCreatedEvent }
func (*OrderItemCreated) event()       {}

type OrderItemUpdated struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int64     `json:"quantity"`
}

func NewOrderItemUpdated(skuID, orderItemID uuid.UUID, quantity int64) *OrderItemUpdated {
	return &OrderItemUpdated{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID, Quantity: quantity}
}

func (*OrderItemUpdated) Name() string { return OrderItemUpdatedEvent }
func (*OrderItemUpdated) event()       {}

type OrderItemAllocated struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	BatchID     uuid.UUID `json:"batch_id"`
}

func NewOrderItemAllocated(skuID, orderItemID, batchID uuid.UUID) *OrderItemAllocated {
	return &OrderItemAllocated{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID, BatchID: batchID}
}

func (*OrderItemAllocated) Name() string { return OrderItemAllocatedEvent }
func (*OrderItemAllocated) event()       {}

type OrderItemDeallocated struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int64     `json:"quantity"`
}

func NewOrderItemDeallocated(skuID, orderItemID uuid.UUID, quantity int64) *OrderItemDeallocated {
	return &OrderItemDeallocated{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID, Quantity: quantity}
}

func (*OrderItemDeallocated) Name() string { return OrderItemDeallocatedEvent }
func (*OrderItemDeallocated) event()       {}

type OrderItemDiscarded struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
}

func NewOrderItemDiscarded(skuID, orderItemID uuid.UUID) *OrderItemDiscarded {
	return &OrderItemDiscarded{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID}
}

func (*OrderItemDiscarded) Name() string { return OrderItemDiscardedEvent }
func (*OrderItemDiscarded) event()       {}

// OutOfStock is raised when no batch can hold an order item. It is a normal
// outcome, not a failure.
type OutOfStock struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
}

func NewOutOfStock(skuID, orderItemID uuid.UUID) *OutOfStock {
	return &OutOfStock{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID}
}

func (*OutOfStock) Name() string { return OutOfStockEvent }
func (*OutOfStock) event()       {}
