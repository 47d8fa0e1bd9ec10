package allocation

import (
	"time"

	"github.com/google/uuid"
)

// Command is a request to change state. Every command has exactly one
// handler.
type Command interface {
	Message
	command()
}

const (
	CreateProductCommand       = "CreateProduct"
	UpdateProductCommand       = "UpdateProduct"
	DiscardProductCommand      = "DiscardProduct"
	CreateBatchCommand         = "CreateBatch"
	ChangeBatchQuantityCommand = "ChangeBatchQuantity"
	DiscardBatchCommand        = "DiscardBatch"
	CreateOrderItemCommand     = "CreateOrderItem"
	UpdateOrderItemCommand     = "UpdateOrderItem"
	DiscardOrderItemCommand    = "DiscardOrderItem"
	AllocateCommand            = "Allocate"
)

func CommandNames() []string {
	return []string{
		CreateProductCommand,
		UpdateProductCommand,
		DiscardProductCommand,
		CreateBatchCommand,
		ChangeBatchQuantityCommand,
		DiscardBatchCommand,
		CreateOrderItemCommand,
		UpdateOrderItemCommand,
		DiscardOrderItemCommand,
		AllocateCommand,
	}
}

type CreateProduct struct {
	Header
	SkuName string `json:"sku_name"`
}

func NewCreateProduct(skuName string) *CreateProduct {
	return &CreateProduct{Header: newHeader(), SkuName: skuName}
}

func (*CreateProduct) Name() string { return CreateProductCommand }
func (*CreateProduct) command()     {}

type UpdateProduct struct {
	Header
	SkuID   uuid.UUID `json:"sku_id"`
	SkuName string    `json:"sku_name"`
}

func NewUpdateProduct(skuID uuid.UUID, skuName string) *UpdateProduct {
	return &UpdateProduct{Header: newHeader(), SkuID: skuID, SkuName: skuName}
}

func (*UpdateProduct) Name() string { return UpdateProductCommand }
func (*UpdateProduct) command()     {}

type DiscardProduct struct {
	Header
	SkuID uuid.UUID `json:"sku_id"`
}

func NewDiscardProduct(skuID uuid.UUID) *DiscardProduct {
	return &DiscardProduct{Header: newHeader(), SkuID: skuID}
}

func (*DiscardProduct) Name() string { return DiscardProductCommand }
func (*DiscardProduct) command()     {}

type CreateBatch struct {
	Header
	SkuID    uuid.UUID  `json:"sku_id"`
	Quantity int64      `json:"quantity"`
	ETA      *time.Time `json:"eta,omitempty"`
}

func NewCreateBatch(skuID uuid.UUID, quantity int64, eta *time.Time) *CreateBatch {
	return &CreateBatch{Header: newHeader(), SkuID: skuID, Quantity: quantity, ETA: eta}
}

func (*CreateBatch) Name() string { return CreateBatchCommand }
func (*CreateBatch) command()     {}

type ChangeBatchQuantity struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	BatchID     uuid.UUID `json:"batch_id"`
	NewQuantity int64     `json:"new_quantity"`
}

func NewChangeBatchQuantity(skuID, batchID uuid.UUID, newQuantity int64) *ChangeBatchQuantity {
	return &ChangeBatchQuantity{Header: newHeader(), SkuID: skuID, BatchID: batchID, NewQuantity: newQuantity}
}

func (*ChangeBatchQuantity) Name() string { return ChangeBatchQuantityCommand }
func (*ChangeBatchQuantity) command()     {}

type DiscardBatch struct {
	Header
	SkuID   uuid.UUID `json:"sku_id"`
	BatchID uuid.UUID `json:"batch_id"`
}

func NewDiscardBatch(skuID, batchID uuid.UUID) *DiscardBatch {
	return &DiscardBatch{Header: newHeader(), SkuID: skuID, BatchID: batchID}
}

func (*DiscardBatch) Name() string { return DiscardBatchCommand }
func (*DiscardBatch) command()     {}

type CreateOrderItem struct {
	Header
	SkuID    uuid.UUID `json:"sku_id"`
	Quantity int64     `json:"quantity"`
}

func NewCreateOrderItem(skuID uuid.UUID, quantity int64) *CreateOrderItem {
	return &CreateOrderItem{Header: newHeader(), SkuID: skuID, Quantity: quantity}
}

func (*CreateOrderItem) Name() string { return CreateOrderItemCommand }
func (*CreateOrderItem) command()     {}

type UpdateOrderItem struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Quantity    int64     `json:"quantity"`
}

func NewUpdateOrderItem(skuID, orderItemID uuid.UUID, quantity int64) *UpdateOrderItem {
	return &UpdateOrderItem{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID, Quantity: quantity}
}

func (*UpdateOrderItem) Name() string { return UpdateOrderItemCommand }
func (*UpdateOrderItem) command()     {}

type DiscardOrderItem struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
}

func NewDiscardOrderItem(skuID, orderItemID uuid.UUID) *DiscardOrderItem {
	return &DiscardOrderItem{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID}
}

func (*DiscardOrderItem) Name() string { return DiscardOrderItemCommand }
func (*DiscardOrderItem) command()     {}

type Allocate struct {
	Header
	SkuID       uuid.UUID `json:"sku_id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
}

func NewAllocate(skuID, orderItemID uuid.UUID) *Allocate {
	return &Allocate{Header: newHeader(), SkuID: skuID, OrderItemID: orderItemID}
}

func (*Allocate) Name() string { return AllocateCommand }
func (*Allocate) command()     {}
