package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sksmith/allocation-service/core/allocation"
)

type ProductResponse struct {
	SkuID      uuid.UUID           `json:"skuId"`
	SkuName    string              `json:"skuName"`
	Version    int64               `json:"version"`
	State      string              `json:"state"`
	Batches    []BatchResponse     `json:"batches"`
	OrderItems []OrderItemResponse `json:"orderItems"`
}

func NewProductResponse(p *allocation.Product) *ProductResponse {
	resp := &ProductResponse{
		SkuID:      p.SkuID(),
		SkuName:    p.SKU().Name,
		Version:    p.Version(),
		State:      string(p.State()),
		Batches:    make([]BatchResponse, 0),
		OrderItems: make([]OrderItemResponse, 0),
	}
	for _, b := range p.Batches() {
		resp.Batches = append(resp.Batches, *NewBatchResponse(b))
	}
	for _, oi := range p.OrderItems() {
		resp.OrderItems = append(resp.OrderItems, *NewOrderItemResponse(p, oi))
	}
	return resp
}

func (rd *ProductResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewProductListResponse(products []*allocation.Product) []render.Renderer {
	list := make([]render.Renderer, 0)
	for _, product := range products {
		list = append(list, NewProductResponse(product))
	}
	return list
}

type BatchResponse struct {
	ID                  uuid.UUID   `json:"id"`
	SkuID               uuid.UUID   `json:"skuId"`
	Quantity            int64       `json:"quantity"`
	AvailableQuantity   int64       `json:"availableQuantity"`
	ETA                 *time.Time  `json:"eta,omitempty"`
	State               string      `json:"state"`
	AllocatedOrderItems []uuid.UUID `json:"allocatedOrderItems"`
}

func NewBatchResponse(b *allocation.Batch) *BatchResponse {
	resp := &BatchResponse{
		ID:                  b.ID,
		SkuID:               b.SkuID,
		Quantity:            b.Quantity,
		AvailableQuantity:   b.AvailableQuantity(),
		ETA:                 b.ETA,
		State:               string(b.State),
		AllocatedOrderItems: make([]uuid.UUID, 0),
	}
	for _, oi := range b.AllocatedOrderItems() {
		resp.AllocatedOrderItems = append(resp.AllocatedOrderItems, oi.ID)
	}
	return resp
}

func (b *BatchResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type OrderItemResponse struct {
	ID       uuid.UUID  `json:"id"`
	SkuID    uuid.UUID  `json:"skuId"`
	Quantity int64      `json:"quantity"`
	State    string     `json:"state"`
	BatchID  *uuid.UUID `json:"batchId,omitempty"`
}

// NewOrderItemResponse includes the batch holding the item, if any.
func NewOrderItemResponse(p *allocation.Product, oi *allocation.OrderItem) *OrderItemResponse {
	resp := &OrderItemResponse{
		ID:       oi.ID,
		SkuID:    oi.SkuID,
		Quantity: oi.Quantity,
		State:    string(oi.State),
	}
	if b, ok := p.AllocatedBatch(oi.ID); ok {
		id := b.ID
		resp.BatchID = &id
	}
	return resp
}

func (o *OrderItemResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type AllocationResponse struct {
	OrderItemID uuid.UUID  `json:"orderItemId"`
	BatchID     *uuid.UUID `json:"batchId,omitempty"`
	Allocated   bool       `json:"allocated"`
}

// NewAllocationResponse takes the result of an Allocate command, uuid.Nil
// meaning the item is out of stock.
func NewAllocationResponse(orderItemID, batchID uuid.UUID) *AllocationResponse {
	resp := &AllocationResponse{OrderItemID: orderItemID}
	if batchID != uuid.Nil {
		resp.BatchID = &batchID
		resp.Allocated = true
	}
	return resp
}

func (a *AllocationResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type ProductRequest struct {
	SkuName string `json:"skuName"`
}

func (p *ProductRequest) Bind(_ *http.Request) error {
	if p.SkuName == "" {
		return errors.New("skuName is required")
	}
	return nil
}

type CreateBatchRequest struct {
	Quantity *int64     `json:"quantity"`
	ETA      *time.Time `json:"eta"`
}

func (c *CreateBatchRequest) Bind(_ *http.Request) error {
	if c.Quantity == nil {
		return errors.New("quantity is required")
	}
	return nil
}

// QuantityRequest is the body of every request that only sets a quantity.
type QuantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

func (q *QuantityRequest) Bind(_ *http.Request) error {
	if q.Quantity == nil {
		return errors.New("quantity is required")
	}
	return nil
}
