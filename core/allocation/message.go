package allocation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const nameKey = "name"

// Dump flattens a message into its wire fields plus the name discriminator.
func Dump(m Message) (map[string]interface{}, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	fields := make(map[string]interface{})
	if err = json.Unmarshal(body, &fields); err != nil {
		return nil, errors.WithStack(err)
	}
	fields[nameKey] = m.Name()
	return fields, nil
}

func Marshal(m Message) ([]byte, error) {
	fields, err := Dump(m)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return body, nil
}

// Unmarshal decodes a message written by Marshal, choosing the concrete type
// from its name.
func Unmarshal(data []byte) (Message, error) {
	envelope := struct {
		Name string `json:"name"`
	}{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WithStack(err)
	}

	m, err := newMessage(envelope.Name)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(data, m); err != nil {
		return nil, errors.WithMessagef(err, "failed to decode %s", envelope.Name)
	}
	return m, nil
}

func newMessage(name string) (Message, error) {
	switch name {
	case ProductCreatedEvent:
		return &ProductCreated{}, nil
	case ProductRenamedEvent:
		return &ProductRenamed{}, nil
	case ProductDiscardedEvent:
		return &ProductDiscarded{}, nil
	case BatchCreatedEvent:
		return &BatchCreated{}, nil
	case BatchQuantityChangedEvent:
		return &BatchQuantityChanged{}, nil
	case BatchDiscardedEvent:
		return &BatchDiscarded{}, nil
	case OrderItemCreatedEvent:
		return &OrderItemCreated{}, nil
	case OrderItemUpdatedEvent:
		return &OrderItemUpdated{}, nil
	case OrderItemAllocatedEvent:
		return &OrderItemAllocated{}, nil
	case OrderItemDeallocatedEvent:
		return &OrderItemDeallocated{}, nil
	case OrderItemDiscardedEvent:
		return &OrderItemDiscarded{}, nil
	case OutOfStockEvent:
		return &OutOfStock{}, nil
	case CreateProductCommand:
		return &CreateProduct{}, nil
	case UpdateProductCommand:
		return &UpdateProduct{}, nil
	case DiscardProductCommand:
		return &DiscardProduct{}, nil
	case CreateBatchCommand:
		return &CreateBatch{}, nil
	case ChangeBatchQuantityCommand:
		return &ChangeBatchQuantity{}, nil
	case DiscardBatchCommand:
		return &DiscardBatch{}, nil
	case CreateOrderItemCommand:
		return &CreateOrderItem{}, nil
	case UpdateOrderItemCommand:
		return &UpdateOrderItem{}, nil
	case DiscardOrderItemCommand:
		return &DiscardOrderItem{}, nil
	case AllocateCommand:
		return &Allocate{}, nil
	default:
		return nil, errors.WithMessagef(ErrUnknownMessage, "name %q", name)
	}
}
