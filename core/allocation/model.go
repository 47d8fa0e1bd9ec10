package allocation

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type State string

const (
	Active    State = "Active"
	Discarded State = "Discarded"
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case Active:
		return Active, nil
	case Discarded:
		return Discarded, nil
	default:
		return "", errors.Errorf("allocation: unknown state %q", s)
	}
}

type SKU struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func NewSKU(name string) SKU {
	return SKU{ID: uuid.New(), Name: name}
}

// Customer is part of the order model only; allocation never reads it.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func NewCustomer(firstName, lastName string) Customer {
	return Customer{ID: uuid.New(), FirstName: firstName, LastName: lastName}
}

// OrderItem is a line on a customer order requesting a quantity of one SKU.
// Two order items are the same item when their IDs match.
type OrderItem struct {
	ID       uuid.UUID `json:"id"`
	SkuID    uuid.UUID `json:"skuId"`
	Quantity int64     `json:"quantity"`
	State    State     `json:"state"`
}

func NewOrderItem(skuID uuid.UUID, quantity int64) (*OrderItem, error) {
	if quantity < 1 {
		return nil, errors.WithMessagef(ErrInvalidQuantity, "order item quantity %d", quantity)
	}
	return &OrderItem{ID: uuid.New(), SkuID: skuID, Quantity: quantity, State: Active}, nil
}

func (o *OrderItem) Discarded() bool {
	return o.State == Discarded
}

type Order struct {
	ID       uuid.UUID    `json:"id"`
	Customer Customer     `json:"customer"`
	Items    []*OrderItem `json:"items"`
}

func NewOrder(customer Customer, items ...*OrderItem) Order {
	return Order{ID: uuid.New(), Customer: customer, Items: items}
}
