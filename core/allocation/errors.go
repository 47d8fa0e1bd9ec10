package allocation

import (
	"github.com/pkg/errors"
	"github.com/sksmith/allocation-service/core"
)

var (
	ErrSkuMismatch        = errors.New("allocation: sku does not match product")
	ErrAllocationConflict = errors.New("allocation: order item already allocated")
	ErrOrderItemDiscarded = errors.New("allocation: order item discarded")
	ErrInvalidQuantity    = errors.New("allocation: invalid quantity")
	ErrProductExists      = errors.New("allocation: product already exists")
	ErrUnknownMessage     = errors.New("allocation: unknown message")

	ErrInvalidSku        = errors.WithMessage(core.ErrNotFound, "allocation: invalid sku")
	ErrBatchNotFound     = errors.WithMessage(core.ErrNotFound, "allocation: batch not found")
	ErrOrderItemNotFound = errors.WithMessage(core.ErrNotFound, "allocation: order item not found")
)
