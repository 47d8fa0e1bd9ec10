package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core"
)

// Service handles one command per call inside the unit of work it is given.
// Events raised along the way stay on the products until the caller drains
// uow.CollectNewEvents.
type Service interface {
	CreateProduct(ctx context.Context, uow UnitOfWork, cmd *CreateProduct) (uuid.UUID, error)
	UpdateProduct(ctx context.Context, uow UnitOfWork, cmd *UpdateProduct) (uuid.UUID, error)
	DiscardProduct(ctx context.Context, uow UnitOfWork, cmd *DiscardProduct) (uuid.UUID, error)

	CreateBatch(ctx context.Context, uow UnitOfWork, cmd *CreateBatch) (uuid.UUID, error)
	ChangeBatchQuantity(ctx context.Context, uow UnitOfWork, cmd *ChangeBatchQuantity) (uuid.UUID, error)
	DiscardBatch(ctx context.Context, uow UnitOfWork, cmd *DiscardBatch) (uuid.UUID, error)

	CreateOrderItem(ctx context.Context, uow UnitOfWork, cmd *CreateOrderItem) (uuid.UUID, error)
	UpdateOrderItem(ctx context.Context, uow UnitOfWork, cmd *UpdateOrderItem) (uuid.UUID, error)
	DiscardOrderItem(ctx context.Context, uow UnitOfWork, cmd *DiscardOrderItem) (uuid.UUID, error)

	Allocate(ctx context.Context, uow UnitOfWork, cmd *Allocate) (uuid.UUID, error)

	Execute(ctx context.Context, uow UnitOfWork, cmd Command) (uuid.UUID, error)

	GetProduct(ctx context.Context, skuID uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*Product, error)
}

type service struct {
	uows UnitOfWorkFactory
}

func NewService(uows UnitOfWorkFactory) Service {
	return &service{uows: uows}
}

func (s *service) Execute(ctx context.Context, uow UnitOfWork, cmd Command) (uuid.UUID, error) {
	switch c := cmd.(type) {
	case *CreateProduct:
		return s.CreateProduct(ctx, uow, c)
	case *UpdateProduct:
		return s.UpdateProduct(ctx, uow, c)
	case *DiscardProduct:
		return s.DiscardProduct(ctx, uow, c)
	case *CreateBatch:
		return s.CreateBatch(ctx, uow, c)
	case *ChangeBatchQuantity:
		return s.ChangeBatchQuantity(ctx, uow, c)
	case *DiscardBatch:
		return s.DiscardBatch(ctx, uow, c)
	case *CreateOrderItem:
		return s.CreateOrderItem(ctx, uow, c)
	case *UpdateOrderItem:
		return s.UpdateOrderItem(ctx, uow, c)
	case *DiscardOrderItem:
		return s.DiscardOrderItem(ctx, uow, c)
	case *Allocate:
		return s.Allocate(ctx, uow, c)
	default:
		return uuid.Nil, errors.WithMessagef(ErrUnknownMessage, "command %s", cmd.Name())
	}
}

func (s *service) CreateProduct(ctx context.Context, uow UnitOfWork, cmd *CreateProduct) (uuid.UUID, error) {
	const funcName = "CreateProduct"

	product := NewProduct(NewSKU(cmd.SkuName))

	log.Info().
		Str("func", funcName).
		Str("skuId", product.SkuID().String()).
		Str("name", cmd.SkuName).
		Msg("creating product")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		return products.Add(ctx, product)
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to create product")
	}
	return product.SkuID(), nil
}

func (s *service) UpdateProduct(ctx context.Context, uow UnitOfWork, cmd *UpdateProduct) (uuid.UUID, error) {
	const funcName = "UpdateProduct"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("name", cmd.SkuName).
		Msg("renaming product")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		product.Rename(cmd.SkuName)
		return nil
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to update product")
	}
	return cmd.SkuID, nil
}

func (s *service) DiscardProduct(ctx context.Context, uow UnitOfWork, cmd *DiscardProduct) (uuid.UUID, error) {
	const funcName = "DiscardProduct"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Msg("discarding product")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		product.Discard()
		return nil
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to discard product")
	}
	return cmd.SkuID, nil
}

func (s *service) CreateBatch(ctx context.Context, uow UnitOfWork, cmd *CreateBatch) (uuid.UUID, error) {
	const funcName = "CreateBatch"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Int64("quantity", cmd.Quantity).
		Msg("creating batch")

	var batchID uuid.UUID
	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		batch, err := NewBatch(product.SkuID(), cmd.Quantity, cmd.ETA)
		if err != nil {
			return err
		}
		if err = product.RegisterBatch(batch); err != nil {
			return err
		}
		batchID = batch.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to create batch")
	}
	return batchID, nil
}

func (s *service) ChangeBatchQuantity(ctx context.Context, uow UnitOfWork, cmd *ChangeBatchQuantity) (uuid.UUID, error) {
	const funcName = "ChangeBatchQuantity"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("batchId", cmd.BatchID.String()).
		Int64("quantity", cmd.NewQuantity).
		Msg("changing batch quantity")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		_, err = product.ChangeBatchQuantity(cmd.BatchID, cmd.NewQuantity)
		return err
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to change batch quantity")
	}
	return cmd.BatchID, nil
}

func (s *service) DiscardBatch(ctx context.Context, uow UnitOfWork, cmd *DiscardBatch) (uuid.UUID, error) {
	const funcName = "DiscardBatch"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("batchId", cmd.BatchID.String()).
		Msg("discarding batch")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		return product.DeregisterBatch(cmd.BatchID)
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to discard batch")
	}
	return cmd.BatchID, nil
}

func (s *service) CreateOrderItem(ctx context.Context, uow UnitOfWork, cmd *CreateOrderItem) (uuid.UUID, error) {
	const funcName = "CreateOrderItem"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Int64("quantity", cmd.Quantity).
		Msg("creating order item")

	var orderItemID uuid.UUID
	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		oi, err := NewOrderItem(product.SkuID(), cmd.Quantity)
		if err != nil {
			return err
		}
		if err = product.RegisterOrderItem(oi); err != nil {
			return err
		}
		orderItemID = oi.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to create order item")
	}
	return orderItemID, nil
}

func (s *service) UpdateOrderItem(ctx context.Context, uow UnitOfWork, cmd *UpdateOrderItem) (uuid.UUID, error) {
	const funcName = "UpdateOrderItem"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("orderItemId", cmd.OrderItemID.String()).
		Int64("quantity", cmd.Quantity).
		Msg("updating order item")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		_, err = product.UpdateOrderItemQuantity(cmd.OrderItemID, cmd.Quantity)
		return err
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to update order item")
	}
	return cmd.OrderItemID, nil
}

func (s *service) DiscardOrderItem(ctx context.Context, uow UnitOfWork, cmd *DiscardOrderItem) (uuid.UUID, error) {
	const funcName = "DiscardOrderItem"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("orderItemId", cmd.OrderItemID.String()).
		Msg("discarding order item")

	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		oi, err := product.OrderItem(cmd.OrderItemID)
		if errors.Is(err, ErrOrderItemNotFound) {
			log.Debug().
				Str("func", funcName).
				Str("orderItemId", cmd.OrderItemID.String()).
				Msg("order item not registered, nothing to discard")
			return nil
		}
		if err != nil {
			return err
		}
		return product.DeregisterOrderItem(oi)
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to discard order item")
	}
	return cmd.OrderItemID, nil
}

func (s *service) Allocate(ctx context.Context, uow UnitOfWork, cmd *Allocate) (uuid.UUID, error) {
	const funcName = "Allocate"

	log.Info().
		Str("func", funcName).
		Str("skuId", cmd.SkuID.String()).
		Str("orderItemId", cmd.OrderItemID.String()).
		Msg("allocating order item")

	batchID := uuid.Nil
	err := Do(ctx, uow, func(ctx context.Context, products ProductRepository) error {
		product, err := products.Get(ctx, cmd.SkuID)
		if err != nil {
			return err
		}
		oi, err := product.OrderItem(cmd.OrderItemID)
		if err != nil {
			return err
		}
		batch, err := product.Allocate(oi)
		if err != nil {
			return err
		}
		if batch != nil {
			batchID = batch.ID
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, errors.WithMessage(err, "failed to allocate order item")
	}

	if batchID == uuid.Nil {
		log.Info().
			Str("func", funcName).
			Str("skuId", cmd.SkuID.String()).
			Str("orderItemId", cmd.OrderItemID.String()).
			Msg("out of stock")
	}
	return batchID, nil
}

func (s *service) GetProduct(ctx context.Context, skuID uuid.UUID) (*Product, error) {
	const funcName = "GetProduct"

	log.Debug().
		Str("func", funcName).
		Str("skuId", skuID.String()).
		Msg("getting product")

	var product *Product
	err := Do(ctx, s.uows.New(), func(ctx context.Context, products ProductRepository) error {
		var err error
		product, err = products.Get(ctx, skuID)
		return err
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	var list []*Product
	err := Do(ctx, s.uows.New(), func(ctx context.Context, products ProductRepository) error {
		var err error
		list, err = products.List(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return list, nil
}

// IsRetryable reports whether a failed command may succeed on a fresh unit
// of work.
func IsRetryable(err error) bool {
	return errors.Is(err, core.ErrConflict)
}
