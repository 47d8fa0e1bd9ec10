package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/test"
)

type MockService struct {
	CreateProductFunc       func(ctx context.Context, uow UnitOfWork, cmd *CreateProduct) (uuid.UUID, error)
	UpdateProductFunc       func(ctx context.Context, uow UnitOfWork, cmd *UpdateProduct) (uuid.UUID, error)
	DiscardProductFunc      func(ctx context.Context, uow UnitOfWork, cmd *DiscardProduct) (uuid.UUID, error)
	CreateBatchFunc         func(ctx context.Context, uow UnitOfWork, cmd *CreateBatch) (uuid.UUID, error)
	ChangeBatchQuantityFunc func(ctx context.Context, uow UnitOfWork, cmd *ChangeBatchQuantity) (uuid.UUID, error)
	DiscardBatchFunc        func(ctx context.Context, uow UnitOfWork, cmd *DiscardBatch) (uuid.UUID, error)
	CreateOrderItemFunc     func(ctx context.Context, uow UnitOfWork, cmd *CreateOrderItem) (uuid.UUID, error)
	UpdateOrderItemFunc     func(ctx context.Context, uow UnitOfWork, cmd *UpdateOrderItem) (uuid.UUID, error)
	DiscardOrderItemFunc    func(ctx context.Context, uow UnitOfWork, cmd *DiscardOrderItem) (uuid.UUID, error)
	AllocateFunc            func(ctx context.Context, uow UnitOfWork, cmd *Allocate) (uuid.UUID, error)
	ExecuteFunc             func(ctx context.Context, uow UnitOfWork, cmd Command) (uuid.UUID, error)
	GetProductFunc          func(ctx context.Context, skuID uuid.UUID) (*Product, error)
	ListProductsFunc        func(ctx context.Context, limit, offset int) ([]*Product, error)
	*test.CallWatcher
}

func NewMockService() *MockService {
	return &MockService{
		CreateProductFunc: func(ctx context.Context, uow UnitOfWork, cmd *CreateProduct) (uuid.UUID, error) {
			return uuid.New(), nil
		},
		UpdateProductFunc: func(ctx context.Context, uow UnitOfWork, cmd *UpdateProduct) (uuid.UUID, error) {
			return cmd.SkuID, nil
		},
		DiscardProductFunc: func(ctx context.Context, uow UnitOfWork, cmd *DiscardProduct) (uuid.UUID, error) {
			return cmd.SkuID, nil
		},
		CreateBatchFunc: func(ctx context.Context, uow UnitOfWork, cmd *CreateBatch) (uuid.UUID, error) {
			return uuid.New(), nil
		},
		ChangeBatchQuantityFunc: func(ctx context.Context, uow UnitOfWork, cmd *ChangeBatchQuantity) (uuid.UUID, error) {
			return cmd.BatchID, nil
		},
		DiscardBatchFunc: func(ctx context.Context, uow UnitOfWork, cmd *DiscardBatch) (uuid.UUID, error) {
			return cmd.BatchID, nil
		},
		CreateOrderItemFunc: func(ctx context.Context, uow UnitOfWork, cmd *CreateOrderItem) (uuid.UUID, error) {
			return uuid.New(), nil
		},
		UpdateOrderItemFunc: func(ctx context.Context, uow UnitOfWork, cmd *UpdateOrderItem) (uuid.UUID, error) {
			return cmd.OrderItemID, nil
		},
		DiscardOrderItemFunc: func(ctx context.Context, uow UnitOfWork, cmd *DiscardOrderItem) (uuid.UUID, error) {
			return cmd.OrderItemID, nil
		},
		AllocateFunc: func(ctx context.Context, uow UnitOfWork, cmd *Allocate) (uuid.UUID, error) {
			return uuid.New(), nil
		},
		GetProductFunc: func(ctx context.Context, skuID uuid.UUID) (*Product, error) {
			return nil, ErrInvalidSku
		},
		ListProductsFunc: func(ctx context.Context, limit, offset int) ([]*Product, error) {
			return []*Product{}, nil
		},
		CallWatcher: test.NewCallWatcher(),
	}
}

func (s *MockService) CreateProduct(ctx context.Context, uow UnitOfWork, cmd *CreateProduct) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.CreateProductFunc(ctx, uow, cmd)
}

func (s *MockService) UpdateProduct(ctx context.Context, uow UnitOfWork, cmd *UpdateProduct) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.UpdateProductFunc(ctx, uow, cmd)
}

func (s *MockService) DiscardProduct(ctx context.Context, uow UnitOfWork, cmd *DiscardProduct) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.DiscardProductFunc(ctx, uow, cmd)
}

func (s *MockService) CreateBatch(ctx context.Context, uow UnitOfWork, cmd *CreateBatch) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.CreateBatchFunc(ctx, uow, cmd)
}

func (s *MockService) ChangeBatchQuantity(ctx context.Context, uow UnitOfWork, cmd *ChangeBatchQuantity) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.ChangeBatchQuantityFunc(ctx, uow, cmd)
}

func (s *MockService) DiscardBatch(ctx context.Context, uow UnitOfWork, cmd *DiscardBatch) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.DiscardBatchFunc(ctx, uow, cmd)
}

func (s *MockService) CreateOrderItem(ctx context.Context, uow UnitOfWork, cmd *CreateOrderItem) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.CreateOrderItemFunc(ctx, uow, cmd)
}

func (s *MockService) UpdateOrderItem(ctx context.Context, uow UnitOfWork, cmd *UpdateOrderItem) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.UpdateOrderItemFunc(ctx, uow, cmd)
}

func (s *MockService) DiscardOrderItem(ctx context.Context, uow UnitOfWork, cmd *DiscardOrderItem) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.DiscardOrderItemFunc(ctx, uow, cmd)
}

func (s *MockService) Allocate(ctx context.Context, uow UnitOfWork, cmd *Allocate) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	return s.AllocateFunc(ctx, uow, cmd)
}

// Execute routes to the per-command funcs unless ExecuteFunc is set.
func (s *MockService) Execute(ctx context.Context, uow UnitOfWork, cmd Command) (uuid.UUID, error) {
	s.AddCall(ctx, uow, cmd)
	if s.ExecuteFunc != nil {
		return s.ExecuteFunc(ctx, uow, cmd)
	}
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
	}
	return uuid.Nil, ErrUnknownMessage
}

func (s *MockService) GetProduct(ctx context.Context, skuID uuid.UUID) (*Product, error) {
	s.AddCall(ctx, skuID)
	return s.GetProductFunc(ctx, skuID)
}

func (s *MockService) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	s.AddCall(ctx, limit, offset)
	return s.ListProductsFunc(ctx, limit, offset)
}

// MockProductStore keeps detached copies of products in a map. Override the
// funcs to inject failures.
type MockProductStore struct {
	Products map[uuid.UUID]*Product

	LoadFunc    func(ctx context.Context, skuID uuid.UUID) (*Product, error)
	LoadAllFunc func(ctx context.Context, limit, offset int) ([]*Product, error)
	InsertFunc  func(ctx context.Context, product *Product) error
	UpdateFunc  func(ctx context.Context, product *Product, loadedVersion int64) error
	*test.CallWatcher
}

func NewMockProductStore(products ...*Product) *MockProductStore {
	s := &MockProductStore{
		Products:    make(map[uuid.UUID]*Product),
		CallWatcher: test.NewCallWatcher(),
	}
	for _, p := range products {
		s.Products[p.SkuID()] = p.Clone()
	}

	s.LoadFunc = func(ctx context.Context, skuID uuid.UUID) (*Product, error) {
		p, ok := s.Products[skuID]
		if !ok {
			return nil, core.ErrNotFound
		}
		return p.Clone(), nil
	}
	s.LoadAllFunc = func(ctx context.Context, limit, offset int) ([]*Product, error) {
		products := make([]*Product, 0, len(s.Products))
		for _, p := range s.Products {
			if !p.Discarded() {
				products = append(products, p.Clone())
			}
		}
		return products, nil
	}
	s.InsertFunc = func(ctx context.Context, product *Product) error {
		if _, ok := s.Products[product.SkuID()]; ok {
			return ErrProductExists
		}
		s.Products[product.SkuID()] = product.Clone()
		return nil
	}
	s.UpdateFunc = func(ctx context.Context, product *Product, loadedVersion int64) error {
		stored, ok := s.Products[product.SkuID()]
		if !ok {
			return core.ErrNotFound
		}
		if stored.Version() != loadedVersion {
			return core.ErrConflict
		}
		s.Products[product.SkuID()] = product.Clone()
		return nil
	}
	return s
}

func (s *MockProductStore) Load(ctx context.Context, skuID uuid.UUID) (*Product, error) {
	s.AddCall(ctx, skuID)
	return s.LoadFunc(ctx, skuID)
}

func (s *MockProductStore) LoadAll(ctx context.Context, limit, offset int) ([]*Product, error) {
	s.AddCall(ctx, limit, offset)
	return s.LoadAllFunc(ctx, limit, offset)
}

func (s *MockProductStore) Insert(ctx context.Context, product *Product) error {
	s.AddCall(ctx, product)
	return s.InsertFunc(ctx, product)
}

func (s *MockProductStore) Update(ctx context.Context, product *Product, loadedVersion int64) error {
	s.AddCall(ctx, product, loadedVersion)
	return s.UpdateFunc(ctx, product, loadedVersion)
}

// MockUnitOfWork tracks products over Store and flushes them on commit.
type MockUnitOfWork struct {
	Store *MockProductStore
	repo  *TrackingRepository

	BeginFunc    func(ctx context.Context) error
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	*test.CallWatcher
}

func NewMockUnitOfWork(store *MockProductStore) *MockUnitOfWork {
	return &MockUnitOfWork{
		Store:        store,
		BeginFunc:    func(ctx context.Context) error { return nil },
		CommitFunc:   func(ctx context.Context) error { return nil },
		RollbackFunc: func(ctx context.Context) error { return nil },
		CallWatcher:  test.NewCallWatcher(),
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	u.AddCall(ctx)
	u.repo = NewTrackingRepository(u.Store)
	return u.BeginFunc(ctx)
}

func (u *MockUnitOfWork) Products() ProductRepository {
	return u.repo
}

func (u *MockUnitOfWork) Commit(ctx context.Context) error {
	u.AddCall(ctx)
	if err := u.CommitFunc(ctx); err != nil {
		return err
	}
	return u.repo.Flush(ctx)
}

func (u *MockUnitOfWork) Rollback(ctx context.Context) error {
	u.AddCall(ctx)
	return u.RollbackFunc(ctx)
}

func (u *MockUnitOfWork) CollectNewEvents() *EventIterator {
	if u.repo == nil {
		return NewEventIterator(nil)
	}
	return NewEventIterator(u.repo.Seen())
}
