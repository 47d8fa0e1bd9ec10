package allocation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// UnitOfWork is one transactional scope over the product repository.
// Commit must release the underlying resources even when it fails.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Products() ProductRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	CollectNewEvents() *EventIterator
}

type UnitOfWorkFactory interface {
	New() UnitOfWork
}

type UnitOfWorkFactoryFunc func() UnitOfWork

func (f UnitOfWorkFactoryFunc) New() UnitOfWork {
	return f()
}

// Do runs fn inside uow. It rolls back when fn fails or panics and commits
// otherwise. Commit failures, including write conflicts, are returned as is.
func Do(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context, products ProductRepository) error) error {
	if err := uow.Begin(ctx); err != nil {
		return errors.WithMessage(err, "failed to begin unit of work")
	}

	defer func() {
		if r := recover(); r != nil {
			rollback(ctx, uow, errors.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	if err := fn(ctx, uow.Products()); err != nil {
		rollback(ctx, uow, err)
		return err
	}

	return uow.Commit(ctx)
}

func rollback(ctx context.Context, uow UnitOfWork, cause error) {
	if err := uow.Rollback(ctx); err != nil {
		log.Warn().Err(err).AnErr("cause", cause).Msg("failed to rollback")
	}
}

// EventIterator drains the outboxes of a set of products. Each event is
// removed from its product as it is returned; an exhausted iterator stays
// exhausted.
type EventIterator struct {
	products []*Product
	pos      int
}

func NewEventIterator(products []*Product) *EventIterator {
	return &EventIterator{products: products}
}

func (it *EventIterator) Next() (Event, bool) {
	for it.pos < len(it.products) {
		if e, ok := it.products[it.pos].popEvent(); ok {
			return e, true
		}
		it.pos++
	}
	return nil, false
}

// All drains what is left.
func (it *EventIterator) All() []Event {
	var events []Event
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		events = append(events, e)
	}
	return events
}
