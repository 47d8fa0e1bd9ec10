package allocrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/db"
)

var ErrNotStarted = errors.New("allocrepo: unit of work has no open transaction")

type beginFunc func(ctx context.Context) (core.Transaction, error)

// NewUnitOfWorkFactory hands out units of work that each run in their own
// transaction on conn.
func NewUnitOfWorkFactory(conn core.Conn) allocation.UnitOfWorkFactory {
	begin := func(ctx context.Context) (core.Transaction, error) {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
	return allocation.UnitOfWorkFactoryFunc(func() allocation.UnitOfWork {
		return &unitOfWork{begin: begin}
	})
}

type unitOfWork struct {
	begin beginFunc
	tx    core.Transaction
	repo  *allocation.TrackingRepository
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	m := db.StartMetric("BeginUnitOfWork")
	tx, err := u.begin(ctx)
	if err != nil {
		m.Complete(err)
		return classify(err)
	}
	u.tx = tx
	u.repo = allocation.NewTrackingRepository(NewProductStore(tx))
	m.Complete(nil)
	return nil
}

func (u *unitOfWork) Products() allocation.ProductRepository {
	return u.repo
}

// Commit writes every changed product and commits. The transaction is closed
// whatever the outcome.
func (u *unitOfWork) Commit(ctx context.Context) error {
	const funcName = "Commit"

	if u.tx == nil {
		return errors.WithStack(ErrNotStarted)
	}
	tx := u.tx
	u.tx = nil

	m := db.StartMetric("CommitUnitOfWork")
	if err := u.repo.Flush(ctx); err != nil {
		if errors.Is(err, core.ErrConflict) {
			m.Conflict()
		} else {
			m.Complete(err)
		}
		rollback(ctx, tx, err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		m.Complete(err)
		log.Debug().Str("func", funcName).Err(err).Msg("commit failed")
		return classify(err)
	}

	m.Complete(nil)
	return nil
}

// Rollback discards the transaction. It does nothing once the unit of work
// is closed.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	return errors.WithStack(tx.Rollback(ctx))
}

func (u *unitOfWork) CollectNewEvents() *allocation.EventIterator {
	if u.repo == nil {
		return allocation.NewEventIterator(nil)
	}
	return allocation.NewEventIterator(u.repo.Seen())
}

func rollback(ctx context.Context, tx core.Transaction, cause error) {
	if err := tx.Rollback(ctx); err != nil {
		log.Warn().Err(err).AnErr("cause", cause).Msg("failed to rollback transaction")
	}
}
