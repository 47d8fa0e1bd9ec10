package memrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/db"
)

var ErrNotStarted = errors.New("memrepo: unit of work has not begun")

func NewUnitOfWorkFactory(store *Store) allocation.UnitOfWorkFactory {
	return allocation.UnitOfWorkFactoryFunc(func() allocation.UnitOfWork {
		return &unitOfWork{store: store}
	})
}

type unitOfWork struct {
	store  *Store
	staged *staged
	repo   *allocation.TrackingRepository
}

func (u *unitOfWork) Begin(_ context.Context) error {
	u.staged = &staged{store: u.store}
	u.repo = allocation.NewTrackingRepository(u.staged)
	return nil
}

func (u *unitOfWork) Products() allocation.ProductRepository {
	return u.repo
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	const funcName = "Commit"

	if u.staged == nil {
		return errors.WithStack(ErrNotStarted)
	}
	staged := u.staged
	u.staged = nil

	m := db.StartMetric("CommitUnitOfWork")
	if err := u.repo.Flush(ctx); err != nil {
		m.Complete(err)
		return err
	}
	if err := u.store.apply(staged.writes); err != nil {
		if errors.Is(err, core.ErrConflict) {
			m.Conflict()
		} else {
			m.Complete(err)
		}
		log.Debug().Str("func", funcName).Err(err).Msg("commit rejected")
		return err
	}

	m.Complete(nil)
	return nil
}

func (u *unitOfWork) Rollback(_ context.Context) error {
	u.staged = nil
	return nil
}

func (u *unitOfWork) CollectNewEvents() *allocation.EventIterator {
	if u.repo == nil {
		return allocation.NewEventIterator(nil)
	}
	return allocation.NewEventIterator(u.repo.Seen())
}
