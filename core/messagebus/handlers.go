package messagebus

import (
	"context"

	"github.com/google/uuid"
	"github.com/sksmith/allocation-service/core/allocation"
)

// RegisterService routes every allocation command to svc.
func (b *Bus) RegisterService(svc allocation.Service) error {
	handler := func(ctx context.Context, uow allocation.UnitOfWork, cmd allocation.Command) (uuid.UUID, error) {
		return svc.Execute(ctx, uow, cmd)
	}
	for _, name := range allocation.CommandNames() {
		if err := b.RegisterCommand(name, handler); err != nil {
			return err
		}
	}
	return nil
}
