package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/test"
)

// MockPublisher stands in for the broker when rabbitmq.mock is set. It
// remembers what it was asked to publish.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, evt allocation.Event) error
	*test.CallWatcher
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishFunc: func(ctx context.Context, evt allocation.Event) error { return nil },
		CallWatcher: test.NewCallWatcher(),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, evt allocation.Event) error {
	m.AddCall(ctx, evt)
	return m.PublishFunc(ctx, evt)
}

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, cmd allocation.Command) (uuid.UUID, error)
	*test.CallWatcher
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{
		DispatchFunc: func(ctx context.Context, cmd allocation.Command) (uuid.UUID, error) {
			return uuid.New(), nil
		},
		CallWatcher: test.NewCallWatcher(),
	}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, cmd allocation.Command) (uuid.UUID, error) {
	m.AddCall(ctx, cmd)
	return m.DispatchFunc(ctx, cmd)
}
