package notify_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/core/notify"
	"github.com/sksmith/allocation-service/test"
)

func TestMain(m *testing.M) {
	test.ConfigLogging()
	os.Exit(m.Run())
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := notify.NewHub()
	first := make(chan allocation.Event, 1)
	second := make(chan allocation.Event, 1)
	hub.Subscribe(first)
	id := hub.Subscribe(second)

	evt := allocation.NewProductCreated(uuid.New())
	if err := hub.Notify(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []chan allocation.Event{first, second} {
		got := <-ch
		if got.MessageID() != evt.MessageID() {
			t.Errorf("subscriber %d got=%s want=%s", i, got.MessageID(), evt.MessageID())
		}
	}

	hub.Unsubscribe(id)
	if _, open := <-second; open {
		t.Errorf("channel still open after unsubscribe")
	}
	if hub.Subscribers() != 1 {
		t.Errorf("subscribers got=%d want=1", hub.Subscribers())
	}
	hub.Unsubscribe(id)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := notify.NewHub()
	ch := make(chan allocation.Event, 1)
	hub.Subscribe(ch)

	first := allocation.NewProductCreated(uuid.New())
	second := allocation.NewProductDiscarded(first.SkuID)
	_ = hub.Notify(context.Background(), first)
	_ = hub.Notify(context.Background(), second)

	got := <-ch
	if got.MessageID() != first.MessageID() {
		t.Errorf("got=%s want=%s", got.Name(), first.Name())
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected buffered event %s", e.Name())
	default:
	}
}

func TestNotifierHandlers(t *testing.T) {
	n := notify.NewNotifier("staff@example.com")
	ctx := context.Background()
	skuID := uuid.New()

	tests := []struct {
		name    string
		handler func(ctx context.Context, evt allocation.Event) error
		evt     allocation.Event
		wantErr bool
	}{
		{name: "out of stock", handler: n.OutOfStockAlert, evt: allocation.NewOutOfStock(skuID, uuid.New())},
		{name: "out of stock wrong event", handler: n.OutOfStockAlert, evt: allocation.NewProductCreated(skuID), wantErr: true},
		{name: "product created", handler: n.ProductCreatedNotice, evt: allocation.NewProductCreated(skuID)},
		{name: "product created wrong event", handler: n.ProductCreatedNotice, evt: allocation.NewOutOfStock(skuID, uuid.New()), wantErr: true},
		{name: "deallocated", handler: n.DeallocationNotice, evt: allocation.NewOrderItemDeallocated(skuID, uuid.New(), 3)},
		{name: "deallocated wrong event", handler: n.DeallocationNotice, evt: allocation.NewOutOfStock(skuID, uuid.New()), wantErr: true},
		{name: "count", handler: notify.CountEvents, evt: allocation.NewBatchDiscarded(skuID, uuid.New())},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.handler(ctx, test.evt)
			if (err != nil) != test.wantErr {
				t.Errorf("err got=%v want error=%v", err, test.wantErr)
			}
		})
	}
}
