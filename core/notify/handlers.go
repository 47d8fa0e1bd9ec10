package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core/allocation"
)

var (
	eventCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_event_count",
		Help: "The number of domain events handled, by name",
	}, []string{"name"})

	outOfStockCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "allocation_out_of_stock_count",
		Help: "The number of allocation attempts that found no stock",
	})
)

// CountEvents tallies every event it sees by name.
func CountEvents(_ context.Context, evt allocation.Event) error {
	eventCount.WithLabelValues(evt.Name()).Inc()
	return nil
}

type Notifier struct {
	staff string
}

// NewNotifier returns handlers that tell the given staff address about events
// that need a human. Delivery is a log line for now.
func NewNotifier(staff string) *Notifier {
	return &Notifier{staff: staff}
}

func (n *Notifier) OutOfStockAlert(_ context.Context, evt allocation.Event) error {
	const funcName = "OutOfStockAlert"

	e, ok := evt.(*allocation.OutOfStock)
	if !ok {
		return errors.Errorf("unexpected event %s", evt.Name())
	}

	outOfStockCount.Inc()
	log.Warn().
		Str("func", funcName).
		Str("to", n.staff).
		Str("skuId", e.SkuID.String()).
		Str("orderItemId", e.OrderItemID.String()).
		Msg("out of stock")
	return nil
}

func (n *Notifier) ProductCreatedNotice(_ context.Context, evt allocation.Event) error {
	const funcName = "ProductCreatedNotice"

	e, ok := evt.(*allocation.ProductCreated)
	if !ok {
		return errors.Errorf("unexpected event %s", evt.Name())
	}

	log.Info().
		Str("func", funcName).
		Str("to", n.staff).
		Str("skuId", e.SkuID.String()).
		Msg("new product created")
	return nil
}

// DeallocationNotice tells staff an order item lost its stock and has to be
// allocated again.
func (n *Notifier) DeallocationNotice(_ context.Context, evt allocation.Event) error {
	const funcName = "DeallocationNotice"

	e, ok := evt.(*allocation.OrderItemDeallocated)
	if !ok {
		return errors.Errorf("unexpected event %s", evt.Name())
	}

	log.Warn().
		Str("func", funcName).
		Str("to", n.staff).
		Str("skuId", e.SkuID.String()).
		Str("orderItemId", e.OrderItemID.String()).
		Int64("quantity", e.Quantity).
		Msg("order item deallocated")
	return nil
}
