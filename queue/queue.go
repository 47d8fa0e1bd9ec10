package queue

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/bunnyq"
	"github.com/streadway/amqp"
)

type Publisher interface {
	Publish(ctx context.Context, evt allocation.Event) error
}

// EventPublisher sends committed domain events to a fanout exchange.
type EventPublisher struct {
	queue    *bunnyq.BunnyQ
	exchange string
}

func New(bq *bunnyq.BunnyQ, exchange string) *EventPublisher {
	return &EventPublisher{queue: bq, exchange: exchange}
}

func (p *EventPublisher) Publish(ctx context.Context, evt allocation.Event) error {
	body, err := allocation.Marshal(evt)
	if err != nil {
		return errors.WithMessage(err, "failed to serialize event for queue")
	}
	if err = p.queue.Publish(ctx, p.exchange, body); err != nil {
		return errors.WithMessagef(err, "failed to send %s to queue", evt.Name())
	}
	return nil
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd allocation.Command) (uuid.UUID, error)
}

// CommandQueue feeds commands arriving on an AMQP queue into the bus. A
// message that cannot be decoded or handled is written to the dead letter
// exchange.
type CommandQueue struct {
	queue       *bunnyq.BunnyQ
	name        string
	dltExchange string
	processed   *lru.Cache
}

func NewCommandQueue(bq *bunnyq.BunnyQ, name, dltExchange string, dedupeSize int) (*CommandQueue, error) {
	processed, err := lru.New(dedupeSize)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create dedupe cache")
	}
	return &CommandQueue{queue: bq, name: name, dltExchange: dltExchange, processed: processed}, nil
}

func (q *CommandQueue) ConsumeCommands(ctx context.Context, d Dispatcher) {
	q.queue.Stream(ctx, q.name, func(delivery amqp.Delivery) {
		if err := q.handle(ctx, delivery.Body, d); err != nil {
			log.Error().Err(err).Str("queue", q.name).Msg("error handling command, writing to dlt")
			q.sendToDlt(ctx, delivery.Body)
		}
	}, bunnyq.StreamOpAutoAck)
}

// handle decodes and dispatches one command. Commands are remembered by
// message id once they succeed, so a redelivery is skipped.
func (q *CommandQueue) handle(ctx context.Context, body []byte, d Dispatcher) error {
	const funcName = "handle"

	msg, err := allocation.Unmarshal(body)
	if err != nil {
		return errors.WithMessage(err, "failed to decode command")
	}
	cmd, ok := msg.(allocation.Command)
	if !ok {
		return errors.WithMessagef(allocation.ErrUnknownMessage, "%s is not a command", msg.Name())
	}

	if q.processed.Contains(cmd.MessageID()) {
		log.Debug().
			Str("func", funcName).
			Str("name", cmd.Name()).
			Str("messageId", cmd.MessageID().String()).
			Msg("skipping redelivered command")
		return nil
	}

	id, err := d.Dispatch(ctx, cmd)
	if err != nil {
		return errors.WithMessagef(err, "failed to dispatch %s", cmd.Name())
	}
	q.processed.Add(cmd.MessageID(), id)

	log.Info().
		Str("func", funcName).
		Str("name", cmd.Name()).
		Str("messageId", cmd.MessageID().String()).
		Str("resultId", id.String()).
		Msg("command handled")
	return nil
}

func (q *CommandQueue) sendToDlt(ctx context.Context, data []byte) {
	if err := q.queue.Publish(ctx, q.dltExchange, data); err != nil {
		log.Error().Err(err).Msg("error writing to dlt")
	}
}
