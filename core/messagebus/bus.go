package messagebus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core/allocation"
)

var (
	ErrHandlerExists = errors.New("messagebus: command handler already registered")
	ErrNoHandler     = errors.New("messagebus: no handler for command")
)

// CommandHandler runs one command inside uow and returns the id of whatever
// the command produced.
type CommandHandler func(ctx context.Context, uow allocation.UnitOfWork, cmd allocation.Command) (uuid.UUID, error)

// EventHandler reacts to an event that has already been committed.
type EventHandler func(ctx context.Context, evt allocation.Event) error

// Queue is the FIFO worked through by a single Handle call. It is not safe
// for concurrent use.
type Queue struct {
	messages []allocation.Message
}

func NewQueue(messages ...allocation.Message) *Queue {
	return &Queue{messages: messages}
}

func (q *Queue) Push(messages ...allocation.Message) {
	q.messages = append(q.messages, messages...)
}

func (q *Queue) Pop() (allocation.Message, bool) {
	if len(q.messages) == 0 {
		return nil, false
	}
	m := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	return m, true
}

func (q *Queue) Len() int {
	return len(q.messages)
}

type Option func(b *Bus)

// WithRetries lets a command that lost an optimistic concurrency race run
// again, on a fresh unit of work, up to n more times.
func WithRetries(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.retries = n
		}
	}
}

// Bus routes commands to exactly one handler and events to any number of
// subscribers. Handlers are registered at startup; Handle and Dispatch may
// then be called from many goroutines.
type Bus struct {
	uows    allocation.UnitOfWorkFactory
	retries int

	mu       sync.RWMutex
	commands map[string]CommandHandler
	events   map[string][]EventHandler
}

func New(uows allocation.UnitOfWorkFactory, opts ...Option) *Bus {
	b := &Bus{
		uows:     uows,
		commands: make(map[string]CommandHandler),
		events:   make(map[string][]EventHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) RegisterCommand(name string, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.commands[name]; ok {
		return errors.WithMessagef(ErrHandlerExists, "command %s", name)
	}
	b.commands[name] = handler
	return nil
}

func (b *Bus) Subscribe(name string, handlers ...EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[name] = append(b.events[name], handlers...)
}

// SubscribeAll subscribes the handlers to every known event.
func (b *Bus) SubscribeAll(handlers ...EventHandler) {
	for _, name := range allocation.EventNames() {
		b.Subscribe(name, handlers...)
	}
}

// Dispatch handles a single command and everything it causes, returning the
// command's result.
func (b *Bus) Dispatch(ctx context.Context, cmd allocation.Command) (uuid.UUID, error) {
	results, err := b.Handle(ctx, NewQueue(cmd))
	if err != nil {
		return uuid.Nil, err
	}
	return results[0], nil
}

// Handle drains q in order. Events raised by a successful command are
// appended to q as it goes. A failing command stops the pass and its error is
// returned; failing event handlers are logged and skipped.
func (b *Bus) Handle(ctx context.Context, q *Queue) ([]uuid.UUID, error) {
	var results []uuid.UUID
	for m, ok := q.Pop(); ok; m, ok = q.Pop() {
		switch msg := m.(type) {
		case allocation.Command:
			id, err := b.handleCommand(ctx, msg, q)
			if err != nil {
				return results, err
			}
			results = append(results, id)
		case allocation.Event:
			b.handleEvent(ctx, msg)
		default:
			return results, errors.WithMessagef(allocation.ErrUnknownMessage, "%T is neither a command nor an event", m)
		}
	}
	return results, nil
}

func (b *Bus) handleCommand(ctx context.Context, cmd allocation.Command, q *Queue) (uuid.UUID, error) {
	const funcName = "handleCommand"

	b.mu.RLock()
	handler, ok := b.commands[cmd.Name()]
	b.mu.RUnlock()
	if !ok {
		return uuid.Nil, errors.WithMessagef(ErrNoHandler, "command %s", cmd.Name())
	}

	for attempt := 0; ; attempt++ {
		log.Debug().
			Str("func", funcName).
			Str("command", cmd.Name()).
			Str("id", cmd.MessageID().String()).
			Int("attempt", attempt).
			Msg("handling command")

		uow := b.uows.New()
		id, err := handler(ctx, uow, cmd)
		if err == nil {
			events := uow.CollectNewEvents()
			for e, more := events.Next(); more; e, more = events.Next() {
				q.Push(e)
			}
			return id, nil
		}

		if allocation.IsRetryable(err) && attempt < b.retries {
			log.Warn().
				Str("func", funcName).
				Str("command", cmd.Name()).
				Int("attempt", attempt).
				Err(err).
				Msg("concurrent modification, retrying")
			continue
		}

		log.Error().
			Str("func", funcName).
			Str("command", cmd.Name()).
			Str("id", cmd.MessageID().String()).
			Err(err).
			Msg("command failed")
		return uuid.Nil, err
	}
}

func (b *Bus) handleEvent(ctx context.Context, evt allocation.Event) {
	const funcName = "handleEvent"

	b.mu.RLock()
	handlers := b.events[evt.Name()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug().Str("func", funcName).Str("event", evt.Name()).Msg("no handlers")
		return
	}

	for _, h := range handlers {
		if err := runEventHandler(ctx, h, evt); err != nil {
			log.Error().
				Str("func", funcName).
				Str("event", evt.Name()).
				Str("id", evt.MessageID().String()).
				Err(err).
				Msg("event handler failed")
		}
	}
}

// runEventHandler turns a panicking subscriber into an error so the rest of
// the subscribers and the queue still run.
func runEventHandler(ctx context.Context, h EventHandler, evt allocation.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, evt)
}
