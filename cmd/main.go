package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi"
	"github.com/go-chi/docgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/sksmith/allocation-service/api"
	"github.com/sksmith/allocation-service/config"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/core/messagebus"
	"github.com/sksmith/allocation-service/core/notify"
	"github.com/sksmith/allocation-service/db"
	"github.com/sksmith/allocation-service/db/allocrepo"
	"github.com/sksmith/allocation-service/db/memrepo"
	"github.com/sksmith/allocation-service/queue"
	"github.com/sksmith/bunnyq"
)

var routes = flag.Bool("routes", false, "print the api routes as json and exit")

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg := config.Load("config")

	configLogging(cfg)
	printLogHeader(cfg)
	cfg.Print()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the application")
	}

	if *routes {
		fmt.Println(docgen.JSONRoutesDoc(app.router))
		return
	}

	if app.commands != nil {
		log.Info().Msg("consuming commands...")
		go app.commands.ConsumeCommands(ctx, app.bus)
	}

	log.Info().Str("port", cfg.Port).Msg("listening")
	log.Fatal().Err(http.ListenAndServe(":"+cfg.Port, app.router))
}

// application holds everything main starts.
type application struct {
	bus      *messagebus.Bus
	hub      *notify.Hub
	router   chi.Router
	commands *queue.CommandQueue
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	uows, err := configStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("creating allocation service...")
	service := allocation.NewService(uows)

	log.Info().Int("retries", cfg.Bus.Retries).Msg("creating message bus...")
	bus := messagebus.New(uows, messagebus.WithRetries(cfg.Bus.Retries))
	if err := bus.RegisterService(service); err != nil {
		return nil, err
	}

	hub := notify.NewHub()
	notifier := notify.NewNotifier(cfg.Notify.Staff)

	var bq *bunnyq.BunnyQ
	if !cfg.RabbitMQ.Mock {
		log.Info().Msg("connecting to rabbitmq...")
		bq = rabbit(cfg)
	}
	publisher := configEventPublisher(bq, cfg)

	bus.SubscribeAll(notify.CountEvents, hub.Notify, publisher.Publish)
	bus.Subscribe(allocation.OutOfStockEvent, notifier.OutOfStockAlert)
	bus.Subscribe(allocation.ProductCreatedEvent, notifier.ProductCreatedNotice)
	bus.Subscribe(allocation.OrderItemDeallocatedEvent, notifier.DeallocationNotice)

	if cfg.Redis.Enabled {
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connecting to redis...")
		client, err := queue.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.Db)
		if err != nil {
			return nil, err
		}
		rp := queue.NewRedisPublisher(client, cfg.Redis.ChannelPrefix)
		bus.Subscribe(allocation.OrderItemAllocatedEvent, rp.Publish)
		bus.Subscribe(allocation.OrderItemDeallocatedEvent, rp.Publish)
	}

	app := &application{bus: bus, hub: hub}

	if bq != nil {
		app.commands, err = queue.NewCommandQueue(bq,
			cfg.RabbitMQ.Command.Queue,
			cfg.RabbitMQ.Command.Dlt.Exchange,
			cfg.Bus.DedupeSize)
		if err != nil {
			return nil, err
		}
	}

	log.Info().Msg("configuring router...")
	app.router = api.ConfigureRouter(cfg, service, bus, hub)

	return app, nil
}

func configStorage(ctx context.Context, cfg *config.Config) (allocation.UnitOfWorkFactory, error) {
	if cfg.Db.InMemory {
		log.Info().Msg("keeping products in memory...")
		return memrepo.NewUnitOfWorkFactory(memrepo.NewStore()), nil
	}

	pool, err := db.ConnectDb(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return allocrepo.NewUnitOfWorkFactory(pool), nil
}

func configEventPublisher(bq *bunnyq.BunnyQ, cfg *config.Config) queue.Publisher {
	if bq == nil {
		log.Info().Msg("creating mock publisher...")
		return queue.NewMockPublisher()
	}
	return queue.New(bq, cfg.RabbitMQ.Event.Exchange)
}

func rabbit(cfg *config.Config) *bunnyq.BunnyQ {
	osChannel := make(chan os.Signal, 1)
	signal.Notify(osChannel, syscall.SIGTERM)

	return bunnyq.New(context.Background(),
		bunnyq.Address{
			User: cfg.RabbitMQ.User,
			Pass: cfg.RabbitMQ.Pass,
			Host: cfg.RabbitMQ.Host,
			Port: cfg.RabbitMQ.Port,
		},
		osChannel,
		bunnyq.LogHandler(logger{}),
	)
}

type logger struct {
}

func (l logger) Log(_ context.Context, level bunnyq.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case bunnyq.LogLevelTrace:
		evt = log.Trace()
	case bunnyq.LogLevelDebug:
		evt = log.Debug()
	case bunnyq.LogLevelInfo:
		evt = log.Info()
	case bunnyq.LogLevelWarn:
		evt = log.Warn()
	case bunnyq.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}

func printLogHeader(cfg *config.Config) {
	if cfg.Log.Structured {
		log.Info().Str("application", cfg.AppName).
			Str("revision", cfg.Revision).
			Str("version", cfg.AppVersion).
			Str("sha1ver", cfg.Sha1Version).
			Str("build-time", cfg.BuildTime).
			Str("profile", cfg.Profile).
			Str("config-source", cfg.Config.Source).
			Str("config-branch", cfg.Config.Spring.Branch).
			Bool("in-memory", cfg.Db.InMemory).
			Send()
		return
	}

	f := figure.NewFigure(cfg.AppName, "", true)
	f.Print()

	log.Info().Msg("=============================================")
	log.Info().Msg(fmt.Sprintf("       Revision: %s", cfg.Revision))
	log.Info().Msg(fmt.Sprintf("        Profile: %s", cfg.Profile))
	log.Info().Msg(fmt.Sprintf("  Config Server: %s - %s", cfg.Config.Source, cfg.Config.Spring.Branch))
	log.Info().Msg(fmt.Sprintf("    Tag Version: %s", cfg.AppVersion))
	log.Info().Msg(fmt.Sprintf("   Sha1 Version: %s", cfg.Sha1Version))
	log.Info().Msg(fmt.Sprintf("     Build Time: %s", cfg.BuildTime))
	log.Info().Msg(fmt.Sprintf("      In Memory: %t", cfg.Db.InMemory))
	log.Info().Msg("=============================================")
}

func configLogging(cfg *config.Config) {
	log.Info().Msg("configuring logging...")

	if !cfg.Log.Structured {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("loglevel", cfg.Log.Level).Err(err).Msg("defaulting to info")
		level = zerolog.InfoLevel
	}
	log.Info().Str("loglevel", level.String()).Msg("setting log level")
	zerolog.SetGlobalLevel(level)
}
