package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/config"
	"github.com/sksmith/allocation-service/core/allocation"
	"github.com/sksmith/allocation-service/core/notify"
)

const (
	ApiPath      = "/api/v1"
	ProductsPath = "/products"
)

type ProductService interface {
	GetProduct(ctx context.Context, skuID uuid.UUID) (*allocation.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]*allocation.Product, error)
}

// Dispatcher runs a command and everything it causes.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd allocation.Command) (uuid.UUID, error)
}

type EventHub interface {
	Subscribe(ch chan<- allocation.Event) notify.SubscriptionID
	Unsubscribe(id notify.SubscriptionID)
}

func ConfigureRouter(cfg *config.Config, svc ProductService, bus Dispatcher, hub EventHub) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*.seanksmith.me", "http://*.seanksmith.me", "http://localhost*", "https://localhost*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(Logging)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("UP"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/env", NewEnvApi(cfg).ConfigureRouter)
	r.Route(ApiPath, func(r chi.Router) {
		r.Route(ProductsPath, NewProductApi(svc, bus, hub).ConfigureRouter)
	})

	return r
}

func Render(w http.ResponseWriter, r *http.Request, rnd render.Renderer) {
	if err := render.Render(w, r, rnd); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}

func RenderList(w http.ResponseWriter, r *http.Request, l []render.Renderer) {
	if err := render.RenderList(w, r, l); err != nil {
		log.Warn().Err(err).Msg("failed to render")
	}
}
