package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	urlHitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_url_hit_count",
			Help: "Number of times the given url was hit",
		},
		[]string{"method", "url"},
	)
	urlLatency = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "allocation_url_latency",
			Help:       "The latency quantiles for the given URL",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method", "url"},
	)
)

func Metrics(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		defer func() {
			ctx := chi.RouteContext(r.Context())

			if ctx != nil && len(ctx.RoutePatterns) > 0 {
				dur := float64(time.Since(start).Milliseconds())
				pattern := routePattern(ctx)
				urlLatency.WithLabelValues(ctx.RouteMethod, pattern).Observe(dur)
				urlHitCount.WithLabelValues(ctx.RouteMethod, pattern).Inc()
			}
		}()

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// routePattern joins the patterns of nested routers, "/api/v1/*" + "/products/*"
// + "/{sku}" becoming "/api/v1/products/{sku}".
func routePattern(ctx *chi.Context) string {
	pattern := strings.Join(ctx.RoutePatterns, "")
	for strings.Contains(pattern, "/*/") {
		pattern = strings.Replace(pattern, "/*/", "/", -1)
	}
	return pattern
}

func Logging(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Trace().
				Str("method", r.Method).
				Str("host", r.Host).
				Str("uri", r.RequestURI).
				Str("proto", r.Proto).
				Str("requestId", middleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).Send()
		}()
		next.ServeHTTP(ww, r)
	}

	return http.HandlerFunc(fn)
}
