package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderstats/internal/mw"
)

type RouterConfig struct {
	Orders         OrderService
	Stats          StatsService
	DB             Pinger
	Log            *zap.Logger
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(cfg.Log))
	r.Use(mw.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", HealthHandler(cfg.DB))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/upload", UploadOrdersHandler(cfg.Orders, cfg.MaxUploadBytes))
		r.Get("/stats", UserStatsHandler(cfg.Stats))
		r.Get("/daily-stats", DailyStatsHandler(cfg.Stats))
		r.Get("/{order_number}", GetOrderHandler(cfg.Orders))
	})

	return r
}
