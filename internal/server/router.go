// Package server exposes the offline sync core to the UI shell over a
// local HTTP API and a WebSocket event stream.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aykha18/tajir-optimized-sub001/internal/models"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires the handler routes. ws serves the event stream at /ws.
func NewRouter(h *Handler, ws http.Handler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", h.List(models.Bills))
			r.Post("/", h.Create(models.OperationBill))
		})
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.List(models.Customers))
			r.Post("/", h.Create(models.OperationCustomer))
			r.Get("/search", h.SearchCustomers)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.List(models.Products))
			r.Post("/", h.Create(models.OperationProduct))
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", h.SyncStatus)
			r.Post("/drain", h.Drain)
		})
		r.Post("/connectivity", h.SetConnectivity)
	})

	if ws != nil {
		r.Handle("/ws", ws)
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
