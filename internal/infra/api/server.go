package api

import (
	"net/http"
	"time"

	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Settings struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// Server exposes the order ledger, reconciliation and inbox over JSON.
type Server struct {
	orders  usecase.OrderUseCase
	recon   usecase.ReconciliationUseCase
	inbox   usecase.NotificationUseCase
	catalog *model.PlanCatalog
	auth    *AuthManager
	cfg     Settings
	log     *zerolog.Logger
}

func NewServer(
	orders usecase.OrderUseCase,
	recon usecase.ReconciliationUseCase,
	inbox usecase.NotificationUseCase,
	catalog *model.PlanCatalog,
	auth *AuthManager,
	cfg Settings,
	logger *zerolog.Logger,
) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		orders:  orders,
		recon:   recon,
		inbox:   inbox,
		catalog: catalog,
		auth:    auth,
		cfg:     cfg,
		log:     &l,
	}
}

// Handler builds the root router: middlewares, health, metrics and /api/v1.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))
	if s.cfg.RequestTimeout > 0 {
		r.Use(Timeout(s.cfg.RequestTimeout))
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.Register(r)
	return r
}

// Register attaches the versioned API to r.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.listPlans)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Authenticate)

			r.Post("/orders", s.createOrder)
			r.Get("/orders/active", s.activeOrder)
			r.Get("/orders/{id}", s.getOrder)
			r.Get("/orders/{id}/qr", s.orderQR)
			r.Post("/orders/{id}/claim", s.submitClaim)

			r.Get("/notifications", s.listInbox)
			r.Post("/notifications/{id}/read", s.markRead)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/orders", s.listOrders)
				r.Post("/orders/{id}/decision", s.decide)

				r.Post("/statements", s.importStatement)
				r.Get("/transactions", s.listTransactions)
				r.Post("/transactions/{id}/link", s.linkTransaction)
				r.Post("/transactions/{id}/ignore", s.ignoreTransaction)
			})
		})
	})
}
