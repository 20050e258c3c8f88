// Package http exposes the JSON API: user bootstrap and settings,
// subscription CRUD, upcoming payments, and spend totals.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/middleware/security"
	"subtrack/internal/middleware/trace"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

// Store is the slice of storage the handlers need.
type Store interface {
	FindOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (core.User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (core.User, error)
	UpdateSettings(ctx context.Context, telegramID int64, s core.Settings) (core.User, error)
	Categories(ctx context.Context) ([]core.Category, error)
	CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error)
	SubscriptionsByUser(ctx context.Context, userID int64) ([]core.Subscription, error)
	UpdateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error)
	DeactivateSubscription(ctx context.Context, id, userID int64) error
	AllUsers(ctx context.Context) ([]core.User, error)
	AdminStats(ctx context.Context) (storage.AdminStats, error)
	TopSubscriptionsByPrice(ctx context.Context, limit int) ([]storage.ExpensiveSubscription, error)
}

type Server struct {
	http.Server
	store      Store
	aggregator *services.Aggregator
	logger     *slog.Logger
	now        func() time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, store Store, aggregator *services.Aggregator, logger *slog.Logger) *Server {
	s := &Server{
		store:      store,
		aggregator: aggregator,
		logger:     logger,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/users/init", s.handleInitUser)
	mux.HandleFunc("GET /api/users/categories", s.handleCategories)
	mux.HandleFunc("GET /api/users/{telegramID}/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/users/{telegramID}/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/subscriptions/{telegramID}", s.handleListSubscriptions)
	mux.HandleFunc("POST /api/subscriptions/{telegramID}", s.handleCreateSubscription)
	mux.HandleFunc("PUT /api/subscriptions/{telegramID}/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /api/subscriptions/{telegramID}/{id}", s.handleDeleteSubscription)
	mux.HandleFunc("GET /api/subscriptions/{telegramID}/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/subscriptions/{telegramID}/totals", s.handleTotals)
	mux.HandleFunc("GET /api/admin/stats", s.handleAdminStats)
	mux.HandleFunc("GET /api/admin/users", s.handleAdminUsers)
	mux.HandleFunc("GET /api/admin/expensive-subscriptions", s.handleExpensiveSubscriptions)

	traced := trace.NewMiddleware(logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           traced.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
