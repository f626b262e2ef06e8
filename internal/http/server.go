package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financetracker/internal/core"
	applog "financetracker/internal/log"
)

// Reporter is the summary surface the server exposes.
type Reporter interface {
	Summarize(ctx context.Context, accountID, periodID int64) (core.SummaryMetrics, error)
	TopBusinesses(ctx context.Context, accountID, periodID int64, n int) ([]core.GroupTotal, error)
	TopCategories(ctx context.Context, accountID, periodID int64, n int) ([]core.GroupTotal, error)
	History(ctx context.Context, accountID, periodID int64, months int) ([]core.HistoryPoint, error)
}

// Options configures NewServer.
type Options struct {
	// Ping backs /readyz; nil reports ready.
	Ping func(ctx context.Context) error
	// TopN and HistoryMonths are used when a request omits n or months.
	TopN          int
	HistoryMonths int
	// RateLimit is requests per client per minute; 0 uses the default.
	RateLimit int
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	reports       Reporter
	ping          func(ctx context.Context) error
	topN          int
	historyMonths int
	logger        *applog.Logger

	rateLimiter  *rateLimiter
	metrics      securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, reports Reporter, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		reports:       reports,
		ping:          opts.Ping,
		topN:          opts.TopN,
		historyMonths: opts.HistoryMonths,
		logger:        logger,
		rateLimiter:   newRateLimiter(opts.RateLimit),
	}
	if s.historyMonths < 1 {
		s.historyMonths = 12
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/summary/top", s.handleTop)
	mux.HandleFunc("/summary/history", s.handleHistory)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           applog.Middleware(logger)(s.withSecurity(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.InfoContext(ctx, "Report server stopped", applog.FieldOperation, applog.OpShutdown)
	})
	return shutdownErr
}
