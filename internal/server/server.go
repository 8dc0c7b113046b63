package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"songforge/internal/config"
	"songforge/internal/humanreq"
	"songforge/internal/ledger"
	"songforge/internal/logging"
	"songforge/internal/notifications"
	"songforge/internal/session"
	"songforge/internal/voice"
)

// Analyzer derives voice profiles from uploaded samples.
type Analyzer interface {
	Analyze(ctx context.Context, userID, assetRef string) (*voice.Profile, error)
}

// Server exposes the session engine over HTTP.
type Server struct {
	engine   *session.Engine
	requests *humanreq.Service
	tokens   *ledger.Store
	voices   *voice.Store
	analyzer Analyzer
	notifier notifications.Service
	logger   *slog.Logger

	bindAddr string
	apiToken string
	limiter  *userLimiter

	httpServer *http.Server
}

// Options collects the server's collaborators.
type Options struct {
	Engine   *session.Engine
	Requests *humanreq.Service
	Tokens   *ledger.Store
	Voices   *voice.Store
	Analyzer Analyzer
	Notifier notifications.Service
	Logger   *slog.Logger
}

// New builds the HTTP server from application config.
func New(cfg *config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	srv := &Server{
		engine:   opts.Engine,
		requests: opts.Requests,
		tokens:   opts.Tokens,
		voices:   opts.Voices,
		analyzer: opts.Analyzer,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "api"),
		bindAddr: cfg.Paths.APIBind,
		apiToken: cfg.Paths.APIToken,
		limiter:  newUserLimiter(cfg.Limits.RequestsPerMinute, cfg.Limits.Burst),
	}
	srv.httpServer = &http.Server{
		Addr:              srv.bindAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, wrapped in auth and rate limiting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleSubmitIntake)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/voice", s.handleRecheckVoice)
	mux.HandleFunc("POST /api/sessions/{id}/selection", s.handleSelectKeyAndTempo)
	mux.HandleFunc("POST /api/sessions/{id}/preview", s.handlePreviewOrCommit)
	mux.HandleFunc("POST /api/sessions/{id}/abandon", s.handleAbandon)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/quota", s.handleQuota)
	mux.HandleFunc("POST /api/plan", s.handlePlanChange)
	mux.HandleFunc("POST /api/voice/profiles", s.handleIngestVoiceProfile)
	mux.HandleFunc("POST /api/requests", s.handleSubmitHumanRequest)
	mux.HandleFunc("GET /api/requests", s.handleListHumanRequests)

	return s.authMiddleware(s.rateLimitMiddleware(mux))
}

// ListenAndServe blocks until the context is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", logging.String("bind", s.bindAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
