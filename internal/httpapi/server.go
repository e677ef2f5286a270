package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/logcar/logcar/internal/config"
	"github.com/logcar/logcar/internal/logcar/record"
	"github.com/logcar/logcar/internal/logger"
)

// Server is the HTTP CRUD/file surface over one record.Store.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *Handlers
	errorHandler *Handler
	logger       logger.Logger
	cfg          *config.Config
}

// NewServer builds a Server bound to store, configured from cfg.
func NewServer(cfg *config.Config, store *record.Store, lg logger.Logger) *Server {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	router := mux.NewRouter()
	errorHandler := NewHandler(lg)
	handlers := NewHandlers(store, errorHandler, lg)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	s := &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		errorHandler: errorHandler,
		logger:       lg,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	chain := Chain(
		func(next http.Handler) http.Handler { return Recovery(s.logger, s.errorHandler)(next) },
		RequestID,
		Logging(s.logger),
		CORS([]string{"*"}),
	)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	s.router.HandleFunc("/healthz", s.handlers.Liveness).Methods(http.MethodGet)

	s.router.HandleFunc("/records", s.handlers.CreateRecord).Methods(http.MethodPost)
	s.router.HandleFunc("/records/{rid}", s.handlers.GetRecord).Methods(http.MethodGet)
	s.router.HandleFunc("/records/{rid}", s.handlers.UpdateRecord).Methods(http.MethodPut)
	s.router.HandleFunc("/records/{rid}", s.handlers.DeleteRecord).Methods(http.MethodDelete)

	s.router.HandleFunc("/records/{rid}/file", s.handlers.UploadFile).Methods(http.MethodPost)
	s.router.HandleFunc("/records/{rid}/file", s.handlers.DownloadFile).Methods(http.MethodGet)
	s.router.HandleFunc("/records/new/file", s.handlers.UploadFile).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeInvalidRequest, "endpoint not found", requestID(r))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, ErrorCodeInvalidRequest, "method not allowed", requestID(r))
	})
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "port", s.cfg.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests before closing.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// StartAsync runs Start in a goroutine, returning a channel that receives
// its error if it exits early.
func (s *Server) StartAsync() chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	time.Sleep(100 * time.Millisecond)
	return errCh
}

// GetRouter exposes the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetHandler returns the server's root http.Handler.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
