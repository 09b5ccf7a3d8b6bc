// Package devserver is a local implementation of the document/chat service
// used for development and end-to-end tests of the console client.
package devserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Options configures the HTTP server wiring.
type Options struct {
	Store          *store.Store
	Bus            *events.Bus
	Ingest         queue.Queue
	Logger         zerolog.Logger
	Assistant      Assistant
	Version        string
	AdminUsername  string
	AdminPassword  string
	SessionTTL     time.Duration
	StreamDelay    time.Duration
	MaxUploadBytes int64
	KeepAlive      time.Duration
}

// Server wraps the Gin engine and its dependencies.
type Server struct {
	engine *gin.Engine
	store  *store.Store
	bus    *events.Bus
	logger zerolog.Logger
	opts   Options
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if opts.Assistant == nil {
		opts.Assistant = EchoAssistant{}
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(events.Options{Logger: opts.Logger})
	}

	s := &Server{
		store:  opts.Store,
		bus:    opts.Bus,
		logger: opts.Logger,
		opts:   opts,
	}

	engine := gin.New()
	engine.MaxMultipartMemory = opts.MaxUploadBytes
	engine.Use(gin.Recovery(), requestIDMiddleware(), metricsMiddleware(), requestLogger(opts.Logger))
	engine.NoRoute(func(c *gin.Context) {
		notFound(c, "route")
	})

	engine.GET("/openapi", s.OpenAPISpec)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group(apiclient.APIPrefix)
	api.GET("/health", s.Health)
	api.POST("/auth/login", s.Login)

	protected := api.Group("")
	protected.Use(s.authMiddleware())

	protected.POST("/auth/logout", s.Logout)
	protected.GET("/auth/me", s.Me)

	protected.GET("/documents", s.ListDocuments)
	protected.POST("/documents/upload", s.UploadDocument)
	protected.GET("/documents/:id", s.GetDocument)
	protected.DELETE("/documents/:id", s.DeleteDocument)

	protected.GET("/conversations", s.ListConversations)
	protected.POST("/conversations", s.CreateConversation)
	protected.GET("/conversations/:id", s.GetConversation)
	protected.DELETE("/conversations/:id", s.DeleteConversation)
	protected.POST("/conversations/:id/messages", s.SendMessage)
	protected.POST("/conversations/:id/messages/stream", s.StreamMessage)

	protected.GET("/events", s.StreamEvents)

	s.engine = engine
	return s
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Write timeouts are left unset because event streams are long-lived.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("devserver listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("request failed")
	respondError(c, http.StatusInternalServerError, codeInternal, "internal error", nil)
}
