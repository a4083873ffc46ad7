package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"presswatch/app/internal/press"
)

// ScanTrigger starts a manual sweep and reports the articles it inserted.
type ScanTrigger interface {
	RunManual(ctx context.Context) []press.Article
}

// Options configures the HTTP server wiring.
type Options struct {
	Trigger          ScanTrigger
	Repository       press.Repository
	Database         *gorm.DB
	Logger           *logrus.Logger
	SentryHub        *sentry.Hub
	RateLimiter      RateLimiterSettings
	Brand            string
	Newspapers       []string
	SearchConfigured bool
	MailConfigured   bool
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and the embedded templates.
type Server struct {
	api              huma.API
	mux              *stdhttp.ServeMux
	trigger          ScanTrigger
	repository       press.Repository
	logger           *logrus.Logger
	sentry           *sentry.Hub
	db               *gorm.DB
	rateLimiter      *RateLimiter
	brand            string
	newspapers       []string
	searchConfigured bool
	mailConfigured   bool
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Trigger == nil {
		return nil, eris.New("scan trigger is required")
	}
	if opts.Repository == nil {
		return nil, eris.New("article repository is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}
	if strings.TrimSpace(opts.Brand) == "" {
		return nil, eris.New("brand is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Presswatch", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:              api,
		mux:              mux,
		trigger:          opts.Trigger,
		repository:       opts.Repository,
		logger:           opts.Logger,
		sentry:           opts.SentryHub,
		db:               opts.Database,
		brand:            opts.Brand,
		newspapers:       opts.Newspapers,
		searchConfigured: opts.SearchConfigured,
		mailConfigured:   opts.MailConfigured,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /favicon.ico", faviconHandler)
	s.mux.HandleFunc("HEAD /favicon.ico", faviconHandler)

	s.registerIndexRoute()
	s.registerRunScanRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
