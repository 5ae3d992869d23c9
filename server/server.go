// Package server exposes the question answering pipeline over REST and a
// streaming websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xhad/docqa/internal/logger"
	"github.com/xhad/docqa/pkg/pipeline"
	"github.com/xhad/docqa/pkg/scraper"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Port           int
	DataDir        string
	MaxUploadMB    int
	AllowedOrigins []string
	HistoryLimit   int
	// Crawl is the template for crawls requested over the websocket. BaseURL
	// is filled per request.
	Crawl           scraper.ScraperConfig
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 50
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 10
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) uploadDir() string    { return filepath.Join(c.DataDir, "uploads") }
func (c Config) extractedDir() string { return filepath.Join(c.DataDir, "extracted") }

// ExtractedDir is where the ingester should keep plain text copies of uploads.
func ExtractedDir(dataDir string) string {
	return Config{DataDir: dataDir}.extractedDir()
}

type Server struct {
	echo     *echo.Echo
	querier  *pipeline.Querier
	ingester *pipeline.Ingester
	config   Config
	log      *slog.Logger
}

func New(querier *pipeline.Querier, ingester *pipeline.Ingester, config Config) *Server {
	config.applyDefaults()

	s := &Server{
		echo:     echo.New(),
		querier:  querier,
		ingester: ingester,
		config:   config,
		log:      config.Logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.middleware()
	s.routes()

	return s
}

func (s *Server) middleware() {
	s.echo.Use(middleware.RequestID())
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(c.Request().WithContext(logger.WithRequestID(c.Request().Context(), id)))
			return next(c)
		}
	})

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				s.log.InfoContext(rctx, "request_completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				s.log.ErrorContext(rctx, "request_failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.config.MaxUploadMB)))

	if len(s.config.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.AllowedOrigins,
		}))
	}
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/query", s.handleQuery)
	s.echo.GET("/history/:session_id", s.handleHistory)
	s.echo.GET("/ws", s.handleWebSocket)
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf(":%d", s.config.Port)
	s.log.InfoContext(ctx, "server_starting", "address", address, "data_dir", s.config.DataDir)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		s.log.Info("server_stopping")
		return s.echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
