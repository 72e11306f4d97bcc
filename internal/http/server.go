// Package http provides the HTTP API for lexd: document ingestion, the
// query endpoint, health and status probes, and the Prometheus metrics
// endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/ingest"
	"github.com/fyrsmithlabs/lexd/internal/retrieval"
	"github.com/fyrsmithlabs/lexd/internal/vectorstore"
)

// QueryService answers natural-language queries over the ingested corpus.
type QueryService interface {
	Query(ctx context.Context, query string) (*retrieval.Answer, error)
}

// IngestService runs extractor documents through the ingestion pipeline.
type IngestService interface {
	Ingest(ctx context.Context, in *ingest.DocumentInput) (*ingest.DocumentStats, error)
}

// Server provides HTTP endpoints for lexd.
type Server struct {
	echo     *echo.Echo
	engine   QueryService
	pipeline IngestService
	store    vectorstore.Store
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Collection is the vector collection reported by GET /api/v1/status.
	Collection string
	// APIKey guards the /api/v1 group when non-empty. Health and metrics
	// endpoints are never guarded.
	APIKey string
}

// NewServer creates a new HTTP server. The store is optional and only
// feeds the status endpoint; engine and pipeline back the query and
// ingest endpoints.
func NewServer(engine QueryService, pipeline IngestService, store vectorstore.Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("query engine cannot be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("ingest pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		engine:   engine,
		pipeline: pipeline,
		store:    store,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and Prometheus scrape target
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	if s.config.APIKey != "" {
		v1.Use(APIKeyMiddleware(s.config.APIKey))
	}
	v1.POST("/query", s.handleQuery)
	v1.POST("/ingest", s.handleIngest)
	v1.GET("/status", s.handleStatus)
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	DocumentID string         `json:"document_id"`
	Chunks     int            `json:"chunks"`
	Entities   int            `json:"entities"`
	BySource   map[string]int `json:"entities_by_source,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleQuery answers one query. The response body is the engine's Answer:
// the synthesized text, the retrieval outcome flags, and the source chunks.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	answer, err := s.engine.Query(c.Request().Context(), req.Query)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
		}
		s.logger.Error("query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	s.logger.Debug("query answered",
		zap.String("intent", answer.Intent),
		zap.Int("iterations", answer.Iterations),
		zap.Int("sources", len(answer.Sources)),
		zap.Bool("partial", answer.Partial),
	)

	return c.JSON(http.StatusOK, answer)
}

// handleIngest runs one extractor document through the pipeline.
func (s *Server) handleIngest(c echo.Context) error {
	var in ingest.DocumentInput
	if err := c.Bind(&in); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	stats, err := s.pipeline.Ingest(c.Request().Context(), &in)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("ingestion failed",
			zap.String("document_id", in.DocumentID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}

	resp := IngestResponse{
		DocumentID: stats.DocumentID,
		Chunks:     stats.Chunks,
		Entities:   stats.Entities,
		BySource:   make(map[string]int, len(stats.BySource)),
	}
	for src, n := range stats.BySource {
		resp.BySource[string(src)] = n
	}
	return c.JSON(http.StatusOK, resp)
}

// handleStatus reports the state of the backing collection. Without a
// store, or when the collection cannot be read, the status degrades
// instead of erroring so probes stay cheap.
func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:   "ok",
		Services: map[string]string{"store": "ok"},
	}

	if s.store == nil {
		resp.Status = "degraded"
		resp.Services["store"] = "not configured"
		return c.JSON(http.StatusOK, resp)
	}

	info, err := s.store.GetCollectionInfo(c.Request().Context(), s.config.Collection)
	if err != nil {
		s.logger.Warn("collection info unavailable",
			zap.String("collection", s.config.Collection),
			zap.Error(err))
		resp.Status = "degraded"
		resp.Services["store"] = "unavailable"
		return c.JSON(http.StatusOK, resp)
	}

	resp.Collection = &CollectionStatus{
		Name:       info.Name,
		Chunks:     info.PointCount,
		VectorSize: info.VectorSize,
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
