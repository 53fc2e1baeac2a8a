// Package api exposes the forecasting pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/models"
	"github.com/chrisdamba/messforecast/internal/pipeline"
)

// Service is the part of the pipeline served over HTTP.
type Service interface {
	WeeklyForecast(ctx context.Context, weeks int, mode pipeline.Mode) (*pipeline.WeeklyForecast, error)
	IngredientForecast(ctx context.Context, weeks int) (*pipeline.IngredientResult, error)
	AggregateWeek(ctx context.Context, ref time.Time) (models.WeeklyAttendanceRecord, error)
	Menu(ctx context.Context) ([]models.MenuEntry, error)
}

type Config struct {
	CORSOrigins []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg     Config
	service Service
	router  *gin.Engine
}

func NewServer(cfg Config, service Service) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger())
	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	gatherer := s.cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	forecast := s.router.Group("/forecast")
	{
		forecast.GET("/weekly", s.weeklyForecast)
		forecast.GET("/ingredients", s.ingredientForecast)
	}
	s.router.GET("/menu", s.getMenu)
	s.router.POST("/aggregate-weekly", s.aggregateWeekly)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Info().Msg("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	logger := logging.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// weeksParam reads ?weeks=N; absent means 0, the configured default.
func weeksParam(c *gin.Context) (int, bool) {
	raw := c.Query("weeks")
	if raw == "" {
		return 0, true
	}
	weeks, err := strconv.Atoi(raw)
	if err != nil || weeks < 1 || weeks > pipeline.MaxWeeks {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weeks must be an integer between 1 and 52"})
		return 0, false
	}
	return weeks, true
}

// GET /forecast/weekly?weeks=N&mode=weekday|date|meal
func (s *Server) weeklyForecast(c *gin.Context) {
	weeks, ok := weeksParam(c)
	if !ok {
		return
	}
	res, err := s.service.WeeklyForecast(c.Request.Context(), weeks, pipeline.Mode(c.Query("mode")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Counts)
}

// GET /forecast/ingredients?weeks=N
func (s *Server) ingredientForecast(c *gin.Context) {
	weeks, ok := weeksParam(c)
	if !ok {
		return
	}
	res, err := s.service.IngredientForecast(c.Request.Context(), weeks)
	var persistErr *pipeline.PersistenceError
	if errors.As(err, &persistErr) && res != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"forecast":    res.Snapshot.Forecast,
			"snapshot_id": res.Snapshot.ID,
			"error":       persistErr.Error(),
		})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Snapshot.Forecast)
}

// POST /aggregate-weekly?date=YYYY-MM-DD
func (s *Server) aggregateWeekly(c *gin.Context) {
	var ref time.Time
	if raw := c.Query("date"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		ref = t
	}
	rec, err := s.service.AggregateWeek(c.Request.Context(), ref)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "weekly aggregation complete",
		"weekStart": rec.WeekStart.Format(time.DateOnly),
		"data":      rec.Data,
	})
}

// GET /menu
func (s *Server) getMenu(c *gin.Context) {
	entries, err := s.service.Menu(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []models.MenuEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var cfgErr *pipeline.ConfigurationError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrComputationTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logging.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
