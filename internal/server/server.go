package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/postpone/internal/config"
	"github.com/ifuryst/postpone/internal/models"
	"github.com/ifuryst/postpone/internal/service"
	"github.com/ifuryst/postpone/internal/service/publisher"
	"github.com/ifuryst/postpone/internal/store"
	"github.com/ifuryst/postpone/internal/telemetry"
)

// RecordStore is what the intake routes need from the record store
type RecordStore interface {
	Create(record *models.ScheduleRecord) (string, error)
	ListPending() ([]store.Entry, error)
}

// AttemptLister reads back the attempt journal
type AttemptLister interface {
	RecentAttempts(ctx context.Context, limit int) ([]models.PublishAttempt, error)
}

// Dependencies are the services the routes call into. Attempts is nil when
// the journal is disabled.
type Dependencies struct {
	Store     RecordStore
	Publisher publisher.Publisher
	Accounts  service.AccountResolver
	Runner    service.BatchRunner
	Scheduler *service.Scheduler
	Attempts  AttemptLister
	Location  *time.Location
}

type Server struct {
	Config *config.Config
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	deps Dependencies
}

func NewServer(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Server {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	if deps.Location == nil {
		deps.Location = time.Local
	}

	srv := &Server{
		Config: cfg,
		Router: gin.New(),
		Logger: logger,
		deps:   deps,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	s.Router.Use(gin.Recovery())

	s.Router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.Logger.Debug("HTTP request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("error", c.Errors.ByType(gin.ErrorTypePrivate).String()),
		)
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":   true,
			"time": time.Now().Unix(),
		})
	})

	s.Router.POST("/schedule", s.handleDirectSchedule)
	s.Router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := s.Router.Group("/api/v1")
	{
		api.GET("/schedules", s.handleListSchedules)
		api.POST("/schedules", s.handleCreateSchedule)
		api.POST("/process", s.handleProcess)
		api.GET("/attempts", s.handleListAttempts)
	}
}

type directScheduleRequest struct {
	IGUserID      string `json:"ig_user_id" binding:"required"`
	AccessToken   string `json:"access_token" binding:"required"`
	MediaURL      string `json:"media_url" binding:"required"`
	MediaKind     string `json:"media_kind"`
	Caption       string `json:"caption"`
	ScheduledTime string `json:"scheduled_time" binding:"required"`
}

// handleDirectSchedule forwards one post straight to the publishing API and
// relays its answer unchanged.
func (s *Server) handleDirectSchedule(c *gin.Context) {
	var req directScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduledAt, err := models.ParseScheduledTime(req.ScheduledTime, s.deps.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.deps.Publisher.CreateScheduledPost(c.Request.Context(), publisher.PostRequest{
		IdentityID:     req.IGUserID,
		AccessToken:    req.AccessToken,
		MediaReference: req.MediaURL,
		MediaKind:      req.MediaKind,
		Caption:        req.Caption,
		ScheduledAt:    scheduledAt,
	})
	if err != nil {
		s.Logger.Error("Failed to build publish request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build publish request"})
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	c.Data(status, "application/json", result.Payload)
}

type createScheduleRequest struct {
	Account        string `json:"account"`
	MediaReference string `json:"media_reference"`
	MediaKind      string `json:"media_kind"`
	Caption        string `json:"caption"`
	Brief          string `json:"brief"`
	Tone           string `json:"tone"`
	ScheduledTime  string `json:"scheduled_time"`
}

func (s *Server) handleCreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := &models.ScheduleRecord{
		Account:        req.Account,
		MediaReference: req.MediaReference,
		MediaKind:      req.MediaKind,
		Caption:        req.Caption,
		Brief:          req.Brief,
		Tone:           req.Tone,
		ScheduledTime:  req.ScheduledTime,
		Status:         models.StatusPending,
	}
	if err := record.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := models.ParseScheduledTime(record.ScheduledTime, s.deps.Location); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.deps.Accounts.Resolve(record.Account); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	location, err := s.deps.Store.Create(record)
	if err != nil {
		s.Logger.Error("Failed to create schedule record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create schedule record"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"location": location})
}

type pendingItem struct {
	Location string                 `json:"location"`
	Record   *models.ScheduleRecord `json:"record,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func (s *Server) handleListSchedules(c *gin.Context) {
	entries, err := s.deps.Store.ListPending()
	if err != nil {
		s.Logger.Error("Failed to list pending records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending records"})
		return
	}

	items := make([]pendingItem, 0, len(entries))
	for _, entry := range entries {
		item := pendingItem{Location: entry.Location, Record: entry.Record}
		if entry.Err != nil {
			item.Error = entry.Err.Error()
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"pending": items})
}

func (s *Server) handleProcess(c *gin.Context) {
	summary, err := s.deps.Runner.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.Logger.Error("Processor run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}

	c.JSON(http.StatusOK, summary)
}

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
)

func (s *Server) handleListAttempts(c *gin.Context) {
	if s.deps.Attempts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Attempt journal is disabled"})
		return
	}

	limit := defaultAttemptLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAttemptLimit)
	}

	attempts, err := s.deps.Attempts.RecentAttempts(c.Request.Context(), limit)
	if err != nil {
		s.Logger.Error("Failed to list attempts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attempts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) Start(ctx context.Context) error {
	if s.deps.Scheduler != nil {
		if err := s.deps.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Stop()
	}

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
