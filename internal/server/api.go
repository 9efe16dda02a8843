package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aimerfeng/StarReviews/internal/config"
	apierrors "github.com/aimerfeng/StarReviews/internal/errors"
	"github.com/aimerfeng/StarReviews/internal/logging"
	"github.com/aimerfeng/StarReviews/internal/middleware"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/aimerfeng/StarReviews/internal/review"
	"github.com/aimerfeng/StarReviews/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

// APIServer serves the review board over HTTP
type APIServer struct {
	config *config.Config
	router *gin.Engine
	board  *review.Board
	kv     storage.KeyValue
	guards []gin.HandlerFunc
}

// NewAPIServer creates a new API server instance. guards run before the
// submit handler (rate limiting).
func NewAPIServer(cfg *config.Config, board *review.Board, kv storage.KeyValue, guards ...gin.HandlerFunc) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config: cfg,
		router: router,
		board:  board,
		kv:     kv,
		guards: guards,
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.NoRoute(func(c *gin.Context) {
		middleware.RespondError(c, apierrors.ErrNotFoundError)
	})

	s.router.GET("/health", s.healthCheck)

	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET("/metrics", monitoring.GinHandler())
	}

	v1 := s.router.Group("/api/v1")
	{
		reviews := v1.Group("/reviews")
		{
			reviews.GET("", s.handleGetReviews)
			submit := append([]gin.HandlerFunc{middleware.BodyLimit(maxBodyBytes)}, s.guards...)
			reviews.POST("", append(submit, s.handleSubmitReview)...)
		}
	}
}

// healthCheck reports whether review storage is reachable
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.kv.Health(ctx); err != nil {
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "server", "health")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "api",
			"storage": s.config.Storage.Backend,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
		"storage": s.config.Storage.Backend,
	})
}

// SubmitReviewRequest is the review form. Rating may be a JSON number or a
// numeric string.
type SubmitReviewRequest struct {
	Name   string          `json:"name" binding:"max=100"`
	Rating json.RawMessage `json:"rating" binding:"required"`
	Text   string          `json:"text" binding:"max=2000"`
}

// ratingValue returns the raw form value of the rating
func (r *SubmitReviewRequest) ratingValue() string {
	var s string
	if err := json.Unmarshal(r.Rating, &s); err == nil {
		return s
	}
	return string(r.Rating)
}

// handleGetReviews returns the current board
func (s *APIServer) handleGetReviews(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.View())
}

// handleSubmitReview appends a review and returns the updated board
func (s *APIServer) handleSubmitReview(c *gin.Context) {
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			middleware.RespondError(c, apierrors.NewValidationError(err.Error()))
		} else {
			middleware.RespondError(c, apierrors.NewInvalidJSONError(err.Error()))
		}
		return
	}

	view, err := s.board.Submit(c.Request.Context(), review.Submission{
		Name:   strings.TrimSpace(req.Name),
		Rating: strings.TrimSpace(req.ratingValue()),
		Text:   strings.TrimSpace(req.Text),
	})
	if err != nil {
		var ve *review.ValidationError
		if errors.As(err, &ve) {
			middleware.RespondError(c, apierrors.NewValidationError(gin.H{
				"field":  ve.Field,
				"reason": ve.Reason,
			}))
			return
		}
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "server", "submit_review")
		middleware.RespondError(c, apierrors.ErrInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, view)
}
