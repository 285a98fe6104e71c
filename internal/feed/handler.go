// Package feed exposes timeline reads and post creation over HTTP.
package feed

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fanout"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/publish"
)

// Publisher is the post-creation side used by CreatePost.
type Publisher interface {
	Publish(ctx context.Context, authorID, content string) (post.Post, error)
}

type Handler struct {
	strategy  fanout.Strategy
	publisher Publisher
	available []string
	gatherer  prometheus.Gatherer
}

func NewHandler(strategy fanout.Strategy, publisher Publisher, available []string, gatherer prometheus.Gatherer) *Handler {
	return &Handler{strategy: strategy, publisher: publisher, available: available, gatherer: gatherer}
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/timeline/:user_id", h.GetTimeline)
	api.POST("/posts", h.CreatePost)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"strategy":             h.strategy.Name(),
		"available_strategies": h.available,
	})
}

// GetTimeline serves GET /api/timeline/:user_id?limit=N.
func (h *Handler) GetTimeline(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	page, err := h.strategy.GetTimeline(c.Request.Context(), userID, limit)
	if err != nil {
		metrics.Reads.WithLabelValues(h.strategy.Name(), "error").Inc()
		status := statusFor(err)
		logs.LogJSON(logs.LevelError, "Timeline read failed", map[string]interface{}{
			"userID":   userID,
			"strategy": h.strategy.Name(),
			"status":   status,
			"error":    err,
		})
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	result := "ok"
	if page.Degraded {
		result = "degraded"
	}
	metrics.Reads.WithLabelValues(h.strategy.Name(), result).Inc()
	c.JSON(http.StatusOK, page)
}

type createPostRequest struct {
	AuthorID string `json:"author_id" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// CreatePost serves POST /api/posts.
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	p, err := h.publisher.Publish(c.Request.Context(), req.AuthorID, req.Content)
	if err != nil {
		if errors.Is(err, publish.ErrInvalidPost) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logs.LogJSON(logs.LevelError, "Post publication failed", map[string]interface{}{
			"authorID": req.AuthorID,
			"postID":   p.ID,
			"error":    err,
		})
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "post_id": p.ID})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": p})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, fanout.ErrCollaboratorUnavailable), errors.Is(err, fanout.ErrPartialFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
