package analysis

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/ringtrace/internal/graph"
	"github.com/mbd888/ringtrace/internal/logging"
)

// Handler provides HTTP handlers for the analysis API
type Handler struct {
	svc *Service
}

// NewHandler creates a new analysis handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the analysis routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/graphs/:id/analyze", h.Analyze)
	r.POST("/graphs/:id/rings", h.DetectRings)
	r.POST("/graphs/:id/communities", h.DetectCommunities)
	r.GET("/graphs/:id/stats", h.Stats)
	r.GET("/graphs/:id/analyses", h.ListResults)
	r.GET("/analyses/:id", h.GetResult)
}

// Analyze handles POST /graphs/:id/analyze
// Runs the comprehensive pass and persists the result.
func (h *Handler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	result, err := h.svc.Analyze(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		logger.Error("failed to analyze graph", "graph_id", graphID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to analyze graph",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// DetectRings handles POST /graphs/:id/rings
func (h *Handler) DetectRings(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	rings, err := h.svc.DetectRings(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		logger.Error("failed to detect rings", "graph_id", graphID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to detect fraud rings",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fraudRings": rings,
		"count":      len(rings),
	})
}

// DetectCommunities handles POST /graphs/:id/communities
func (h *Handler) DetectCommunities(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	communities, err := h.svc.DetectCommunities(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		logger.Error("failed to detect communities", "graph_id", graphID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to detect communities",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"communities": communities,
		"count":       len(communities),
	})
}

// Stats handles GET /graphs/:id/stats
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")

	stats, err := h.svc.Stats(ctx, graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute graph statistics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListResults handles GET /graphs/:id/analyses
func (h *Handler) ListResults(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")
	limit := parseIntQuery(c, "limit", 20)

	results, err := h.svc.ListResults(ctx, graphID, limit)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list analysis results",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": results,
		"count":    len(results),
	})
}

// GetResult handles GET /analyses/:id
func (h *Handler) GetResult(c *gin.Context) {
	ctx := c.Request.Context()
	analysisID := c.Param("id")

	result, err := h.svc.GetResult(ctx, analysisID)
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Analysis result not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get analysis result",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseIntQuery(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
