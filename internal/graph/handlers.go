package graph

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/ringtrace/internal/logging"
	"github.com/mbd888/ringtrace/internal/validation"
)

// Handler provides HTTP handlers for the graph API
type Handler struct {
	svc *Service
}

// NewHandler creates a new graph handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the graph routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Graph management
	r.POST("/graphs", h.CreateGraph)
	r.GET("/graphs", h.ListGraphs)
	r.GET("/graphs/:id", h.GetGraph)
	r.PATCH("/graphs/:id", h.UpdateGraph)
	r.DELETE("/graphs/:id", h.DeleteGraph)

	// Nodes
	r.POST("/graphs/:id/nodes", h.AddNode)
	r.GET("/graphs/:id/nodes", h.ListNodes)
	r.GET("/graphs/:id/nodes/:nodeId", h.GetNode)
	r.PATCH("/graphs/:id/nodes/:nodeId", h.UpdateNode)
	r.DELETE("/graphs/:id/nodes/:nodeId", h.DeleteNode)

	// Edges
	r.POST("/graphs/:id/edges", h.AddEdge)
	r.GET("/graphs/:id/edges", h.ListEdges)
	r.GET("/graphs/:id/edges/:edgeId", h.GetEdge)
}

// -----------------------------------------------------------------------------
// Graph Handlers
// -----------------------------------------------------------------------------

// CreateGraph handles POST /graphs
func (h *Handler) CreateGraph(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)

	var req CreateGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	req.Name = validation.SanitizeString(req.Name, 200)
	req.Description = validation.SanitizeString(req.Description, 1000)

	if errs := validation.Validate(
		validation.Required("name", req.Name),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	g, err := h.svc.CreateGraph(ctx, req)
	if err != nil {
		logger.Error("failed to create graph", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create graph",
		})
		return
	}

	c.JSON(http.StatusCreated, g)
}

// GetGraph handles GET /graphs/:id
// Returns the graph with its full node and edge sets.
func (h *Handler) GetGraph(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")

	g, err := h.svc.GetGraph(ctx, graphID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get graph",
		})
		return
	}

	c.JSON(http.StatusOK, g)
}

// ListGraphs handles GET /graphs
func (h *Handler) ListGraphs(c *gin.Context) {
	ctx := c.Request.Context()

	req := ListRequest{
		Status: Status(c.Query("status")),
		Limit:  parseIntQuery(c, "limit", 0),
		Cursor: c.Query("cursor"),
	}

	if req.Status != "" && !IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_status",
			"message": fmt.Sprintf("Unknown graph status %q", req.Status),
		})
		return
	}

	graphs, next, hasMore, err := h.svc.ListGraphs(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Cursor is malformed or expired",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list graphs",
		})
		return
	}

	resp := gin.H{
		"graphs": graphs,
		"count":  len(graphs),
	}
	if hasMore {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateGraph handles PATCH /graphs/:id
// Applies only the fields present in the request body.
func (h *Handler) UpdateGraph(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")

	var req UpdateGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if req.Name != nil {
		*req.Name = validation.SanitizeString(*req.Name, 200)
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "name must not be empty",
			})
			return
		}
	}
	if req.Description != nil {
		*req.Description = validation.SanitizeString(*req.Description, 1000)
	}
	if req.Status != nil && !IsValidStatus(*req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_status",
			"message": fmt.Sprintf("Unknown graph status %q", *req.Status),
		})
		return
	}

	g, err := h.svc.UpdateGraph(ctx, graphID, req)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to update graph",
		})
		return
	}

	c.JSON(http.StatusOK, g)
}

// DeleteGraph handles DELETE /graphs/:id
func (h *Handler) DeleteGraph(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	deleted, err := h.svc.DeleteGraph(ctx, graphID)
	if err != nil {
		logger.Error("failed to delete graph", "graph_id", graphID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete graph",
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Graph not found",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// Node Handlers
// -----------------------------------------------------------------------------

// AddNode handles POST /graphs/:id/nodes
func (h *Handler) AddNode(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	var req AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.RiskScoreInRange("riskScore", req.RiskScore),
		validation.BoundedProperties("properties", req.Properties),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	// The taxonomy is closed; "other" is the catch-all for entities that
	// don't fit a named kind.
	if !IsKnownNodeType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_node_type",
			"message": fmt.Sprintf("Unknown node type %q", req.Type),
		})
		return
	}

	node, err := h.svc.AddNode(ctx, graphID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrGraphNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
		case errors.Is(err, ErrNodeExists):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "node_exists",
				"message": "A node with this id already exists in the graph",
			})
		case errors.Is(err, ErrNodeLimit):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "limit_exceeded",
				"message": "Graph is at its node capacity",
			})
		default:
			logger.Error("failed to add node", "graph_id", graphID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to add node",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, node)
}

// GetNode handles GET /graphs/:id/nodes/:nodeId
func (h *Handler) GetNode(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")
	nodeID := c.Param("nodeId")

	node, err := h.svc.GetNode(ctx, graphID, nodeID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		if errors.Is(err, ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Node not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get node",
		})
		return
	}

	c.JSON(http.StatusOK, node)
}

// ListNodes handles GET /graphs/:id/nodes
func (h *Handler) ListNodes(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")

	nodes, err := h.svc.ListNodes(ctx, graphID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list nodes",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// UpdateNode handles PATCH /graphs/:id/nodes/:nodeId
func (h *Handler) UpdateNode(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")
	nodeID := c.Param("nodeId")

	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.RiskScoreInRange("riskScore", req.RiskScore),
		validation.BoundedProperties("properties", req.Properties),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	if req.Type != nil && !IsKnownNodeType(*req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_node_type",
			"message": fmt.Sprintf("Unknown node type %q", *req.Type),
		})
		return
	}

	node, err := h.svc.UpdateNode(ctx, graphID, nodeID, req)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) || errors.Is(err, ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph or node not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to update node",
		})
		return
	}

	c.JSON(http.StatusOK, node)
}

// DeleteNode handles DELETE /graphs/:id/nodes/:nodeId
// Edges touching the node are removed with it.
func (h *Handler) DeleteNode(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")
	nodeID := c.Param("nodeId")

	deleted, err := h.svc.DeleteNode(ctx, graphID, nodeID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		logger.Error("failed to delete node", "graph_id", graphID, "node_id", nodeID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete node",
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Node not found",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// Edge Handlers
// -----------------------------------------------------------------------------

// AddEdge handles POST /graphs/:id/edges
// Endpoints are not checked against the node set; edges may reference
// entities that arrive later in the ingest stream.
func (h *Handler) AddEdge(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)
	graphID := c.Param("id")

	var req AddEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.NonNegative("weight", req.Weight),
		validation.BoundedProperties("properties", req.Properties),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	if !IsKnownEdgeType(req.Type) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_edge_type",
			"message": fmt.Sprintf("Unknown edge type %q", req.Type),
		})
		return
	}

	edge, err := h.svc.AddEdge(ctx, graphID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrGraphNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
		case errors.Is(err, ErrEdgeExists):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "edge_exists",
				"message": "An edge with this id already exists in the graph",
			})
		case errors.Is(err, ErrEdgeLimit):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "limit_exceeded",
				"message": "Graph is at its edge capacity",
			})
		default:
			logger.Error("failed to add edge", "graph_id", graphID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to add edge",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, edge)
}

// GetEdge handles GET /graphs/:id/edges/:edgeId
func (h *Handler) GetEdge(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")
	edgeID := c.Param("edgeId")

	edge, err := h.svc.GetEdge(ctx, graphID, edgeID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		if errors.Is(err, ErrEdgeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Edge not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get edge",
		})
		return
	}

	c.JSON(http.StatusOK, edge)
}

// ListEdges handles GET /graphs/:id/edges
func (h *Handler) ListEdges(c *gin.Context) {
	ctx := c.Request.Context()
	graphID := c.Param("id")

	edges, err := h.svc.ListEdges(ctx, graphID)
	if err != nil {
		if errors.Is(err, ErrGraphNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Graph not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list edges",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"edges": edges,
		"count": len(edges),
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func parseIntQuery(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
