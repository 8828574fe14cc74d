package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for key management. Bootstrap issuance is
// open in development; in production it requires the admin secret.
type Handler struct {
	manager     *Manager
	adminSecret string
	devMode     bool
}

// NewHandler creates a new auth handler
func NewHandler(m *Manager, adminSecret string, devMode bool) *Handler {
	return &Handler{manager: m, adminSecret: adminSecret, devMode: devMode}
}

// RegisterRoutes sets up the key management routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth", h.Info)
	r.POST("/keys", h.CreateKey)
	r.GET("/keys", h.ListKeys)
	r.DELETE("/keys/:keyId", h.RevokeKey)
}

// Info returns auth configuration info
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"type":      "api_key",
		"header":    "Authorization: Bearer sk_...",
		"altHeader": "X-API-Key: sk_...",
		"note":      "Reads are public. Mutations and analysis passes require a key.",
		"publicEndpoints": []string{
			"GET /v1/graphs",
			"GET /v1/graphs/:id",
			"GET /v1/graphs/:id/stats",
			"GET /v1/graphs/:id/analyses",
			"GET /v1/analyses/:id",
		},
		"protectedEndpoints": []string{
			"POST /v1/graphs",
			"PATCH /v1/graphs/:id",
			"DELETE /v1/graphs/:id",
			"POST /v1/graphs/:id/nodes",
			"POST /v1/graphs/:id/edges",
			"POST /v1/graphs/:id/analyze",
		},
	})
}

// CreateKeyRequest is the request body for creating a key
type CreateKeyRequest struct {
	OwnerID string `json:"ownerId" binding:"required"`
	Name    string `json:"name"`
}

// CreateKey issues a new API key. Allowed for authenticated callers, in
// development mode, or with the admin secret header.
func (h *Handler) CreateKey(c *gin.Context) {
	if !h.allowIssue(c) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Key issuance requires authentication or the admin secret",
		})
		return
	}

	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "ownerId is required",
		})
		return
	}
	if req.Name == "" {
		req.Name = "Default key"
	}

	rawKey, newKey, err := h.manager.GenerateKey(c.Request.Context(), req.OwnerID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create API key",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"apiKey":  rawKey,
		"keyId":   newKey.ID,
		"ownerId": newKey.OwnerID,
		"name":    newKey.Name,
		"warning": "Store this key securely. It will not be shown again.",
	})
}

// ListKeys returns API keys for the authenticated owner
func (h *Handler) ListKeys(c *gin.Context) {
	key, ok := GetAPIKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	keys, err := h.manager.ListKeys(c.Request.Context(), key.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list keys",
		})
		return
	}

	// Don't expose hashes
	safeKeys := make([]gin.H, len(keys))
	for i, k := range keys {
		safeKeys[i] = gin.H{
			"id":        k.ID,
			"name":      k.Name,
			"createdAt": k.CreatedAt,
			"lastUsed":  k.LastUsed,
			"revoked":   k.Revoked,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"keys":  safeKeys,
		"count": len(safeKeys),
	})
}

// RevokeKey revokes an API key belonging to the authenticated owner
func (h *Handler) RevokeKey(c *gin.Context) {
	key, ok := GetAPIKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	keyID := c.Param("keyId")

	// Prevent revoking current key
	if keyID == key.ID {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "cannot_revoke_current",
			"message": "Cannot revoke the key you're using",
		})
		return
	}

	if err := h.manager.RevokeKey(c.Request.Context(), keyID, key.OwnerID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "key_not_found",
			"message": "Key not found or already revoked",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Key revoked",
		"keyId":   keyID,
	})
}

func (h *Handler) allowIssue(c *gin.Context) bool {
	if IsAuthenticated(c) || h.devMode {
		return true
	}
	if h.adminSecret == "" {
		return false
	}
	secret := c.GetHeader("X-Admin-Secret")
	return subtle.ConstantTimeCompare([]byte(secret), []byte(h.adminSecret)) == 1
}
