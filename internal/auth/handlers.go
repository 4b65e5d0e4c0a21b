package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/user"
	"github.com/mbd888/saaskit/internal/validation"
)

// Handler provides the token endpoints and API key management.
type Handler struct {
	tokens *TokenManager
	keys   *Manager
	users  *user.Service
	orgs   org.Store
}

// NewHandler creates a new auth handler.
func NewHandler(tokens *TokenManager, keys *Manager, users *user.Service, orgs org.Store) *Handler {
	return &Handler{tokens: tokens, keys: keys, users: users, orgs: orgs}
}

// RegisterPublicRoutes sets up the token endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/token", h.Token)
	r.POST("/auth/refresh", h.Refresh)
	r.GET("/auth/verify", h.Verify)
}

// RegisterProtectedRoutes sets up API key management.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/api-keys", h.CreateKey)
	r.GET("/api-keys", h.ListKeys)
	r.DELETE("/api-keys/:id", h.RevokeKey)
}

// Token handles POST /v1/auth/token — email+password → access+refresh pair.
func (h *Handler) Token(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "email and password required")
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), validation.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		if err == user.ErrInactive {
			httpx.Denied(c, authz.Decision{Reason: "account inactive"})
			return
		}
		httpx.Unauthorized(c, "invalid email or password")
		return
	}

	if !u.Staff {
		o, err := h.orgs.Get(c.Request.Context(), u.OrgID)
		if err != nil || !o.IsActive() {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			httpx.Denied(c, authz.Decision{Reason: "organization suspended"})
			return
		}
	}

	access, refresh, err := h.tokens.Issue(u)
	if err != nil {
		httpx.Internal(c)
		return
	}

	h.users.RecordLogin(c.Request.Context(), u.ID)
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"tokenType":    "Bearer",
		"expiresIn":    int(h.tokens.AccessTTL() / time.Second),
		"user":         u,
	})
}

// Refresh handles POST /v1/auth/refresh — exchanges a refresh token for a
// fresh pair. The user record is reloaded so role or status changes take
// effect at rotation.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "refreshToken required")
		return
	}

	claims, err := h.tokens.Parse(req.RefreshToken, TokenTypeRefresh)
	if err != nil {
		httpx.Unauthorized(c, "invalid or expired refresh token")
		return
	}

	u, err := h.users.Store().Get(c.Request.Context(), claims.Subject)
	if err != nil || !u.IsActive() {
		httpx.Unauthorized(c, "account no longer active")
		return
	}

	access, refresh, err := h.tokens.Issue(u)
	if err != nil {
		httpx.Internal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"tokenType":    "Bearer",
		"expiresIn":    int(h.tokens.AccessTTL() / time.Second),
	})
}

// Verify handles GET /v1/auth/verify — reports whether the presented
// access token is valid and for whom.
func (h *Handler) Verify(c *gin.Context) {
	raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if raw == "" {
		httpx.Unauthorized(c, "no token presented")
		return
	}

	claims, err := h.tokens.Parse(raw, TokenTypeAccess)
	if err != nil {
		httpx.Unauthorized(c, "invalid or expired token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"userId":    claims.Subject,
		"orgId":     claims.OrgID,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt,
	})
}

// ---------- API keys ----------

// CreateKey handles POST /v1/api-keys — admin-gated.
func (h *Handler) CreateKey(c *gin.Context) {
	actor, ok := CurrentActor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	d := authz.Authorize(actor, authz.ActionCreate, authz.Resource{Type: authz.ResourceAPIKey, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	var req struct {
		Name      string     `json:"name" binding:"required"`
		Role      authz.Role `json:"role"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "name required")
		return
	}

	if req.Role == "" {
		req.Role = authz.RoleUser
	}
	if !authz.ValidRole(req.Role) {
		httpx.BadRequest(c, "invalid_role", "unknown role")
		return
	}
	// A key can never carry a role at or above its creator's rank.
	if !actor.Staff && !actor.Role.Outranks(req.Role) {
		httpx.Denied(c, authz.Decision{Reason: authz.ReasonInsufficientRole})
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		httpx.BadRequest(c, "invalid_expiry", "expiresAt must be in the future")
		return
	}

	rawKey, key, err := h.keys.GenerateKey(c.Request.Context(), actor.OrgID, actor.ID,
		validation.SanitizeString(req.Name, 200), req.Role, req.ExpiresAt)
	if err != nil {
		httpx.Internal(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"apiKey":  rawKey,
		"key":     key,
		"warning": "Store this API key securely. It will not be shown again.",
	})
}

// ListKeys handles GET /v1/api-keys — lists the actor's organization keys.
func (h *Handler) ListKeys(c *gin.Context) {
	actor, ok := CurrentActor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	keys, err := h.keys.ListKeys(c.Request.Context(), actor.OrgID)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "count": len(keys)})
}

// RevokeKey handles DELETE /v1/api-keys/:id — admin-gated.
func (h *Handler) RevokeKey(c *gin.Context) {
	actor, ok := CurrentActor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	d := authz.Authorize(actor, authz.ActionDelete, authz.Resource{Type: authz.ResourceAPIKey, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	keyID := c.Param("id")
	if err := h.keys.RevokeKey(c.Request.Context(), actor.OrgID, keyID); err != nil {
		if err == ErrKeyNotFound {
			httpx.NotFound(c, "API key not found")
			return
		}
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "key revoked", "keyId": keyID})
}
