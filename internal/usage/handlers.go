package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
)

// ActorFunc resolves the authenticated actor for a request.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

// Handler exposes the read-only usage endpoints. Counters are written
// by the services that own them, never through the API.
type Handler struct {
	service *Service
	actor   ActorFunc
}

func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/usage", h.CurrentUsage)
}

// RegisterStaffRoutes sets up operator-only routes.
func (h *Handler) RegisterStaffRoutes(r *gin.RouterGroup) {
	r.POST("/usage/recompute", h.Recompute)
}

// CurrentUsage handles GET /v1/usage
func (h *Handler) CurrentUsage(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}
	d := authz.Authorize(actor, authz.ActionRead, authz.Resource{Type: authz.ResourceUsage, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	snaps, err := h.service.Current(c.Request.Context(), actor.OrgID)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": snaps})
}

// Recompute handles POST /v1/admin/usage/recompute
//
// Runs one metering pass across every active organization. Intended for
// operators after a migration or limit change; the timer does the same
// thing on its own schedule.
func (h *Handler) Recompute(c *gin.Context) {
	if err := h.service.RecomputeAll(c.Request.Context()); err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
