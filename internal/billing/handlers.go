package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/org"
)

// ActorFunc resolves the authenticated actor for a request.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

// Handler provides HTTP endpoints for the org's subscription.
type Handler struct {
	service *Service
	actor   ActorFunc
}

func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/subscription", h.GetSubscription)
	r.POST("/subscription", h.Subscribe)
	r.DELETE("/subscription", h.CancelSubscription)
	r.POST("/subscription/resume", h.ResumeSubscription)
}

func (h *Handler) authorize(c *gin.Context, action authz.Action) (authz.Actor, bool) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return authz.Actor{}, false
	}
	d := authz.Authorize(actor, action, authz.Resource{Type: authz.ResourceSubscription, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return authz.Actor{}, false
	}
	return actor, true
}

// subscriptionResponse adds the derived activity flag.
type subscriptionResponse struct {
	*Subscription
	IsActive bool `json:"isActive"`
}

// GetSubscription handles GET /v1/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead)
	if !ok {
		return
	}
	sub, err := h.service.Current(c.Request.Context(), actor.OrgID)
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "no subscription for this organization")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionResponse{sub, sub.IsActive()}})
}

// Subscribe handles POST /v1/subscription
func (h *Handler) Subscribe(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionCreate)
	if !ok {
		return
	}
	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	if !org.ValidPlan(org.Plan(req.Plan)) {
		httpx.BadRequest(c, "invalid_plan", "unknown plan")
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), actor.OrgID, org.Plan(req.Plan))
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": subscriptionResponse{sub, sub.IsActive()}})
}

// CancelSubscription handles DELETE /v1/subscription
func (h *Handler) CancelSubscription(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionDelete)
	if !ok {
		return
	}
	sub, err := h.service.Cancel(c.Request.Context(), actor.OrgID)
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "no subscription for this organization")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionResponse{sub, sub.IsActive()}})
}

// ResumeSubscription handles POST /v1/subscription/resume
func (h *Handler) ResumeSubscription(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionUpdate)
	if !ok {
		return
	}
	sub, err := h.service.Resume(c.Request.Context(), actor.OrgID)
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "no subscription for this organization")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": subscriptionResponse{sub, sub.IsActive()}})
}
