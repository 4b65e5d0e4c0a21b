package org

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/pagination"
	"github.com/mbd888/saaskit/internal/validation"
)

// ActorFunc resolves the authenticated actor for a request. The auth
// middleware provides the implementation; handlers stay decoupled from it.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

// Handler provides HTTP endpoints for organization management.
type Handler struct {
	service *Service
	actor   ActorFunc
}

// NewHandler creates a new organization handler.
func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterPublicRoutes sets up routes reachable without authentication.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.Signup)
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/organizations/:id", h.GetOrganization)
	r.PATCH("/organizations/:id", h.UpdateOrganization)
}

// RegisterStaffRoutes sets up platform-staff routes.
func (h *Handler) RegisterStaffRoutes(r *gin.RouterGroup) {
	r.GET("/organizations", h.ListOrganizations)
	r.POST("/organizations/:id/status", h.SetStatus)
	r.POST("/organizations/:id/plan", h.SetPlan)
}

// Signup handles POST /v1/signup — creates an organization with its owner.
func (h *Handler) Signup(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Slug  string `json:"slug" binding:"required"`
		Plan  Plan   `json:"plan"`
		Owner struct {
			Email    string `json:"email" binding:"required"`
			Username string `json:"username"`
			Password string `json:"password" binding:"required"`
		} `json:"owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "name, slug and owner credentials required")
		return
	}

	req.Slug = validation.NormalizeSlug(req.Slug)
	req.Owner.Email = validation.NormalizeEmail(req.Owner.Email)

	if verrs := validation.Validate(
		validation.ValidSlug("slug", req.Slug),
		validation.ValidEmail("owner.email", req.Owner.Email),
		validation.ValidPassword("owner.password", req.Owner.Password),
	); len(verrs) > 0 {
		httpx.ValidationFailed(c, verrs)
		return
	}

	if req.Plan == "" {
		req.Plan = PlanBasic
	}
	if !ValidPlan(req.Plan) {
		httpx.BadRequest(c, "invalid_plan", "unknown plan")
		return
	}

	o, ownerID, err := h.service.Signup(c.Request.Context(), SignupParams{
		Name: validation.SanitizeString(req.Name, 200),
		Slug: req.Slug,
		Plan: req.Plan,
		Owner: OwnerSignup{
			Email:    req.Owner.Email,
			Username: req.Owner.Username,
			Password: req.Owner.Password,
		},
	})
	if err != nil {
		switch err {
		case ErrSlugTaken:
			httpx.Conflict(c, "slug_taken", "slug already in use")
		default:
			httpx.Internal(c)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"organization": o, "ownerId": ownerID})
}

// GetOrganization handles GET /v1/organizations/:id
func (h *Handler) GetOrganization(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	o, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionRead, authz.Resource{Type: authz.ResourceOrganization, OrgID: o.ID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization": o})
}

// UpdateOrganization handles PATCH /v1/organizations/:id — owner only.
func (h *Handler) UpdateOrganization(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	o, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionUpdate, authz.Resource{Type: authz.ResourceOrganization, OrgID: o.ID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	var req struct {
		Name *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid body")
		return
	}

	if req.Name != nil {
		name := validation.SanitizeString(*req.Name, 200)
		if name == "" {
			httpx.BadRequest(c, "invalid_name", "name must not be empty")
			return
		}
		o.Name = name
	}
	o.UpdatedAt = time.Now()

	if err := h.service.Store().Update(c.Request.Context(), o); err != nil {
		httpx.Internal(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization": o})
}

// ListOrganizations handles GET /v1/admin/organizations (staff only).
func (h *Handler) ListOrganizations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	limit = pagination.ClampLimit(limit)
	status := Status(c.Query("status"))

	orgs, err := h.service.Store().List(c.Request.Context(), status, limit, 0)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs, "count": len(orgs)})
}

// SetStatus handles POST /v1/admin/organizations/:id/status (staff only).
func (h *Handler) SetStatus(c *gin.Context) {
	var req struct {
		Status Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "status required")
		return
	}
	if req.Status != StatusActive && req.Status != StatusSuspended {
		httpx.BadRequest(c, "invalid_status", "status must be active or suspended")
		return
	}

	o, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": o})
}

// SetPlan handles POST /v1/admin/organizations/:id/plan (staff only).
func (h *Handler) SetPlan(c *gin.Context) {
	var req struct {
		Plan Plan `json:"plan" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "plan required")
		return
	}
	if !ValidPlan(req.Plan) {
		httpx.BadRequest(c, "invalid_plan", "unknown plan")
		return
	}

	o, err := h.service.ChangePlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": o})
}

func mapErr(err error) error {
	if err == ErrNotFound {
		return httpx.ErrNotFound
	}
	return err
}
