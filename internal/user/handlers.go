package user

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

// ActorFunc resolves the authenticated actor for a request.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

// Handler provides HTTP endpoints for user management and the
// self-service /me surface.
type Handler struct {
	service *Service
	actor   ActorFunc
}

// NewHandler creates a new user handler.
func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.POST("/me/password", h.ChangePassword)
	r.POST("/me/2fa", h.SetTwoFactor)

	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.POST("/users", h.CreateUser)
	r.PATCH("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
}

// ---------- Self-service ----------

// Me handles GET /v1/me
func (h *Handler) Me(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	u, err := h.service.Store().Get(c.Request.Context(), actor.ID)
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ChangePassword handles POST /v1/me/password
func (h *Handler) ChangePassword(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "oldPassword and newPassword required")
		return
	}
	if verrs := validation.Validate(
		validation.ValidPassword("newPassword", req.NewPassword),
	); len(verrs) > 0 {
		httpx.ValidationFailed(c, verrs)
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), actor.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		if err == ErrInvalidCredentials {
			httpx.BadRequest(c, "wrong_password", "old password is incorrect")
			return
		}
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// SetTwoFactor handles POST /v1/me/2fa
func (h *Handler) SetTwoFactor(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "enabled required")
		return
	}

	u, err := h.service.SetTwoFactor(c.Request.Context(), actor.ID, *req.Enabled)
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ---------- Org user management ----------

// ListUsers handles GET /v1/users — lists the actor's own organization.
func (h *Handler) ListUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	limit = pagination.ClampLimit(limit)
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.service.Store().ListByOrg(c.Request.Context(), actor.OrgID, limit, offset)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// GetUser handles GET /v1/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	u, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionRead, authz.Resource{Type: authz.ResourceUser, OrgID: u.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// CreateUser handles POST /v1/users — admin-gated, always in the actor's org.
func (h *Handler) CreateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	d := authz.Authorize(actor, authz.ActionCreate, authz.Resource{Type: authz.ResourceUser, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	var req struct {
		Email     string     `json:"email" binding:"required"`
		Username  string     `json:"username"`
		FirstName string     `json:"firstName"`
		LastName  string     `json:"lastName"`
		Role      authz.Role `json:"role" binding:"required"`
		Password  string     `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "email, role and password required")
		return
	}

	req.Email = validation.NormalizeEmail(req.Email)
	if verrs := validation.Validate(
		validation.ValidEmail("email", req.Email),
		validation.ValidPassword("password", req.Password),
	); len(verrs) > 0 {
		httpx.ValidationFailed(c, verrs)
		return
	}
	if !authz.ValidRole(req.Role) {
		httpx.BadRequest(c, "invalid_role", "unknown role")
		return
	}
	// Nobody hands out a role at or above their own rank.
	if !actor.Staff && !actor.Role.Outranks(req.Role) {
		httpx.Denied(c, authz.Decision{Reason: authz.ReasonInsufficientRole})
		return
	}

	u, err := h.service.Create(c.Request.Context(), CreateParams{
		OrgID:     actor.OrgID,
		Email:     req.Email,
		Username:  validation.SanitizeString(req.Username, 100),
		FirstName: validation.SanitizeString(req.FirstName, 100),
		LastName:  validation.SanitizeString(req.LastName, 100),
		Role:      req.Role,
		Password:  req.Password,
	})
	if err != nil {
		switch err {
		case ErrEmailTaken:
			httpx.Conflict(c, "email_taken", "email already registered")
		case ErrUserLimit:
			httpx.Conflict(c, "user_limit", "plan user limit reached")
		default:
			httpx.FromError(c, mapErr(err))
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// UpdateUser handles PATCH /v1/users/:id — admin-gated role/profile changes.
func (h *Handler) UpdateUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	u, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionUpdate, authz.Resource{Type: authz.ResourceUser, OrgID: u.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	var req struct {
		FirstName *string     `json:"firstName"`
		LastName  *string     `json:"lastName"`
		Role      *authz.Role `json:"role"`
		Status    *Status     `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid body")
		return
	}

	if req.Role != nil {
		if !authz.ValidRole(*req.Role) {
			httpx.BadRequest(c, "invalid_role", "unknown role")
			return
		}
		// The actor must outrank both the target's current role and the
		// new one; only staff can touch owners.
		if !actor.Staff && (!actor.Role.Outranks(u.Role) || !actor.Role.Outranks(*req.Role)) {
			httpx.Denied(c, authz.Decision{Reason: authz.ReasonInsufficientRole})
			return
		}
		u.Role = *req.Role
	}
	if req.FirstName != nil {
		u.FirstName = validation.SanitizeString(*req.FirstName, 100)
	}
	if req.LastName != nil {
		u.LastName = validation.SanitizeString(*req.LastName, 100)
	}
	if req.Status != nil {
		if *req.Status != StatusActive && *req.Status != StatusInactive {
			httpx.BadRequest(c, "invalid_status", "status must be active or inactive")
			return
		}
		u.Status = *req.Status
	}
	u.UpdatedAt = time.Now()

	if err := h.service.Store().Update(c.Request.Context(), u); err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// DeleteUser handles DELETE /v1/users/:id — admin-gated.
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	u, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionDelete, authz.Resource{Type: authz.ResourceUser, OrgID: u.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}
	// Checked before rank: an actor never outranks themselves, so the
	// rank guard would swallow self-deletes as 403.
	if u.ID == actor.ID {
		httpx.BadRequest(c, "self_delete", "cannot delete your own account")
		return
	}
	if !actor.Staff && !actor.Role.Outranks(u.Role) {
		httpx.Denied(c, authz.Decision{Reason: authz.ReasonInsufficientRole})
		return
	}

	if err := h.service.Delete(c.Request.Context(), u.ID); err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted", "id": u.ID})
}

func mapErr(err error) error {
	if err == ErrNotFound {
		return httpx.ErrNotFound
	}
	return err
}
