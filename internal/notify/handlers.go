package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/pagination"
)

// ActorFunc resolves the authenticated actor for a request.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

// Handler provides HTTP endpoints for a user's notification feed.
type Handler struct {
	service *Service
	actor   ActorFunc
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.POST("/notifications/:id/read", h.MarkRead)
	r.DELETE("/notifications/:id", h.DeleteNotification)
}

// ListNotifications handles GET /v1/notifications — the actor's own feed.
func (h *Handler) ListNotifications(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	f := Filter{UserID: actor.ID}
	if v := c.Query("is_read"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpx.BadRequest(c, "invalid_filter", "is_read must be a boolean")
			return
		}
		f.IsRead = &b
	}
	if v := c.Query("type"); v != "" {
		if !ValidType(Type(v)) {
			httpx.BadRequest(c, "invalid_filter", "unknown notification type")
			return
		}
		f.Type = Type(v)
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	f.Limit = pagination.ClampLimit(limit)
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.service.Store().List(c.Request.Context(), actor.OrgID, f)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// UnreadCount handles GET /v1/notifications/unread-count
func (h *Handler) UnreadCount(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	count, err := h.service.Store().CountUnread(c.Request.Context(), actor.OrgID, actor.ID)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead handles POST /v1/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	n, ok := h.fetchOwned(c, actor, authz.ActionUpdate)
	if !ok {
		return
	}

	updated, err := h.service.MarkRead(c.Request.Context(), n.ID)
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": updated})
}

// DeleteNotification handles DELETE /v1/notifications/:id
func (h *Handler) DeleteNotification(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	n, ok := h.fetchOwned(c, actor, authz.ActionDelete)
	if !ok {
		return
	}

	if err := h.service.Store().Delete(c.Request.Context(), n.ID); err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification deleted", "id": n.ID})
}

// fetchOwned loads the notification and checks both the authz table and
// personal ownership. Another user's notification in the same org is
// concealed the same way a foreign org's would be.
func (h *Handler) fetchOwned(c *gin.Context, actor authz.Actor, action authz.Action) (*Notification, bool) {
	n, err := h.service.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return nil, false
	}

	d := authz.Authorize(actor, action, authz.Resource{Type: authz.ResourceNotification, OrgID: n.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return nil, false
	}
	if !actor.Staff && n.UserID != actor.ID {
		httpx.NotFound(c, "resource not found")
		return nil, false
	}
	return n, true
}

func mapErr(err error) error {
	if err == ErrNotFound {
		return httpx.ErrNotFound
	}
	return err
}
