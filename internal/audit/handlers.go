package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
	"github.com/mbd888/saaskit/internal/pagination"
)

// Handler provides HTTP endpoints for reading and pruning the activity log.
type Handler struct {
	recorder *Recorder
	actor    ActorFunc
}

// NewHandler creates a new activity log handler.
func NewHandler(recorder *Recorder, actor ActorFunc) *Handler {
	return &Handler{recorder: recorder, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
// The log is append-only through the API: list, get and delete only.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/activity-logs", h.ListEntries)
	r.GET("/activity-logs/:id", h.GetEntry)
	r.DELETE("/activity-logs/:id", h.DeleteEntry)
}

// ListEntries handles GET /v1/activity-logs
func (h *Handler) ListEntries(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	f := Filter{
		ActorID:      c.Query("actor_id"),
		ResourceType: c.Query("resource_type"),
	}
	if v := c.Query("action"); v != "" {
		f.Action = Action(v)
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.BadRequest(c, "invalid_filter", "since must be RFC3339")
			return
		}
		f.Since = t
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	f.Limit = pagination.ClampLimit(limit)
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.recorder.Store().List(c.Request.Context(), actor.OrgID, f)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// GetEntry handles GET /v1/activity-logs/:id
func (h *Handler) GetEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	e, err := h.recorder.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionRead, authz.Resource{Type: authz.ResourceActivityLog, OrgID: e.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": e})
}

// DeleteEntry handles DELETE /v1/activity-logs/:id — admin and owner only.
func (h *Handler) DeleteEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return
	}

	e, err := h.recorder.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}

	d := authz.Authorize(actor, authz.ActionDelete, authz.Resource{Type: authz.ResourceActivityLog, OrgID: e.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return
	}

	if err := h.recorder.Store().Delete(c.Request.Context(), e.ID); err != nil {
		httpx.FromError(c, mapErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "entry deleted", "id": e.ID})
}

func mapErr(err error) error {
	if err == ErrNotFound {
		return httpx.ErrNotFound
	}
	return err
}
