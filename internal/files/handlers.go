package files

import (
	"errors"
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

// Handler provides HTTP endpoints for file uploads.
type Handler struct {
	service *Service
	actor   ActorFunc
}

func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/files", h.Upload)
	r.GET("/files", h.ListFiles)
	r.GET("/files/:id", h.GetFile)
	r.GET("/files/:id/download", h.Download)
	r.PATCH("/files/:id", h.UpdateFile)
	r.DELETE("/files/:id", h.DeleteFile)
}

func (h *Handler) authorize(c *gin.Context, action authz.Action) (authz.Actor, bool) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return authz.Actor{}, false
	}
	d := authz.Authorize(actor, action, authz.Resource{Type: authz.ResourceFile, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return authz.Actor{}, false
	}
	return actor, true
}

// Upload handles POST /v1/files (multipart, field "file")
func (h *Handler) Upload(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionCreate)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		httpx.BadRequest(c, "invalid_request", `multipart field "file" required`)
		return
	}
	src, err := fh.Open()
	if err != nil {
		httpx.Internal(c)
		return
	}
	defer src.Close()

	isPublic, _ := strconv.ParseBool(c.PostForm("is_public"))
	f, err := h.service.Upload(c.Request.Context(), UploadParams{
		OrgID:        actor.OrgID,
		UploadedBy:   actor.ID,
		OriginalName: validation.SanitizeString(fh.Filename, 255),
		IsPublic:     isPublic,
		Body:         src,
	})
	if errors.Is(err, ErrTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "file_too_large",
			"message": "file exceeds the maximum upload size",
		})
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": f})
}

// ListFiles handles GET /v1/files
func (h *Handler) ListFiles(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead)
	if !ok {
		return
	}
	f := Filter{
		Query:             c.Query("q"),
		ContentTypePrefix: c.Query("content_type"),
	}
	if v := c.Query("is_public"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpx.BadRequest(c, "invalid_filter", "is_public must be true or false")
			return
		}
		f.IsPublic = &b
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	f.Limit = pagination.ClampLimit(limit)
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.service.Store().List(c.Request.Context(), actor.OrgID, f)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": list, "count": len(list)})
}

// GetFile handles GET /v1/files/:id
func (h *Handler) GetFile(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead)
	if !ok {
		return
	}
	f, err := h.service.Store().Get(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "file not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": f})
}

// Download handles GET /v1/files/:id/download
func (h *Handler) Download(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead)
	if !ok {
		return
	}
	f, rc, err := h.service.Download(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "file not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, f.SizeBytes, f.ContentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + f.OriginalName + `"`,
	})
}

// UpdateFile handles PATCH /v1/files/:id
func (h *Handler) UpdateFile(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionUpdate)
	if !ok {
		return
	}
	var req struct {
		OriginalName string `json:"originalName"`
		IsPublic     *bool  `json:"isPublic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}

	f, err := h.service.Store().Get(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "file not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	if req.OriginalName != "" {
		f.OriginalName = validation.SanitizeString(req.OriginalName, 255)
	}
	if req.IsPublic != nil {
		f.IsPublic = *req.IsPublic
	}
	f.UpdatedAt = time.Now()
	if err := h.service.Store().Update(c.Request.Context(), f); err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": f})
}

// DeleteFile handles DELETE /v1/files/:id
func (h *Handler) DeleteFile(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionDelete)
	if !ok {
		return
	}
	err := h.service.Delete(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "file not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "file deleted", "id": c.Param("id")})
}
