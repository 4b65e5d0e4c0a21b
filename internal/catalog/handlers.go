package catalog

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

// Handler provides HTTP endpoints for the product catalogue.
type Handler struct {
	service *Service
	actor   ActorFunc
}

func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// RegisterProtectedRoutes sets up routes requiring an authenticated actor.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.ListCategories)
	r.POST("/categories", h.CreateCategory)
	r.GET("/categories/:id", h.GetCategory)
	r.PATCH("/categories/:id", h.UpdateCategory)
	r.DELETE("/categories/:id", h.DeleteCategory)

	r.GET("/products", h.ListProducts)
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
	r.POST("/products/:id/view", h.RecordView)

	r.GET("/products/:id/images", h.ListImages)
	r.POST("/products/:id/images", h.AddImage)
	r.PUT("/products/:id/images/:imageId/primary", h.SetPrimaryImage)
	r.DELETE("/products/:id/images/:imageId", h.DeleteImage)
}

// productResponse adds the derived pricing fields to the stored record.
type productResponse struct {
	*Product
	EffectivePrice int64   `json:"effectivePrice"`
	InStock        bool    `json:"isInStock"`
	ProfitMargin   float64 `json:"profitMargin"`
}

func present(p *Product) productResponse {
	return productResponse{
		Product:        p,
		EffectivePrice: p.EffectivePrice(),
		InStock:        p.IsInStock(),
		ProfitMargin:   p.ProfitMargin(),
	}
}

func (h *Handler) authorize(c *gin.Context, action authz.Action, rt authz.ResourceType) (authz.Actor, bool) {
	actor, ok := h.actor(c)
	if !ok {
		httpx.Unauthorized(c, "authentication required")
		return authz.Actor{}, false
	}
	d := authz.Authorize(actor, action, authz.Resource{Type: rt, OrgID: actor.OrgID})
	if !d.Allow {
		httpx.Denied(c, d)
		return authz.Actor{}, false
	}
	return actor, true
}

// ListCategories handles GET /v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceCategory)
	if !ok {
		return
	}
	cats, err := h.service.Store().ListCategories(c.Request.Context(), actor.OrgID)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats, "count": len(cats)})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

// CreateCategory handles POST /v1/categories
func (h *Handler) CreateCategory(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionCreate, authz.ResourceCategory)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	if errs := validation.Validate(
		validation.Required("name", req.Name),
		validation.MaxLength("name", req.Name, 120),
	); len(errs) > 0 {
		httpx.ValidationFailed(c, errs)
		return
	}

	cat, err := h.service.CreateCategory(c.Request.Context(), actor.OrgID, CategoryParams{
		Name:        validation.SanitizeString(req.Name, 120),
		Slug:        req.Slug,
		Description: validation.SanitizeString(req.Description, 2000),
		IsActive:    req.IsActive,
	})
	if errors.Is(err, ErrSlugTaken) {
		httpx.Conflict(c, "slug_taken", "a category with this slug already exists")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

// GetCategory handles GET /v1/categories/:id
func (h *Handler) GetCategory(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceCategory)
	if !ok {
		return
	}
	cat, err := h.service.Store().GetCategory(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "category not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}

// UpdateCategory handles PATCH /v1/categories/:id
func (h *Handler) UpdateCategory(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionUpdate, authz.ResourceCategory)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	cat, err := h.service.UpdateCategory(c.Request.Context(), actor.OrgID, c.Param("id"), CategoryParams{
		Name:        validation.SanitizeString(req.Name, 120),
		Slug:        req.Slug,
		Description: validation.SanitizeString(req.Description, 2000),
		IsActive:    req.IsActive,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(c, "category not found")
	case errors.Is(err, ErrSlugTaken):
		httpx.Conflict(c, "slug_taken", "a category with this slug already exists")
	case err != nil:
		httpx.Internal(c)
	default:
		c.JSON(http.StatusOK, gin.H{"category": cat})
	}
}

// DeleteCategory handles DELETE /v1/categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionDelete, authz.ResourceCategory)
	if !ok {
		return
	}
	err := h.service.Store().DeleteCategory(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "category not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted", "id": c.Param("id")})
}

func parseFilter(c *gin.Context) (ProductFilter, bool) {
	f := ProductFilter{
		CategorySlug: c.Query("category"),
		Query:        c.Query("q"),
	}
	parseCents := func(name string) (*int64, bool) {
		v := c.Query(name)
		if v == "" {
			return nil, true
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			httpx.BadRequest(c, "invalid_filter", name+" must be a non-negative integer")
			return nil, false
		}
		return &n, true
	}
	parseBool := func(name string) (*bool, bool) {
		v := c.Query(name)
		if v == "" {
			return nil, true
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpx.BadRequest(c, "invalid_filter", name+" must be true or false")
			return nil, false
		}
		return &b, true
	}

	var ok bool
	if f.MinPrice, ok = parseCents("min_price"); !ok {
		return f, false
	}
	if f.MaxPrice, ok = parseCents("max_price"); !ok {
		return f, false
	}
	if f.IsActive, ok = parseBool("is_active"); !ok {
		return f, false
	}
	if f.IsFeatured, ok = parseBool("is_featured"); !ok {
		return f, false
	}
	if f.IsDigital, ok = parseBool("is_digital"); !ok {
		return f, false
	}
	return f, true
}

// ListProducts handles GET /v1/products
func (h *Handler) ListProducts(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceProduct)
	if !ok {
		return
	}
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	limit = pagination.ClampLimit(limit)
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		httpx.BadRequest(c, "invalid_cursor", "cursor is not valid")
		return
	}

	products, err := h.service.Store().ListProducts(c.Request.Context(), actor.OrgID, f, limit, cursor)
	if err != nil {
		httpx.Internal(c)
		return
	}
	page, next, hasMore := pagination.ComputePage(products, limit, func(p *Product) (time.Time, string) {
		return p.CreatedAt, p.ID
	})
	out := make([]productResponse, 0, len(page))
	for _, p := range page {
		out = append(out, present(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"products":   out,
		"count":      len(out),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

type productRequest struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	CostPrice   *int64 `json:"costPrice"`
	SalePrice   *int64 `json:"salePrice"`
	Quantity    int64  `json:"quantity"`
	IsActive    *bool  `json:"isActive"`
	IsFeatured  *bool  `json:"isFeatured"`
	IsDigital   *bool  `json:"isDigital"`
}

func (r productRequest) validate() validation.ValidationErrors {
	validators := []func() *validation.ValidationError{
		validation.Required("name", r.Name),
		validation.MaxLength("name", r.Name, 200),
		validation.NonNegative("price", float64(r.Price)),
		validation.NonNegative("quantity", float64(r.Quantity)),
	}
	if r.CostPrice != nil {
		validators = append(validators, validation.NonNegative("costPrice", float64(*r.CostPrice)))
	}
	if r.SalePrice != nil {
		validators = append(validators, validation.NonNegative("salePrice", float64(*r.SalePrice)))
	}
	return validation.Validate(validators...)
}

func (r productRequest) params() ProductParams {
	return ProductParams{
		CategoryID:  r.CategoryID,
		Name:        validation.SanitizeString(r.Name, 200),
		Description: validation.SanitizeString(r.Description, 5000),
		Price:       r.Price,
		CostPrice:   r.CostPrice,
		SalePrice:   r.SalePrice,
		Quantity:    r.Quantity,
		IsActive:    r.IsActive,
		IsFeatured:  r.IsFeatured,
		IsDigital:   r.IsDigital,
	}
}

// CreateProduct handles POST /v1/products
func (h *Handler) CreateProduct(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionCreate, authz.ResourceProduct)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpx.ValidationFailed(c, errs)
		return
	}

	p, err := h.service.CreateProduct(c.Request.Context(), actor.OrgID, actor.ID, req.params())
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.BadRequest(c, "invalid_category", "category does not exist")
	case errors.Is(err, ErrProductLimit):
		httpx.Conflict(c, "product_limit", "product limit for the current plan reached")
	case err != nil:
		httpx.Internal(c)
	default:
		c.JSON(http.StatusCreated, gin.H{"product": present(p)})
	}
}

// GetProduct handles GET /v1/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceProduct)
	if !ok {
		return
	}
	p, err := h.service.Store().GetProduct(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "product not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	images, err := h.service.Store().ListImages(c.Request.Context(), p.ID)
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": present(p), "images": images})
}

// UpdateProduct handles PUT /v1/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionUpdate, authz.ResourceProduct)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpx.ValidationFailed(c, errs)
		return
	}

	p, err := h.service.UpdateProduct(c.Request.Context(), actor.OrgID, c.Param("id"), actor.ID, req.params())
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "product not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": present(p)})
}

// DeleteProduct handles DELETE /v1/products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionDelete, authz.ResourceProduct)
	if !ok {
		return
	}
	err := h.service.DeleteProduct(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "product not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted", "id": c.Param("id")})
}

// RecordView handles POST /v1/products/:id/view
func (h *Handler) RecordView(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceProduct)
	if !ok {
		return
	}
	err := h.service.RecordView(c.Request.Context(), actor.OrgID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "product not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "view recorded"})
}

// ListImages handles GET /v1/products/:id/images
func (h *Handler) ListImages(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionRead, authz.ResourceProductImage)
	if !ok {
		return
	}
	if _, err := h.service.Store().GetProduct(c.Request.Context(), actor.OrgID, c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.NotFound(c, "product not found")
			return
		}
		httpx.Internal(c)
		return
	}
	images, err := h.service.Store().ListImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

type imageRequest struct {
	URL       string `json:"url"`
	AltText   string `json:"altText"`
	IsPrimary bool   `json:"isPrimary"`
	SortOrder int    `json:"sortOrder"`
}

// AddImage handles POST /v1/products/:id/images
func (h *Handler) AddImage(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionCreate, authz.ResourceProductImage)
	if !ok {
		return
	}
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid_request", "invalid JSON body")
		return
	}
	if errs := validation.Validate(
		validation.Required("url", req.URL),
		validation.MaxLength("url", req.URL, 2000),
	); len(errs) > 0 {
		httpx.ValidationFailed(c, errs)
		return
	}

	img, err := h.service.AddImage(c.Request.Context(), actor.OrgID, c.Param("id"), ProductImage{
		URL:       req.URL,
		AltText:   validation.SanitizeString(req.AltText, 300),
		IsPrimary: req.IsPrimary,
		SortOrder: req.SortOrder,
	})
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "product not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image": img})
}

// SetPrimaryImage handles PUT /v1/products/:id/images/:imageId/primary
func (h *Handler) SetPrimaryImage(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionUpdate, authz.ResourceProductImage)
	if !ok {
		return
	}
	img, err := h.service.SetPrimaryImage(c.Request.Context(), actor.OrgID, c.Param("id"), c.Param("imageId"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "image not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": img})
}

// DeleteImage handles DELETE /v1/products/:id/images/:imageId
func (h *Handler) DeleteImage(c *gin.Context) {
	actor, ok := h.authorize(c, authz.ActionDelete, authz.ResourceProductImage)
	if !ok {
		return
	}
	err := h.service.DeleteImage(c.Request.Context(), actor.OrgID, c.Param("id"), c.Param("imageId"))
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(c, "image not found")
		return
	}
	if err != nil {
		httpx.Internal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "image deleted", "id": c.Param("imageId")})
}
