// Package httpx maps service errors onto the API's error responses.
//
// Every error body has the shape {"error": <machine code>, "message": <human>}.
// Cross-tenant denials are rendered as 404, not 403, so a caller cannot
// probe for the existence of another organization's resources.
package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/validation"
)

// Sentinel errors shared across service packages.
var (
	ErrNotFound = errors.New("httpx: not found")
	ErrConflict = errors.New("httpx: conflict")
)

// Unauthorized writes a 401.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

// Denied writes the response for an authz denial. Tenant mismatches are
// concealed as 404; everything else is 403 with the reason.
func Denied(c *gin.Context, d authz.Decision) {
	switch d.Reason {
	case authz.ReasonTenantMismatch:
		NotFound(c, "resource not found")
	case authz.ReasonNotAuthenticated:
		Unauthorized(c, "authentication required")
	default:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": string(d.Reason),
		})
	}
}

// NotFound writes a 404.
func NotFound(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": message,
	})
}

// Conflict writes a 409 (duplicate slug, unique key, ...).
func Conflict(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{
		"error":   code,
		"message": message,
	})
}

// BadRequest writes a 400.
func BadRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   code,
		"message": message,
	})
}

// ValidationFailed writes a 400 with per-field messages.
func ValidationFailed(c *gin.Context, fields validation.ValidationErrors) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "validation_failed",
		"message": "one or more fields are invalid",
		"fields":  fields,
	})
}

// Internal writes a 500 without leaking the underlying error.
func Internal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "an unexpected error occurred",
	})
}

// FromError renders err using the taxonomy: ErrNotFound → 404,
// ErrConflict → 409, anything else → 500.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		NotFound(c, "resource not found")
	case errors.Is(err, ErrConflict):
		Conflict(c, "conflict", "resource already exists")
	default:
		Internal(c)
	}
}
