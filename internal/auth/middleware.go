package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/httpx"
)

// ContextKeyActor is the gin context key holding the resolved authz.Actor.
const ContextKeyActor = "authActor"

// Middleware resolves request credentials into an actor without aborting.
// Bearer JWTs, sk_ API keys and the ops admin secret are all accepted.
// Downstream handlers decide whether auth is required.
func Middleware(tokens *TokenManager, keys *Manager, adminSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminSecret != "" && c.GetHeader("X-Admin-Secret") == adminSecret {
			c.Set(ContextKeyActor, authz.Actor{ID: "staff:ops", Staff: true})
			c.Next()
			return
		}

		cred := c.GetHeader("Authorization")
		if cred == "" {
			cred = c.GetHeader("X-API-Key")
		}
		if cred == "" {
			c.Next()
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(cred, "Bearer "))
		if strings.HasPrefix(raw, "sk_") {
			key, err := keys.ValidateKey(c.Request.Context(), raw)
			if err == nil {
				c.Set(ContextKeyActor, key.Actor())
			}
		} else {
			claims, err := tokens.Parse(raw, TokenTypeAccess)
			if err == nil {
				c.Set(ContextKeyActor, authz.Actor{
					ID:    claims.Subject,
					OrgID: claims.OrgID,
					Role:  authz.Role(claims.Role),
					Staff: claims.Staff,
				})
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests that did not resolve to an actor.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextKeyActor); !ok {
			httpx.Unauthorized(c, "authentication required; include 'Authorization: Bearer <token>' or an API key")
			return
		}
		c.Next()
	}
}

// RequireStaff rejects requests from non-staff actors.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			httpx.Unauthorized(c, "authentication required")
			return
		}
		if !actor.Staff {
			httpx.Denied(c, authz.Decision{Reason: authz.ReasonInsufficientRole})
			return
		}
		c.Next()
	}
}

// CurrentActor returns the resolved actor for the request, if any.
func CurrentActor(c *gin.Context) (authz.Actor, bool) {
	v, ok := c.Get(ContextKeyActor)
	if !ok {
		return authz.Actor{}, false
	}
	actor, ok := v.(authz.Actor)
	return actor, ok
}
