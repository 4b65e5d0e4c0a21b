package audit

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/saaskit/internal/authz"
)

// ActorFunc resolves the authenticated actor for a request.
type ActorFunc func(c *gin.Context) (authz.Actor, bool)

var methodActions = map[string]Action{
	"POST":   ActionCreate,
	"PUT":    ActionUpdate,
	"PATCH":  ActionUpdate,
	"DELETE": ActionDelete,
}

// Middleware records successful mutating requests (POST/PUT/PATCH/DELETE)
// after the handler runs. Auth endpoints are excluded so credentials
// never end up near the log, as are unauthenticated requests (they have
// no org to attribute the entry to).
func Middleware(rec *Recorder, actorOf ActorFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, ok := methodActions[c.Request.Method]
		if !ok {
			return
		}
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/v1/auth/") || path == "/v1/signup" {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}
		actor, ok := actorOf(c)
		if !ok || actor.OrgID == "" {
			return
		}

		rec.Record(c.Request.Context(), Entry{
			OrgID:         actor.OrgID,
			ActorID:       actor.ID,
			Action:        action,
			ResourceType:  resourceFromPath(path),
			Description:   c.Request.Method + " " + path,
			IPAddress:     c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
			RequestPath:   path,
			RequestMethod: c.Request.Method,
		})
	}
}

// resourceFromPath extracts the collection segment from /v1/<collection>/...
func resourceFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
