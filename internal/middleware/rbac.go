package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

// RoutePolicy states who may call a route. Empty Roles admits any
// authenticated caller.
type RoutePolicy struct {
	Public bool
	Roles  []models.UserRole
}

// Allows reports whether role may call the route.
func (p RoutePolicy) Allows(role models.UserRole) bool {
	if len(p.Roles) == 0 {
		return true
	}
	for _, allowed := range p.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// PolicyTable maps "METHOD /path/:param" (relative to Prefix) to a policy.
type PolicyTable struct {
	Prefix string
	Routes map[string]RoutePolicy
}

// Lookup finds the policy of a registered gin route.
func (t PolicyTable) Lookup(method, fullPath string) (RoutePolicy, bool) {
	policy, ok := t.Routes[PolicyKey(method, strings.TrimPrefix(fullPath, t.Prefix))]
	return policy, ok
}

// PolicyKey builds a table key.
func PolicyKey(method, path string) string {
	return method + " " + path
}

// Authorize enforces the route table. Routes without an entry fail closed.
func Authorize(table PolicyTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, ok := table.Lookup(c.Request.Method, c.FullPath())
		if !ok {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		if policy.Public {
			c.Next()
			return
		}
		identity, authenticated := CurrentIdentity(c)
		if !authenticated {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !policy.Allows(identity.Role) {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
