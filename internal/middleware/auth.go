package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/logger"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

// Context keys populated by Authenticate.
const (
	ContextUserKey   = "currentUser"
	ContextClaimsKey = "currentClaims"
)

// TokenAuthenticator resolves a bearer token to a live identity.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, *models.JWTClaims, error)
}

// Authenticate verifies the bearer token when one is sent and attaches the
// caller's identity. Public routes let anonymous requests through; a token
// that is present but bad is rejected everywhere with the same error.
func Authenticate(auth TokenAuthenticator, table PolicyTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, _ := table.Lookup(c.Request.Method, c.FullPath())

		header := c.GetHeader("Authorization")
		if header == "" {
			if policy.Public {
				c.Next()
				return
			}
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		identity, claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		c.Set(ContextUserKey, identity)
		c.Set(ContextClaimsKey, claims)
		c.Set(logger.UserIDKey, identity.ID)
		c.Next()
	}
}

// CurrentIdentity returns the authenticated caller, if any.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(*models.Identity)
	if !ok || identity == nil {
		return models.Identity{}, false
	}
	return *identity, true
}

// CurrentClaims returns the verified token claims, if any.
func CurrentClaims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
