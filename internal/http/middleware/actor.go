// Package middleware carries the authorization middleware sitting between
// token validation and the handlers: it resolves the authenticated user into
// a directory actor with roles and permissions attached.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"salesops_backend/internal/directory"
	"salesops_backend/platform/httpkit"
)

// ContextActorKey is where the loaded actor lives on the gin context.
const ContextActorKey = "actor"

// ActorLoader resolves the token subject into an active directory actor.
// Requests from unknown or deactivated users stop here.
func ActorLoader(dir *directory.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := httpkit.GetIdentity(c)
		if !identity.IsAuthenticated() {
			httpkit.Error(c, http.StatusUnauthorized, "authentication required", nil)
			c.Abort()
			return
		}

		actor, err := dir.ActorByID(c.Request.Context(), identity.UserID())
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				httpkit.Error(c, http.StatusUnauthorized, "account not found", nil)
			} else {
				httpkit.Error(c, http.StatusInternalServerError, "failed to load account", nil)
			}
			c.Abort()
			return
		}
		if !actor.IsActive {
			httpkit.Error(c, http.StatusForbidden, "account is deactivated", nil)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// RequirePermission gates a route on a permission tag. Superuser roles
// bypass the check.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor == nil {
			httpkit.Error(c, http.StatusUnauthorized, "authentication required", nil)
			c.Abort()
			return
		}
		if !actor.IsSuperUser() && !actor.Can(permission) {
			httpkit.Error(c, http.StatusForbidden, "insufficient permissions", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetActor returns the loaded actor, or nil when ActorLoader did not run.
func GetActor(c *gin.Context) *directory.Actor {
	value, ok := c.Get(ContextActorKey)
	if !ok {
		return nil
	}
	actor, ok := value.(*directory.Actor)
	if !ok {
		return nil
	}
	return actor
}

// MustGetActor is for handlers behind ActorLoader where a missing actor is a
// wiring bug, not a client error.
func MustGetActor(c *gin.Context) *directory.Actor {
	actor := GetActor(c)
	if actor == nil {
		panic("actor not loaded; ActorLoader middleware missing")
	}
	return actor
}
