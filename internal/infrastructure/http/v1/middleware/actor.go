package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "agrostock/internal/core/context"
)

const (
	HeaderActorID = "X-Actor-ID"
	HeaderModule  = "X-Module"
)

// Actor middleware picks up caller identity headers and stores them in the
// request context. The values are trusted as-is; the gateway in front of
// this service is responsible for authentication.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := &appctx.ActorContext{
			ActorID: c.GetHeader(HeaderActorID),
			Module:  c.GetHeader(HeaderModule),
		}
		if actor.Module == "" {
			actor.Module = "inventory-api"
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
