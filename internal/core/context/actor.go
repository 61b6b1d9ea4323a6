package context

import (
	"context"
)

// ActorContext identifies who and which module initiated a request.
// The identity is caller-supplied and not validated here; authorization
// is enforced upstream of this service.
type ActorContext struct {
	ActorID string
	Module  string
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// GetModule returns the calling module name from context or empty string.
func GetModule(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.Module
	}
	return ""
}
