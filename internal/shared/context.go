package shared

import "context"

// Actor is the normalized authorization context produced by credential
// validation: the live state, not whatever the credential claimed.
type Actor struct {
	UserID      int64
	Role        string
	Permissions []string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
