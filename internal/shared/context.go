package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the acting user id. ok is false when the request
// carried no actor.
func ActorFromContext(ctx context.Context) (userID int64, ok bool) {
	userID, ok = ctx.Value(actorContextKey{}).(int64)
	return userID, ok
}

// ActorRef returns the acting user as a nullable reference.
func ActorRef(ctx context.Context) *int64 {
	id, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	return &id
}
