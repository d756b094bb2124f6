package gateway

import "context"

type callerKey struct{}

// caller describes where an RPC request came from. clientID is empty for
// HTTP requests, which have no connection to attach identity to.
type caller struct {
	clientID  string
	transport string
}

func withCaller(ctx context.Context, c caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFromContext(ctx context.Context) caller {
	if ctx == nil {
		return caller{}
	}
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}
